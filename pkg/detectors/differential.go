package detectors

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"arbitrage-sub000/pkg/pricecache"
	"arbitrage-sub000/pkg/types"
)

// differentialMagnitudeThreshold is the minimum reserve-implied price move
// that triggers a lag lookup, per spec §4.8.3.
const differentialMagnitudeThreshold = 0.005

// differentialMaxHistoryAge bounds how stale a venue's last-seen price can
// be and still be considered "lagging" rather than simply unobserved.
const differentialMaxHistoryAge = 30 * time.Second

// DifferentialDetector implements spec §4.8.3: when one venue's price moves
// by at least the magnitude threshold within a block, it checks whether
// other venues for the same pair have not yet caught up, flagging the
// still-stale venue as a lag opportunity against the venue that just moved.
type DifferentialDetector struct {
	cache   *pricecache.Cache
	pools   PoolLookup
	cfg     Config
	oracle  PriceOracle
	gas     GasEstimator
	chainID uint64
	logger  log.Logger
}

// NewDifferentialDetector constructs a DifferentialDetector.
func NewDifferentialDetector(chainID uint64, cache *pricecache.Cache, pools PoolLookup, oracle PriceOracle, gas GasEstimator, cfg Config, logger log.Logger) *DifferentialDetector {
	if logger == nil {
		logger = log.New("component", "detector.differential", "chainId", chainID)
	}
	return &DifferentialDetector{chainID: chainID, cache: cache, pools: pools, oracle: oracle, gas: gas, cfg: cfg, logger: logger}
}

// PriceMove is one venue's price change within the current block, supplied
// by the caller from the freshly ingested reserve update.
type PriceMove struct {
	Pair        types.PairKey
	Venue       string
	OldPrice    float64
	NewPrice    float64
	BlockNumber uint64
}

// Magnitude returns the fractional move of this price update.
func (m PriceMove) Magnitude() float64 {
	if m.OldPrice == 0 {
		return 0
	}
	delta := m.NewPrice - m.OldPrice
	if delta < 0 {
		delta = -delta
	}
	return delta / m.OldPrice
}

// Detect inspects the given block's price moves and returns a lag
// opportunity for every other venue of the same pair that hasn't caught up
// within differentialMaxHistoryAge.
func (d *DifferentialDetector) Detect(ctx context.Context, block uint64, moves []PriceMove, expectedBlockTime time.Duration) []types.Opportunity {
	var out []types.Opportunity
	withBudget(ctx, d.logger, "differential", expectedBlockTime, func(deadline <-chan struct{}) {
		for _, move := range moves {
			select {
			case <-deadline:
				return
			default:
			}
			if move.Magnitude() < differentialMagnitudeThreshold {
				continue
			}
			out = append(out, d.laggingOpportunities(block, move)...)
		}
	})
	return out
}

func (d *DifferentialDetector) laggingOpportunities(block uint64, move PriceMove) []types.Opportunity {
	venues := d.cache.GetPair(move.Pair)
	if len(venues) == 0 {
		return nil
	}

	var out []types.Opportunity
	now := time.Now()
	for venue, q := range venues {
		if venue == move.Venue {
			continue
		}
		if now.Sub(q.ObservedAt) > differentialMaxHistoryAge {
			continue // too stale to be a "lagging" quote, just unobserved
		}

		spread := (move.NewPrice - q.Price) / q.Price
		if spread < 0 {
			spread = -spread
		}
		poolLag, okLag := d.pools.PoolFor(move.Pair, venue)
		poolMoved, okMoved := d.pools.PoolFor(move.Pair, move.Venue)
		if !okLag || !okMoved {
			continue
		}
		fees := poolLag.Venue.Fee + poolMoved.Venue.Fee
		netSpread := spread - fees
		if netSpread < d.cfg.MinProfitPercent {
			continue
		}

		notionalUSD := q.LiquidityUSD * 0.01
		grossUSD := netSpread * notionalUSD

		gasCostUSD := 0.0
		if d.gas != nil {
			if weiPerGas, ok := d.gas.GasPriceWei(context.Background()); ok {
				const estGasUnits = 250_000.0
				const nativeUSD = 2500.0
				gasCostUSD = weiPerGas * estGasUnits / 1e18 * nativeUSD
			}
		}

		opp := types.Opportunity{
			ChainID:     d.chainID,
			Type:        types.Differential,
			BlockNumber: block,
			Legs: []types.Leg{
				{Venue: venue, Pool: poolLag.Address, TokenIn: poolLag.TokenA.Address, TokenOut: poolLag.TokenB.Address, Fee: poolLag.Venue.Fee},
				{Venue: move.Venue, Pool: poolMoved.Address, TokenIn: poolMoved.TokenB.Address, TokenOut: poolMoved.TokenA.Address, Fee: poolMoved.Venue.Fee},
			},
			EstimatedGrossProfit: grossUSD,
			EstimatedGasCostUSD:  gasCostUSD,
			MinLiquidityUSD:      minFloat(q.LiquidityUSD, notionalUSD),
			Source:               types.SourceDifferential,
			Confidence:           0.5,
			Pair:                 move.Pair,
		}
		opp.Finalize(now)
		if opp.EstimatedNetProfit <= d.cfg.MinProfitUSD {
			continue
		}
		out = append(out, opp)
	}
	return out
}
