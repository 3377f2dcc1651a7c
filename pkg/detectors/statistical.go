package detectors

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"arbitrage-sub000/pkg/types"
	"arbitrage-sub000/pkg/util"
)

// minStatisticalSamples is the minimum window population before a z-score is
// trusted, per spec §4.8.4.
const minStatisticalSamples = 20

// statisticalMaxAge evicts a (pair, venueA, venueB) series that has not seen
// a fresh ratio observation within this window, preventing stale series from
// firing on prices nobody has confirmed recently.
const statisticalMaxAge = 60 * time.Second

type seriesKey struct {
	pair   types.PairKey
	venueA string
	venueB string
}

type series struct {
	stats      *util.RollingStats
	lastRatio  float64
	lastSample time.Time
}

// StatisticalDetector implements spec §4.8.4: it tracks the price-ratio
// between every venue pair for a trading pair over a rolling window and
// flags a mean-reversion opportunity when the current ratio's z-score
// exceeds the configured threshold, on the expectation the ratio reverts to
// its recent mean.
type StatisticalDetector struct {
	cfg     Config
	oracle  PriceOracle
	gas     GasEstimator
	chainID uint64
	logger  log.Logger

	mu     sync.Mutex
	series map[seriesKey]*series
}

// NewStatisticalDetector constructs a StatisticalDetector.
func NewStatisticalDetector(chainID uint64, oracle PriceOracle, gas GasEstimator, cfg Config, logger log.Logger) *StatisticalDetector {
	if logger == nil {
		logger = log.New("component", "detector.statistical", "chainId", chainID)
	}
	return &StatisticalDetector{
		chainID: chainID,
		oracle:  oracle,
		gas:     gas,
		cfg:     cfg,
		logger:  logger,
		series:  make(map[seriesKey]*series),
	}
}

// Observe folds a fresh (pair, venueA, venueB) ratio sample into its rolling
// window; callers feed this from every fresh quote pair seen per block.
func (d *StatisticalDetector) Observe(pair types.PairKey, venueA, venueB string, ratio float64, now time.Time) {
	key := seriesKey{pair: pair, venueA: venueA, venueB: venueB}
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.series[key]
	if !ok {
		s = &series{stats: util.NewRollingStats(d.cfg.WindowSize)}
		d.series[key] = s
	}
	s.stats.Add(ratio)
	s.lastRatio = ratio
	s.lastSample = now
}

// Evict drops any series whose last sample is older than statisticalMaxAge.
func (d *StatisticalDetector) Evict(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, s := range d.series {
		if now.Sub(s.lastSample) > statisticalMaxAge {
			delete(d.series, key)
		}
	}
}

// Detect checks every tracked series for a z-score breach and returns the
// opportunities found. liquidityUSD supplies the per-pair liquidity used to
// size the implied notional, keyed the same way Observe's caller keys it.
func (d *StatisticalDetector) Detect(ctx context.Context, block uint64, expectedBlockTime time.Duration, liquidityUSD func(types.PairKey) float64) []types.Opportunity {
	var out []types.Opportunity
	withBudget(ctx, d.logger, "statistical", expectedBlockTime, func(deadline <-chan struct{}) {
		d.mu.Lock()
		keys := make([]seriesKey, 0, len(d.series))
		for key, s := range d.series {
			if s.stats.Count() >= minStatisticalSamples {
				keys = append(keys, key)
			}
		}
		d.mu.Unlock()

		for _, key := range keys {
			select {
			case <-deadline:
				return
			default:
			}
			d.mu.Lock()
			s, ok := d.series[key]
			if !ok {
				d.mu.Unlock()
				continue
			}
			lastRatio := s.lastRatio
			z := s.stats.ZScore(lastRatio)
			mean := s.stats.Mean()
			d.mu.Unlock()

			if z == 0 || absFloat(z) < d.cfg.ZThreshold {
				continue
			}

			liquidity := 0.0
			if liquidityUSD != nil {
				liquidity = liquidityUSD(key.pair)
			}
			if opp, ok := d.toOpportunity(block, key, z, mean, lastRatio, liquidity); ok {
				out = append(out, opp)
			}
		}
	})
	return out
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func (d *StatisticalDetector) toOpportunity(block uint64, key seriesKey, z, mean, lastRatio, liquidityUSD float64) (types.Opportunity, bool) {
	confidence := absFloat(z) / 3.0
	if confidence > 1 {
		confidence = 1
	}

	// reversionMagnitude is the fraction of notional the ratio is expected to
	// move back toward mean; used as a conservative profit proxy since the
	// actual realized profit depends on execution timing this detector
	// cannot observe.
	reversionMagnitude := absFloat(lastRatio-mean) / maxFloat(lastRatio, 1e-9)
	notionalUSD := liquidityUSD * 0.01
	grossUSD := reversionMagnitude * notionalUSD

	gasCostUSD := 0.0
	if d.gas != nil {
		if weiPerGas, ok := d.gas.GasPriceWei(context.Background()); ok {
			const estGasUnits = 200_000.0
			const nativeUSD = 2500.0
			gasCostUSD = weiPerGas * estGasUnits / 1e18 * nativeUSD
		}
	}

	opp := types.Opportunity{
		ChainID:     d.chainID,
		Type:        types.Statistical,
		BlockNumber: block,
		Legs: []types.Leg{
			{Venue: key.venueA},
			{Venue: key.venueB},
		},
		EstimatedGrossProfit: grossUSD,
		EstimatedGasCostUSD:  gasCostUSD,
		MinLiquidityUSD:      liquidityUSD,
		Source:               types.SourceStatistical,
		Confidence:           confidence,
		Pair:                 key.pair,
	}
	opp.Finalize(time.Now())
	if opp.EstimatedNetProfit <= d.cfg.MinProfitUSD {
		return types.Opportunity{}, false
	}
	return opp, true
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
