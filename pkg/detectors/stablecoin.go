package detectors

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"arbitrage-sub000/pkg/pricecache"
	"arbitrage-sub000/pkg/pricegraph"
	"arbitrage-sub000/pkg/types"
)

// DepegSeverity classifies how far a stablecoin has drifted from its peg.
type DepegSeverity string

const (
	DepegNone     DepegSeverity = "none"
	DepegMinor    DepegSeverity = "minor"
	DepegModerate DepegSeverity = "moderate"
	DepegSevere   DepegSeverity = "severe"
)

// depeg classification bands, as fractional deviation from 1.0.
const (
	depegMinorThreshold    = 0.003
	depegModerateThreshold = 0.01
	depegSevereThreshold   = 0.03
)

// ClassifyDepeg maps a stablecoin's observed USD price to a severity band.
func ClassifyDepeg(priceUSD float64) DepegSeverity {
	dev := priceUSD - 1.0
	if dev < 0 {
		dev = -dev
	}
	switch {
	case dev >= depegSevereThreshold:
		return DepegSevere
	case dev >= depegModerateThreshold:
		return DepegModerate
	case dev >= depegMinorThreshold:
		return DepegMinor
	default:
		return DepegNone
	}
}

// stablecoinSymbols is the set of assets this detector treats as pegged to
// $1, matching the static oracle fallback table in common.go.
var stablecoinSymbols = map[string]bool{
	"USDC": true, "USDT": true, "DAI": true, "BUSD": true, "FRAX": true,
}

// DepegAlert is the non-trade observability signal emitted for a severe
// depeg per spec §4.8.5: severe deviations are surfaced for attention rather
// than traded, since the divergence is large enough that one side's quote is
// more likely stale or broken than genuinely arbitrageable.
type DepegAlert struct {
	Pair     types.PairKey
	Venue    string
	PriceUSD float64
	Severity DepegSeverity
	At       time.Time
}

// StablecoinDetector implements spec §4.8.5: it watches every stable/stable
// pair for depeg events, running the same cross-venue sizing the
// CrossVenueDetector does restricted to stable pairs on a minor-or-moderate
// depeg (one venue's pool probably hasn't repriced yet), and a separate
// 3-cycle triangular search over the stable token set.
type StablecoinDetector struct {
	cache      *pricecache.Cache
	crossVenue *CrossVenueDetector
	cfg        Config
	logger     log.Logger
	chainID    uint64

	alertsMu sync.Mutex
	alerts   []DepegAlert
}

// NewStablecoinDetector constructs a StablecoinDetector, reusing a
// CrossVenueDetector instance wired to the same cache/pools for the actual
// trade sizing once a depeg has been identified. The price graph for the
// triangular stable-arb 3-cycle search is passed into Detect instead of held
// as a field, since it is rebuilt fresh every block.
func NewStablecoinDetector(chainID uint64, cache *pricecache.Cache, crossVenue *CrossVenueDetector, cfg Config, logger log.Logger) *StablecoinDetector {
	if logger == nil {
		logger = log.New("component", "detector.stablecoin", "chainId", chainID)
	}
	return &StablecoinDetector{chainID: chainID, cache: cache, crossVenue: crossVenue, cfg: cfg, logger: logger}
}

// Detect scans stablePairs (every PairKey whose both legs are in
// stablecoinSymbols) for a depeg on any venue. Minor/moderate depegs
// delegate to the wrapped cross-venue sizing restricted to that pair,
// tagging the result as stable-specific; severe depegs skip trading and are
// appended to Alerts instead. It then runs the 3-cycle triangular search
// over graph's stable token set independent of any single pair's depeg
// state.
func (d *StablecoinDetector) Detect(ctx context.Context, block uint64, stablePairs []types.PairKey, graph *pricegraph.Graph, expectedBlockTime time.Duration) []types.Opportunity {
	var out []types.Opportunity
	withBudget(ctx, d.logger, "stablecoin", expectedBlockTime, func(deadline <-chan struct{}) {
		for _, pair := range stablePairs {
			select {
			case <-deadline:
				return
			default:
			}
			venues := d.cache.GetPair(pair)
			tradeable := false
			for venue, q := range venues {
				switch ClassifyDepeg(q.Price) {
				case DepegSevere:
					d.recordAlert(pair, venue, q.Price, DepegSevere)
				case DepegMinor, DepegModerate:
					tradeable = true
				}
			}
			if !tradeable {
				continue
			}
			for _, opp := range d.crossVenue.Detect(ctx, block, []types.PairKey{pair}, expectedBlockTime) {
				opp.Type = types.StableCrossVenue
				out = append(out, opp)
			}
		}
		out = append(out, d.triangularStableArb(ctx, block, graph, deadline)...)
	})
	return out
}

func (d *StablecoinDetector) recordAlert(pair types.PairKey, venue string, priceUSD float64, sev DepegSeverity) {
	d.logger.Warn("severe stablecoin depeg", "pair", pair, "venue", venue, "priceUSD", priceUSD)
	d.alertsMu.Lock()
	d.alerts = append(d.alerts, DepegAlert{Pair: pair, Venue: venue, PriceUSD: priceUSD, Severity: sev, At: time.Now()})
	d.alertsMu.Unlock()
}

// Alerts drains and returns every DepegAlert recorded since the last call.
func (d *StablecoinDetector) Alerts() []DepegAlert {
	d.alertsMu.Lock()
	defer d.alertsMu.Unlock()
	out := d.alerts
	d.alerts = nil
	return out
}

// triangularStableArb enumerates every 3-cycle over the stablecoin token set
// present in the graph, pricing each edge via its best venue, and emits a
// StableTriangular opportunity when the cycle's product exceeds
// 1+MinProfitPercent, per spec §4.8.5's "enumerate all 3-cycles over S"
// clause.
func (d *StablecoinDetector) triangularStableArb(ctx context.Context, block uint64, graph *pricegraph.Graph, deadline <-chan struct{}) []types.Opportunity {
	if graph == nil {
		return nil
	}
	var stableTokens []string
	for _, t := range graph.Tokens() {
		if stablecoinSymbols[t] {
			stableTokens = append(stableTokens, t)
		}
	}

	var out []types.Opportunity
	for i := range stableTokens {
		select {
		case <-deadline:
			return out
		default:
		}
		for j := range stableTokens {
			if j == i {
				continue
			}
			for k := range stableTokens {
				if k == i || k == j {
					continue
				}
				a, b, c := stableTokens[i], stableTokens[j], stableTokens[k]
				if opp, ok := d.stableCycle(ctx, block, graph, a, b, c); ok {
					out = append(out, opp)
				}
			}
		}
	}
	return out
}

func (d *StablecoinDetector) stableCycle(ctx context.Context, block uint64, graph *pricegraph.Graph, a, b, c string) (types.Opportunity, bool) {
	e1, ok := graph.BestEdge(a, b)
	if !ok {
		return types.Opportunity{}, false
	}
	e2, ok := graph.BestEdge(b, c)
	if !ok {
		return types.Opportunity{}, false
	}
	e3, ok := graph.BestEdge(c, a)
	if !ok {
		return types.Opportunity{}, false
	}

	product := e1.Price * (1 - e1.Fee) * e2.Price * (1 - e2.Fee) * e3.Price * (1 - e3.Fee)
	if product <= 1.0+d.cfg.MinProfitPercent {
		return types.Opportunity{}, false
	}

	liquidityUSD := minFloat(minFloat(e1.LiquidityUSD, e2.LiquidityUSD), e3.LiquidityUSD)
	notionalUSD := liquidityUSD * 0.01
	grossUSD := (product - 1.0) * notionalUSD

	opp := types.Opportunity{
		ChainID:     d.chainID,
		Type:        types.StableTriangular,
		BlockNumber: block,
		Legs: []types.Leg{
			{Venue: e1.Venue, Fee: e1.Fee},
			{Venue: e2.Venue, Fee: e2.Fee},
			{Venue: e3.Venue, Fee: e3.Fee},
		},
		EstimatedGrossProfit: grossUSD,
		MinLiquidityUSD:      liquidityUSD,
		Source:               types.SourceBlock,
		Confidence:           0.65,
		Pair:                 types.MakePairKey(a, b),
	}
	opp.Finalize(time.Now())
	if opp.EstimatedNetProfit <= d.cfg.MinProfitUSD {
		return types.Opportunity{}, false
	}
	return opp, true
}

// IsStablePair reports whether both symbols in pair are known stablecoins.
func IsStablePair(pair types.PairKey) bool {
	a, b := types.SplitPairKey(pair)
	return stablecoinSymbols[a] && stablecoinSymbols[b]
}
