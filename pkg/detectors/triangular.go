package detectors

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"arbitrage-sub000/pkg/pricegraph"
	"arbitrage-sub000/pkg/types"
)

// TriangularDetector implements spec §4.8.2: an iterative-deepening DFS over
// the price graph looking for a closed walk back to the starting token whose
// cumulative product of edge prices (net of fees) exceeds 1. Covers both the
// 3-hop "triangular" case and longer multi-hop cycles up to MaxDepth. The
// graph itself is passed into Detect rather than held as a field, since it
// is a snapshot rebuilt fresh from the Price Cache every block.
type TriangularDetector struct {
	oracle  PriceOracle
	gas     GasEstimator
	cfg     Config
	chainID uint64
	logger  log.Logger
}

// NewTriangularDetector constructs a TriangularDetector.
func NewTriangularDetector(chainID uint64, oracle PriceOracle, gas GasEstimator, cfg Config, logger log.Logger) *TriangularDetector {
	if logger == nil {
		logger = log.New("component", "detector.triangular", "chainId", chainID)
	}
	return &TriangularDetector{chainID: chainID, oracle: oracle, gas: gas, cfg: cfg, logger: logger}
}

// pathState is one partially-built cycle carried through the DFS.
type pathState struct {
	tokens       []string
	venues       []string
	fees         []float64
	cumulative   float64 // product of price*(1-fee) along the walk so far
	liquidityUSD float64 // min liquidity seen across the walk's edges
}

// abortProduct is the product floor below which a partial path is pruned;
// spec §4.8.2 names 0.9 as the point past which no realistic fee structure
// can recover profitability within MaxDepth hops.
const abortProduct = 0.9

// Detect runs the bounded DFS from every token in the graph and returns the
// best (highest-product) cycle found per starting token, subject to
// MaxPaths/MaxDepth/the per-block time budget.
func (d *TriangularDetector) Detect(ctx context.Context, block uint64, graph *pricegraph.Graph, expectedBlockTime time.Duration) []types.Opportunity {
	var out []types.Opportunity
	withBudget(ctx, d.logger, "triangular", expectedBlockTime, func(deadline <-chan struct{}) {
		pathsExplored := 0
		for _, start := range graph.Tokens() {
			select {
			case <-deadline:
				return
			default:
			}
			best, explored := d.searchFrom(graph, start, deadline, d.cfg.MaxPaths-pathsExplored)
			pathsExplored += explored
			if best != nil {
				if opp, ok := d.toOpportunity(ctx, block, *best); ok {
					out = append(out, opp)
				}
			}
			if pathsExplored >= d.cfg.MaxPaths {
				return
			}
		}
	})
	return out
}

// searchFrom runs iterative-deepening DFS from start up to cfg.MaxDepth,
// returning the best closed cycle discovered and the number of paths visited.
func (d *TriangularDetector) searchFrom(graph *pricegraph.Graph, start string, deadline <-chan struct{}, pathBudget int) (*pathState, int) {
	if pathBudget <= 0 {
		return nil, 0
	}
	var best *pathState
	visited := 0

	var dfs func(state pathState, depth int) bool // returns true if deadline/budget hit, caller should stop
	dfs = func(state pathState, depth int) bool {
		select {
		case <-deadline:
			return true
		default:
		}
		visited++
		if visited >= pathBudget {
			return true
		}

		current := state.tokens[len(state.tokens)-1]

		// closing edge back to start, valid once we've made at least 2 hops
		if depth >= 2 {
			if edge, ok := graph.BestEdge(current, start); ok {
				closedProduct := state.cumulative * edge.Price * (1 - edge.Fee)
				if closedProduct > 1.0+d.cfg.MinProfitPercent {
					if best == nil || closedProduct > best.cumulative || (closedProduct == best.cumulative && len(state.tokens) < len(best.tokens)) {
						closed := pathState{
							tokens:       append(append([]string{}, state.tokens...), start),
							venues:       append(append([]string{}, state.venues...), edge.Venue),
							fees:         append(append([]float64{}, state.fees...), edge.Fee),
							cumulative:   closedProduct,
							liquidityUSD: minFloat(state.liquidityUSD, edge.LiquidityUSD),
						}
						if best == nil || closedProduct > best.cumulative {
							best = &closed
						} else {
							best = tieBreak(best, &closed)
						}
					}
				}
			}
		}

		if depth >= d.cfg.MaxDepth {
			return false
		}

		for _, edge := range graph.Neighbors(current) {
			if edge.To == start && depth < 2 {
				continue // closing is handled above once depth allows it
			}
			if containsToken(state.tokens, edge.To) {
				continue // no repeated intermediate tokens
			}
			nextCumulative := state.cumulative * edge.Price * (1 - edge.Fee)
			if nextCumulative < abortProduct {
				continue // pruned: cannot realistically recover to profitability
			}
			nextLiquidity := minFloat(state.liquidityUSD, edge.LiquidityUSD)
			if state.liquidityUSD == 0 {
				nextLiquidity = edge.LiquidityUSD
			}
			next := pathState{
				tokens:       append(append([]string{}, state.tokens...), edge.To),
				venues:       append(append([]string{}, state.venues...), edge.Venue),
				fees:         append(append([]float64{}, state.fees...), edge.Fee),
				cumulative:   nextCumulative,
				liquidityUSD: nextLiquidity,
			}
			if stop := dfs(next, depth+1); stop {
				return true
			}
		}
		return false
	}

	dfs(pathState{tokens: []string{start}, cumulative: 1.0}, 0)
	return best, visited
}

// tieBreak implements spec §4.8.2's tie-break rule: prefer the shorter path,
// then the path with larger liquidity.
func tieBreak(current, candidate *pathState) *pathState {
	if current == nil {
		return candidate
	}
	if len(candidate.tokens) != len(current.tokens) {
		if len(candidate.tokens) < len(current.tokens) {
			return candidate
		}
		return current
	}
	if candidate.liquidityUSD > current.liquidityUSD {
		return candidate
	}
	return current
}

func containsToken(tokens []string, t string) bool {
	for _, existing := range tokens {
		if existing == t {
			return true
		}
	}
	return false
}

func (d *TriangularDetector) toOpportunity(ctx context.Context, block uint64, path pathState) (types.Opportunity, bool) {
	usdPerUnit, ok := resolveUSD(ctx, d.oracle, path.tokens[0], path.tokens[0], d.chainID)
	if !ok {
		usdPerUnit = 0
	}
	// profitFraction is the fraction of the starting notional gained per
	// cycle; actual USD sizing needs a notional, approximated here via the
	// path's minimum observed liquidity the way the cross-venue detector
	// bounds trade size against reserveIn.
	profitFraction := path.cumulative - 1.0
	notionalUSD := path.liquidityUSD * 0.01 // conservative: 1% of thinnest leg's liquidity
	grossUSD := profitFraction * notionalUSD
	if usdPerUnit == 0 && notionalUSD == 0 {
		grossUSD = 0
	}

	gasCostUSD := 0.0
	if d.gas != nil {
		if weiPerGas, ok := d.gas.GasPriceWei(ctx); ok {
			gasUnits := float64(100_000 * (len(path.venues)))
			const nativeUSD = 2500.0
			gasCostUSD = weiPerGas * gasUnits / 1e18 * nativeUSD
		}
	}

	legs := make([]types.Leg, len(path.venues))
	for i := range path.venues {
		legs[i] = types.Leg{
			Venue: path.venues[i],
			Fee:   path.fees[i],
		}
	}

	oppType := types.Triangular
	if len(path.venues) > 3 {
		oppType = types.MultiHop
	}

	opp := types.Opportunity{
		ChainID:              d.chainID,
		Type:                 oppType,
		BlockNumber:          block,
		Legs:                 legs,
		EstimatedGrossProfit: grossUSD,
		EstimatedGasCostUSD:  gasCostUSD,
		MinLiquidityUSD:      path.liquidityUSD,
		Source:               types.SourceBlock,
		Confidence:           0.6,
		Pair:                 types.MakePairKey(path.tokens[0], path.tokens[len(path.tokens)-1]),
	}
	opp.Finalize(time.Now())
	if opp.EstimatedNetProfit <= d.cfg.MinProfitUSD {
		return types.Opportunity{}, false
	}
	return opp, true
}
