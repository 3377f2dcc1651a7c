// Package scorer implements the Opportunity Scorer (component C9): a
// weighted composite over profit, liquidity, execution-type prior,
// freshness and token quality, mapped to a tier label and an execution
// recommendation. Grounded on the teacher's threshold-table config style
// (configs.StrategyYAMLData), applied here to a scoring rubric instead of a
// trading strategy's entry/exit bounds.
package scorer

import (
	"math"
	"time"

	"arbitrage-sub000/pkg/types"
)

// Weights holds the five scoring dimension weights; they must sum to 1±0.001
// and are renormalized at load if they don't.
type Weights struct {
	Profit         float64
	Liquidity      float64
	ExecutionPrior float64
	Freshness      float64
	TokenQuality   float64
}

// DefaultWeights returns the weights named in spec §4.9.
func DefaultWeights() Weights {
	return Weights{Profit: 0.40, Liquidity: 0.25, ExecutionPrior: 0.20, Freshness: 0.10, TokenQuality: 0.05}
}

// Normalize rescales w so its components sum to exactly 1, used when the
// configured weights drift outside the ±0.001 tolerance.
func (w Weights) Normalize() Weights {
	sum := w.Profit + w.Liquidity + w.ExecutionPrior + w.Freshness + w.TokenQuality
	if sum == 0 {
		return DefaultWeights()
	}
	return Weights{
		Profit:         w.Profit / sum,
		Liquidity:      w.Liquidity / sum,
		ExecutionPrior: w.ExecutionPrior / sum,
		Freshness:      w.Freshness / sum,
		TokenQuality:   w.TokenQuality / sum,
	}
}

const weightTolerance = 0.001

// valid reports whether w's components already sum close enough to 1 that
// no renormalization is needed.
func (w Weights) valid() bool {
	sum := w.Profit + w.Liquidity + w.ExecutionPrior + w.Freshness + w.TokenQuality
	diff := sum - 1
	if diff < 0 {
		diff = -diff
	}
	return diff <= weightTolerance
}

// Tier is the human-facing score band.
type Tier string

const (
	TierExcellent  Tier = "EXCELLENT"
	TierGood       Tier = "GOOD"
	TierAcceptable Tier = "ACCEPTABLE"
	TierMarginal   Tier = "MARGINAL"
	TierPoor       Tier = "POOR"
)

// Recommendation is the action the dispatcher should consider.
type Recommendation string

const (
	RecommendExecuteImmediately Recommendation = "EXECUTE_IMMEDIATELY"
	RecommendExecute            Recommendation = "EXECUTE"
	RecommendExecuteIfIdle      Recommendation = "EXECUTE_IF_IDLE"
	RecommendMonitor            Recommendation = "MONITOR"
	RecommendSkip               Recommendation = "SKIP"
)

// Score is the full scoring breakdown for one opportunity.
type Score struct {
	Composite      float64
	ProfitScore    float64
	LiquidityScore float64
	ExecutionPrior float64
	Freshness      float64
	TokenQuality   float64
	Tier           Tier
	Recommendation Recommendation
}

// executionPriorTable is the per-type base prior from spec §4.9; types not
// listed default to 0.5.
var executionPriorTable = map[types.OpportunityType]float64{
	types.Triangular:               0.90,
	types.MultiHop:                 0.80,
	types.CrossVenue:               0.75,
	types.StableCrossVenue:         0.85,
	types.StableTriangular:         0.85,
	types.Differential:             0.65,
	types.Statistical:              0.55,
	types.LiquidationBackrun:       0.70,
	types.LiquidationBuyCollateral: 0.70,
	types.AggregatorRoute:          0.75,
	types.NewPair:                  0.40,
}

// TokenQuality classifies a token for the tokenQuality dimension.
type TokenQuality string

const (
	QualityStable   TokenQuality = "stable"
	QualityNative   TokenQuality = "native"
	QualityBlueChip TokenQuality = "blueChip"
	QualityVolatile TokenQuality = "volatile"
	QualityMeme     TokenQuality = "meme"
	QualityUnknown  TokenQuality = "unknown"
)

var tokenQualityMultiplier = map[TokenQuality]float64{
	QualityStable:   1.0,
	QualityNative:   0.95,
	QualityBlueChip: 0.85,
	QualityVolatile: 0.70,
	QualityMeme:     0.50,
	QualityUnknown:  0.60,
}

// liquidityThresholds/liquidityBands implement the piecewise-linear
// liquidityScore curve from spec §4.9.
var liquidityThresholds = []float64{5_000, 10_000, 50_000, 100_000, 500_000}
var liquidityBands = []float64{0, 20, 40, 60, 80, 100}

const freshnessMaxAge = 10 * time.Second

// Scorer computes composite scores from a fixed weight/prior configuration.
type Scorer struct {
	weights     Weights
	slippagePenalty func(opp types.Opportunity) float64
	gasRatioPenalty func(opp types.Opportunity) float64
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithWeights overrides the default weights, normalizing them if needed.
func WithWeights(w Weights) Option {
	return func(s *Scorer) {
		if !w.valid() {
			w = w.Normalize()
		}
		s.weights = w
	}
}

// WithSlippagePenalty installs a multiplicative [0,1] damping factor applied
// to the execution prior, based on the opportunity's implied trade slippage.
func WithSlippagePenalty(f func(opp types.Opportunity) float64) Option {
	return func(s *Scorer) { s.slippagePenalty = f }
}

// WithGasRatioPenalty installs a multiplicative [0,1] damping factor applied
// to the execution prior, based on gas cost relative to gross profit.
func WithGasRatioPenalty(f func(opp types.Opportunity) float64) Option {
	return func(s *Scorer) { s.gasRatioPenalty = f }
}

// New constructs a Scorer with default weights and no penalty dampers.
func New(opts ...Option) *Scorer {
	s := &Scorer{weights: DefaultWeights()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score computes the full breakdown for opp. tokenQualities supplies the
// quality classification for every token address appearing in opp's legs;
// unknown tokens default to QualityUnknown.
func (s *Scorer) Score(opp types.Opportunity, tokenQualities map[string]TokenQuality, now time.Time) Score {
	profitScore := clamp(math.Log10(opp.EstimatedNetProfit+1)*40, 0, 100)
	liquidityScore := liquidityPiecewise(opp.MinLiquidityUSD)
	prior := executionPrior(opp.Type)
	if s.slippagePenalty != nil {
		prior *= clamp(s.slippagePenalty(opp), 0, 1)
	}
	if s.gasRatioPenalty != nil {
		prior *= clamp(s.gasRatioPenalty(opp), 0, 1)
	}
	freshness := freshnessScore(opp.DetectedAt, now)
	tokenQuality := minTokenQuality(opp, tokenQualities)

	composite := s.weights.Profit*profitScore +
		s.weights.Liquidity*liquidityScore +
		s.weights.ExecutionPrior*(prior*100) +
		s.weights.Freshness*freshness +
		s.weights.TokenQuality*(tokenQuality*100)

	tier := tierFor(composite)
	return Score{
		Composite:      composite,
		ProfitScore:    profitScore,
		LiquidityScore: liquidityScore,
		ExecutionPrior: prior,
		Freshness:      freshness,
		TokenQuality:   tokenQuality,
		Tier:           tier,
		Recommendation: recommendationFor(tier, opp),
	}
}

func executionPrior(t types.OpportunityType) float64 {
	if v, ok := executionPriorTable[t]; ok {
		return v
	}
	return 0.5
}

func liquidityPiecewise(usd float64) float64 {
	if usd <= liquidityThresholds[0] {
		return lerp(0, liquidityThresholds[0], liquidityBands[0], liquidityBands[1], usd)
	}
	for i := 1; i < len(liquidityThresholds); i++ {
		if usd <= liquidityThresholds[i] {
			return lerp(liquidityThresholds[i-1], liquidityThresholds[i], liquidityBands[i], liquidityBands[i+1], usd)
		}
	}
	return liquidityBands[len(liquidityBands)-1]
}

func lerp(x0, x1, y0, y1, x float64) float64 {
	if x1 == x0 {
		return y0
	}
	t := (x - x0) / (x1 - x0)
	return y0 + t*(y1-y0)
}

func freshnessScore(detectedAt, now time.Time) float64 {
	age := now.Sub(detectedAt)
	if age < 0 {
		age = 0
	}
	if age <= time.Second {
		// 100 at age=0, decaying to 90 right at the 1s mark.
		t := float64(age) / float64(time.Second)
		return 100 - 10*t
	}
	if age >= freshnessMaxAge {
		return 0
	}
	remaining := freshnessMaxAge - time.Second
	t := float64(age-time.Second) / float64(remaining)
	return 90 * (1 - t)
}

func minTokenQuality(opp types.Opportunity, qualities map[string]TokenQuality) float64 {
	min := 1.0
	found := false
	for _, leg := range opp.Legs {
		for _, addr := range []string{leg.TokenIn.Hex(), leg.TokenOut.Hex()} {
			q := QualityUnknown
			if qualities != nil {
				if v, ok := qualities[addr]; ok {
					q = v
				}
			}
			mult := tokenQualityMultiplier[q]
			if !found || mult < min {
				min = mult
				found = true
			}
		}
	}
	if !found {
		return tokenQualityMultiplier[QualityUnknown]
	}
	return min
}

func tierFor(composite float64) Tier {
	switch {
	case composite >= 80:
		return TierExcellent
	case composite >= 60:
		return TierGood
	case composite >= 40:
		return TierAcceptable
	case composite >= 20:
		return TierMarginal
	default:
		return TierPoor
	}
}

// recommendationFor maps tier (and, for EXCELLENT, the opportunity's own
// confidence) to an execution recommendation.
func recommendationFor(tier Tier, opp types.Opportunity) Recommendation {
	switch tier {
	case TierExcellent:
		if opp.Confidence >= 0.8 {
			return RecommendExecuteImmediately
		}
		return RecommendExecute
	case TierGood:
		return RecommendExecute
	case TierAcceptable:
		return RecommendExecuteIfIdle
	case TierMarginal:
		return RecommendMonitor
	default:
		return RecommendSkip
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
