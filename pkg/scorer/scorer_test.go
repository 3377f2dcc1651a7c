package scorer

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"arbitrage-sub000/pkg/types"
)

func TestWeightsNormalize(t *testing.T) {
	w := Weights{Profit: 2, Liquidity: 2, ExecutionPrior: 2, Freshness: 2, TokenQuality: 2}
	n := w.Normalize()
	assert.InDelta(t, 0.2, n.Profit, 1e-9)
	assert.InDelta(t, 0.2, n.TokenQuality, 1e-9)
}

func TestTierForBoundaries(t *testing.T) {
	assert.Equal(t, TierExcellent, tierFor(80))
	assert.Equal(t, TierGood, tierFor(60))
	assert.Equal(t, TierAcceptable, tierFor(40))
	assert.Equal(t, TierMarginal, tierFor(20))
	assert.Equal(t, TierPoor, tierFor(19.999))
}

func TestRecommendationForUsesConfidenceOnlyWhenExcellent(t *testing.T) {
	highConfidence := types.Opportunity{Confidence: 0.9}
	lowConfidence := types.Opportunity{Confidence: 0.5}

	assert.Equal(t, RecommendExecuteImmediately, recommendationFor(TierExcellent, highConfidence))
	assert.Equal(t, RecommendExecute, recommendationFor(TierExcellent, lowConfidence))
	assert.Equal(t, RecommendExecute, recommendationFor(TierGood, lowConfidence))
	assert.Equal(t, RecommendExecuteIfIdle, recommendationFor(TierAcceptable, lowConfidence))
	assert.Equal(t, RecommendMonitor, recommendationFor(TierMarginal, lowConfidence))
	assert.Equal(t, RecommendSkip, recommendationFor(TierPoor, lowConfidence))
}

func TestLiquidityPiecewiseMonotonic(t *testing.T) {
	prev := -1.0
	for _, usd := range []float64{0, 2500, 5000, 7500, 10000, 30000, 50000, 200000, 500000, 1_000_000} {
		score := liquidityPiecewise(usd)
		assert.GreaterOrEqual(t, score, prev)
		assert.LessOrEqual(t, score, 100.0)
		prev = score
	}
	assert.Equal(t, 100.0, liquidityPiecewise(10_000_000))
}

func TestFreshnessScoreDecaysToZero(t *testing.T) {
	now := time.Now()
	assert.InDelta(t, 100, freshnessScore(now, now), 1e-9)
	assert.Equal(t, 0.0, freshnessScore(now.Add(-freshnessMaxAge), now))
	assert.Equal(t, 0.0, freshnessScore(now.Add(-time.Hour), now))

	mid := freshnessScore(now.Add(-5*time.Second), now)
	assert.Greater(t, mid, 0.0)
	assert.Less(t, mid, 90.0)
}

func TestScoreEndToEndExcellentOpportunity(t *testing.T) {
	s := New()
	addr := common.HexToAddress("0x01").Hex()
	opp := types.Opportunity{
		Type:                 types.Triangular,
		EstimatedNetProfit:   50,
		MinLiquidityUSD:      1_000_000,
		DetectedAt:           time.Now(),
		Confidence:           0.95,
		Legs: []types.Leg{
			{TokenIn: common.HexToAddress("0x01"), TokenOut: common.HexToAddress("0x02")},
		},
	}
	score := s.Score(opp, map[string]TokenQuality{addr: QualityStable}, time.Now())
	assert.Equal(t, TierExcellent, score.Tier)
	assert.Equal(t, RecommendExecuteImmediately, score.Recommendation)
}

func TestScoreAppliesSlippageAndGasPenalties(t *testing.T) {
	opp := types.Opportunity{Type: types.CrossVenue, EstimatedNetProfit: 10, MinLiquidityUSD: 50_000, DetectedAt: time.Now()}

	baseline := New().Score(opp, nil, time.Now())
	damped := New(
		WithSlippagePenalty(func(types.Opportunity) float64 { return 0.5 }),
		WithGasRatioPenalty(func(types.Opportunity) float64 { return 0.5 }),
	).Score(opp, nil, time.Now())

	assert.Less(t, damped.ExecutionPrior, baseline.ExecutionPrior)
	assert.Less(t, damped.Composite, baseline.Composite)
}

func TestMinTokenQualityPicksWorstLeg(t *testing.T) {
	stable := common.HexToAddress("0x01").Hex()
	meme := common.HexToAddress("0x02").Hex()
	opp := types.Opportunity{
		Legs: []types.Leg{
			{TokenIn: common.HexToAddress("0x01"), TokenOut: common.HexToAddress("0x02")},
		},
	}
	q := minTokenQuality(opp, map[string]TokenQuality{stable: QualityStable, meme: QualityMeme})
	assert.Equal(t, tokenQualityMultiplier[QualityMeme], q)
}
