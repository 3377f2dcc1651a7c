package detectors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbitrage-sub000/pkg/pricegraph"
	"arbitrage-sub000/pkg/types"
)

func threeCycleGraph(price float64, liquidityUSD float64) *pricegraph.Graph {
	g := pricegraph.New()
	g.AddEdge("A", pricegraph.Edge{To: "B", Venue: "v1", Price: price, LiquidityUSD: liquidityUSD})
	g.AddEdge("B", pricegraph.Edge{To: "C", Venue: "v2", Price: price, LiquidityUSD: liquidityUSD})
	g.AddEdge("C", pricegraph.Edge{To: "A", Venue: "v3", Price: price, LiquidityUSD: liquidityUSD})
	return g
}

func TestTriangularDetectorFindsProfitableCycle(t *testing.T) {
	g := threeCycleGraph(1.02, 1_000_000)
	d := NewTriangularDetector(1, nil, nil, DefaultConfig(), nil)

	opps := d.Detect(context.Background(), 1, g, 12*time.Second)
	require.NotEmpty(t, opps)
	for _, opp := range opps {
		assert.Equal(t, types.Triangular, opp.Type)
		assert.Len(t, opp.Legs, 3)
		assert.Greater(t, opp.EstimatedNetProfit, DefaultConfig().MinProfitUSD)
	}
}

func TestTriangularDetectorRejectsSubThresholdCycle(t *testing.T) {
	g := threeCycleGraph(1.0001, 1_000_000)
	d := NewTriangularDetector(1, nil, nil, DefaultConfig(), nil)

	opps := d.Detect(context.Background(), 1, g, 12*time.Second)
	assert.Empty(t, opps)
}

func TestSearchFromRespectsPathBudget(t *testing.T) {
	g := threeCycleGraph(1.02, 1_000_000)
	d := NewTriangularDetector(1, nil, nil, DefaultConfig(), nil)

	best, visited := d.searchFrom(g, "A", make(chan struct{}), 0)
	assert.Nil(t, best)
	assert.Equal(t, 0, visited)
}

func TestTieBreakPrefersShorterThenMoreLiquidPath(t *testing.T) {
	short := &pathState{tokens: []string{"A", "B", "A"}, liquidityUSD: 100}
	long := &pathState{tokens: []string{"A", "B", "C", "A"}, liquidityUSD: 100_000}

	assert.Same(t, short, tieBreak(long, short))
	assert.Same(t, long, tieBreak(nil, long))

	moreLiquid := &pathState{tokens: []string{"A", "B", "A"}, liquidityUSD: 500}
	assert.Same(t, moreLiquid, tieBreak(short, moreLiquid))
}

func TestContainsToken(t *testing.T) {
	assert.True(t, containsToken([]string{"A", "B"}, "B"))
	assert.False(t, containsToken([]string{"A", "B"}, "C"))
}
