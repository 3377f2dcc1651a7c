package detectors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbitrage-sub000/pkg/pricegraph"
	"arbitrage-sub000/pkg/types"
)

func TestClassifyDepeg(t *testing.T) {
	cases := []struct {
		price float64
		want  DepegSeverity
	}{
		{1.0, DepegNone},
		{1.002, DepegNone},
		{1.004, DepegMinor},
		{0.996, DepegMinor},
		{1.015, DepegModerate},
		{1.05, DepegSevere},
		{0.96, DepegSevere},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ClassifyDepeg(c.price), "price %v", c.price)
	}
}

func TestIsStablePair(t *testing.T) {
	assert.True(t, IsStablePair(types.MakePairKey("USDC", "DAI")))
	assert.False(t, IsStablePair(types.MakePairKey("USDC", "WETH")))
}

func TestStableCycleEmitsOnProfitableLoop(t *testing.T) {
	graph := pricegraph.New()
	graph.AddEdge("DAI", pricegraph.Edge{To: "USDC", Venue: "v1", Price: 1.004, LiquidityUSD: 1_000_000})
	graph.AddEdge("USDC", pricegraph.Edge{To: "USDT", Venue: "v2", Price: 1.004, LiquidityUSD: 1_000_000})
	graph.AddEdge("USDT", pricegraph.Edge{To: "DAI", Venue: "v3", Price: 1.004, LiquidityUSD: 1_000_000})

	d := NewStablecoinDetector(1, nil, nil, DefaultConfig(), nil)
	opp, ok := d.stableCycle(context.Background(), 1, graph, "DAI", "USDC", "USDT")
	require.True(t, ok)
	assert.Equal(t, types.StableTriangular, opp.Type)
	assert.Greater(t, opp.EstimatedGrossProfit, 0.0)
	assert.Len(t, opp.Legs, 3)
}

func TestStableCycleRejectsSubThresholdLoop(t *testing.T) {
	graph := pricegraph.New()
	graph.AddEdge("DAI", pricegraph.Edge{To: "USDC", Venue: "v1", Price: 1.0001, LiquidityUSD: 1_000_000})
	graph.AddEdge("USDC", pricegraph.Edge{To: "USDT", Venue: "v2", Price: 1.0001, LiquidityUSD: 1_000_000})
	graph.AddEdge("USDT", pricegraph.Edge{To: "DAI", Venue: "v3", Price: 1.0001, LiquidityUSD: 1_000_000})

	d := NewStablecoinDetector(1, nil, nil, DefaultConfig(), nil)
	_, ok := d.stableCycle(context.Background(), 1, graph, "DAI", "USDC", "USDT")
	assert.False(t, ok)
}

func TestStableCycleMissingEdgeIsNotFound(t *testing.T) {
	graph := pricegraph.New()
	d := NewStablecoinDetector(1, nil, nil, DefaultConfig(), nil)
	_, ok := d.stableCycle(context.Background(), 1, graph, "DAI", "USDC", "USDT")
	assert.False(t, ok)
}

func TestTriangularStableArbSkipsNilGraph(t *testing.T) {
	d := NewStablecoinDetector(1, nil, nil, DefaultConfig(), nil)
	opps := d.triangularStableArb(context.Background(), 1, nil, make(chan struct{}))
	assert.Nil(t, opps)
}
