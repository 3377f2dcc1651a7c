package pricegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbitrage-sub000/pkg/types"
)

func TestGraphAddEdgeAndNeighbors(t *testing.T) {
	g := New()
	g.AddEdge("WETH", Edge{To: "USDC", Venue: "uniswapV2", Price: 2500})
	g.AddEdge("WETH", Edge{To: "USDC", Venue: "uniswapV3", Price: 2501})

	neighbors := g.Neighbors("WETH")
	assert.Len(t, neighbors, 2)
	assert.ElementsMatch(t, []string{"uniswapV2", "uniswapV3"}, []string{neighbors[0].Venue, neighbors[1].Venue})
}

func TestGraphBestEdgePicksLowestCost(t *testing.T) {
	g := New()
	g.AddEdge("WETH", Edge{To: "USDC", Venue: "cheap", Price: 2500, Fee: 0.0005})
	g.AddEdge("WETH", Edge{To: "USDC", Venue: "expensive", Price: 2500, Fee: 0.01})
	g.AddEdge("WETH", Edge{To: "DAI", Venue: "irrelevant", Price: 2500})

	best, ok := g.BestEdge("WETH", "USDC")
	require.True(t, ok)
	assert.Equal(t, "cheap", best.Venue)
}

func TestGraphBestEdgeNotFound(t *testing.T) {
	g := New()
	_, ok := g.BestEdge("WETH", "USDC")
	assert.False(t, ok)
}

func TestGraphTokens(t *testing.T) {
	g := New()
	g.AddEdge("WETH", Edge{To: "USDC", Price: 2500})
	assert.Contains(t, g.Tokens(), "WETH")
}

func TestBuildFromQuotesAddsBothDirections(t *testing.T) {
	// MakePairKey("WETH", "USDC") canonicalizes to "USDC/WETH" since "USDC" <
	// "WETH" lexicographically, so the forward edge BuildFromQuotes creates
	// runs USDC -> WETH at q.Price, and the mirrored edge WETH -> USDC at
	// 1/q.Price.
	quotes := map[types.QuoteKey]types.Quote{
		{Venue: "uniswapV2"}: {PairKey: types.MakePairKey("WETH", "USDC"), Venue: "uniswapV2", Price: 2500},
	}
	g := BuildFromQuotes(quotes, func(venue string) float64 { return 0.003 })

	forward, ok := g.BestEdge("USDC", "WETH")
	require.True(t, ok)
	assert.Equal(t, 2500.0, forward.Price)

	reverse, ok := g.BestEdge("WETH", "USDC")
	require.True(t, ok)
	assert.InDelta(t, 1.0/2500.0, reverse.Price, 1e-12)
}

func TestBuildFromQuotesSkipsNonPositivePrice(t *testing.T) {
	quotes := map[types.QuoteKey]types.Quote{
		{Venue: "uniswapV2"}: {PairKey: types.MakePairKey("WETH", "USDC"), Venue: "uniswapV2", Price: 0},
	}
	g := BuildFromQuotes(quotes, func(venue string) float64 { return 0 })
	assert.Empty(t, g.Tokens())
}
