package pricegraph

import "arbitrage-sub000/pkg/types"

// VenueFee resolves a venue's taker fee as a fraction of input, used to
// price graph edges; the graph itself is fee-type-agnostic.
type VenueFee func(venue string) float64

// BuildFromQuotes rebuilds a fresh Graph from a snapshot of cached quotes.
// Each quote yields two directed edges (base->quote at Price, quote->base at
// 1/Price) since a constant-product or concentrated pool can always be
// swapped in either direction.
func BuildFromQuotes(quotes map[types.QuoteKey]types.Quote, fee VenueFee) *Graph {
	g := New()
	for _, q := range quotes {
		if q.Price <= 0 {
			continue
		}
		a, b := types.SplitPairKey(q.PairKey)
		if b == "" {
			continue
		}
		f := fee(q.Venue)
		g.AddEdge(a, Edge{To: b, Venue: q.Venue, Price: q.Price, Fee: f, LiquidityUSD: q.LiquidityUSD})
		g.AddEdge(b, Edge{To: a, Venue: q.Venue, Price: 1 / q.Price, Fee: f, LiquidityUSD: q.LiquidityUSD})
	}
	return g
}
