package util

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptimalTradeSizeFindsInteriorMaximum(t *testing.T) {
	// profit(x) = -(x-500)^2 + 10000, maximized at x=500.
	profit := func(amountIn *big.Int) *big.Int {
		diff := new(big.Int).Sub(amountIn, big.NewInt(500))
		sq := new(big.Int).Mul(diff, diff)
		return new(big.Int).Sub(big.NewInt(10000), sq)
	}

	best := OptimalTradeSize(big.NewInt(0), big.NewInt(1000), profit)
	assert.InDelta(t, 500, best.Int64(), 5)
}

func TestOptimalTradeSizeDegenerateRange(t *testing.T) {
	profit := func(amountIn *big.Int) *big.Int { return amountIn }
	best := OptimalTradeSize(big.NewInt(10), big.NewInt(10), profit)
	assert.Equal(t, big.NewInt(10), best)

	best = OptimalTradeSize(big.NewInt(10), big.NewInt(5), profit)
	assert.Equal(t, big.NewInt(10), best)
}

func TestOptimalTradeSizeMonotonicProfitPicksUpperBound(t *testing.T) {
	profit := func(amountIn *big.Int) *big.Int { return amountIn }
	best := OptimalTradeSize(big.NewInt(0), big.NewInt(1000), profit)
	assert.InDelta(t, 1000, best.Int64(), 5)
}
