package util

import "math/big"

// TwoPoolProfit is the closed-form net-output function for routing amountIn
// through poolA (reserveInA -> reserveOutA) then poolB (reserveOutA's token
// back through poolB), used as the objective the ternary search maximizes.
type TwoPoolProfit func(amountIn *big.Int) (profit *big.Int)

// OptimalTradeSize performs a ternary search for the amountIn in
// [lo, hi] maximizing a unimodal profit function, the shape the
// constant-product cross-venue arbitrage profit curve always has. It runs a
// fixed number of iterations rather than looping to a numeric tolerance,
// keeping the per-block cost bounded.
func OptimalTradeSize(lo, hi *big.Int, profit TwoPoolProfit) *big.Int {
	if lo.Cmp(hi) >= 0 {
		return lo
	}
	const iterations = 40
	for i := 0; i < iterations; i++ {
		if lo.Cmp(hi) >= 0 {
			break
		}
		diff := new(big.Int).Sub(hi, lo)
		if diff.Sign() <= 0 {
			break
		}
		third := new(big.Int).Div(diff, big.NewInt(3))
		m1 := new(big.Int).Add(lo, third)
		m2 := new(big.Int).Sub(hi, third)
		if profit(m1).Cmp(profit(m2)) < 0 {
			lo = new(big.Int).Add(m1, big.NewInt(1))
		} else {
			hi = new(big.Int).Sub(m2, big.NewInt(1))
			if hi.Cmp(lo) < 0 {
				hi = lo
			}
		}
	}
	best := lo
	if profit(hi).Cmp(profit(best)) > 0 {
		best = hi
	}
	return best
}
