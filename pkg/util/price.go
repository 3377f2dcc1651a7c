// Package util holds the arbitrage-math helpers shared by the price graph
// and the detectors: constant-product quoting, overflow-safe big.Int-to-
// float64 narrowing, and profit-maximizing trade-size search.
package util

import (
	"math"
	"math/big"

	"arbitrage-sub000/pkg/types"
)

// maxSafeFloatMantissa bounds the big.Int magnitude narrowed directly to a
// float64 without loss beyond the mantissa's 53 bits becoming misleading for
// ratio comparisons; above it callers fall back to ratio-only big.Int math.
var maxSafeFloatMantissa = new(big.Int).Lsh(big.NewInt(1), 200)

// BigRatioToFloat64 converts num/den to a float64, reporting an overflow
// error instead of silently losing precision when either operand would not
// round-trip safely through float64.
func BigRatioToFloat64(num, den *big.Int) (float64, error) {
	if den.Sign() == 0 {
		return 0, &types.OverflowError{Context: "division by zero reserve"}
	}
	if absCmp(num) > 0 || absCmp(den) > 0 {
		return ratioOnly(num, den), &types.OverflowError{Context: "big.Int ratio exceeded safe float range"}
	}
	f := new(big.Float).Quo(new(big.Float).SetInt(num), new(big.Float).SetInt(den))
	v, _ := f.Float64()
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return ratioOnly(num, den), &types.OverflowError{Context: "float64 conversion produced inf/nan"}
	}
	return v, nil
}

func absCmp(v *big.Int) int {
	a := new(big.Int).Abs(v)
	return a.Cmp(maxSafeFloatMantissa)
}

// ratioOnly divides using big.Rat, the fallback path spec §7 requires when a
// float64 conversion would overflow: the result is still a float64 but
// derived from exact rational arithmetic first.
func ratioOnly(num, den *big.Int) float64 {
	r := new(big.Rat).SetFrac(num, den)
	f, _ := r.Float64()
	return f
}

// ConstantProductPrice returns reserveB/reserveA, the spot price of tokenA in
// terms of tokenB for an x*y=k pool with the reserves in that order.
func ConstantProductPrice(reserveA, reserveB *big.Int) (float64, error) {
	return BigRatioToFloat64(reserveB, reserveA)
}

// q96 is 2^96, the fixed-point base sqrtPriceX96 is expressed in.
var q96 = new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), 96))

// SqrtPriceX96ToPrice converts a concentrated-liquidity pool's sqrtPriceX96
// slot into the spot price of token1 per unit of token0, adjusting for the
// two tokens' decimal places, matching the standard
// (sqrtPriceX96/2^96)^2 * 10^(decimals0-decimals1) conversion.
func SqrtPriceX96ToPrice(sqrtPriceX96 *big.Int, decimals0, decimals1 uint8) float64 {
	sqrtPrice := new(big.Float).Quo(new(big.Float).SetInt(sqrtPriceX96), q96)
	price := new(big.Float).Mul(sqrtPrice, sqrtPrice)

	if decimals0 > decimals1 {
		scale := new(big.Float).SetInt(pow10(decimals0 - decimals1))
		price.Mul(price, scale)
	} else if decimals1 > decimals0 {
		scale := new(big.Float).SetInt(pow10(decimals1 - decimals0))
		price.Quo(price, scale)
	}

	out, _ := price.Float64()
	return out
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// ConstantProductAmountOut implements the standard x*y=k swap formula with a
// proportional fee taken from the input, matching the Uniswap-v2-style
// getAmountOut computation.
func ConstantProductAmountOut(amountIn, reserveIn, reserveOut *big.Int, feeFraction float64) *big.Int {
	if amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return big.NewInt(0)
	}
	feeBps := int64((1 - feeFraction) * 10000)
	amountInWithFee := new(big.Int).Mul(amountIn, big.NewInt(feeBps))
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(10000))
	denominator.Add(denominator, amountInWithFee)
	if denominator.Sign() == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Div(numerator, denominator)
}
