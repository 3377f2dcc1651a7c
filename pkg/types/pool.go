package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ReserveState is the constant-product pool state: (reserveA, reserveB) with
// 112-bit precision, matching the packed uint112 pair emitted by sync events.
type ReserveState struct {
	ReserveA *big.Int
	ReserveB *big.Int
}

// ConcentratedState is the concentrated-liquidity pool state.
type ConcentratedState struct {
	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
	Tick         int32
	FeeTier      uint32
}

// Pool is a single contract holding reserves for exactly one trading pair at
// one venue. Exactly one of Reserves/Concentrated is populated, matching
// Venue.Kind.
type Pool struct {
	Address      common.Address
	Venue        Venue
	TokenA       Token
	TokenB       Token
	TierFee      *float64
	Reserves     *ReserveState
	Concentrated *ConcentratedState

	// LiquidityUSD is a configuration-seeded estimate of this pool's total
	// value locked, carried onto every Quote derived from it since neither
	// the Sync/Swap event payloads nor a raw eth_call response carry a USD
	// figure on their own.
	LiquidityUSD float64
}

// PairKey returns the canonical pair key for this pool's two tokens.
func (p Pool) PairKey() PairKey {
	return MakePairKey(p.TokenA.Symbol, p.TokenB.Symbol)
}

// Token0Token1 returns (token0, token1) in lexicographic address order, the
// ordering constant-product reserves are always expressed against.
func (p Pool) Token0Token1() (Token, Token) {
	if bytesLess(p.TokenA.Address, p.TokenB.Address) {
		return p.TokenA, p.TokenB
	}
	return p.TokenB, p.TokenA
}

func bytesLess(a, b common.Address) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Validate checks that a pool carries the state its venue kind needs:
// reserves for a constant-product pool, concentrated state for a
// concentrated pool. Zero reserves are not rejected; HasZeroReserves
// reports them.
func (p Pool) Validate() error {
	if p.Venue.Kind == ConstantProduct {
		if p.Reserves == nil {
			return fmt.Errorf("pool %s: constant-product pool missing reserves", p.Address.Hex())
		}
		t0, _ := p.Token0Token1()
		if t0.Address != p.TokenA.Address && t0.Address != p.TokenB.Address {
			return fmt.Errorf("pool %s: token0 resolution failed", p.Address.Hex())
		}
	}
	if p.Venue.Kind == Concentrated && p.Concentrated == nil {
		return fmt.Errorf("pool %s: concentrated pool missing state", p.Address.Hex())
	}
	return nil
}

// HasZeroReserves reports the reserveA=0 OR reserveB=0 boundary condition
// that every detector must treat as "no opportunity".
func (p Pool) HasZeroReserves() bool {
	if p.Reserves == nil {
		return false
	}
	return p.Reserves.ReserveA.Sign() == 0 || p.Reserves.ReserveB.Sign() == 0
}
