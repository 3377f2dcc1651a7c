package types

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestPoolToken0Token1(t *testing.T) {
	lo := Token{Symbol: "AAA", Address: common.HexToAddress("0x0000000000000000000000000000000000000001")}
	hi := Token{Symbol: "BBB", Address: common.HexToAddress("0x0000000000000000000000000000000000000002")}

	t.Run("TokenA_is_token0", func(t *testing.T) {
		p := Pool{TokenA: lo, TokenB: hi}
		t0, t1 := p.Token0Token1()
		assert.Equal(t, lo, t0)
		assert.Equal(t, hi, t1)
	})

	t.Run("TokenB_is_token0", func(t *testing.T) {
		p := Pool{TokenA: hi, TokenB: lo}
		t0, t1 := p.Token0Token1()
		assert.Equal(t, lo, t0)
		assert.Equal(t, hi, t1)
	})
}

func TestPoolPairKeyIsOrderIndependent(t *testing.T) {
	weth := Token{Symbol: "WETH"}
	usdc := Token{Symbol: "USDC"}

	a := Pool{TokenA: weth, TokenB: usdc}
	b := Pool{TokenA: usdc, TokenB: weth}

	assert.Equal(t, a.PairKey(), b.PairKey())
}

func TestPoolHasZeroReserves(t *testing.T) {
	t.Run("nil_reserves_is_not_zero", func(t *testing.T) {
		p := Pool{}
		assert.False(t, p.HasZeroReserves())
	})

	t.Run("one_zero_reserve_is_zero", func(t *testing.T) {
		p := Pool{Reserves: &ReserveState{ReserveA: big.NewInt(0), ReserveB: big.NewInt(1)}}
		assert.True(t, p.HasZeroReserves())
	})

	t.Run("nonzero_reserves_is_not_zero", func(t *testing.T) {
		p := Pool{Reserves: &ReserveState{ReserveA: big.NewInt(1), ReserveB: big.NewInt(1)}}
		assert.False(t, p.HasZeroReserves())
	})
}

func TestPoolValidate(t *testing.T) {
	t.Run("constant_product_missing_reserves_is_invalid", func(t *testing.T) {
		p := Pool{Venue: Venue{Kind: ConstantProduct}}
		assert.Error(t, p.Validate())
	})

	t.Run("concentrated_missing_state_is_invalid", func(t *testing.T) {
		p := Pool{Venue: Venue{Kind: Concentrated}}
		assert.Error(t, p.Validate())
	})

	t.Run("well_formed_constant_product_pool_is_valid", func(t *testing.T) {
		p := Pool{
			Venue:    Venue{Kind: ConstantProduct},
			TokenA:   Token{Address: common.HexToAddress("0x01")},
			TokenB:   Token{Address: common.HexToAddress("0x02")},
			Reserves: &ReserveState{ReserveA: big.NewInt(1), ReserveB: big.NewInt(1)},
		}
		assert.NoError(t, p.Validate())
	})
}

func TestMakePairKeyCanonicalOrdering(t *testing.T) {
	assert.Equal(t, MakePairKey("WETH", "USDC"), MakePairKey("USDC", "WETH"))
	assert.Equal(t, PairKey("USDC/WETH"), MakePairKey("WETH", "USDC"))
}

func TestSplitPairKeyRoundTrips(t *testing.T) {
	key := MakePairKey("WETH", "USDC")
	a, b := SplitPairKey(key)
	assert.Equal(t, "USDC", a)
	assert.Equal(t, "WETH", b)
}
