package detectors

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbitrage-sub000/pkg/pricecache"
	"arbitrage-sub000/pkg/types"
)

type fakePoolLookup struct {
	pools map[string]types.Pool
}

func (f *fakePoolLookup) PoolFor(pair types.PairKey, venue string) (types.Pool, bool) {
	p, ok := f.pools[string(pair)+"|"+venue]
	return p, ok
}

func (f *fakePoolLookup) add(pair types.PairKey, venue string, p types.Pool) {
	if f.pools == nil {
		f.pools = make(map[string]types.Pool)
	}
	f.pools[string(pair)+"|"+venue] = p
}

func buildCrossVenuePools(pair types.PairKey) (*fakePoolLookup, *pricecache.Cache) {
	weth := types.Token{Symbol: "WETH", Address: common.HexToAddress("0x01"), Decimals: 0}
	usdc := types.Token{Symbol: "USDC", Address: common.HexToAddress("0x02"), Decimals: 0}

	cheap := types.Pool{
		Address: common.HexToAddress("0x10"),
		Venue:   types.Venue{Name: "cheap", Kind: types.ConstantProduct, Fee: 0.003},
		TokenA:  weth,
		TokenB:  usdc,
		Reserves: &types.ReserveState{
			ReserveA: big.NewInt(1_000_000),
			ReserveB: big.NewInt(2_500_000_000),
		},
	}
	expensive := types.Pool{
		Address: common.HexToAddress("0x11"),
		Venue:   types.Venue{Name: "expensive", Kind: types.ConstantProduct, Fee: 0.003},
		TokenA:  weth,
		TokenB:  usdc,
		Reserves: &types.ReserveState{
			ReserveA: big.NewInt(1_000_000),
			ReserveB: big.NewInt(2_700_000_000),
		},
	}

	lookup := &fakePoolLookup{}
	lookup.add(pair, "cheap", cheap)
	lookup.add(pair, "expensive", expensive)

	cache := pricecache.New()
	cache.Put(types.QuoteKey{TokenA: weth.Address, TokenB: usdc.Address, Venue: "cheap"},
		types.Quote{PairKey: pair, Venue: "cheap", Price: 2500, BlockNumber: 1, LiquidityUSD: 1_000_000})
	cache.Put(types.QuoteKey{TokenA: weth.Address, TokenB: usdc.Address, Venue: "expensive"},
		types.Quote{PairKey: pair, Venue: "expensive", Price: 2700, BlockNumber: 1, LiquidityUSD: 2_000_000})

	return lookup, cache
}

func TestCrossVenueDetectorFindsProfitableSpread(t *testing.T) {
	pair := types.MakePairKey("WETH", "USDC")
	lookup, cache := buildCrossVenuePools(pair)
	defer cache.Stop()

	d := NewCrossVenueDetector(1, cache, lookup, fakeOracle{usd: 1, ok: true}, nil, DefaultConfig(), nil)

	opps := d.Detect(context.Background(), 1, []types.PairKey{pair}, 12*time.Second)
	require.Len(t, opps, 1)
	opp := opps[0]
	assert.Equal(t, types.CrossVenue, opp.Type)
	assert.Equal(t, pair, opp.Pair)
	assert.Greater(t, opp.EstimatedNetProfit, DefaultConfig().MinProfitUSD)
	require.Len(t, opp.Legs, 2)
	assert.Equal(t, "expensive", opp.Legs[0].Venue, "the route sells into the high-priced venue first")
	assert.Equal(t, "cheap", opp.Legs[1].Venue, "then buys back at the low-priced venue")
}

func TestCrossVenueDetectorSkipsSingleVenuePairs(t *testing.T) {
	pair := types.MakePairKey("WETH", "USDC")
	lookup := &fakePoolLookup{}
	cache := pricecache.New()
	defer cache.Stop()
	cache.Put(types.QuoteKey{Venue: "only"}, types.Quote{PairKey: pair, Venue: "only", Price: 2500, BlockNumber: 1})

	d := NewCrossVenueDetector(1, cache, lookup, nil, nil, DefaultConfig(), nil)
	opps := d.Detect(context.Background(), 1, []types.PairKey{pair}, 12*time.Second)
	assert.Empty(t, opps)
}

func TestCrossVenueDetectorSkipsBelowProfitThreshold(t *testing.T) {
	pair := types.MakePairKey("WETH", "USDC")
	weth := types.Token{Symbol: "WETH", Address: common.HexToAddress("0x01"), Decimals: 0}
	usdc := types.Token{Symbol: "USDC", Address: common.HexToAddress("0x02"), Decimals: 0}

	tight := types.Pool{
		Address:  common.HexToAddress("0x10"),
		Venue:    types.Venue{Name: "a", Kind: types.ConstantProduct, Fee: 0.003},
		TokenA:   weth,
		TokenB:   usdc,
		Reserves: &types.ReserveState{ReserveA: big.NewInt(1_000_000), ReserveB: big.NewInt(2_500_000_000)},
	}
	tight2 := tight
	tight2.Address = common.HexToAddress("0x11")
	tight2.Venue = types.Venue{Name: "b", Kind: types.ConstantProduct, Fee: 0.003}
	tight2.Reserves = &types.ReserveState{ReserveA: big.NewInt(1_000_000), ReserveB: big.NewInt(2_500_100_000)}

	lookup := &fakePoolLookup{}
	lookup.add(pair, "a", tight)
	lookup.add(pair, "b", tight2)

	cache := pricecache.New()
	defer cache.Stop()
	cache.Put(types.QuoteKey{TokenA: weth.Address, TokenB: usdc.Address, Venue: "a"}, types.Quote{PairKey: pair, Venue: "a", Price: 2500, BlockNumber: 1})
	cache.Put(types.QuoteKey{TokenA: weth.Address, TokenB: usdc.Address, Venue: "b"}, types.Quote{PairKey: pair, Venue: "b", Price: 2500.1, BlockNumber: 1})

	d := NewCrossVenueDetector(1, cache, lookup, fakeOracle{usd: 1, ok: true}, nil, DefaultConfig(), nil)
	opps := d.Detect(context.Background(), 1, []types.PairKey{pair}, 12*time.Second)
	assert.Empty(t, opps, "spread below minProfitPercent after fees must not emit")
}
