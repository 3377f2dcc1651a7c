package pricefetcher

import (
	"context"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbitrage-sub000/pkg/chainclient"
	"arbitrage-sub000/pkg/pricecache"
	"arbitrage-sub000/pkg/prioritizer"
	"arbitrage-sub000/pkg/types"
)

type countingChainClient struct {
	batchCalls int32
	results    [][]byte
	err        error
}

func (c *countingChainClient) Call(ctx context.Context, msg chainclient.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, nil
}
func (c *countingChainClient) BatchCall(ctx context.Context, msgs []chainclient.CallMsg, blockNumber *big.Int) ([][]byte, error) {
	atomic.AddInt32(&c.batchCalls, 1)
	if c.err != nil {
		return nil, c.err
	}
	return c.results, nil
}
func (c *countingChainClient) SubscribeLogs(ctx context.Context, filter chainclient.LogFilter) (<-chan chainclient.Log, <-chan error, error) {
	return nil, nil, nil
}
func (c *countingChainClient) SubscribeNewHead(ctx context.Context) (<-chan chainclient.BlockHead, <-chan error, error) {
	return nil, nil, nil
}
func (c *countingChainClient) BlockByNumber(ctx context.Context, number *big.Int) (chainclient.BlockHead, error) {
	return chainclient.BlockHead{}, nil
}
func (c *countingChainClient) FilterLogs(ctx context.Context, filter chainclient.LogFilter) ([]chainclient.Log, error) {
	return nil, nil
}
func (c *countingChainClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) { return nil, nil }
func (c *countingChainClient) ChainID(ctx context.Context) (uint64, error)           { return 1, nil }
func (c *countingChainClient) Close()                                               {}

type fakeReader struct {
	price float64
}

func (f fakeReader) CallMsg(pool types.Pool) chainclient.CallMsg {
	return chainclient.CallMsg{To: pool.Address}
}
func (f fakeReader) Decode(pool types.Pool, data []byte, blockNumber uint64) (types.Quote, error) {
	return types.Quote{PairKey: pool.PairKey(), Venue: pool.Venue.Name, Price: f.price, BlockNumber: blockNumber, Source: types.SourceRPCFetch}, nil
}

func testPool(venue string) types.Pool {
	return types.Pool{
		Address: common.HexToAddress("0x10"),
		Venue:   types.Venue{Name: venue},
		TokenA:  types.Token{Symbol: "WETH", Address: common.HexToAddress("0x01")},
		TokenB:  types.Token{Symbol: "USDC", Address: common.HexToAddress("0x02")},
	}
}

func TestFetchBlockSkipsEventFreshPairs(t *testing.T) {
	pool := testPool("v1")
	pair := pool.PairKey()

	cache := pricecache.New()
	defer cache.Stop()
	cache.Put(types.QuoteKey{TokenA: pool.TokenA.Address, TokenB: pool.TokenB.Address, Venue: "v1"}, types.Quote{
		PairKey: pair, Venue: "v1", Price: 2500, BlockNumber: 10, ObservedAt: time.Now(), Source: types.SourceSyncEvent,
	})

	client := &countingChainClient{}
	prio := prioritizer.New(prioritizer.DefaultConfig())
	f := New(client, cache, prio, fakeReader{price: 9999}, nil)

	updated := map[types.PairKey]struct{}{pair: {}}
	out := f.FetchBlock(context.Background(), 11, []types.Pool{pool}, updated)

	require.Contains(t, out, pair)
	assert.Equal(t, 2500.0, out[pair]["v1"].Price, "an event-fresh pair must not trigger an RPC fetch")
	assert.EqualValues(t, 0, client.batchCalls)
}

func TestFetchBlockSkipsWhenPrioritizerSamplingSaysNo(t *testing.T) {
	pool := testPool("v1")
	pair := pool.PairKey()

	cache := pricecache.New()
	defer cache.Stop()
	cache.Put(types.QuoteKey{TokenA: pool.TokenA.Address, TokenB: pool.TokenB.Address, Venue: "v1"}, types.Quote{
		PairKey: pair, Venue: "v1", Price: 1800, BlockNumber: 1, ObservedAt: time.Now(), Source: types.SourceRPCFetch,
	})

	client := &countingChainClient{}
	prio := prioritizer.New(prioritizer.DefaultConfig())
	prio.RegisterPair(pair, 0, 1_000_000) // low volume, ample liquidity -> NORMAL tier, sampling period > 1
	f := New(client, cache, prio, fakeReader{price: 9999}, nil)

	out := f.FetchBlock(context.Background(), 1, []types.Pool{pool}, nil)
	// NORMAL tier's sampling period is 3 blocks, so block 1 is off-cadence and
	// the stale cached value is reused rather than triggering a fetch.
	assert.EqualValues(t, 0, client.batchCalls)
	assert.Equal(t, 1800.0, out[pair]["v1"].Price)
}

func TestFetchBlockFetchesUnknownPairs(t *testing.T) {
	pool := testPool("v1")
	pair := pool.PairKey()

	cache := pricecache.New()
	defer cache.Stop()
	client := &countingChainClient{results: [][]byte{{0x01}}}
	prio := prioritizer.New(prioritizer.DefaultConfig())
	f := New(client, cache, prio, fakeReader{price: 3000}, nil)

	out := f.FetchBlock(context.Background(), 5, []types.Pool{pool}, nil)
	require.Contains(t, out, pair)
	assert.Equal(t, 3000.0, out[pair]["v1"].Price)
	assert.EqualValues(t, 1, client.batchCalls)

	cached, ok := cache.Get(types.QuoteKey{TokenA: pool.TokenA.Address, TokenB: pool.TokenB.Address, Venue: "v1"})
	require.True(t, ok)
	assert.Equal(t, 3000.0, cached.Price)
}

func TestBatchFetchToleratesWholeBatchFailure(t *testing.T) {
	pool := testPool("v1")
	cache := pricecache.New()
	defer cache.Stop()
	client := &countingChainClient{err: assertErr{}}
	prio := prioritizer.New(prioritizer.DefaultConfig())
	f := New(client, cache, prio, fakeReader{price: 3000}, nil)

	out := f.FetchBlock(context.Background(), 5, []types.Pool{pool}, nil)
	assert.Empty(t, out, "a failed batch call must leave prior cache state untouched, not propagate an error")
}

type assertErr struct{}

func (assertErr) Error() string { return "batch call failed" }
