// Package pricefetcher implements the Price Fetcher (component C7): on each
// block tick it partitions all known pairs into those already fresh from
// events, those the prioritizer says can be skipped this block, and those
// that need an RPC read, then batches the reads via the ChainClient's
// multicall facility. Grounded on the teacher's GetAMMState
// safelyGetStateOfAMM batching idiom, generalized from one pool at a time to
// a bounded multicall batch.
package pricefetcher

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/log"

	"arbitrage-sub000/pkg/chainclient"
	"arbitrage-sub000/pkg/pricecache"
	"arbitrage-sub000/pkg/prioritizer"
	"arbitrage-sub000/pkg/types"
)

const multicallBatchSize = 50

// PoolReader resolves the live on-chain state of one pool into a Quote; the
// caller supplies this because reading raw reserves vs. sqrtPriceX96 is
// venue-kind-specific and decoded via the pool's own ABI upstream of this
// package.
type PoolReader interface {
	// CallMsg builds the eth_call this pool needs for its current state.
	CallMsg(pool types.Pool) chainclient.CallMsg
	// Decode turns the raw return data for pool into a Quote at blockNumber.
	Decode(pool types.Pool, data []byte, blockNumber uint64) (types.Quote, error)
}

// Fetcher runs the per-block fetch-vs-reuse decision for one chain.
type Fetcher struct {
	client chainclient.ChainClient
	cache  *pricecache.Cache
	prio   *prioritizer.Prioritizer
	reader PoolReader
	logger log.Logger
}

// New constructs a Fetcher.
func New(client chainclient.ChainClient, cache *pricecache.Cache, prio *prioritizer.Prioritizer, reader PoolReader, logger log.Logger) *Fetcher {
	if logger == nil {
		logger = log.New("component", "pricefetcher")
	}
	return &Fetcher{client: client, cache: cache, prio: prio, reader: reader, logger: logger}
}

// FetchBlock implements the algorithm from spec §4.7. updatedInBlock is the
// set of pairs C3 already saw a fresh event for at block B; allPools is
// every known pool across all pairs. It returns the merged snapshot of
// (pairKey -> venue -> Quote) covering exactly the pairs considered.
func (f *Fetcher) FetchBlock(ctx context.Context, block uint64, allPools []types.Pool, updatedInBlock map[types.PairKey]struct{}) map[types.PairKey]map[string]types.Quote {
	fresh := make(map[types.PairKey]map[string]types.Quote)
	var toFetch []types.Pool

	for _, pool := range allPools {
		pair := pool.PairKey()
		_, eventUpdated := updatedInBlock[pair]

		if eventUpdated && f.allVenuesFreshForBlock(pair, block) {
			fresh[pair] = f.cache.GetPair(pair)
			continue
		}
		if !f.prio.ShouldCheck(pair, block) {
			if venues := f.cache.GetPair(pair); venues != nil {
				fresh[pair] = venues
			}
			continue
		}
		toFetch = append(toFetch, pool)
	}

	fetched := f.batchFetch(ctx, toFetch, block)
	for pair, venues := range fetched {
		fresh[pair] = venues
	}
	return fresh
}

func (f *Fetcher) allVenuesFreshForBlock(pair types.PairKey, block uint64) bool {
	venues := f.cache.GetPair(pair)
	if len(venues) == 0 {
		return false
	}
	for _, q := range venues {
		if !q.IsFreshForBlock(block) {
			return false
		}
	}
	return true
}

// batchFetch reads toFetch in groups of up to multicallBatchSize via the
// ChainClient's BatchCall, tolerating partial failures: a pool whose call
// fails or fails to decode is simply omitted, per the C7 contract that no
// exception propagates and stale C4 values are left untouched.
func (f *Fetcher) batchFetch(ctx context.Context, toFetch []types.Pool, block uint64) map[types.PairKey]map[string]types.Quote {
	out := make(map[types.PairKey]map[string]types.Quote)
	blockBig := new(big.Int).SetUint64(block)

	for start := 0; start < len(toFetch); start += multicallBatchSize {
		end := start + multicallBatchSize
		if end > len(toFetch) {
			end = len(toFetch)
		}
		batch := toFetch[start:end]

		msgs := make([]chainclient.CallMsg, len(batch))
		for i, pool := range batch {
			msgs[i] = f.reader.CallMsg(pool)
		}

		results, err := f.client.BatchCall(ctx, msgs, blockBig)
		if err != nil {
			f.logger.Warn("batch fetch failed entirely, pairs stay stale", "count", len(batch), "err", err)
			continue
		}

		for i, pool := range batch {
			if i >= len(results) || results[i] == nil {
				continue
			}
			q, err := f.reader.Decode(pool, results[i], block)
			if err != nil {
				f.logger.Debug("pool decode failed, skipping", "pool", pool.Address.Hex(), "err", err)
				continue
			}
			key := types.QuoteKey{TokenA: pool.TokenA.Address, TokenB: pool.TokenB.Address, Venue: pool.Venue.Name}
			f.cache.Put(key, q)

			pair := pool.PairKey()
			if out[pair] == nil {
				out[pair] = make(map[string]types.Quote)
			}
			out[pair][pool.Venue.Name] = q
		}
	}
	return out
}
