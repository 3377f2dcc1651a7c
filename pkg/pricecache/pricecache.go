// Package pricecache implements the Price Cache (component C4): a
// concurrent key→Quote store with last-writer-wins semantics, a reverse
// pairKey→venues index, and bounded age enforcement, grounded on the
// teacher's use of sync.Map-free, mutex-guarded state in its ContractClient:
// one RWMutex guards both the key map and the pair index.
package pricecache

import (
	"sync"
	"time"

	"arbitrage-sub000/pkg/types"
)

// maxAgeBlocks is the age limit from spec §4.4: the periodic sweep purges
// entries more than this many blocks behind the current chain head. Get and
// GetPair do not check age, so between sweeps an older entry can still be
// returned.
const maxAgeBlocks = 128

// sweepInterval is how often the periodic purge of stale entries runs.
const sweepInterval = 60 * time.Second

// Cache is the per-chain price cache. One Cache instance is owned by a
// single ChainCoordinator; it is safe for concurrent use by many readers
// and writers.
type Cache struct {
	mu      sync.RWMutex
	byKey   map[types.QuoteKey]types.Quote
	byPair  map[types.PairKey]map[string]types.QuoteKey // venue name -> key

	stopSweep chan struct{}
}

// New constructs an empty Cache. It does not start the periodic sweep;
// RunSweep does.
func New() *Cache {
	c := &Cache{
		byKey:     make(map[types.QuoteKey]types.Quote),
		byPair:    make(map[types.PairKey]map[string]types.QuoteKey),
		stopSweep: make(chan struct{}),
	}
	return c
}

// RunSweep starts the 60s periodic purge; call it once after construction,
// typically from the owning ChainCoordinator's start().
func (c *Cache) RunSweep(currentBlock func() uint64) {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-c.stopSweep:
				return
			case <-ticker.C:
				c.InvalidateOlderThan(currentBlock(), maxAgeBlocks)
			}
		}
	}()
}

// Stop ends the periodic sweep goroutine.
func (c *Cache) Stop() { close(c.stopSweep) }

// Put inserts q under key, applying the last-writer-wins rule: a strictly
// newer block always replaces the stored value; within the same block the
// later ObservedAt wins; otherwise the write is silently ignored. key
// carries the token addresses; q.PairKey carries the symbol-pair used by
// the reverse index since Quote itself is address-agnostic.
func (c *Cache) Put(key types.QuoteKey, q types.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.byKey[key]; ok && !newer(q, existing) {
		return
	}
	c.byKey[key] = q

	venues, ok := c.byPair[q.PairKey]
	if !ok {
		venues = make(map[string]types.QuoteKey)
		c.byPair[q.PairKey] = venues
	}
	venues[q.Venue] = key
}

// newer implements the (blockNumber, observedAt) comparator from spec §4.4.
func newer(a, b types.Quote) bool {
	if a.BlockNumber != b.BlockNumber {
		return a.BlockNumber > b.BlockNumber
	}
	return a.ObservedAt.After(b.ObservedAt)
}

// Get returns the quote for a single (tokenA, tokenB, venue) key.
func (c *Cache) Get(key types.QuoteKey) (types.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.byKey[key]
	return q, ok
}

// GetPair returns every venue's quote currently cached for pairKey.
func (c *Cache) GetPair(pair types.PairKey) map[string]types.Quote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	venues, ok := c.byPair[pair]
	if !ok {
		return nil
	}
	out := make(map[string]types.Quote, len(venues))
	for venue, key := range venues {
		if q, ok := c.byKey[key]; ok {
			out[venue] = q
		}
	}
	return out
}

// FreshForBlock reports whether the quote at key is fresh for block B per
// the Quote.IsFreshForBlock rule.
func (c *Cache) FreshForBlock(key types.QuoteKey, block uint64) bool {
	q, ok := c.Get(key)
	if !ok {
		return false
	}
	return q.IsFreshForBlock(block)
}

// InvalidateOlderThan purges every entry whose block age exceeds maxAge
// relative to currentBlock. Within this package only the sweep started by
// RunSweep calls it; reads never purge.
func (c *Cache) InvalidateOlderThan(currentBlock uint64, maxAge uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, q := range c.byKey {
		if currentBlock > q.BlockNumber && currentBlock-q.BlockNumber > maxAge {
			delete(c.byKey, key)
			if venues, ok := c.byPair[q.PairKey]; ok {
				delete(venues, q.Venue)
				if len(venues) == 0 {
					delete(c.byPair, q.PairKey)
				}
			}
		}
	}
}

// Pairs returns every PairKey currently tracked by the cache, in no
// particular order, regardless of freshness.
func (c *Cache) Pairs() []types.PairKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.PairKey, 0, len(c.byPair))
	for p := range c.byPair {
		out = append(out, p)
	}
	return out
}

// Snapshot returns a copy of every cached quote keyed by its QuoteKey, for
// callers (the Triangular Detector's price graph rebuild) that need to scan
// the whole cache rather than one pair at a time.
func (c *Cache) Snapshot() map[types.QuoteKey]types.Quote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[types.QuoteKey]types.Quote, len(c.byKey))
	for k, v := range c.byKey {
		out[k] = v
	}
	return out
}

// Len reports the number of cached quotes, for tests and status reporting.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byKey)
}
