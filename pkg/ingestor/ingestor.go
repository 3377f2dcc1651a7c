package ingestor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"arbitrage-sub000/pkg/chainclient"
	"arbitrage-sub000/pkg/types"
)

// errTooManyPools is returned by RegisterPool once the registry is full.
var errTooManyPools = errors.New("ingestor: maxSubscribed pools reached")

const (
	defaultMaxSubscribed  = 200
	defaultFilterBatch    = 50
	debounceWindow        = 100 * time.Millisecond
	channelCapacity       = 1024
)

// Ingestor subscribes to reserve-change and swap logs for a registry of
// pools, decodes them, debounces per-pool bursts, and exposes the two
// output streams downstream components read from.
type Ingestor struct {
	chainID         uint64
	client          chainclient.ChainClient
	logger          log.Logger
	maxSubscribed   int
	filterBatchSize int

	mu    sync.RWMutex
	pools map[common.Address]poolMeta

	debounceMu sync.Mutex
	lastEmit   map[common.Address]time.Time

	blockMu      sync.Mutex
	updatedPairs map[uint64]map[types.PairKey]struct{}

	reserveUpdates chan ReserveUpdate
	swapEvents     chan SwapObserved

	decodeErrors uint64
	decodeErrMu  sync.Mutex

	cancelSubs []context.CancelFunc
	subsMu     sync.Mutex
}

// Option configures an Ingestor.
type Option func(*Ingestor)

func WithMaxSubscribed(n int) Option     { return func(i *Ingestor) { i.maxSubscribed = n } }
func WithFilterBatchSize(n int) Option   { return func(i *Ingestor) { i.filterBatchSize = n } }
func WithLogger(l log.Logger) Option     { return func(i *Ingestor) { i.logger = l } }

// New constructs an Ingestor bound to one chain's ChainClient.
func New(chainID uint64, client chainclient.ChainClient, opts ...Option) *Ingestor {
	ing := &Ingestor{
		chainID:         chainID,
		client:          client,
		maxSubscribed:   defaultMaxSubscribed,
		filterBatchSize: defaultFilterBatch,
		pools:           make(map[common.Address]poolMeta),
		lastEmit:        make(map[common.Address]time.Time),
		updatedPairs:    make(map[uint64]map[types.PairKey]struct{}),
		reserveUpdates:  make(chan ReserveUpdate, channelCapacity),
		swapEvents:      make(chan SwapObserved, channelCapacity),
	}
	for _, opt := range opts {
		opt(ing)
	}
	if ing.logger == nil {
		ing.logger = log.New("component", "ingestor", "chainId", chainID)
	}
	return ing
}

// ReserveUpdates returns the normalized reserve-change stream.
func (i *Ingestor) ReserveUpdates() <-chan ReserveUpdate { return i.reserveUpdates }

// Swaps returns the normalized swap stream.
func (i *Ingestor) Swaps() <-chan SwapObserved { return i.swapEvents }

// DecodeErrorCount reports the number of logs dropped for decode failures.
func (i *Ingestor) DecodeErrorCount() uint64 {
	i.decodeErrMu.Lock()
	defer i.decodeErrMu.Unlock()
	return i.decodeErrors
}

// RegisteredCount reports how many pools are currently subscribed.
func (i *Ingestor) RegisteredCount() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.pools)
}

// RegisterPool adds pool to the subscription set. If the ingestor is
// already running, the pool is folded into a fresh batched subscription
// immediately; registration beyond maxSubscribed is rejected.
func (i *Ingestor) RegisterPool(ctx context.Context, pool types.Pool) error {
	i.mu.Lock()
	if len(i.pools) >= i.maxSubscribed {
		i.mu.Unlock()
		return errTooManyPools
	}
	i.pools[pool.Address] = poolMeta{pool: pool, pair: pool.PairKey()}
	i.mu.Unlock()

	return i.resubscribe(ctx)
}

// resubscribe tears down the previous batched subscriptions and installs a
// fresh set covering the current pool registry, partitioned into batches of
// filterBatchSize addresses per spec §4.3.
func (i *Ingestor) resubscribe(ctx context.Context) error {
	i.subsMu.Lock()
	for _, cancel := range i.cancelSubs {
		cancel()
	}
	i.cancelSubs = nil
	i.subsMu.Unlock()

	i.mu.RLock()
	addrs := make([]common.Address, 0, len(i.pools))
	for addr := range i.pools {
		addrs = append(addrs, addr)
	}
	i.mu.RUnlock()

	for start := 0; start < len(addrs); start += i.filterBatchSize {
		end := start + i.filterBatchSize
		if end > len(addrs) {
			end = len(addrs)
		}
		batch := addrs[start:end]
		subCtx, cancel := context.WithCancel(ctx)
		i.subsMu.Lock()
		i.cancelSubs = append(i.cancelSubs, cancel)
		i.subsMu.Unlock()

		filter := chainclient.LogFilter{
			Addresses: batch,
			Topics:    [][]common.Hash{{SyncTopic}},
		}
		if err := i.subscribeBatch(subCtx, filter); err != nil {
			i.logger.Warn("subscription install failed", "err", err)
		}

		swapFilter := chainclient.LogFilter{
			Addresses: batch,
			Topics:    [][]common.Hash{{SwapTopic}},
		}
		if err := i.subscribeBatch(subCtx, swapFilter); err != nil {
			i.logger.Warn("swap subscription install failed", "err", err)
		}
	}
	return nil
}

func (i *Ingestor) subscribeBatch(ctx context.Context, filter chainclient.LogFilter) error {
	logs, errs, err := i.client.SubscribeLogs(ctx, filter)
	if err != nil {
		return err
	}
	go i.consume(ctx, logs, errs)
	return nil
}

func (i *Ingestor) consume(ctx context.Context, logs <-chan chainclient.Log, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if ok && err != nil {
				i.logger.Warn("log subscription error, will rely on resubscribe", "err", err)
			}
			return
		case l, ok := <-logs:
			if !ok {
				return
			}
			i.handleLog(l)
		}
	}
}

func (i *Ingestor) handleLog(l chainclient.Log) {
	if len(l.Topics) == 0 {
		return
	}
	if !i.shouldEmit(l.Address) {
		return
	}

	switch l.Topics[0] {
	case SyncTopic:
		update, err := decodeSync(l)
		if err != nil {
			i.recordDecodeError(err)
			return
		}
		i.markUpdated(update.Pool, update.BlockNumber)
		i.trySend(update)
	case SwapTopic:
		swap, err := decodeSwap(l)
		if err != nil {
			i.recordDecodeError(err)
			return
		}
		i.markUpdated(swap.Pool, swap.BlockNumber)
		i.trySendSwap(swap)
	}
}

// shouldEmit implements the 100ms per-pool debounce: the first log for a
// pool is emitted, and a later log for it that arrives within debounceWindow
// of the previous one is dropped. A dropped log is not emitted in place of
// the earlier one, and every dropped log restarts the window.
func (i *Ingestor) shouldEmit(pool common.Address) bool {
	i.debounceMu.Lock()
	defer i.debounceMu.Unlock()
	now := time.Now()
	if last, ok := i.lastEmit[pool]; ok && now.Sub(last) < debounceWindow {
		i.lastEmit[pool] = now
		return false
	}
	i.lastEmit[pool] = now
	return true
}

func (i *Ingestor) markUpdated(pool common.Address, block uint64) {
	i.mu.RLock()
	meta, ok := i.pools[pool]
	i.mu.RUnlock()
	if !ok {
		return
	}
	i.blockMu.Lock()
	defer i.blockMu.Unlock()
	set, ok := i.updatedPairs[block]
	if !ok {
		set = make(map[types.PairKey]struct{})
		i.updatedPairs[block] = set
	}
	set[meta.pair] = struct{}{}

	// Bound memory: keep only a small trailing window of blocks.
	if len(i.updatedPairs) > 16 {
		var oldest uint64 = ^uint64(0)
		for b := range i.updatedPairs {
			if b < oldest {
				oldest = b
			}
		}
		delete(i.updatedPairs, oldest)
	}
}

// UpdatedInBlock returns the set of pairs that received at least one
// reserve-change or swap event in block B, consumed by the Price Fetcher.
func (i *Ingestor) UpdatedInBlock(block uint64) map[types.PairKey]struct{} {
	i.blockMu.Lock()
	defer i.blockMu.Unlock()
	set, ok := i.updatedPairs[block]
	if !ok {
		return nil
	}
	out := make(map[types.PairKey]struct{}, len(set))
	for k := range set {
		out[k] = struct{}{}
	}
	return out
}

func (i *Ingestor) trySend(u ReserveUpdate) {
	select {
	case i.reserveUpdates <- u:
	default:
		select {
		case <-i.reserveUpdates:
		default:
		}
		select {
		case i.reserveUpdates <- u:
		default:
		}
	}
}

func (i *Ingestor) trySendSwap(s SwapObserved) {
	select {
	case i.swapEvents <- s:
	default:
		select {
		case <-i.swapEvents:
		default:
		}
		select {
		case i.swapEvents <- s:
		default:
		}
	}
}

func (i *Ingestor) recordDecodeError(err error) {
	i.decodeErrMu.Lock()
	i.decodeErrors++
	i.decodeErrMu.Unlock()
	i.logger.Debug("log decode failed, dropping", "err", err)
}

// Stop cancels all installed subscriptions.
func (i *Ingestor) Stop() {
	i.subsMu.Lock()
	defer i.subsMu.Unlock()
	for _, cancel := range i.cancelSubs {
		cancel()
	}
	i.cancelSubs = nil
}
