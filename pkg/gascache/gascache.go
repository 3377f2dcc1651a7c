// Package gascache implements the Gas Cache (component C5): a short-TTL,
// request-coalescing cache for the chain's current gas price, with a
// stale-value fallback on fetch failure. Grounded on the teacher's
// TxListener.WaitForTransaction single-flight-style wait pattern,
// generalized to a periodic value fetch instead of a one-shot transaction
// wait.
package gascache

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

const (
	ttl           = 2000 * time.Millisecond
	staleFallback = 10 * ttl
)

// FetchFunc retrieves the current gas price from the chain.
type FetchFunc func(ctx context.Context) (*big.Int, error)

// StaleFallbackEvent is emitted whenever a stale value is returned in place
// of a failed fresh fetch.
type StaleFallbackEvent struct {
	Age time.Duration
	Err error
}

// Cache is a single-chain gas price cache with request coalescing: only one
// fetch is ever in flight at a time, and concurrent callers during that
// fetch all observe its result.
type Cache struct {
	logger log.Logger

	mu         sync.Mutex
	value      *big.Int
	fetchedAt  time.Time
	pending    chan struct{} // non-nil while a fetch is in flight
	pendingErr error

	fallbackEvents chan StaleFallbackEvent
}

// New constructs an empty Cache.
func New(logger log.Logger) *Cache {
	if logger == nil {
		logger = log.New("component", "gascache")
	}
	return &Cache{logger: logger, fallbackEvents: make(chan StaleFallbackEvent, 16)}
}

// StaleFallbacks returns the stream of stale-fallback telemetry events.
func (c *Cache) StaleFallbacks() <-chan StaleFallbackEvent { return c.fallbackEvents }

// GetGasPrice implements the four-step algorithm from spec §4.5: return a
// fresh value if one exists, otherwise coalesce onto an in-flight fetch or
// start a new one, and fall back to a stale value if the fetch fails.
func (c *Cache) GetGasPrice(ctx context.Context, fetch FetchFunc) (*big.Int, error) {
	c.mu.Lock()
	if c.value != nil && time.Since(c.fetchedAt) < ttl {
		v := c.value
		c.mu.Unlock()
		return v, nil
	}

	if c.pending != nil {
		wait := c.pending
		c.mu.Unlock()
		<-wait
		return c.resultAfterWait()
	}

	done := make(chan struct{})
	c.pending = done
	c.mu.Unlock()

	v, err := fetch(ctx)

	c.mu.Lock()
	if err == nil {
		c.value = v
		c.fetchedAt = time.Now()
		c.pendingErr = nil
	} else {
		c.pendingErr = err
	}
	pendingDone := c.pending
	c.pending = nil
	stale := c.value
	staleAge := time.Since(c.fetchedAt)
	c.mu.Unlock()
	close(pendingDone)

	if err == nil {
		return v, nil
	}

	if stale != nil && staleAge <= staleFallback {
		c.emitFallback(staleAge, err)
		return stale, nil
	}
	return nil, err
}

func (c *Cache) resultAfterWait() (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pendingErr == nil && c.value != nil {
		return c.value, nil
	}
	if c.value != nil && time.Since(c.fetchedAt) <= staleFallback {
		return c.value, nil
	}
	return nil, c.pendingErr
}

func (c *Cache) emitFallback(age time.Duration, err error) {
	c.logger.Warn("gas price fetch failed, using stale value", "age", age, "err", err)
	select {
	case c.fallbackEvents <- StaleFallbackEvent{Age: age, Err: err}:
	default:
	}
}
