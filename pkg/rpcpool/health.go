// Package rpcpool implements the weighted, health-tracked RPC endpoint pool
// (component C1): endpoint selection with randomized weighting, failover on
// consecutive failures, exponential backoff with jitter, and a degraded-pool
// warning event, grounded on the teacher's ethclient.Dial-based wiring in
// cmd/main.go generalized to a pool of many such clients.
package rpcpool

import (
	"sync"
	"sync/atomic"
	"time"
)

// healthRecord tracks one endpoint's recent call outcomes. Fields are
// accessed under the owning endpoint's mutex except the atomically-updated
// counters used by the hot path selection logic.
type healthRecord struct {
	consecutiveFailures int32 // atomic
	lastSuccessAt       atomic.Int64 // unix nanos
	lastFailureAt       atomic.Int64
	latencyEMA          atomic.Int64 // nanoseconds, fixed-point

	mu          sync.Mutex
	totalCalls  uint64
	totalErrors uint64
}

const latencyEMAAlphaPercent = 20 // new sample weight, out of 100

func (h *healthRecord) recordSuccess(latency time.Duration) {
	atomic.StoreInt32(&h.consecutiveFailures, 0)
	h.lastSuccessAt.Store(time.Now().UnixNano())

	prev := h.latencyEMA.Load()
	if prev == 0 {
		h.latencyEMA.Store(int64(latency))
	} else {
		next := (int64(latency)*latencyEMAAlphaPercent + prev*(100-latencyEMAAlphaPercent)) / 100
		h.latencyEMA.Store(next)
	}

	h.mu.Lock()
	h.totalCalls++
	h.mu.Unlock()
}

func (h *healthRecord) recordFailure() {
	atomic.AddInt32(&h.consecutiveFailures, 1)
	h.lastFailureAt.Store(time.Now().UnixNano())

	h.mu.Lock()
	h.totalCalls++
	h.totalErrors++
	h.mu.Unlock()
}

func (h *healthRecord) latency() time.Duration {
	return time.Duration(h.latencyEMA.Load())
}

func (h *healthRecord) failures() int32 {
	return atomic.LoadInt32(&h.consecutiveFailures)
}

// unhealthyThreshold is the number of consecutive failures after which an
// endpoint is excluded from weighted selection. Only a recorded success
// resets the count, and the pool sends no calls to an excluded endpoint, so
// it stays excluded.
const unhealthyThreshold = 5

func (h *healthRecord) unhealthy() bool {
	return h.failures() >= unhealthyThreshold
}
