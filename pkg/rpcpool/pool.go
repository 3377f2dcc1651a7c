package rpcpool

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"arbitrage-sub000/pkg/chainclient"
	ourtypes "arbitrage-sub000/pkg/types"
)

// EndpointConfig is one weighted member of the pool.
type EndpointConfig struct {
	URL    string
	Weight int // relative selection weight, defaults to 1 if <= 0
}

// member pairs a dialed endpoint with its configured weight and health record.
type member struct {
	url    string
	weight int
	client *chainclient.Endpoint
	health *healthRecord
}

// Pool is a weighted, health-tracked set of RPC endpoints presenting a
// single chainclient.ChainClient surface to the rest of the core. Callers
// never see individual endpoints; a failed call is retried against a
// different member before the pool itself reports AllDown.
type Pool struct {
	chainID uint64
	logger  log.Logger

	mu      sync.RWMutex
	members []*member

	maxRetries  int
	baseBackoff time.Duration
	capBackoff  time.Duration

	degradedMu    sync.Mutex
	lastDegraded  time.Time
	degradedEvent chan DegradedEvent
}

// DegradedEvent is emitted whenever the fraction of healthy endpoints drops
// enough that failover risk is elevated, so operators can react before the
// pool goes fully dark.
type DegradedEvent struct {
	ChainID        uint64
	HealthyCount   int
	TotalCount     int
	At             time.Time
}

// Option configures a Pool at construction time.
type Option func(*Pool)

// WithMaxRetries overrides the default of 3 retry attempts per call.
func WithMaxRetries(n int) Option {
	return func(p *Pool) { p.maxRetries = n }
}

// WithBackoff overrides the default base (200ms) and cap (3s) backoff.
func WithBackoff(base, cap time.Duration) Option {
	return func(p *Pool) { p.baseBackoff = base; p.capBackoff = cap }
}

// New dials every configured endpoint and returns a ready Pool. An endpoint
// that fails to dial is kept in the pool, marked unhealthy. It is never
// redialed, so it is not selected for the lifetime of the Pool.
func New(ctx context.Context, chainID uint64, endpoints []EndpointConfig, logger log.Logger, opts ...Option) (*Pool, error) {
	if len(endpoints) == 0 {
		return nil, &ourtypes.ConfigError{Field: "rpcpool.endpoints", Err: errors.New("at least one endpoint required")}
	}
	if logger == nil {
		logger = log.New("component", "rpcpool", "chainId", chainID)
	}

	p := &Pool{
		chainID:       chainID,
		logger:        logger,
		maxRetries:    3,
		baseBackoff:   200 * time.Millisecond,
		capBackoff:    3 * time.Second,
		degradedEvent: make(chan DegradedEvent, 16),
	}
	for _, opt := range opts {
		opt(p)
	}

	for _, ec := range endpoints {
		weight := ec.Weight
		if weight <= 0 {
			weight = 1
		}
		m := &member{url: ec.URL, weight: weight, health: &healthRecord{}}
		cl, err := chainclient.Dial(ctx, ec.URL)
		if err != nil {
			logger.Warn("endpoint dial failed at startup, kept unhealthy", "url", ec.URL, "err", err)
			m.health.consecutiveFailures = unhealthyThreshold
		} else {
			m.client = cl
		}
		p.members = append(p.members, m)
	}

	return p, nil
}

// Degraded reports a stream of EndpointPoolDegraded-style events.
func (p *Pool) Degraded() <-chan DegradedEvent { return p.degradedEvent }

// IsDegraded reports whether the pool currently has at most half its
// members, rounded up, healthy (healthy <= ceil(total/2)), the same
// condition that triggers a DegradedEvent.
func (p *Pool) IsDegraded() bool {
	p.mu.RLock()
	total := len(p.members)
	p.mu.RUnlock()
	if total == 0 {
		return false
	}
	return len(p.healthyMembers()) <= (total+1)/2
}

// healthyMembers returns the subset of members currently eligible for
// selection, i.e. dialed and below the consecutive-failure threshold.
func (p *Pool) healthyMembers() []*member {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*member, 0, len(p.members))
	for _, m := range p.members {
		if m.client != nil && !m.health.unhealthy() {
			out = append(out, m)
		}
	}
	return out
}

// selectMember picks one healthy member using weighted random selection. It
// returns an error wrapping AllDown semantics if none are healthy.
func (p *Pool) selectMember(exclude map[*member]bool) (*member, error) {
	healthy := p.healthyMembers()
	var candidates []*member
	totalWeight := 0
	for _, m := range healthy {
		if exclude[m] {
			continue
		}
		candidates = append(candidates, m)
		totalWeight += m.weight
	}
	if len(candidates) == 0 {
		p.mu.RLock()
		total := len(p.members)
		p.mu.RUnlock()
		p.reportDegraded(0, total)
		return nil, fmt.Errorf("rpcpool: all endpoints down (chain %d)", p.chainID)
	}

	if len(healthy) <= (len(p.members)+1)/2 {
		p.reportDegraded(len(healthy), len(p.members))
	}

	r := rand.Intn(totalWeight)
	for _, m := range candidates {
		if r < m.weight {
			return m, nil
		}
		r -= m.weight
	}
	return candidates[len(candidates)-1], nil
}

func (p *Pool) reportDegraded(healthy, total int) {
	p.degradedMu.Lock()
	defer p.degradedMu.Unlock()
	if time.Since(p.lastDegraded) < 10*time.Second {
		return
	}
	p.lastDegraded = time.Now()
	ev := DegradedEvent{ChainID: p.chainID, HealthyCount: healthy, TotalCount: total, At: p.lastDegraded}
	select {
	case p.degradedEvent <- ev:
	default:
	}
	p.logger.Warn("endpoint pool degraded", "healthy", healthy, "total", total)
}

// withRetry runs fn against successively chosen members, retrying transient
// failures with exponential backoff and jitter up to maxRetries times, and
// failing fast on a permanent protocol error (those are not the pool's job
// to retry, since retrying them against a different node yields the same
// revert).
func (p *Pool) withRetry(ctx context.Context, fn func(chainclient.ChainClient) error) error {
	excluded := map[*member]bool{}
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		m, err := p.selectMember(excluded)
		if err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last: %v)", err, lastErr)
			}
			return err
		}

		start := time.Now()
		callErr := fn(m.client)
		if callErr == nil {
			m.health.recordSuccess(time.Since(start))
			return nil
		}

		var perm *ourtypes.PermanentProtocolError
		if errors.As(callErr, &perm) {
			return callErr
		}

		m.health.recordFailure()
		excluded[m] = true
		lastErr = callErr

		if attempt < p.maxRetries {
			p.sleepBackoff(ctx, attempt)
		}
	}
	return fmt.Errorf("rpcpool: exhausted %d retries: %w", p.maxRetries, lastErr)
}

func (p *Pool) sleepBackoff(ctx context.Context, attempt int) {
	backoff := p.baseBackoff << attempt
	if backoff > p.capBackoff || backoff <= 0 {
		backoff = p.capBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(backoff) + 1))
	wait := backoff/2 + jitter/2
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}

// Call implements chainclient.ChainClient, routing through the pool.
func (p *Pool) Call(ctx context.Context, msg chainclient.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var out []byte
	err := p.withRetry(ctx, func(c chainclient.ChainClient) error {
		var callErr error
		out, callErr = c.Call(ctx, msg, blockNumber)
		return callErr
	})
	return out, err
}

func (p *Pool) BatchCall(ctx context.Context, msgs []chainclient.CallMsg, blockNumber *big.Int) ([][]byte, error) {
	var out [][]byte
	err := p.withRetry(ctx, func(c chainclient.ChainClient) error {
		var callErr error
		out, callErr = c.BatchCall(ctx, msgs, blockNumber)
		return callErr
	})
	return out, err
}

func (p *Pool) SubscribeLogs(ctx context.Context, filter chainclient.LogFilter) (<-chan chainclient.Log, <-chan error, error) {
	m, err := p.selectMember(nil)
	if err != nil {
		return nil, nil, err
	}
	return m.client.SubscribeLogs(ctx, filter)
}

func (p *Pool) SubscribeNewHead(ctx context.Context) (<-chan chainclient.BlockHead, <-chan error, error) {
	m, err := p.selectMember(nil)
	if err != nil {
		return nil, nil, err
	}
	return m.client.SubscribeNewHead(ctx)
}

func (p *Pool) BlockByNumber(ctx context.Context, number *big.Int) (chainclient.BlockHead, error) {
	var out chainclient.BlockHead
	err := p.withRetry(ctx, func(c chainclient.ChainClient) error {
		var callErr error
		out, callErr = c.BlockByNumber(ctx, number)
		return callErr
	})
	return out, err
}

func (p *Pool) FilterLogs(ctx context.Context, filter chainclient.LogFilter) ([]chainclient.Log, error) {
	var out []chainclient.Log
	err := p.withRetry(ctx, func(c chainclient.ChainClient) error {
		var callErr error
		out, callErr = c.FilterLogs(ctx, filter)
		return callErr
	})
	return out, err
}

func (p *Pool) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var out *big.Int
	err := p.withRetry(ctx, func(c chainclient.ChainClient) error {
		var callErr error
		out, callErr = c.SuggestGasPrice(ctx)
		return callErr
	})
	return out, err
}

func (p *Pool) ChainID(ctx context.Context) (uint64, error) {
	return p.chainID, nil
}

func (p *Pool) Close() {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, m := range p.members {
		if m.client != nil {
			m.client.Close()
		}
	}
}
