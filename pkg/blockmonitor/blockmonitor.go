// Package blockmonitor implements the per-chain block head stream
// (component C2): a WS-first, poll-fallback state machine with stale-stream
// detection, grounded on the teacher's txlistener functional-options
// constructor (txlistener.NewTxListener(client, WithPollInterval(...),
// WithTimeout(...))) generalized from transaction polling to new-block
// streaming.
package blockmonitor

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"arbitrage-sub000/pkg/chainclient"
)

// State is the block monitor's connection state machine per spec §4.2.
type State int

const (
	Disconnected State = iota
	ConnectingWS
	StreamingWS
	PollingHTTP
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case ConnectingWS:
		return "connectingWS"
	case StreamingWS:
		return "streamingWS"
	case PollingHTTP:
		return "pollingHTTP"
	default:
		return "unknown"
	}
}

// Monitor streams monotonically non-decreasing new-block notifications for
// one chain, falling back from a WS subscription to HTTP polling when the
// stream goes stale, and back again once reconnection succeeds.
type Monitor struct {
	chainID           uint64
	client            chainclient.ChainClient
	expectedBlockTime time.Duration
	logger            log.Logger

	mu         sync.Mutex
	state      State
	lastBlock  uint64
	lastHeadAt time.Time

	blocks chan uint64
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithExpectedBlockTime overrides the chain's expected block interval, used
// to derive the stale-stream threshold and the polling interval.
func WithExpectedBlockTime(d time.Duration) Option {
	return func(m *Monitor) { m.expectedBlockTime = d }
}

// WithLogger overrides the default component logger.
func WithLogger(l log.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// New constructs a Monitor bound to chainID. It does not start streaming
// until Run is called.
func New(chainID uint64, client chainclient.ChainClient, opts ...Option) *Monitor {
	m := &Monitor{
		chainID:           chainID,
		client:            client,
		expectedBlockTime: 12 * time.Second,
		state:             Disconnected,
		blocks:            make(chan uint64, 64),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = log.New("component", "blockmonitor", "chainId", chainID)
	}
	return m
}

// Blocks returns the stream of new block numbers. Numbers are monotonically
// non-decreasing; a reorg that does not advance the head never emits.
func (m *Monitor) Blocks() <-chan uint64 { return m.blocks }

// State returns the monitor's current connection state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// staleThreshold is max(30s, 10x expectedBlockTime) per spec §4.2.
func (m *Monitor) staleThreshold() time.Duration {
	t := 10 * m.expectedBlockTime
	if t < 30*time.Second {
		return 30 * time.Second
	}
	return t
}

// pollInterval is expectedBlockTime/2, floored at 1s, per spec §4.2.
func (m *Monitor) pollInterval() time.Duration {
	t := m.expectedBlockTime / 2
	if t < time.Second {
		return time.Second
	}
	return t
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// emit publishes b if it advances the known head, dropping the oldest queued
// block on overflow rather than blocking the producer.
func (m *Monitor) emit(b uint64) {
	m.mu.Lock()
	if b <= m.lastBlock && m.lastBlock != 0 {
		m.mu.Unlock()
		return
	}
	m.lastBlock = b
	m.lastHeadAt = time.Now()
	m.mu.Unlock()

	select {
	case m.blocks <- b:
	default:
		select {
		case <-m.blocks:
		default:
		}
		select {
		case m.blocks <- b:
		default:
		}
	}
}

// Run drives the state machine until ctx is cancelled: it tries a WS
// subscription first, falls back to polling once the stream goes stale or
// the subscription fails, and retries the WS subscription whenever a polling
// round ends so it can resume event-driven delivery.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			m.setState(Disconnected)
			return ctx.Err()
		}

		m.setState(ConnectingWS)
		heads, errs, err := m.client.SubscribeNewHead(ctx)
		if err != nil {
			m.logger.Warn("ws subscribe failed, falling back to polling", "err", err)
			if m.pollUntilStale(ctx) {
				continue
			}
			return ctx.Err()
		}

		if m.streamWS(ctx, heads, errs) {
			continue
		}
		return ctx.Err()
	}
}

// streamWS consumes the WS head channel until it goes stale or errors,
// returning true if the caller should retry (ctx still live).
func (m *Monitor) streamWS(ctx context.Context, heads <-chan chainclient.BlockHead, errs <-chan error) bool {
	m.setState(StreamingWS)
	staleTimer := time.NewTimer(m.staleThreshold())
	defer staleTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case err, ok := <-errs:
			if ok && err != nil {
				m.logger.Warn("ws stream error, falling back to polling", "err", err)
			}
			return m.pollUntilStale(ctx)
		case h, ok := <-heads:
			if !ok {
				return m.pollUntilStale(ctx)
			}
			m.emit(h.Number)
			if !staleTimer.Stop() {
				<-staleTimer.C
			}
			staleTimer.Reset(m.staleThreshold())
		case <-staleTimer.C:
			m.logger.Warn("ws stream stale, falling back to polling")
			return m.pollUntilStale(ctx)
		}
	}
}

// pollUntilStale polls at pollInterval. Once reconnectEvery ticks have
// passed, it returns true at the next successful poll so Run retries the WS
// subscription; it returns false when ctx is cancelled.
func (m *Monitor) pollUntilStale(ctx context.Context) bool {
	m.setState(PollingHTTP)
	ticker := time.NewTicker(m.pollInterval())
	defer ticker.Stop()

	reconnectEvery := 5
	ticks := 0
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			ticks++
			head, err := m.client.BlockByNumber(ctx, nil)
			if err != nil {
				m.logger.Debug("poll failed", "err", err)
				continue
			}
			m.emit(head.Number)
			if ticks >= reconnectEvery {
				return true
			}
		}
	}
}
