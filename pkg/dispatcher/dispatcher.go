// Package dispatcher implements the Dispatcher (component C10): it filters
// scored opportunities by a minimum score, serializes execution per chain
// behind a single-slot mutex (dropping, never queueing, a busy chain's
// incoming opportunity), records outcomes to a bounded ring buffer, and
// feeds every outcome back into the Adaptive Prioritizer regardless of
// success. Grounded on the teacher's Blackhole.RunStrategy1 single-flight
// execution loop, generalized from one hardcoded strategy to one executor
// call per ranked Opportunity.
package dispatcher

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ethereum/go-ethereum/log"

	"arbitrage-sub000/pkg/prioritizer"
	"arbitrage-sub000/pkg/scorer"
	"arbitrage-sub000/pkg/types"
)

// defaultMinScore is the floor below which an opportunity is not even
// offered to the executor, per spec §4.10.
const defaultMinScore = 40.0

// maxOutcomes bounds the ring buffer of recorded outcomes (N <= 1000).
const maxOutcomes = 1000

// Outcome is one recorded dispatch attempt, kept for observability and
// post-hoc scoring calibration.
type Outcome struct {
	Opportunity types.Opportunity
	Score       scorer.Score
	Result      types.ExecutionResult
	Err         error
	At          time.Time
}

// Dispatcher owns the single-slot per-chain execution gate and the outcome
// history for one ChainCoordinator.
type Dispatcher struct {
	chainID  uint64
	executor types.Executor
	prio     *prioritizer.Prioritizer
	minScore float64
	logger   log.Logger

	executingMu sync.Mutex
	executing   bool

	outcomesMu sync.Mutex
	outcomes   *lru.Cache[int, Outcome]
	nextSeq    int

	recorder OutcomeRecorder
}

// OutcomeRecorder is the optional persistence port a Dispatcher fans every
// outcome into, in addition to its own in-memory ring buffer. Recording
// failures are logged and otherwise ignored: persistence is best-effort and
// never blocks or fails a dispatch.
type OutcomeRecorder interface {
	RecordOutcome(chainID uint64, outcome Outcome) error
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMinScore overrides the default minimum score floor.
func WithMinScore(v float64) Option {
	return func(d *Dispatcher) { d.minScore = v }
}

// WithLogger overrides the default logger.
func WithLogger(l log.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithRecorder attaches an optional OutcomeRecorder every outcome is also
// fanned into, for post-hoc scoring calibration and audit.
func WithRecorder(r OutcomeRecorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// New constructs a Dispatcher for one chain.
func New(chainID uint64, executor types.Executor, prio *prioritizer.Prioritizer, opts ...Option) *Dispatcher {
	outcomes, _ := lru.New[int, Outcome](maxOutcomes)
	d := &Dispatcher{
		chainID:  chainID,
		executor: executor,
		prio:     prio,
		minScore: defaultMinScore,
		outcomes: outcomes,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = log.New("component", "dispatcher", "chainId", chainID)
	}
	return d
}

// Dispatch considers one scored opportunity: if its score clears minScore
// and the chain isn't already mid-execution, it runs the executor
// synchronously relative to the caller (the caller is expected to run this
// from its own per-opportunity goroutine) and records the outcome. It
// returns false without invoking the executor if the score is too low or
// the chain's single execution slot is already occupied, in which case the
// opportunity is dropped, never queued, per spec §4.10.
func (d *Dispatcher) Dispatch(ctx context.Context, opp types.Opportunity, sc scorer.Score) bool {
	if sc.Composite < d.minScore {
		return false
	}

	if !d.acquire() {
		d.logger.Debug("dropping opportunity, chain busy", "chainId", d.chainID, "opportunityId", opp.ID)
		return false
	}
	defer d.release()

	result, err := d.executor.Execute(ctx, opp)
	d.recordOutcome(opp, sc, result, err)

	if d.prio != nil {
		d.prio.RecordOpportunity(opp.Pair)
	}
	return true
}

func (d *Dispatcher) acquire() bool {
	d.executingMu.Lock()
	defer d.executingMu.Unlock()
	if d.executing {
		return false
	}
	d.executing = true
	return true
}

func (d *Dispatcher) release() {
	d.executingMu.Lock()
	d.executing = false
	d.executingMu.Unlock()
}

func (d *Dispatcher) recordOutcome(opp types.Opportunity, sc scorer.Score, result types.ExecutionResult, err error) {
	outcome := Outcome{Opportunity: opp, Score: sc, Result: result, Err: err, At: time.Now()}

	d.outcomesMu.Lock()
	d.outcomes.Add(d.nextSeq, outcome)
	d.nextSeq++
	d.outcomesMu.Unlock()

	if d.recorder != nil {
		if recErr := d.recorder.RecordOutcome(d.chainID, outcome); recErr != nil {
			d.logger.Warn("outcome recorder failed", "chainId", d.chainID, "opportunityId", opp.ID, "err", recErr)
		}
	}
}

// Outcomes returns a snapshot of the currently retained outcome history,
// oldest first.
func (d *Dispatcher) Outcomes() []Outcome {
	d.outcomesMu.Lock()
	defer d.outcomesMu.Unlock()
	keys := d.outcomes.Keys()
	out := make([]Outcome, 0, len(keys))
	for _, k := range keys {
		if v, ok := d.outcomes.Peek(k); ok {
			out = append(out, v)
		}
	}
	return out
}

// IsExecuting reports whether this chain's single execution slot is
// currently occupied.
func (d *Dispatcher) IsExecuting() bool {
	d.executingMu.Lock()
	defer d.executingMu.Unlock()
	return d.executing
}
