package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbitrage-sub000/pkg/prioritizer"
	"arbitrage-sub000/pkg/scorer"
	"arbitrage-sub000/pkg/types"
)

type fakeExecutor struct {
	mu      sync.Mutex
	calls   int
	block   chan struct{} // if non-nil, Execute blocks until closed
	result  types.ExecutionResult
	err     error
}

func (f *fakeExecutor) Execute(ctx context.Context, opp types.Opportunity) (types.ExecutionResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return f.result, f.err
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []Outcome
	err      error
}

func (r *fakeRecorder) RecordOutcome(chainID uint64, outcome Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
	return r.err
}

func TestDispatchBelowMinScoreIsDropped(t *testing.T) {
	exec := &fakeExecutor{result: types.ExecutionResult{Status: types.ExecutionIncluded}}
	d := New(1, exec, nil, WithMinScore(50))

	dispatched := d.Dispatch(context.Background(), types.Opportunity{}, scorer.Score{Composite: 40})
	assert.False(t, dispatched)
	assert.Equal(t, 0, exec.callCount())
}

func TestDispatchAboveMinScoreExecutes(t *testing.T) {
	exec := &fakeExecutor{result: types.ExecutionResult{Status: types.ExecutionIncluded}}
	prio := prioritizer.New(prioritizer.DefaultConfig())
	defer prio.Stop()
	pair := types.MakePairKey("WETH", "USDC")
	d := New(1, exec, prio, WithMinScore(50))

	dispatched := d.Dispatch(context.Background(), types.Opportunity{Pair: pair}, scorer.Score{Composite: 90})
	assert.True(t, dispatched)
	assert.Equal(t, 1, exec.callCount())

	snap, ok := prio.Snapshot(pair)
	require.True(t, ok)
	assert.Equal(t, types.TierHot, snap.Tier)
}

func TestDispatchDropsRatherThanQueuesWhenBusy(t *testing.T) {
	block := make(chan struct{})
	exec := &fakeExecutor{block: block, result: types.ExecutionResult{Status: types.ExecutionIncluded}}
	d := New(1, exec, nil, WithMinScore(0))

	done := make(chan bool)
	go func() {
		done <- d.Dispatch(context.Background(), types.Opportunity{}, scorer.Score{Composite: 90})
	}()

	// Give the first dispatch time to acquire the execution slot.
	for !d.IsExecuting() {
		time.Sleep(time.Millisecond)
	}

	second := d.Dispatch(context.Background(), types.Opportunity{}, scorer.Score{Composite: 90})
	assert.False(t, second, "a busy chain must drop, not queue")

	close(block)
	assert.True(t, <-done)
	assert.Equal(t, 1, exec.callCount())
}

func TestDispatchRecordsOutcomesAndFansIntoRecorder(t *testing.T) {
	exec := &fakeExecutor{result: types.ExecutionResult{Status: types.ExecutionReverted}, err: errors.New("reverted")}
	rec := &fakeRecorder{}
	d := New(1, exec, nil, WithMinScore(0), WithRecorder(rec))

	d.Dispatch(context.Background(), types.Opportunity{ID: "opp-1"}, scorer.Score{Composite: 90})

	outcomes := d.Outcomes()
	require.Len(t, outcomes, 1)
	assert.Equal(t, "opp-1", outcomes[0].Opportunity.ID)
	assert.Error(t, outcomes[0].Err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.outcomes, 1)
	assert.Equal(t, "opp-1", rec.outcomes[0].Opportunity.ID)
}

func TestDispatchRecorderFailureDoesNotFailDispatch(t *testing.T) {
	exec := &fakeExecutor{result: types.ExecutionResult{Status: types.ExecutionIncluded}}
	rec := &fakeRecorder{err: errors.New("db down")}
	d := New(1, exec, nil, WithMinScore(0), WithRecorder(rec))

	dispatched := d.Dispatch(context.Background(), types.Opportunity{}, scorer.Score{Composite: 90})
	assert.True(t, dispatched)
}
