package types

import "context"

// ExecutionStatus mirrors the executor's result status from spec §6.
type ExecutionStatus string

const (
	ExecutionSimulated ExecutionStatus = "simulated"
	ExecutionSubmitted ExecutionStatus = "submitted"
	ExecutionIncluded  ExecutionStatus = "included"
	ExecutionReverted  ExecutionStatus = "reverted"
	ExecutionTimedOut  ExecutionStatus = "timedOut"
)

// ExecutionResult is the outcome the Executor returns for one opportunity.
type ExecutionResult struct {
	Status         ExecutionStatus
	TxHash         string
	ActualProfitUSD *float64
	GasUsed        *uint64
}

// Succeeded reports whether the result represents an on-chain-confirmed,
// non-reverted execution.
func (r ExecutionResult) Succeeded() bool {
	return r.Status == ExecutionIncluded
}

// Executor is the consumed port the Dispatcher hands ranked opportunities
// to. Implementations must be safe to invoke only once at a time per chain;
// the Dispatcher enforces that serialization itself and never calls
// concurrently for the same chain.
type Executor interface {
	Execute(ctx context.Context, opp Opportunity) (ExecutionResult, error)
}
