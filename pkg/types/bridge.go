package types

import (
	"context"
	"math/big"
	"time"
)

// BridgeQuote is the cost/eta estimate a BridgeAdapter returns for moving a
// token across chains.
type BridgeQuote struct {
	OutAmount *big.Int
	FeeUSD    float64
	ETA       time.Duration
}

// BridgeStatus is the lifecycle state of a submitted bridge transfer.
type BridgeStatus string

const (
	BridgePending   BridgeStatus = "pending"
	BridgeCompleted BridgeStatus = "completed"
	BridgeFailed    BridgeStatus = "failed"
)

// BridgeExecuteParams carries the parameters a BridgeAdapter needs to submit
// a cross-chain transfer.
type BridgeExecuteParams struct {
	Token       string
	Amount      *big.Int
	FromChainID uint64
	ToChainID   uint64
	Recipient   string
}

// BridgeResult is the outcome of submitting a bridge transfer.
type BridgeResult struct {
	TxHash           string
	ExpectedArrivalAt time.Time
}

// BridgeAdapter is the consumed port for moving value between chains; the
// CrossChainRouter stores one per (fromChain, toChain) route via SetBridge,
// and its ExecuteDualChain does not call it. Concrete adapters (LayerZero, Axelar, native bridges, ...)
// are out of scope; only this interface is specified.
type BridgeAdapter interface {
	Quote(ctx context.Context, token string, amount *big.Int, fromChain, toChain uint64) (BridgeQuote, error)
	Execute(ctx context.Context, params BridgeExecuteParams) (BridgeResult, error)
	Status(ctx context.Context, txHash string) (BridgeStatus, error)
}
