// Package chainclient is the thin abstraction over a chain RPC endpoint
// that the rest of the core programs against, grounded on the teacher's
// ContractClient (Call/Send/Abi) and TxListener abstractions but narrowed to
// the read-only surface a detection-only system needs: eth_call, log
// subscription, new-head subscription and gas price.
package chainclient

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// LogFilter describes a subscribeLogs/filterLogs query.
type LogFilter struct {
	Addresses []common.Address
	Topics    [][]common.Hash
	FromBlock *big.Int
	ToBlock   *big.Int
}

// Log is a decoded-address, raw-topic/data event log. Decoding the payload
// into a domain event is the ingestor's job, not this package's.
type Log struct {
	Address     common.Address
	Topics      []common.Hash
	Data        []byte
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
	Removed     bool
}

// BlockHead is the minimal header the block monitor needs.
type BlockHead struct {
	Number     uint64
	Hash       common.Hash
	ParentHash common.Hash
	Timestamp  uint64
}

// CallMsg is a single eth_call invocation against a contract's view method.
type CallMsg struct {
	To   common.Address
	Data []byte
}

// ChainClient is the read-only surface every component (RPC Pool, Block
// Monitor, Event Ingestor, Price Fetcher, Gas Cache) programs against. A
// concrete implementation wraps one RPC endpoint; the RPC Pool owns a set of
// these and does the failover.
type ChainClient interface {
	// Call executes an eth_call against the given contract, returning the
	// raw ABI-encoded return data.
	Call(ctx context.Context, msg CallMsg, blockNumber *big.Int) ([]byte, error)

	// BatchCall executes a batch of eth_call invocations in a single round
	// trip where the underlying transport supports it (JSON-RPC batching or
	// an on-chain multicall contract); order of results matches msgs.
	BatchCall(ctx context.Context, msgs []CallMsg, blockNumber *big.Int) ([][]byte, error)

	// SubscribeLogs streams logs matching filter until ctx is cancelled or
	// the subscription errors; the returned channel is closed on exit.
	SubscribeLogs(ctx context.Context, filter LogFilter) (<-chan Log, <-chan error, error)

	// SubscribeNewHead streams new block heads; used by the block monitor's
	// WS-first path.
	SubscribeNewHead(ctx context.Context) (<-chan BlockHead, <-chan error, error)

	// BlockByNumber polls for a single head; used by the block monitor's
	// polling fallback. nil means "latest".
	BlockByNumber(ctx context.Context, number *big.Int) (BlockHead, error)

	// FilterLogs performs a one-shot historical log query over the filter's
	// block range.
	FilterLogs(ctx context.Context, filter LogFilter) ([]Log, error)

	// SuggestGasPrice returns the node's current suggested gas price in wei.
	SuggestGasPrice(ctx context.Context) (*big.Int, error)

	// ChainID returns the chain's numeric ID.
	ChainID(ctx context.Context) (uint64, error)

	// Close releases the underlying transport.
	Close()
}

// fromCoreLog adapts a go-ethereum core/types.Log into this package's Log.
func fromCoreLog(l types.Log) Log {
	return Log{
		Address:     l.Address,
		Topics:      l.Topics,
		Data:        l.Data,
		BlockNumber: l.BlockNumber,
		TxHash:      l.TxHash,
		LogIndex:    l.Index,
		Removed:     l.Removed,
	}
}
