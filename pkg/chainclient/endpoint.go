package chainclient

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	ourtypes "arbitrage-sub000/pkg/types"
)

// Endpoint is the concrete, go-ethereum-backed ChainClient implementation.
// One Endpoint wraps one WS or HTTP RPC URL; the RPC Pool holds many.
type Endpoint struct {
	url string
	rpc *gethrpc.Client
	eth *ethclient.Client
}

// Dial connects to a single RPC endpoint over HTTP(S) or WS(S).
func Dial(ctx context.Context, url string) (*Endpoint, error) {
	rc, err := gethrpc.DialContext(ctx, url)
	if err != nil {
		return nil, &ourtypes.TransientNetworkError{Endpoint: url, Err: err}
	}
	return &Endpoint{url: url, rpc: rc, eth: ethclient.NewClient(rc)}, nil
}

func (e *Endpoint) URL() string { return e.url }

func (e *Endpoint) Call(ctx context.Context, msg CallMsg, blockNumber *big.Int) ([]byte, error) {
	callMsg := callArgs(msg)
	out, err := e.eth.CallContract(ctx, callMsg, blockNumber)
	if err != nil {
		return nil, classifyCallError(e.url, err)
	}
	return out, nil
}

func (e *Endpoint) BatchCall(ctx context.Context, msgs []CallMsg, blockNumber *big.Int) ([][]byte, error) {
	results := make([][]byte, len(msgs))
	batch := make([]gethrpc.BatchElem, len(msgs))
	raw := make([]string, len(msgs))

	blockArg := "latest"
	if blockNumber != nil {
		blockArg = fmt.Sprintf("0x%x", blockNumber)
	}

	for i, m := range msgs {
		batch[i] = gethrpc.BatchElem{
			Method: "eth_call",
			Args: []interface{}{
				map[string]interface{}{
					"to":   m.To,
					"data": fmt.Sprintf("0x%x", m.Data),
				},
				blockArg,
			},
			Result: &raw[i],
		}
	}

	if err := e.rpc.BatchCallContext(ctx, batch); err != nil {
		return nil, &ourtypes.TransientNetworkError{Endpoint: e.url, Err: err}
	}

	for i, elem := range batch {
		if elem.Error != nil {
			// A single reverted call is a protocol-level failure for that
			// pair only; the caller treats a nil entry as "skip this one".
			results[i] = nil
			continue
		}
		results[i] = hexStringToBytes(raw[i])
	}
	return results, nil
}

func (e *Endpoint) SubscribeLogs(ctx context.Context, filter LogFilter) (<-chan Log, <-chan error, error) {
	q := toFilterQuery(filter)
	rawLogs := make(chan types.Log, 256)
	sub, err := e.eth.SubscribeFilterLogs(ctx, q, rawLogs)
	if err != nil {
		return nil, nil, &ourtypes.TransientNetworkError{Endpoint: e.url, Err: err}
	}

	out := make(chan Log, 256)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.Err():
				if err != nil {
					errs <- &ourtypes.TransientNetworkError{Endpoint: e.url, Err: err}
				}
				return
			case l, ok := <-rawLogs:
				if !ok {
					return
				}
				out <- fromCoreLog(l)
			}
		}
	}()
	return out, errs, nil
}

func (e *Endpoint) SubscribeNewHead(ctx context.Context) (<-chan BlockHead, <-chan error, error) {
	rawHeads := make(chan *types.Header, 16)
	sub, err := e.eth.SubscribeNewHead(ctx, rawHeads)
	if err != nil {
		return nil, nil, &ourtypes.TransientNetworkError{Endpoint: e.url, Err: err}
	}

	out := make(chan BlockHead, 16)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.Err():
				if err != nil {
					errs <- &ourtypes.TransientNetworkError{Endpoint: e.url, Err: err}
				}
				return
			case h, ok := <-rawHeads:
				if !ok {
					return
				}
				out <- BlockHead{
					Number:     h.Number.Uint64(),
					Hash:       h.Hash(),
					ParentHash: h.ParentHash,
					Timestamp:  h.Time,
				}
			}
		}
	}()
	return out, errs, nil
}

func (e *Endpoint) BlockByNumber(ctx context.Context, number *big.Int) (BlockHead, error) {
	h, err := e.eth.HeaderByNumber(ctx, number)
	if err != nil {
		return BlockHead{}, classifyCallError(e.url, err)
	}
	return BlockHead{
		Number:     h.Number.Uint64(),
		Hash:       h.Hash(),
		ParentHash: h.ParentHash,
		Timestamp:  h.Time,
	}, nil
}

func (e *Endpoint) FilterLogs(ctx context.Context, filter LogFilter) ([]Log, error) {
	q := toFilterQuery(filter)
	raw, err := e.eth.FilterLogs(ctx, q)
	if err != nil {
		return nil, classifyCallError(e.url, err)
	}
	out := make([]Log, len(raw))
	for i, l := range raw {
		out[i] = fromCoreLog(l)
	}
	return out, nil
}

func (e *Endpoint) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	gp, err := e.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, classifyCallError(e.url, err)
	}
	return gp, nil
}

func (e *Endpoint) ChainID(ctx context.Context) (uint64, error) {
	id, err := e.eth.ChainID(ctx)
	if err != nil {
		return 0, classifyCallError(e.url, err)
	}
	return id.Uint64(), nil
}

func (e *Endpoint) Close() {
	e.eth.Close()
}
