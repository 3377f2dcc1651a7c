package chainclient

import (
	"strings"

	"github.com/ethereum/go-ethereum/ethereum"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"arbitrage-sub000/internal/util"
	ourtypes "arbitrage-sub000/pkg/types"
)

func callArgs(msg CallMsg) ethereum.CallMsg {
	return ethereum.CallMsg{To: &msg.To, Data: msg.Data}
}

func toFilterQuery(f LogFilter) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: f.Addresses,
		Topics:    f.Topics,
		FromBlock: f.FromBlock,
		ToBlock:   f.ToBlock,
	}
}

func hexStringToBytes(s string) []byte {
	if s == "" {
		return nil
	}
	return util.Hex2Bytes(s)
}

// classifyCallError separates transport-level failures (timeouts, dropped
// connections, rate limiting) from reverted calls so the RPC Pool only
// retries the former. Any error that is not recognised as a revert is
// classified as transient.
func classifyCallError(endpoint string, err error) error {
	if err == nil {
		return nil
	}
	if rpcErr, ok := err.(gethrpc.Error); ok {
		// Code 3 (execution reverted) and -32000 (the generic server error
		// nodes return for a failed eth_call) mean the node reverted
		// execution, a protocol-level outcome for that specific call. Other
		// codes fall through to the message check below.
		code := rpcErr.ErrorCode()
		if code == -32000 || code == 3 {
			return &ourtypes.PermanentProtocolError{Pool: endpoint, Err: err}
		}
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "revert") || strings.Contains(msg, "execution reverted") {
		return &ourtypes.PermanentProtocolError{Pool: endpoint, Err: err}
	}
	return &ourtypes.TransientNetworkError{Endpoint: endpoint, Err: err}
}
