// Package ingestor implements the Event Ingestor (component C3): it
// subscribes to reserve-change and swap log topics over a registry of pool
// addresses, decodes raw logs into normalized events, debounces per-pool
// bursts, and tracks which pairs updated in each block for the Price
// Fetcher. Grounded on the teacher's ContractClient.Call/ParseReceipt
// decoding style, generalized from transaction receipts to live log streams.
package ingestor

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"arbitrage-sub000/pkg/types"
)

// ReserveUpdate is the decoded reserve-change (constant-product sync) event.
type ReserveUpdate struct {
	Pool        common.Address
	ReserveA    *big.Int
	ReserveB    *big.Int
	BlockNumber uint64
	TxHash      common.Hash
}

// SwapObserved is the decoded swap (concentrated-liquidity) event.
type SwapObserved struct {
	Pool         common.Address
	Amount0      *big.Int
	Amount1      *big.Int
	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
	Tick         int32
	Sender       common.Address
	Recipient    common.Address
	BlockNumber  uint64
}

// poolMeta is what RegisterPool records for a pool: the pool itself and its
// pair key, which markUpdated uses to fill UpdatedInBlock.
type poolMeta struct {
	pool types.Pool
	pair types.PairKey
}
