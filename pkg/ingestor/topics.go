package ingestor

import "github.com/ethereum/go-ethereum/crypto"

// Canonical Solidity event signatures whose keccak-256 topic hashes this
// package hard-codes per the bit-exact topic requirement: the reserve-change
// (constant-product) Sync event and the concentrated-liquidity Swap event.
const (
	syncSignature = "Sync(uint112,uint112)"
	swapSignature = "Swap(address,address,int256,int256,uint160,uint128,int24)"
)

// SyncTopic and SwapTopic are the subscription filter topics installed for
// every registered pool, computed once at package init.
var (
	SyncTopic = crypto.Keccak256Hash([]byte(syncSignature))
	SwapTopic = crypto.Keccak256Hash([]byte(swapSignature))
)
