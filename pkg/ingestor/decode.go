package ingestor

import (
	"fmt"
	"math/big"

	"arbitrage-sub000/internal/util"
	"arbitrage-sub000/pkg/chainclient"
	ourtypes "arbitrage-sub000/pkg/types"
)

// decodeSync parses a Sync(uint112,uint112) log's 64-byte data segment into
// a ReserveUpdate. Both fields are packed unsigned integers; reserves with
// either component zero are surfaced so callers can treat them as a
// PermanentProtocolError boundary condition per spec §4.3/§8.
func decodeSync(l chainclient.Log) (ReserveUpdate, error) {
	if len(l.Data) < 64 {
		return ReserveUpdate{}, fmt.Errorf("sync log: data too short (%d bytes)", len(l.Data))
	}
	reserveA := new(big.Int).SetBytes(l.Data[0:32])
	reserveB := new(big.Int).SetBytes(l.Data[32:64])
	if reserveA.Sign() == 0 || reserveB.Sign() == 0 {
		return ReserveUpdate{}, &ourtypes.PermanentProtocolError{
			Pool: l.Address.Hex(),
			Err:  fmt.Errorf("degenerate reserves: %s/%s", reserveA, reserveB),
		}
	}
	return ReserveUpdate{
		Pool:        l.Address,
		ReserveA:    reserveA,
		ReserveB:    reserveB,
		BlockNumber: l.BlockNumber,
		TxHash:      l.TxHash,
	}, nil
}

// decodeSwap parses a Swap(address,address,int256,int256,uint160,uint128,
// int24) log. sender/recipient arrive as indexed topics; the remaining
// fields are packed in data in declaration order, with amount0/amount1
// two's-complement signed and tick a signed 24-bit value in its own word.
func decodeSwap(l chainclient.Log) (SwapObserved, error) {
	if len(l.Topics) < 3 {
		return SwapObserved{}, fmt.Errorf("swap log: expected 3 topics, got %d", len(l.Topics))
	}
	if len(l.Data) < 160 {
		return SwapObserved{}, fmt.Errorf("swap log: data too short (%d bytes)", len(l.Data))
	}

	sender := addressFromTopic(l.Topics[1])
	recipient := addressFromTopic(l.Topics[2])

	amount0 := util.TwosComplementToBigInt(l.Data[0:32], 256)
	amount1 := util.TwosComplementToBigInt(l.Data[32:64], 256)
	sqrtPriceX96 := new(big.Int).SetBytes(l.Data[64:96])
	liquidity := new(big.Int).SetBytes(l.Data[96:128])
	tick := util.Int24FromWord(l.Data[128:160])

	return SwapObserved{
		Pool:         l.Address,
		Amount0:      amount0,
		Amount1:      amount1,
		SqrtPriceX96: sqrtPriceX96,
		Liquidity:    liquidity,
		Tick:         tick,
		Sender:       sender,
		Recipient:    recipient,
		BlockNumber:  l.BlockNumber,
	}, nil
}

func addressFromTopic(topic [32]byte) (addr [20]byte) {
	copy(addr[:], topic[12:32])
	return addr
}
