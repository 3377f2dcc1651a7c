package detectors

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbitrage-sub000/pkg/chainclient"
	"arbitrage-sub000/pkg/types"
)

func TestIsLiquidationLogMatchesTopic0(t *testing.T) {
	assert.True(t, IsLiquidationLog(chainclient.Log{Topics: []common.Hash{LiquidationCallTopic}}))
	assert.False(t, IsLiquidationLog(chainclient.Log{Topics: []common.Hash{{}}}))
	assert.False(t, IsLiquidationLog(chainclient.Log{}))
}

func testLiquidationEvent(valueUSD float64) LiquidationEvent {
	return LiquidationEvent{
		TxHash:             common.HexToHash("0xabc"),
		User:               common.HexToAddress("0x01"),
		CollateralAsset:    common.HexToAddress("0x02"),
		CollateralValueUSD: valueUSD,
		DebtAsset:          common.HexToAddress("0x03"),
		BlockNumber:        100,
	}
}

func TestLiquidationDetectorEmitsBackrunAboveFloor(t *testing.T) {
	d := NewLiquidationDetector(1, DefaultConfig(), 0, nil)
	opp, ok := d.Detect(context.Background(), testLiquidationEvent(50_000), time.Now())
	require.True(t, ok)
	assert.Equal(t, types.LiquidationBackrun, opp.Type)
	assert.Greater(t, opp.EstimatedGrossProfit, 0.0)
}

func TestLiquidationDetectorRejectsBelowFloor(t *testing.T) {
	d := NewLiquidationDetector(1, DefaultConfig(), 0, nil)
	_, ok := d.Detect(context.Background(), testLiquidationEvent(100), time.Now())
	assert.False(t, ok)
}

func TestLiquidationDetectorDedupsWithinWindow(t *testing.T) {
	d := NewLiquidationDetector(1, DefaultConfig(), 0, nil)
	ev := testLiquidationEvent(50_000)
	now := time.Now()

	_, first := d.Detect(context.Background(), ev, now)
	require.True(t, first)

	_, second := d.Detect(context.Background(), ev, now.Add(time.Second))
	assert.False(t, second, "a repeat log for the same tx/user within the window must be suppressed")

	_, third := d.Detect(context.Background(), ev, now.Add(liquidationDedupWindow+time.Second))
	assert.True(t, third, "outside the dedup window the same tx/user can fire again")
}

func TestLiquidationDetectorRespectsCustomFloor(t *testing.T) {
	d := NewLiquidationDetector(1, DefaultConfig(), 200_000, nil)
	_, ok := d.Detect(context.Background(), testLiquidationEvent(50_000), time.Now())
	assert.False(t, ok)
}
