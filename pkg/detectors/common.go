// Package detectors implements the detector family (component C8): six
// independent detectors over the shared price cache and price graph, each
// emitting Opportunity records and never propagating errors upstream per
// spec §7's propagation policy. Grounded on the teacher's Blackhole.Swap
// quoting/sizing idiom (approve-then-size-then-submit), generalized to
// read-only detection of profitable routes instead of execution.
package detectors

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// Config holds the detection thresholds from spec §6's `detection`
// configuration surface, shared across detectors.
type Config struct {
	MinProfitPercent float64
	MinProfitUSD     float64
	MaxPaths         int
	MaxDepth         int
	ZThreshold       float64
	WindowSize       int
}

// DefaultConfig returns the detection thresholds named throughout spec §4.8.
func DefaultConfig() Config {
	return Config{
		MinProfitPercent: 0.003,
		MinProfitUSD:     1,
		MaxPaths:         50_000,
		MaxDepth:         5,
		ZThreshold:       2.0,
		WindowSize:       100,
	}
}

// PriceOracle is the optional consumed port from spec §6: priceUSD returns
// nil (ok=false) when no price is known, and the caller falls back to a
// static table.
type PriceOracle interface {
	PriceUSD(ctx context.Context, tokenAddress string, chainID uint64) (usd float64, ok bool)
}

// GasEstimator abstracts the Gas Cache's getGasPrice for detectors that need
// to subtract gas cost in USD terms.
type GasEstimator interface {
	GasPriceWei(ctx context.Context) (weiPerGas float64, ok bool)
}

// blockBudget bounds one detector invocation's wall-clock cost per spec §5:
// max(expectedBlockTime/2, 500ms). Callers pass the chain's expected block
// time; a zero block time yields the 500ms floor.
func blockBudget(expectedBlockTime time.Duration) time.Duration {
	half := expectedBlockTime / 2
	if half < 500*time.Millisecond {
		return 500 * time.Millisecond
	}
	return half
}

// withBudget runs fn until it completes or the per-block budget expires; if
// the budget expires, the partial opportunities already appended to out are
// kept and the overrun is logged at debug level, never returned to the caller.
func withBudget(ctx context.Context, logger log.Logger, detectorName string, expectedBlockTime time.Duration, fn func(deadline <-chan struct{})) {
	budget := blockBudget(expectedBlockTime)
	deadline := make(chan struct{})
	timer := time.AfterFunc(budget, func() { close(deadline) })
	defer timer.Stop()

	done := make(chan struct{})
	go func() {
		fn(deadline)
		close(done)
	}()

	select {
	case <-done:
	case <-deadline:
		logger.Debug("detector exceeded block budget, accepting partial result",
			"detector", detectorName, "budget", budget)
		<-done // fn observes deadline cooperatively at each loop step; wait for
		// it to actually return before the caller reads its partial output,
		// so the two goroutines never touch that slice concurrently.
	case <-ctx.Done():
		<-done
	}
}

// staticTokenPrice is the conservative fallback table used when PriceOracle
// is nil or returns ok=false, matching spec §6's "falls back to a static
// table" clause for stable/native references only.
func staticTokenPrice(symbol string) (float64, bool) {
	switch symbol {
	case "USDC", "USDT", "DAI", "BUSD", "FRAX":
		return 1.0, true
	default:
		return 0, false
	}
}

// resolveUSD tries the oracle first, then the static table.
func resolveUSD(ctx context.Context, oracle PriceOracle, tokenAddress, symbol string, chainID uint64) (float64, bool) {
	if oracle != nil {
		if v, ok := oracle.PriceUSD(ctx, tokenAddress, chainID); ok {
			return v, true
		}
	}
	return staticTokenPrice(symbol)
}
