package detectors

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"arbitrage-sub000/pkg/chainclient"
	"arbitrage-sub000/pkg/types"
)

// liquidationCallSignature matches Aave v3's LiquidationCall event and is
// structurally identical to Compound v3's Absorb-style events for the
// purposes this detector cares about: collateral seized, debt repaid, user.
const liquidationCallSignature = "LiquidationCall(address,address,address,uint256,uint256,address,bool)"

// LiquidationCallTopic is the topic0 hash subscribed on a lending-protocol
// pool/comptroller address.
var LiquidationCallTopic = crypto.Keccak256Hash([]byte(liquidationCallSignature))

// defaultMinLiquidationUSD is the floor below which a liquidation backrun
// isn't worth the gas, per spec §4.8.6.
const defaultMinLiquidationUSD = 1000.0

// liquidationDedupWindow suppresses repeat detections for the same
// (txHash, user) pair, since a single liquidation transaction can emit
// multiple LiquidationCall logs (one per collateral asset).
const liquidationDedupWindow = 30 * time.Second

// LiquidationEvent is the decoded on-chain liquidation the detector reacts
// to; decoding the raw log is left to the caller since Aave v3 and Compound
// v3 encode it differently.
type LiquidationEvent struct {
	TxHash              common.Hash
	User                common.Address
	CollateralAsset      common.Address
	CollateralValueUSD  float64
	DebtAsset            common.Address
	BlockNumber         uint64
}

// LiquidationDetector implements spec §4.8.6: on observing a liquidation, it
// estimates the resulting collateral-asset sell pressure and emits a
// backrun opportunity sized proportionally to the collateral seized, with a
// liquidity-scaled slippage allowance.
type LiquidationDetector struct {
	cfg             Config
	minLiquidationUSD float64
	chainID         uint64
	logger          log.Logger

	mu   sync.Mutex
	seen map[dedupKey]time.Time
}

type dedupKey struct {
	txHash common.Hash
	user   common.Address
}

// NewLiquidationDetector constructs a LiquidationDetector. minLiquidationUSD
// of 0 selects the spec default.
func NewLiquidationDetector(chainID uint64, cfg Config, minLiquidationUSD float64, logger log.Logger) *LiquidationDetector {
	if minLiquidationUSD <= 0 {
		minLiquidationUSD = defaultMinLiquidationUSD
	}
	if logger == nil {
		logger = log.New("component", "detector.liquidation", "chainId", chainID)
	}
	return &LiquidationDetector{
		chainID:           chainID,
		cfg:               cfg,
		minLiquidationUSD: minLiquidationUSD,
		logger:            logger,
		seen:              make(map[dedupKey]time.Time),
	}
}

// IsLiquidationLog reports whether l's topic0 matches the subscribed
// liquidation event signature.
func IsLiquidationLog(l chainclient.Log) bool {
	return len(l.Topics) > 0 && l.Topics[0] == LiquidationCallTopic
}

// Detect evaluates one decoded liquidation event and returns a backrun
// opportunity if it clears the USD floor and hasn't already been seen for
// this (txHash, user) within the dedup window.
func (d *LiquidationDetector) Detect(ctx context.Context, ev LiquidationEvent, now time.Time) (types.Opportunity, bool) {
	if ev.CollateralValueUSD < d.minLiquidationUSD {
		return types.Opportunity{}, false
	}

	key := dedupKey{txHash: ev.TxHash, user: ev.User}
	d.mu.Lock()
	if last, ok := d.seen[key]; ok && now.Sub(last) < liquidationDedupWindow {
		d.mu.Unlock()
		return types.Opportunity{}, false
	}
	d.seen[key] = now
	d.evictLocked(now)
	d.mu.Unlock()

	slippage := ev.CollateralValueUSD / 100_000
	if slippage < 0 {
		slippage = 0
	}
	if slippage > 0.01 {
		slippage = 0.01
	}

	grossUSD := ev.CollateralValueUSD * slippage

	opp := types.Opportunity{
		ChainID:     d.chainID,
		Type:        types.LiquidationBackrun,
		BlockNumber: ev.BlockNumber,
		Legs: []types.Leg{
			{TokenIn: ev.CollateralAsset, TokenOut: ev.DebtAsset},
		},
		EstimatedGrossProfit: grossUSD,
		MinLiquidityUSD:      ev.CollateralValueUSD,
		Source:               types.SourceLiquidation,
		Confidence:           0.5,
	}
	opp.Finalize(now)
	if opp.EstimatedNetProfit <= d.cfg.MinProfitUSD {
		return types.Opportunity{}, false
	}
	return opp, true
}

// evictLocked drops dedup entries older than the window; caller holds d.mu.
func (d *LiquidationDetector) evictLocked(now time.Time) {
	for key, at := range d.seen {
		if now.Sub(at) > liquidationDedupWindow {
			delete(d.seen, key)
		}
	}
}
