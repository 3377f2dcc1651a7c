package arbitrage

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"arbitrage-sub000/pkg/types"
)

// DualChainStatus is the aggregate result state of a cross-chain execution,
// per spec §4.11.
type DualChainStatus string

const (
	FullSuccess    DualChainStatus = "FULL_SUCCESS"
	PartialSuccess DualChainStatus = "PARTIAL_SUCCESS"
	FullFailure    DualChainStatus = "FULL_FAILURE"
)

// bridgeRoute keys a (fromChain, toChain) pair to its BridgeAdapter.
type bridgeRoute struct {
	from, to uint64
}

// DualChainOpportunity is a cross-chain opportunity whose two legs execute
// on different chains, bridged by a BridgeAdapter for the value transfer
// between them.
type DualChainOpportunity struct {
	FromChain   uint64
	ToChain     uint64
	FromLeg     types.Opportunity
	ToLeg       types.Opportunity
	BridgeToken string
}

// DualChainResult is the outcome of CrossChainRouter.ExecuteDualChain.
type DualChainResult struct {
	Status        DualChainStatus
	FromResult    types.ExecutionResult
	FromErr       error
	ToResult      types.ExecutionResult
	ToErr         error
	NetProfitUSD  float64
}

// CrossChainRouter owns a set of ChainCoordinators and a bridge-adapter
// routing table, and coordinates independent executions across two chains.
// No cross-chain atomicity is claimed: each leg is a regular chain-local
// execution, and the router only aggregates their outcomes after the fact.
type CrossChainRouter struct {
	logger log.Logger

	mu           sync.RWMutex
	coordinators map[uint64]*ChainCoordinator
	bridges      map[bridgeRoute]types.BridgeAdapter
}

// NewCrossChainRouter constructs an empty router.
func NewCrossChainRouter(logger log.Logger) *CrossChainRouter {
	if logger == nil {
		logger = log.New("component", "crosschainrouter")
	}
	return &CrossChainRouter{
		logger:       logger,
		coordinators: make(map[uint64]*ChainCoordinator),
		bridges:      make(map[bridgeRoute]types.BridgeAdapter),
	}
}

// AddChain registers a ChainCoordinator the router can dispatch legs to.
func (r *CrossChainRouter) AddChain(c *ChainCoordinator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coordinators[c.ChainID()] = c
}

// SetBridge installs the BridgeAdapter used for transfers from fromChain to
// toChain.
func (r *CrossChainRouter) SetBridge(fromChain, toChain uint64, adapter types.BridgeAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bridges[bridgeRoute{fromChain, toChain}] = adapter
}

// StartAll starts every registered coordinator.
func (r *CrossChainRouter) StartAll(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.coordinators {
		if err := c.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// StopAll gracefully stops every registered coordinator.
func (r *CrossChainRouter) StopAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var wg sync.WaitGroup
	for _, c := range r.coordinators {
		wg.Add(1)
		go func(c *ChainCoordinator) {
			defer wg.Done()
			c.Stop()
		}(c)
	}
	wg.Wait()
}

// Statuses returns every registered coordinator's current status.
func (r *CrossChainRouter) Statuses() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Status, 0, len(r.coordinators))
	for _, c := range r.coordinators {
		out = append(out, c.Status())
	}
	return out
}

// ExecuteDualChain begins two independent chain-local executions for opp's
// two legs and aggregates their outcomes per spec §4.11. Both legs start
// concurrently, since no cross-chain atomicity is claimed. The bridge
// adapters installed with SetBridge are not consulted: this method neither
// quotes nor executes a value transfer between the two chains.
func (r *CrossChainRouter) ExecuteDualChain(ctx context.Context, opp DualChainOpportunity, fromExecutor, toExecutor types.Executor) (DualChainResult, error) {
	r.mu.RLock()
	fromCoord := r.coordinators[opp.FromChain]
	toCoord := r.coordinators[opp.ToChain]
	r.mu.RUnlock()
	if fromCoord == nil || toCoord == nil {
		return DualChainResult{}, fmt.Errorf("crosschainrouter: unknown chain pair (%d,%d)", opp.FromChain, opp.ToChain)
	}

	var wg sync.WaitGroup
	var fromResult, toResult types.ExecutionResult
	var fromErr, toErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		fromResult, fromErr = fromExecutor.Execute(ctx, opp.FromLeg)
	}()
	go func() {
		defer wg.Done()
		toResult, toErr = toExecutor.Execute(ctx, opp.ToLeg)
	}()
	wg.Wait()

	fromOK := fromErr == nil && fromResult.Succeeded()
	toOK := toErr == nil && toResult.Succeeded()

	var status DualChainStatus
	switch {
	case fromOK && toOK:
		status = FullSuccess
	case fromOK || toOK:
		status = PartialSuccess
	default:
		status = FullFailure
	}

	netProfit := dualChainNetProfit(opp, fromResult, toResult, fromOK, toOK)

	return DualChainResult{
		Status:       status,
		FromResult:   fromResult,
		FromErr:      fromErr,
		ToResult:     toResult,
		ToErr:        toErr,
		NetProfitUSD: netProfit,
	}, nil
}

// dualChainNetProfit subtracts the gas cost of any failed leg from the
// opportunity's estimated gross profit, per spec §4.11's "computed
// netProfitUSD that subtracts gas lost on failed legs" clause.
func dualChainNetProfit(opp DualChainOpportunity, fromResult, toResult types.ExecutionResult, fromOK, toOK bool) float64 {
	gross := opp.FromLeg.EstimatedGrossProfit + opp.ToLeg.EstimatedGrossProfit
	lost := 0.0
	if !fromOK {
		lost += opp.FromLeg.EstimatedGasCostUSD
	}
	if !toOK {
		lost += opp.ToLeg.EstimatedGasCostUSD
	}
	if fromOK && fromResult.ActualProfitUSD != nil {
		gross = *fromResult.ActualProfitUSD + opp.ToLeg.EstimatedGrossProfit
	}
	if toOK && toResult.ActualProfitUSD != nil {
		if fromOK && fromResult.ActualProfitUSD != nil {
			gross = *fromResult.ActualProfitUSD + *toResult.ActualProfitUSD
		} else {
			gross = opp.FromLeg.EstimatedGrossProfit + *toResult.ActualProfitUSD
		}
	}
	return gross - lost
}
