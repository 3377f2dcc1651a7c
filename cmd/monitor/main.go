// Command monitor is the entrypoint that wires every per-chain component
// into a running detection-and-dispatch pipeline, one ChainCoordinator per
// configured chain, composed behind a CrossChainRouter. Grounded on the
// teacher's cmd/main.go: load secrets from the environment, load
// configs/config.yml, dial the chain client(s), construct the domain object,
// and run it until signaled.
package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/joho/godotenv"

	arbitrage "arbitrage-sub000"
	"arbitrage-sub000/configs"
	"arbitrage-sub000/internal/db"
	"arbitrage-sub000/internal/poolregistry"
	"arbitrage-sub000/pkg/blockmonitor"
	"arbitrage-sub000/pkg/detectors"
	"arbitrage-sub000/pkg/dispatcher"
	"arbitrage-sub000/pkg/gascache"
	"arbitrage-sub000/pkg/ingestor"
	"arbitrage-sub000/pkg/pricecache"
	"arbitrage-sub000/pkg/pricefetcher"
	"arbitrage-sub000/pkg/pricegraph"
	"arbitrage-sub000/pkg/prioritizer"
	"arbitrage-sub000/pkg/rpcpool"
	"arbitrage-sub000/pkg/scorer"
	"arbitrage-sub000/pkg/types"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn("no .env file loaded", "err", err)
	}

	handler := log.NewTerminalHandlerWithLevel(os.Stderr, log.LevelInfo, true)
	log.SetDefault(log.NewLogger(handler))

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yml"
	}
	conf, err := configs.LoadConfig(configPath)
	if err != nil {
		log.Crit("failed to load configuration", "err", err)
	}

	var recorder dispatcher.OutcomeRecorder
	if dsn := os.Getenv("MYSQL_DSN"); dsn != "" {
		rec, err := db.NewMySQLRecorder(dsn)
		if err != nil {
			log.Error("failed to connect outcome recorder, continuing without persistence", "err", err)
		} else {
			recorder = rec
		}
	}

	router := arbitrage.NewCrossChainRouter(log.New("component", "router"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var pipelines []*chainPipeline
	for _, chainCfg := range conf.Chains {
		if !chainCfg.IsEnabled() {
			log.Info("chain disabled in configuration, skipping", "chain", chainCfg.Name)
			continue
		}
		pipeline, err := buildChainPipeline(ctx, conf, chainCfg, recorder)
		if err != nil {
			log.Error("failed to build chain pipeline, skipping", "chain", chainCfg.Name, "err", err)
			continue
		}
		pipelines = append(pipelines, pipeline)
		router.AddChain(pipeline.coordinator)
	}

	if len(pipelines) == 0 {
		log.Crit("no chains enabled or all failed to start")
	}

	for _, p := range pipelines {
		p.startIngestLoop(ctx)
	}

	if err := router.StartAll(ctx); err != nil {
		log.Crit("failed to start chain coordinators", "err", err)
	}
	log.Info("arbitrage detection core running", "chains", len(pipelines))

	<-ctx.Done()
	log.Info("shutdown signal received, stopping all chains")
	router.StopAll()
}

// chainPipeline bundles one chain's constructed components together with
// the glue state (last-seen prices, per-block update tracking) that doesn't
// belong inside any single component package.
type chainPipeline struct {
	chainID     uint64
	logger      log.Logger
	ingest      *ingestor.Ingestor
	cache       *pricecache.Cache
	registry    *poolregistry.Registry
	statDet     *detectors.StatisticalDetector
	coordinator *arbitrage.ChainCoordinator

	lastPriceMu sync.Mutex
	lastPrice   map[types.PairKey]map[string]float64

	movesMu sync.Mutex
	moves   []detectors.PriceMove
}

// drainMoves returns and clears the price moves observed since the last
// call, for the per-block DetectFunc to feed the Differential Detector.
func (p *chainPipeline) drainMoves() []detectors.PriceMove {
	p.movesMu.Lock()
	defer p.movesMu.Unlock()
	out := p.moves
	p.moves = nil
	return out
}

func buildChainPipeline(ctx context.Context, conf *configs.Config, chainCfg configs.ChainYAMLData, recorder dispatcher.OutcomeRecorder) (*chainPipeline, error) {
	chainID := chainCfg.ID
	logger := log.New("chain", chainCfg.Name, "chainId", chainID)

	endpoints := chainCfg.ToEndpointConfigs()
	pool, err := rpcpool.New(ctx, chainID, endpoints, logger)
	if err != nil {
		return nil, fmt.Errorf("rpc pool: %w", err)
	}

	tokens, err := chainCfg.ToTokens()
	if err != nil {
		return nil, fmt.Errorf("tokens: %w", err)
	}
	venues, err := chainCfg.ToVenues(chainID)
	if err != nil {
		return nil, fmt.Errorf("venues: %w", err)
	}
	poolList, err := chainCfg.ToPools(venues, tokens)
	if err != nil {
		return nil, fmt.Errorf("pools: %w", err)
	}

	registry := poolregistry.New()
	venueFee := make(map[string]float64, len(venues))
	for _, v := range venues {
		venueFee[v.Name] = v.Fee
	}
	for _, p := range poolList {
		registry.Add(p)
	}

	expectedBlockTime := chainCfg.ExpectedBlockTime()
	monitor := blockmonitor.New(chainID, pool, blockmonitor.WithExpectedBlockTime(expectedBlockTime), blockmonitor.WithLogger(logger))

	ing := ingestor.New(chainID, pool, ingestor.WithLogger(logger))
	for _, p := range poolList {
		if err := ing.RegisterPool(ctx, p); err != nil {
			logger.Warn("pool registration failed", "pool", p.Address.Hex(), "err", err)
		}
	}

	cache := pricecache.New()
	gas := gascache.New(logger)
	prio := prioritizer.New(conf.ToPrioritizerConfig())
	fetcher := pricefetcher.New(pool, cache, prio, registry, logger)
	sc := scorer.New()

	detCfg := conf.ToDetectionConfig()
	gasEstimator := &poolGasEstimator{cache: gas, pool: pool}

	crossVenue := detectors.NewCrossVenueDetector(chainID, cache, registry, nil, gasEstimator, detCfg, logger)
	triangular := detectors.NewTriangularDetector(chainID, nil, gasEstimator, detCfg, logger)
	differential := detectors.NewDifferentialDetector(chainID, cache, registry, nil, gasEstimator, detCfg, logger)
	statistical := detectors.NewStatisticalDetector(chainID, nil, gasEstimator, detCfg, logger)
	stablecoin := detectors.NewStablecoinDetector(chainID, cache, crossVenue, detCfg, logger)
	// TODO: wire detectors.NewLiquidationDetector against a subscribed
	// lending-pool LiquidationCall log stream once a lending-protocol pool
	// address is available from configuration; it reacts to individual
	// decoded events rather than a per-block DetectFunc, so it needs its own
	// ingestor.SubscribeLogs-backed source, not a place in the detect above.

	pairLiquidity := make(map[types.PairKey]float64, len(poolList))
	for _, p := range poolList {
		pair := p.PairKey()
		if p.LiquidityUSD > pairLiquidity[pair] {
			pairLiquidity[pair] = p.LiquidityUSD
		}
	}

	var pairs []types.PairKey
	seen := make(map[types.PairKey]bool)
	var stablePairs []types.PairKey
	for _, p := range poolList {
		pair := p.PairKey()
		if !seen[pair] {
			seen[pair] = true
			pairs = append(pairs, pair)
			if detectors.IsStablePair(pair) {
				stablePairs = append(stablePairs, pair)
			}
			prio.RegisterPair(pair, 0, pairLiquidity[pair])
		}
	}

	liquidityOf := func(pair types.PairKey) float64 {
		var max float64
		for _, q := range cache.GetPair(pair) {
			if q.LiquidityUSD > max {
				max = q.LiquidityUSD
			}
		}
		return max
	}

	var pipe *chainPipeline
	detect := func(dctx context.Context, block uint64, _ time.Duration) []types.Opportunity {
		graph := pricegraph.BuildFromQuotes(cache.Snapshot(), func(venue string) float64 { return venueFee[venue] })

		var out []types.Opportunity
		out = append(out, crossVenue.Detect(dctx, block, pairs, expectedBlockTime)...)
		out = append(out, triangular.Detect(dctx, block, graph, expectedBlockTime)...)
		out = append(out, stablecoin.Detect(dctx, block, stablePairs, graph, expectedBlockTime)...)
		out = append(out, statistical.Detect(dctx, block, expectedBlockTime, liquidityOf)...)
		if pipe != nil {
			if moves := pipe.drainMoves(); len(moves) > 0 {
				out = append(out, differential.Detect(dctx, block, moves, expectedBlockTime)...)
			}
		}
		return out
	}

	var executor types.Executor = &detectionOnlyExecutor{}
	dispatchOpts := []dispatcher.Option{dispatcher.WithLogger(logger)}
	if recorder != nil {
		dispatchOpts = append(dispatchOpts, dispatcher.WithRecorder(recorder))
	}
	disp := dispatcher.New(chainID, executor, prio, dispatchOpts...)

	coordinator := arbitrage.NewChainCoordinator(chainID, arbitrage.Deps{
		Pool:     pool,
		Monitor:  monitor,
		Ingestor: ing,
		Cache:    cache,
		Gas:      gas,
		Prio:     prio,
		Fetcher:  fetcher,
		Scorer:   sc,
		Dispatch: disp,
		Pools:    poolList,
		Detect:   detect,
		Logger:   logger,
	})

	pipe = &chainPipeline{
		chainID:     chainID,
		logger:      logger,
		ingest:      ing,
		cache:       cache,
		registry:    registry,
		statDet:     statistical,
		coordinator: coordinator,
		lastPrice:   make(map[types.PairKey]map[string]float64),
	}
	return pipe, nil
}

// startIngestLoop drains the ingestor's reserve/swap streams into the price
// cache and feeds the differential/statistical detectors their per-block
// observations, the glue spec §4.3/§4.7 leave to "the caller".
func (p *chainPipeline) startIngestLoop(ctx context.Context) {
	go func() {
		reserves := p.ingest.ReserveUpdates()
		swaps := p.ingest.Swaps()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-reserves:
				if !ok {
					return
				}
				p.handleReserveUpdate(ev)
			case ev, ok := <-swaps:
				if !ok {
					return
				}
				p.handleSwap(ev)
			}
		}
	}()
}

func (p *chainPipeline) handleReserveUpdate(ev ingestor.ReserveUpdate) {
	pool, ok := p.registry.ByAddress(ev.Pool)
	if !ok {
		return
	}
	q, err := p.registry.QuoteFromReserves(pool, ev.ReserveA, ev.ReserveB, ev.BlockNumber)
	if err != nil {
		p.logger.Debug("reserve update decode failed", "pool", ev.Pool.Hex(), "err", err)
		return
	}
	p.registry.UpdateReserves(ev.Pool, ev.ReserveA, ev.ReserveB)
	p.observeQuote(pool, q)
}

func (p *chainPipeline) handleSwap(ev ingestor.SwapObserved) {
	pool, ok := p.registry.ByAddress(ev.Pool)
	if !ok {
		return
	}
	q := p.registry.QuoteFromSqrtPrice(pool, ev.SqrtPriceX96, ev.BlockNumber)
	p.observeQuote(pool, q)
}

func (p *chainPipeline) observeQuote(pool types.Pool, q types.Quote) {
	key := types.QuoteKey{TokenA: pool.TokenA.Address, TokenB: pool.TokenB.Address, Venue: pool.Venue.Name}
	p.cache.Put(key, q)

	p.lastPriceMu.Lock()
	venuePrices, ok := p.lastPrice[q.PairKey]
	if !ok {
		venuePrices = make(map[string]float64)
		p.lastPrice[q.PairKey] = venuePrices
	}
	old := venuePrices[q.Venue]
	venuePrices[q.Venue] = q.Price
	p.lastPriceMu.Unlock()

	if old > 0 {
		move := detectors.PriceMove{Pair: q.PairKey, Venue: q.Venue, OldPrice: old, NewPrice: q.Price, BlockNumber: q.BlockNumber}
		if move.Magnitude() > 0 {
			p.movesMu.Lock()
			p.moves = append(p.moves, move)
			p.movesMu.Unlock()
		}
	}

	for venue, price := range p.venuePricesSnapshot(q.PairKey) {
		if venue == q.Venue || price <= 0 || q.Price <= 0 {
			continue
		}
		p.statDet.Observe(q.PairKey, venue, q.Venue, price/q.Price, time.Now())
	}
}

func (p *chainPipeline) venuePricesSnapshot(pair types.PairKey) map[string]float64 {
	p.lastPriceMu.Lock()
	defer p.lastPriceMu.Unlock()
	out := make(map[string]float64, len(p.lastPrice[pair]))
	for k, v := range p.lastPrice[pair] {
		out[k] = v
	}
	return out
}

// poolGasEstimator adapts gascache.Cache into detectors.GasEstimator,
// fetching the chain's suggested gas price through the pooled RPC client on
// a cache miss.
type poolGasEstimator struct {
	cache *gascache.Cache
	pool  *rpcpool.Pool
}

func (g *poolGasEstimator) GasPriceWei(ctx context.Context) (float64, bool) {
	wei, err := g.cache.GetGasPrice(ctx, func(fctx context.Context) (*big.Int, error) {
		return g.pool.SuggestGasPrice(fctx)
	})
	if err != nil || wei == nil {
		return 0, false
	}
	f := new(big.Float).SetInt(wei)
	out, _ := f.Float64()
	return out, true
}

// detectionOnlyExecutor is the Executor wired when execution.mode is
// "detection" (the conservative default): it never submits a transaction,
// it only records that an opportunity was ranked executable. Real execution
// (simulation/live signing and submission) is out of scope for this core.
type detectionOnlyExecutor struct{}

func (detectionOnlyExecutor) Execute(ctx context.Context, opp types.Opportunity) (types.ExecutionResult, error) {
	return types.ExecutionResult{Status: types.ExecutionSimulated}, nil
}
