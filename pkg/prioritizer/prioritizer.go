// Package prioritizer implements the Adaptive Prioritizer (component C6): a
// tiered scheduler mapping pair → monitoring tier, promoting to HOT on
// opportunity and decaying toward COLD on idleness, grounded on the
// teacher's config-driven threshold style (configs.StrategyYAMLData) applied
// to per-pair scheduling state instead of a single global strategy.
package prioritizer

import (
	"sync"
	"time"

	"arbitrage-sub000/pkg/types"
)

// Config holds the volume/liquidity thresholds that decide a pair's initial
// tier classification, per spec §6's `prioritizer` configuration surface.
type Config struct {
	HighVolumeUSD float64
	LowLiquidityUSD float64
	DecayInterval time.Duration
}

// DefaultConfig returns the prioritizer defaults used when the config file
// omits these fields.
func DefaultConfig() Config {
	return Config{
		HighVolumeUSD:   1_000_000,
		LowLiquidityUSD: 10_000,
		DecayInterval:   60 * time.Second,
	}
}

// Prioritizer owns per-pair scheduling state for one chain.
type Prioritizer struct {
	cfg       Config
	tierTable map[types.Tier]types.TierConfig

	mu    sync.RWMutex
	pairs map[types.PairKey]*types.PairPriority

	changes chan types.TierChange

	stop chan struct{}
}

// New constructs a Prioritizer. It does not start the decay loop; RunDecay
// does.
func New(cfg Config) *Prioritizer {
	p := &Prioritizer{
		cfg:       cfg,
		tierTable: types.DefaultTierTable(),
		pairs:     make(map[types.PairKey]*types.PairPriority),
		changes:   make(chan types.TierChange, 256),
		stop:      make(chan struct{}),
	}
	return p
}

// Changes returns the stream of tier transitions.
func (p *Prioritizer) Changes() <-chan types.TierChange { return p.changes }

// RunDecay starts the periodic decay loop; call once from the owning
// ChainCoordinator's start().
func (p *Prioritizer) RunDecay() {
	go func() {
		ticker := time.NewTicker(p.cfg.DecayInterval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				p.Decay()
			}
		}
	}()
}

// Stop ends the decay loop.
func (p *Prioritizer) Stop() { close(p.stop) }

// RegisterPair adds pair to the registry if absent, classifying its initial
// tier from volume/liquidity per spec §4.6: high volume -> WARM, low
// liquidity -> COLD, otherwise NORMAL.
func (p *Prioritizer) RegisterPair(pair types.PairKey, volumeUSD, liquidityUSD float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.pairs[pair]; ok {
		return
	}

	tier := types.TierNormal
	switch {
	case liquidityUSD < p.cfg.LowLiquidityUSD:
		tier = types.TierCold
	case volumeUSD >= p.cfg.HighVolumeUSD:
		tier = types.TierWarm
	}

	p.pairs[pair] = &types.PairPriority{
		Pair:         pair,
		Tier:         tier,
		LastChecked:  time.Now(),
		VolumeScore:  volumeUSD,
		LiquidityUSD: liquidityUSD,
	}
}

// RecordOpportunity force-promotes pair to HOT and stamps LastOpportunity.
func (p *Prioritizer) RecordOpportunity(pair types.PairKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pp, ok := p.pairs[pair]
	if !ok {
		pp = &types.PairPriority{Pair: pair, Tier: types.TierNormal, LastChecked: time.Now()}
		p.pairs[pair] = pp
	}
	from := pp.Tier
	now := time.Now()
	pp.LastOpportunity = &now
	pp.OpportunityCount++
	pp.Tier = types.TierHot
	p.emitChange(pair, from, types.TierHot, types.ReasonOpportunity)
}

// ShouldCheck reports whether blockNumber falls on pair's sampling cadence.
func (p *Prioritizer) ShouldCheck(pair types.PairKey, blockNumber uint64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pp, ok := p.pairs[pair]
	if !ok {
		return true
	}
	pp.LastChecked = time.Now()
	period := p.tierTable[pp.Tier].SamplingPeriodBlocks
	if period == 0 {
		period = 1
	}
	return blockNumber%period == 0
}

// SetTier manually overrides pair's tier, e.g. from an operator action.
func (p *Prioritizer) SetTier(pair types.PairKey, t types.Tier) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pp, ok := p.pairs[pair]
	if !ok {
		pp = &types.PairPriority{Pair: pair, LastChecked: time.Now()}
		p.pairs[pair] = pp
	}
	from := pp.Tier
	pp.Tier = t
	p.emitChange(pair, from, t, types.ReasonManual)
}

// Decay demotes every pair whose idle time has exceeded its tier's maxIdle,
// one step toward COLD, per spec §4.6. It never promotes; this is the
// monotone-toward-COLD invariant from spec §8 item 5.
func (p *Prioritizer) Decay() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	for pair, pp := range p.pairs {
		cfg := p.tierTable[pp.Tier]
		if cfg.MaxIdle <= 0 {
			continue
		}
		lastOpp := pp.LastChecked
		if pp.LastOpportunity != nil {
			lastOpp = *pp.LastOpportunity
		}
		if now.Sub(lastOpp) <= cfg.MaxIdle {
			continue
		}
		from := pp.Tier
		to := from + 1
		if to > types.TierCold {
			to = types.TierCold
		}
		if to == from {
			continue
		}
		pp.Tier = to
		p.emitChange(pair, from, to, types.ReasonDecay)
	}
}

// Snapshot returns a copy of the current priority state for pair, if known.
func (p *Prioritizer) Snapshot(pair types.PairKey) (types.PairPriority, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pp, ok := p.pairs[pair]
	if !ok {
		return types.PairPriority{}, false
	}
	return *pp, true
}

func (p *Prioritizer) emitChange(pair types.PairKey, from, to types.Tier, reason types.TierChangeReason) {
	if from == to {
		return
	}
	select {
	case p.changes <- types.TierChange{Pair: pair, From: from, To: to, Reason: reason}:
	default:
	}
}
