// Package configs loads the YAML configuration surface enumerated in spec
// §6 and translates it into the validated, defaulted structs each component
// package constructs itself from, mirroring the teacher's configs/config.go
// LoadConfig + To*Config() translation-struct pattern.
package configs

import (
	"bytes"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"arbitrage-sub000/pkg/detectors"
	"arbitrage-sub000/pkg/prioritizer"
	"arbitrage-sub000/pkg/rpcpool"
	"arbitrage-sub000/pkg/types"
)

// Config is the entire configuration surface loaded from config.yml.
type Config struct {
	Chains      []ChainYAMLData     `yaml:"chains"`
	Detection   DetectionYAMLData   `yaml:"detection"`
	Prioritizer PrioritizerYAMLData `yaml:"prioritizer"`
	Execution   ExecutionYAMLData   `yaml:"execution"`
	FlashLoan   FlashLoanYAMLData   `yaml:"flashLoan"`
}

// EndpointYAMLData is one RPC endpoint entry for a chain.
type EndpointYAMLData struct {
	URL    string `yaml:"url"`
	Kind   string `yaml:"kind"` // "http" or "ws", informational: Dial infers the transport from the URL scheme
	Weight int    `yaml:"weight"`
}

// VenueYAMLData is one DEX deployment entry for a chain.
type VenueYAMLData struct {
	Name        string `yaml:"name"`
	Kind        string `yaml:"kind"` // "constantProduct" | "concentrated" | "stableswap"
	FeeBps      int    `yaml:"feeBps"`
	FactoryAddr string `yaml:"factoryAddr"`
	QuoterAddr  string `yaml:"quoterAddr"`
}

// TokenYAMLData is one known ERC20 entry for a chain.
type TokenYAMLData struct {
	Symbol   string `yaml:"symbol"`
	Address  string `yaml:"address"`
	Decimals uint8  `yaml:"decimals"`
}

// PoolYAMLData is one deployed pool entry, naming the pair/venue it serves;
// pool discovery (factory scanning for new pairs) is out of scope, so every
// pool a chain trades against must be named explicitly here.
type PoolYAMLData struct {
	Address      string   `yaml:"address"`
	Venue        string   `yaml:"venue"`
	TokenA       string   `yaml:"tokenA"`
	TokenB       string   `yaml:"tokenB"`
	TierFee      *float64 `yaml:"tierFee"`
	LiquidityUSD float64  `yaml:"liquidityUSD"`
}

// ChainYAMLData is one chain's full configuration entry.
type ChainYAMLData struct {
	ID                uint64             `yaml:"id"`
	Name              string             `yaml:"name"`
	NativeTokenSymbol string             `yaml:"nativeTokenSymbol"`
	NativeUSD         float64            `yaml:"nativeUSD"`
	ExpectedBlockMs   int                `yaml:"expectedBlockMs"`
	Endpoints         []EndpointYAMLData `yaml:"endpoints"`
	Venues            []VenueYAMLData    `yaml:"venues"`
	Tokens            []TokenYAMLData    `yaml:"tokens"`
	Pools             []PoolYAMLData     `yaml:"pools"`
	BaseTokens        []string           `yaml:"baseTokens"`
	Enabled           *bool              `yaml:"enabled"`
}

// DetectionYAMLData is the `detection` configuration surface.
type DetectionYAMLData struct {
	MinProfitPercent float64 `yaml:"minProfitPercent"`
	MinProfitUSD     float64 `yaml:"minProfitUSD"`
	MaxPaths         int     `yaml:"maxPaths"`
	MaxDepth         int     `yaml:"maxDepth"`
	ZThreshold       float64 `yaml:"zThreshold"`
	WindowSize       int     `yaml:"windowSize"`
}

// PrioritizerYAMLData is the `prioritizer` configuration surface.
type PrioritizerYAMLData struct {
	HighVolumeUSD float64 `yaml:"highVolumeUSD"`
	LowVolumeUSD  float64 `yaml:"lowVolumeUSD"`
	DecayMs       int     `yaml:"decayMs"`
}

// ExecutionYAMLData is the `execution` configuration surface.
type ExecutionYAMLData struct {
	Mode               string `yaml:"mode"` // "detection" | "simulation" | "live"
	ForceMevProtection bool   `yaml:"forceMevProtection"`
}

// FlashLoanYAMLData is the `flashLoan` configuration surface.
type FlashLoanYAMLData struct {
	PreferZeroFee    bool     `yaml:"preferZeroFee"`
	AllowedProviders []string `yaml:"allowedProviders"`
}

// LoadConfig reads and parses config.yml into a Config struct. Unknown
// fields are rejected, matching spec §6's enumerated (closed) configuration
// surface: a typo in the YAML should fail loudly at startup, not silently
// no-op.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var config Config
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	return &config, nil
}

// ToDetectionConfig translates the YAML detection surface into
// detectors.Config, falling back to detectors.DefaultConfig for any zero
// field.
func (c *Config) ToDetectionConfig() detectors.Config {
	d := detectors.DefaultConfig()
	if c.Detection.MinProfitPercent != 0 {
		d.MinProfitPercent = c.Detection.MinProfitPercent
	}
	if c.Detection.MinProfitUSD != 0 {
		d.MinProfitUSD = c.Detection.MinProfitUSD
	}
	if c.Detection.MaxPaths != 0 {
		d.MaxPaths = c.Detection.MaxPaths
	}
	if c.Detection.MaxDepth != 0 {
		d.MaxDepth = c.Detection.MaxDepth
	}
	if c.Detection.ZThreshold != 0 {
		d.ZThreshold = c.Detection.ZThreshold
	}
	if c.Detection.WindowSize != 0 {
		d.WindowSize = c.Detection.WindowSize
	}
	return d
}

// ToPrioritizerConfig translates the YAML prioritizer surface into
// prioritizer.Config.
func (c *Config) ToPrioritizerConfig() prioritizer.Config {
	p := prioritizer.DefaultConfig()
	if c.Prioritizer.HighVolumeUSD != 0 {
		p.HighVolumeUSD = c.Prioritizer.HighVolumeUSD
	}
	if c.Prioritizer.LowVolumeUSD != 0 {
		p.LowLiquidityUSD = c.Prioritizer.LowVolumeUSD
	}
	if c.Prioritizer.DecayMs != 0 {
		p.DecayInterval = time.Duration(c.Prioritizer.DecayMs) * time.Millisecond
	}
	return p
}

// ToEndpointConfigs translates one chain's endpoint list into
// rpcpool.EndpointConfig.
func (ch *ChainYAMLData) ToEndpointConfigs() []rpcpool.EndpointConfig {
	out := make([]rpcpool.EndpointConfig, len(ch.Endpoints))
	for i, e := range ch.Endpoints {
		out[i] = rpcpool.EndpointConfig{URL: e.URL, Weight: e.Weight}
	}
	return out
}

// ToTokens translates one chain's token list into types.Token, keyed by
// symbol for venue/pool construction.
func (ch *ChainYAMLData) ToTokens() (map[string]types.Token, error) {
	out := make(map[string]types.Token, len(ch.Tokens))
	for _, t := range ch.Tokens {
		if !common.IsHexAddress(t.Address) {
			return nil, &types.ConfigError{Field: "chains.tokens.address", Err: fmt.Errorf("%s: invalid address %q", t.Symbol, t.Address)}
		}
		tok := types.Token{Symbol: t.Symbol, Address: common.HexToAddress(t.Address), Decimals: t.Decimals}
		if err := tok.Validate(); err != nil {
			return nil, &types.ConfigError{Field: "chains.tokens", Err: err}
		}
		out[t.Symbol] = tok
	}
	return out, nil
}

// ToVenues translates one chain's venue list into types.Venue, keyed by
// name.
func (ch *ChainYAMLData) ToVenues(chainID uint64) (map[string]types.Venue, error) {
	out := make(map[string]types.Venue, len(ch.Venues))
	for _, v := range ch.Venues {
		venue := types.Venue{Name: v.Name, Kind: venueKind(v.Kind), Fee: float64(v.FeeBps) / 10000.0, ChainID: chainID}
		if err := venue.Validate(); err != nil {
			return nil, &types.ConfigError{Field: "chains.venues", Err: err}
		}
		out[v.Name] = venue
	}
	return out, nil
}

// ToPools translates one chain's pool list into types.Pool, resolving each
// entry's venue/token references against the already-translated venues and
// tokens maps. A pool naming an unknown venue or token is a configuration
// error, not a silent skip.
func (ch *ChainYAMLData) ToPools(venues map[string]types.Venue, tokens map[string]types.Token) ([]types.Pool, error) {
	out := make([]types.Pool, 0, len(ch.Pools))
	for _, p := range ch.Pools {
		if !common.IsHexAddress(p.Address) {
			return nil, &types.ConfigError{Field: "chains.pools.address", Err: fmt.Errorf("invalid address %q", p.Address)}
		}
		venue, ok := venues[p.Venue]
		if !ok {
			return nil, &types.ConfigError{Field: "chains.pools.venue", Err: fmt.Errorf("unknown venue %q", p.Venue)}
		}
		tokenA, ok := tokens[p.TokenA]
		if !ok {
			return nil, &types.ConfigError{Field: "chains.pools.tokenA", Err: fmt.Errorf("unknown token %q", p.TokenA)}
		}
		tokenB, ok := tokens[p.TokenB]
		if !ok {
			return nil, &types.ConfigError{Field: "chains.pools.tokenB", Err: fmt.Errorf("unknown token %q", p.TokenB)}
		}
		pool := types.Pool{
			Address:      common.HexToAddress(p.Address),
			Venue:        venue,
			TokenA:       tokenA,
			TokenB:       tokenB,
			TierFee:      p.TierFee,
			LiquidityUSD: p.LiquidityUSD,
		}
		switch venue.Kind {
		case types.Concentrated:
			pool.Concentrated = &types.ConcentratedState{}
		default:
			pool.Reserves = &types.ReserveState{ReserveA: big.NewInt(0), ReserveB: big.NewInt(0)}
		}
		out = append(out, pool)
	}
	return out, nil
}

func venueKind(s string) types.VenueKind {
	switch s {
	case "concentrated":
		return types.Concentrated
	case "stableswap":
		return types.Stableswap
	default:
		return types.ConstantProduct
	}
}

// IsEnabled reports whether a chain entry is enabled; chains are opt-out per
// spec §6, so a nil Enabled field means true.
func (ch *ChainYAMLData) IsEnabled() bool {
	return ch.Enabled == nil || *ch.Enabled
}

// ExpectedBlockTime converts ExpectedBlockMs into a time.Duration.
func (ch *ChainYAMLData) ExpectedBlockTime() time.Duration {
	if ch.ExpectedBlockMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(ch.ExpectedBlockMs) * time.Millisecond
}
