// Package types holds the data model shared by every component of the
// arbitrage core: tokens, venues, pools, quotes, the price graph's edge
// payload, pair priorities and opportunities.
package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Token is an immutable ERC20-like asset description loaded once at startup.
type Token struct {
	Symbol   string
	Address  common.Address
	Decimals uint8
}

// Validate checks the invariants from the data model section of the spec.
func (t Token) Validate() error {
	if t.Symbol == "" {
		return fmt.Errorf("token: empty symbol")
	}
	if t.Decimals > 30 {
		return fmt.Errorf("token %s: decimals %d out of range [0,30]", t.Symbol, t.Decimals)
	}
	return nil
}

// VenueKind enumerates the AMM invariant a Venue implements.
type VenueKind int

const (
	ConstantProduct VenueKind = iota
	Concentrated
	Stableswap
)

func (k VenueKind) String() string {
	switch k {
	case ConstantProduct:
		return "constantProduct"
	case Concentrated:
		return "concentrated"
	case Stableswap:
		return "stableswap"
	default:
		return "unknown"
	}
}

// Venue is a DEX deployment on one chain.
type Venue struct {
	Name    string
	Kind    VenueKind
	Fee     float64 // taker fee expressed as a fraction of input, e.g. 0.003
	ChainID uint64
}

func (v Venue) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("venue: empty name")
	}
	if v.Fee < 0 || v.Fee >= 1 {
		return fmt.Errorf("venue %s: fee %f out of range [0,1)", v.Name, v.Fee)
	}
	return nil
}

// PairKey identifies a trading pair irrespective of venue, e.g. "USDC/WETH".
// Construction always orders the two symbols lexicographically, so the same
// logical pair always maps to one key.
type PairKey string

// MakePairKey builds a canonical PairKey from two symbols ordered
// lexicographically by symbol. This is independent of a pool's token0/token1
// order, which compares addresses.
func MakePairKey(a, b string) PairKey {
	if a <= b {
		return PairKey(a + "/" + b)
	}
	return PairKey(b + "/" + a)
}

// SplitPairKey reverses MakePairKey, returning the two symbols in the
// canonical order a PairKey stores them.
func SplitPairKey(p PairKey) (string, string) {
	s := string(p)
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}

// QuoteKey identifies a single (pair, venue) observation slot in the Price Cache.
type QuoteKey struct {
	TokenA common.Address
	TokenB common.Address
	Venue  string
}
