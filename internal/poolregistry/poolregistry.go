// Package poolregistry is the static pool directory cmd/monitor builds from
// configuration at startup: it implements detectors.PoolLookup (resolving
// (pair, venue) -> Pool for the Cross-Venue/Stablecoin detectors) and
// pricefetcher.PoolReader (building the eth_call and decoding its result for
// the Price Fetcher's RPC-fallback path), grounded on the teacher's
// contractclient package, which paired one ABI with one deployed address per
// contract; generalized here to one selector pair per venue kind instead of
// one bespoke ABI per contract.
package poolregistry

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"arbitrage-sub000/pkg/chainclient"
	"arbitrage-sub000/pkg/types"
	"arbitrage-sub000/pkg/util"
)

// getReservesSelector/slot0Selector are the 4-byte function selectors for
// the two state-reading calls this registry knows how to issue, computed the
// same way the Event Ingestor hard-codes its log topics.
var (
	getReservesSelector = selector("getReserves()")
	slot0Selector       = selector("slot0()")
)

func selector(sig string) [4]byte {
	var s [4]byte
	copy(s[:], crypto.Keccak256([]byte(sig))[:4])
	return s
}

// Registry is an in-memory, venue-agnostic directory of known pools, keyed
// by (pair, venue). Its set of pools is the one added from configuration:
// pool discovery (factory scanning, new-pair detection) is out of scope for
// this registry. The only state that changes afterwards is each registered
// pool's reserves, written in place by UpdateReserves.
type Registry struct {
	byPairVenue map[types.PairKey]map[string]types.Pool
	byAddress   map[common.Address]types.Pool
	all         []types.Pool
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{
		byPairVenue: make(map[types.PairKey]map[string]types.Pool),
		byAddress:   make(map[common.Address]types.Pool),
	}
}

// Add registers one pool under its pair key, venue name, and address.
func (r *Registry) Add(p types.Pool) {
	pair := p.PairKey()
	venues, ok := r.byPairVenue[pair]
	if !ok {
		venues = make(map[string]types.Pool)
		r.byPairVenue[pair] = venues
	}
	venues[p.Venue.Name] = p
	r.byAddress[p.Address] = p
	r.all = append(r.all, p)
}

// All returns every registered pool.
func (r *Registry) All() []types.Pool { return r.all }

// PoolFor implements detectors.PoolLookup.
func (r *Registry) PoolFor(pair types.PairKey, venue string) (types.Pool, bool) {
	venues, ok := r.byPairVenue[pair]
	if !ok {
		return types.Pool{}, false
	}
	p, ok := venues[venue]
	return p, ok
}

// ByAddress resolves a pool by its contract address, the form event logs
// arrive in.
func (r *Registry) ByAddress(addr common.Address) (types.Pool, bool) {
	p, ok := r.byAddress[addr]
	return p, ok
}

// QuoteFromReserves converts a decoded Sync(reserve0, reserve1) event into
// the Quote the Price Cache stores, mirroring decodeReserves' price math for
// the event-sourced path instead of the RPC-read path: reserve0/reserve1
// always correspond to token0/token1 in lexicographic address order,
// regardless of which of TokenA/TokenB that is for this pool.
func (r *Registry) QuoteFromReserves(pool types.Pool, reserve0, reserve1 *big.Int, blockNumber uint64) (types.Quote, error) {
	if reserve0.Sign() == 0 || reserve1.Sign() == 0 {
		return types.Quote{}, &types.PermanentProtocolError{
			Pool: pool.Address.Hex(),
			Err:  fmt.Errorf("degenerate reserves: %s/%s", reserve0, reserve1),
		}
	}
	t0, t1 := pool.Token0Token1()
	price := ratioAdjustedForDecimals(reserve1, reserve0, t1.Decimals, t0.Decimals)
	return types.Quote{
		PairKey:      pool.PairKey(),
		Venue:        pool.Venue.Name,
		Price:        price,
		LiquidityUSD: pool.LiquidityUSD,
		BlockNumber:  blockNumber,
		ObservedAt:   time.Now(),
		Source:       types.SourceSyncEvent,
	}, nil
}

// UpdateReserves writes a freshly observed Sync(reserve0, reserve1) back into
// the pool registered at addr, keeping its stored ReserveState in sync with
// the chain. Pool's (TokenA, TokenB) order need not match the lexicographic
// (token0, token1) order the event payload is expressed in, so the values
// are placed on whichever of ReserveA/ReserveB corresponds to token0.
// Detectors that size trades off Pool.Reserves (e.g. the Cross-Venue
// Detector) read this same pointer, so they see the update immediately.
func (r *Registry) UpdateReserves(addr common.Address, reserve0, reserve1 *big.Int) {
	pool, ok := r.byAddress[addr]
	if !ok || pool.Reserves == nil {
		return
	}
	t0, _ := pool.Token0Token1()
	if t0.Address == pool.TokenA.Address {
		pool.Reserves.ReserveA.Set(reserve0)
		pool.Reserves.ReserveB.Set(reserve1)
	} else {
		pool.Reserves.ReserveA.Set(reserve1)
		pool.Reserves.ReserveB.Set(reserve0)
	}
}

// QuoteFromSqrtPrice converts a decoded Swap event's post-swap sqrtPriceX96
// into the Quote the Price Cache stores, mirroring decodeSlot0's price math
// for the event-sourced path.
func (r *Registry) QuoteFromSqrtPrice(pool types.Pool, sqrtPriceX96 *big.Int, blockNumber uint64) types.Quote {
	price := util.SqrtPriceX96ToPrice(sqrtPriceX96, pool.TokenA.Decimals, pool.TokenB.Decimals)
	return types.Quote{
		PairKey:      pool.PairKey(),
		Venue:        pool.Venue.Name,
		Price:        price,
		LiquidityUSD: pool.LiquidityUSD,
		BlockNumber:  blockNumber,
		ObservedAt:   time.Now(),
		Source:       types.SourceSwapEvent,
	}
}

// CallMsg implements pricefetcher.PoolReader: it builds the state-reading
// eth_call for pool's venue kind.
func (r *Registry) CallMsg(pool types.Pool) chainclient.CallMsg {
	var data []byte
	switch pool.Venue.Kind {
	case types.Concentrated:
		data = slot0Selector[:]
	default:
		data = getReservesSelector[:]
	}
	return chainclient.CallMsg{To: pool.Address, Data: data}
}

// Decode implements pricefetcher.PoolReader, turning the raw eth_call
// response into a Quote at blockNumber.
func (r *Registry) Decode(pool types.Pool, data []byte, blockNumber uint64) (types.Quote, error) {
	switch pool.Venue.Kind {
	case types.Concentrated:
		return r.decodeSlot0(pool, data, blockNumber)
	default:
		return r.decodeReserves(pool, data, blockNumber)
	}
}

func (r *Registry) decodeReserves(pool types.Pool, data []byte, blockNumber uint64) (types.Quote, error) {
	if len(data) < 64 {
		return types.Quote{}, fmt.Errorf("poolregistry: getReserves return too short (%d bytes)", len(data))
	}
	reserveA := new(big.Int).SetBytes(data[0:32])
	reserveB := new(big.Int).SetBytes(data[32:64])
	if reserveA.Sign() == 0 || reserveB.Sign() == 0 {
		return types.Quote{}, &types.PermanentProtocolError{
			Pool: pool.Address.Hex(),
			Err:  fmt.Errorf("degenerate reserves: %s/%s", reserveA, reserveB),
		}
	}

	t0, t1 := pool.Token0Token1()
	priceT1PerT0 := ratioAdjustedForDecimals(reserveB, reserveA, t1.Decimals, t0.Decimals)

	return types.Quote{
		PairKey:      pool.PairKey(),
		Venue:        pool.Venue.Name,
		Price:        priceT1PerT0,
		LiquidityUSD: pool.LiquidityUSD,
		BlockNumber:  blockNumber,
		Source:       types.SourceRPCFetch,
	}, nil
}

func (r *Registry) decodeSlot0(pool types.Pool, data []byte, blockNumber uint64) (types.Quote, error) {
	if len(data) < 32 {
		return types.Quote{}, fmt.Errorf("poolregistry: slot0 return too short (%d bytes)", len(data))
	}
	sqrtPriceX96 := new(big.Int).SetBytes(data[0:32])
	price := util.SqrtPriceX96ToPrice(sqrtPriceX96, pool.TokenA.Decimals, pool.TokenB.Decimals)

	return types.Quote{
		PairKey:      pool.PairKey(),
		Venue:        pool.Venue.Name,
		Price:        price,
		LiquidityUSD: pool.LiquidityUSD,
		BlockNumber:  blockNumber,
		Source:       types.SourceRPCFetch,
	}, nil
}

// ratioAdjustedForDecimals returns num/den scaled so the result is expressed
// in human units rather than raw base-unit integers.
func ratioAdjustedForDecimals(num, den *big.Int, numDecimals, denDecimals uint8) float64 {
	scale := new(big.Float).SetFloat64(1)
	if denDecimals > numDecimals {
		scale.SetInt(pow10(denDecimals - numDecimals))
	}
	ratio := new(big.Float).Quo(new(big.Float).SetInt(num), new(big.Float).SetInt(den))
	ratio.Mul(ratio, scale)
	if numDecimals > denDecimals {
		divisor := new(big.Float).SetInt(pow10(numDecimals - denDecimals))
		ratio.Quo(ratio, divisor)
	}
	out, _ := ratio.Float64()
	return out
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
