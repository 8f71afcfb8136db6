// Package pricing derives USD prices for tokens without a direct quote
// by propagating stablecoin-anchored prices through the AMM liquidity
// graph. The engine holds no state between runs; it is rebuilt from the
// current pair snapshots on every invocation.
package pricing

import (
	"strings"

	"github.com/ink-market-sync/internal/models"
)

// maxRounds bounds propagation to five hops from a stablecoin anchor.
// Tokens further out stay unpriced.
const maxRounds = 5

// Engine infers token prices from liquidity pair reserves
type Engine struct {
	stableSymbols   map[string]struct{}
	stableAddresses map[string]struct{}
	maxRounds       int
}

// Result carries the inferred price and aggregated 24h volume per
// lower-cased token address
type Result struct {
	Prices  map[string]float64
	Volumes map[string]float64
	Rounds  int
}

// NewEngine creates an engine anchored on the given stablecoin symbol
// and address allow-lists
func NewEngine(stableSymbols, stableAddresses []string) *Engine {
	engine := &Engine{
		stableSymbols:   make(map[string]struct{}, len(stableSymbols)),
		stableAddresses: make(map[string]struct{}, len(stableAddresses)),
		maxRounds:       maxRounds,
	}
	for _, symbol := range stableSymbols {
		if s := models.NormalizeSymbol(symbol); s != "" {
			engine.stableSymbols[s] = struct{}{}
		}
	}
	for _, address := range stableAddresses {
		if a := models.NormalizeAddress(address); a != "" {
			engine.stableAddresses[a] = struct{}{}
		}
	}
	return engine
}

// edge is one usable pair in the price graph, reserves already
// decimal-normalized
type edge struct {
	addrA, addrB       string
	reserveA, reserveB float64
}

// Infer builds the price graph from the given pairs, seeds stablecoins
// at 1.0, and relaxes until a fixed point or the round cap. Volume is
// summed onto both sides of every pair regardless of reserve validity.
func (e *Engine) Infer(pairs []models.LiquidityPair) Result {
	prices := make(map[string]float64)
	volumes := make(map[string]float64)

	var edges []edge
	for i := range pairs {
		pair := &pairs[i]
		addr0 := models.NormalizeAddress(pair.Token0.Address)
		addr1 := models.NormalizeAddress(pair.Token1.Address)
		if addr0 == "" || addr1 == "" {
			continue
		}

		if pair.Volume24hUSD > 0 {
			volumes[addr0] += pair.Volume24hUSD
			volumes[addr1] += pair.Volume24hUSD
		}

		r0, r1, ok := pair.NormalizedReserves()
		if !ok {
			continue
		}
		edges = append(edges, edge{addrA: addr0, addrB: addr1, reserveA: r0, reserveB: r1})

		if e.isStable(addr0, pair.Token0.Symbol) {
			prices[addr0] = 1.0
		}
		if e.isStable(addr1, pair.Token1.Symbol) {
			prices[addr1] = 1.0
		}
	}

	rounds := 0
	for round := 0; round < e.maxRounds; round++ {
		changed := false
		for _, edge := range edges {
			priceA, okA := prices[edge.addrA]
			priceB, okB := prices[edge.addrB]
			switch {
			case okA && !okB:
				prices[edge.addrB] = priceA * (edge.reserveA / edge.reserveB)
				changed = true
			case okB && !okA:
				prices[edge.addrA] = priceB * (edge.reserveB / edge.reserveA)
				changed = true
			}
		}
		rounds = round + 1
		if !changed {
			break
		}
	}

	return Result{Prices: prices, Volumes: volumes, Rounds: rounds}
}

func (e *Engine) isStable(address, symbol string) bool {
	if _, ok := e.stableAddresses[address]; ok {
		return true
	}
	_, ok := e.stableSymbols[strings.ToUpper(strings.TrimSpace(symbol))]
	return ok
}
