package models

import (
	"math"
	"time"
)

// MarketSource identifies where a market snapshot's numbers came from
type MarketSource string

const (
	MarketSourceCMC      MarketSource = "coinmarketcap"
	MarketSourceInkySwap MarketSource = "inkyswap"
)

// MarketSnapshot is the current market data row for a token, overwritten
// wholesale on each refresh
type MarketSnapshot struct {
	ChainID         int64        `json:"chain_id"`
	TokenAddress    string       `json:"token_address"`
	PriceUSD        *float64     `json:"price_usd"`
	MarketCap       *float64     `json:"market_cap"`
	Volume24h       *float64     `json:"volume_24h"`
	PercentChange24 *float64     `json:"percent_change_24h"`
	LogoURL         *string      `json:"logo_url"`
	LastUpdated     time.Time    `json:"last_updated"`
	Source          MarketSource `json:"source"`
}

// IsStale reports whether the snapshot's age exceeds the TTL at the given
// instant. The boundary is strict: a snapshot aged exactly TTL is fresh.
func (s *MarketSnapshot) IsStale(now time.Time, ttl time.Duration) bool {
	if s.LastUpdated.IsZero() {
		return true
	}
	return now.Sub(s.LastUpdated) > ttl
}

// PricePoint is one OHLCV candle on the (chain_id, token_address, timestamp) grid
type PricePoint struct {
	ChainID      int64     `json:"chain_id"`
	TokenAddress string    `json:"token_address"`
	Timestamp    time.Time `json:"timestamp"`
	Open         *float64  `json:"open"`
	High         *float64  `json:"high"`
	Low          *float64  `json:"low"`
	Close        *float64  `json:"close"`
	Volume       *float64  `json:"volume"`
}

// PairToken is one side of a liquidity pair
type PairToken struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// LiquidityPair is an AMM pool snapshot, rebuilt from the aggregator on
// every pricing run and never persisted
type LiquidityPair struct {
	Token0       PairToken `json:"token0"`
	Token1       PairToken `json:"token1"`
	Reserve0     float64   `json:"reserve0"`
	Reserve1     float64   `json:"reserve1"`
	Volume24hUSD float64   `json:"volume_24h"`
}

// NormalizedReserves returns the pair's reserves divided by 10^decimals
// for each side, and whether both sides are usable for price inference.
// A zero or non-finite reserve on either side disqualifies the pair.
func (p *LiquidityPair) NormalizedReserves() (r0, r1 float64, ok bool) {
	r0 = p.Reserve0 / math.Pow(10, float64(p.Token0.Decimals))
	r1 = p.Reserve1 / math.Pow(10, float64(p.Token1.Decimals))
	if r0 <= 0 || r1 <= 0 || math.IsInf(r0, 0) || math.IsInf(r1, 0) || math.IsNaN(r0) || math.IsNaN(r1) {
		return 0, 0, false
	}
	return r0, r1, true
}

// NameRecord is a cached wallet-address-to-name resolution
type NameRecord struct {
	WalletAddress string    `json:"wallet_address"`
	DNSName       *string   `json:"dns_name"`
	Source        string    `json:"source"`
	LastChecked   time.Time `json:"last_checked"`
}

// IsStale reports whether the record needs re-resolution at the given instant
func (r *NameRecord) IsStale(now time.Time, ttl time.Duration) bool {
	if r.LastChecked.IsZero() {
		return true
	}
	return now.Sub(r.LastChecked) > ttl
}
