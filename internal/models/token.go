// Package models defines the persisted records and ephemeral structures
// shared by the sync jobs.
package models

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Source identifies which upstream a token record (or a merged field) came from
type Source string

const (
	SourceBlockscout Source = "blockscout"
	SourceInkyPump   Source = "inkypump"
	SourceInkySwap   Source = "inkyswap"
	SourceSafe       Source = "safe"
)

// sourcePriority ranks sources for the merge's source-replacement rule.
// An incoming source wins when its rank is >= the existing rank.
var sourcePriority = map[Source]int{
	SourceBlockscout: 1,
	SourceInkyPump:   2,
	SourceInkySwap:   3,
	SourceSafe:       4,
}

// Priority returns the merge rank of a source, 0 for unknown sources
func (s Source) Priority() int {
	return sourcePriority[s]
}

// Token is the canonical token record, one row per (chain_id, address)
type Token struct {
	ChainID  int64                      `json:"chain_id"`
	Address  string                     `json:"address"`
	Symbol   *string                    `json:"symbol"`
	Name     *string                    `json:"name"`
	Decimals *int                       `json:"decimals"`
	LogoURL  *string                    `json:"logo_url"`
	Verified bool                       `json:"verified"`
	Source   Source                     `json:"source"`
	Spam     bool                       `json:"spam"`
	IsActive bool                       `json:"is_active"`
	Metadata map[string]json.RawMessage `json:"metadata,omitempty"`
}

// Key returns the merge key for a token
func (t *Token) Key() string {
	return TokenKey(t.ChainID, t.Address)
}

// TokenKey builds the canonical (chain_id, lower(address)) key
func TokenKey(chainID int64, address string) string {
	return strconv.FormatInt(chainID, 10) + ":" + strings.ToLower(address)
}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]+$`)

// NormalizeAddress lowercases a hex address, returning "" for empty input
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// IsValidAddress reports whether the input is a well-formed 0x hex address
func IsValidAddress(address string) bool {
	return common.IsHexAddress(strings.TrimSpace(address))
}

// NormalizeSymbol trims and uppercases a ticker symbol, returning "" for empty input
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// IsValidProviderSymbol reports whether a normalized symbol is clean enough
// for the market-data provider, which only accepts alphanumeric tickers
func IsValidProviderSymbol(symbol string) bool {
	return symbol != "" && symbolPattern.MatchString(symbol)
}

// StringPtr returns a pointer to s, or nil when s is empty
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}

// Float64Ptr returns a pointer to v
func Float64Ptr(v float64) *float64 {
	return &v
}
