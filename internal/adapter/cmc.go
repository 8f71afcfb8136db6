package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ink-market-sync/internal/errors"
	"github.com/ink-market-sync/internal/httpclient"
	"github.com/ink-market-sync/internal/models"
)

// CMCClient handles API calls to the CoinMarketCap pro API. Symbol
// batches are capped by the caller; responses key entries by symbol and
// an entry may be a single object or a list of contenders sharing the
// ticker, disambiguated by contract address.
type CMCClient struct {
	baseURL string
	apiKey  string
	client  *httpclient.Client
}

// NewCMCClient creates a new CoinMarketCap API client
func NewCMCClient(baseURL, apiKey string, client *httpclient.Client) *CMCClient {
	return &CMCClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

// HasKey reports whether an API key is configured. Without one the
// primary market-data path is unavailable.
func (c *CMCClient) HasKey() bool {
	return c.apiKey != ""
}

type cmcEnvelope struct {
	Data map[string]json.RawMessage `json:"data"`
}

// cmcPlatform carries the contract address fields CMC attaches to a
// token listed on a specific chain
type cmcPlatform struct {
	TokenAddress    string `json:"token_address"`
	ContractAddress string `json:"contract_address"`
	Address         string `json:"address"`
}

func (p cmcPlatform) address() string {
	for _, candidate := range []string{p.TokenAddress, p.ContractAddress, p.Address} {
		if candidate != "" {
			return models.NormalizeAddress(candidate)
		}
	}
	return ""
}

// cmcEntryAddresses is the address surface shared by quote and info
// entries. Platform may be an object or a list.
type cmcEntryAddresses struct {
	TokenAddress    string          `json:"token_address"`
	ContractAddress string          `json:"contract_address"`
	Address         string          `json:"address"`
	Platform        json.RawMessage `json:"platform"`
	Platforms       json.RawMessage `json:"platforms"`
}

// CandidateAddress returns the first contract address an entry exposes
func (e cmcEntryAddresses) CandidateAddress() string {
	direct := cmcPlatform{TokenAddress: e.TokenAddress, ContractAddress: e.ContractAddress, Address: e.Address}
	if addr := direct.address(); addr != "" {
		return addr
	}
	for _, raw := range [][]byte{e.Platform, e.Platforms} {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var single cmcPlatform
		if err := json.Unmarshal(raw, &single); err == nil {
			if addr := single.address(); addr != "" {
				return addr
			}
		}
		var many []cmcPlatform
		if err := json.Unmarshal(raw, &many); err == nil {
			for _, p := range many {
				if addr := p.address(); addr != "" {
					return addr
				}
			}
		}
	}
	return ""
}

// QuoteUSD is the USD leg of a quote entry
type QuoteUSD struct {
	Price            *float64 `json:"price"`
	MarketCap        *float64 `json:"market_cap"`
	Volume24h        *float64 `json:"volume_24h"`
	PercentChange24h *float64 `json:"percent_change_24h"`
	LastUpdated      string   `json:"last_updated"`
}

// QuoteEntry is one token's latest quote
type QuoteEntry struct {
	cmcEntryAddresses
	LastUpdated string `json:"last_updated"`
	Quote       struct {
		USD QuoteUSD `json:"USD"`
	} `json:"quote"`
}

// InfoEntry is one token's extended metadata
type InfoEntry struct {
	cmcEntryAddresses
	Logo    string `json:"logo"`
	LogoURL string `json:"logo_url"`
}

// LogoCandidate returns the entry's logo URL, or ""
func (e InfoEntry) LogoCandidate() string {
	if e.Logo != "" {
		return e.Logo
	}
	return e.LogoURL
}

// Candle is one OHLCV bar in USD
type Candle struct {
	Timestamp string
	Open      *float64
	High      *float64
	Low       *float64
	Close     *float64
	Volume    *float64
}

func (c *CMCClient) request(ctx context.Context, path string, params url.Values, out interface{}) error {
	if !c.HasKey() {
		return errors.NewValidationError("cmc api key is not configured")
	}
	endpoint := c.baseURL + path + "?" + params.Encode()
	headers := map[string]string{"X-CMC_PRO_API_KEY": c.apiKey}
	return c.client.GetJSON(ctx, endpoint, headers, out)
}

// Quotes fetches latest USD quotes for a batch of symbols, keyed by
// symbol with every contender listed
func (c *CMCClient) Quotes(ctx context.Context, symbols []string) (map[string][]QuoteEntry, error) {
	params := url.Values{}
	params.Set("symbol", strings.Join(symbols, ","))
	params.Set("convert", "USD")

	var envelope cmcEnvelope
	if err := c.request(ctx, "/v1/cryptocurrency/quotes/latest", params, &envelope); err != nil {
		return nil, fmt.Errorf("cmc quotes: %w", err)
	}

	result := make(map[string][]QuoteEntry, len(envelope.Data))
	for symbol, raw := range envelope.Data {
		var entries []QuoteEntry
		for _, entry := range splitEntries(raw) {
			var parsed QuoteEntry
			if err := json.Unmarshal(entry, &parsed); err == nil {
				entries = append(entries, parsed)
			}
		}
		result[symbol] = entries
	}
	return result, nil
}

// Info fetches extended metadata for a batch of symbols
func (c *CMCClient) Info(ctx context.Context, symbols []string) (map[string][]InfoEntry, error) {
	params := url.Values{}
	params.Set("symbol", strings.Join(symbols, ","))

	var envelope cmcEnvelope
	if err := c.request(ctx, "/v1/cryptocurrency/info", params, &envelope); err != nil {
		return nil, fmt.Errorf("cmc info: %w", err)
	}

	result := make(map[string][]InfoEntry, len(envelope.Data))
	for symbol, raw := range envelope.Data {
		var entries []InfoEntry
		for _, entry := range splitEntries(raw) {
			var parsed InfoEntry
			if err := json.Unmarshal(entry, &parsed); err == nil {
				entries = append(entries, parsed)
			}
		}
		result[symbol] = entries
	}
	return result, nil
}

type cmcCandle struct {
	TimeOpen  string `json:"time_open"`
	TimeClose string `json:"time_close"`
	TimeHigh  string `json:"time_high"`
	TimeLow   string `json:"time_low"`
	Quote     struct {
		USD json.RawMessage `json:"USD"`
	} `json:"quote"`
	USD json.RawMessage `json:"USD"`
}

type cmcCandleUSD struct {
	Open   *float64 `json:"open"`
	High   *float64 `json:"high"`
	Low    *float64 `json:"low"`
	Close  *float64 `json:"close"`
	Volume *float64 `json:"volume"`
}

type cmcOHLCVEntry struct {
	Quotes []cmcCandle `json:"quotes"`
	Data   struct {
		Quotes []cmcCandle `json:"quotes"`
	} `json:"data"`
}

// OHLCV fetches hourly candles for one symbol
func (c *CMCClient) OHLCV(ctx context.Context, symbol string, count int) ([]Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("convert", "USD")
	params.Set("interval", "hourly")
	params.Set("count", strconv.Itoa(count))

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.request(ctx, "/v1/cryptocurrency/ohlcv/historical", params, &envelope); err != nil {
		return nil, fmt.Errorf("cmc ohlcv %s: %w", symbol, err)
	}

	entry := extractOHLCVEntry(envelope.Data, symbol)
	raw := entry.Quotes
	if len(raw) == 0 {
		raw = entry.Data.Quotes
	}

	candles := make([]Candle, 0, len(raw))
	for _, quote := range raw {
		usdRaw := quote.Quote.USD
		if len(usdRaw) == 0 {
			usdRaw = quote.USD
		}
		var usd cmcCandleUSD
		if len(usdRaw) > 0 {
			json.Unmarshal(usdRaw, &usd)
		}

		timestamp := firstNonEmpty(quote.TimeClose, quote.TimeOpen, quote.TimeHigh, quote.TimeLow)
		if timestamp == "" {
			continue
		}
		candles = append(candles, Candle{
			Timestamp: timestamp,
			Open:      usd.Open,
			High:      usd.High,
			Low:       usd.Low,
			Close:     usd.Close,
			Volume:    usd.Volume,
		})
	}
	return candles, nil
}

// extractOHLCVEntry handles both response layouts: data keyed by symbol,
// or the entry inlined at data
func extractOHLCVEntry(data json.RawMessage, symbol string) cmcOHLCVEntry {
	var entry cmcOHLCVEntry
	if len(data) == 0 {
		return entry
	}

	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(data, &keyed); err == nil {
		if raw, ok := keyed[symbol]; ok {
			if err := json.Unmarshal(raw, &entry); err == nil && (len(entry.Quotes) > 0 || len(entry.Data.Quotes) > 0) {
				return entry
			}
		}
	}

	json.Unmarshal(data, &entry)
	return entry
}

// splitEntries accepts a single entry object or a list of them
func splitEntries(raw json.RawMessage) []json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	return []json.RawMessage{raw}
}

// MatchQuote picks the entry whose contract address matches the token,
// falling back to the first contender
func MatchQuote(entries []QuoteEntry, tokenAddress string) *QuoteEntry {
	normalized := models.NormalizeAddress(tokenAddress)
	for i := range entries {
		if addr := entries[i].CandidateAddress(); addr != "" && addr == normalized {
			return &entries[i]
		}
	}
	if len(entries) > 0 {
		return &entries[0]
	}
	return nil
}

// MatchInfo picks the info entry for a token the same way MatchQuote does
func MatchInfo(entries []InfoEntry, tokenAddress string) *InfoEntry {
	normalized := models.NormalizeAddress(tokenAddress)
	for i := range entries {
		if addr := entries[i].CandidateAddress(); addr != "" && addr == normalized {
			return &entries[i]
		}
	}
	if len(entries) > 0 {
		return &entries[0]
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
