package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ink-market-sync/internal/errors"
	"github.com/ink-market-sync/internal/httpclient"
	"github.com/ink-market-sync/internal/models"
)

// InkySwapClient handles API calls to the AMM aggregator. It supplies
// both a verified token list and the liquidity pair snapshots the price
// inference engine runs on.
type InkySwapClient struct {
	baseURL string
	chainID int64
	client  *httpclient.Client
}

// NewInkySwapClient creates a new AMM aggregator client
func NewInkySwapClient(baseURL string, chainID int64, client *httpclient.Client) *InkySwapClient {
	return &InkySwapClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		chainID: chainID,
		client:  client,
	}
}

type inkySwapToken struct {
	ChainID  int64  `json:"chainId"`
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals *int   `json:"decimals"`
	LogoURI  string `json:"logoURI"`
}

type inkySwapPair struct {
	Token0    models.PairToken `json:"token0"`
	Token1    models.PairToken `json:"token1"`
	Reserve0  flexFloat        `json:"reserve0"`
	Reserve1  flexFloat        `json:"reserve1"`
	Volume24h flexFloat        `json:"volume_24h"`
}

// flexFloat decodes a JSON number that some endpoints quote as a string
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	trimmed := strings.Trim(string(data), `"`)
	if trimmed == "" || trimmed == "null" {
		*f = 0
		return nil
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(value)
	return nil
}

// FetchTokens retrieves the aggregator's token list, filtered to the
// configured chain
func (c *InkySwapClient) FetchTokens(ctx context.Context) ([]models.Token, error) {
	if !isValidBaseURL(c.baseURL) {
		return nil, errors.NewValidationError("inkyswap base URL is not configured")
	}

	var resp json.RawMessage
	if err := c.client.GetJSON(ctx, c.baseURL+"/api/tokens", nil, &resp); err != nil {
		return nil, fmt.Errorf("inkyswap tokens: %w", err)
	}

	var tokens []models.Token
	for _, raw := range extractList(resp, "tokens", "items") {
		var item inkySwapToken
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		if item.ChainID != c.chainID {
			continue
		}
		if token, ok := c.normalizeToken(item, raw); ok {
			tokens = append(tokens, token)
		}
	}
	return tokens, nil
}

// FetchPairs retrieves the current liquidity pair snapshots
func (c *InkySwapClient) FetchPairs(ctx context.Context) ([]models.LiquidityPair, error) {
	if !isValidBaseURL(c.baseURL) {
		return nil, errors.NewValidationError("inkyswap base URL is not configured")
	}

	var resp json.RawMessage
	if err := c.client.GetJSON(ctx, c.baseURL+"/api/pairs", nil, &resp); err != nil {
		return nil, fmt.Errorf("inkyswap pairs: %w", err)
	}

	var pairs []models.LiquidityPair
	for _, raw := range extractList(resp, "pairs", "items") {
		var item inkySwapPair
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		pair := models.LiquidityPair{
			Token0:       normalizePairToken(item.Token0),
			Token1:       normalizePairToken(item.Token1),
			Reserve0:     float64(item.Reserve0),
			Reserve1:     float64(item.Reserve1),
			Volume24hUSD: float64(item.Volume24h),
		}
		if pair.Token0.Address == "" || pair.Token1.Address == "" {
			continue
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

func (c *InkySwapClient) normalizeToken(item inkySwapToken, raw json.RawMessage) (models.Token, bool) {
	address := models.NormalizeAddress(item.Address)
	if address == "" {
		return models.Token{}, false
	}

	return models.Token{
		ChainID:  c.chainID,
		Address:  address,
		Symbol:   nonEmptyPtr(item.Symbol),
		Name:     nonEmptyPtr(item.Name),
		Decimals: item.Decimals,
		LogoURL:  nonEmptyPtr(item.LogoURI),
		Verified: true,
		Source:   models.SourceInkySwap,
		Spam:     false,
		IsActive: true,
		Metadata: map[string]json.RawMessage{"inkyswap": raw},
	}, true
}

func normalizePairToken(token models.PairToken) models.PairToken {
	token.Address = models.NormalizeAddress(token.Address)
	token.Symbol = models.NormalizeSymbol(token.Symbol)
	return token
}

// extractList accepts a JSON array directly, or an object wrapping the
// array under one of the given keys or "data"
func extractList(raw json.RawMessage, keys ...string) []json.RawMessage {
	if len(raw) == 0 {
		return nil
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil
	}
	for _, key := range append(keys, "data") {
		inner, ok := wrapper[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(inner, &list); err == nil {
			return list
		}
		// one level of nesting: {data: {tokens: [...]}}
		if nested := extractList(inner, keys...); nested != nil {
			return nested
		}
	}
	return nil
}
