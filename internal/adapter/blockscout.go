// Package adapter provides clients for the upstream token and market
// data sources. Each client fetches its source's raw shape and
// normalizes it into the canonical token model; a failed source is
// reported as an error and the caller decides whether the run survives.
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

// BlockscoutClient handles API calls to a Blockscout explorer instance
type BlockscoutClient struct {
	baseURL  string
	apiKey   string
	maxPages int
	chainID  int64
	client   *httpclient.Client
}

// NewBlockscoutClient creates a new Blockscout API client
func NewBlockscoutClient(baseURL, apiKey string, maxPages int, chainID int64, client *httpclient.Client) *BlockscoutClient {
	return &BlockscoutClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		maxPages: maxPages,
		chainID:  chainID,
		client:   client,
	}
}

// blockscoutToken is the explorer's raw token shape. Decimals arrive as
// a string on this API.
type blockscoutToken struct {
	AddressHash string `json:"address_hash"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Decimals    string `json:"decimals"`
	IconURL     string `json:"icon_url"`
}

// blockscoutTokensPage is one page of GET /api/v2/tokens
type blockscoutTokensPage struct {
	Items          []json.RawMessage      `json:"items"`
	NextPageParams map[string]interface{} `json:"next_page_params"`
}

// blockscoutAddress is the subset of GET /api/v2/addresses/{address}
// used for name resolution
type blockscoutAddress struct {
	ENSDomainName string `json:"ens_domain_name"`
	ENSDomain     string `json:"ens_domain"`
	Name          string `json:"name"`
	PrimaryName   string `json:"primary_name"`
}

// FetchTokens retrieves the full token list, following the explorer's
// cursor pagination up to the configured page cap
func (c *BlockscoutClient) FetchTokens(ctx context.Context) ([]models.Token, error) {
	if !isValidBaseURL(c.baseURL) {
		return nil, errors.NewValidationError("blockscout base URL is not configured")
	}

	var tokens []models.Token
	var cursor map[string]interface{}

	for page := 0; page < c.maxPages; page++ {
		params := url.Values{}
		if c.apiKey != "" {
			params.Set("apikey", c.apiKey)
		}
		for key, value := range cursor {
			params.Set(key, stringifyParam(value))
		}

		endpoint := c.baseURL + "/api/v2/tokens"
		if encoded := params.Encode(); encoded != "" {
			endpoint += "?" + encoded
		}

		var resp blockscoutTokensPage
		if err := c.client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
			return nil, fmt.Errorf("blockscout tokens page %d: %w", page, err)
		}

		for _, raw := range resp.Items {
			var item blockscoutToken
			if err := json.Unmarshal(raw, &item); err != nil {
				continue
			}
			if token, ok := c.normalizeToken(item, raw); ok {
				tokens = append(tokens, token)
			}
		}

		if resp.NextPageParams == nil {
			break
		}
		cursor = resp.NextPageParams
	}

	return tokens, nil
}

// LookupAddressName resolves an ENS-style domain for an address via the
// explorer's address endpoint. Returns "" when the address has no name.
func (c *BlockscoutClient) LookupAddressName(ctx context.Context, address string) (string, error) {
	if !isValidBaseURL(c.baseURL) {
		return "", errors.NewValidationError("blockscout base URL is not configured")
	}

	endpoint := c.baseURL + "/api/v2/addresses/" + models.NormalizeAddress(address)
	if c.apiKey != "" {
		endpoint += "?apikey=" + url.QueryEscape(c.apiKey)
	}

	var resp blockscoutAddress
	if err := c.client.GetJSON(ctx, endpoint, map[string]string{"Accept": "application/json"}, &resp); err != nil {
		return "", fmt.Errorf("blockscout address lookup: %w", err)
	}

	for _, candidate := range []string{resp.ENSDomainName, resp.ENSDomain, resp.Name, resp.PrimaryName} {
		if name := normalizeName(candidate); name != "" {
			return name, nil
		}
	}
	return "", nil
}

func (c *BlockscoutClient) normalizeToken(item blockscoutToken, raw json.RawMessage) (models.Token, bool) {
	address := models.NormalizeAddress(item.AddressHash)
	if address == "" {
		return models.Token{}, false
	}

	var decimals *int
	if item.Decimals != "" {
		if parsed, err := strconv.Atoi(item.Decimals); err == nil {
			decimals = &parsed
		}
	}

	return models.Token{
		ChainID:  c.chainID,
		Address:  address,
		Symbol:   nonEmptyPtr(item.Symbol),
		Name:     nonEmptyPtr(item.Name),
		Decimals: decimals,
		LogoURL:  nonEmptyPtr(item.IconURL),
		Verified: false,
		Source:   models.SourceBlockscout,
		Spam:     false,
		IsActive: true,
		Metadata: map[string]json.RawMessage{"blockscout": raw},
	}, true
}

// normalizeName lowercases a resolved name and strips a leading @
func normalizeName(name string) string {
	trimmed := strings.TrimSpace(name)
	trimmed = strings.TrimPrefix(trimmed, "@")
	return strings.ToLower(trimmed)
}

func isValidBaseURL(base string) bool {
	return strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://")
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// stringifyParam renders a cursor parameter value for a query string.
// JSON numbers decode as float64 and must not pick up an exponent.
func stringifyParam(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
