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

// SafeClient handles API calls to a Safe transaction service instance.
// Tokens listed there have passed the registry's curation, so they are
// marked verified and their logos override other sources.
type SafeClient struct {
	baseURL  string
	pageSize int
	maxPages int
	chainID  int64
	client   *httpclient.Client
}

// NewSafeClient creates a new Safe transaction service client
func NewSafeClient(baseURL string, pageSize, maxPages int, chainID int64, client *httpclient.Client) *SafeClient {
	return &SafeClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		pageSize: pageSize,
		maxPages: maxPages,
		chainID:  chainID,
		client:   client,
	}
}

type safeToken struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals *int   `json:"decimals"`
	LogoURI  string `json:"logoUri"`
	LogoURL  string `json:"logo_url"`
}

type safeTokensPage struct {
	Next    string            `json:"next"`
	Results []json.RawMessage `json:"results"`
}

// FetchTokens retrieves the curated token list with offset pagination
func (c *SafeClient) FetchTokens(ctx context.Context) ([]models.Token, error) {
	if !isValidBaseURL(c.baseURL) {
		return nil, errors.NewValidationError("safe base URL is not configured")
	}

	var tokens []models.Token
	offset := 0

	for page := 0; page < c.maxPages; page++ {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(c.pageSize))
		params.Set("offset", strconv.Itoa(offset))
		endpoint := c.baseURL + "/api/v1/tokens/?" + params.Encode()

		var resp safeTokensPage
		if err := c.client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
			return nil, fmt.Errorf("safe tokens page %d: %w", page, err)
		}

		for _, raw := range resp.Results {
			var item safeToken
			if err := json.Unmarshal(raw, &item); err != nil {
				continue
			}
			if token, ok := c.normalizeToken(item, raw); ok {
				tokens = append(tokens, token)
			}
		}

		if resp.Next == "" || len(resp.Results) < c.pageSize {
			break
		}
		offset += c.pageSize
	}

	return tokens, nil
}

func (c *SafeClient) normalizeToken(item safeToken, raw json.RawMessage) (models.Token, bool) {
	address := models.NormalizeAddress(item.Address)
	if address == "" {
		return models.Token{}, false
	}

	logo := item.LogoURI
	if logo == "" {
		logo = item.LogoURL
	}

	return models.Token{
		ChainID:  c.chainID,
		Address:  address,
		Symbol:   nonEmptyPtr(item.Symbol),
		Name:     nonEmptyPtr(item.Name),
		Decimals: item.Decimals,
		LogoURL:  nonEmptyPtr(logo),
		Verified: true,
		Source:   models.SourceSafe,
		Spam:     false,
		IsActive: true,
		Metadata: map[string]json.RawMessage{"safe": raw},
	}, true
}
