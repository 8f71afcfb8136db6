package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ink-market-sync/internal/errors"
	"github.com/ink-market-sync/internal/httpclient"
	"github.com/ink-market-sync/internal/logging"
	"github.com/ink-market-sync/internal/models"
)

// InkyPumpClient handles API calls to the launch platform. Its batch
// endpoint is rate limited, so enrichment requests are serialized with
// a fixed delay between batches and capped per run.
type InkyPumpClient struct {
	baseURL    string
	batchSize  int
	maxBatches int
	limiter    *rate.Limiter
	chainID    int64
	client     *httpclient.Client
	logger     *logging.Logger
}

// NewInkyPumpClient creates a new launch platform client
func NewInkyPumpClient(baseURL string, batchSize, maxBatches int, batchDelay time.Duration, chainID int64, client *httpclient.Client, logger *logging.Logger) *InkyPumpClient {
	if batchDelay <= 0 {
		batchDelay = time.Millisecond
	}
	return &InkyPumpClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		batchSize:  batchSize,
		maxBatches: maxBatches,
		limiter:    rate.NewLimiter(rate.Every(batchDelay), 1),
		chainID:    chainID,
		client:     client,
		logger:     logger,
	}
}

type inkyPumpToken struct {
	Address  string `json:"address"`
	Ticker   string `json:"ticker"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals *int   `json:"decimals"`
	ImageURL string `json:"image_url"`
	LogoURL  string `json:"logo_url"`
}

type inkyPumpBatchRequest struct {
	Addresses      []string `json:"addresses"`
	IncludeMetrics bool     `json:"includeMetrics"`
	IncludeHolders bool     `json:"includeHolders"`
}

// FetchTokens retrieves the platform's bulk token list
func (c *InkyPumpClient) FetchTokens(ctx context.Context) ([]models.Token, error) {
	if !isValidBaseURL(c.baseURL) {
		return nil, errors.NewValidationError("inkypump base URL is not configured")
	}

	var resp json.RawMessage
	if err := c.client.GetJSON(ctx, c.baseURL+"/api/tokens", nil, &resp); err != nil {
		return nil, fmt.Errorf("inkypump tokens: %w", err)
	}
	return c.normalizeList(resp), nil
}

// FetchTokensBatch enriches the given addresses through the platform's
// batch endpoint. Batches are serialized with a fixed delay; a rate
// limited or failed batch is skipped so the rest of the run proceeds.
func (c *InkyPumpClient) FetchTokensBatch(ctx context.Context, addresses []string) ([]models.Token, error) {
	if !isValidBaseURL(c.baseURL) {
		return nil, errors.NewValidationError("inkypump base URL is not configured")
	}
	if len(addresses) == 0 {
		return nil, nil
	}

	var tokens []models.Token
	batches := chunkAddresses(addresses, c.batchSize)
	if len(batches) > c.maxBatches {
		batches = batches[:c.maxBatches]
	}

	for i, batch := range batches {
		if err := c.limiter.Wait(ctx); err != nil {
			return tokens, err
		}

		payload := inkyPumpBatchRequest{
			Addresses:      batch,
			IncludeMetrics: true,
			IncludeHolders: false,
		}

		var resp json.RawMessage
		err := c.client.PostJSON(ctx, c.baseURL+"/api/tokens/batch", map[string]string{"Content-Type": "application/json"}, payload, &resp)
		if err != nil {
			if ctx.Err() != nil {
				return tokens, ctx.Err()
			}
			c.logger.WithError(err).WithField("batch", i).Warn("inkypump batch skipped")
		} else {
			tokens = append(tokens, c.normalizeList(resp)...)
		}
	}

	return tokens, nil
}

func (c *InkyPumpClient) normalizeList(resp json.RawMessage) []models.Token {
	var tokens []models.Token
	for _, raw := range extractList(resp, "tokens", "items") {
		var item inkyPumpToken
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		if token, ok := c.normalizeToken(item, raw); ok {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func (c *InkyPumpClient) normalizeToken(item inkyPumpToken, raw json.RawMessage) (models.Token, bool) {
	address := models.NormalizeAddress(item.Address)
	if address == "" {
		return models.Token{}, false
	}

	symbol := item.Ticker
	if symbol == "" {
		symbol = item.Symbol
	}
	logo := item.ImageURL
	if logo == "" {
		logo = item.LogoURL
	}

	return models.Token{
		ChainID:  c.chainID,
		Address:  address,
		Symbol:   nonEmptyPtr(symbol),
		Name:     nonEmptyPtr(item.Name),
		Decimals: item.Decimals,
		LogoURL:  nonEmptyPtr(logo),
		Verified: false,
		Source:   models.SourceInkyPump,
		Spam:     false,
		IsActive: true,
		Metadata: map[string]json.RawMessage{"inkypump": raw},
	}, true
}

func chunkAddresses(addresses []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(addresses); start += size {
		end := start + size
		if end > len(addresses) {
			end = len(addresses)
		}
		chunks = append(chunks, addresses[start:end])
	}
	return chunks
}
