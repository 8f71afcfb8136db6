package storage

import (
	"context"
	"net/url"
	"strconv"

	"github.com/ink-market-sync/internal/models"
)

// TokenRepository handles token registry rows
type TokenRepository struct {
	gateway *Gateway
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(gateway *Gateway) *TokenRepository {
	return &TokenRepository{gateway: gateway}
}

// ListActive retrieves every active, non-spam token for a chain
func (r *TokenRepository) ListActive(ctx context.Context, chainID int64) ([]models.Token, error) {
	params := url.Values{}
	params.Set("chain_id", "eq."+strconv.FormatInt(chainID, 10))
	params.Set("is_active", "eq.true")
	params.Set("spam", "eq.false")
	params.Set("select", "chain_id,address,symbol,name,decimals,logo_url,verified,source,spam,is_active,metadata")
	params.Set("limit", "10000")

	var tokens []models.Token
	if err := r.gateway.Select(ctx, "tokens", params, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// GetByAddresses retrieves token rows for the given addresses in
// bounded address batches
func (r *TokenRepository) GetByAddresses(ctx context.Context, chainID int64, addresses []string) ([]models.Token, error) {
	extra := url.Values{}
	extra.Set("chain_id", "eq."+strconv.FormatInt(chainID, 10))
	extra.Set("select", "chain_id,address,symbol,name,decimals,logo_url,verified,source,spam,is_active")

	var tokens []models.Token
	for _, batch := range chunkStrings(addresses, 200) {
		var rows []models.Token
		if err := r.gateway.SelectIn(ctx, "tokens", "address", batch, extra, &rows); err != nil {
			return nil, err
		}
		tokens = append(tokens, rows...)
	}
	return tokens, nil
}

// UpsertTokens writes tokens in bounded chunks keyed on (chain_id, address)
func (r *TokenRepository) UpsertTokens(ctx context.Context, tokens []models.Token) error {
	for start := 0; start < len(tokens); start += defaultChunkSize {
		end := start + defaultChunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		if err := r.gateway.Upsert(ctx, "tokens", "chain_id,address", tokens[start:end]); err != nil {
			return err
		}
	}
	return nil
}
