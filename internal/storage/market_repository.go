package storage

import (
	"context"
	"net/url"
	"strconv"

	"github.com/ink-market-sync/internal/models"
)

// MarketRepository handles market data snapshot rows
type MarketRepository struct {
	gateway   *Gateway
	batchSize int
}

// NewMarketRepository creates a new market repository. batchSize bounds
// the address count per in-list read.
func NewMarketRepository(gateway *Gateway, batchSize int) *MarketRepository {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &MarketRepository{gateway: gateway, batchSize: batchSize}
}

// GetByAddresses retrieves snapshots for the given token addresses in
// bounded address batches
func (r *MarketRepository) GetByAddresses(ctx context.Context, chainID int64, addresses []string) ([]models.MarketSnapshot, error) {
	extra := url.Values{}
	extra.Set("chain_id", "eq."+strconv.FormatInt(chainID, 10))

	var snapshots []models.MarketSnapshot
	for _, batch := range chunkStrings(addresses, r.batchSize) {
		var rows []models.MarketSnapshot
		if err := r.gateway.SelectIn(ctx, "token_market_data", "token_address", batch, extra, &rows); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, rows...)
	}
	return snapshots, nil
}

// TopByMarketCap retrieves the highest-capitalization snapshots for a
// chain, excluding rows without a market cap
func (r *MarketRepository) TopByMarketCap(ctx context.Context, chainID int64, limit int) ([]models.MarketSnapshot, error) {
	params := url.Values{}
	params.Set("chain_id", "eq."+strconv.FormatInt(chainID, 10))
	params.Set("market_cap", "not.is.null")
	params.Set("order", "market_cap.desc")
	params.Set("limit", strconv.Itoa(limit))

	var snapshots []models.MarketSnapshot
	if err := r.gateway.Select(ctx, "token_market_data", params, &snapshots); err != nil {
		return nil, err
	}
	return snapshots, nil
}

// UpsertSnapshots overwrites snapshots wholesale, keyed on (chain_id, token_address)
func (r *MarketRepository) UpsertSnapshots(ctx context.Context, snapshots []models.MarketSnapshot) error {
	for start := 0; start < len(snapshots); start += defaultChunkSize {
		end := start + defaultChunkSize
		if end > len(snapshots) {
			end = len(snapshots)
		}
		if err := r.gateway.Upsert(ctx, "token_market_data", "chain_id,token_address", snapshots[start:end]); err != nil {
			return err
		}
	}
	return nil
}
