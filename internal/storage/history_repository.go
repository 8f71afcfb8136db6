package storage

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/ink-market-sync/internal/models"
)

// HistoryRepository handles the append-only OHLCV grid
type HistoryRepository struct {
	gateway *Gateway
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(gateway *Gateway) *HistoryRepository {
	return &HistoryRepository{gateway: gateway}
}

// LatestTimestamp returns the most recent stored candle timestamp for a
// token, or nil when no history exists
func (r *HistoryRepository) LatestTimestamp(ctx context.Context, chainID int64, tokenAddress string) (*time.Time, error) {
	params := url.Values{}
	params.Set("chain_id", "eq."+strconv.FormatInt(chainID, 10))
	params.Set("token_address", "eq."+models.NormalizeAddress(tokenAddress))
	params.Set("select", "timestamp")
	params.Set("order", "timestamp.desc")
	params.Set("limit", "1")

	var rows []struct {
		Timestamp time.Time `json:"timestamp"`
	}
	if err := r.gateway.Select(ctx, "token_price_history", params, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0].Timestamp, nil
}

// UpsertPoints writes candles keyed on (chain_id, token_address, timestamp),
// merging on conflict so backfills correct rather than duplicate
func (r *HistoryRepository) UpsertPoints(ctx context.Context, points []models.PricePoint) error {
	for start := 0; start < len(points); start += defaultChunkSize {
		end := start + defaultChunkSize
		if end > len(points) {
			end = len(points)
		}
		if err := r.gateway.Upsert(ctx, "token_price_history", "chain_id,token_address,timestamp", points[start:end]); err != nil {
			return err
		}
	}
	return nil
}
