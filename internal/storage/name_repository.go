package storage

import (
	"context"
	"net/url"
	"time"

	"github.com/ink-market-sync/internal/models"
)

// NameRepository handles the wallet-name resolution cache and the user
// rows it keeps in step
type NameRepository struct {
	gateway   *Gateway
	batchSize int
}

// NewNameRepository creates a new name repository
func NewNameRepository(gateway *Gateway) *NameRepository {
	return &NameRepository{gateway: gateway, batchSize: 200}
}

// Get retrieves the cache row for one wallet address, or nil
func (r *NameRepository) Get(ctx context.Context, address string) (*models.NameRecord, error) {
	params := url.Values{}
	params.Set("wallet_address", "eq."+models.NormalizeAddress(address))
	params.Set("limit", "1")

	var rows []models.NameRecord
	if err := r.gateway.Select(ctx, "name_resolution_cache", params, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// GetMany retrieves cache rows for a set of wallet addresses in bounded batches
func (r *NameRepository) GetMany(ctx context.Context, addresses []string) ([]models.NameRecord, error) {
	var records []models.NameRecord
	for _, batch := range chunkStrings(addresses, r.batchSize) {
		var rows []models.NameRecord
		if err := r.gateway.SelectIn(ctx, "name_resolution_cache", "wallet_address", batch, nil, &rows); err != nil {
			return nil, err
		}
		records = append(records, rows...)
	}
	return records, nil
}

// Upsert writes a cache row keyed on wallet_address
func (r *NameRepository) Upsert(ctx context.Context, record models.NameRecord) error {
	return r.gateway.Upsert(ctx, "name_resolution_cache", "wallet_address", []models.NameRecord{record})
}

// UpdateUserDNS patches the resolved name onto the matching user row
func (r *NameRepository) UpdateUserDNS(ctx context.Context, address string, dnsName *string, source string, checkedAt time.Time) error {
	params := url.Values{}
	params.Set("address", "eq."+models.NormalizeAddress(address))

	body := map[string]interface{}{
		"dns_name":         dnsName,
		"dns_last_updated": checkedAt.UTC().Format(time.RFC3339),
		"resolver_source":  source,
	}
	return r.gateway.Patch(ctx, "users", params, body)
}

// ListUserAddresses retrieves wallet addresses of registered users,
// filtered to well-formed hex addresses
func (r *NameRepository) ListUserAddresses(ctx context.Context) ([]string, error) {
	params := url.Values{}
	params.Set("select", "address")
	params.Set("limit", "10000")

	var rows []struct {
		Address string `json:"address"`
	}
	if err := r.gateway.Select(ctx, "users", params, &rows); err != nil {
		return nil, err
	}

	addresses := make([]string, 0, len(rows))
	for _, row := range rows {
		if models.IsValidAddress(row.Address) {
			addresses = append(addresses, models.NormalizeAddress(row.Address))
		}
	}
	return addresses, nil
}
