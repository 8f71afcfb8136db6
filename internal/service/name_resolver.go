package service

import (
	"context"
	"time"

	syncerrors "github.com/ink-market-sync/internal/errors"
	"github.com/ink-market-sync/internal/logging"
	"github.com/ink-market-sync/internal/models"
	"github.com/ink-market-sync/internal/observability"
)

// nameLookup resolves an address to an ENS-style name via the explorer
type nameLookup interface {
	LookupAddressName(ctx context.Context, address string) (string, error)
}

// nameStore is the resolution cache plus the user rows it mirrors into
type nameStore interface {
	Get(ctx context.Context, address string) (*models.NameRecord, error)
	GetMany(ctx context.Context, addresses []string) ([]models.NameRecord, error)
	Upsert(ctx context.Context, record models.NameRecord) error
	UpdateUserDNS(ctx context.Context, address string, dnsName *string, source string, checkedAt time.Time) error
	ListUserAddresses(ctx context.Context) ([]string, error)
}

// NameResolverService resolves wallet names through the explorer with a
// durable cache in front. Lookups are capped per run; addresses over
// the cap wait for the next cycle.
type NameResolverService struct {
	lookup    nameLookup
	names     nameStore
	ttl       time.Duration
	maxPerRun int

	logger  *logging.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewNameResolverService creates a new name resolver
func NewNameResolverService(lookup nameLookup, names nameStore, ttl time.Duration, maxPerRun int, logger *logging.Logger, metrics *observability.Metrics) *NameResolverService {
	return &NameResolverService{
		lookup:    lookup,
		names:     names,
		ttl:       ttl,
		maxPerRun: maxPerRun,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// NameResolution is one resolved address. Source is "cache" when the
// answer came from (or fell back to) the cache.
type NameResolution struct {
	Address string  `json:"address"`
	DNSName *string `json:"dns_name"`
	Source  string  `json:"source"`
}

const resolverSource = "blockscout"

// Resolve resolves one address, honoring the cache unless force is set
func (s *NameResolverService) Resolve(ctx context.Context, address string, force bool) (NameResolution, error) {
	normalized := models.NormalizeAddress(address)
	if !models.IsValidAddress(normalized) {
		return NameResolution{}, syncerrors.NewValidationError("invalid address for name resolution")
	}

	cached, err := s.names.Get(ctx, normalized)
	if err != nil {
		return NameResolution{}, err
	}
	return s.resolveWithCached(ctx, normalized, cached, force)
}

func (s *NameResolverService) resolveWithCached(ctx context.Context, address string, cached *models.NameRecord, force bool) (NameResolution, error) {
	now := s.now()
	if cached != nil && !force && !cached.IsStale(now, s.ttl) {
		return NameResolution{Address: address, DNSName: cached.DNSName, Source: "cache"}, nil
	}

	resolved, err := s.lookup.LookupAddressName(ctx, address)
	if err != nil {
		if ctx.Err() != nil {
			return NameResolution{}, err
		}
		// keep serving the last known name, refresh the check timestamp
		var fallback *string
		if cached != nil {
			fallback = cached.DNSName
		}
		s.logger.WithError(err).WithField("address", address).Warn("name lookup failed, keeping cached name")
		if err := s.names.Upsert(ctx, models.NameRecord{
			WalletAddress: address,
			DNSName:       fallback,
			Source:        resolverSource,
			LastChecked:   now,
		}); err != nil {
			return NameResolution{}, err
		}
		return NameResolution{Address: address, DNSName: fallback, Source: "cache"}, nil
	}

	var dnsName *string
	if resolved != "" {
		dnsName = &resolved
	}

	if err := s.names.Upsert(ctx, models.NameRecord{
		WalletAddress: address,
		DNSName:       dnsName,
		Source:        resolverSource,
		LastChecked:   now,
	}); err != nil {
		return NameResolution{}, err
	}
	if err := s.names.UpdateUserDNS(ctx, address, dnsName, resolverSource, now); err != nil {
		return NameResolution{}, err
	}

	s.metrics.NamesResolved.Inc()
	return NameResolution{Address: address, DNSName: dnsName, Source: resolverSource}, nil
}

// ResolveMany resolves a set of addresses, serving fresh cache entries
// directly and resolving at most maxPerRun stale ones
func (s *NameResolverService) ResolveMany(ctx context.Context, addresses []string, force bool) (map[string]*string, error) {
	seen := make(map[string]struct{})
	var unique []string
	for _, address := range addresses {
		normalized := models.NormalizeAddress(address)
		if !models.IsValidAddress(normalized) {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		unique = append(unique, normalized)
	}
	if len(unique) == 0 {
		return map[string]*string{}, nil
	}

	cachedRows, err := s.names.GetMany(ctx, unique)
	if err != nil {
		return nil, err
	}
	cacheByAddress := make(map[string]*models.NameRecord, len(cachedRows))
	for i := range cachedRows {
		cacheByAddress[models.NormalizeAddress(cachedRows[i].WalletAddress)] = &cachedRows[i]
	}

	now := s.now()
	results := make(map[string]*string)
	type pending struct {
		address string
		cached  *models.NameRecord
	}
	var toResolve []pending

	for _, address := range unique {
		cached := cacheByAddress[address]
		if cached != nil && !force && !cached.IsStale(now, s.ttl) {
			results[address] = cached.DNSName
			continue
		}
		toResolve = append(toResolve, pending{address: address, cached: cached})
	}

	if len(toResolve) > s.maxPerRun {
		toResolve = toResolve[:s.maxPerRun]
	}
	for _, item := range toResolve {
		resolution, err := s.resolveWithCached(ctx, item.address, item.cached, true)
		if err != nil {
			return nil, err
		}
		results[item.address] = resolution.DNSName
	}

	return results, nil
}

// NameSyncResult reports how many user addresses were considered and
// how many got an answer this run
type NameSyncResult struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
}

// SyncUserNames resolves names for every registered user address
func (s *NameResolverService) SyncUserNames(ctx context.Context) (NameSyncResult, error) {
	addresses, err := s.names.ListUserAddresses(ctx)
	if err != nil {
		return NameSyncResult{}, err
	}
	results, err := s.ResolveMany(ctx, addresses, false)
	if err != nil {
		return NameSyncResult{}, err
	}
	return NameSyncResult{Total: len(addresses), Processed: len(results)}, nil
}
