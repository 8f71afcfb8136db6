package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ink-market-sync/internal/adapter"
	syncerrors "github.com/ink-market-sync/internal/errors"
	"github.com/ink-market-sync/internal/logging"
	"github.com/ink-market-sync/internal/models"
	"github.com/ink-market-sync/internal/observability"
	"github.com/ink-market-sync/internal/pricing"
)

// activeTokenLister loads the chain's active, non-spam tokens
type activeTokenLister interface {
	ListActive(ctx context.Context, chainID int64) ([]models.Token, error)
}

// marketStore reads and writes market data snapshots
type marketStore interface {
	GetByAddresses(ctx context.Context, chainID int64, addresses []string) ([]models.MarketSnapshot, error)
	UpsertSnapshots(ctx context.Context, snapshots []models.MarketSnapshot) error
}

// quoteProvider is the market-data provider's batch quote surface
type quoteProvider interface {
	HasKey() bool
	Quotes(ctx context.Context, symbols []string) (map[string][]adapter.QuoteEntry, error)
	Info(ctx context.Context, symbols []string) (map[string][]adapter.InfoEntry, error)
}

// pairProvider fetches the AMM's current liquidity pair snapshots
type pairProvider interface {
	FetchPairs(ctx context.Context) ([]models.LiquidityPair, error)
}

// MarketSyncService refreshes stale market data snapshots from the
// provider, falling back to AMM-inferred prices when the provider is
// unavailable, not entitled, or returns nothing for our candidates.
type MarketSyncService struct {
	chainID   int64
	ttl       time.Duration
	batchSize int

	tokens   activeTokenLister
	market   marketStore
	provider quoteProvider
	amm      pairProvider
	engine   *pricing.Engine

	logger  *logging.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewMarketSyncService creates a new market data synchronizer
func NewMarketSyncService(chainID int64, ttl time.Duration, batchSize int, tokens activeTokenLister, market marketStore, provider quoteProvider, amm pairProvider, engine *pricing.Engine, logger *logging.Logger, metrics *observability.Metrics) *MarketSyncService {
	return &MarketSyncService{
		chainID:   chainID,
		ttl:       ttl,
		batchSize: batchSize,
		tokens:    tokens,
		market:    market,
		provider:  provider,
		amm:       amm,
		engine:    engine,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// MarketSyncResult reports how many snapshots were written, how many
// tokens were left untouched, and which source produced the run
type MarketSyncResult struct {
	Updated int                 `json:"updated"`
	Skipped int                 `json:"skipped"`
	Source  models.MarketSource `json:"source,omitempty"`
}

// Sync selects refresh candidates by snapshot staleness and runs the
// primary or fallback path. A run with no stale candidates is a no-op
// success, not a fallback trigger.
func (s *MarketSyncService) Sync(ctx context.Context) (MarketSyncResult, error) {
	tokens, err := s.tokens.ListActive(ctx, s.chainID)
	if err != nil {
		return MarketSyncResult{}, err
	}

	addresses := make([]string, 0, len(tokens))
	for _, token := range tokens {
		addresses = append(addresses, token.Address)
	}
	snapshots, err := s.market.GetByAddresses(ctx, s.chainID, addresses)
	if err != nil {
		return MarketSyncResult{}, err
	}

	snapshotByAddress := make(map[string]models.MarketSnapshot, len(snapshots))
	for _, snapshot := range snapshots {
		snapshotByAddress[models.NormalizeAddress(snapshot.TokenAddress)] = snapshot
	}

	now := s.now()
	var stale []models.Token
	for _, token := range tokens {
		snapshot, ok := snapshotByAddress[token.Address]
		if !ok || snapshot.IsStale(now, s.ttl) {
			stale = append(stale, token)
		}
	}

	if len(stale) == 0 {
		s.logger.WithField("tokens", len(tokens)).Info("market data fresh, nothing to sync")
		return MarketSyncResult{Updated: 0, Skipped: len(tokens)}, nil
	}

	if s.provider.HasKey() {
		updated, err := s.syncFromProvider(ctx, stale, now)
		switch {
		case err != nil && syncerrors.IsEntitlementDenied(err):
			s.logger.WithError(err).Warn("provider entitlement denied, falling back to amm inference")
		case err != nil:
			return MarketSyncResult{}, err
		case updated > 0:
			return MarketSyncResult{Updated: updated, Skipped: len(tokens) - updated, Source: models.MarketSourceCMC}, nil
		default:
			// candidates existed but the provider produced nothing
			s.logger.WithField("candidates", len(stale)).Warn("provider run updated nothing, falling back to amm inference")
		}
	}

	updated, err := s.syncFromAMM(ctx, stale, now)
	if err != nil {
		return MarketSyncResult{}, err
	}
	return MarketSyncResult{Updated: updated, Skipped: len(tokens) - updated, Source: models.MarketSourceInkySwap}, nil
}

func (s *MarketSyncService) syncFromProvider(ctx context.Context, stale []models.Token, now time.Time) (int, error) {
	symbols := candidateSymbols(stale)
	if len(symbols) == 0 {
		return 0, nil
	}

	updated := 0
	for start := 0; start < len(symbols); start += s.batchSize {
		end := start + s.batchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		batch := symbols[start:end]

		var quotes map[string][]adapter.QuoteEntry
		var info map[string][]adapter.InfoEntry
		group, groupCtx := errgroup.WithContext(ctx)
		group.Go(func() error {
			var err error
			quotes, err = s.provider.Quotes(groupCtx, batch)
			return err
		})
		group.Go(func() error {
			var err error
			info, err = s.provider.Info(groupCtx, batch)
			return err
		})
		if err := group.Wait(); err != nil {
			if syncerrors.IsRateLimited(err) {
				s.logger.WithError(err).Warn("provider rate limited, skipping batch")
				continue
			}
			return updated, err
		}

		updates := s.buildUpdates(stale, quotes, info, now)
		if len(updates) == 0 {
			continue
		}
		if err := s.market.UpsertSnapshots(ctx, updates); err != nil {
			return updated, err
		}
		updated += len(updates)
		s.metrics.MarketUpdates.WithLabelValues(string(models.MarketSourceCMC)).Add(float64(len(updates)))
	}
	return updated, nil
}

// buildUpdates joins provider quotes and info per token. A token whose
// price, market cap and logo are all absent is skipped so an all-null
// row never masquerades as fresh data.
func (s *MarketSyncService) buildUpdates(stale []models.Token, quotes map[string][]adapter.QuoteEntry, info map[string][]adapter.InfoEntry, now time.Time) []models.MarketSnapshot {
	var updates []models.MarketSnapshot
	for _, token := range stale {
		symbol := normalizedProviderSymbol(token)
		if symbol == "" {
			continue
		}

		quoteEntry := adapter.MatchQuote(quotes[symbol], token.Address)
		infoEntry := adapter.MatchInfo(info[symbol], token.Address)

		var usd adapter.QuoteUSD
		lastUpdated := now
		if quoteEntry != nil {
			usd = quoteEntry.Quote.USD
			if ts := parseTimestamp(usd.LastUpdated, quoteEntry.LastUpdated); !ts.IsZero() {
				lastUpdated = ts
			}
		}

		var logo *string
		if infoEntry != nil {
			if candidate := infoEntry.LogoCandidate(); candidate != "" {
				logo = &candidate
			}
		}

		if usd.Price == nil && usd.MarketCap == nil && logo == nil {
			continue
		}

		updates = append(updates, models.MarketSnapshot{
			ChainID:         s.chainID,
			TokenAddress:    token.Address,
			PriceUSD:        usd.Price,
			MarketCap:       usd.MarketCap,
			Volume24h:       usd.Volume24h,
			PercentChange24: usd.PercentChange24h,
			LogoURL:         logo,
			LastUpdated:     lastUpdated,
			Source:          models.MarketSourceCMC,
		})
	}
	return updates
}

func (s *MarketSyncService) syncFromAMM(ctx context.Context, stale []models.Token, now time.Time) (int, error) {
	pairs, err := s.amm.FetchPairs(ctx)
	if err != nil {
		return 0, err
	}
	inferred := s.engine.Infer(pairs)

	var updates []models.MarketSnapshot
	for _, token := range stale {
		price, ok := inferred.Prices[token.Address]
		if !ok {
			continue
		}
		snapshot := models.MarketSnapshot{
			ChainID:      s.chainID,
			TokenAddress: token.Address,
			PriceUSD:     models.Float64Ptr(price),
			LastUpdated:  now,
			Source:       models.MarketSourceInkySwap,
		}
		if volume, ok := inferred.Volumes[token.Address]; ok {
			snapshot.Volume24h = models.Float64Ptr(volume)
		}
		updates = append(updates, snapshot)
	}

	if len(updates) > 0 {
		if err := s.market.UpsertSnapshots(ctx, updates); err != nil {
			return 0, err
		}
	}
	s.metrics.MarketFallbackRuns.Inc()
	s.metrics.MarketUpdates.WithLabelValues(string(models.MarketSourceInkySwap)).Add(float64(len(updates)))
	s.logger.WithFields(map[string]interface{}{
		"pairs":   len(pairs),
		"rounds":  inferred.Rounds,
		"updated": len(updates),
	}).Info("market data synced from amm inference")
	return len(updates), nil
}

// candidateSymbols collects the deduplicated provider-safe symbols of
// the stale tokens, preserving order
func candidateSymbols(stale []models.Token) []string {
	seen := make(map[string]struct{})
	var symbols []string
	for _, token := range stale {
		symbol := normalizedProviderSymbol(token)
		if symbol == "" {
			continue
		}
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		symbols = append(symbols, symbol)
	}
	return symbols
}

func normalizedProviderSymbol(token models.Token) string {
	if token.Symbol == nil {
		return ""
	}
	symbol := models.NormalizeSymbol(*token.Symbol)
	if !models.IsValidProviderSymbol(symbol) {
		return ""
	}
	return symbol
}

func parseTimestamp(candidates ...string) time.Time {
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if ts, err := time.Parse(time.RFC3339, candidate); err == nil {
			return ts
		}
	}
	return time.Time{}
}
