package service

import (
	"context"
	"sync"
	"time"

	"github.com/ink-market-sync/internal/adapter"
	syncerrors "github.com/ink-market-sync/internal/errors"
	"github.com/ink-market-sync/internal/logging"
	"github.com/ink-market-sync/internal/models"
	"github.com/ink-market-sync/internal/observability"
	"github.com/ink-market-sync/internal/pricing"
)

// historyTargetSource ranks tokens by market cap for history backfill
type historyTargetSource interface {
	TopByMarketCap(ctx context.Context, chainID int64, limit int) ([]models.MarketSnapshot, error)
}

// tokenReader loads token rows for symbol lookup
type tokenReader interface {
	GetByAddresses(ctx context.Context, chainID int64, addresses []string) ([]models.Token, error)
}

// historyStore reads and writes the OHLCV grid
type historyStore interface {
	LatestTimestamp(ctx context.Context, chainID int64, tokenAddress string) (*time.Time, error)
	UpsertPoints(ctx context.Context, points []models.PricePoint) error
}

// ohlcvProvider is the market-data provider's historical candle surface
type ohlcvProvider interface {
	HasKey() bool
	OHLCV(ctx context.Context, symbol string, count int) ([]adapter.Candle, error)
}

// HistorySyncService backfills hourly OHLCV candles for the
// highest-capitalization tokens. A plan-entitlement denial on the
// candle endpoint disables the primary path for the rest of the process
// lifetime; remaining targets get a synthesized single point from
// AMM-inferred prices instead.
type HistorySyncService struct {
	chainID    int64
	ttl        time.Duration
	points     int
	tokenLimit int

	market   historyTargetSource
	tokens   tokenReader
	history  historyStore
	provider ohlcvProvider
	amm      pairProvider
	engine   *pricing.Engine

	logger  *logging.Logger
	metrics *observability.Metrics
	now     func() time.Time

	mu            sync.Mutex
	ohlcvDisabled bool
}

// NewHistorySyncService creates a new price history synchronizer
func NewHistorySyncService(chainID int64, ttl time.Duration, points, tokenLimit int, market historyTargetSource, tokens tokenReader, history historyStore, provider ohlcvProvider, amm pairProvider, engine *pricing.Engine, logger *logging.Logger, metrics *observability.Metrics) *HistorySyncService {
	return &HistorySyncService{
		chainID:    chainID,
		ttl:        ttl,
		points:     points,
		tokenLimit: tokenLimit,
		market:     market,
		tokens:     tokens,
		history:    history,
		provider:   provider,
		amm:        amm,
		engine:     engine,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}
}

// HistorySyncResult reports how many targets were considered, how many
// points were written, and how many targets were skipped as fresh
type HistorySyncResult struct {
	Tokens   int `json:"tokens"`
	Upserted int `json:"upserted"`
	Skipped  int `json:"skipped"`
}

type historyTarget struct {
	address string
	symbol  string
}

// Sync backfills candles for the top tokens by market cap, skipping
// targets whose stored history is within the TTL
func (s *HistorySyncService) Sync(ctx context.Context) (HistorySyncResult, error) {
	targets, err := s.selectTargets(ctx)
	if err != nil {
		return HistorySyncResult{}, err
	}

	now := s.now()
	result := HistorySyncResult{Tokens: len(targets)}

	// the inference run is shared by every fallback target this cycle
	var inferred *pricing.Result
	inferOnce := func() (*pricing.Result, error) {
		if inferred != nil {
			return inferred, nil
		}
		pairs, err := s.amm.FetchPairs(ctx)
		if err != nil {
			return nil, err
		}
		r := s.engine.Infer(pairs)
		inferred = &r
		return inferred, nil
	}

	for _, target := range targets {
		latest, err := s.history.LatestTimestamp(ctx, s.chainID, target.address)
		if err != nil {
			return result, err
		}
		if latest != nil && now.Sub(*latest) <= s.ttl {
			result.Skipped++
			continue
		}

		if s.primaryAvailable() && target.symbol != "" {
			points, err := s.fetchCandles(ctx, target)
			switch {
			case err == nil:
				if len(points) > 0 {
					if err := s.history.UpsertPoints(ctx, points); err != nil {
						return result, err
					}
					result.Upserted += len(points)
					s.metrics.HistoryPoints.Add(float64(len(points)))
				}
				continue
			case syncerrors.IsEntitlementDenied(err):
				s.disablePrimary()
				s.logger.WithError(err).Warn("ohlcv entitlement denied, using synthesized fallback for the rest of this run")
			case syncerrors.IsRateLimited(err):
				s.logger.WithError(err).WithField("symbol", target.symbol).Warn("ohlcv rate limited, skipping token")
				continue
			default:
				return result, err
			}
		}

		inference, err := inferOnce()
		if err != nil {
			return result, err
		}
		point, ok := s.synthesizePoint(target.address, inference, now)
		if !ok {
			result.Skipped++
			continue
		}
		if err := s.history.UpsertPoints(ctx, []models.PricePoint{point}); err != nil {
			return result, err
		}
		result.Upserted++
		s.metrics.HistoryPoints.Inc()
	}

	return result, nil
}

// selectTargets pairs the top market-cap addresses with their token
// symbols. Targets without a provider-safe symbol stay eligible for the
// fallback path.
func (s *HistorySyncService) selectTargets(ctx context.Context) ([]historyTarget, error) {
	snapshots, err := s.market.TopByMarketCap(ctx, s.chainID, s.tokenLimit)
	if err != nil {
		return nil, err
	}

	addresses := make([]string, 0, len(snapshots))
	for _, snapshot := range snapshots {
		addresses = append(addresses, models.NormalizeAddress(snapshot.TokenAddress))
	}

	rows, err := s.tokens.GetByAddresses(ctx, s.chainID, addresses)
	if err != nil {
		return nil, err
	}
	symbolByAddress := make(map[string]string, len(rows))
	for _, row := range rows {
		symbolByAddress[row.Address] = normalizedProviderSymbol(row)
	}

	targets := make([]historyTarget, 0, len(addresses))
	for _, address := range addresses {
		targets = append(targets, historyTarget{address: address, symbol: symbolByAddress[address]})
	}
	return targets, nil
}

func (s *HistorySyncService) fetchCandles(ctx context.Context, target historyTarget) ([]models.PricePoint, error) {
	candles, err := s.provider.OHLCV(ctx, target.symbol, s.points)
	if err != nil {
		return nil, err
	}

	points := make([]models.PricePoint, 0, len(candles))
	for _, candle := range candles {
		ts := parseTimestamp(candle.Timestamp)
		if ts.IsZero() {
			continue
		}
		points = append(points, models.PricePoint{
			ChainID:      s.chainID,
			TokenAddress: target.address,
			Timestamp:    ts,
			Open:         candle.Open,
			High:         candle.High,
			Low:          candle.Low,
			Close:        candle.Close,
			Volume:       candle.Volume,
		})
	}
	return points, nil
}

// synthesizePoint builds the degenerate single-candle substitute from
// an inferred price: open=high=low=close
func (s *HistorySyncService) synthesizePoint(address string, inference *pricing.Result, now time.Time) (models.PricePoint, bool) {
	price, ok := inference.Prices[address]
	if !ok {
		return models.PricePoint{}, false
	}
	point := models.PricePoint{
		ChainID:      s.chainID,
		TokenAddress: address,
		Timestamp:    now,
		Open:         models.Float64Ptr(price),
		High:         models.Float64Ptr(price),
		Low:          models.Float64Ptr(price),
		Close:        models.Float64Ptr(price),
	}
	if volume, ok := inference.Volumes[address]; ok {
		point.Volume = models.Float64Ptr(volume)
	}
	return point, true
}

func (s *HistorySyncService) primaryAvailable() bool {
	if !s.provider.HasKey() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.ohlcvDisabled
}

func (s *HistorySyncService) disablePrimary() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ohlcvDisabled = true
}
