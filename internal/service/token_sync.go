package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ink-market-sync/internal/logging"
	"github.com/ink-market-sync/internal/models"
	"github.com/ink-market-sync/internal/observability"
)

// tokenSource lists a source's full token collection
type tokenSource interface {
	FetchTokens(ctx context.Context) ([]models.Token, error)
}

// tokenEnricher is the launch platform's batched lookup
type tokenEnricher interface {
	FetchTokensBatch(ctx context.Context, addresses []string) ([]models.Token, error)
}

// tokenWriter persists merged token records
type tokenWriter interface {
	UpsertTokens(ctx context.Context, tokens []models.Token) error
}

// TokenSyncService reconciles the four upstream token registries into
// the canonical token table. A failed source contributes an empty
// collection and is logged; it never fails the run.
type TokenSyncService struct {
	blockscout tokenSource
	safe       tokenSource
	inkyswap   tokenSource
	inkypump   tokenEnricher
	tokens     tokenWriter
	logger     *logging.Logger
	metrics    *observability.Metrics
}

// NewTokenSyncService creates a new token sync service
func NewTokenSyncService(blockscout, safe, inkyswap tokenSource, inkypump tokenEnricher, tokens tokenWriter, logger *logging.Logger, metrics *observability.Metrics) *TokenSyncService {
	return &TokenSyncService{
		blockscout: blockscout,
		safe:       safe,
		inkyswap:   inkyswap,
		inkypump:   inkypump,
		tokens:     tokens,
		logger:     logger,
		metrics:    metrics,
	}
}

// TokenSyncResult reports per-source fetch counts and the number of
// merged records written
type TokenSyncResult struct {
	BlockscoutCount int `json:"blockscout_count"`
	SafeCount       int `json:"safe_count"`
	InkySwapCount   int `json:"inkyswap_count"`
	InkyPumpCount   int `json:"inkypump_count"`
	Upserted        int `json:"upserted"`
}

// Sync fetches all sources, merges, runs the launch platform enrichment
// pass, and upserts the result
func (s *TokenSyncService) Sync(ctx context.Context) (TokenSyncResult, error) {
	var blockscoutTokens, safeTokens, inkyswapTokens []models.Token

	var group errgroup.Group
	group.Go(func() error {
		blockscoutTokens = s.fetchSource(ctx, "blockscout", s.blockscout)
		return nil
	})
	group.Go(func() error {
		safeTokens = s.fetchSource(ctx, "safe", s.safe)
		return nil
	})
	group.Go(func() error {
		inkyswapTokens = s.fetchSource(ctx, "inkyswap", s.inkyswap)
		return nil
	})
	group.Wait()

	if err := ctx.Err(); err != nil {
		return TokenSyncResult{}, err
	}

	// enrichment pass: query the launch platform for merged tokens still
	// missing a logo or its metadata
	partial := MergeTokens(blockscoutTokens, safeTokens, inkyswapTokens, nil)
	var enrichTargets []string
	for _, token := range partial {
		if token.LogoURL != nil {
			if _, ok := token.Metadata["inkypump"]; ok {
				continue
			}
		}
		enrichTargets = append(enrichTargets, token.Address)
	}

	inkypumpTokens, err := s.inkypump.FetchTokensBatch(ctx, enrichTargets)
	if err != nil {
		if ctx.Err() != nil {
			return TokenSyncResult{}, err
		}
		s.logger.WithError(err).Warn("inkypump enrichment skipped")
		inkypumpTokens = nil
	}

	merged := MergeTokens(blockscoutTokens, safeTokens, inkyswapTokens, inkypumpTokens)
	if err := s.tokens.UpsertTokens(ctx, merged); err != nil {
		return TokenSyncResult{}, err
	}
	s.metrics.TokensUpserted.Add(float64(len(merged)))

	result := TokenSyncResult{
		BlockscoutCount: len(blockscoutTokens),
		SafeCount:       len(safeTokens),
		InkySwapCount:   len(inkyswapTokens),
		InkyPumpCount:   len(inkypumpTokens),
		Upserted:        len(merged),
	}
	s.logger.WithFields(map[string]interface{}{
		"blockscout": result.BlockscoutCount,
		"safe":       result.SafeCount,
		"inkyswap":   result.InkySwapCount,
		"inkypump":   result.InkyPumpCount,
		"upserted":   result.Upserted,
	}).Info("token sync complete")
	return result, nil
}

func (s *TokenSyncService) fetchSource(ctx context.Context, name string, source tokenSource) []models.Token {
	tokens, err := source.FetchTokens(ctx)
	if err != nil {
		s.logger.WithError(err).WithField("source", name).Warn("token source failed, contributing nothing")
		return nil
	}
	return tokens
}
