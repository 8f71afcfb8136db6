// Command syncer runs the token and market data sync jobs.
//
// Usage:
//
//	syncer [job ...]
//
// where job is one of tokens, market, ohlcv, names, trending, or all.
// With no arguments every job runs in order.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ink-market-sync/internal/adapter"
	"github.com/ink-market-sync/internal/config"
	"github.com/ink-market-sync/internal/httpclient"
	"github.com/ink-market-sync/internal/job"
	"github.com/ink-market-sync/internal/logging"
	"github.com/ink-market-sync/internal/observability"
	"github.com/ink-market-sync/internal/pricing"
	"github.com/ink-market-sync/internal/retry"
	"github.com/ink-market-sync/internal/service"
	"github.com/ink-market-sync/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runner := buildRunner(cfg, logger, metrics)
	names, err := runner.Resolve(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := runner.Run(ctx, names); err != nil {
		logger.WithError(err).Error("sync run failed")
		os.Exit(1)
	}
}

func buildRunner(cfg *config.Config, logger *logging.Logger, metrics *observability.Metrics) *job.Runner {
	registryClient := httpclient.New(retry.RegistryConfig())
	marketClient := httpclient.New(retry.MarketDataConfig())

	gateway := storage.NewGateway(cfg.Gateway.BaseURL, cfg.Gateway.ServiceKey, marketClient)
	tokenRepo := storage.NewTokenRepository(gateway)
	marketRepo := storage.NewMarketRepository(gateway, cfg.Market.SnapshotPageSize)
	historyRepo := storage.NewHistoryRepository(gateway)
	nameRepo := storage.NewNameRepository(gateway)

	blockscout := adapter.NewBlockscoutClient(cfg.Blockscout.BaseURL, cfg.Blockscout.APIKey, cfg.Blockscout.MaxPages, cfg.ChainID, registryClient)
	safe := adapter.NewSafeClient(cfg.Safe.BaseURL, cfg.Safe.PageSize, cfg.Safe.MaxPages, cfg.ChainID, registryClient)
	inkyswap := adapter.NewInkySwapClient(cfg.InkySwap.BaseURL, cfg.ChainID, registryClient)
	inkypump := adapter.NewInkyPumpClient(cfg.InkyPump.BaseURL, cfg.InkyPump.BatchSize, cfg.InkyPump.MaxBatches, cfg.InkyPump.BatchDelay, cfg.ChainID, registryClient, logger)
	cmc := adapter.NewCMCClient(cfg.CMC.BaseURL, cfg.CMC.APIKey, marketClient)

	engine := pricing.NewEngine(cfg.Market.StableSymbols, cfg.Market.StableAddresses)

	tokenSync := service.NewTokenSyncService(blockscout, safe, inkyswap, inkypump, tokenRepo, logger, metrics)
	marketSync := service.NewMarketSyncService(cfg.ChainID, cfg.Market.TTL, cfg.CMC.BatchSize, tokenRepo, marketRepo, cmc, inkyswap, engine, logger, metrics)
	historySync := service.NewHistorySyncService(cfg.ChainID, cfg.History.TTL, cfg.History.Points, cfg.History.TokenLimit, marketRepo, tokenRepo, historyRepo, cmc, inkyswap, engine, logger, metrics)
	nameResolver := service.NewNameResolverService(blockscout, nameRepo, cfg.Names.TTL, cfg.Names.MaxPerRun, logger, metrics)
	trending := service.NewTrendingService(gateway, cfg.ChainID)

	runner := job.NewRunner(logger, metrics)
	runner.Register("tokens", func(ctx context.Context) (interface{}, error) {
		return tokenSync.Sync(ctx)
	})
	runner.Register("market", func(ctx context.Context) (interface{}, error) {
		return marketSync.Sync(ctx)
	})
	runner.Register("ohlcv", func(ctx context.Context) (interface{}, error) {
		return historySync.Sync(ctx)
	})
	runner.Register("names", func(ctx context.Context) (interface{}, error) {
		return nameResolver.SyncUserNames(ctx)
	})
	runner.Register("trending", func(ctx context.Context) (interface{}, error) {
		if err := trending.Refresh(ctx); err != nil {
			return nil, err
		}
		return map[string]int64{"chain_id": cfg.ChainID}, nil
	})
	return runner
}
