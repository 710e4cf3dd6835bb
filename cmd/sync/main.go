// Package main runs one sync pass from the command line.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/refina-analytics/internal/adapter"
	"github.com/refina-analytics/internal/analytics"
	"github.com/refina-analytics/internal/config"
	"github.com/refina-analytics/internal/logging"
	"github.com/refina-analytics/internal/retry"
	"github.com/refina-analytics/internal/service"
	"github.com/refina-analytics/internal/storage"
)

func main() {
	userID := flag.String("user", "", "Sync a single user (default: every user)")
	skipCache := flag.Bool("no-cache", false, "Do not invalidate the Redis read cache")
	flag.Parse()

	if err := run(*userID, *skipCache); err != nil {
		logging.GetGlobalLogger().WithError(err).Error("Sync failed")
		os.Exit(1)
	}
}

func run(userID string, skipCache bool) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))

	if err := cfg.Validate(); err != nil {
		return err
	}
	loc, _ := cfg.Analytics.Location()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)
	ctx, cancel := context.WithTimeout(ctx, cfg.Sync.Timeout)
	defer cancel()

	postgres, err := retry.Value(ctx, retry.DefaultConfig("connect postgres"), func(ctx context.Context) (*storage.PostgresDB, error) {
		return storage.NewPostgresDB(&cfg.Database.Postgres)
	})
	if err != nil {
		return err
	}
	defer postgres.Close()

	store := storage.NewMirroredStore(storage.NewAnalyticsRepository(postgres))
	if cfg.Database.ClickHouse.Enabled {
		clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			return err
		}
		defer clickhouse.Close()
		store.AddMirror("clickhouse", storage.NewClickHouseAnalyticsRepository(clickhouse))
	}

	// A missing cache only means stale reads until the TTL runs out
	var invalidator service.CacheInvalidator
	if !skipCache {
		redis, err := storage.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, cached results will expire on their own")
		} else {
			defer redis.Close()
			invalidator = storage.NewCacheService(redis, cfg.Cache.TTL)
		}
	}

	conns, err := adapter.Dial(cfg.Upstream)
	if err != nil {
		return err
	}
	defer conns.Close()

	waitCtx, cancelWait := context.WithTimeout(ctx, cfg.Upstream.DialTimeout)
	defer cancelWait()
	if err := conns.WaitReady(waitCtx); err != nil {
		return err
	}

	syncService := service.NewSyncService(
		service.Sources{
			Wallets:      adapter.NewWalletClient(conns.Wallet),
			Transactions: adapter.NewTransactionClient(conns.Transaction),
			Investments:  adapter.NewInvestmentClient(conns.Investment),
		},
		store,
		analytics.NewEngine(loc),
		storage.NewSyncRunRepository(postgres),
		invalidator,
	)

	result, err := syncService.Run(ctx, service.SyncRequest{UserID: userID})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
