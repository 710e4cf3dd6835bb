// Package main provides the API server entry point for the analytics service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/refina-analytics/internal/adapter"
	"github.com/refina-analytics/internal/analytics"
	"github.com/refina-analytics/internal/api"
	"github.com/refina-analytics/internal/config"
	"github.com/refina-analytics/internal/logging"
	"github.com/refina-analytics/internal/retry"
	"github.com/refina-analytics/internal/service"
	"github.com/refina-analytics/internal/storage"
	"github.com/refina-analytics/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}
	loc, _ := cfg.Analytics.Location()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := retry.Value(ctx, retry.DefaultConfig("connect postgres"), func(ctx context.Context) (*storage.PostgresDB, error) {
		return storage.NewPostgresDB(&cfg.Database.Postgres)
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := retry.Value(ctx, retry.DefaultConfig("connect redis"), func(ctx context.Context) (*storage.RedisCache, error) {
		return storage.NewRedisCache(&cfg.Database.Redis)
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	repo := storage.NewAnalyticsRepository(postgres)
	store := storage.NewMirroredStore(repo)

	var clickhouse *storage.ClickHouseDB
	if cfg.Database.ClickHouse.Enabled {
		clickhouse, err = retry.Value(ctx, retry.DefaultConfig("connect clickhouse"), func(ctx context.Context) (*storage.ClickHouseDB, error) {
			return storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to ClickHouse")
		}
		defer clickhouse.Close()
		store.AddMirror("clickhouse", storage.NewClickHouseAnalyticsRepository(clickhouse))
	}

	logger.Info("Database connections established")

	// Upstream ledger services
	conns, err := adapter.Dial(cfg.Upstream)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create upstream clients")
	}
	defer conns.Close()

	waitCtx, cancel := context.WithTimeout(ctx, cfg.Upstream.DialTimeout)
	if err := conns.WaitReady(waitCtx); err != nil {
		// Connections keep retrying in the background; syncs fail until they are up
		logger.WithError(err).Warn("Upstream services not ready yet")
	}
	cancel()

	// Initialize services
	cacheService := storage.NewCacheService(redis, cfg.Cache.TTL)
	syncService := service.NewSyncService(
		service.Sources{
			Wallets:      adapter.NewWalletClient(conns.Wallet),
			Transactions: adapter.NewTransactionClient(conns.Transaction),
			Investments:  adapter.NewInvestmentClient(conns.Investment),
		},
		store,
		analytics.NewEngine(loc),
		storage.NewSyncRunRepository(postgres),
		cacheService,
	)
	queryService := service.NewQueryService(repo, cacheService)

	logger.Info("Services initialized")

	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Sync.Timeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		InitialSyncKey:    cfg.Auth.InitialSyncKey,
		JWTSecret:         cfg.Auth.JWTSecret,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
		Location:          loc,
	}

	server := api.NewServer(serverConfig, syncService, queryService)
	server.AddHealthCheck("postgres", postgres.Ping)
	server.AddHealthCheck("redis", redis.Ping)
	if clickhouse != nil {
		server.AddHealthCheck("clickhouse", clickhouse.Ping)
	}

	// Scheduled full syncs
	var syncWorker *worker.SyncWorker
	if cfg.Sync.Interval > 0 {
		syncWorker, err = worker.NewSyncWorker(&worker.SyncWorkerConfig{
			Runner:   syncService,
			Interval: cfg.Sync.Interval,
			Timeout:  cfg.Sync.Timeout,
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to create sync worker")
		}
		if err := syncWorker.Start(ctx); err != nil {
			logger.WithError(err).Fatal("Failed to start sync worker")
		}
	}

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancelShutdown()

	if syncWorker != nil {
		if err := syncWorker.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Sync worker did not stop cleanly")
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
