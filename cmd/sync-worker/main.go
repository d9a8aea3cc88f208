package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/urbanoasis/farmstand-backend/internal/catalog"
	"github.com/urbanoasis/farmstand-backend/internal/ledger"
	"github.com/urbanoasis/farmstand-backend/internal/settings"
	syncsvc "github.com/urbanoasis/farmstand-backend/internal/sync"
	"github.com/urbanoasis/farmstand-backend/pkg/config"
	"github.com/urbanoasis/farmstand-backend/pkg/db"
	"github.com/urbanoasis/farmstand-backend/pkg/logger"
	"github.com/urbanoasis/farmstand-backend/pkg/metrics"
	"github.com/urbanoasis/farmstand-backend/pkg/migrate"
	"github.com/urbanoasis/farmstand-backend/pkg/mirror"
	"github.com/urbanoasis/farmstand-backend/pkg/outbox"
	"github.com/urbanoasis/farmstand-backend/pkg/redis"
)

// The sync worker runs the outbox drainer and connectivity watcher outside
// the API process, for stations that serve the register UI from a separate
// host. A single-host station gets the same loops inside cmd/api.
func main() {
	logg := logger.New(logger.Options{ServiceName: "sync-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "sync-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if !cfg.Redis.Configured() {
		logg.Error(context.Background(), "sync worker requires a configured mirror", nil)
		os.Exit(1)
	}

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()
	store := mirror.New(redisClient)

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)

	settingsService, err := settings.NewService(settings.NewRepository(dbClient.DB()), dbClient, outboxService, store, cfg.Pins)
	if err != nil {
		logg.Error(context.Background(), "failed to create settings service", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()), dbClient, outboxService, store)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()), dbClient, store, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	syncMetrics := metrics.NewSyncMetrics(registry)

	drainer, err := syncsvc.NewDrainer(outboxRepo, store, cfg.Outbox, syncMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox drainer", err)
		os.Exit(1)
	}
	watcher, err := syncsvc.NewWatcher(store, ledgerService, catalogService, settingsService, drainer, store, cfg.Sync, syncMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create connectivity watcher", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting sync worker")

	var workers sync.WaitGroup
	workers.Add(2)
	go func() {
		defer workers.Done()
		drainer.Run(ctx)
	}()
	go func() {
		defer workers.Done()
		watcher.Run(ctx)
	}()

	<-ctx.Done()
	workers.Wait()
	logg.Info(ctx, "sync worker shutting down gracefully")
}
