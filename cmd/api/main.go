package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/urbanoasis/farmstand-backend/api/controllers"
	"github.com/urbanoasis/farmstand-backend/api/routes"
	"github.com/urbanoasis/farmstand-backend/internal/auth"
	"github.com/urbanoasis/farmstand-backend/internal/cart"
	"github.com/urbanoasis/farmstand-backend/internal/catalog"
	"github.com/urbanoasis/farmstand-backend/internal/checkout"
	"github.com/urbanoasis/farmstand-backend/internal/identity"
	"github.com/urbanoasis/farmstand-backend/internal/insights"
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
	"github.com/urbanoasis/farmstand-backend/pkg/security"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

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

	// The mirror is optional: without a configured endpoint the station runs
	// fully offline and every sale simply stays pending.
	var store *mirror.Store
	if cfg.Redis.Configured() {
		redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "remote mirror unreachable at boot, continuing offline", err)
		} else {
			store = mirror.New(redisClient)
			defer func() {
				if err := redisClient.Close(); err != nil {
					logg.Error(context.Background(), "error closing redis", err)
				}
			}()
		}
	}

	identityService, err := identity.NewService(identity.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create identity service", err)
		os.Exit(1)
	}
	device, err := identityService.Ensure(context.Background())
	if err != nil {
		logg.Error(context.Background(), "failed to resolve device identity", err)
		os.Exit(1)
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)

	settingsService, err := settings.NewService(settings.NewRepository(dbClient.DB()), dbClient, outboxService, store, cfg.Pins)
	if err != nil {
		logg.Error(context.Background(), "failed to create settings service", err)
		os.Exit(1)
	}
	if err := settingsService.EnsureDefaultPins(context.Background()); err != nil {
		logg.Error(context.Background(), "failed to seed station pins", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(settingsService, security.VerifyPIN, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()), dbClient, outboxService, store)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cart.NewRepository(dbClient.DB()), dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()), dbClient, store, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(cartService, ledgerService, cfg.Checkout, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}
	defer checkoutService.Close()

	insightsService, err := insights.NewService(ledgerService)
	if err != nil {
		logg.Error(context.Background(), "failed to create insights service", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	syncMetrics := metrics.NewSyncMetrics(registry)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var workers sync.WaitGroup
	if store != nil {
		drainer, err := syncsvc.NewDrainer(outboxRepo, store, cfg.Outbox, syncMetrics, logg)
		if err != nil {
			logg.Error(ctx, "failed to create outbox drainer", err)
			os.Exit(1)
		}
		watcher, err := syncsvc.NewWatcher(store, ledgerService, catalogService, settingsService, drainer, store, cfg.Sync, syncMetrics, logg)
		if err != nil {
			logg.Error(ctx, "failed to create connectivity watcher", err)
			os.Exit(1)
		}
		workers.Add(2)
		go func() {
			defer workers.Done()
			drainer.Run(ctx)
		}()
		go func() {
			defer workers.Done()
			watcher.Run(ctx)
		}()
	}

	var remotePinger controllers.Pinger
	if store != nil {
		remotePinger = store
	}

	handler := routes.NewRouter(routes.Deps{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Remote:   remotePinger,
		Registry: registry,
		DeviceID: device.ID,
		Auth:     authService,
		Cart:     cartService,
		Catalog:  catalogService,
		Checkout: checkoutService,
		Ledger:   ledgerService,
		Settings: settingsService,
		Insights: insightsService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	bootCtx := logg.WithFields(ctx, map[string]any{
		"env":    cfg.App.Env,
		"addr":   addr,
		"device": device.ID.String(),
	})
	logg.Info(bootCtx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(bootCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(bootCtx, "error during server shutdown", err)
	}
	workers.Wait()
	logg.Info(bootCtx, "api server shutting down gracefully")
}
