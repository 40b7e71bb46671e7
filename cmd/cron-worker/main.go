package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/shirtforge-backend/internal/cart"
	"github.com/angelmondragon/shirtforge-backend/internal/catalog"
	"github.com/angelmondragon/shirtforge-backend/internal/cron"
	"github.com/angelmondragon/shirtforge-backend/internal/inventory"
	"github.com/angelmondragon/shirtforge-backend/internal/manufacturing"
	"github.com/angelmondragon/shirtforge-backend/internal/tax"
	"github.com/angelmondragon/shirtforge-backend/pkg/config"
	"github.com/angelmondragon/shirtforge-backend/pkg/db"
	"github.com/angelmondragon/shirtforge-backend/pkg/logger"
	"github.com/angelmondragon/shirtforge-backend/pkg/metrics"
	"github.com/angelmondragon/shirtforge-backend/pkg/migrate"
	"github.com/angelmondragon/shirtforge-backend/pkg/outbox"
	"github.com/angelmondragon/shirtforge-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsCollector := metrics.NewCronJobMetrics(reg)
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry, err := buildRegistry(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	go func() {
		if err := metrics.Serve(ctx, cfg.Service.MetricsAddr, reg, logg); err != nil {
			logg.Error(ctx, "metrics listener stopped", err)
		}
	}()

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*cron.Registry, error) {
	conn := dbClient.DB()
	outboxRepo := outbox.NewRepository(conn)
	emitter := outbox.NewService(outboxRepo, logg)

	taxService, err := tax.NewService(tax.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	cartService, err := cart.NewService(cart.NewRepository(conn), catalog.NewRepository(conn), dbClient, taxService, emitter)
	if err != nil {
		return nil, err
	}
	inventoryService, err := inventory.NewService(inventory.NewRepository(conn), dbClient, emitter, nil)
	if err != nil {
		return nil, err
	}
	manufacturingService, err := manufacturing.NewService(manufacturing.NewRepository(conn), dbClient, emitter)
	if err != nil {
		return nil, err
	}

	abandonedCarts, err := cron.NewAbandonedCartJob(cron.AbandonedCartJobParams{
		Logger: logg,
		Carts:  cartService,
		After:  cfg.Ledger.AbandonedCartAfter,
	})
	if err != nil {
		return nil, err
	}
	lowStock, err := cron.NewLowStockAlertJob(cron.LowStockAlertJobParams{
		Logger:    logg,
		DB:        dbClient,
		Stock:     inventoryService,
		Materials: manufacturingService,
		Outbox:    emitter,
		Dedupe:    redisClient,
		KeyPrefix: redisClient.CounterKey("low-stock-alert") + ":",
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outboxRepo,
		Retention:   cfg.Outbox.RetentionDays,
		MinAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewRegistry(abandonedCarts, lowStock, retention)
}
