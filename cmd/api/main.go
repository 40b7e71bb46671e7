package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/shirtforge-backend/api/controllers"
	"github.com/angelmondragon/shirtforge-backend/api/routes"
	"github.com/angelmondragon/shirtforge-backend/internal/addresses"
	"github.com/angelmondragon/shirtforge-backend/internal/cart"
	"github.com/angelmondragon/shirtforge-backend/internal/catalog"
	"github.com/angelmondragon/shirtforge-backend/internal/inventory"
	"github.com/angelmondragon/shirtforge-backend/internal/manufacturing"
	"github.com/angelmondragon/shirtforge-backend/internal/orders"
	"github.com/angelmondragon/shirtforge-backend/internal/payments"
	"github.com/angelmondragon/shirtforge-backend/internal/tax"
	"github.com/angelmondragon/shirtforge-backend/pkg/config"
	"github.com/angelmondragon/shirtforge-backend/pkg/db"
	"github.com/angelmondragon/shirtforge-backend/pkg/logger"
	"github.com/angelmondragon/shirtforge-backend/pkg/metrics"
	"github.com/angelmondragon/shirtforge-backend/pkg/migrate"
	"github.com/angelmondragon/shirtforge-backend/pkg/outbox"
	"github.com/angelmondragon/shirtforge-backend/pkg/razorpay"
	"github.com/angelmondragon/shirtforge-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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

	cfg.Service.Kind = "api"

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

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps, err := buildDependencies(context.Background(), cfg, logg, dbClient, registry)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}
	deps.Idempotency = redisClient
	deps.RateLimiter = redisClient
	deps.Readiness = map[string]controllers.Pinger{"postgres": dbClient, "redis": redisClient}
	deps.Gatherer = registry
	deps.HTTPMetrics = metrics.NewHTTPMetrics(registry)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}

func buildDependencies(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, reg prometheus.Registerer) (routes.Dependencies, error) {
	conn := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	ledgerMetrics := metrics.NewLedgerMetrics(reg)

	catalogRepo := catalog.NewRepository(conn)
	catalogService, err := catalog.NewService(catalogRepo)
	if err != nil {
		return routes.Dependencies{}, err
	}
	taxService, err := tax.NewService(tax.NewRepository(conn))
	if err != nil {
		return routes.Dependencies{}, err
	}
	addressService, err := addresses.NewService(addresses.NewRepository(conn), dbClient)
	if err != nil {
		return routes.Dependencies{}, err
	}
	cartRepo := cart.NewRepository(conn)
	cartService, err := cart.NewService(cartRepo, catalogRepo, dbClient, taxService, emitter)
	if err != nil {
		return routes.Dependencies{}, err
	}
	inventoryService, err := inventory.NewService(inventory.NewRepository(conn), dbClient, emitter, ledgerMetrics)
	if err != nil {
		return routes.Dependencies{}, err
	}
	orderService, err := orders.NewService(orders.ServiceParams{
		Repository: orders.NewRepository(conn),
		Carts:      cartRepo,
		Addresses:  addressService,
		Stock:      inventoryService,
		DB:         dbClient,
		Outbox:     emitter,
		Metrics:    ledgerMetrics,
		Logger:     logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	gateway := payments.Gateway(payments.UnavailableGateway{})
	if cfg.Razorpay.Configured() {
		client, err := razorpay.NewClient(ctx, cfg.Razorpay, logg)
		if err != nil {
			return routes.Dependencies{}, err
		}
		gateway = payments.NewRazorpayGateway(client)
	} else {
		logg.Warn(ctx, "razorpay credentials missing; payment initiation disabled")
	}
	paymentService, err := payments.NewService(payments.ServiceParams{
		Repository:    payments.NewRepository(conn),
		Orders:        orderService,
		Gateway:       gateway,
		DB:            dbClient,
		Outbox:        emitter,
		Metrics:       ledgerMetrics,
		Logger:        logg,
		Policy:        payments.Policy{AdvanceFraction: cfg.Ledger.AdvanceFraction()},
		Currency:      cfg.Ledger.Currency,
		KeyID:         cfg.Razorpay.KeyID,
		KeySecret:     cfg.Razorpay.KeySecret,
		WebhookSecret: cfg.Razorpay.WebhookSecret,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}
	manufacturingService, err := manufacturing.NewService(manufacturing.NewRepository(conn), dbClient, emitter)
	if err != nil {
		return routes.Dependencies{}, err
	}

	return routes.Dependencies{
		Cart:          cartService,
		Catalog:       catalogService,
		Addresses:     addressService,
		Orders:        orderService,
		Payments:      paymentService,
		Inventory:     inventoryService,
		Manufacturing: manufacturingService,
		Tax:           taxService,
	}, nil
}
