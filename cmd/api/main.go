package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-cart/api/routes"
	"github.com/angelmondragon/storefront-cart/internal/checkout"
	"github.com/angelmondragon/storefront-cart/internal/events"
	"github.com/angelmondragon/storefront-cart/internal/mirror"
	"github.com/angelmondragon/storefront-cart/internal/reconciler"
	"github.com/angelmondragon/storefront-cart/internal/views"
	"github.com/angelmondragon/storefront-cart/pkg/backend"
	"github.com/angelmondragon/storefront-cart/pkg/config"
	"github.com/angelmondragon/storefront-cart/pkg/db"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/metrics"
	"github.com/angelmondragon/storefront-cart/pkg/migrate"
	"github.com/angelmondragon/storefront-cart/pkg/pubsub"
	"github.com/angelmondragon/storefront-cart/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront-cart"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront-cart",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	// Money leaves the API as JSON numbers, the way the storefront renders it.
	decimal.MarshalJSONWithoutQuotes = true

	ctx := context.Background()

	var redisClient *redis.Client
	if cfg.Redis.Configured() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(ctx, "error closing redis", err)
			}
		}()
	}

	kv, closeKV, err := buildKV(ctx, cfg, logg, redisClient)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap cart mirror", err)
		os.Exit(1)
	}
	defer closeKV()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	remoteMetrics := metrics.NewRemoteCallMetrics(registry)

	client, err := backend.NewClient(
		cfg.Backend.BaseURL,
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithMetrics(remoteMetrics),
	)
	if err != nil {
		logg.Error(ctx, "failed to create backend client", err)
		os.Exit(1)
	}

	store := mirror.New(kv, logg)
	bus := events.NewBus(logg)

	shutdownRelay, err := startRelay(ctx, cfg, logg, bus)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap cart event relay", err)
		os.Exit(1)
	}

	carts := reconciler.NewService(reconciler.ServiceParams{
		Remote:  client,
		Store:   store,
		Bus:     bus,
		Metrics: remoteMetrics,
		Logger:  logg,
	})

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Carts:    carts,
		Repo:     checkout.NewRepository(store),
		Coupons:  client,
		Orders:   client,
		Payments: checkout.SimulatedConfirmer{},
		Shipping: cfg.Checkout.ShippingFeeAmount(),
		Currency: cfg.Checkout.Currency,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create checkout service", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(
		cfg,
		logg,
		store,
		redisClient,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		carts,
		views.NewPage(carts),
		views.NewDropdown(carts),
		views.NewFloatingButton(carts),
		views.NewBadge(carts, store),
		checkoutService,
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"store_driver": cfg.Store.Driver,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "graceful shutdown failed", err)
	}
	shutdownRelay(shutdownCtx)
	logg.Info(ctx, "api server stopped")
}

// startRelay forwards bus events to Pub/Sub when a topic is configured. The
// returned func drains the relay before it stops the publisher and the client.
func startRelay(ctx context.Context, cfg *config.Config, logg *logger.Logger, bus *events.Bus) (func(context.Context), error) {
	if !cfg.PubSub.Enabled() {
		return func(context.Context) {}, nil
	}
	psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return nil, err
	}
	publisher := psClient.CartEventsPublisher()
	relay, err := events.NewRelay(publisher, cfg.PubSub.RelayBuffer, logg)
	if err != nil {
		_ = psClient.Close()
		return nil, err
	}
	unsubscribe := relay.Attach(bus)
	go relay.Run(ctx)

	return func(shutdownCtx context.Context) {
		unsubscribe()
		if err := relay.Close(shutdownCtx); err != nil {
			logg.Error(ctx, "cart event relay did not drain", err)
		}
		publisher.Stop()
		if err := psClient.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub", err)
		}
	}, nil
}

// buildKV opens the configured mirror driver and returns its closer.
func buildKV(ctx context.Context, cfg *config.Config, logg *logger.Logger, redisClient *redis.Client) (mirror.KV, func(), error) {
	noop := func() {}
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		logg.Warn(ctx, "cart mirror kept in memory; carts are lost on restart")
		return mirror.NewMemoryKV(), noop, nil
	case config.StoreDriverSQLite, config.StoreDriverPostgres:
		dbClient, err := db.New(ctx, cfg.Store.Driver, cfg.DB, logg)
		if err != nil {
			return nil, noop, err
		}
		closer := func() {
			if err := dbClient.Close(); err != nil {
				logg.Error(ctx, "error closing database", err)
			}
		}
		if err := migrate.MaybeRun(ctx, cfg, logg, dbClient); err != nil {
			closer()
			return nil, noop, err
		}
		return mirror.NewGormKV(dbClient.DB()), closer, nil
	default:
		return mirror.NewRedisKV(redisClient, cfg.Store.SessionTTL), noop, nil
	}
}
