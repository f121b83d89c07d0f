package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-sneakers/internal/auth"
	"github.com/noah-isme/backend-sneakers/internal/cart"
	"github.com/noah-isme/backend-sneakers/internal/catalog"
	"github.com/noah-isme/backend-sneakers/internal/checkout"
	"github.com/noah-isme/backend-sneakers/internal/config"
	"github.com/noah-isme/backend-sneakers/internal/db"
	"github.com/noah-isme/backend-sneakers/internal/discount"
	"github.com/noah-isme/backend-sneakers/internal/health"
	"github.com/noah-isme/backend-sneakers/internal/lock"
	"github.com/noah-isme/backend-sneakers/internal/obs"
	"github.com/noah-isme/backend-sneakers/internal/order"
	"github.com/noah-isme/backend-sneakers/internal/pricing"
	"github.com/noah-isme/backend-sneakers/internal/ratelimit"
	"github.com/noah-isme/backend-sneakers/internal/rbac"
	"github.com/noah-isme/backend-sneakers/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, obs.TracingConfig{
		Enabled:       cfg.TracingEnabled,
		ServiceName:   "sneakers-api",
		Endpoint:      cfg.TracingEndpoint,
		SamplingRatio: cfg.TracingSampling,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
	} else {
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logger.Error().Err(err).Msg("shutdown tracer")
			}
		}()
	}

	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	var (
		registry    *prometheus.Registry
		httpMetrics *obs.HTTPMetrics
		commerce    *obs.CommerceMetrics
	)
	if cfg.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		httpMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, nil, registry)
		commerce = obs.NewCommerceMetrics(cfg.MetricsNamespace, registry)
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis uri for queue")
	}
	queueClient := asynq.NewClient(redisOpt)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close queue client")
		}
	}()

	engine := pricing.NewEngine(pricing.Currency{Symbol: cfg.CurrencySymbol, MinorUnits: cfg.CurrencyMinorUnits})
	policy := rbac.DefaultPolicy()

	verifier, err := auth.NewVerifier(auth.VerifierConfig{
		Secret:    cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		Audience:  cfg.JWTAudience,
		ClockSkew: cfg.JWTSkew,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("configure token verifier")
	}

	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Store:    catalog.NewPGStore(pool),
		Cache:    catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
		Engine:   engine,
		Metrics:  commerce,
		Logger:   logger.With().Str("component", "catalog").Logger(),
		MaxLimit: cfg.CatalogMaxLimit,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("configure catalog")
	}

	discountSvc := discount.NewService(discount.NewPGStore(pool), engine, catalogSvc)
	cartSvc := &cart.Service{Store: cart.NewPGStore(pool), Engine: engine, TTL: cfg.CartTTL}

	checkoutSvc := &checkout.Service{
		Tx:     checkout.PGTx{Pool: pool},
		Locker: lock.Locker{R: redisClient, MaxWait: 2 * time.Second},
		Tasks: tasks.Enqueuer{
			Client:   queueClient,
			Queue:    cfg.QueueName,
			MaxRetry: cfg.QueueMaxRetry,
		},
		Engine:  engine,
		Metrics: commerce,
		Logger:  logger.With().Str("component", "checkout").Logger(),
		LockTTL: cfg.CheckoutLockTTL,
		TaxBps:  cfg.PricingTaxRateBPS,
		Shipping: checkout.ShippingPolicy{
			Flat:          pricing.Money(cfg.ShippingFlat),
			FreeThreshold: pricing.Money(cfg.ShippingFreeThreshold),
		},
	}

	orderSvc := &order.Service{
		Store:  order.NewPGStore(pool),
		Tx:     order.PGTx{Pool: pool},
		Policy: policy,
	}

	publicLimiter, err := ratelimit.NewPublic(redisClient, cfg.RateLimitPublic, "rl:public:")
	if err != nil {
		logger.Fatal().Err(err).Msg("configure public rate limit")
	}

	healthHandler := health.NewHandler(map[string]health.Check{
		"postgres": health.PingCheck(pool),
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	}, 500*time.Millisecond)

	deps := routerDeps{
		Logger:         logger,
		Redis:          redisClient,
		Auth:           auth.Middleware{Verifier: verifier},
		Policy:         policy,
		HTTPMetrics:    httpMetrics,
		Tracing:        cfg.TracingEnabled,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		BodyLimit:      cfg.BodyLimitBytes,
		HSTS:           cfg.AppEnv == "production",
		PublicLimiter:  publicLimiter,
		CheckoutLimit: ratelimit.Config{
			Name:   "checkout",
			Window: cfg.RateLimitCheckoutWindow,
			Max:    cfg.RateLimitCheckoutMax,
		},
		IdempotencyTTL: cfg.IdempotencyTTL,

		Health:   healthHandler,
		Catalog:  catalog.NewHandler(catalog.HandlerConfig{Service: catalogSvc}),
		Discount: &discount.Handler{Svc: discountSvc},
		Cart:     &cart.Handler{Svc: cartSvc},
		Checkout: &checkout.Handler{Svc: checkoutSvc},
		Orders:   &order.Handler{Svc: orderSvc},
		Admin:    &order.AdminHandler{Svc: orderSvc},
	}
	if registry != nil {
		deps.Gatherer = registry
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}

	logger.Info().Msg("shutting down")
	healthHandler.Drain()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opt)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	return client
}
