package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/crmsnjhn/bughaw-api/internal/accounting"
	"github.com/crmsnjhn/bughaw-api/internal/auth"
	"github.com/crmsnjhn/bughaw-api/internal/branch"
	"github.com/crmsnjhn/bughaw-api/internal/catalog"
	"github.com/crmsnjhn/bughaw-api/internal/common"
	"github.com/crmsnjhn/bughaw-api/internal/config"
	"github.com/crmsnjhn/bughaw-api/internal/customer"
	"github.com/crmsnjhn/bughaw-api/internal/db"
	"github.com/crmsnjhn/bughaw-api/internal/discount"
	"github.com/crmsnjhn/bughaw-api/internal/health"
	"github.com/crmsnjhn/bughaw-api/internal/inventory"
	"github.com/crmsnjhn/bughaw-api/internal/obs"
	"github.com/crmsnjhn/bughaw-api/internal/order"
	"github.com/crmsnjhn/bughaw-api/internal/pricing"
	"github.com/crmsnjhn/bughaw-api/internal/ratelimit"
	"github.com/crmsnjhn/bughaw-api/internal/reports"
	"github.com/crmsnjhn/bughaw-api/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "bughaw")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "bughaw-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if envBool("RUN_MIGRATIONS", true) {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "bughaw-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	queries := db.New(pool)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if tracingEnabled {
		if err := redisotel.InstrumentTracing(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	authService, err := auth.NewService(auth.ServiceConfig{
		Queries:        queries,
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := auth.NewHandler(auth.HandlerConfig{Service: authService})
	authMiddleware := auth.Middleware{Service: authService}

	pricingHandler := pricing.NewHandler(pricing.HandlerConfig{
		Service: pricing.NewService(pricing.ServiceConfig{Queries: queries, Logger: logger}),
	})
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{
		Service: catalog.NewService(catalog.ServiceConfig{
			Queries: queries,
			Cache:   catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
			Logger:  logger,
		}),
	})
	inventoryHandler := inventory.NewHandler(inventory.HandlerConfig{
		Service: inventory.NewService(inventory.ServiceConfig{
			Queries:           queries,
			LowStockThreshold: cfg.LowStockThreshold,
		}),
	})
	customerHandler := customer.NewHandler(customer.HandlerConfig{
		Service: customer.NewService(customer.ServiceConfig{Queries: queries}),
	})
	branchHandler := branch.NewHandler(branch.HandlerConfig{
		Service: branch.NewService(branch.ServiceConfig{Queries: queries}),
	})
	discountHandler := discount.NewHandler(discount.HandlerConfig{
		Service: discount.NewService(discount.ServiceConfig{Queries: queries}),
	})
	orderHandler := order.NewHandler(order.HandlerConfig{
		Service: &order.Service{Pool: pool, Q: queries, Logger: logger},
	})
	accountingHandler := accounting.NewHandler(accounting.HandlerConfig{
		Service: accounting.NewService(accounting.ServiceConfig{Queries: queries, Logger: logger}),
	})
	reportsHandler := reports.NewHandler(reports.HandlerConfig{
		Service: reports.NewService(reports.ServiceConfig{
			Queries: queries,
			Redis:   redisClient,
			TTL:     cfg.ReportCacheTTL,
			Logger:  logger,
		}),
	})
	userHandler := user.NewHandler(user.HandlerConfig{
		Service: user.NewService(user.ServiceConfig{Queries: queries, Logger: logger}),
	})

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	loginLimiter := ratelimit.Middleware{
		Limiter: ratelimit.NewLimiter(redisClient, "rl:login:"),
		Key:     ratelimit.ByClientIP,
		Max:     cfg.LoginRateLimit,
		Window:  cfg.LoginRateWindow,
		Logger:  logger,
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Total-Count"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{
		Checker:      health.Probes{Pool: pool, Redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api", func(api chi.Router) {
		api.With(loginLimiter.Handle).Post("/login", authHandler.Login)

		api.Group(func(protected chi.Router) {
			protected.Use(authMiddleware.RequireAuth)

			protected.Post("/pricing/calculate", pricingHandler.Calculate)

			protected.Get("/products", catalogHandler.List)
			protected.Post("/products", catalogHandler.Create)
			protected.Delete("/products/{id}", catalogHandler.Delete)
			protected.Put("/products/{id}/toggle-status", catalogHandler.ToggleStatus)

			protected.Get("/inventory", inventoryHandler.List)
			protected.Put("/inventory/{productId}", inventoryHandler.UpdateStock)

			protected.Get("/customers", customerHandler.List)
			protected.Post("/customers", customerHandler.Create)
			protected.Get("/customers/{id}/check-pending", customerHandler.CheckPending)
			protected.Get("/price-levels", customerHandler.PriceLevels)
			protected.Get("/agents", userHandler.Agents)

			protected.Get("/branches", branchHandler.List)
			protected.With(auth.RequireRole(user.RoleAdmin, user.RoleSubAdmin)).Post("/branches", branchHandler.Create)

			protected.Get("/discounts", discountHandler.List)
			protected.Group(func(admin chi.Router) {
				admin.Use(auth.RequireRole(user.RoleAdmin, user.RoleSubAdmin))
				admin.Post("/discounts/advanced", discountHandler.CreateAdvanced)
				admin.Put("/discounts/{id}/active", discountHandler.SetActive)
			})

			protected.With(idem.Middleware).Post("/orders", orderHandler.Create)
			protected.Get("/orders", orderHandler.List)
			protected.Get("/order-history", orderHandler.History)
			protected.Get("/orders/{id}", orderHandler.Get)
			protected.Put("/orders/{id}/status", orderHandler.UpdateStatus)
			protected.Put("/orders/{id}/invoice", orderHandler.UpdateInvoice)

			protected.Group(func(books chi.Router) {
				books.Use(auth.RequireRole(user.RoleAdmin, user.RoleSubAdmin))
				books.Get("/accounting/unpaid", accountingHandler.ListUnpaid)
				books.Post("/accounting/mark-paid/{orderId}", accountingHandler.MarkPaid)

				books.Get("/sales/summary", reportsHandler.Summary)
				books.Get("/reports/inactive-customers", reportsHandler.InactiveCustomers)
				books.Get("/reports/sales-comparison", reportsHandler.SalesComparison)
			})

			protected.Route("/users", func(admin chi.Router) {
				admin.Use(auth.RequireRole(user.RoleAdmin))
				admin.Get("/", userHandler.List)
				admin.Post("/register", userHandler.Register)
				admin.Put("/{id}", userHandler.Update)
				admin.Delete("/{id}", userHandler.Delete)
			})
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}
