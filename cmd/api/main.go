package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/checkout-integrity/internal/checkout"
	"github.com/noah-isme/checkout-integrity/internal/common"
	"github.com/noah-isme/checkout-integrity/internal/config"
	"github.com/noah-isme/checkout-integrity/internal/confirmation"
	"github.com/noah-isme/checkout-integrity/internal/events"
	"github.com/noah-isme/checkout-integrity/internal/health"
	"github.com/noah-isme/checkout-integrity/internal/integrity"
	"github.com/noah-isme/checkout-integrity/internal/obs"
	"github.com/noah-isme/checkout-integrity/internal/orders"
	"github.com/noah-isme/checkout-integrity/internal/paymentlink"
	"github.com/noah-isme/checkout-integrity/internal/processor"
	"github.com/noah-isme/checkout-integrity/internal/queue"
	"github.com/noah-isme/checkout-integrity/internal/ratelimit"
	"github.com/noah-isme/checkout-integrity/internal/resilience"
	"github.com/noah-isme/checkout-integrity/internal/security"
	"github.com/noah-isme/checkout-integrity/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()
	logger.Info().Interface("config", cfg.Redacted()).Msg("configuration loaded")

	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNS, nil)

	tracingEnabled := cfg.Obs.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "checkout-integrity",
			Endpoint:      cfg.Obs.OTLPEndpoint,
			Exporter:      cfg.Obs.TracingExporter,
			SamplingRatio: cfg.Obs.SamplingRatio,
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

	redisClient := connectRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	}
	pool := connectPostgres(ctx, cfg, logger)
	if pool != nil {
		defer pool.Close()
	}

	var orderSource orders.Source = orders.NewMemorySource(orders.DemoOrders()...)
	if pool != nil {
		orderSource = orders.PostgresSource{DB: pool}
	}
	if redisClient != nil && cfg.OrderCacheTTL > 0 {
		orderSource = orders.CachedSource{Next: orderSource, Client: redisClient, TTL: cfg.OrderCacheTTL}
	}

	assembler := &checkout.Assembler{
		Orders:          orderSource,
		Signer:          integrity.NewSigner(cfg.IntegrityKey),
		PublicKey:       cfg.PublicKey,
		ReferencePrefix: cfg.ReferencePrefix,
		LookupTimeout:   cfg.OrderLookupTimeout,
	}
	checkoutHandler := &checkout.Handler{Assembler: assembler, Logger: logger}

	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Target:       "processor",
		MinRequests:  cfg.BreakerMinRequests,
		FailureRatio: cfg.BreakerFailureRate,
		OpenFor:      cfg.BreakerOpenFor,
		Logger:       logger,
	})
	processorClient := processor.NewClient(cfg.ProcessorBaseURL, cfg.PrivateKey, cfg.ProcessorTimeout, breaker)

	confirmationHandler := &confirmation.Handler{
		Resolver: &confirmation.Resolver{Processor: processorClient},
		Logger:   logger,
	}

	bus := &events.Bus{Notifiers: []events.Notifier{events.LogNotifier{Logger: logger}}}
	if cfg.QueueEnabled && redisClient != nil {
		taskClient := asynq.NewClientFromRedisClient(redisClient)
		bus.Notifiers = append(bus.Notifiers, queue.Enqueuer{
			Client:   taskClient,
			Queue:    queue.DefaultQueue,
			MaxRetry: cfg.QueueMaxRetry,
		})
	}

	webhookHandler := webhook.Handler{
		Verifier:  webhook.NewVerifier(cfg.WebhookSecret),
		Events:    bus,
		ReplayTTL: cfg.WebhookReplayTTL,
		MaxBody:   cfg.WebhookMaxBody,
		Logger:    logger,
	}
	if redisClient != nil {
		webhookHandler.Replay = webhook.RedisReplayGuard{Client: redisClient}
	}

	var limiter ratelimit.Limiter = ratelimit.NewMemoryFixedWindow()
	if redisClient != nil {
		limiter = ratelimit.SlidingWindow{Client: redisClient}
	}
	rateLimited := func(scope string) func(http.Handler) http.Handler {
		return ratelimit.Handler{
			Limiter: limiter,
			Config:  ratelimit.Config{Key: ratelimit.ByClientIP(scope), Window: cfg.RateLimitWindow, Max: cfg.RateLimitMax},
			OnError: func(err error) { logger.Warn().Err(err).Str("scope", scope).Msg("rate limiter unavailable") },
		}.Middleware
	}

	var httpMetrics *obs.HTTPMetrics
	if cfg.Obs.MetricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNS, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key", webhook.SignatureHeader},
		MaxAge:         300,
	}))
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.EnableHSTS}.Middleware)

	if cfg.Obs.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.Obs.PprofEnabled {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.Obs.PprofUser, cfg.Obs.PprofPass))
	}

	healthHandler := health.Handler{Probes: readinessProbes(pool, redisClient, cfg.HealthTimeout)}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Get("/config", checkout.PublicConfig{PublicKey: cfg.PublicKey}.ServeHTTP)
	r.With(rateLimited("order")).Get("/api/order", checkoutHandler.Order)
	r.With(rateLimited("confirm")).Get("/confirmacion", confirmationHandler.Confirm)
	r.Post("/webhook", webhookHandler.Handle)

	if cfg.PaymentLinksEnabled() {
		linkHandler := paymentlink.NewHandler(processorClient, cfg.CurrencyCode, logger)
		r.Group(func(g chi.Router) {
			g.Use(rateLimited("payment-links"))
			g.Use(security.BodyLimit{Max: 64 << 10}.Middleware)
			if redisClient != nil {
				g.Use(common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}.Middleware)
			}
			g.Post("/api/payment-links", linkHandler.Create)
			g.Post("/api/create-payment-link", linkHandler.Create)
		})
	} else {
		logger.Info().Msg("PRIVATE_KEY not set; payment links disabled")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
		return
	case <-sigCtx.Done():
	}

	health.SetReady(false)
	logger.Info().Msg("shutdown signal received")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

func connectRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		logger.Warn().Msg("REDIS_URL not set; webhook replay guard and order cache disabled")
		return nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if cfg.Obs.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

func connectPostgres(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	if cfg.DatabaseURL == "" {
		logger.Info().Msg("DATABASE_URL not set; serving built-in demo orders")
		return nil
	}
	if cfg.RunMigrations {
		if err := orders.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migrate database")
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
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "checkout-integrity"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func readinessProbes(pool *pgxpool.Pool, client *redis.Client, timeout time.Duration) []health.Probe {
	var probes []health.Probe
	if pool != nil {
		probes = append(probes, health.Probe{Name: "postgres", Timeout: timeout, Check: pool.Ping})
	}
	if client != nil {
		probes = append(probes, health.Probe{Name: "redis", Timeout: timeout, Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
	}
	return probes
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
