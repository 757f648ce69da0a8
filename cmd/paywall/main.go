// Command paywall serves TheRunReport's subscription-gating endpoints: the
// Paddle webhook that keeps the paddle_subscriptions table current, and the
// pre-authentication lookup/gate endpoints the sign-in flow calls.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/therunreport/paywall/internal/config"
	"github.com/therunreport/paywall/internal/httputil"
	"github.com/therunreport/paywall/pkg/gate"
	"github.com/therunreport/paywall/pkg/identity"
	"github.com/therunreport/paywall/pkg/paddle"
	"github.com/therunreport/paywall/pkg/paywall"
	prommetrics "github.com/therunreport/paywall/pkg/paywall/metrics/prometheus"
	"github.com/therunreport/paywall/storage/postgres"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := prommetrics.NewMetrics(reg, "paywall")

	var (
		store  paywall.SubscriptionStore
		pinger interface {
			Ping(ctx context.Context) error
		}
	)
	if cfg.DatabaseURL != "" {
		pgConfig := postgres.DefaultConfig()
		pgConfig.ConnectionString = cfg.DatabaseURL
		pg, err := postgres.New(ctx, pgConfig)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to ensure schema")
		}
		store = pg
		pinger = pg
	} else {
		logger.Warn().Msg("DATABASE_URL not set, endpoints will degrade to safe responses")
	}

	directory := newDirectory(cfg, metrics, logger)

	webhook := paddle.NewWebhookHandler(paddle.WebhookConfig{
		Store:          store,
		Secret:         cfg.PaddleWebhookSecret,
		Directory:      directory,
		ResolveByEmail: cfg.ResolveByEmail,
		Metrics:        metrics,
		Logger:         logger.With().Str("component", "paddle-webhook").Logger(),
	})
	if cfg.PaddleWebhookSecret == "" {
		logger.Warn().Msg("PADDLE_WEBHOOK_SECRET not set, webhook deliveries will be rejected")
	}

	gates := gate.NewHandler(gate.Config{
		Store:   store,
		Users:   directory,
		Metrics: metrics,
		Logger:  logger.With().Str("component", "gate").Logger(),
	})

	limiter := httputil.NewRateLimiter(cfg.RateLimit, time.Minute)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Handle("/paddle-webhook", webhook)
	r.Handle("/subscription-lookup", limiter.Middleware(http.HandlerFunc(gates.Lookup)))
	r.Handle("/password-reset-gate", limiter.Middleware(http.HandlerFunc(gates.ResetGate)))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			if err := pinger.Ping(r.Context()); err != nil {
				http.Error(w, "database unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.Addr).Msg("paywall service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("service exited with error")
	}
}

// newDirectory wires the auth provider client, with an optional Redis cache
// in front. Returns nil when the provider is unconfigured; handlers then
// degrade to their config-missing responses.
func newDirectory(cfg *config.Config, metrics paywall.Metrics, logger zerolog.Logger) identity.Directory {
	client, err := identity.NewClient(identity.Config{
		BaseURL:        cfg.SupabaseURL,
		ServiceRoleKey: cfg.ServiceRoleKey,
		PageSize:       cfg.IdentityPageSize,
		Metrics:        metrics,
	})
	if err != nil {
		logger.Warn().Msg("auth provider not configured, lookup and gate will return safe denials")
		return nil
	}

	if cfg.RedisAddr == "" {
		return client
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	cached, err := identity.NewCachedDirectory(client, rdb, identity.CacheConfig{
		TTL:    cfg.CacheTTL,
		Logger: logger.With().Str("component", "identity-cache").Logger(),
	})
	if err != nil {
		logger.Warn().Err(err).Msg("identity cache unavailable, continuing without it")
		return client
	}
	logger.Info().Str("addr", cfg.RedisAddr).Msg("identity cache enabled")
	return cached
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = os.Stderr
	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	if cfg.LogFormat == "console" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: out})
	}
	return logger
}
