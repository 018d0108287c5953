// Package app assembles the skill search service from configuration. Both
// the HTTP server and the admin CLI build their components through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/audit"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/auth/admin"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/chart"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/feedback"
	gwhandler "github.com/Adithya-Monish-Kumar-K/job-keywords/internal/gateway/handler"
	gwmw "github.com/Adithya-Monish-Kumar-K/job-keywords/internal/gateway/middleware"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/gateway/router"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/jobsource"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/nlp"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/skills"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/redis"
)

type App struct {
	Config    *config.Config
	DB        *database.Client
	Redis     *pkgredis.Client
	Cache     cache.Store
	Audit     *audit.Log
	Feedback  *feedback.Store
	Artifacts artifact.Store
	Pipeline  *pipeline.Pipeline
	Metrics   *metrics.Metrics
	Collector *analytics.Collector

	limiter  *ratelimit.Limiter
	producer *kafka.Producer
	started  bool
	logger   *slog.Logger
}

type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	source     jobsource.Source
}

// WithRegisterer registers metrics somewhere other than the default
// registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithSource replaces the configured job source.
func WithSource(src jobsource.Source) Option {
	return func(o *options) { o.source = src }
}

// New opens storage and wires every component. The caller must Close the
// returned App. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		Config:  cfg,
		Metrics: metrics.New(o.registerer),
		logger:  slog.Default().With("component", "app"),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.DB, err = database.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	a.logger.Info("storage opened", "driver", a.DB.Dialect())

	if a.Audit, err = audit.NewLog(ctx, a.DB); err != nil {
		return nil, err
	}
	if a.Feedback, err = feedback.NewStore(ctx, a.DB); err != nil {
		return nil, err
	}
	if a.Cache, err = a.openCache(ctx); err != nil {
		return nil, err
	}
	if a.Artifacts, err = artifact.New(ctx, cfg.Artifacts); err != nil {
		return nil, fmt.Errorf("opening artifact store: %w", err)
	}

	source := o.source
	if source == nil {
		source = jobsource.NewSerpAPI(cfg.Search, jobsource.WithMetrics(a.Metrics))
	}

	deps := pipeline.Deps{
		Cache:      a.Cache,
		Audit:      a.Audit,
		Source:     source,
		Aggregator: skills.NewAggregator(nlp.NewTokenizer(slog.Default())),
		Renderer:   chart.NewBarRenderer(),
		Artifacts:  a.Artifacts,
		Metrics:    a.Metrics,
	}
	if cfg.Kafka.Enabled {
		a.producer = kafka.NewProducer(cfg.Kafka)
		a.Collector = analytics.NewCollector(a.producer, cfg.Kafka.BufferSize)
		deps.Tracker = a.Collector
		a.logger.Info("request events enabled", "topic", cfg.Kafka.EventsTopic)
	}
	a.Pipeline = pipeline.New(pipeline.Config{
		PageOffsets:    cfg.Search.PageOffsets,
		ComputeTimeout: cfg.Search.Timeout,
	}, deps)

	a.limiter = ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	return a, nil
}

func (a *App) openCache(ctx context.Context) (cache.Store, error) {
	window := a.Config.Cache.FreshnessWindow
	switch a.Config.Cache.Backend {
	case config.CacheBackendRedis:
		client, err := pkgredis.NewClient(a.Config.Redis)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		a.Redis = client
		a.logger.Info("cache backend: redis", "addr", a.Config.Redis.Addr, "freshness", window)
		return cache.NewRedisStore(client, a.Config.Redis.KeyPrefix, window, cache.WithRedisMetrics(a.Metrics)), nil
	default:
		a.logger.Info("cache backend: sql", "freshness", window)
		return cache.NewSQLStore(ctx, a.DB, window, cache.WithSQLMetrics(a.Metrics))
	}
}

// Start launches background work. It returns immediately.
func (a *App) Start(ctx context.Context) {
	if a.Collector != nil && !a.started {
		a.Collector.Start(ctx)
		a.started = true
	}
}

// Handler builds the HTTP surface.
func (a *App) Handler() http.Handler {
	var staticDir string
	if a.Config.Artifacts.Backend == config.ArtifactBackendLocal {
		staticDir = a.Config.Artifacts.StaticDir
	}
	validator := admin.NewValidator(a.Config.Admin.AuthToken)
	if !validator.Enabled() {
		a.logger.Warn("admin token not configured, administrative endpoints are disabled")
	}
	return router.New(router.Options{
		Handler:   gwhandler.New(a.Pipeline, a.Audit, a.Cache, a.Feedback),
		Admin:     validator,
		Limiter:   a.limiter,
		Health:    a.HealthChecker(),
		Metrics:   a.Metrics,
		CORS:      gwmw.NewCORSConfig(a.Config.CORS),
		StaticDir: staticDir,
		Timeout:   a.Config.Server.RequestTimeout,
	})
}

// HealthChecker registers a check per backing dependency.
func (a *App) HealthChecker() *health.Checker {
	checker := health.NewChecker()
	checker.Register("database", health.PingCheck(a.DB.Ping, health.StatusDown))
	if a.Redis != nil {
		checker.Register("redis", health.PingCheck(a.Redis.Ping, health.StatusDown))
	}
	if a.Config.Artifacts.Backend == config.ArtifactBackendLocal {
		dir := a.Config.Artifacts.StaticDir
		checker.Register("artifacts", health.PingCheck(func(context.Context) error {
			_, err := os.Stat(dir)
			return err
		}, health.StatusDown))
	}
	return checker
}

// Close releases everything New opened, in reverse order.
func (a *App) Close() error {
	var errs []error
	if a.limiter != nil {
		a.limiter.Close()
	}
	if a.Collector != nil && a.started {
		a.Collector.Close()
	}
	if a.producer != nil {
		errs = append(errs, a.producer.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
