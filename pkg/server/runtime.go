package server

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/platinummonkey/apidelta/pkg/cache"
	"github.com/platinummonkey/apidelta/pkg/checker"
	"github.com/platinummonkey/apidelta/pkg/comparator"
	"github.com/platinummonkey/apidelta/pkg/config"
	"github.com/platinummonkey/apidelta/pkg/descriptor"
	"github.com/platinummonkey/apidelta/pkg/middleware"
	"github.com/platinummonkey/apidelta/pkg/observability"
	"github.com/platinummonkey/apidelta/pkg/storage"
	"github.com/platinummonkey/apidelta/pkg/storage/postgres"
	"github.com/platinummonkey/apidelta/pkg/webhooks"
)

type closer struct {
	name string
	fn   func(context.Context) error
}

// Runtime holds everything a long running process needs to compare baselines and
// notify about them. Webhooks and Limiter are nil when not configured.
type Runtime struct {
	Config      *config.Config
	Logger      *observability.Logger
	Registry    *prometheus.Registry
	Metrics     *observability.Metrics
	OTel        *observability.OTelProviders
	OTelMetrics *observability.OTelMetrics
	Store       storage.Store
	Cache       cache.ReportCache
	Checker     *checker.Checker
	Health      *observability.HealthChecker
	Webhooks    *webhooks.Dispatcher
	Limiter     middleware.Limiter

	redis   *postgres.RedisClient
	closers []closer
}

// NewRuntime wires the runtime described by cfg. Close releases it.
func NewRuntime(ctx context.Context, cfg *config.Config, logger *observability.Logger, version string) (*Runtime, error) {
	rt := &Runtime{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		Health:   observability.NewHealthChecker(version),
	}
	if err := rt.init(ctx, version); err != nil {
		_ = rt.Close(context.Background())
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) init(ctx context.Context, version string) error {
	cfg := rt.Config

	if cfg.Observability.MetricsEnabled {
		rt.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		rt.Metrics = observability.NewMetrics(rt.Registry)
	}

	otelCfg := cfg.Observability.OTel()
	if otelCfg.ServiceVersion == "" {
		otelCfg.ServiceVersion = version
	}
	providers, err := observability.InitOTel(ctx, otelCfg, rt.Logger)
	if err != nil {
		return err
	}
	rt.OTel = providers
	rt.onClose("otel", providers.Shutdown)
	if providers != nil {
		if rt.OTelMetrics, err = observability.NewOTelMetrics(); err != nil {
			return err
		}
	}

	raw, err := storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize %s storage: %w", cfg.Storage.Type, err)
	}
	if c, ok := raw.(io.Closer); ok {
		rt.onClose("storage", func(context.Context) error { return c.Close() })
	}
	rt.Store = storage.Instrument(raw, rt.Metrics, cfg.Storage.Type)
	rt.Health.Register("storage", rt.Store.HealthCheck, true)
	rt.Logger.WithField("backend", cfg.Storage.Type).Info("Storage initialized")

	if pg, ok := raw.(*postgres.PostgresStorage); ok && pg.Redis() != nil {
		rt.redis = pg.Redis()
	} else if cfg.Storage.RedisURL != "" {
		client, err := postgres.NewRedisClient(cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to initialize redis: %w", err)
		}
		rt.onClose("redis", func(context.Context) error { return client.Close() })
		rt.redis = client
	}
	if rt.redis != nil {
		rt.Health.Register("redis", rt.redis.Ping, false)
	}

	if cfg.Storage.CacheEnabled {
		rt.Cache = rt.reportCache()
	}

	if cfg.Webhooks.Enabled() {
		whCfg, err := cfg.Webhooks.Dispatcher()
		if err != nil {
			return err
		}
		if rt.Webhooks, err = webhooks.NewDispatcher(whCfg, rt.Logger, rt.Metrics); err != nil {
			return fmt.Errorf("failed to initialize webhooks: %w", err)
		}
		rt.onClose("webhooks", rt.Webhooks.Close)
		rt.Logger.WithField("endpoints", len(whCfg.Endpoints)).Info("Webhooks enabled")
	}

	if cfg.Server.RateLimitRequests > 0 {
		rt.Limiter = rt.rateLimiter(ctx)
	}

	loader, err := descriptor.NewLoader(descriptor.DefaultCacheSize)
	if err != nil {
		return err
	}
	cmp := comparator.New(
		comparator.WithLogger(rt.Logger),
		comparator.WithMetrics(rt.Metrics),
		comparator.WithTracer(observability.Tracer()),
		comparator.WithConcurrency(cfg.Comparison.Concurrency),
	)
	opts := []checker.Option{
		checker.WithStore(rt.Store),
		checker.WithLoader(loader),
		checker.WithMetrics(rt.Metrics),
		checker.WithOTelMetrics(rt.OTelMetrics),
		checker.WithLogger(rt.Logger),
	}
	if rt.Cache != nil {
		opts = append(opts, checker.WithCache(rt.Cache))
	}
	if rt.Webhooks != nil {
		opts = append(opts, checker.WithNotifier(rt.Webhooks))
	}
	rt.Checker, err = checker.New(cmp, opts...)
	return err
}

// reportCache builds the memory tier and, when Redis is available, the shared tier
func (rt *Runtime) reportCache() cache.ReportCache {
	cfg := rt.Config.Storage
	cc := &cache.Config{
		L1Size: cfg.L1CacheSize,
		L1TTL:  cfg.TTL("memory", cache.DefaultConfig().L1TTL),
		L2TTL:  cfg.TTL("report", 0),
	}
	var remote cache.Remote
	if rt.redis != nil {
		remote = rt.redis
	}
	return cache.NewTieredCache(cc, remote, rt.Metrics, rt.Logger)
}

// rateLimiter shares limits across replicas through Redis when it is available and
// falls back to per process buckets
func (rt *Runtime) rateLimiter(ctx context.Context) middleware.Limiter {
	cfg := rt.Config.Server
	rl := middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimitRequests,
		WindowDuration:    cfg.RateLimitWindow,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rt.redis != nil {
		rt.Logger.WithField("backend", "redis").Info("Rate limiting enabled")
		return middleware.NewDistributedRateLimiter(rt.redis.Client(), rl, "")
	}

	limiter := middleware.NewRateLimiter(rl)
	cleanupCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	limiter.StartCleanup(cleanupCtx)
	rt.onClose("ratelimit", func(context.Context) error {
		cancel()
		return nil
	})
	rt.Logger.WithField("backend", "memory").Info("Rate limiting enabled")
	return limiter
}

func (rt *Runtime) onClose(name string, fn func(context.Context) error) {
	rt.closers = append(rt.closers, closer{name: name, fn: fn})
}

// RegisterShutdown hands every release hook to sm
func (rt *Runtime) RegisterShutdown(sm *observability.ShutdownManager) {
	for _, c := range rt.closers {
		sm.Register(c.name, c.fn)
	}
	rt.closers = nil
}

// Close releases the runtime in reverse order of construction
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", rt.closers[i].name, err))
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
