package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/apidelta/pkg/observability"
	"github.com/platinummonkey/apidelta/pkg/report"
)

// ReportCache stores finished comparison reports by Key
type ReportCache interface {
	Get(ctx context.Context, key string) (*report.Report, error)
	Set(ctx context.Context, key string, r *report.Report) error
	Purge(ctx context.Context) error
	Stats(ctx context.Context) (*Stats, error)
}

// MemoryCache implements ReportCache with an expirable in-memory LRU
type MemoryCache struct {
	cache   *lru.LRU[string, *report.Report]
	counter counter
}

// NewMemoryCache creates a memory-only cache
func NewMemoryCache(config *Config) *MemoryCache {
	if config == nil {
		config = DefaultConfig()
	}
	size := config.L1Size
	if size < 1 {
		size = 1
	}
	return &MemoryCache{
		cache: lru.NewLRU[string, *report.Report](size, nil, config.L1TTL),
	}
}

// Get retrieves a cached report
func (c *MemoryCache) Get(ctx context.Context, key string) (*report.Report, error) {
	if key == "" {
		return nil, ErrInvalidCacheKey
	}
	r, ok := c.cache.Get(key)
	if !ok {
		c.counter.misses.Add(1)
		return nil, ErrCacheMiss
	}
	c.counter.hits.Add(1)
	return r, nil
}

// Set stores a report
func (c *MemoryCache) Set(ctx context.Context, key string, r *report.Report) error {
	if key == "" {
		return ErrInvalidCacheKey
	}
	if r == nil {
		return fmt.Errorf("report cannot be nil")
	}
	c.cache.Add(key, r)
	return nil
}

// Purge drops every entry
func (c *MemoryCache) Purge(ctx context.Context) error {
	c.cache.Purge()
	return nil
}

// Stats returns cache statistics
func (c *MemoryCache) Stats(ctx context.Context) (*Stats, error) {
	return c.counter.stats(int64(c.cache.Len())), nil
}

// Remote is a shared second-level report store, such as the Redis client of the
// postgres storage backend. A miss returns nil, nil.
type Remote interface {
	GetReport(ctx context.Context, key string) (*report.Report, error)
	SetReport(ctx context.Context, key string, r *report.Report, ttl time.Duration) error
	PurgeReports(ctx context.Context) error
}

// TieredCache checks memory first, then the remote tier. Remote hits are promoted to
// memory. Remote failures are logged and treated as misses.
type TieredCache struct {
	l1      *MemoryCache
	l2      Remote
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *observability.Logger
	counter counter
}

// NewTieredCache creates a two-level cache. l2 may be nil, in which case only memory
// is used.
func NewTieredCache(config *Config, l2 Remote, metrics *observability.Metrics, logger *observability.Logger) *TieredCache {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &TieredCache{
		l1:      NewMemoryCache(config),
		l2:      l2,
		ttl:     config.L2TTL,
		metrics: metrics,
		logger:  logger,
	}
}

// Get implements ReportCache
func (c *TieredCache) Get(ctx context.Context, key string) (*report.Report, error) {
	if key == "" {
		return nil, ErrInvalidCacheKey
	}

	if r, err := c.l1.Get(ctx, key); err == nil {
		c.record("memory", true)
		c.counter.hits.Add(1)
		return r, nil
	}
	c.record("memory", false)

	if c.l2 == nil {
		c.counter.misses.Add(1)
		return nil, ErrCacheMiss
	}

	r, err := c.l2.GetReport(ctx, key)
	if err != nil {
		c.logger.WithError(err).Warn("Remote cache lookup failed")
	}
	if err != nil || r == nil {
		c.record("redis", false)
		c.counter.misses.Add(1)
		return nil, ErrCacheMiss
	}

	c.record("redis", true)
	c.counter.hits.Add(1)
	c.l1.Set(ctx, key, r)
	return r, nil
}

// Set implements ReportCache. The remote tier is written on a best effort basis.
func (c *TieredCache) Set(ctx context.Context, key string, r *report.Report) error {
	if err := c.l1.Set(ctx, key, r); err != nil {
		return err
	}
	if c.l2 != nil {
		if err := c.l2.SetReport(ctx, key, r, c.ttl); err != nil {
			c.logger.WithError(err).Warn("Remote cache write failed")
		}
	}
	return nil
}

// Purge implements ReportCache
func (c *TieredCache) Purge(ctx context.Context) error {
	c.l1.Purge(ctx)
	if c.l2 != nil {
		return c.l2.PurgeReports(ctx)
	}
	return nil
}

// Stats implements ReportCache. Hits count lookups answered by either tier.
func (c *TieredCache) Stats(ctx context.Context) (*Stats, error) {
	return c.counter.stats(int64(c.l1.cache.Len())), nil
}

func (c *TieredCache) record(tier string, hit bool) {
	if c.metrics == nil {
		return
	}
	if hit {
		c.metrics.CacheHitsTotal.WithLabelValues(tier).Inc()
	} else {
		c.metrics.CacheMissesTotal.WithLabelValues(tier).Inc()
	}
}

// counter tracks hits and misses
type counter struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (c *counter) stats(items int64) *Stats {
	s := &Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), ItemCount: items}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
