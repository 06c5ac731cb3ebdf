package postgres

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/apidelta/pkg/report"
	"github.com/platinummonkey/apidelta/pkg/storage"
)

const (
	reportPrefix   = "apidelta:report:"
	baselinePrefix = "apidelta:baseline:"
)

// RedisClient caches reports and baseline documents
type RedisClient struct {
	client *redis.Client
	config storage.Config
}

// NewRedisClient creates a new Redis client and checks that the server answers
func NewRedisClient(config storage.Config) (*RedisClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if config.RedisPassword != "" {
		opts.Password = config.RedisPassword
	}
	if config.RedisDB > 0 {
		opts.DB = config.RedisDB
	}
	if config.RedisMaxRetries > 0 {
		opts.MaxRetries = config.RedisMaxRetries
	}
	if config.RedisPoolSize > 0 {
		opts.PoolSize = config.RedisPoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{
		client: client,
		config: config,
	}, nil
}

// ReportKey returns the redis key holding a report under key
func ReportKey(key string) string {
	return reportPrefix + key
}

// GetReport returns the cached report stored under key. A miss returns nil, nil.
func (c *RedisClient) GetReport(ctx context.Context, key string) (*report.Report, error) {
	data, err := c.client.Get(ctx, ReportKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	r, err := report.Decode(data)
	if err != nil {
		c.client.Del(ctx, ReportKey(key))
		return nil, err
	}
	return r, nil
}

// SetReport caches r under key. A zero ttl uses the configured report TTL.
func (c *RedisClient) SetReport(ctx context.Context, key string, r *report.Report, ttl time.Duration) error {
	var buf bytes.Buffer
	if err := report.RenderJSON(&buf, r); err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if ttl <= 0 {
		ttl = c.config.TTL("report", 24*time.Hour)
	}
	return c.client.Set(ctx, ReportKey(key), buf.Bytes(), ttl).Err()
}

// InvalidatePatterns removes keys matching patterns
func (c *RedisClient) InvalidatePatterns(ctx context.Context, patterns ...string) error {
	for _, pattern := range patterns {
		iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
				return fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("scan failed for pattern %s: %w", pattern, err)
		}
	}
	return nil
}

// PurgeReports drops every cached report
func (c *RedisClient) PurgeReports(ctx context.Context) error {
	return c.InvalidatePatterns(ctx, reportPrefix+"*")
}

// Ping checks Redis connectivity
func (c *RedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// PoolStats returns connection pool statistics
func (c *RedisClient) PoolStats() *redis.PoolStats {
	return c.client.PoolStats()
}

// Client exposes the underlying client for other Redis users such as rate limiting
func (c *RedisClient) Client() *redis.Client {
	return c.client
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	return c.client.Close()
}
