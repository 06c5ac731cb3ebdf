package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/apidelta/pkg/descriptor"
)

// Baseline documents are cached as the canonical YAML written to the database, keyed by
// name. Writes and deletes invalidate the entry.

func baselineKey(name string) string {
	return baselinePrefix + name
}

// GetBaseline returns the cached document for name. A miss returns nil, nil.
func (c *RedisClient) GetBaseline(ctx context.Context, name string) (*descriptor.BaselineDocument, error) {
	data, err := c.client.Get(ctx, baselineKey(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	doc, err := descriptor.Parse(data)
	if err != nil {
		c.client.Del(ctx, baselineKey(name))
		return nil, err
	}
	return doc, nil
}

// SetBaseline caches the encoded document under name
func (c *RedisClient) SetBaseline(ctx context.Context, name string, encoded []byte) error {
	ttl := c.config.TTL("baseline", 10*time.Minute)
	return c.client.Set(ctx, baselineKey(name), encoded, ttl).Err()
}

// InvalidateBaseline removes a cached document
func (c *RedisClient) InvalidateBaseline(ctx context.Context, name string) error {
	return c.client.Del(ctx, baselineKey(name)).Err()
}
