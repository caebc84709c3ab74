package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "newswatch:dedup:"

// RedisCache stores URL fingerprint -> content fingerprint entries with a TTL.
// Entries expiring is the mechanism that lets changed content through for a
// refresh.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache constructs a RedisCache around an existing client.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Seen implements core.DedupCache.
func (c *RedisCache) Seen(ctx context.Context, urlFP string) (string, bool, error) {
	val, err := c.client.Get(ctx, keyPrefix+urlFP).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

// Remember implements core.DedupCache.
func (c *RedisCache) Remember(ctx context.Context, urlFP, contentFP string) error {
	if err := c.client.Set(ctx, keyPrefix+urlFP, contentFP, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
