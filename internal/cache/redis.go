package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCache is the optional shared-cluster ReplicationCache backend,
// selected via config.CacheRedis when monitor tasks run across more
// than one process and need a watermark/rate/lifecycle view they agree on.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an already-configured *redis.Client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Ping verifies connectivity at startup (app.New's cache wiring uses this).
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) GetString(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (c *RedisCache) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) GetTime(ctx context.Context, key string) (time.Time, bool, error) {
	value, ok, err := c.GetString(ctx, key)
	if err != nil || !ok {
		return time.Time{}, ok, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false, err
	}
	return parsed, true, nil
}

func (c *RedisCache) SetTime(ctx context.Context, key string, value time.Time, ttl time.Duration) error {
	return c.SetString(ctx, key, value.Format(time.RFC3339Nano), ttl)
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
