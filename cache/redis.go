package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a RedisCache.
type RedisConfig struct {
	// Client is an existing client. When nil one is created from Addr,
	// Password and DB.
	Client redis.UniversalClient

	Addr     string
	Password string
	DB       int

	// KeyPrefix is prepended to every key.
	KeyPrefix string
}

// RedisCache is a store shared by every process pointing at the same Redis.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	owned  bool
}

// NewRedisCache creates a Redis-backed store and verifies the connection.
func NewRedisCache(ctx context.Context, config RedisConfig) (*RedisCache, error) {
	c := &RedisCache{
		client: config.Client,
		prefix: config.KeyPrefix,
	}

	if c.client == nil {
		if config.Addr == "" {
			return nil, errors.New("cache: redis address is required")
		}
		c.client = redis.NewClient(&redis.Options{
			Addr:     config.Addr,
			Password: config.Password,
			DB:       config.DB,
		})
		c.owned = true
	}

	if err := c.client.Ping(ctx).Err(); err != nil {
		if c.owned {
			_ = c.client.Close()
		}
		return nil, fmt.Errorf("cache: failed to connect to redis: %w", err)
	}

	return c, nil
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

// Get retrieves a value. Transport errors are reported as misses.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, ok, _ := c.GetE(ctx, key)
	return val, ok
}

// GetE retrieves a value, separating a missing key from a failed read.
func (c *RedisCache) GetE(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("cache: redis get %q: %w", key, err)
	}
	return val, true, nil
}

// Set stores a value. A zero TTL keeps it until deleted.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if ttl < 0 {
		return nil
	}
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set %q: %w", key, err)
	}
	return nil
}

// SetNX stores value only when key is absent.
func (c *RedisCache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	ok, err := c.client.SetNX(ctx, c.key(key), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache: redis setnx %q: %w", key, err)
	}
	return ok, nil
}

// Delete removes a value. Idempotent - no error on miss.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("cache: redis del %q: %w", key, err)
	}
	return nil
}

// Ping checks the connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client if this store created it.
func (c *RedisCache) Close() error {
	if !c.owned {
		return nil
	}
	return c.client.Close()
}

var (
	_ Cache  = (*RedisCache)(nil)
	_ Reader = (*RedisCache)(nil)
	_ Locker = (*RedisCache)(nil)
	_ Pinger = (*RedisCache)(nil)
)
