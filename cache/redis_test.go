package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

// newTestRedis connects to PATHCACHE_REDIS_ADDR or skips the test.
func newTestRedis(t *testing.T) *RedisCache {
	t.Helper()
	addr := os.Getenv("PATHCACHE_REDIS_ADDR")
	if addr == "" {
		t.Skip("PATHCACHE_REDIS_ADDR not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := NewRedisCache(ctx, RedisConfig{Addr: addr, KeyPrefix: "pathcache-test:" + t.Name() + ":"})
	if err != nil {
		t.Fatalf("NewRedisCache failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewRedisCache_RequiresAddress(t *testing.T) {
	if _, err := NewRedisCache(context.Background(), RedisConfig{}); err == nil {
		t.Error("NewRedisCache without client or address should fail")
	}
}

func TestRedisCache_GetSetDelete(t *testing.T) {
	c := newTestRedis(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, ok := c.Get(ctx, "k")
	if !ok || string(got) != "v" {
		t.Errorf("Get = (%q, %v), want (\"v\", true)", got, ok)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("Get after Delete should miss")
	}
}

func TestRedisCache_SetNX(t *testing.T) {
	c := newTestRedis(t)
	ctx := context.Background()
	t.Cleanup(func() { _ = c.Delete(ctx, "lock") })

	ok, err := c.SetNX(ctx, "lock", []byte("1"), time.Minute)
	if err != nil || !ok {
		t.Fatalf("first SetNX = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = c.SetNX(ctx, "lock", []byte("1"), time.Minute)
	if err != nil || ok {
		t.Fatalf("second SetNX = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestRedisCache_GetESeparatesMiss(t *testing.T) {
	c := newTestRedis(t)
	ctx := context.Background()

	if _, ok, err := c.GetE(ctx, "absent"); ok || err != nil {
		t.Errorf("GetE(absent) = (%v, %v), want plain miss", ok, err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, _, err := c.GetE(canceled, "absent"); err == nil {
		t.Error("GetE with canceled context should report an error")
	}
}
