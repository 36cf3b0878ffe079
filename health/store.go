package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/pathcache/cache"
	"github.com/jonwraymond/pathcache/pathcache"
)

// probeKey is written and removed by StoreChecker on stores that cannot be
// pinged. It shares the reserved prefix so capacity eviction skips it.
const probeKey = "PATHCACHE_healthprobe"

// StoreChecker checks that the cache store is reachable. Stores implementing
// cache.Pinger are pinged; others get a write, read and delete round trip.
type StoreChecker struct {
	store     cache.Cache
	namespace string
}

// NewStoreChecker creates a checker for store. namespace is the PathCache
// namespace the probe key is written under.
func NewStoreChecker(store cache.Cache, namespace string) *StoreChecker {
	return &StoreChecker{store: store, namespace: namespace}
}

// Name returns "store".
func (c *StoreChecker) Name() string { return "store" }

// Check pings or probes the store.
func (c *StoreChecker) Check(ctx context.Context) Result {
	if p, ok := c.store.(cache.Pinger); ok {
		err := p.Ping(ctx)
		switch {
		case err == nil:
			return Healthy("store reachable")
		case !errors.Is(err, cache.ErrNotSupported):
			return Unhealthy("store ping failed", err)
		}
	}

	key := c.namespace + probeKey
	want := []byte(time.Now().UTC().Format(time.RFC3339Nano))
	if err := c.store.Set(ctx, key, want, time.Minute); err != nil {
		return Unhealthy("store write failed", err)
	}
	got, ok, err := cache.Read(ctx, c.store, key)
	_ = c.store.Delete(ctx, key)
	if err != nil {
		return Unhealthy("store read failed", err)
	}
	if !ok || string(got) != string(want) {
		return Unhealthy("store read-back failed", ErrCheckFailed)
	}
	return Healthy("store round trip ok")
}

// RegistryChecker reports the size of the key registry and degrades while
// registry reads are slow.
type RegistryChecker struct {
	registry *pathcache.Registry
}

// NewRegistryChecker creates a checker for registry.
func NewRegistryChecker(registry *pathcache.Registry) *RegistryChecker {
	return &RegistryChecker{registry: registry}
}

// Name returns "registry".
func (c *RegistryChecker) Name() string { return "registry" }

// Check reads the registry once and reports its size and slow-read count.
func (c *RegistryChecker) Check(ctx context.Context) Result {
	snap, err := c.registry.Snapshot(ctx)
	if err != nil {
		return Unhealthy("registry unavailable", err)
	}
	slow := c.registry.SlowReads(ctx)
	details := map[string]any{
		"entries":    snap.Size(),
		"slow_reads": slow,
	}
	if slow > 0 {
		return Degraded(fmt.Sprintf("%d recent slow registry reads", slow)).WithDetails(details)
	}
	return Healthy("registry ok").WithDetails(details)
}

var (
	_ Checker = (*StoreChecker)(nil)
	_ Checker = (*RegistryChecker)(nil)
)
