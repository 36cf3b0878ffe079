package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxEntries bounds a MemoryCache when MemoryConfig.MaxEntries is unset.
const DefaultMaxEntries = 10000

// MemoryConfig configures a MemoryCache.
type MemoryConfig struct {
	// MaxEntries is the LRU capacity.
	// Default: 10000
	MaxEntries int

	// PinnedPrefixes lists key prefixes kept outside the LRU. Pinned keys
	// are never evicted for capacity, only by TTL or Delete.
	PinnedPrefixes []string
}

// MemoryCache is an in-process LRU store with per-entry TTL.
type MemoryCache struct {
	mu       sync.Mutex
	entries  *lru.Cache[string, memoryEntry]
	pinned   map[string]memoryEntry
	prefixes []string
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemoryCache creates a new in-memory store.
func NewMemoryCache(config MemoryConfig) *MemoryCache {
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultMaxEntries
	}

	entries, err := lru.New[string, memoryEntry](config.MaxEntries)
	if err != nil {
		// Only reachable with a non-positive size, which is defaulted above.
		panic("cache: failed to create LRU: " + err.Error())
	}

	return &MemoryCache{
		entries:  entries,
		pinned:   make(map[string]memoryEntry),
		prefixes: append([]string(nil), config.PinnedPrefixes...),
	}
}

func (c *MemoryCache) isPinned(key string) bool {
	for _, p := range c.prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

func (c *MemoryCache) lookupLocked(key string) (memoryEntry, bool) {
	var (
		entry memoryEntry
		ok    bool
	)
	if c.isPinned(key) {
		entry, ok = c.pinned[key]
	} else {
		entry, ok = c.entries.Get(key)
	}
	if !ok {
		return memoryEntry{}, false
	}
	if entry.expired(time.Now()) {
		c.removeLocked(key)
		return memoryEntry{}, false
	}
	return entry, true
}

func (c *MemoryCache) storeLocked(key string, value []byte, ttl time.Duration) {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	if c.isPinned(key) {
		c.pinned[key] = entry
		return
	}
	c.entries.Add(key, entry)
}

func (c *MemoryCache) removeLocked(key string) {
	if c.isPinned(key) {
		delete(c.pinned, key)
		return
	}
	c.entries.Remove(key)
}

// Get retrieves a value. Returns (nil, false) on miss or expiry.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lookupLocked(key)
	if !ok {
		return nil, false
	}
	return entry.value, true
}

// GetE is Get with a nil error; an in-process read cannot fail.
func (c *MemoryCache) GetE(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := c.Get(ctx, key)
	return v, ok, nil
}

// Set stores a value. A zero TTL keeps it until deleted.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if ttl < 0 {
		return nil
	}

	c.mu.Lock()
	c.storeLocked(key, value, ttl)
	c.mu.Unlock()
	return nil
}

// SetNX stores value only when key is absent or expired.
func (c *MemoryCache) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.lookupLocked(key); ok {
		return false, nil
	}
	c.storeLocked(key, value, ttl)
	return true, nil
}

// Delete removes a value. Idempotent - no error on miss.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	c.removeLocked(key)
	c.mu.Unlock()
	return nil
}

// Len returns the number of entries held, including not yet collected
// expired ones.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len() + len(c.pinned)
}

// Ping always succeeds for an in-process store.
func (c *MemoryCache) Ping(context.Context) error {
	return nil
}

var (
	_ Cache  = (*MemoryCache)(nil)
	_ Reader = (*MemoryCache)(nil)
	_ Locker = (*MemoryCache)(nil)
	_ Pinger = (*MemoryCache)(nil)
)
