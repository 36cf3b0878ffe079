package pathcache

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/pathcache/cache"
)

// DeferredQueue holds keys marked for eviction on their next use.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Take reports a key at most once per Mark.
type DeferredQueue interface {
	// Mark queues keys for deferred eviction.
	Mark(ctx context.Context, keys ...string) error

	// Take removes key from the queue and reports whether it was queued.
	Take(ctx context.Context, key string) (bool, error)
}

// DefaultDeferredTTL is how long a StoreDeferred mark lives.
const DefaultDeferredTTL = 60 * time.Second

// StoreDeferred keeps marks in the shared store so every process sharing it
// sees them. Marks expire after TTL.
type StoreDeferred struct {
	store  cache.Cache
	prefix string
	ttl    time.Duration
}

// NewStoreDeferred returns a queue writing marks under
// namespace+DeferredPrefix. A non-positive ttl uses DefaultDeferredTTL.
func NewStoreDeferred(store cache.Cache, namespace string, ttl time.Duration) *StoreDeferred {
	if ttl <= 0 {
		ttl = DefaultDeferredTTL
	}
	return &StoreDeferred{
		store:  store,
		prefix: namespace + DeferredPrefix,
		ttl:    ttl,
	}
}

// Mark stores one marker per key.
func (q *StoreDeferred) Mark(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if err := q.store.Set(ctx, q.prefix+k, []byte{1}, q.ttl); err != nil {
			return err
		}
	}
	return nil
}

// Take reports whether key is marked and clears the mark.
func (q *StoreDeferred) Take(ctx context.Context, key string) (bool, error) {
	if _, ok := q.store.Get(ctx, q.prefix+key); !ok {
		return false, nil
	}
	return true, q.store.Delete(ctx, q.prefix+key)
}

// MemoryDeferred keeps marks in process memory. Marks are invisible to other
// processes.
type MemoryDeferred struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewMemoryDeferred returns an empty in-process queue.
func NewMemoryDeferred() *MemoryDeferred {
	return &MemoryDeferred{keys: make(map[string]struct{})}
}

func (q *MemoryDeferred) Mark(_ context.Context, keys ...string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, k := range keys {
		q.keys[k] = struct{}{}
	}
	return nil
}

func (q *MemoryDeferred) Take(_ context.Context, key string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.keys[key]; !ok {
		return false, nil
	}
	delete(q.keys, key)
	return true, nil
}

// Len returns the number of queued keys.
func (q *MemoryDeferred) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.keys)
}

var (
	_ DeferredQueue = (*StoreDeferred)(nil)
	_ DeferredQueue = (*MemoryDeferred)(nil)
)
