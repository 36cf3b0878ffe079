package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestMemoryCache_GetSetDelete(t *testing.T) {
	c := NewMemoryCache(MemoryConfig{})
	ctx := context.Background()

	if val, ok := c.Get(ctx, "nonexistent"); ok || val != nil {
		t.Errorf("Get on empty cache = (%q, %v), want (nil, false)", val, ok)
	}

	value := []byte("test-value")
	if err := c.Set(ctx, "test-key", value, 5*time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := c.Get(ctx, "test-key")
	if !ok || !bytes.Equal(got, value) {
		t.Errorf("Get after Set = (%q, %v), want (%q, true)", got, ok, value)
	}

	if err := c.Delete(ctx, "test-key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := c.Get(ctx, "test-key"); ok {
		t.Error("Get after Delete should return ok=false")
	}

	if err := c.Delete(ctx, "nonexistent"); err != nil {
		t.Errorf("Delete on non-existent key should not error, got: %v", err)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(MemoryConfig{})
	ctx := context.Background()

	if err := c.Set(ctx, "expiring", []byte("v"), 50*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok := c.Get(ctx, "expiring"); !ok {
		t.Error("Get immediately after Set should return ok=true")
	}

	time.Sleep(100 * time.Millisecond)

	if _, ok := c.Get(ctx, "expiring"); ok {
		t.Error("Get after expiry should return ok=false")
	}
}

func TestMemoryCache_ZeroTTLNeverExpires(t *testing.T) {
	c := NewMemoryCache(MemoryConfig{})
	ctx := context.Background()

	if err := c.Set(ctx, "forever", []byte("v"), NoExpiration); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, ok := c.Get(ctx, "forever"); !ok {
		t.Error("value stored with NoExpiration should be present")
	}
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	c := NewMemoryCache(MemoryConfig{MaxEntries: 2})
	ctx := context.Background()

	_ = c.Set(ctx, "a", []byte("1"), time.Minute)
	_ = c.Set(ctx, "b", []byte("2"), time.Minute)
	_, _ = c.Get(ctx, "a") // a is now most recently used
	_ = c.Set(ctx, "c", []byte("3"), time.Minute)

	if _, ok := c.Get(ctx, "b"); ok {
		t.Error("least recently used key b should have been evicted")
	}
	if _, ok := c.Get(ctx, "a"); !ok {
		t.Error("key a should survive eviction")
	}
	if _, ok := c.Get(ctx, "c"); !ok {
		t.Error("key c should be present")
	}
}

func TestMemoryCache_PinnedPrefixSurvivesEviction(t *testing.T) {
	c := NewMemoryCache(MemoryConfig{MaxEntries: 2, PinnedPrefixes: []string{"PATHCACHE_"}})
	ctx := context.Background()

	_ = c.Set(ctx, "PATHCACHE_keys", []byte("{}"), NoExpiration)
	for i := 0; i < 10; i++ {
		_ = c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Minute)
	}

	if _, ok := c.Get(ctx, "PATHCACHE_keys"); !ok {
		t.Error("pinned key should not be evicted for capacity")
	}
	if got := c.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}

	_ = c.Delete(ctx, "PATHCACHE_keys")
	if _, ok := c.Get(ctx, "PATHCACHE_keys"); ok {
		t.Error("pinned key should be removable with Delete")
	}
}

func TestMemoryCache_SetNX(t *testing.T) {
	c := NewMemoryCache(MemoryConfig{})
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "lock", []byte("1"), 50*time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("first SetNX = (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = c.SetNX(ctx, "lock", []byte("1"), 50*time.Millisecond)
	if err != nil || ok {
		t.Fatalf("second SetNX = (%v, %v), want (false, nil)", ok, err)
	}

	time.Sleep(100 * time.Millisecond)

	ok, err = c.SetNX(ctx, "lock", []byte("1"), 50*time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("SetNX after expiry = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestMemoryCache_SetNXExclusive(t *testing.T) {
	c := NewMemoryCache(MemoryConfig{})
	ctx := context.Background()

	const workers = 50
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if ok, _ := c.SetNX(ctx, "lock", []byte("1"), time.Minute); ok {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if won != 1 {
		t.Errorf("SetNX winners = %d, want 1", won)
	}
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	c := NewMemoryCache(MemoryConfig{MaxEntries: 16})
	ctx := context.Background()

	const numGoroutines = 50
	const opsPerGoroutine = 500

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < opsPerGoroutine; j++ {
				key := fmt.Sprintf("key-%d", j%32)
				switch j % 3 {
				case 0:
					_ = c.Set(ctx, key, []byte("value"), time.Minute)
				case 1:
					_, _ = c.Get(ctx, key)
				case 2:
					_ = c.Delete(ctx, key)
				}
			}
		}(i)
	}

	wg.Wait()
}

func TestMemoryCache_NilValue(t *testing.T) {
	c := NewMemoryCache(MemoryConfig{})
	ctx := context.Background()

	if err := c.Set(ctx, "nil-value", nil, time.Minute); err != nil {
		t.Fatalf("Set with nil value failed: %v", err)
	}

	got, ok := c.Get(ctx, "nil-value")
	if !ok {
		t.Error("Get after Set with nil value should return ok=true")
	}
	if got != nil {
		t.Errorf("Get returned %q, want nil", got)
	}
}

func TestMemoryCache_RejectsInvalidKeys(t *testing.T) {
	c := NewMemoryCache(MemoryConfig{})
	ctx := context.Background()

	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"empty", "", ErrInvalidKey},
		{"newline", "a\nb", ErrInvalidKey},
		{"too long", strings.Repeat("k", MaxKeyLength+1), ErrKeyTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Set(ctx, tt.key, []byte("v"), time.Minute); !errors.Is(err, tt.wantErr) {
				t.Errorf("Set() error = %v, want %v", err, tt.wantErr)
			}
			if _, err := c.SetNX(ctx, tt.key, []byte("v"), time.Minute); !errors.Is(err, tt.wantErr) {
				t.Errorf("SetNX() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}
