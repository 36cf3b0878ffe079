package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonwraymond/pathcache/resilience"
)

// failingCache rejects every write.
type failingCache struct {
	gets int
}

func (f *failingCache) Get(context.Context, string) ([]byte, bool) {
	f.gets++
	return []byte("stale"), true
}

func (f *failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("store unavailable")
}

func (f *failingCache) Delete(context.Context, string) error {
	return errors.New("store unavailable")
}

func TestResilientCache_PassThrough(t *testing.T) {
	c := NewResilientCache(NewMemoryCache(MemoryConfig{}), nil)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, ok := c.Get(ctx, "k")
	if !ok || string(got) != "v" {
		t.Errorf("Get = (%q, %v), want (\"v\", true)", got, ok)
	}

	set, err := c.SetNX(ctx, "lock", []byte("1"), time.Minute)
	if err != nil || !set {
		t.Errorf("SetNX = (%v, %v), want (true, nil)", set, err)
	}
	if err := c.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestResilientCache_OpenCircuitTurnsGetIntoMiss(t *testing.T) {
	inner := &failingCache{}
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Hour,
	})
	c := NewResilientCache(inner, resilience.NewExecutor(resilience.WithCircuitBreaker(cb)))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := c.Set(ctx, "k", []byte("v"), time.Minute); err == nil {
			t.Fatal("Set should surface the store error")
		}
	}

	if cb.State() != resilience.StateOpen {
		t.Fatalf("circuit state = %v, want open", cb.State())
	}

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("Get with open circuit should be a miss")
	}
	if inner.gets != 0 {
		t.Errorf("inner store was called %d times with an open circuit", inner.gets)
	}
	if err := c.Delete(ctx, "k"); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Delete error = %v, want ErrCircuitOpen", err)
	}
}

func TestResilientCache_NotSupported(t *testing.T) {
	c := NewResilientCache(&failingCache{}, nil)
	ctx := context.Background()

	if _, err := c.SetNX(ctx, "lock", nil, time.Second); !errors.Is(err, ErrNotSupported) {
		t.Errorf("SetNX error = %v, want ErrNotSupported", err)
	}
	if err := c.Ping(ctx); !errors.Is(err, ErrNotSupported) {
		t.Errorf("Ping error = %v, want ErrNotSupported", err)
	}
}

// stallingCache blocks every read until its context ends.
type stallingCache struct {
	Cache
}

func (s stallingCache) Get(ctx context.Context, _ string) ([]byte, bool) {
	<-ctx.Done()
	return nil, false
}

func TestResilientCache_GetEReportsFailures(t *testing.T) {
	ctx := context.Background()
	timed := NewResilientCache(stallingCache{NewMemoryCache(MemoryConfig{})},
		resilience.NewExecutor(resilience.WithTimeout(10*time.Millisecond)))

	if _, ok, err := timed.GetE(ctx, "k"); ok || !errors.Is(err, resilience.ErrTimeout) {
		t.Errorf("GetE() = (%v, %v), want timeout", ok, err)
	}
	if _, ok := timed.Get(ctx, "k"); ok {
		t.Error("Get() after timeout should be a miss")
	}

	healthy := NewResilientCache(NewMemoryCache(MemoryConfig{}), nil)
	if _, ok, err := healthy.GetE(ctx, "absent"); ok || err != nil {
		t.Errorf("GetE(absent) = (%v, %v), want plain miss", ok, err)
	}
	_ = healthy.Set(ctx, "k", []byte("v"), time.Minute)
	if v, ok, err := healthy.GetE(ctx, "k"); !ok || err != nil || string(v) != "v" {
		t.Errorf("GetE(k) = (%q, %v, %v)", v, ok, err)
	}
}

func TestRead_FallsBackToGet(t *testing.T) {
	ctx := context.Background()
	inner := &failingCache{}
	v, ok, err := Read(ctx, inner, "k")
	if err != nil || !ok || string(v) != "stale" || inner.gets != 1 {
		t.Errorf("Read() = (%q, %v, %v) after %d gets", v, ok, err, inner.gets)
	}
}
