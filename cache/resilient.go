package cache

import (
	"context"
	"time"

	"github.com/jonwraymond/pathcache/resilience"
)

// ResilientCache runs every call of an inner store through a resilience
// executor. When the executor rejects a call (open circuit, timeout) a Get
// becomes a miss, GetE and writes return the executor's error.
type ResilientCache struct {
	inner Cache
	exec  *resilience.Executor
}

// NewResilientCache wraps inner. If exec is nil, a circuit breaker with
// default settings and a 250ms timeout is used.
func NewResilientCache(inner Cache, exec *resilience.Executor) *ResilientCache {
	if exec == nil {
		exec = resilience.NewExecutor(
			resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})),
			resilience.WithTimeout(250*time.Millisecond),
		)
	}
	return &ResilientCache{inner: inner, exec: exec}
}

type getResult struct {
	value []byte
	ok    bool
}

// Get retrieves a value through the executor. A rejected or failed read is
// a miss.
func (c *ResilientCache) Get(ctx context.Context, key string) ([]byte, bool) {
	v, ok, _ := c.GetE(ctx, key)
	return v, ok
}

// GetE retrieves a value through the executor and reports rejections and
// inner read failures as errors.
func (c *ResilientCache) GetE(ctx context.Context, key string) ([]byte, bool, error) {
	out := make(chan getResult, 1)
	err := c.exec.Execute(ctx, func(ctx context.Context) error {
		v, ok, err := Read(ctx, c.inner, key)
		if err != nil {
			return err
		}
		out <- getResult{value: v, ok: ok}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	r := <-out
	return r.value, r.ok, nil
}

// Set stores a value through the executor.
func (c *ResilientCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.exec.Execute(ctx, func(ctx context.Context) error {
		return c.inner.Set(ctx, key, value, ttl)
	})
}

// Delete removes a value through the executor.
func (c *ResilientCache) Delete(ctx context.Context, key string) error {
	return c.exec.Execute(ctx, func(ctx context.Context) error {
		return c.inner.Delete(ctx, key)
	})
}

// SetNX forwards to the inner store's Locker, or returns ErrNotSupported.
func (c *ResilientCache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	locker, ok := c.inner.(Locker)
	if !ok {
		return false, ErrNotSupported
	}
	out := make(chan bool, 1)
	err := c.exec.Execute(ctx, func(ctx context.Context) error {
		set, err := locker.SetNX(ctx, key, value, ttl)
		if err != nil {
			return err
		}
		out <- set
		return nil
	})
	if err != nil {
		return false, err
	}
	return <-out, nil
}

// Ping forwards to the inner store's Pinger, or returns ErrNotSupported.
func (c *ResilientCache) Ping(ctx context.Context) error {
	pinger, ok := c.inner.(Pinger)
	if !ok {
		return ErrNotSupported
	}
	return c.exec.Execute(ctx, pinger.Ping)
}

var (
	_ Cache  = (*ResilientCache)(nil)
	_ Reader = (*ResilientCache)(nil)
	_ Locker = (*ResilientCache)(nil)
	_ Pinger = (*ResilientCache)(nil)
)
