package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// NoExpiration passed as a TTL stores a value until it is deleted.
const NoExpiration time.Duration = 0

// Sentinel errors for cache operations.
var (
	ErrInvalidKey   = errors.New("cache: key is invalid")
	ErrKeyTooLong   = errors.New("cache: key exceeds max length")
	ErrNotSupported = errors.New("cache: operation not supported by store")
)

// Cache is the key-value store responses and registry state live in.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines where applicable.
// - Errors: Get should never error; it returns (nil, false) on miss.
// - TTL: a zero TTL means the value never expires.
type Cache interface {
	// Get retrieves a stored value. Returns (nil, false) on miss.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a stored value. Idempotent - no error on miss.
	Delete(ctx context.Context, key string) error
}

// Reader is implemented by stores that can tell a miss from a failed read.
type Reader interface {
	// GetE returns (nil, false, nil) on miss and an error when the store
	// could not be read.
	GetE(ctx context.Context, key string) ([]byte, bool, error)
}

// Read reads key through c's Reader when it has one. Stores without it
// report every failure as a miss.
func Read(ctx context.Context, c Cache, key string) ([]byte, bool, error) {
	if r, ok := c.(Reader); ok {
		return r.GetE(ctx, key)
	}
	v, ok := c.Get(ctx, key)
	return v, ok, nil
}

// Locker is implemented by stores with an atomic set-if-absent primitive.
type Locker interface {
	// SetNX stores value only if key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

// Pinger is implemented by stores that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ValidateKey checks a key before it is written. Stores call it from Set
// and SetNX.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
