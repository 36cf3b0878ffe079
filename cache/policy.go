package cache

import "time"

// Policy decides how long responses are stored.
type Policy struct {
	// DefaultTTL applies when an operation sets no expiry of its own.
	// If zero, responses are not stored unless an operation asks for a TTL.
	DefaultTTL time.Duration

	// MaxTTL clamps per-operation expiries. Zero means unbounded.
	MaxTTL time.Duration
}

// DefaultPolicy returns the default policy.
// DefaultTTL: 60 seconds, MaxTTL: 24 hours
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL: 60 * time.Second,
		MaxTTL:     24 * time.Hour,
	}
}

// NoCachePolicy returns a policy that stores nothing by default.
func NoCachePolicy() Policy {
	return Policy{}
}

// ShouldCache reports whether responses are stored when no override is given.
func (p Policy) ShouldCache() bool {
	return p.DefaultTTL > 0
}

// EffectiveTTL returns the TTL to store a response with. A result of zero
// means the response must not be stored.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.DefaultTTL
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl
}
