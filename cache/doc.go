// Package cache provides the key-value stores pathcache keeps responses and
// its key registry in.
//
// Three implementations are available: MemoryCache (bounded LRU, per-entry
// TTL), RedisCache (shared across processes) and ResilientCache, a decorator
// that puts a circuit breaker and timeout in front of another store. Stores
// that can set a key atomically implement Locker; the registry guard uses it
// to take its advisory lock.
package cache
