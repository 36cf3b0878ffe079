package pathcache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jonwraymond/pathcache/cache"
	"github.com/jonwraymond/pathcache/observe"
	"github.com/jonwraymond/pathcache/resilience"
)

// Reserved identifiers. Composed keys are lower-case hex, so these never
// collide with them.
const (
	KeysIdentifier      = "PATHCACHE_keys"
	LockIdentifier      = "PATHCACHE_keyslock"
	SlowReadsIdentifier = "PATHCACHE_slowreads"
	DeferredPrefix      = "PATHCACHE_deferred:"
)

// ReservedPrefix returns the prefix shared by every reserved identifier
// written under namespace. Stores that evict for capacity should pin it.
func ReservedPrefix(namespace string) string {
	return namespace + "PATHCACHE_"
}

// GuardConfig tunes the registry lock and the slow-read self-healing.
type GuardConfig struct {
	// LockAttempts is how many times the lock is polled before proceeding
	// without it. Default: 10
	LockAttempts int

	// LockInterval is the wait between polls. Default: 100ms
	LockInterval time.Duration

	// LockTTL bounds how long a lock outlives a crashed holder. Default: 5s
	LockTTL time.Duration

	// SlowReadThreshold marks a tree read as slow. Default: 15ms
	SlowReadThreshold time.Duration

	// SlowReadLimit is the number of slow reads tolerated before the tree is
	// reset. Default: 5
	SlowReadLimit int

	// SlowReadTTL is the expiry of the slow-read counter. Default: 600s
	SlowReadTTL time.Duration
}

func (c GuardConfig) withDefaults() GuardConfig {
	if c.LockAttempts <= 0 {
		c.LockAttempts = 10
	}
	if c.LockInterval <= 0 {
		c.LockInterval = 100 * time.Millisecond
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 5 * time.Second
	}
	if c.SlowReadThreshold <= 0 {
		c.SlowReadThreshold = 15 * time.Millisecond
	}
	if c.SlowReadLimit <= 0 {
		c.SlowReadLimit = 5
	}
	if c.SlowReadTTL <= 0 {
		c.SlowReadTTL = 600 * time.Second
	}
	return c
}

var errLockHeld = errors.New("registry lock held")

// Guard serializes read-modify-write cycles of the key tree through an
// advisory lock in the store. The lock is best effort: after LockAttempts
// polls the cycle runs anyway, so concurrent writers can lose updates.
type Guard struct {
	store   cache.Cache
	cfg     GuardConfig
	poll    *resilience.Retry
	logger  observe.Logger
	metrics observe.Metrics

	keysID  string
	lockID  string
	slowID  string
	lockVal []byte
}

func newGuard(store cache.Cache, namespace string, cfg GuardConfig, logger observe.Logger, metrics observe.Metrics) *Guard {
	cfg = cfg.withDefaults()
	return &Guard{
		store:   store,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		poll: resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts:  cfg.LockAttempts,
			InitialDelay: cfg.LockInterval,
			Strategy:     resilience.BackoffConstant,
			RetryIf:      func(err error) bool { return errors.Is(err, errLockHeld) },
		}),
		keysID:  namespace + KeysIdentifier,
		lockID:  namespace + LockIdentifier,
		slowID:  namespace + SlowReadsIdentifier,
		lockVal: []byte("1"),
	}
}

// Do runs fn on the current tree under the lock. When fn reports a change
// the returned tree is written back.
func (g *Guard) Do(ctx context.Context, fn func(Branch) (Branch, bool)) error {
	held, err := g.acquire(ctx)
	if err != nil {
		return err
	}
	if held {
		defer g.release(ctx)
	}

	tree, err := g.read(ctx)
	if err != nil {
		return err
	}

	next, changed := fn(tree)
	if !changed {
		return nil
	}
	return g.write(ctx, next)
}

// acquire polls the lock. It reports whether this call holds it; a starved
// poll proceeds without the lock.
func (g *Guard) acquire(ctx context.Context) (bool, error) {
	locker, atomic := g.store.(cache.Locker)

	err := g.poll.Execute(ctx, func(ctx context.Context) error {
		if atomic {
			ok, err := locker.SetNX(ctx, g.lockID, g.lockVal, g.cfg.LockTTL)
			switch {
			case errors.Is(err, cache.ErrNotSupported):
				atomic = false
			case err != nil:
				return err
			case ok:
				return nil
			default:
				return errLockHeld
			}
		}
		if _, held := g.store.Get(ctx, g.lockID); held {
			return errLockHeld
		}
		return g.store.Set(ctx, g.lockID, g.lockVal, g.cfg.LockTTL)
	})

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, resilience.ErrMaxRetriesExceeded):
		g.logger.Debug(ctx, "registry lock starved, proceeding without it",
			observe.F("attempts", g.cfg.LockAttempts))
		return false, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	default:
		// The store could not take the lock at all; carry on unlocked.
		g.logger.Warn(ctx, "registry lock unavailable", observe.F("error", err))
		return false, nil
	}
}

func (g *Guard) release(ctx context.Context) {
	if err := g.store.Delete(context.WithoutCancel(ctx), g.lockID); err != nil {
		g.logger.Warn(ctx, "failed to clear registry lock", observe.F("error", err))
	}
}

// read loads the tree, timing the read for the self-healing check. A tree
// that cannot be decoded is treated as empty. A failed store read is
// returned as an error, so a transient outage never overwrites the tree.
func (g *Guard) read(ctx context.Context) (Branch, error) {
	start := time.Now()
	data, _, readErr := cache.Read(ctx, g.store, g.keysID)
	elapsed := time.Since(start)

	tree := Branch{}
	if readErr != nil {
		g.logger.Warn(ctx, "key registry unreadable", observe.F("error", readErr))
	} else if decoded, err := decodeTree(data); err != nil {
		g.logger.Error(ctx, "discarding unreadable key registry", observe.F("error", err))
		g.metrics.RecordFlush(ctx, "corrupt")
	} else {
		tree = decoded
	}

	if g.observeRead(ctx, elapsed, tree.Size()) {
		return Branch{}, nil
	}
	if readErr != nil {
		return nil, fmt.Errorf("read key registry: %w", readErr)
	}
	return tree, nil
}

// observeRead updates the slow-read counter and reports whether the tree was
// reset because the counter went past SlowReadLimit.
func (g *Guard) observeRead(ctx context.Context, elapsed time.Duration, entries int) bool {
	if elapsed <= g.cfg.SlowReadThreshold {
		if g.slowReads(ctx) != 0 {
			g.setSlowReads(ctx, 0)
		}
		return false
	}

	g.metrics.RecordSlowRead(ctx, elapsed)
	count := g.slowReads(ctx) + 1
	g.logger.Warn(ctx, "slow key registry read",
		observe.F("duration_ms", float64(elapsed.Microseconds())/1000),
		observe.F("slow_reads", count))

	if count <= g.cfg.SlowReadLimit {
		g.setSlowReads(ctx, count)
		return false
	}

	g.logger.Warn(ctx, "too many slow key registry reads, resetting registry",
		observe.F("slow_reads", count), observe.F("entries", entries))
	g.metrics.RecordFlush(ctx, "self_heal")
	if err := g.write(ctx, Branch{}); err != nil {
		g.logger.Error(ctx, "failed to reset key registry", observe.F("error", err))
	}
	g.setSlowReads(ctx, 0)
	return true
}

func (g *Guard) write(ctx context.Context, tree Branch) error {
	data, err := encodeTree(tree)
	if err != nil {
		return fmt.Errorf("encode key registry: %w", err)
	}
	if err := g.store.Set(ctx, g.keysID, data, cache.NoExpiration); err != nil {
		return fmt.Errorf("write key registry: %w", err)
	}
	return nil
}

// slowReads returns the current slow-read count; a missing or unreadable
// counter counts as zero.
func (g *Guard) slowReads(ctx context.Context) int {
	data, ok := g.store.Get(ctx, g.slowID)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return 0
	}
	return n
}

func (g *Guard) setSlowReads(ctx context.Context, n int) {
	if err := g.store.Set(ctx, g.slowID, []byte(strconv.Itoa(n)), g.cfg.SlowReadTTL); err != nil {
		g.logger.Warn(ctx, "failed to update slow read counter", observe.F("error", err))
	}
}

// SlowReads returns the current value of the slow-read counter.
func (g *Guard) SlowReads(ctx context.Context) int {
	return g.slowReads(ctx)
}
