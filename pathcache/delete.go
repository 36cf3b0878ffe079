package pathcache

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/pathcache/observe"
)

// maxParallelEvictions bounds concurrent store deletes in one call.
const maxParallelEvictions = 16

// Delete evicts every entry whose key path starts with prefix and returns
// the number of entries evicted, or marked when opts.Deferred is set.
//
// The walk follows opts.Order and stops at the first dimension missing from
// prefix, so values must be supplied in the order the entries were composed
// with. A prefix that matches nothing is not an error and returns 0.
func (p *PathCache) Delete(ctx context.Context, prefix Prefix, opts DeleteOptions) (n int, err error) {
	op := observe.OpMeta{Name: "delete"}
	ctx, span := p.tracer.StartSpan(ctx, op)
	defer func() { p.tracer.EndSpan(span, err) }()

	order, err := ResolveOrder(opts.Order)
	if err != nil {
		return 0, err
	}

	prefix, err = p.resolvePrefixUser(ctx, prefix, opts.Request)
	if err != nil {
		return 0, err
	}

	segments, err := pathFor(prefix, order)
	if err != nil {
		return 0, err
	}

	node, found, err := p.registry.Lookup(ctx, segments)
	if err != nil {
		return 0, fmt.Errorf("lookup key registry: %w", err)
	}
	if !found {
		p.logger.Debug(ctx, "delete prefix matched nothing", observe.F("depth", len(segments)))
		return 0, nil
	}
	if _, isBranch := node.(Branch); isBranch && opts.NonRecursive {
		return 0, ErrRecursionRequired
	}

	keys := Leaves(node)

	if opts.Deferred {
		if err := p.deferred.Mark(ctx, keys...); err != nil {
			return 0, fmt.Errorf("mark deferred deletion: %w", err)
		}
		p.logger.Debug(ctx, "marked keys for deferred deletion", observe.F("count", len(keys)))
		return len(keys), nil
	}

	n, err = p.evict(ctx, keys)
	if perr := p.registry.Prune(ctx, segments); perr != nil {
		err = errors.Join(err, fmt.Errorf("prune key registry: %w", perr))
	}
	p.logger.Info(ctx, "deleted cache prefix",
		observe.F("depth", len(segments)), observe.F("evicted", n))
	return n, err
}

// resolvePrefixUser replaces a PrefixUser value with the user it names.
func (p *PathCache) resolvePrefixUser(ctx context.Context, prefix Prefix, req Request) (Prefix, error) {
	v, ok := prefix[DimUser]
	if !ok || v.User.IsZero() {
		return prefix, nil
	}
	if req == nil {
		req = NewRequest(RequestData{})
	}
	user, err := p.composer.user(ctx, req, v.User)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolve, err)
	}
	resolved := maps.Clone(prefix)
	resolved[DimUser] = Scalar(user)
	return resolved, nil
}

// DeleteAll evicts every registered entry, empties the registry and resets
// the slow-read counter.
func (p *PathCache) DeleteAll(ctx context.Context) (n int, err error) {
	op := observe.OpMeta{Name: "delete_all"}
	ctx, span := p.tracer.StartSpan(ctx, op)
	defer func() { p.tracer.EndSpan(span, err) }()

	old, err := p.registry.Flush(ctx)
	if err != nil {
		return 0, err
	}
	p.metrics.RecordFlush(ctx, "delete_all")

	n, err = p.evict(ctx, Leaves(old))
	p.logger.Info(ctx, "deleted all cache entries", observe.F("evicted", n))
	return n, err
}

// evict deletes keys from the store concurrently. It returns the number of
// keys deleted and every store error joined.
func (p *PathCache) evict(ctx context.Context, keys []string) (int, error) {
	var (
		mu      sync.Mutex
		evicted int
		errs    []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelEvictions)
	for _, k := range keys {
		g.Go(func() error {
			err := p.store.Delete(gctx, p.EntryID(k))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("delete %s: %w", k, err))
				return nil
			}
			evicted++
			return nil
		})
	}
	_ = g.Wait()

	p.metrics.RecordEvictions(ctx, evicted)
	if len(errs) > 0 {
		p.logger.Error(ctx, "failed to evict some cache entries",
			observe.F("failed", len(errs)), observe.F("evicted", evicted))
	}
	return evicted, errors.Join(errs...)
}
