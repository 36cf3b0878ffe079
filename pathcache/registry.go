package pathcache

import (
	"context"
)

// Registry is the shared key tree. Every operation reads, mutates and
// writes the tree back as one unit under the Guard.
type Registry struct {
	guard *Guard
}

// Guard returns the guard the registry runs under.
func (r *Registry) Guard() *Guard { return r.guard }

// Insert records leaf at the path given by segments. Whatever was stored at
// that path before is replaced.
func (r *Registry) Insert(ctx context.Context, segments []string, leaf string) error {
	return r.guard.Do(ctx, func(tree Branch) (Branch, bool) {
		tree.insert(segments, Leaf(leaf))
		return tree, true
	})
}

// Lookup returns the node at segments without modifying the tree.
func (r *Registry) Lookup(ctx context.Context, segments []string) (Node, bool, error) {
	var (
		node  Node
		found bool
	)
	err := r.guard.Do(ctx, func(tree Branch) (Branch, bool) {
		node, found = tree.lookup(segments)
		if br, ok := node.(Branch); ok {
			node = br.clone()
		}
		return tree, false
	})
	return node, found, err
}

// Prune removes the node at segments along with branches left empty.
func (r *Registry) Prune(ctx context.Context, segments []string) error {
	return r.guard.Do(ctx, func(tree Branch) (Branch, bool) {
		return tree, tree.prune(segments)
	})
}

// Snapshot returns a copy of the whole tree.
func (r *Registry) Snapshot(ctx context.Context) (Branch, error) {
	var snap Branch
	err := r.guard.Do(ctx, func(tree Branch) (Branch, bool) {
		snap = tree.clone()
		return tree, false
	})
	return snap, err
}

// Flush replaces the tree with an empty one and resets the slow-read
// counter. It returns the tree as it was before the flush.
func (r *Registry) Flush(ctx context.Context) (Branch, error) {
	var old Branch
	err := r.guard.Do(ctx, func(tree Branch) (Branch, bool) {
		old = tree
		return Branch{}, true
	})
	if err != nil {
		return old, err
	}
	r.guard.setSlowReads(ctx, 0)
	return old, nil
}

// SlowReads returns the current slow-read counter.
func (r *Registry) SlowReads(ctx context.Context) int {
	return r.guard.SlowReads(ctx)
}
