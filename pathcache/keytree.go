package pathcache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Node is a position in the key tree: a Leaf or a Branch.
type Node interface {
	isNode()
}

// Leaf holds the cache key stored at the end of a path.
type Leaf string

// Branch maps path segments to child nodes.
type Branch map[string]Node

func (Leaf) isNode()   {}
func (Branch) isNode() {}

// Leaves returns every cache key under n, deduplicated and sorted.
func Leaves(n Node) []string {
	seen := make(map[string]struct{})
	collectLeaves(n, seen)

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func collectLeaves(n Node, seen map[string]struct{}) {
	switch v := n.(type) {
	case Leaf:
		seen[string(v)] = struct{}{}
	case Branch:
		for _, child := range v {
			collectLeaves(child, seen)
		}
	}
}

// Size returns the number of leaves under b.
func (b Branch) Size() int {
	n := 0
	for _, child := range b {
		switch v := child.(type) {
		case Leaf:
			n++
		case Branch:
			n += v.Size()
		}
	}
	return n
}

// insert sets the node at segments to leaf, creating branches on the way and
// replacing whatever was there.
func (b Branch) insert(segments []string, leaf Leaf) {
	if len(segments) == 0 {
		return
	}
	cur := b
	for _, seg := range segments[:len(segments)-1] {
		next, ok := cur[seg].(Branch)
		if !ok {
			next = Branch{}
			cur[seg] = next
		}
		cur = next
	}
	cur[segments[len(segments)-1]] = leaf
}

// lookup returns the node at segments without modifying the tree. An empty
// path resolves to b itself.
func (b Branch) lookup(segments []string) (Node, bool) {
	var cur Node = b
	for _, seg := range segments {
		br, ok := cur.(Branch)
		if !ok {
			return nil, false
		}
		cur, ok = br[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// prune removes the node at segments and every branch left empty by the
// removal. It reports whether anything was removed.
func (b Branch) prune(segments []string) bool {
	if len(segments) == 0 {
		return false
	}
	head := segments[0]
	child, ok := b[head]
	if !ok {
		return false
	}
	if len(segments) == 1 {
		delete(b, head)
		return true
	}
	br, ok := child.(Branch)
	if !ok {
		return false
	}
	removed := br.prune(segments[1:])
	if removed && len(br) == 0 {
		delete(b, head)
	}
	return removed
}

// clone returns a deep copy of b.
func (b Branch) clone() Branch {
	out := make(Branch, len(b))
	for k, child := range b {
		switch v := child.(type) {
		case Leaf:
			out[k] = v
		case Branch:
			out[k] = v.clone()
		}
	}
	return out
}

var errMalformedTree = errors.New("malformed key tree")

// UnmarshalJSON decodes a branch: a JSON object whose values are strings
// (leaves) or objects (branches).
func (b *Branch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("%w: null branch", errMalformedTree)
	}

	out := make(Branch, len(raw))
	for k, v := range raw {
		v = bytes.TrimSpace(v)
		if len(v) == 0 {
			return fmt.Errorf("%w: empty value at %q", errMalformedTree, k)
		}
		switch v[0] {
		case '"':
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return err
			}
			out[k] = Leaf(s)
		case '{':
			var child Branch
			if err := child.UnmarshalJSON(v); err != nil {
				return err
			}
			out[k] = child
		default:
			return fmt.Errorf("%w: unexpected value at %q", errMalformedTree, k)
		}
	}
	*b = out
	return nil
}

func decodeTree(data []byte) (Branch, error) {
	if len(data) == 0 {
		return Branch{}, nil
	}
	var b Branch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedTree, err)
	}
	return b, nil
}

func encodeTree(b Branch) ([]byte, error) {
	if b == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(b)
}
