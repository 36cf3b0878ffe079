package pathcache

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"
)

// IdentityProvider resolves the caller's identity for CurrentUser.
type IdentityProvider interface {
	CurrentIdentity(ctx context.Context, req Request) (string, error)
}

// IdentityFunc adapts a function to IdentityProvider.
type IdentityFunc func(ctx context.Context, req Request) (string, error)

// CurrentIdentity calls f.
func (f IdentityFunc) CurrentIdentity(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

type userKind int

const (
	userNone userKind = iota
	userCurrent
	userValue
	userFunc
)

// UserSource says where the user dimension takes its value from. The zero
// value excludes the user from the key.
type UserSource struct {
	kind  userKind
	value string
	fn    func(ctx context.Context, req Request) (string, error)
}

// CurrentUser keys on the identity returned by the configured
// IdentityProvider. A failed lookup makes the composition fail.
func CurrentUser() UserSource {
	return UserSource{kind: userCurrent}
}

// UserValue keys on a fixed value.
func UserValue(v string) UserSource {
	return UserSource{kind: userValue, value: v}
}

// UserID keys on a numeric identifier.
func UserID(id int) UserSource {
	return UserSource{kind: userValue, value: strconv.Itoa(id)}
}

// UserFunc keys on the value fn returns for the request.
func UserFunc(fn func(ctx context.Context, req Request) (string, error)) UserSource {
	return UserSource{kind: userFunc, fn: fn}
}

// IsZero reports whether the user is excluded.
func (u UserSource) IsZero() bool { return u.kind == userNone }

// Selection picks the keys of a multi-value dimension. The zero value selects
// nothing.
type Selection struct {
	all  bool
	keys []string
}

// All selects every key present on the request, sorted.
func All() Selection {
	return Selection{all: true}
}

// Keys selects exactly these keys, in this order. Order matters for prefix
// deletion: list the broadest key first.
func Keys(keys ...string) Selection {
	return Selection{keys: append([]string(nil), keys...)}
}

// IsZero reports whether nothing is selected.
func (s Selection) IsZero() bool { return !s.all && len(s.keys) == 0 }

func (s Selection) resolve(available []string) []string {
	if !s.all {
		return s.keys
	}
	keys := append([]string(nil), available...)
	sort.Strings(keys)
	return keys
}

// Pair is one selected key and its value.
type Pair struct {
	Key   string
	Value string
}

// KeySpec configures how a request is turned into a key.
type KeySpec struct {
	// SkipMethod and SkipPath exclude the request method or path.
	SkipMethod bool
	SkipPath   bool

	// Method and Path override the request's values when non-empty.
	Method string
	Path   string

	// PathFunc computes the path and takes precedence over Path.
	PathFunc func(req Request) string

	User    UserSource
	Headers Selection
	Get     Selection
	Post    Selection
	JSON    Selection

	// Order is the dimension order of the key path. Omitted dimensions are
	// appended in default order. Deletions must use the same order.
	Order []Dimension

	// TTL overrides the store policy's default expiry.
	TTL time.Duration
}

// Key is a composed cache key together with the path it was registered under.
type Key struct {
	ID       string
	Segments []string
	Order    []Dimension
}

// Prefix holds the dimension values to delete under. A dimension is present
// when it has an entry; the walk stops at the first absent dimension of the
// order.
type Prefix map[Dimension]PrefixValue

// PrefixValue is the value of one dimension in a Prefix. Scalar dimensions
// use Value; multi-value dimensions use Pairs. A user value may instead name
// a UserSource, resolved at deletion time like it is at composition.
type PrefixValue struct {
	Value string
	Pairs []Pair
	User  UserSource
}

// Scalar is a PrefixValue for path, method or user.
func Scalar(v string) PrefixValue {
	return PrefixValue{Value: v}
}

// PrefixUser is a PrefixValue for the user dimension taken from src.
// CurrentUser resolves through the PathCache's IdentityProvider against
// DeleteOptions.Request.
func PrefixUser(src UserSource) PrefixValue {
	return PrefixValue{User: src}
}

// Pairs is a PrefixValue for headers, get, post or json built from
// alternating keys and values. A trailing key without a value gets "".
func Pairs(kv ...string) PrefixValue {
	pairs := make([]Pair, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		p := Pair{Key: kv[i]}
		if i+1 < len(kv) {
			p.Value = kv[i+1]
		}
		pairs = append(pairs, p)
	}
	return PrefixValue{Pairs: pairs}
}

// DeleteOptions configures Delete.
type DeleteOptions struct {
	// Order must match the KeySpec order the entries were composed with.
	Order []Dimension

	// NonRecursive refuses to delete when the prefix matches a subtree
	// rather than a single entry.
	NonRecursive bool

	// Deferred marks the matched keys for eviction on their next use instead
	// of evicting them now.
	Deferred bool

	// Request is what a PrefixUser source resolves against.
	// Default: an empty request.
	Request Request
}

func lowerKeys(pairs []Pair) []Pair {
	out := make([]Pair, len(pairs))
	for i, p := range pairs {
		out[i] = Pair{Key: strings.ToLower(p.Key), Value: p.Value}
	}
	return out
}
