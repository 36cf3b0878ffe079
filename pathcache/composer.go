package pathcache

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonwraymond/pathcache/observe"
)

// Composer turns requests into keys and registers every composed key path
// in the Registry.
type Composer struct {
	registry *Registry
	identity IdentityProvider
	logger   observe.Logger
}

// Compose builds the key for req under spec.
//
// Configuration errors (ErrInvalidDimension, ErrInvalidUser) are returned
// as is. Anything about the request itself that prevents a key, such as an
// unparseable JSON body or a failed identity lookup, is wrapped in
// ErrComposition. Failing to register the key is logged and not returned.
func (c *Composer) Compose(ctx context.Context, req Request, spec KeySpec) (Key, error) {
	order, err := ResolveOrder(spec.Order)
	if err != nil {
		return Key{}, err
	}

	values, err := c.dimensionValues(ctx, req, spec)
	if err != nil {
		return Key{}, err
	}

	segments := make([]string, 0, len(order)+4)
	for _, d := range order {
		v := values[d]
		if d.MultiValue() {
			segments = append(segments, cumulativeSegments(v.Pairs)...)
		} else {
			segments = append(segments, Hash(v.Value))
		}
	}

	key := Key{
		ID:       hashPath(segments),
		Segments: segments,
		Order:    order,
	}

	if err := c.registry.Insert(ctx, key.Segments, key.ID); err != nil {
		c.logger.Error(ctx, "failed to register cache key",
			observe.F("key", key.ID), observe.F("error", err))
	}
	return key, nil
}

// dimensionValues resolves every dimension of spec against req.
func (c *Composer) dimensionValues(ctx context.Context, req Request, spec KeySpec) (map[Dimension]PrefixValue, error) {
	values := make(map[Dimension]PrefixValue, len(defaultOrder))

	if !spec.SkipPath {
		path := req.Path()
		switch {
		case spec.PathFunc != nil:
			path = spec.PathFunc(req)
		case spec.Path != "":
			path = spec.Path
		}
		values[DimPath] = Scalar(path)
	}

	if !spec.SkipMethod {
		method := req.Method()
		if spec.Method != "" {
			method = spec.Method
		}
		values[DimMethod] = Scalar(method)
	}

	user, err := c.user(ctx, req, spec.User)
	if err != nil {
		return nil, err
	}
	values[DimUser] = Scalar(user)

	values[DimHeaders] = PrefixValue{Pairs: lowerKeys(selectPairs(spec.Headers, req.HeaderKeys(), req.Header))}
	values[DimGet] = PrefixValue{Pairs: selectPairs(spec.Get, req.QueryKeys(), req.Query)}
	values[DimPost] = PrefixValue{Pairs: selectPairs(spec.Post, req.FormKeys(), req.Form)}

	if !spec.JSON.IsZero() {
		pairs, err := jsonPairs(req, spec.JSON)
		if err != nil {
			return nil, err
		}
		values[DimJSON] = PrefixValue{Pairs: pairs}
	}

	return values, nil
}

func (c *Composer) user(ctx context.Context, req Request, src UserSource) (string, error) {
	switch src.kind {
	case userNone:
		return "", nil
	case userValue:
		return src.value, nil
	case userCurrent:
		if c.identity == nil {
			return "", fmt.Errorf("%w: CurrentUser requires an identity provider", ErrInvalidUser)
		}
		id, err := c.identity.CurrentIdentity(ctx, req)
		if err != nil {
			return "", fmt.Errorf("%w: resolve identity: %w", ErrComposition, err)
		}
		return id, nil
	case userFunc:
		if src.fn == nil {
			return "", fmt.Errorf("%w: nil UserFunc", ErrInvalidUser)
		}
		id, err := src.fn(ctx, req)
		if err != nil {
			return "", fmt.Errorf("%w: user func: %w", ErrComposition, err)
		}
		return id, nil
	default:
		return "", ErrInvalidUser
	}
}

func selectPairs(sel Selection, available []string, get func(string) string) []Pair {
	keys := sel.resolve(available)
	pairs := make([]Pair, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, Pair{Key: k, Value: get(k)})
	}
	return pairs
}

func jsonPairs(req Request, sel Selection) ([]Pair, error) {
	obj, err := req.JSON()
	if err != nil {
		return nil, fmt.Errorf("%w: parse JSON body: %w", ErrComposition, err)
	}

	available := make([]string, 0, len(obj))
	for k := range obj {
		available = append(available, k)
	}

	keys := sel.resolve(available)
	pairs := make([]Pair, 0, len(keys))
	for _, k := range keys {
		v, err := jsonValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("%w: JSON field %q: %w", ErrComposition, k, err)
		}
		pairs = append(pairs, Pair{Key: k, Value: v})
	}
	return pairs, nil
}

// pathFor resolves a deletion prefix to the registry path it names.
func pathFor(prefix Prefix, order []Dimension) ([]string, error) {
	for d := range prefix {
		if !d.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDimension, d)
		}
	}

	var (
		segments   []string
		meaningful int
	)
	for _, d := range order {
		v, ok := prefix[d]
		if !ok {
			break
		}
		if !d.MultiValue() {
			segments = append(segments, Hash(v.Value))
			meaningful = len(segments)
			continue
		}
		pairs := v.Pairs
		if d == DimHeaders {
			pairs = lowerKeys(pairs)
		}
		segments = append(segments, cumulativeSegments(pairs)...)
		if len(pairs) > 0 {
			meaningful = len(segments)
		}
	}

	if meaningful == 0 {
		return nil, fmt.Errorf("%w: prefix names no leading dimension of order %s", ErrResolve, formatOrder(order))
	}
	return segments[:meaningful], nil
}

func formatOrder(order []Dimension) string {
	names := make([]string, len(order))
	for i, d := range order {
		names[i] = string(d)
	}
	return "[" + strings.Join(names, ", ") + "]"
}
