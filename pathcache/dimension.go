package pathcache

import (
	"fmt"
	"strings"
)

// Dimension is one axis of request identity a key can be built from.
type Dimension string

const (
	DimPath    Dimension = "path"
	DimMethod  Dimension = "method"
	DimUser    Dimension = "user"
	DimHeaders Dimension = "headers"
	DimGet     Dimension = "get"
	DimPost    Dimension = "post"
	DimJSON    Dimension = "json"
)

var defaultOrder = []Dimension{DimPath, DimMethod, DimUser, DimHeaders, DimGet, DimPost, DimJSON}

// DefaultOrder returns the order used when a KeySpec sets none:
// path, method, user, headers, get, post, json.
func DefaultOrder() []Dimension {
	out := make([]Dimension, len(defaultOrder))
	copy(out, defaultOrder)
	return out
}

// Valid reports whether d is a known dimension.
func (d Dimension) Valid() bool {
	switch d {
	case DimPath, DimMethod, DimUser, DimHeaders, DimGet, DimPost, DimJSON:
		return true
	}
	return false
}

// MultiValue reports whether d selects a set of key=value pairs rather than
// a single value.
func (d Dimension) MultiValue() bool {
	switch d {
	case DimHeaders, DimGet, DimPost, DimJSON:
		return true
	}
	return false
}

// ParseDimension parses a dimension name, case-insensitively.
func ParseDimension(s string) (Dimension, error) {
	d := Dimension(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidDimension, s)
	}
	return d, nil
}

// ParseOrder parses a list of dimension names and completes it with
// ResolveOrder.
func ParseOrder(names []string) ([]Dimension, error) {
	order := make([]Dimension, 0, len(names))
	for _, n := range names {
		d, err := ParseDimension(n)
		if err != nil {
			return nil, err
		}
		order = append(order, d)
	}
	return ResolveOrder(order)
}

// ResolveOrder validates order and appends every omitted dimension after the
// supplied ones, in default relative order. A nil or empty order resolves to
// DefaultOrder.
func ResolveOrder(order []Dimension) ([]Dimension, error) {
	out := make([]Dimension, 0, len(defaultOrder))
	seen := make(map[Dimension]bool, len(defaultOrder))

	for _, d := range order {
		if !d.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDimension, d)
		}
		if seen[d] {
			return nil, fmt.Errorf("%w: %q appears more than once", ErrInvalidDimension, d)
		}
		seen[d] = true
		out = append(out, d)
	}

	for _, d := range defaultOrder {
		if !seen[d] {
			out = append(out, d)
		}
	}
	return out, nil
}
