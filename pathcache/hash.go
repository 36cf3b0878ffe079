package pathcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Hash returns the hex encoding of the first 16 bytes of SHA-256(s).
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}

// emptyHash is the segment of an excluded dimension.
var emptyHash = Hash("")

func hashPath(segments []string) string {
	return Hash(strings.Join(segments, "/"))
}

// cumulativeSegments turns the selected pairs of a multi-value dimension into
// nested segments: segment i is the hash of the first i+1 pairs.
func cumulativeSegments(pairs []Pair) []string {
	if len(pairs) == 0 {
		return []string{emptyHash}
	}
	segments := make([]string, 0, len(pairs))
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(p.Key)
		b.WriteByte('=')
		b.WriteString(p.Value)
		segments = append(segments, Hash(b.String()))
	}
	return segments
}

// jsonValue renders a decoded JSON value the way it is keyed: strings
// verbatim, everything else as canonical JSON.
func jsonValue(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := canonicalize(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// canonicalize produces a deterministic JSON representation of v.
// Maps are sorted by key.
func canonicalize(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("canonicalize %T: %w", v, err)
		}
		return b, nil
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, '}'), nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}
		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, ']'), nil
}
