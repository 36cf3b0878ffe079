package secret

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

var bracedVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnvStrict expands environment variables in s.
//
// `$VAR` and `${VAR}` are expanded; a missing `${VAR}` is an error while a
// missing `$VAR` expands to "". `$$` emits a literal `$`.
func ExpandEnvStrict(s string) (string, error) {
	var missing []string
	seen := make(map[string]bool)
	for _, m := range bracedVarPattern.FindAllStringSubmatchIndex(s, -1) {
		// ${VAR} preceded by an odd run of '$' is escaped.
		if escapedAt(s, m[0]) {
			continue
		}
		name := s[m[2]:m[3]]
		if _, ok := os.LookupEnv(name); !ok && !seen[name] {
			seen[name] = true
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return os.Expand(s, func(name string) string {
		if name == "$" {
			return "$"
		}
		return os.Getenv(name)
	}), nil
}

// escapedAt reports whether the '$' at i is the second half of a "$$".
func escapedAt(s string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && s[j] == '$'; j-- {
		n++
	}
	return n%2 == 1
}
