package secret

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

const refPrefix = "secretref:"

// refPattern matches a reference embedded in a longer value. The reference
// runs to the next whitespace.
var refPattern = regexp.MustCompile(`secretref:([^:\s]+):(\S+)`)

// Resolver turns configuration values into their final form: environment
// variables are expanded first, then secret references are replaced by
// whatever their provider returns.
//
// In strict mode a provider returning "" is an error, so a mistyped secret
// never silently becomes an empty password.
type Resolver struct {
	mu        sync.RWMutex
	providers map[string]Provider
	strict    bool
}

// NewResolver creates a resolver over providers, keyed by their Name.
func NewResolver(strict bool, providers ...Provider) *Resolver {
	r := &Resolver{providers: make(map[string]Provider, len(providers)), strict: strict}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a provider.
func (r *Resolver) Register(p Provider) {
	if r == nil || p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.providers == nil {
		r.providers = make(map[string]Provider)
	}
	r.providers[p.Name()] = p
}

// Close closes every registered provider.
func (r *Resolver) Close() error {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for name, p := range r.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// ResolveValue expands the environment in value and resolves its secret
// references. A nil Resolver only expands the environment.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandEnvStrict(value)
	if err != nil || r == nil {
		return expanded, err
	}

	if provider, ref, ok := ParseSecretRef(expanded); ok {
		return r.lookup(ctx, provider, ref)
	}

	var firstErr error
	out := refPattern.ReplaceAllStringFunc(expanded, func(m string) string {
		if firstErr != nil {
			return m
		}
		sub := refPattern.FindStringSubmatch(m)
		v, err := r.lookup(ctx, sub[1], sub[2])
		if err != nil {
			firstErr = err
			return m
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// ResolveSlice resolves each value in values.
func (r *Resolver) ResolveSlice(ctx context.Context, values []string) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		resolved, err := r.ResolveValue(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("resolve [%d]: %w", i, err)
		}
		out[i] = resolved
	}
	return out, nil
}

// ResolveMap resolves each value in input.
func (r *Resolver) ResolveMap(ctx context.Context, input map[string]string) (map[string]string, error) {
	if input == nil {
		return nil, nil
	}
	out := make(map[string]string, len(input))
	for k, v := range input {
		resolved, err := r.ResolveValue(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", k, err)
		}
		out[k] = resolved
	}
	return out, nil
}

// ParseSecretRef splits a value that is exactly one reference:
//
//	secretref:<provider>:<ref>
//
// The ref may itself contain colons.
func ParseSecretRef(value string) (provider, ref string, ok bool) {
	rest, found := strings.CutPrefix(value, refPrefix)
	if !found {
		return "", "", false
	}
	provider, ref, found = strings.Cut(rest, ":")
	if !found || provider == "" || ref == "" {
		return "", "", false
	}
	return provider, ref, true
}

func (r *Resolver) lookup(ctx context.Context, providerName, ref string) (string, error) {
	r.mu.RLock()
	p, ok := r.providers[providerName]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("secret provider %q is not registered", providerName)
	}

	v, err := p.Resolve(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("secret %s:%s: %w", providerName, ref, err)
	}
	if r.strict && v == "" {
		return "", fmt.Errorf("secret %s:%s resolved to an empty value", providerName, ref)
	}
	return v, nil
}
