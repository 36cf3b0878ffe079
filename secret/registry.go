package secret

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ProviderFactory creates a Provider from configuration.
type ProviderFactory func(cfg map[string]any) (Provider, error)

// Registry manages provider factories.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]ProviderFactory
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]ProviderFactory)}
}

// Register adds a provider factory.
func (r *Registry) Register(name string, factory ProviderFactory) error {
	if strings.TrimSpace(name) == "" || factory == nil {
		return errors.New("invalid provider registration")
	}
	name = strings.TrimSpace(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("secret provider %q already registered", name)
	}
	r.providers[name] = factory
	return nil
}

// Create instantiates a provider by name.
func (r *Registry) Create(name string, cfg map[string]any) (Provider, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("provider name is required")
	}

	r.mu.RLock()
	factory, ok := r.providers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("secret provider %q is not registered", name)
	}

	return factory(cfg)
}

// List returns registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in providers: "env" (config key
// "prefix") and "file" (config key "dir").
var DefaultRegistry = newDefaultRegistry()

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register("env", func(cfg map[string]any) (Provider, error) {
		return NewEnvProvider(stringOption(cfg, "prefix")), nil
	})
	_ = r.Register("file", func(cfg map[string]any) (Provider, error) {
		return NewFileProvider(stringOption(cfg, "dir")), nil
	})
	return r
}

func stringOption(cfg map[string]any, key string) string {
	s, _ := cfg[key].(string)
	return s
}

// NewResolverFromConfig creates each named provider from reg with its
// configuration and returns a resolver over them.
func NewResolverFromConfig(reg *Registry, strict bool, providers map[string]map[string]any) (*Resolver, error) {
	r := NewResolver(strict)
	for _, name := range sortedNames(providers) {
		p, err := reg.Create(name, providers[name])
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		r.Register(p)
	}
	return r, nil
}

func sortedNames(m map[string]map[string]any) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
