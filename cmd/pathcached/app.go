package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonwraymond/pathcache/auth"
	"github.com/jonwraymond/pathcache/cache"
	"github.com/jonwraymond/pathcache/health"
	"github.com/jonwraymond/pathcache/observe"
	"github.com/jonwraymond/pathcache/pathcache"
	"github.com/jonwraymond/pathcache/resilience"
)

// app holds the wired components of a running pathcached.
type app struct {
	cfg     *Config
	obs     observe.Observer
	logger  observe.Logger
	metrics *prometheus.Registry

	store      cache.Cache
	closeStore func() error

	pc     *pathcache.PathCache
	auth   *auth.Provider
	health *health.Aggregator
}

// newApp wires the store, identity, cache and health checks described by cfg.
// Secrets in cfg must already be resolved.
func newApp(ctx context.Context, cfg *Config, logOut io.Writer) (*app, error) {
	a := &app{cfg: cfg, metrics: prometheus.NewRegistry()}

	obs, err := observe.NewObserver(ctx, observe.Config{
		ServiceName: "pathcached",
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   enabled(cfg.Observe.Tracing),
			Exporter:  cfg.Observe.Tracing,
			SamplePct: cfg.Observe.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:    enabled(cfg.Observe.Metrics),
			Exporter:   cfg.Observe.Metrics,
			Registerer: a.metrics,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   cfg.Observe.LogLevel,
			Writer:  logOut,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up observability: %w", err)
	}
	a.obs = obs
	a.logger = obs.Logger().With(observe.F("service", "pathcached"))

	mem, err := a.openStore(ctx)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}

	a.auth = newAuthProvider(cfg.Auth, a.logger)

	a.pc, err = pathcache.New(a.store,
		pathcache.WithNamespace(cfg.Namespace),
		pathcache.WithPolicy(cache.Policy{DefaultTTL: cfg.Cache.DefaultTTL, MaxTTL: cfg.Cache.MaxTTL}),
		pathcache.WithIdentityProvider(a.auth),
		pathcache.WithObserver(obs),
		pathcache.WithLogger(a.logger),
	)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	a.health = health.NewAggregator(health.AggregatorConfig{Timeout: 5 * time.Second})
	a.health.Register("store", health.NewStoreChecker(a.store, cfg.Namespace))
	a.health.Register("registry", health.NewRegistryChecker(a.pc.Registry()))
	if mem != nil {
		a.health.Register("capacity", health.NewCapacityChecker(mem, health.CapacityCheckerConfig{
			MaxEntries: cfg.Store.MaxEntries,
		}))
	}

	return a, nil
}

// openStore sets a.store to the configured backend behind a circuit breaker.
// The in-memory store is returned so its fill level can be checked.
func (a *app) openStore(ctx context.Context) (*cache.MemoryCache, error) {
	sc := a.cfg.Store

	var (
		inner cache.Cache
		mem   *cache.MemoryCache
	)
	switch sc.Backend {
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     sc.Redis.Addr,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		inner = rc
		a.closeStore = rc.Close
	default:
		mem = cache.NewMemoryCache(cache.MemoryConfig{
			MaxEntries:     sc.MaxEntries,
			PinnedPrefixes: []string{pathcache.ReservedPrefix(a.cfg.Namespace)},
		})
		inner = mem
	}

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		MaxFailures:  sc.MaxFailures,
		ResetTimeout: sc.ResetTimeout,
		OnStateChange: func(from, to resilience.State) {
			a.logger.Warn(context.Background(), "store circuit changed",
				observe.F("from", from.String()),
				observe.F("to", to.String()))
		},
	})
	a.store = cache.NewResilientCache(inner, resilience.NewExecutor(
		resilience.WithCircuitBreaker(cb),
		resilience.WithTimeout(sc.Timeout),
	))
	return mem, nil
}

func newAuthProvider(cfg AuthConfig, logger observe.Logger) *auth.Provider {
	var authenticators []auth.Authenticator
	if cfg.JWTSecret != "" {
		authenticators = append(authenticators, auth.NewJWTAuthenticator(
			auth.JWTConfig{Issuer: cfg.Issuer},
			auth.NewStaticKeyProvider([]byte(cfg.JWTSecret)),
		))
	}
	if len(cfg.APIKeys) > 0 {
		keys := auth.NewMemoryAPIKeyStore()
		for _, k := range cfg.APIKeys {
			keys.Add(&auth.APIKeyInfo{
				ID:        k.Principal,
				KeyHash:   auth.HashAPIKey(k.Key),
				Principal: k.Principal,
				Roles:     k.Roles,
			})
		}
		authenticators = append(authenticators, auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{}, keys))
	}

	opts := []auth.ProviderOption{auth.WithProviderLogger(logger)}
	if cfg.Anonymous {
		opts = append(opts, auth.WithAnonymous())
	}
	return auth.NewProvider(authenticators, opts...)
}

// Close releases the store and flushes telemetry.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.closeStore != nil {
		if err := a.closeStore(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if a.obs != nil {
		if err := a.obs.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func enabled(exporter string) bool {
	return exporter != "" && exporter != "none"
}
