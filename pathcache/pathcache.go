package pathcache

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/pathcache/cache"
	"github.com/jonwraymond/pathcache/observe"
)

// ComputeFunc produces the response to cache.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// Config configures a PathCache. The zero value is usable.
type Config struct {
	// Namespace prefixes every identifier written to the store: cached
	// entries as well as the registry, lock, counter and deferred marks.
	Namespace string

	// Policy decides entry expiry. Default: cache.DefaultPolicy()
	Policy *cache.Policy

	Guard GuardConfig

	// DeferredTTL is the lifetime of deferred-deletion marks kept in the
	// store. Default: 60s
	DeferredTTL time.Duration
}

// Option configures a PathCache.
type Option func(*PathCache)

// WithConfig sets the configuration.
func WithConfig(cfg Config) Option {
	return func(p *PathCache) { p.cfg = cfg }
}

// WithNamespace prefixes every identifier written to the store.
func WithNamespace(ns string) Option {
	return func(p *PathCache) { p.cfg.Namespace = ns }
}

// WithPolicy sets the expiry policy.
func WithPolicy(policy cache.Policy) Option {
	return func(p *PathCache) { p.cfg.Policy = &policy }
}

// WithIdentityProvider sets the provider CurrentUser resolves through.
func WithIdentityProvider(ip IdentityProvider) Option {
	return func(p *PathCache) { p.identity = ip }
}

// WithDeferredQueue replaces the store-backed deferred-deletion queue.
func WithDeferredQueue(q DeferredQueue) Option {
	return func(p *PathCache) { p.deferred = q }
}

// WithLogger sets the logger. Default: no logging.
func WithLogger(l observe.Logger) Option {
	return func(p *PathCache) { p.logger = l }
}

// WithMetrics sets the metrics recorder. Default: no metrics.
func WithMetrics(m observe.Metrics) Option {
	return func(p *PathCache) { p.metrics = m }
}

// WithTracer sets the tracer. Default: no tracing.
func WithTracer(t observe.Tracer) Option {
	return func(p *PathCache) { p.tracer = t }
}

// WithObserver takes logger, metrics and tracer from obs.
func WithObserver(obs observe.Observer) Option {
	return func(p *PathCache) {
		if obs == nil {
			return
		}
		p.logger = obs.Logger()
		p.tracer = observe.NewTracer(obs.Tracer())
		if m, err := observe.NewMetrics(obs.Meter()); err == nil {
			p.metrics = m
		}
	}
}

// PathCache memoizes responses under keys composed from request dimensions
// and evicts them by key-path prefix.
type PathCache struct {
	store    cache.Cache
	cfg      Config
	policy   cache.Policy
	identity IdentityProvider
	deferred DeferredQueue

	logger  observe.Logger
	metrics observe.Metrics
	tracer  observe.Tracer
	compute *observe.Middleware

	registry *Registry
	composer *Composer
}

// New returns a PathCache storing entries and its key registry in store.
func New(store cache.Cache, opts ...Option) (*PathCache, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	p := &PathCache{store: store}
	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = observe.NopLogger()
	}
	if p.metrics == nil {
		p.metrics = observe.NopMetrics()
	}
	if p.tracer == nil {
		p.tracer = observe.NopTracer()
	}
	p.logger = p.logger.With(observe.F("component", "pathcache"))

	p.policy = cache.DefaultPolicy()
	if p.cfg.Policy != nil {
		p.policy = *p.cfg.Policy
	}
	if p.deferred == nil {
		p.deferred = NewStoreDeferred(store, p.cfg.Namespace, p.cfg.DeferredTTL)
	}

	p.compute = observe.NewMiddleware(p.tracer, p.metrics, p.logger)
	p.registry = &Registry{
		guard: newGuard(store, p.cfg.Namespace, p.cfg.Guard, p.logger, p.metrics),
	}
	p.composer = &Composer{
		registry: p.registry,
		identity: p.identity,
		logger:   p.logger,
	}
	return p, nil
}

// Registry returns the key registry.
func (p *PathCache) Registry() *Registry { return p.registry }

// Composer returns the key composer.
func (p *PathCache) Composer() *Composer { return p.composer }

// Store returns the underlying store.
func (p *PathCache) Store() cache.Cache { return p.store }

// EntryID returns the store identifier the entry for key id lives under.
func (p *PathCache) EntryID(id string) string { return p.cfg.Namespace + id }

// Compose builds and registers the key for req under spec.
func (p *PathCache) Compose(ctx context.Context, req Request, spec KeySpec) (Key, error) {
	return p.composer.Compose(ctx, req, spec)
}

// Execute returns the cached response for req, computing and storing it on a
// miss.
//
// When the request cannot be turned into a key, compute runs without any
// store access and its result is not cached. A compute error is returned and
// nothing is stored. Store write failures are logged; the computed response
// is still returned.
func (p *PathCache) Execute(ctx context.Context, req Request, spec KeySpec, compute ComputeFunc) (out []byte, err error) {
	op := observe.OpMeta{Name: "execute", Route: req.Path(), Method: req.Method()}
	ctx, span := p.tracer.StartSpan(ctx, op)
	defer func() { p.tracer.EndSpan(span, err) }()

	run := p.compute.Wrap(op, observe.ComputeFunc(compute))

	ttl := p.policy.EffectiveTTL(spec.TTL)
	if ttl <= 0 {
		p.metrics.RecordLookup(ctx, op, observe.OutcomeBypass)
		return run(ctx)
	}

	key, err := p.composer.Compose(ctx, req, spec)
	if err != nil {
		if !errors.Is(err, ErrComposition) {
			return nil, err
		}
		p.logger.Warn(ctx, "cannot compose cache key, bypassing cache",
			append(op.Fields(), observe.F("error", err))...)
		p.metrics.RecordLookup(ctx, op, observe.OutcomeBypass)
		return run(ctx)
	}

	log := p.logger.With(observe.F("key", key.ID))
	entryID := p.EntryID(key.ID)

	if marked, err := p.deferred.Take(ctx, key.ID); err != nil {
		log.Warn(ctx, "deferred queue unavailable", observe.F("error", err))
	} else if marked {
		log.Debug(ctx, "evicting key marked for deferred deletion")
		if err := p.store.Delete(ctx, entryID); err != nil {
			log.Error(ctx, "failed to evict deferred key", observe.F("error", err))
		} else {
			p.metrics.RecordEvictions(ctx, 1)
		}
	}

	if cached, ok := p.store.Get(ctx, entryID); ok {
		log.Debug(ctx, "cache hit")
		p.metrics.RecordLookup(ctx, op, observe.OutcomeHit)
		return cached, nil
	}

	p.metrics.RecordLookup(ctx, op, observe.OutcomeMiss)
	log.Debug(ctx, "cache miss")

	out, err = run(ctx)
	if err != nil {
		return nil, err
	}

	if err := p.store.Set(ctx, entryID, out, ttl); err != nil {
		log.Error(ctx, "failed to store response", observe.F("error", err))
	}
	return out, nil
}
