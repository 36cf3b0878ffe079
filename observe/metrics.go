package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome classifies a cache lookup.
type Outcome string

const (
	OutcomeHit    Outcome = "hit"
	OutcomeMiss   Outcome = "miss"
	OutcomeBypass Outcome = "bypass"
)

// Metric instrument names.
const (
	MetricLookups         = "pathcache.lookups"
	MetricEvictions       = "pathcache.evictions"
	MetricSlowReads       = "pathcache.registry.slow_reads"
	MetricFlushes         = "pathcache.registry.flushes"
	MetricComputeDuration = "pathcache.compute.duration_ms"
)

// Metrics records cache activity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordLookup counts one orchestrated lookup and how it resolved.
	RecordLookup(ctx context.Context, op OpMeta, outcome Outcome)

	// RecordCompute records the duration of a compute call made on a miss
	// or a bypass.
	RecordCompute(ctx context.Context, op OpMeta, duration time.Duration, err error)

	// RecordEvictions counts entries removed from the store by a deletion.
	RecordEvictions(ctx context.Context, n int)

	// RecordSlowRead counts one registry read above the latency threshold.
	RecordSlowRead(ctx context.Context, duration time.Duration)

	// RecordFlush counts a registry reset. reason is "self_heal" or "delete_all".
	RecordFlush(ctx context.Context, reason string)
}

type cacheMetrics struct {
	lookups   metric.Int64Counter
	evictions metric.Int64Counter
	slowReads metric.Int64Counter
	flushes   metric.Int64Counter
	compute   metric.Float64Histogram
}

// NewMetrics creates the cache instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	lookups, err := meter.Int64Counter(MetricLookups,
		metric.WithDescription("Cache lookups by outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	evictions, err := meter.Int64Counter(MetricEvictions,
		metric.WithDescription("Entries evicted by prefix deletion"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	slowReads, err := meter.Int64Counter(MetricSlowReads,
		metric.WithDescription("Key registry reads above the latency threshold"),
		metric.WithUnit("{read}"),
	)
	if err != nil {
		return nil, err
	}

	flushes, err := meter.Int64Counter(MetricFlushes,
		metric.WithDescription("Key registry resets"),
		metric.WithUnit("{flush}"),
	)
	if err != nil {
		return nil, err
	}

	compute, err := meter.Float64Histogram(MetricComputeDuration,
		metric.WithDescription("Compute duration on cache miss or bypass"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &cacheMetrics{
		lookups:   lookups,
		evictions: evictions,
		slowReads: slowReads,
		flushes:   flushes,
		compute:   compute,
	}, nil
}

func (m *cacheMetrics) RecordLookup(ctx context.Context, op OpMeta, outcome Outcome) {
	attrs := append(op.attributes(), attribute.String("outcome", string(outcome)))
	m.lookups.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *cacheMetrics) RecordCompute(ctx context.Context, op OpMeta, duration time.Duration, err error) {
	attrs := append(op.attributes(), attribute.Bool("error", err != nil))
	m.compute.Record(ctx, float64(duration.Microseconds())/1000, metric.WithAttributes(attrs...))
}

func (m *cacheMetrics) RecordEvictions(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	m.evictions.Add(ctx, int64(n))
}

func (m *cacheMetrics) RecordSlowRead(ctx context.Context, _ time.Duration) {
	m.slowReads.Add(ctx, 1)
}

func (m *cacheMetrics) RecordFlush(ctx context.Context, reason string) {
	m.flushes.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return noopMetrics{} }

type noopMetrics struct{}

func (noopMetrics) RecordLookup(context.Context, OpMeta, Outcome)                {}
func (noopMetrics) RecordCompute(context.Context, OpMeta, time.Duration, error) {}
func (noopMetrics) RecordEvictions(context.Context, int)                        {}
func (noopMetrics) RecordSlowRead(context.Context, time.Duration)               {}
func (noopMetrics) RecordFlush(context.Context, string)                         {}
