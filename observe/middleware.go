package observe

import (
	"context"
	"time"
)

// ComputeFunc produces the response a cache stores.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// Middleware wraps compute functions with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap returns a ComputeFunc safe for concurrent use.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
//   - Ownership: the returned bytes are passed through without modification.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Tracer returns the middleware's tracer.
func (m *Middleware) Tracer() Tracer { return m.tracer }

// Metrics returns the middleware's metrics recorder.
func (m *Middleware) Metrics() Metrics { return m.metrics }

// Logger returns the middleware's logger.
func (m *Middleware) Logger() Logger { return m.logger }

// Wrap instruments fn as the compute step of op.
func (m *Middleware) Wrap(op OpMeta, fn ComputeFunc) ComputeFunc {
	compute := op
	compute.Name = op.Name + ".compute"

	return func(ctx context.Context) ([]byte, error) {
		ctx, span := m.tracer.StartSpan(ctx, compute)
		start := time.Now()

		out, err := fn(ctx)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordCompute(ctx, op, duration, err)

		fields := append(op.Fields(), Field{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000})
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			m.logger.Error(ctx, "compute failed", fields...)
		} else {
			fields = append(fields, Field{Key: "bytes", Value: len(out)})
			m.logger.Debug(ctx, "compute completed", fields...)
		}

		return out, err
	}
}
