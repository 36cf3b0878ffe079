package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// OpMeta describes one cached operation for telemetry purposes.
type OpMeta struct {
	Name   string // operation name, e.g. "execute" or "delete"
	Route  string // request path or route pattern (optional)
	Method string // request method (optional)
}

// SpanName returns the span name for this operation: pathcache.<name>.
func (m OpMeta) SpanName() string {
	return "pathcache." + m.Name
}

func (m OpMeta) attributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	attrs = append(attrs, attribute.String("pathcache.op", m.Name))
	if m.Route != "" {
		attrs = append(attrs, attribute.String("http.route", m.Route))
	}
	if m.Method != "" {
		attrs = append(attrs, attribute.String("http.request.method", m.Method))
	}
	return attrs
}

// Fields returns the operation as log fields.
func (m OpMeta) Fields() []Field {
	fields := []Field{{Key: "op", Value: m.Name}}
	if m.Route != "" {
		fields = append(fields, Field{Key: "route", Value: m.Route})
	}
	if m.Method != "" {
		fields = append(fields, Field{Key: "method", Value: m.Method})
	}
	return fields
}

// Tracer wraps OpenTelemetry tracing with operation-specific spans.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	StartSpan(ctx context.Context, op OpMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording err if non-nil.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer on top of an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, op OpMeta) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, op.SpanName(),
		trace.WithAttributes(op.attributes()...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// NopTracer returns a Tracer whose spans are never recorded.
func NopTracer() Tracer {
	return &tracerImpl{tracer: tracenoop.NewTracerProvider().Tracer("noop")}
}
