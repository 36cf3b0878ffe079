package observe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/pathcache/observe/exporters"
)

// Config describes the telemetry of one service. Disabled subsystems get
// no-op implementations and are not validated.
type Config struct {
	ServiceName string
	Version     string
	Tracing     TracingConfig
	Metrics     MetricsConfig
	Logging     LoggingConfig
}

// TracingConfig selects the span exporter and sampling ratio.
type TracingConfig struct {
	Enabled  bool
	Exporter string // otlp|jaeger|stdout|none

	// SamplePct is the fraction of traces kept, from 0 to 1.
	SamplePct float64

	// Writer receives stdout spans. Default: os.Stdout
	Writer io.Writer
}

// MetricsConfig selects the metric reader.
type MetricsConfig struct {
	Enabled  bool
	Exporter string // otlp|prometheus|stdout|none

	// Registerer receives the prometheus collector.
	// Default: prometheus.DefaultRegisterer
	Registerer prometheus.Registerer

	// Writer receives stdout metrics. Default: os.Stdout
	Writer io.Writer
}

// LoggingConfig configures the JSON logger.
type LoggingConfig struct {
	Enabled bool
	Level   string // debug|info|warn|error

	// Writer receives log lines. Default: os.Stderr
	Writer io.Writer
}

var (
	tracingExporters = []string{"", "none", "stdout", "otlp", "jaeger"}
	metricsExporters = []string{"", "none", "stdout", "otlp", "prometheus"}
	logLevels        = []string{"", "debug", "info", "warn", "error"}
)

// Validate reports the first invalid setting of an enabled subsystem.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return ErrMissingServiceName
	}
	if t := c.Tracing; t.Enabled {
		if !slices.Contains(tracingExporters, t.Exporter) {
			return fmt.Errorf("%w: %q", ErrInvalidTracingExporter, t.Exporter)
		}
		if t.SamplePct < MinSamplePct || t.SamplePct > MaxSamplePct {
			return fmt.Errorf("%w: got %f", ErrInvalidSamplePct, t.SamplePct)
		}
	}
	if m := c.Metrics; m.Enabled && !slices.Contains(metricsExporters, m.Exporter) {
		return fmt.Errorf("%w: %q", ErrInvalidMetricsExporter, m.Exporter)
	}
	if l := c.Logging; l.Enabled && !slices.Contains(logLevels, l.Level) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, l.Level)
	}
	return nil
}

// Observer hands out the telemetry primitives of one service.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Shutdown must honor cancellation/deadlines.
// - Errors: Shutdown flushes every provider and joins their errors.
type Observer interface {
	Tracer() trace.Tracer
	Meter() metric.Meter
	Logger() Logger

	// Shutdown flushes and stops all telemetry providers.
	Shutdown(ctx context.Context) error
}

// Logger is the structured logger every pathcache package accepts.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: logging is best-effort and never panics.
type Logger interface {
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)

	// With returns a logger that adds fields to every entry.
	With(fields ...Field) Logger
}

// Field is one key/value pair of a log entry.
type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

type observer struct {
	tracer trace.Tracer
	meter  metric.Meter
	logger Logger
	tp     *sdktrace.TracerProvider
	mp     *sdkmetric.MeterProvider
}

// NewObserver validates cfg and builds the enabled providers. Enabled
// providers are also installed as the otel globals.
func NewObserver(ctx context.Context, cfg Config) (Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	obs := &observer{
		tracer: tracenoop.NewTracerProvider().Tracer("noop"),
		meter:  noop.NewMeterProvider().Meter("noop"),
		logger: NopLogger(),
	}

	if cfg.Tracing.Enabled {
		if obs.tp, err = newTracerProvider(ctx, cfg, res); err != nil {
			return nil, fmt.Errorf("failed to setup tracing: %w", err)
		}
		obs.tracer = obs.tp.Tracer(cfg.ServiceName)
	}

	if cfg.Metrics.Enabled {
		if obs.mp, err = newMeterProvider(ctx, cfg, res); err != nil {
			_ = obs.Shutdown(ctx)
			return nil, fmt.Errorf("failed to setup metrics: %w", err)
		}
		obs.meter = obs.mp.Meter(cfg.ServiceName)
	}

	if cfg.Logging.Enabled {
		if cfg.Logging.Writer != nil {
			obs.logger = NewLoggerWithWriter(cfg.Logging.Level, cfg.Logging.Writer)
		} else {
			obs.logger = NewLogger(cfg.Logging.Level)
		}
	}

	return obs, nil
}

func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exp, err := exporters.NewTracingExporter(ctx, cfg.Tracing.Exporter, exporters.WithWriter(cfg.Tracing.Writer))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	sampler := sdktrace.TraceIDRatioBased(cfg.Tracing.SamplePct)
	switch {
	case cfg.Tracing.SamplePct >= 1:
		sampler = sdktrace.AlwaysSample()
	case cfg.Tracing.SamplePct <= 0:
		sampler = sdktrace.NeverSample()
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res), sdktrace.WithSampler(sampler)}
	if exp != nil {
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp, nil
}

func newMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	reader, err := exporters.NewMetricsReader(ctx, cfg.Metrics.Exporter,
		exporters.WithWriter(cfg.Metrics.Writer),
		exporters.WithRegisterer(cfg.Metrics.Registerer))
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics reader: %w", err)
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if reader != nil {
		opts = append(opts, sdkmetric.WithReader(reader))
	}
	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	return mp, nil
}

func (o *observer) Tracer() trace.Tracer { return o.tracer }
func (o *observer) Meter() metric.Meter  { return o.meter }
func (o *observer) Logger() Logger       { return o.logger }

func (o *observer) Shutdown(ctx context.Context) error {
	var errs []error
	if o.tp != nil {
		if err := o.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	if o.mp != nil {
		if err := o.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// NopLogger returns a logger that discards everything.
func NopLogger() Logger { return noopLogger{} }

type noopLogger struct{}

func (noopLogger) Info(context.Context, string, ...Field)  {}
func (noopLogger) Warn(context.Context, string, ...Field)  {}
func (noopLogger) Error(context.Context, string, ...Field) {}
func (noopLogger) Debug(context.Context, string, ...Field) {}
func (l noopLogger) With(...Field) Logger                  { return l }
