package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumByAttr(t *testing.T, m metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s is %T, want Sum[int64]", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if key == "" {
			total += dp.Value
			continue
		}
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestMetrics_RecordLookup(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	op := OpMeta{Name: "execute", Route: "/messages", Method: "GET"}

	m.RecordLookup(ctx, op, OutcomeHit)
	m.RecordLookup(ctx, op, OutcomeHit)
	m.RecordLookup(ctx, op, OutcomeMiss)
	m.RecordLookup(ctx, op, OutcomeBypass)

	got := collect(t, reader)[MetricLookups]
	if n := sumByAttr(t, got, "outcome", "hit"); n != 2 {
		t.Errorf("hits = %d, want 2", n)
	}
	if n := sumByAttr(t, got, "outcome", "miss"); n != 1 {
		t.Errorf("misses = %d, want 1", n)
	}
	if n := sumByAttr(t, got, "outcome", "bypass"); n != 1 {
		t.Errorf("bypasses = %d, want 1", n)
	}
	if n := sumByAttr(t, got, "http.route", "/messages"); n != 4 {
		t.Errorf("lookups on /messages = %d, want 4", n)
	}
}

func TestMetrics_RegistryCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordEvictions(ctx, 3)
	m.RecordEvictions(ctx, 0)
	m.RecordSlowRead(ctx, 20*time.Millisecond)
	m.RecordFlush(ctx, "self_heal")
	m.RecordFlush(ctx, "delete_all")

	got := collect(t, reader)
	if n := sumByAttr(t, got[MetricEvictions], "", ""); n != 3 {
		t.Errorf("evictions = %d, want 3", n)
	}
	if n := sumByAttr(t, got[MetricSlowReads], "", ""); n != 1 {
		t.Errorf("slow reads = %d, want 1", n)
	}
	if n := sumByAttr(t, got[MetricFlushes], "reason", "self_heal"); n != 1 {
		t.Errorf("self_heal flushes = %d, want 1", n)
	}
}

func TestMetrics_RecordCompute(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCompute(ctx, OpMeta{Name: "execute"}, 5*time.Millisecond, nil)
	m.RecordCompute(ctx, OpMeta{Name: "execute"}, 7*time.Millisecond, errors.New("x"))

	got := collect(t, reader)[MetricComputeDuration]
	hist, ok := got.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("%s is %T, want Histogram[float64]", MetricComputeDuration, got.Data)
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 2 {
		t.Errorf("histogram count = %d, want 2", count)
	}
}

func TestNopMetrics(t *testing.T) {
	m := NopMetrics()
	ctx := context.Background()
	m.RecordLookup(ctx, OpMeta{}, OutcomeHit)
	m.RecordCompute(ctx, OpMeta{}, time.Second, nil)
	m.RecordEvictions(ctx, 1)
	m.RecordSlowRead(ctx, time.Second)
	m.RecordFlush(ctx, "delete_all")
}
