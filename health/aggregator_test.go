package health

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func fixed(name string, r Result) Checker {
	return NewCheckerFunc(name, func(context.Context) Result { return r })
}

func TestAggregator_Registration(t *testing.T) {
	agg := NewAggregator()
	agg.Register("store", fixed("store", Healthy("ok")))
	agg.Register("registry", fixed("registry", Healthy("ok")))
	agg.Register("store", fixed("store", Degraded("replaced")))

	if got := agg.CheckerNames(); !reflect.DeepEqual(got, []string{"store", "registry"}) {
		t.Errorf("CheckerNames() = %v", got)
	}
	if r, err := agg.Check(context.Background(), "store"); err != nil || r.Message != "replaced" {
		t.Errorf("Check(store) = (%+v, %v)", r, err)
	}

	agg.Unregister("store")
	if got := agg.CheckerNames(); !reflect.DeepEqual(got, []string{"registry"}) {
		t.Errorf("CheckerNames() after Unregister = %v", got)
	}
	if _, err := agg.Check(context.Background(), "store"); !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("Check(removed) error = %v", err)
	}
}

func TestAggregator_CheckAll(t *testing.T) {
	agg := NewAggregator()
	agg.Register("a", fixed("a", Healthy("ok")))
	agg.Register("b", fixed("b", Degraded("slow")))

	results := agg.CheckAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("results = %v", results)
	}
	if results["b"].Status != StatusDegraded || results["a"].Duration < 0 {
		t.Errorf("results = %+v", results)
	}
	if got := agg.OverallStatus(results); got != StatusDegraded {
		t.Errorf("OverallStatus() = %v, want degraded", got)
	}

	if got := NewAggregator().CheckAll(context.Background()); len(got) != 0 {
		t.Errorf("empty aggregator results = %v", got)
	}
}

func TestAggregator_OverallStatus(t *testing.T) {
	agg := NewAggregator()
	tests := []struct {
		name    string
		results map[string]Result
		want    Status
	}{
		{name: "none", want: StatusHealthy},
		{name: "all healthy", results: map[string]Result{"a": Healthy(""), "b": Healthy("")}, want: StatusHealthy},
		{name: "degraded wins over healthy", results: map[string]Result{"a": Healthy(""), "b": Degraded("")}, want: StatusDegraded},
		{name: "unhealthy wins", results: map[string]Result{"a": Degraded(""), "b": Unhealthy("", nil)}, want: StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := agg.OverallStatus(tt.results); got != tt.want {
				t.Errorf("OverallStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAggregator_Timeout(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Timeout: 20 * time.Millisecond})
	release := make(chan struct{})
	defer close(release)
	agg.Register("stuck", NewCheckerFunc("stuck", func(context.Context) Result {
		<-release
		return Healthy("late")
	}))

	start := time.Now()
	results := agg.CheckAll(context.Background())
	if time.Since(start) > time.Second {
		t.Error("CheckAll did not honor the timeout")
	}
	if r := results["stuck"]; r.Status != StatusUnhealthy || !errors.Is(r.Error, ErrCheckTimeout) {
		t.Errorf("stuck result = %+v", r)
	}
}

func TestAggregator_MaxConcurrent(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{MaxConcurrent: 1})
	var running, peak atomic.Int64
	for _, name := range []string{"a", "b", "c", "d"} {
		agg.Register(name, NewCheckerFunc(name, func(context.Context) Result {
			n := running.Add(1)
			defer running.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			return Healthy("ok")
		}))
	}

	if got := agg.CheckAll(context.Background()); len(got) != 4 {
		t.Fatalf("results = %d, want 4", len(got))
	}
	if peak.Load() != 1 {
		t.Errorf("peak concurrency = %d, want 1", peak.Load())
	}
}
