package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewTimeout_Default(t *testing.T) {
	if got := NewTimeout(TimeoutConfig{}).Config().Timeout; got != time.Second {
		t.Errorf("Timeout = %v, want 1s", got)
	}
}

func TestTimeout_Execute(t *testing.T) {
	testErr := errors.New("store error")

	tests := []struct {
		name    string
		timeout time.Duration
		op      func(context.Context) error
		want    error
	}{
		{"success", time.Second, func(context.Context) error { return nil }, nil},
		{"error passes through", time.Second, func(context.Context) error { return testErr }, testErr},
		{"deadline", 10 * time.Millisecond, func(context.Context) error {
			time.Sleep(100 * time.Millisecond)
			return nil
		}, ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewTimeout(TimeoutConfig{Timeout: tt.timeout}).Execute(context.Background(), tt.op)
			if !errors.Is(err, tt.want) && err != tt.want {
				t.Errorf("Execute() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTimeout_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewTimeout(TimeoutConfig{Timeout: time.Second}).Execute(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}
