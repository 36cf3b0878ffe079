package cache

import (
	"testing"
	"time"
)

func TestPolicy_DefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	if p.DefaultTTL != 60*time.Second {
		t.Errorf("DefaultPolicy().DefaultTTL = %v, want %v", p.DefaultTTL, 60*time.Second)
	}
	if p.MaxTTL != 24*time.Hour {
		t.Errorf("DefaultPolicy().MaxTTL = %v, want %v", p.MaxTTL, 24*time.Hour)
	}
	if !p.ShouldCache() {
		t.Error("DefaultPolicy().ShouldCache() = false, want true")
	}
}

func TestPolicy_NoCachePolicy(t *testing.T) {
	p := NoCachePolicy()

	if p.ShouldCache() {
		t.Error("NoCachePolicy().ShouldCache() = true, want false")
	}
	if got := p.EffectiveTTL(0); got != 0 {
		t.Errorf("NoCachePolicy().EffectiveTTL(0) = %v, want 0", got)
	}
}

func TestPolicy_TTLMatrix(t *testing.T) {
	tests := []struct {
		name       string
		defaultTTL time.Duration
		maxTTL     time.Duration
		override   time.Duration
		want       time.Duration
	}{
		{"no override uses default", time.Minute, 10 * time.Minute, 0, time.Minute},
		{"override within max", time.Minute, 10 * time.Minute, 7 * time.Minute, 7 * time.Minute},
		{"override exceeds max, clamped", time.Minute, 10 * time.Minute, 20 * time.Minute, 10 * time.Minute},
		{"default exceeds max, clamped", 15 * time.Minute, 10 * time.Minute, 0, 10 * time.Minute},
		{"no max TTL, override used as-is", time.Minute, 0, time.Hour, time.Hour},
		{"all zeros means no caching", 0, 0, 0, 0},
		{"override enables caching when default is zero", 0, 10 * time.Minute, 15 * time.Second, 15 * time.Second},
		{"negative override falls back to default", time.Minute, 10 * time.Minute, -time.Minute, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Policy{DefaultTTL: tt.defaultTTL, MaxTTL: tt.maxTTL}
			if got := p.EffectiveTTL(tt.override); got != tt.want {
				t.Errorf("EffectiveTTL(%v) = %v, want %v", tt.override, got, tt.want)
			}
		})
	}
}
