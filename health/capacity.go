package health

import (
	"context"
	"fmt"
)

// Sizer reports how many entries a store holds.
type Sizer interface {
	Len() int
}

// CapacityCheckerConfig configures the capacity health checker.
type CapacityCheckerConfig struct {
	// MaxEntries is the store's capacity. Zero disables the check.
	MaxEntries int

	// WarningThreshold is the fill ratio that triggers degraded status.
	// Value should be between 0 and 1. Default: 0.8 (80%)
	WarningThreshold float64

	// CriticalThreshold is the fill ratio that triggers unhealthy status.
	// Value should be between 0 and 1. Default: 0.95 (95%)
	CriticalThreshold float64
}

// CapacityChecker checks how full a bounded in-memory store is. A store at
// capacity evicts entries that prefix deletes would otherwise find.
type CapacityChecker struct {
	sizer  Sizer
	config CapacityCheckerConfig
}

// NewCapacityChecker creates a capacity checker.
func NewCapacityChecker(sizer Sizer, config CapacityCheckerConfig) *CapacityChecker {
	if config.WarningThreshold <= 0 || config.WarningThreshold >= 1 {
		config.WarningThreshold = 0.8
	}
	if config.CriticalThreshold <= 0 || config.CriticalThreshold > 1 {
		config.CriticalThreshold = 0.95
	}
	if config.CriticalThreshold < config.WarningThreshold {
		config.CriticalThreshold = config.WarningThreshold
	}
	return &CapacityChecker{sizer: sizer, config: config}
}

// Name returns "capacity".
func (c *CapacityChecker) Name() string { return "capacity" }

// Check compares the entry count with the configured capacity.
func (c *CapacityChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	n := c.sizer.Len()
	details := map[string]any{"entries": n}
	if c.config.MaxEntries <= 0 {
		return Healthy("store is unbounded").WithDetails(details)
	}

	ratio := float64(n) / float64(c.config.MaxEntries)
	details["max_entries"] = c.config.MaxEntries
	details["usage_percent"] = ratio * 100

	switch {
	case ratio >= c.config.CriticalThreshold:
		return Unhealthy(fmt.Sprintf("store nearly full: %.1f%%", ratio*100), ErrCheckFailed).WithDetails(details)
	case ratio >= c.config.WarningThreshold:
		return Degraded(fmt.Sprintf("store filling up: %.1f%%", ratio*100)).WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("store usage normal: %.1f%%", ratio*100)).WithDetails(details)
	}
}
