// Package metrics collects detector-side counters for the verdict pipeline.
package metrics

import (
	"sync/atomic"
)

// Collector accumulates verdict pipeline counters. All methods are safe for
// concurrent use.
type Collector struct {
	checks           uint64
	dga              uint64
	notDGA           uint64
	unknown          uint64
	overridesApplied uint64
	overrideWrites   uint64
	storeErrors      uint64
	modelErrors      uint64
	invalidDomains   uint64
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) IncChecks() { atomic.AddUint64(&c.checks, 1) }

// IncVerdict bumps the counter matching a final verdict string.
func (c *Collector) IncVerdict(verdict string) {
	switch verdict {
	case "DGA":
		atomic.AddUint64(&c.dga, 1)
	case "NOT_DGA":
		atomic.AddUint64(&c.notDGA, 1)
	default:
		atomic.AddUint64(&c.unknown, 1)
	}
}

func (c *Collector) IncOverrideApplied() { atomic.AddUint64(&c.overridesApplied, 1) }
func (c *Collector) IncOverrideWrite()   { atomic.AddUint64(&c.overrideWrites, 1) }
func (c *Collector) IncStoreError()      { atomic.AddUint64(&c.storeErrors, 1) }
func (c *Collector) IncModelError()      { atomic.AddUint64(&c.modelErrors, 1) }
func (c *Collector) IncInvalidDomain()   { atomic.AddUint64(&c.invalidDomains, 1) }

// Stats is a point-in-time snapshot of the counters.
type Stats struct {
	Checks           uint64 `json:"checks"`
	DGA              uint64 `json:"dga"`
	NotDGA           uint64 `json:"not_dga"`
	Unknown          uint64 `json:"unknown"`
	OverridesApplied uint64 `json:"overrides_applied"`
	OverrideWrites   uint64 `json:"override_writes"`
	StoreErrors      uint64 `json:"store_errors"`
	ModelErrors      uint64 `json:"model_errors"`
	InvalidDomains   uint64 `json:"invalid_domains"`
}

// GetStats snapshots all counters.
func (c *Collector) GetStats() Stats {
	return Stats{
		Checks:           atomic.LoadUint64(&c.checks),
		DGA:              atomic.LoadUint64(&c.dga),
		NotDGA:           atomic.LoadUint64(&c.notDGA),
		Unknown:          atomic.LoadUint64(&c.unknown),
		OverridesApplied: atomic.LoadUint64(&c.overridesApplied),
		OverrideWrites:   atomic.LoadUint64(&c.overrideWrites),
		StoreErrors:      atomic.LoadUint64(&c.storeErrors),
		ModelErrors:      atomic.LoadUint64(&c.modelErrors),
		InvalidDomains:   atomic.LoadUint64(&c.invalidDomains),
	}
}
