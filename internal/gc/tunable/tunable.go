// Package tunable holds the process-wide collector tunables read by the
// allocation trace guard.
package tunable

import (
	"sync/atomic"
	"time"
)

// DefaultAllocationStallThreshold is the stall warning threshold used
// when none is configured.
const DefaultAllocationStallThreshold = 10 * time.Millisecond

var (
	allocationTrace          atomic.Bool
	allocationStallThreshold atomic.Int64 // microseconds
)

func init() {
	allocationStallThreshold.Store(DefaultAllocationStallThreshold.Microseconds())
}

// Settings is a point-in-time copy of the tunables.
type Settings struct {
	AllocationTrace          bool          `json:"allocationTrace"`
	AllocationStallThreshold time.Duration `json:"allocationStallThreshold"`
}

// AllocationTrace reports whether allocation latency sampling is on.
func AllocationTrace() bool { return allocationTrace.Load() }

// SetAllocationTrace turns allocation latency sampling on or off.
func SetAllocationTrace(on bool) { allocationTrace.Store(on) }

// AllocationStallThresholdMicros returns the stall warning threshold in
// microseconds.
func AllocationStallThresholdMicros() int64 { return allocationStallThreshold.Load() }

// SetAllocationStallThreshold sets the stall warning threshold. Precision
// below one microsecond is dropped.
func SetAllocationStallThreshold(d time.Duration) {
	allocationStallThreshold.Store(d.Microseconds())
}

// Snapshot returns the current settings.
func Snapshot() Settings {
	return Settings{
		AllocationTrace:          AllocationTrace(),
		AllocationStallThreshold: time.Duration(AllocationStallThresholdMicros()) * time.Microsecond,
	}
}

// Apply installs s and returns the settings that were in effect before,
// so callers can put them back with Restore.
func Apply(s Settings) Settings {
	prev := Snapshot()
	SetAllocationTrace(s.AllocationTrace)
	SetAllocationStallThreshold(s.AllocationStallThreshold)
	return prev
}

// Restore is Apply without the return value, convenient in defers.
func Restore(s Settings) { Apply(s) }
