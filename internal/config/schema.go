// Package config parses and validates simulation files.
package config

import (
	"time"
)

// SimulationConfig is the root of a simulation file.
//
// Example YAML:
//
//	name: "steady allocation"
//	simulation:
//	  mode: concurrent
//	  duration: 10s
//	heap:
//	  words: 1048576
//	  triggerRatio: 0.6
//	mutators:
//	  count: 4
//	  allocRate: 2000
//	tunables:
//	  allocationTrace: true
//	  allocationStallThreshold: 5ms
//	thresholds:
//	  pause: ["p99 < 10ms"]
type SimulationConfig struct {
	// Name of the run (for reporting)
	Name string `json:"name" yaml:"name"`

	// Description of the run (optional)
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Simulation SimulationSettings `json:"simulation" yaml:"simulation"`
	Heap       HeapConfig         `json:"heap,omitempty" yaml:"heap,omitempty"`
	Mutators   MutatorConfig      `json:"mutators,omitempty" yaml:"mutators,omitempty"`
	Workers    WorkerConfig       `json:"workers,omitempty" yaml:"workers,omitempty"`
	Collector  CollectorConfig    `json:"collector,omitempty" yaml:"collector,omitempty"`
	Tunables   TunablesConfig     `json:"tunables,omitempty" yaml:"tunables,omitempty"`

	// Thresholds define pass/fail criteria for the run
	Thresholds *ThresholdsConfig `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// SimulationSettings controls the run as a whole.
type SimulationSettings struct {
	// Mode is the collector strategy: "concurrent", "degenerated", "full"
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`

	// Duration is how long mutators run
	Duration Duration `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Seed makes allocation sizes reproducible
	Seed int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// HeapConfig sizes the simulated heap.
type HeapConfig struct {
	// Words is the heap capacity in words
	Words uint64 `json:"words,omitempty" yaml:"words,omitempty"`

	// TriggerRatio is the occupancy that starts a concurrent cycle
	TriggerRatio float64 `json:"triggerRatio,omitempty" yaml:"triggerRatio,omitempty"`

	// LiveRatio is the share of used words surviving a cycle
	LiveRatio *float64 `json:"liveRatio,omitempty" yaml:"liveRatio,omitempty"`

	// EvacRatio is the share of live words copied during evacuation
	EvacRatio *float64 `json:"evacRatio,omitempty" yaml:"evacRatio,omitempty"`

	// UncommitDelay releases committed memory after this much idle time
	UncommitDelay Duration `json:"uncommitDelay,omitempty" yaml:"uncommitDelay,omitempty"`
}

// MutatorConfig shapes the allocation load.
type MutatorConfig struct {
	Count int `json:"count,omitempty" yaml:"count,omitempty"`

	// AllocRate is allocations per second per mutator
	AllocRate float64 `json:"allocRate,omitempty" yaml:"allocRate,omitempty"`

	MinWords uint64 `json:"minWords,omitempty" yaml:"minWords,omitempty"`
	MaxWords uint64 `json:"maxWords,omitempty" yaml:"maxWords,omitempty"`

	// TLABFraction is the share of requests that are TLAB refills
	TLABFraction *float64 `json:"tlabFraction,omitempty" yaml:"tlabFraction,omitempty"`

	// MaxRetries is how many collections a stalled request waits for
	MaxRetries int `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
}

// WorkerConfig sizes the GC worker pool.
type WorkerConfig struct {
	Parallel   int `json:"parallel,omitempty" yaml:"parallel,omitempty"`
	Concurrent int `json:"concurrent,omitempty" yaml:"concurrent,omitempty"`

	// PauseWork is the simulated work per parallel pause sub-phase
	PauseWork Duration `json:"pauseWork,omitempty" yaml:"pauseWork,omitempty"`

	// ConcurrentWork is the simulated work per concurrent phase
	ConcurrentWork Duration `json:"concurrentWork,omitempty" yaml:"concurrentWork,omitempty"`
}

// CollectorConfig tunes the control thread.
type CollectorConfig struct {
	PollInterval       Duration `json:"pollInterval,omitempty" yaml:"pollInterval,omitempty"`
	ExplicitGCInterval Duration `json:"explicitGCInterval,omitempty" yaml:"explicitGCInterval,omitempty"`
}

// TunablesConfig sets the process-wide allocation trace tunables.
type TunablesConfig struct {
	AllocationTrace          bool     `json:"allocationTrace,omitempty" yaml:"allocationTrace,omitempty"`
	AllocationStallThreshold Duration `json:"allocationStallThreshold,omitempty" yaml:"allocationStallThreshold,omitempty"`
}

// ThresholdsConfig defines pass/fail criteria for the run.
type ThresholdsConfig struct {
	// Pause thresholds over net pause durations
	// e.g., ["p99 < 10ms", "max < 50ms"]
	Pause []string `json:"pause,omitempty" yaml:"pause,omitempty"`

	// Alloc thresholds over allocation latency of the slowest request type
	// e.g., ["p99 < 1ms"]
	Alloc []string `json:"alloc,omitempty" yaml:"alloc,omitempty"`

	// Cycles thresholds over cycle outcomes
	// e.g., ["degenerated == 0", "count > 3"]
	Cycles []string `json:"cycles,omitempty" yaml:"cycles,omitempty"`
}

// Duration is a time.Duration that can be unmarshaled from JSON/YAML strings.
type Duration time.Duration

// GetDuration returns the duration or a default if empty.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	if s == "" || s == "null" {
		*d = 0
		return nil
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}
