package sim

import (
	"errors"
	"fmt"
	"time"
)

// Mode selects how the synthetic collector reacts to heap pressure.
type Mode string

const (
	// ModeConcurrent runs concurrent cycles and degenerates on allocation
	// failure.
	ModeConcurrent Mode = "concurrent"
	// ModeDegenerated cancels every concurrent cycle after marking and
	// finishes it in a degenerated pause.
	ModeDegenerated Mode = "degenerated"
	// ModeFull never runs concurrently; allocation failure triggers a full
	// stop-the-world collection.
	ModeFull Mode = "full"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeConcurrent, ModeDegenerated, ModeFull:
		return m, nil
	}
	return "", fmt.Errorf("unknown collector mode %q", s)
}

// Config drives one simulation.
type Config struct {
	Mode     Mode
	Duration time.Duration
	Seed     int64

	// HeapWords is the heap capacity.
	HeapWords uint64
	// TriggerRatio is the used/capacity fraction at which a concurrent
	// cycle starts.
	TriggerRatio float64
	// LiveRatio is the fraction of used words that survive a cycle.
	LiveRatio float64
	// EvacRatio is the fraction of live words copied during evacuation.
	EvacRatio float64

	Mutators      int
	AllocRate     float64 // per mutator, per second
	MinAllocWords uint64
	MaxAllocWords uint64
	// TLABFraction is the share of requests served as TLAB refills.
	TLABFraction float64
	// MaxAllocRetries bounds how many collections a mutator waits for
	// before giving up on one request.
	MaxAllocRetries int

	ParallelWorkers   int
	ConcurrentWorkers int
	PauseWork         time.Duration
	ConcurrentWork    time.Duration

	// ExplicitGCInterval requests a full collection periodically when
	// positive.
	ExplicitGCInterval time.Duration
	// UncommitDelay returns committed memory after this much idle time
	// when positive.
	UncommitDelay time.Duration
	// PollInterval is how often the control thread checks the trigger.
	PollInterval time.Duration
}

// DefaultConfig returns a small, fast simulation.
func DefaultConfig() Config {
	return Config{
		Mode:              ModeConcurrent,
		Duration:          2 * time.Second,
		Seed:              1,
		HeapWords:         1 << 20,
		TriggerRatio:      0.6,
		LiveRatio:         0.3,
		EvacRatio:         0.25,
		Mutators:          4,
		AllocRate:         2000,
		MinAllocWords:     64,
		MaxAllocWords:     4096,
		TLABFraction:      0.8,
		MaxAllocRetries:   3,
		ParallelWorkers:   4,
		ConcurrentWorkers: 2,
		PauseWork:         200 * time.Microsecond,
		ConcurrentWork:    5 * time.Millisecond,
		PollInterval:      time.Millisecond,
	}
}

// Validate reports every inconsistent setting.
func (c Config) Validate() error {
	var errs []error
	if _, err := ParseMode(string(c.Mode)); err != nil {
		errs = append(errs, err)
	}
	if c.Duration <= 0 {
		errs = append(errs, errors.New("duration must be positive"))
	}
	if c.HeapWords == 0 {
		errs = append(errs, errors.New("heap size must be positive"))
	}
	if c.TriggerRatio <= 0 || c.TriggerRatio > 1 {
		errs = append(errs, fmt.Errorf("trigger ratio %.2f outside (0, 1]", c.TriggerRatio))
	}
	if c.LiveRatio < 0 || c.LiveRatio >= 1 {
		errs = append(errs, fmt.Errorf("live ratio %.2f outside [0, 1)", c.LiveRatio))
	}
	if c.EvacRatio < 0 || c.EvacRatio > 1 {
		errs = append(errs, fmt.Errorf("evacuation ratio %.2f outside [0, 1]", c.EvacRatio))
	}
	if c.Mutators < 1 {
		errs = append(errs, errors.New("at least one mutator is required"))
	}
	if c.AllocRate <= 0 {
		errs = append(errs, errors.New("allocation rate must be positive"))
	}
	if c.MinAllocWords == 0 || c.MaxAllocWords < c.MinAllocWords {
		errs = append(errs, fmt.Errorf("allocation size range [%d, %d] is empty", c.MinAllocWords, c.MaxAllocWords))
	}
	if c.MaxAllocWords > c.HeapWords {
		errs = append(errs, errors.New("largest allocation exceeds the heap"))
	}
	if c.TLABFraction < 0 || c.TLABFraction > 1 {
		errs = append(errs, fmt.Errorf("TLAB fraction %.2f outside [0, 1]", c.TLABFraction))
	}
	if c.ParallelWorkers < 1 || c.ConcurrentWorkers < 1 {
		errs = append(errs, errors.New("worker counts must be positive"))
	}
	if c.ConcurrentWorkers > c.ParallelWorkers {
		errs = append(errs, errors.New("concurrent workers cannot exceed parallel workers"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	return errors.Join(errs...)
}
