package config

import (
	"fmt"
	"strings"

	"github.com/wesleyorama2/gcscope/internal/sim"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate checks a defaulted configuration. Call ApplyDefaults first;
// zero values are reported as errors here rather than filled in.
//
// Returns nil if valid, or a ValidationErrors containing all validation errors.
func (c *SimulationConfig) Validate() error {
	errs := &ValidationErrors{}

	validateSimulation(&c.Simulation, errs)
	validateHeap(&c.Heap, errs)
	validateMutators(&c.Mutators, c.Heap.Words, errs)
	validateWorkers(&c.Workers, errs)

	if c.Collector.PollInterval <= 0 {
		errs.Add("collector.pollInterval", "must be positive")
	}
	if c.Collector.ExplicitGCInterval < 0 {
		errs.Add("collector.explicitGCInterval", "cannot be negative")
	}
	if c.Tunables.AllocationStallThreshold < 0 {
		errs.Add("tunables.allocationStallThreshold", "cannot be negative")
	}

	if c.Thresholds != nil {
		validateThresholds(c.Thresholds, errs)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateSimulation(s *SimulationSettings, errs *ValidationErrors) {
	if _, err := sim.ParseMode(s.Mode); err != nil {
		errs.Add("simulation.mode", "must be one of concurrent, degenerated, full")
	}
	if s.Duration <= 0 {
		errs.Add("simulation.duration", "must be positive")
	}
}

func validateHeap(h *HeapConfig, errs *ValidationErrors) {
	if h.Words == 0 {
		errs.Add("heap.words", "must be positive")
	}
	if h.TriggerRatio <= 0 || h.TriggerRatio > 1 {
		errs.Add("heap.triggerRatio", fmt.Sprintf("%.2f is outside (0, 1]", h.TriggerRatio))
	}
	if r := derefFloat(h.LiveRatio); r < 0 || r >= 1 {
		errs.Add("heap.liveRatio", fmt.Sprintf("%.2f is outside [0, 1)", r))
	}
	if r := derefFloat(h.EvacRatio); r < 0 || r > 1 {
		errs.Add("heap.evacRatio", fmt.Sprintf("%.2f is outside [0, 1]", r))
	}
	if h.UncommitDelay < 0 {
		errs.Add("heap.uncommitDelay", "cannot be negative")
	}
}

func validateMutators(m *MutatorConfig, heapWords uint64, errs *ValidationErrors) {
	if m.Count < 1 {
		errs.Add("mutators.count", "at least one mutator is required")
	}
	if m.AllocRate <= 0 {
		errs.Add("mutators.allocRate", "must be positive")
	}
	if m.MinWords == 0 {
		errs.Add("mutators.minWords", "must be positive")
	}
	if m.MaxWords < m.MinWords {
		errs.Add("mutators.maxWords", fmt.Sprintf("must be at least minWords (%d)", m.MinWords))
	}
	if heapWords > 0 && m.MaxWords > heapWords {
		errs.Add("mutators.maxWords", fmt.Sprintf("exceeds the heap (%d words)", heapWords))
	}
	if f := derefFloat(m.TLABFraction); f < 0 || f > 1 {
		errs.Add("mutators.tlabFraction", fmt.Sprintf("%.2f is outside [0, 1]", f))
	}
	if m.MaxRetries < 0 {
		errs.Add("mutators.maxRetries", "cannot be negative")
	}
}

func validateWorkers(w *WorkerConfig, errs *ValidationErrors) {
	if w.Parallel < 1 {
		errs.Add("workers.parallel", "must be positive")
	}
	if w.Concurrent < 1 {
		errs.Add("workers.concurrent", "must be positive")
	}
	if w.Concurrent > w.Parallel {
		errs.Add("workers.concurrent", "cannot exceed workers.parallel")
	}
	if w.PauseWork < 0 {
		errs.Add("workers.pauseWork", "cannot be negative")
	}
	if w.ConcurrentWork < 0 {
		errs.Add("workers.concurrentWork", "cannot be negative")
	}
}

func validateThresholds(t *ThresholdsConfig, errs *ValidationErrors) {
	groups := []struct {
		name  string
		exprs []string
	}{{"pause", t.Pause}, {"alloc", t.Alloc}, {"cycles", t.Cycles}}

	for _, g := range groups {
		for i, expr := range g.exprs {
			if strings.TrimSpace(expr) == "" {
				errs.Add(fmt.Sprintf("thresholds.%s[%d]", g.name, i), "threshold expression cannot be empty")
				continue
			}
			if err := sim.CheckExpression(g.name, expr); err != nil {
				errs.Add(fmt.Sprintf("thresholds.%s[%d]", g.name, i), err.Error())
			}
		}
	}
}
