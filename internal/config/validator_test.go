package config

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() *SimulationConfig {
	c := &SimulationConfig{Name: "valid"}
	ApplyDefaults(c)
	return c
}

func TestValidate_Defaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *SimulationConfig)
		field  string
	}{
		{"unknown mode", func(c *SimulationConfig) { c.Simulation.Mode = "generational" }, "simulation.mode"},
		{"negative duration", func(c *SimulationConfig) { c.Simulation.Duration = -1 }, "simulation.duration"},
		{"trigger above one", func(c *SimulationConfig) { c.Heap.TriggerRatio = 1.2 }, "heap.triggerRatio"},
		{"live ratio one", func(c *SimulationConfig) { one := 1.0; c.Heap.LiveRatio = &one }, "heap.liveRatio"},
		{"evac ratio negative", func(c *SimulationConfig) { neg := -0.1; c.Heap.EvacRatio = &neg }, "heap.evacRatio"},
		{"no mutators", func(c *SimulationConfig) { c.Mutators.Count = 0 }, "mutators.count"},
		{"empty size range", func(c *SimulationConfig) { c.Mutators.MaxWords = c.Mutators.MinWords - 1 }, "mutators.maxWords"},
		{"allocation larger than heap", func(c *SimulationConfig) { c.Mutators.MaxWords = c.Heap.Words + 1 }, "mutators.maxWords"},
		{"tlab fraction", func(c *SimulationConfig) { f := 2.0; c.Mutators.TLABFraction = &f }, "mutators.tlabFraction"},
		{"too many concurrent workers", func(c *SimulationConfig) { c.Workers.Concurrent = c.Workers.Parallel + 1 }, "workers.concurrent"},
		{"zero poll interval", func(c *SimulationConfig) { c.Collector.PollInterval = 0 }, "collector.pollInterval"},
		{"negative stall threshold", func(c *SimulationConfig) { c.Tunables.AllocationStallThreshold = -1 }, "tunables.allocationStallThreshold"},
		{"bad pause metric", func(c *SimulationConfig) { c.Thresholds = &ThresholdsConfig{Pause: []string{"p95 < 1ms"}} }, "thresholds.pause[0]"},
		{"empty cycles expression", func(c *SimulationConfig) { c.Thresholds = &ThresholdsConfig{Cycles: []string{"  "}} }, "thresholds.cycles[0]"},
		{"alloc needs duration", func(c *SimulationConfig) { c.Thresholds = &ThresholdsConfig{Alloc: []string{"", "p99 < 3"}} }, "thresholds.alloc[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			err := c.Validate()
			if err == nil {
				t.Fatal("Validate() should fail")
			}

			var verrs *ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("error type = %T, want *ValidationErrors", err)
			}
			found := false
			for _, e := range verrs.Errors {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("errors %v do not mention %s", err, tt.field)
			}
		})
	}
}

func TestValidate_CollectsAll(t *testing.T) {
	c := validConfig()
	c.Simulation.Mode = "nope"
	c.Mutators.Count = 0
	c.Workers.Parallel = 0

	err := c.Validate()
	var verrs *ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("error type = %T, want *ValidationErrors", err)
	}
	if len(verrs.Errors) < 3 {
		t.Errorf("got %d errors, want at least 3", len(verrs.Errors))
	}
	if !strings.Contains(err.Error(), "validation errors:") {
		t.Errorf("Error() = %q, want a numbered list", err.Error())
	}
}

func TestValidationErrors(t *testing.T) {
	errs := &ValidationErrors{}
	if errs.HasErrors() {
		t.Error("new collection should be empty")
	}
	if errs.Error() != "no validation errors" {
		t.Errorf("Error() = %q", errs.Error())
	}

	errs.Add("heap.words", "must be positive")
	if errs.Error() != "validation error on field 'heap.words': must be positive" {
		t.Errorf("Error() = %q", errs.Error())
	}

	single := &ValidationError{Message: "broken"}
	if single.Error() != "validation error: broken" {
		t.Errorf("Error() = %q", single.Error())
	}
}
