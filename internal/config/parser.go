package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/gcscope/internal/gc/tunable"
	"github.com/wesleyorama2/gcscope/internal/sim"
	"github.com/wesleyorama2/gcscope/pkg/jsonschema"
)

//go:embed simulation.schema.json
var schemaJSON string

var documentSchema = jsonschema.MustCompile("simulation.schema.json", schemaJSON)

// LoadConfig loads a simulation file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
//
// The document is checked against the embedded JSON schema before it is
// decoded, so unknown keys and mistyped values are reported by path.
func LoadConfig(path string) (*SimulationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := ValidateSchema(data, path); err != nil {
		return nil, err
	}
	return ParseConfig(data, path)
}

// ParseConfig parses configuration data.
//
// The format is determined by the file extension in path, or defaults to YAML
// if the path is empty or has an unknown extension.
func ParseConfig(data []byte, path string) (*SimulationConfig, error) {
	var config SimulationConfig

	if isJSON(path) {
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
		return &config, nil
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return &config, nil
}

// ValidateSchema checks the raw document against the simulation schema.
func ValidateSchema(data []byte, path string) error {
	doc := data
	if !isJSON(path) {
		var raw interface{}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
		converted, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("failed to convert YAML config: %w", err)
		}
		doc = converted
	}

	if errs := documentSchema.ValidateJSON(doc); len(errs) > 0 {
		return fmt.Errorf("config does not match schema: %w", errs)
	}
	return nil
}

// Schema returns the embedded JSON schema for simulation files.
func Schema() string { return schemaJSON }

func isJSON(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".json"
}

// ParseDurationString parses a duration string with support for common formats.
//
// Supported formats:
//   - Standard Go duration: "30s", "2m", "1h30m", "500ms"
//   - Seconds as integer: "30" (treated as 30 seconds)
func ParseDurationString(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	var seconds int
	if _, err := fmt.Sscanf(s, "%d", &seconds); err == nil && fmt.Sprint(seconds) == s {
		return time.Duration(seconds) * time.Second, nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}

// ApplyDefaults fills every unset field from sim.DefaultConfig.
func ApplyDefaults(config *SimulationConfig) {
	def := sim.DefaultConfig()

	if config.Name == "" {
		config.Name = "simulation"
	}

	s := &config.Simulation
	if s.Mode == "" {
		s.Mode = string(def.Mode)
	}
	if s.Duration == 0 {
		s.Duration = Duration(def.Duration)
	}
	if s.Seed == 0 {
		s.Seed = def.Seed
	}

	h := &config.Heap
	if h.Words == 0 {
		h.Words = def.HeapWords
	}
	if h.TriggerRatio == 0 {
		h.TriggerRatio = def.TriggerRatio
	}
	if h.LiveRatio == nil {
		h.LiveRatio = float64Ptr(def.LiveRatio)
	}
	if h.EvacRatio == nil {
		h.EvacRatio = float64Ptr(def.EvacRatio)
	}

	m := &config.Mutators
	if m.Count == 0 {
		m.Count = def.Mutators
	}
	if m.AllocRate == 0 {
		m.AllocRate = def.AllocRate
	}
	if m.MinWords == 0 {
		m.MinWords = def.MinAllocWords
	}
	if m.MaxWords == 0 {
		m.MaxWords = def.MaxAllocWords
	}
	if m.TLABFraction == nil {
		m.TLABFraction = float64Ptr(def.TLABFraction)
	}
	if m.MaxRetries == 0 {
		m.MaxRetries = def.MaxAllocRetries
	}

	w := &config.Workers
	if w.Parallel == 0 {
		w.Parallel = def.ParallelWorkers
	}
	if w.Concurrent == 0 {
		w.Concurrent = min(def.ConcurrentWorkers, w.Parallel)
	}
	if w.PauseWork == 0 {
		w.PauseWork = Duration(def.PauseWork)
	}
	if w.ConcurrentWork == 0 {
		w.ConcurrentWork = Duration(def.ConcurrentWork)
	}

	if config.Collector.PollInterval == 0 {
		config.Collector.PollInterval = Duration(def.PollInterval)
	}

	if config.Tunables.AllocationStallThreshold == 0 {
		config.Tunables.AllocationStallThreshold = Duration(tunable.DefaultAllocationStallThreshold)
	}
}

// ToSimConfig converts a defaulted config into the simulator's form.
func (c *SimulationConfig) ToSimConfig() sim.Config {
	return sim.Config{
		Mode:               sim.Mode(c.Simulation.Mode),
		Duration:           time.Duration(c.Simulation.Duration),
		Seed:               c.Simulation.Seed,
		HeapWords:          c.Heap.Words,
		TriggerRatio:       c.Heap.TriggerRatio,
		LiveRatio:          derefFloat(c.Heap.LiveRatio),
		EvacRatio:          derefFloat(c.Heap.EvacRatio),
		Mutators:           c.Mutators.Count,
		AllocRate:          c.Mutators.AllocRate,
		MinAllocWords:      c.Mutators.MinWords,
		MaxAllocWords:      c.Mutators.MaxWords,
		TLABFraction:       derefFloat(c.Mutators.TLABFraction),
		MaxAllocRetries:    c.Mutators.MaxRetries,
		ParallelWorkers:    c.Workers.Parallel,
		ConcurrentWorkers:  c.Workers.Concurrent,
		PauseWork:          time.Duration(c.Workers.PauseWork),
		ConcurrentWork:     time.Duration(c.Workers.ConcurrentWork),
		ExplicitGCInterval: time.Duration(c.Collector.ExplicitGCInterval),
		UncommitDelay:      time.Duration(c.Heap.UncommitDelay),
		PollInterval:       time.Duration(c.Collector.PollInterval),
	}
}

// ToThresholds returns the pass/fail criteria, empty when none are set.
func (c *SimulationConfig) ToThresholds() sim.Thresholds {
	if c.Thresholds == nil {
		return sim.Thresholds{}
	}
	return sim.Thresholds{
		Pause:  c.Thresholds.Pause,
		Alloc:  c.Thresholds.Alloc,
		Cycles: c.Thresholds.Cycles,
	}
}

// TunableSettings returns the tunables this config asks for.
func (c *SimulationConfig) TunableSettings() tunable.Settings {
	return tunable.Settings{
		AllocationTrace:          c.Tunables.AllocationTrace,
		AllocationStallThreshold: c.Tunables.AllocationStallThreshold.GetDuration(tunable.DefaultAllocationStallThreshold),
	}
}

// ApplyTunables installs the tunables and returns the previous settings
// for tunable.Restore.
func (c *SimulationConfig) ApplyTunables() tunable.Settings {
	return tunable.Apply(c.TunableSettings())
}

func float64Ptr(v float64) *float64 { return &v }

func derefFloat(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
