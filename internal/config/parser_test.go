package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wesleyorama2/gcscope/internal/gc/tunable"
	"github.com/wesleyorama2/gcscope/internal/sim"
)

const fullYAML = `
name: "steady"
description: "four mutators against a small heap"
simulation:
  mode: degenerated
  duration: 3s
  seed: 42
heap:
  words: 65536
  triggerRatio: 0.5
  liveRatio: 0
  evacRatio: 0.1
  uncommitDelay: 500ms
mutators:
  count: 2
  allocRate: 500
  minWords: 16
  maxWords: 256
  tlabFraction: 0.9
  maxRetries: 2
workers:
  parallel: 3
  concurrent: 1
  pauseWork: 100us
  concurrentWork: 2ms
collector:
  pollInterval: 2ms
  explicitGCInterval: 1s
tunables:
  allocationTrace: true
  allocationStallThreshold: 5ms
thresholds:
  pause: ["p99 < 10ms"]
  alloc: ["max < 50ms"]
  cycles: ["count > 0"]
`

func TestParseDurationString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{name: "standard seconds", input: "30s", expected: 30 * time.Second},
		{name: "microseconds", input: "250us", expected: 250 * time.Microsecond},
		{name: "combined", input: "1m30s", expected: 90 * time.Second},
		{name: "integer seconds", input: "5", expected: 5 * time.Second},
		{name: "empty", input: "", expected: 0},
		{name: "trailing garbage", input: "5x", wantErr: true},
		{name: "invalid", input: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDurationString(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDurationString(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.expected {
				t.Errorf("ParseDurationString(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseConfig_YAML(t *testing.T) {
	config, err := ParseConfig([]byte(fullYAML), "steady.yaml")
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}

	if config.Name != "steady" {
		t.Errorf("Name = %v, want steady", config.Name)
	}
	if config.Simulation.Mode != "degenerated" {
		t.Errorf("Mode = %v, want degenerated", config.Simulation.Mode)
	}
	if time.Duration(config.Simulation.Duration) != 3*time.Second {
		t.Errorf("Duration = %v, want 3s", config.Simulation.Duration)
	}
	if config.Heap.LiveRatio == nil || *config.Heap.LiveRatio != 0 {
		t.Errorf("LiveRatio = %v, want explicit 0", config.Heap.LiveRatio)
	}
	if time.Duration(config.Workers.PauseWork) != 100*time.Microsecond {
		t.Errorf("PauseWork = %v, want 100us", config.Workers.PauseWork)
	}
	if config.Thresholds == nil || len(config.Thresholds.Pause) != 1 {
		t.Fatalf("Thresholds = %+v, want one pause threshold", config.Thresholds)
	}
}

func TestParseConfig_JSON(t *testing.T) {
	data := `{
		"name": "json run",
		"simulation": {"mode": "full", "duration": "1s"},
		"tunables": {"allocationStallThreshold": "2ms"}
	}`

	config, err := ParseConfig([]byte(data), "run.json")
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if config.Simulation.Mode != "full" {
		t.Errorf("Mode = %v, want full", config.Simulation.Mode)
	}
	if time.Duration(config.Tunables.AllocationStallThreshold) != 2*time.Millisecond {
		t.Errorf("AllocationStallThreshold = %v, want 2ms", config.Tunables.AllocationStallThreshold)
	}

	if _, err := ParseConfig([]byte(`{"name": `), "run.json"); err == nil {
		t.Error("ParseConfig() should fail on malformed JSON")
	}
}

func TestParseConfig_BadDuration(t *testing.T) {
	_, err := ParseConfig([]byte("simulation:\n  duration: soon\n"), "bad.yaml")
	if err == nil {
		t.Fatal("ParseConfig() should reject an invalid duration")
	}
}

func TestLoadConfig(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "steady.yaml")
	if err := os.WriteFile(tmpFile, []byte(fullYAML), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	config, err := LoadConfig(tmpFile)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if config.Description == "" {
		t.Error("Description should be loaded")
	}
}

func TestLoadConfig_NotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("LoadConfig() should return error for nonexistent file")
	}
}

func TestLoadConfig_SchemaViolation(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "bad.yaml")
	content := "simulation:\n  mode: generational\nheap:\n  wordz: 10\n"
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	_, err := LoadConfig(tmpFile)
	if err == nil {
		t.Fatal("LoadConfig() should reject a document that does not match the schema")
	}
	if !strings.Contains(err.Error(), "schema") {
		t.Errorf("error = %v, want a schema error", err)
	}
}

func TestValidateSchema(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		doc     string
		wantErr string
	}{
		{name: "full yaml", path: "a.yaml", doc: fullYAML},
		{name: "minimal json", path: "a.json", doc: `{"name": "x"}`},
		{name: "unknown section", path: "a.yaml", doc: "gc:\n  mode: full\n", wantErr: "gc"},
		{name: "ratio out of range", path: "a.yaml", doc: "heap:\n  triggerRatio: 1.5\n", wantErr: "/heap/triggerRatio"},
		{name: "duration pattern", path: "a.json", doc: `{"simulation": {"duration": "ten seconds"}}`, wantErr: "/simulation/duration"},
		{name: "threshold not a list", path: "a.yaml", doc: "thresholds:\n  pause: p99 < 1ms\n", wantErr: "/thresholds/pause"},
		{name: "malformed yaml", path: "a.yaml", doc: "heap: [", wantErr: "YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchema([]byte(tt.doc), tt.path)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateSchema() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("ValidateSchema() should fail with %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestSchemaIsValidJSON(t *testing.T) {
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(Schema()), &doc); err != nil {
		t.Fatalf("embedded schema is not JSON: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	config := &SimulationConfig{}
	ApplyDefaults(config)

	def := sim.DefaultConfig()
	got := config.ToSimConfig()
	if got != def {
		t.Errorf("defaulted config = %+v, want %+v", got, def)
	}
	if config.Name != "simulation" {
		t.Errorf("Name = %v, want simulation", config.Name)
	}
	if time.Duration(config.Tunables.AllocationStallThreshold) != tunable.DefaultAllocationStallThreshold {
		t.Errorf("AllocationStallThreshold = %v, want default", config.Tunables.AllocationStallThreshold)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("defaulted config should validate: %v", err)
	}
}

func TestApplyDefaults_KeepsExplicitZeroRatios(t *testing.T) {
	config, err := ParseConfig([]byte(fullYAML), "steady.yaml")
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	ApplyDefaults(config)

	got := config.ToSimConfig()
	if got.LiveRatio != 0 {
		t.Errorf("LiveRatio = %v, want 0", got.LiveRatio)
	}
	if got.Mode != sim.ModeDegenerated || got.Seed != 42 || got.HeapWords != 65536 {
		t.Errorf("unexpected conversion: %+v", got)
	}
	if got.UncommitDelay != 500*time.Millisecond || got.ExplicitGCInterval != time.Second {
		t.Errorf("intervals not converted: %+v", got)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("converted config should validate: %v", err)
	}
}

func TestApplyDefaults_ConcurrentFollowsParallel(t *testing.T) {
	config := &SimulationConfig{Workers: WorkerConfig{Parallel: 1}}
	ApplyDefaults(config)
	if config.Workers.Concurrent != 1 {
		t.Errorf("Concurrent = %d, want 1", config.Workers.Concurrent)
	}
}

func TestToThresholds(t *testing.T) {
	config := &SimulationConfig{}
	if !config.ToThresholds().Empty() {
		t.Error("no thresholds section should give empty thresholds")
	}

	config.Thresholds = &ThresholdsConfig{Cycles: []string{"full == 0"}}
	th := config.ToThresholds()
	if len(th.Cycles) != 1 || th.Cycles[0] != "full == 0" {
		t.Errorf("Cycles = %v", th.Cycles)
	}
}

func TestApplyTunables(t *testing.T) {
	defer tunable.Restore(tunable.Snapshot())

	config := &SimulationConfig{Tunables: TunablesConfig{
		AllocationTrace:          true,
		AllocationStallThreshold: Duration(3 * time.Millisecond),
	}}
	prev := config.ApplyTunables()

	if !tunable.AllocationTrace() {
		t.Error("AllocationTrace should be on")
	}
	if tunable.AllocationStallThresholdMicros() != 3000 {
		t.Errorf("threshold = %d us, want 3000", tunable.AllocationStallThresholdMicros())
	}

	tunable.Restore(prev)
	if tunable.AllocationTrace() != prev.AllocationTrace {
		t.Error("Restore should put the previous setting back")
	}
}

func TestDuration_JSON(t *testing.T) {
	var d Duration
	if err := json.Unmarshal([]byte(`"1m30s"`), &d); err != nil {
		t.Fatalf("UnmarshalJSON() error = %v", err)
	}
	if time.Duration(d) != 90*time.Second {
		t.Errorf("Duration = %v, want 1m30s", d)
	}

	if err := json.Unmarshal([]byte(`null`), &d); err != nil || d != 0 {
		t.Errorf("null should give zero, got %v (%v)", d, err)
	}

	out, err := json.Marshal(Duration(1500 * time.Millisecond))
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(out) != `"1.5s"` {
		t.Errorf("MarshalJSON() = %s, want \"1.5s\"", out)
	}

	if Duration(0).GetDuration(time.Second) != time.Second {
		t.Error("GetDuration should fall back for zero")
	}
}

func TestExampleConfigs(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "examples", "*.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Skip("no example configs found")
	}

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			config, err := LoadConfig(path)
			if err != nil {
				t.Fatalf("LoadConfig() error = %v", err)
			}
			ApplyDefaults(config)
			if err := config.Validate(); err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}
