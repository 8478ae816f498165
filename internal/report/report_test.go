package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wesleyorama2/gcscope/internal/gc/alloc"
	"github.com/wesleyorama2/gcscope/internal/gc/cause"
	"github.com/wesleyorama2/gcscope/internal/gc/gctrace"
	"github.com/wesleyorama2/gcscope/internal/gc/heap"
	"github.com/wesleyorama2/gcscope/internal/gc/phase"
	"github.com/wesleyorama2/gcscope/internal/gc/scope"
	"github.com/wesleyorama2/gcscope/internal/gc/timing"
	"github.com/wesleyorama2/gcscope/internal/gc/tunable"
	"github.com/wesleyorama2/gcscope/internal/sim"
)

func createSampleResult() *sim.Result {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &sim.Result{
		Name:      "Steady <Allocation>",
		Mode:      sim.ModeConcurrent,
		StartTime: start,
		EndTime:   start.Add(2 * time.Second),
		Duration:  2 * time.Second,
		Cycles:    2,
		Outcomes:  map[string]uint64{"concurrent": 1, "degenerated": 1},
		Collector: sim.CollectorStats{Concurrent: 1, Degenerated: 1, Cancelled: 1, RootTasks: 4321},
		Events: []gctrace.GCEvent{
			{
				ID: 0, Cause: cause.ConcurrentGC,
				Start: start.Add(100 * time.Millisecond), End: start.Add(130 * time.Millisecond),
				Pauses: 4, SumOfPauses: 2 * time.Millisecond, LongestPause: 800 * time.Microsecond,
				Heap: []gctrace.HeapSummary{
					{When: gctrace.BeforeGC, Used: 6000},
					{When: gctrace.AfterGC, Used: 2000},
				},
			},
			{
				ID: 1, Cause: cause.AllocationFailure,
				Start: start.Add(900 * time.Millisecond), End: start.Add(950 * time.Millisecond),
				Pauses: 3, SumOfPauses: 12 * time.Millisecond, LongestPause: 9 * time.Millisecond,
			},
		},
		Phases: []timing.PhaseStats{
			{Key: phase.TotalPause.Key(), Name: phase.TotalPause.String(), Count: 7, Total: 14 * time.Millisecond, Max: 9 * time.Millisecond, P99: 9 * time.Millisecond},
			{Key: phase.InitMark.Key(), Name: phase.InitMark.String(), Count: 2, Total: time.Millisecond},
		},
		AllocTypes: map[string]alloc.LatencyStats{
			alloc.TLAB.String():   {Count: 900, TotalSize: 90000, P99: 40 * time.Microsecond},
			alloc.Shared.String(): {Count: 100, TotalSize: 200000, P99: 3 * time.Millisecond},
		},
		Managers: []heap.ManagerStats{
			{Name: scope.CycleManager.String(), Collections: 2, AccumulatedGCTime: 80 * time.Millisecond},
			{Name: scope.PauseManager.String(), Collections: 7, AccumulatedGCTime: 14 * time.Millisecond},
		},
		Mutators: []sim.MutatorStats{{Name: "mutator-0", Allocations: 1000, Words: 290000, GCWaits: 3}},
		Heap:     scope.Usage{Used: 1024, Committed: 4096, Capacity: 8192},
		Tunables: tunable.Settings{AllocationTrace: true, AllocationStallThreshold: 10 * time.Millisecond},
		Passed:   false,
		Thresholds: []sim.ThresholdResult{
			{Metric: "pause", Expression: "max < 5ms", Passed: false, Value: "9ms", Message: "max is 9ms, threshold: < 5ms"},
			{Metric: "cycles", Expression: "full == 0", Passed: true, Value: "0"},
		},
	}
}

func TestGenerateHTMLString(t *testing.T) {
	html, err := GenerateHTMLString(createSampleResult(), "two cycles")
	if err != nil {
		t.Fatalf("GenerateHTMLString failed: %v", err)
	}

	expectedContents := []string{
		"<!DOCTYPE html>",
		"<title>Steady &lt;Allocation&gt; - Collector Simulation Report</title>",
		"two cycles",
		"FAILED",
		"mode: concurrent",
		"Total Pauses (N)",
		"cycleChart",
		"heapChart",
		"max &lt; 5ms",
		"mutator-0",
		"1,000",
		"12.5",
		"stall threshold 10.0ms",
		"root scan tasks",
		"4,321",
	}
	for _, expected := range expectedContents {
		if !strings.Contains(html, expected) {
			t.Errorf("HTML does not contain expected content: %s", expected)
		}
	}

	if !strings.Contains(html, `"cause":"Concurrent GC"`) {
		t.Error("HTML does not contain cycle chart data")
	}
	if strings.Index(html, ">shared<") > strings.Index(html, ">tlab<") {
		t.Error("allocation rows should be sorted by type")
	}
}

func TestGenerateHTMLStringNilResult(t *testing.T) {
	if _, err := GenerateHTMLString(nil, ""); err == nil {
		t.Error("Expected error for nil result, got nil")
	}
}

func TestGenerateHTMLNoEvents(t *testing.T) {
	result := createSampleResult()
	result.Events = nil
	result.Thresholds = nil
	result.Passed = true

	html, err := GenerateHTMLString(result, "")
	if err != nil {
		t.Fatalf("GenerateHTMLString failed: %v", err)
	}
	if strings.Contains(html, `id="cycleChart"`) {
		t.Error("chart canvas should be omitted without events")
	}
	if !strings.Contains(html, "const cycleData = [];") {
		t.Error("empty cycle data should render as an empty array")
	}
	if !strings.Contains(html, "PASSED") {
		t.Error("status should be PASSED")
	}
}

func TestGenerateHTML(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "report.html")
	if err := GenerateHTML(createSampleResult(), "", outputPath); err != nil {
		t.Fatalf("GenerateHTML failed: %v", err)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read HTML file: %v", err)
	}
	if !strings.Contains(string(content), "Steady") {
		t.Error("HTML file does not contain the run name")
	}

	if err := GenerateHTML(createSampleResult(), "", filepath.Join(t.TempDir(), "missing", "r.html")); err == nil {
		t.Error("Expected error writing into a missing directory")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	want := createSampleResult()
	if err := GenerateJSON(want, path); err != nil {
		t.Fatalf("GenerateJSON failed: %v", err)
	}

	got, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON failed: %v", err)
	}
	if got.Name != want.Name || got.Cycles != want.Cycles || got.Duration != want.Duration {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if len(got.Events) != 2 || got.Events[1].Cause != cause.AllocationFailure {
		t.Errorf("events not restored: %+v", got.Events)
	}
	if got.AllocTypes[alloc.Shared.String()].P99 != 3*time.Millisecond {
		t.Errorf("alloc stats not restored: %+v", got.AllocTypes)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, createSampleResult()); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"cause": "allocation-failure"`) {
		t.Errorf("causes should be written by key:\n%s", buf.String())
	}
	if err := WriteJSON(&buf, nil); err == nil {
		t.Error("Expected error for nil result")
	}
	if _, err := LoadJSON(filepath.Join(t.TempDir(), "none.json")); err == nil {
		t.Error("Expected error for a missing report")
	}
}

func TestFormatters(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{formatLatency(0), "0"},
		{formatLatency(500 * time.Nanosecond), "500ns"},
		{formatLatency(42 * time.Microsecond), "42.0µs"},
		{formatLatency(350 * time.Microsecond), "350µs"},
		{formatLatency(2500 * time.Microsecond), "2.50ms"},
		{formatLatency(45 * time.Millisecond), "45.0ms"},
		{formatLatency(1500 * time.Millisecond), "1.50s"},
		{formatDuration(90 * time.Second), "1m 30s"},
		{formatDuration(2 * time.Second), "2.0s"},
		{formatNumber(int64(1234567)), "1,234,567"},
		{formatNumber(uint64(999)), "999"},
		{formatNumber(-1200), "-1,200"},
		{formatWords(512), "512 w"},
		{formatWords(2048), "2.00 Kw"},
		{formatWords(3 << 20), "3.00 Mw"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}

	if percent(1, 0) != 0 || percent(1, 4) != 25 {
		t.Error("percent is wrong")
	}
}
