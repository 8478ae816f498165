// Package output prints simulation progress and summaries to a terminal.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/wesleyorama2/gcscope/internal/gc/cause"
	"github.com/wesleyorama2/gcscope/internal/gc/phase"
	"github.com/wesleyorama2/gcscope/internal/sim"
)

const (
	cursorUp  = "\033[%dA"
	clearLine = "\033[2K"

	boxHorizontal  = "━"
	boxVertical    = "│"
	boxTopLeft     = "┌"
	boxTopRight    = "┐"
	boxBottomLeft  = "└"
	boxBottomRight = "┘"

	progressFilled = "█"
	progressEmpty  = "░"

	boxWidth = 61
)

// LiveStats contains real-time statistics for display.
type LiveStats struct {
	Progress  float64 // 0.0 to 1.0
	Elapsed   time.Duration
	Remaining time.Duration

	Cycles      uint64
	Pauses      int64
	PauseP99    time.Duration
	PauseMax    time.Duration
	Allocations int64
	GCWaits     int64
	OutOfMemory int64

	HeapUsed     uint64
	HeapCapacity uint64

	// Cause is the cycle in progress, cause.NoGC between cycles
	Cause cause.Cause
	// Phases holds "thread: phase" for every thread inside a timed phase
	Phases []string
}

// HeapOccupancy returns used/capacity in [0, 1].
func (s *LiveStats) HeapOccupancy() float64 {
	if s.HeapCapacity == 0 {
		return 0
	}
	return float64(s.HeapUsed) / float64(s.HeapCapacity)
}

// StatsFromProgress converts a simulator sample into display stats.
func StatsFromProgress(p sim.Progress, elapsed, total time.Duration) *LiveStats {
	progress := 0.0
	remaining := time.Duration(0)
	if total > 0 {
		progress = min(float64(elapsed)/float64(total), 1)
		remaining = max(total-elapsed, 0)
	}

	var phases []string
	for _, tp := range p.Phases {
		phases = append(phases, tp.Thread+": "+strings.TrimSpace(tp.Phase.String()))
	}

	return &LiveStats{
		Progress:     progress,
		Elapsed:      elapsed,
		Remaining:    remaining,
		Cycles:       p.Cycles,
		Pauses:       p.Pauses,
		PauseP99:     p.PauseP99,
		PauseMax:     p.PauseMax,
		Allocations:  p.Allocations,
		GCWaits:      p.GCWaits,
		OutOfMemory:  p.OutOfMemory,
		HeapUsed:     p.Heap.Used,
		HeapCapacity: p.Heap.Capacity,
		Cause:        p.Cause,
		Phases:       phases,
	}
}

// Console manages console output during a simulation.
type Console struct {
	name   string
	mode   sim.Mode
	total  time.Duration
	writer io.Writer
	isTTY  bool
	quiet  bool
	colors *ColorScheme

	mu          sync.Mutex
	linesOutput int
}

// ConsoleConfig contains configuration for Console.
type ConsoleConfig struct {
	Name          string
	Mode          sim.Mode
	TotalDuration time.Duration
	Writer        io.Writer
	Quiet         bool
	NoColor       bool
	ForceColors   bool
	ForceTTY      bool
}

// NewConsole creates a new console output handler.
func NewConsole(config ConsoleConfig) *Console {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}

	isTTY := config.ForceTTY || isTerminal(config.Writer)
	useColors := !config.NoColor && (config.ForceColors || (isTTY && supportsColors()))

	colors := NoColorScheme()
	if useColors {
		colors = DefaultColorScheme().forceColor()
	}

	return &Console{
		name:   config.Name,
		mode:   config.Mode,
		total:  config.TotalDuration,
		writer: config.Writer,
		isTTY:  isTTY,
		quiet:  config.Quiet,
		colors: colors,
	}
}

// IsTTY returns whether the output is a terminal.
func (c *Console) IsTTY() bool {
	return c.isTTY
}

// PrintHeader prints the run header.
func (c *Console) PrintHeader() {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	line := strings.Repeat(boxHorizontal, boxWidth)
	c.writeln(c.colors.Rule.Sprint(line))
	c.writeln(c.colors.Title.Sprintf("%s - Running [%s, %s]", c.name, c.mode, formatDuration(c.total)))
	c.writeln(c.colors.Rule.Sprint(line))
	c.writeln("")
}

// Report prints stats as a live box on a terminal, or as a single line
// otherwise.
func (c *Console) Report(stats *LiveStats) {
	if c.isTTY {
		c.Update(stats)
		return
	}
	c.PrintNonInteractiveUpdate(stats)
}

// Update redraws the live display in place.
func (c *Console) Update(stats *LiveStats) {
	if c.quiet || !c.isTTY {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearLive()
	lines := c.renderLiveStats(stats)
	c.linesOutput = len(lines)
	for _, line := range lines {
		c.writeln(line)
	}
}

func (c *Console) clearLive() {
	if c.linesOutput == 0 {
		return
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	for i := 0; i < c.linesOutput; i++ {
		c.write(clearLine + "\n")
	}
	c.write(fmt.Sprintf(cursorUp, c.linesOutput))
	c.linesOutput = 0
}

func (c *Console) renderLiveStats(stats *LiveStats) []string {
	var lines []string

	timeInfo := fmt.Sprintf("%s / %s", formatDuration(stats.Elapsed), formatDuration(stats.Elapsed+stats.Remaining))
	lines = append(lines, fmt.Sprintf("Progress: %s %s | %s",
		c.colors.Pass.Sprint(renderBar(stats.Progress, 40)),
		c.colors.Title.Sprintf("%.0f%%", stats.Progress*100),
		c.colors.Dim.Sprint(timeInfo)))

	state := "idle"
	if stats.Cause != cause.NoGC {
		state = "collecting: " + stats.Cause.String()
		if len(stats.Phases) > 0 {
			state += " [" + strings.Join(stats.Phases, ", ") + "]"
		}
	}
	lines = append(lines, fmt.Sprintf("GC:       %s", c.colors.Phase.Sprint(state)))
	lines = append(lines, "")

	lines = append(lines, c.colors.Dim.Sprint(boxTopLeft+strings.Repeat(boxHorizontal, boxWidth-2)+boxTopRight))

	lines = append(lines, c.formatBoxRow(
		fmt.Sprintf("Cycles:  %s", c.colors.Value.Sprint(formatNumber(int64(stats.Cycles)))),
		fmt.Sprintf("Allocations: %s", c.colors.Value.Sprint(formatNumber(stats.Allocations)))))

	lines = append(lines, c.formatBoxRow(
		fmt.Sprintf("Pauses:  %s", c.colors.Value.Sprint(formatNumber(stats.Pauses))),
		fmt.Sprintf("GC waits:    %s", c.waitColor(stats).Sprint(formatNumber(stats.GCWaits)))))

	lines = append(lines, c.formatBoxRow(
		fmt.Sprintf("P99:     %s", c.colors.Latency.Sprint(formatDurationShort(stats.PauseP99))),
		fmt.Sprintf("Max:         %s", c.colors.Latency.Sprint(formatDurationShort(stats.PauseMax)))))

	occ := stats.HeapOccupancy()
	lines = append(lines, c.formatBoxRow(
		fmt.Sprintf("Heap:    %s", c.occupancyColor(occ).Sprint(renderBar(occ, 12))),
		fmt.Sprintf("Used:        %s", c.occupancyColor(occ).Sprintf("%.1f%%", occ*100))))

	lines = append(lines, c.colors.Dim.Sprint(boxBottomLeft+strings.Repeat(boxHorizontal, boxWidth-2)+boxBottomRight))
	return lines
}

func (c *Console) waitColor(stats *LiveStats) *color.Color {
	if stats.OutOfMemory > 0 {
		return c.colors.Fail
	}
	if stats.GCWaits > 0 {
		return c.colors.Warn
	}
	return c.colors.Pass
}

func (c *Console) occupancyColor(occ float64) *color.Color {
	switch {
	case occ > 0.9:
		return c.colors.Fail
	case occ > 0.7:
		return c.colors.Warn
	default:
		return c.colors.Pass
	}
}

// formatBoxRow formats a row inside the stats box with two columns.
func (c *Console) formatBoxRow(left, right string) string {
	colWidth := (boxWidth - 4) / 2

	leftPadding := max(colWidth-visibleWidth(left), 0)
	rightPadding := max(colWidth-visibleWidth(right), 0)

	border := c.colors.Dim.Sprint(boxVertical)
	return fmt.Sprintf("%s %s%s%s %s%s%s",
		border,
		left, strings.Repeat(" ", leftPadding),
		border,
		right, strings.Repeat(" ", rightPadding),
		border)
}

// PrintNonInteractiveUpdate prints a one-line status for logs and CI.
func (c *Console) PrintNonInteractiveUpdate(stats *LiveStats) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeln(fmt.Sprintf("[%s] Progress: %.0f%% | Cycles: %d | Pauses: %d | P99: %s | Max: %s | Allocs: %d | Waits: %d | Heap: %.1f%%",
		formatDuration(stats.Elapsed),
		stats.Progress*100,
		stats.Cycles,
		stats.Pauses,
		formatDurationShort(stats.PauseP99),
		formatDurationShort(stats.PauseMax),
		stats.Allocations,
		stats.GCWaits,
		stats.HeapOccupancy()*100))
}

// PrintSummary prints the final summary of a run.
func (c *Console) PrintSummary(result *sim.Result) {
	if c.quiet {
		if result.Passed {
			c.writeln(c.colors.Pass.Sprint("PASSED"))
		} else {
			c.writeln(c.colors.Fail.Sprint("FAILED"))
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isTTY {
		c.clearLive()
	}

	line := strings.Repeat(boxHorizontal, boxWidth)
	status := c.colors.Pass.Sprint("Completed ✓")
	if !result.Passed {
		status = c.colors.Fail.Sprint("Failed ✗")
	}

	c.writeln("")
	c.writeln(c.colors.Rule.Sprint(line))
	c.writeln(fmt.Sprintf("%s - %s", c.colors.Title.Sprint(result.Name), status))
	c.writeln(c.colors.Rule.Sprint(line))
	c.writeln("")

	c.writeln(fmt.Sprintf("Duration:      %s", c.colors.Value.Sprint(formatDuration(result.Duration))))
	c.writeln(fmt.Sprintf("Mode:          %s", c.colors.Value.Sprint(result.Mode)))
	c.writeln(fmt.Sprintf("Cycles:        %s", c.colors.Value.Sprint(formatNumber(int64(result.Cycles)))))
	c.writeln(fmt.Sprintf("Allocations:   %s", c.colors.Value.Sprint(formatNumber(result.Allocations()))))
	c.writeln("")

	c.writeln(c.colors.Title.Sprint("Cycle Outcomes:"))
	col := result.Collector
	c.writeln(fmt.Sprintf("  Concurrent:  %d", col.Concurrent))
	c.writeln(fmt.Sprintf("  Degenerated: %s", c.countColor(col.Degenerated).Sprint(col.Degenerated)))
	c.writeln(fmt.Sprintf("  Full:        %s", c.countColor(col.Full).Sprint(col.Full)))
	c.writeln(fmt.Sprintf("  Cancelled:   %d", col.Cancelled))
	c.writeln(fmt.Sprintf("  Upgrades:    %d", col.Upgrades))
	c.writeln("")

	for _, st := range result.Phases {
		if st.Key != phase.TotalPause.Key() {
			continue
		}
		c.writeln(c.colors.Title.Sprint("Pause Distribution:"))
		c.writeln(fmt.Sprintf("  Count:     %d", st.Count))
		c.writeln(fmt.Sprintf("  Min:       %s", formatDurationShort(st.Min)))
		c.writeln(fmt.Sprintf("  P50:       %s", formatDurationShort(st.P50)))
		c.writeln(fmt.Sprintf("  P90:       %s", formatDurationShort(st.P90)))
		c.writeln(fmt.Sprintf("  P99:       %s", formatDurationShort(st.P99)))
		c.writeln(fmt.Sprintf("  Max:       %s", formatDurationShort(st.Max)))
		c.writeln("")
	}

	if len(result.Thresholds) > 0 {
		c.writeln(c.colors.Title.Sprint("Thresholds:"))
		for _, t := range result.Thresholds {
			mark := c.colors.Pass.Sprint("✓")
			if !t.Passed {
				mark = c.colors.Fail.Sprint("✗")
			}
			c.writeln(fmt.Sprintf("  %s %s %s (actual: %s)", mark, t.Metric, t.Expression, t.Value))
		}
		c.writeln("")
	}
}

// PrintPhases prints the per-phase timing table.
func (c *Console) PrintPhases(result *sim.Result) {
	if c.quiet || len(result.Phases) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeln(c.colors.Title.Sprint("Phase Timings:"))
	c.writeln(c.colors.Label.Sprintf("  %-44s %8s %10s %10s %10s", "Phase", "Count", "Mean", "P99", "Max"))
	for _, st := range result.Phases {
		c.writeln(fmt.Sprintf("  %-44s %8d %10s %10s %10s",
			st.Name, st.Count,
			formatDurationShort(st.Mean), formatDurationShort(st.P99), formatDurationShort(st.Max)))
	}
	c.writeln("")
}

func (c *Console) countColor(n int64) *color.Color {
	if n > 0 {
		return c.colors.Warn
	}
	return c.colors.Pass
}

func (c *Console) write(s string) {
	fmt.Fprint(c.writer, s)
}

func (c *Console) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}

func renderBar(progress float64, width int) string {
	progress = min(max(progress, 0), 1)
	filled := int(progress * float64(width))
	return "[" + strings.Repeat(progressFilled, filled) + strings.Repeat(progressEmpty, width-filled) + "]"
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

// formatDurationShort formats a pause or latency.
func formatDurationShort(d time.Duration) string {
	if d < time.Microsecond {
		return "0ms"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	offset := len(str) % 3
	if offset > 0 {
		result.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}
	return result.String()
}

// visibleWidth counts the runes left after ANSI escape sequences are
// removed.
func visibleWidth(s string) int {
	n := 0
	inEscape := false
	for _, r := range s {
		if r == '\033' {
			inEscape = true
			continue
		}
		if inEscape {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
			continue
		}
		n++
	}
	return n
}
