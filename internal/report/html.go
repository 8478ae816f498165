package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"sort"
	"time"

	"github.com/wesleyorama2/gcscope/internal/gc/alloc"
	"github.com/wesleyorama2/gcscope/internal/gc/gctrace"
	"github.com/wesleyorama2/gcscope/internal/gc/phase"
	"github.com/wesleyorama2/gcscope/internal/gc/timing"
	"github.com/wesleyorama2/gcscope/internal/sim"
)

// ReportData contains all data needed to render the HTML report.
type ReportData struct {
	*sim.Result
	Description string
	Pause       timing.PhaseStats
	AllocRows   []alloc.LatencyStats
	CycleJSON   template.JS
}

// CyclePoint is one completed cycle in the chart data.
type CyclePoint struct {
	ID             uint64  `json:"id"`
	Cause          string  `json:"cause"`
	OffsetMillis   float64 `json:"offsetMs"`
	DurationMillis float64 `json:"durationMs"`
	PauseMillis    float64 `json:"pauseMs"`
	LongestMillis  float64 `json:"longestMs"`
	UsedBefore     uint64  `json:"usedBefore"`
	UsedAfter      uint64  `json:"usedAfter"`
}

// GenerateHTML generates an HTML report from a result and writes it to a file.
func GenerateHTML(result *sim.Result, description, outputPath string) error {
	html, err := GenerateHTMLString(result, description)
	if err != nil {
		return fmt.Errorf("failed to generate HTML: %w", err)
	}

	if err := os.WriteFile(outputPath, []byte(html), 0644); err != nil {
		return fmt.Errorf("failed to write HTML file: %w", err)
	}
	return nil
}

// GenerateHTMLString renders the report and returns it as a string.
func GenerateHTMLString(result *sim.Result, description string) (string, error) {
	if result == nil {
		return "", fmt.Errorf("result cannot be nil")
	}

	tmpl, err := template.New("report").Funcs(templateFuncs()).Parse(htmlTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	cycles, err := cycleJSON(result.StartTime, result.Events)
	if err != nil {
		return "", fmt.Errorf("failed to convert cycles: %w", err)
	}

	data := ReportData{
		Result:      result,
		Description: description,
		Pause:       pauseStats(result.Phases),
		AllocRows:   allocRows(result.AllocTypes),
		CycleJSON:   template.JS(cycles),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

func pauseStats(phases []timing.PhaseStats) timing.PhaseStats {
	for _, p := range phases {
		if p.Key == phase.TotalPause.Key() {
			return p
		}
	}
	return timing.PhaseStats{Key: phase.TotalPause.Key(), Name: phase.TotalPause.String()}
}

func allocRows(byType map[string]alloc.LatencyStats) []alloc.LatencyStats {
	rows := make([]alloc.LatencyStats, 0, len(byType))
	for name, st := range byType {
		st.TypeName = name
		rows = append(rows, st)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].TypeName < rows[j].TypeName })
	return rows
}

// cycleJSON converts completed cycles to chart points, offsets relative
// to the run start.
func cycleJSON(start time.Time, events []gctrace.GCEvent) (string, error) {
	if len(events) == 0 {
		return "[]", nil
	}

	points := make([]CyclePoint, len(events))
	for i, ev := range events {
		p := CyclePoint{
			ID:             ev.ID,
			Cause:          ev.Cause.String(),
			OffsetMillis:   millis(ev.Start.Sub(start)),
			DurationMillis: millis(ev.Duration()),
			PauseMillis:    millis(ev.SumOfPauses),
			LongestMillis:  millis(ev.LongestPause),
		}
		for _, h := range ev.Heap {
			if h.When == gctrace.BeforeGC {
				p.UsedBefore = h.Used
			} else {
				p.UsedAfter = h.Used
			}
		}
		points[i] = p
	}

	b, err := json.Marshal(points)
	if err != nil {
		return "[]", err
	}
	return string(b), nil
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// templateFuncs returns the template helper functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDuration": formatDuration,
		"formatNumber":   formatNumber,
		"formatLatency":  formatLatency,
		"formatWords":    formatWords,
		"percent":        percent,
	}
}

// formatDuration formats a run length in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if secs == 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dm %ds", mins, secs)
}

// formatNumber formats a count with thousands separators. It accepts the
// integer kinds the result uses.
func formatNumber(v interface{}) string {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int64:
		n = x
	case uint64:
		n = int64(x)
	default:
		return fmt.Sprint(v)
	}

	if n < 0 {
		return "-" + formatNumber(-n)
	}
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var buf bytes.Buffer
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			buf.WriteByte(',')
		}
		buf.WriteRune(c)
	}
	return buf.String()
}

// formatLatency formats a pause or latency.
func formatLatency(d time.Duration) string {
	if d == 0 {
		return "0"
	}
	if d < time.Microsecond {
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
	if d < time.Millisecond {
		us := float64(d.Nanoseconds()) / 1000.0
		if us < 100 {
			return fmt.Sprintf("%.1fµs", us)
		}
		return fmt.Sprintf("%dµs", int(us))
	}
	if d < time.Second {
		ms := float64(d.Microseconds()) / 1000.0
		if ms < 10 {
			return fmt.Sprintf("%.2fms", ms)
		}
		if ms < 100 {
			return fmt.Sprintf("%.1fms", ms)
		}
		return fmt.Sprintf("%dms", int(ms))
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// formatWords formats a heap size given in words.
func formatWords(words uint64) string {
	const (
		K = 1024
		M = K * 1024
		G = M * 1024
	)

	switch {
	case words >= G:
		return fmt.Sprintf("%.2f Gw", float64(words)/G)
	case words >= M:
		return fmt.Sprintf("%.2f Mw", float64(words)/M)
	case words >= K:
		return fmt.Sprintf("%.2f Kw", float64(words)/K)
	default:
		return fmt.Sprintf("%d w", words)
	}
}

// percent returns part/whole*100, zero when whole is zero.
func percent(part, whole uint64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
