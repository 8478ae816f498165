package sim

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/wesleyorama2/gcscope/internal/gc/alloc"
	"github.com/wesleyorama2/gcscope/internal/gc/phase"
	"github.com/wesleyorama2/gcscope/internal/gc/timing"
)

// Thresholds are pass/fail expressions evaluated against a Result, such
// as "max < 10ms" for pauses or "degenerated == 0" for cycles.
type Thresholds struct {
	// Pause expressions over the net pause distribution: min, max, avg,
	// p50, p90, p99, count, sum.
	Pause []string `json:"pause,omitempty" yaml:"pause,omitempty"`
	// Alloc expressions over the worst request type: max, avg, p50, p99,
	// count.
	Alloc []string `json:"alloc,omitempty" yaml:"alloc,omitempty"`
	// Cycles expressions over cycle counts: count, concurrent,
	// degenerated, full, cancelled, upgrades, oom.
	Cycles []string `json:"cycles,omitempty" yaml:"cycles,omitempty"`
}

// ThresholdResult is the verdict for one expression.
type ThresholdResult struct {
	Metric     string `json:"metric"`
	Expression string `json:"expression"`
	Passed     bool   `json:"passed"`
	Value      string `json:"value"`
	Message    string `json:"message,omitempty"`
}

// Empty reports whether no expression is configured.
func (t Thresholds) Empty() bool {
	return len(t.Pause) == 0 && len(t.Alloc) == 0 && len(t.Cycles) == 0
}

// Evaluate checks every expression against r.
func (t Thresholds) Evaluate(r *Result) []ThresholdResult {
	var results []ThresholdResult
	for _, expr := range t.Pause {
		results = append(results, evaluatePause(expr, r))
	}
	for _, expr := range t.Alloc {
		results = append(results, evaluateAlloc(expr, r))
	}
	for _, expr := range t.Cycles {
		results = append(results, evaluateCycles(expr, r))
	}
	return results
}

// Check parses every expression without evaluating it.
func (t Thresholds) Check() error {
	groups := []struct {
		name  string
		exprs []string
	}{{"pause", t.Pause}, {"alloc", t.Alloc}, {"cycles", t.Cycles}}
	for _, g := range groups {
		for _, expr := range g.exprs {
			if err := CheckExpression(g.name, expr); err != nil {
				return err
			}
		}
	}
	return nil
}

var thresholdMetrics = map[string][]string{
	"pause":  {"min", "max", "avg", "p50", "p90", "p99", "count", "sum"},
	"alloc":  {"max", "avg", "p50", "p99", "count"},
	"cycles": {"count", "concurrent", "degenerated", "full", "cancelled", "upgrades", "oom"},
}

// CheckExpression validates one expression of the named group ("pause",
// "alloc" or "cycles"): the metric must belong to the group, the operator
// must be known, and the value must parse as a duration or a number as
// the metric requires.
func CheckExpression(group, expr string) error {
	metrics, ok := thresholdMetrics[group]
	if !ok {
		return fmt.Errorf("unknown threshold group %q", group)
	}

	metric, op, value, err := parseThresholdExpression(expr)
	if err != nil {
		return err
	}
	if !slices.Contains(metrics, metric) {
		return fmt.Errorf("unknown %s metric %q (valid: %s)", group, metric, strings.Join(metrics, ", "))
	}
	if !slices.Contains(thresholdOps, op) {
		return fmt.Errorf("unknown operator %q", op)
	}

	if group == "cycles" || metric == "count" {
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("%s threshold needs a number, got %q", metric, value)
		}
		return nil
	}
	if _, err := time.ParseDuration(value); err != nil {
		return fmt.Errorf("%s threshold needs a duration, got %q", metric, value)
	}
	return nil
}

func evaluatePause(expr string, r *Result) ThresholdResult {
	result := ThresholdResult{Metric: "pause", Expression: expr}

	metric, op, valueStr, err := parseThresholdExpression(expr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse expression: %v", err)
		return result
	}

	var st timing.PhaseStats
	for _, p := range r.Phases {
		if p.Key == phase.TotalPause.Key() {
			st = p
		}
	}

	if metric == "count" {
		return compareCount(result, metric, op, valueStr, float64(st.Count))
	}

	var actual time.Duration
	switch metric {
	case "min":
		actual = st.Min
	case "max":
		actual = st.Max
	case "avg":
		actual = st.Mean
	case "p50":
		actual = st.P50
	case "p90":
		actual = st.P90
	case "p99":
		actual = st.P99
	case "sum":
		actual = st.Total
	default:
		result.Message = fmt.Sprintf("unknown metric: %s", metric)
		return result
	}
	return compareDuration(result, metric, op, valueStr, actual)
}

func evaluateAlloc(expr string, r *Result) ThresholdResult {
	result := ThresholdResult{Metric: "alloc", Expression: expr}

	metric, op, valueStr, err := parseThresholdExpression(expr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse expression: %v", err)
		return result
	}

	pick := map[string]func(alloc.LatencyStats) time.Duration{
		"max":   func(s alloc.LatencyStats) time.Duration { return s.Max },
		"avg":   func(s alloc.LatencyStats) time.Duration { return s.Mean },
		"p50":   func(s alloc.LatencyStats) time.Duration { return s.P50 },
		"p99":   func(s alloc.LatencyStats) time.Duration { return s.P99 },
		"count": nil,
	}
	get, ok := pick[metric]
	if !ok {
		result.Message = fmt.Sprintf("unknown metric: %s", metric)
		return result
	}

	var count int64
	var worst time.Duration
	for _, st := range r.AllocTypes {
		count += st.Count
		if get != nil && get(st) > worst {
			worst = get(st)
		}
	}

	if metric == "count" {
		return compareCount(result, metric, op, valueStr, float64(count))
	}
	return compareDuration(result, metric, op, valueStr, worst)
}

func evaluateCycles(expr string, r *Result) ThresholdResult {
	result := ThresholdResult{Metric: "cycles", Expression: expr}

	metric, op, valueStr, err := parseThresholdExpression(expr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse expression: %v", err)
		return result
	}

	var actual float64
	switch metric {
	case "count":
		actual = float64(r.Cycles)
	case "concurrent":
		actual = float64(r.Collector.Concurrent)
	case "degenerated":
		actual = float64(r.Collector.Degenerated)
	case "full":
		actual = float64(r.Collector.Full)
	case "cancelled":
		actual = float64(r.Collector.Cancelled)
	case "upgrades":
		actual = float64(r.Collector.Upgrades)
	case "oom":
		for _, m := range r.Mutators {
			actual += float64(m.OutOfMemory)
		}
	default:
		result.Message = fmt.Sprintf("unknown metric: %s", metric)
		return result
	}
	return compareCount(result, metric, op, valueStr, actual)
}

func compareDuration(result ThresholdResult, metric, op, valueStr string, actual time.Duration) ThresholdResult {
	threshold, err := time.ParseDuration(valueStr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse threshold value: %v", err)
		return result
	}

	result.Value = actual.String()
	result.Passed = compareValues(float64(actual), op, float64(threshold))
	if !result.Passed {
		result.Message = fmt.Sprintf("%s is %s, threshold: %s %s", metric, actual, op, threshold)
	}
	return result
}

func compareCount(result ThresholdResult, metric, op, valueStr string, actual float64) ThresholdResult {
	threshold, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse threshold value: %v", err)
		return result
	}

	result.Value = strconv.FormatFloat(actual, 'f', -1, 64)
	result.Passed = compareValues(actual, op, threshold)
	if !result.Passed {
		result.Message = fmt.Sprintf("%s is %s, threshold: %s %s", metric, result.Value, op, valueStr)
	}
	return result
}

var thresholdOps = []string{"<", "<=", ">", ">=", "==", "=", "!=", "<>"}

var thresholdExpr = regexp.MustCompile(`^(\w+)\s*([<>=!]+)\s*(.+)$`)

// parseThresholdExpression splits "p99 < 5ms" into its parts.
func parseThresholdExpression(expr string) (metric, op, value string, err error) {
	m := thresholdExpr.FindStringSubmatch(strings.TrimSpace(expr))
	if len(m) != 4 {
		return "", "", "", fmt.Errorf("invalid expression format: %s", expr)
	}
	return m[1], m[2], strings.TrimSpace(m[3]), nil
}

func compareValues(actual float64, op string, threshold float64) bool {
	switch op {
	case "<":
		return actual < threshold
	case "<=":
		return actual <= threshold
	case ">":
		return actual > threshold
	case ">=":
		return actual >= threshold
	case "==", "=":
		return actual == threshold
	case "!=", "<>":
		return actual != threshold
	default:
		return false
	}
}
