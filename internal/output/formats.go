package output

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/gcscope/internal/report"
	"github.com/wesleyorama2/gcscope/internal/sim"
)

// OutputFormat represents the available output formats
type OutputFormat string

const (
	// FormatText is the default human-readable text format
	FormatText OutputFormat = "text"
	// FormatJSON outputs in JSON format
	FormatJSON OutputFormat = "json"
	// FormatYAML outputs in YAML format
	FormatYAML OutputFormat = "yaml"
	// FormatJUnit outputs thresholds as JUnit XML (for CI/CD integration)
	FormatJUnit OutputFormat = "junit"
)

// Formats lists every supported format.
var Formats = []OutputFormat{FormatText, FormatJSON, FormatYAML, FormatJUnit}

// ParseFormat resolves a format name, case-insensitively.
func ParseFormat(s string) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FormatText, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	names := make([]string, len(Formats))
	for i, known := range Formats {
		names[i] = string(known)
	}
	return "", fmt.Errorf("unknown output format %q (expected one of: %s)", s, strings.Join(names, ", "))
}

// Render writes result to w in the given format.
func Render(w io.Writer, format OutputFormat, result *sim.Result) error {
	if result == nil {
		return fmt.Errorf("no result to render")
	}

	switch format {
	case FormatText, "":
		c := NewConsole(ConsoleConfig{Writer: w, NoColor: true})
		c.PrintSummary(result)
		c.PrintPhases(result)
		return nil
	case FormatJSON:
		return report.WriteJSON(w, result)
	case FormatYAML:
		return renderYAML(w, result)
	case FormatJUnit:
		return renderJUnit(w, result)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// renderYAML goes through JSON so the field names and cause keys match
// the JSON report and map keys keep their encoded order.
func renderYAML(w io.Writer, result *sim.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to convert result to YAML: %w", err)
	}
	blockStyle(&doc)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("failed to write YAML: %w", err)
	}
	return enc.Close()
}

// blockStyle drops the flow and quoting styles inherited from JSON.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, child := range n.Content {
		blockStyle(child)
	}
}

// JUnitTestSuites represents the root element containing all test suites
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite represents a JUnit test suite
type JUnitTestSuite struct {
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr"`
	TestCases []JUnitTestCase `xml:"testcase"`
	SystemOut string          `xml:"system-out,omitempty"`
}

// JUnitTestCase represents a JUnit test case
type JUnitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
}

// JUnitFailure represents a JUnit test failure
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// JUnitReport builds one suite with a test case per threshold. A run
// without thresholds yields a single case that fails only on
// out-of-memory.
func JUnitReport(result *sim.Result) *JUnitTestSuites {
	classname := "gcscope." + result.Name
	suite := JUnitTestSuite{
		Name:      result.Name,
		Time:      result.Duration.Seconds(),
		Timestamp: result.StartTime.Format("2006-01-02T15:04:05"),
		SystemOut: fmt.Sprintf("mode=%s cycles=%d allocations=%d", result.Mode, result.Cycles, result.Allocations()),
	}

	for _, t := range result.Thresholds {
		tc := JUnitTestCase{
			Name:      t.Metric + " " + t.Expression,
			Classname: classname,
		}
		if !t.Passed {
			msg := t.Message
			if msg == "" {
				msg = fmt.Sprintf("%s %s failed (actual: %s)", t.Metric, t.Expression, t.Value)
			}
			tc.Failure = &JUnitFailure{Message: msg, Type: "ThresholdFailure", Content: t.Value}
			suite.Failures++
		}
		suite.TestCases = append(suite.TestCases, tc)
	}

	if len(suite.TestCases) == 0 {
		tc := JUnitTestCase{Name: "simulation", Classname: classname, Time: suite.Time}
		var oom int64
		for _, m := range result.Mutators {
			oom += m.OutOfMemory
		}
		if oom > 0 {
			tc.Failure = &JUnitFailure{
				Message: fmt.Sprintf("%d allocations failed with out of memory", oom),
				Type:    "OutOfMemory",
			}
			suite.Failures++
		}
		suite.TestCases = append(suite.TestCases, tc)
	}

	suite.Tests = len(suite.TestCases)
	return &JUnitTestSuites{TestSuites: []JUnitTestSuite{suite}}
}

func renderJUnit(w io.Writer, result *sim.Result) error {
	output, err := xml.MarshalIndent(JUnitReport(result), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JUnit report: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.Write(output)
	buf.WriteByte('\n')
	_, err = w.Write(buf.Bytes())
	return err
}
