package output

import (
	"github.com/fatih/color"
)

// ColorScheme defines the colors used for different elements in the output
type ColorScheme struct {
	Title   *color.Color
	Rule    *color.Color
	Label   *color.Color
	Value   *color.Color
	Phase   *color.Color
	Latency *color.Color
	Pass    *color.Color
	Warn    *color.Color
	Fail    *color.Color
	Dim     *color.Color
}

// DefaultColorScheme returns the default color scheme
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Title:   color.New(color.Bold),
		Rule:    color.New(color.FgCyan),
		Label:   color.New(color.FgYellow),
		Value:   color.New(color.FgCyan),
		Phase:   color.New(color.FgMagenta),
		Latency: color.New(color.FgBlue),
		Pass:    color.New(color.FgGreen, color.Bold),
		Warn:    color.New(color.FgYellow, color.Bold),
		Fail:    color.New(color.FgRed, color.Bold),
		Dim:     color.New(color.Faint),
	}
}

// NoColorScheme returns a color scheme with all colors disabled
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()
	for _, c := range scheme.all() {
		c.DisableColor()
	}
	return scheme
}

// forceColor enables every color regardless of the package-wide
// color.NoColor setting, which only looks at os.Stdout.
func (s *ColorScheme) forceColor() *ColorScheme {
	for _, c := range s.all() {
		c.EnableColor()
	}
	return s
}

func (s *ColorScheme) all() []*color.Color {
	return []*color.Color{s.Title, s.Rule, s.Label, s.Value, s.Phase, s.Latency, s.Pass, s.Warn, s.Fail, s.Dim}
}

// SuccessIcon returns a checkmark symbol with appropriate color
func SuccessIcon(noColor bool) string {
	if noColor {
		return "✓"
	}
	return color.New(color.FgGreen).Sprint("✓")
}

// ErrorIcon returns an X symbol with appropriate color
func ErrorIcon(noColor bool) string {
	if noColor {
		return "✗"
	}
	return color.New(color.FgRed).Sprint("✗")
}

// WarningIcon returns a warning symbol with appropriate color
func WarningIcon(noColor bool) string {
	if noColor {
		return "⚠"
	}
	return color.New(color.FgYellow).Sprint("⚠")
}
