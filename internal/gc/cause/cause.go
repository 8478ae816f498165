// Package cause enumerates the reasons a collection cycle is started.
package cause

import (
	"fmt"
	"strings"
)

// Cause is the reason a GC cycle was triggered.
type Cause uint8

const (
	// NoGC is the sentinel held by the heap outside any cycle.
	NoGC Cause = iota
	AllocationFailure
	AllocationFailureEvac
	ConcurrentGC
	UpgradeToFullGC
	ExplicitGC
	ImplicitGC
	MetadataThreshold
	WhiteboxTest
)

var names = [...]string{
	NoGC:                  "No GC",
	AllocationFailure:     "Allocation Failure",
	AllocationFailureEvac: "Allocation Failure During Evacuation",
	ConcurrentGC:          "Concurrent GC",
	UpgradeToFullGC:       "Upgrade To Full GC",
	ExplicitGC:            "System.gc()",
	ImplicitGC:            "Implicit GC",
	MetadataThreshold:     "Metadata GC Threshold",
	WhiteboxTest:          "WhiteBox Initiated GC",
}

var keys = [...]string{
	NoGC:                  "none",
	AllocationFailure:     "allocation-failure",
	AllocationFailureEvac: "allocation-failure-evac",
	ConcurrentGC:          "concurrent",
	UpgradeToFullGC:       "upgrade-to-full",
	ExplicitGC:            "explicit",
	ImplicitGC:            "implicit",
	MetadataThreshold:     "metadata-threshold",
	WhiteboxTest:          "whitebox",
}

func (c Cause) String() string {
	if int(c) < len(names) {
		return names[c]
	}
	return fmt.Sprintf("Cause(%d)", uint8(c))
}

// Key returns the identifier used in config files.
func (c Cause) Key() string {
	if int(c) < len(keys) {
		return keys[c]
	}
	return "unknown"
}

// Parse converts a config key to a Cause.
func Parse(s string) (Cause, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, k := range keys {
		if k == s {
			return Cause(i), nil
		}
	}
	return NoGC, fmt.Errorf("invalid gc cause: %q (expected one of: %s)", s, strings.Join(keys[:], "|"))
}

// MarshalText encodes the cause by its key.
func (c Cause) MarshalText() ([]byte, error) {
	return []byte(c.Key()), nil
}

// UnmarshalText decodes a key written by MarshalText.
func (c *Cause) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
