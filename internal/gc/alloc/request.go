// Package alloc tracks the latency of allocation requests made against
// the collector heap.
package alloc

import (
	"fmt"
	"strings"
)

// RequestType is the kind of allocation request.
type RequestType uint8

const (
	// Shared is a direct allocation by a mutator outside any TLAB.
	Shared RequestType = iota
	// SharedGC is a direct allocation made by the collector.
	SharedGC
	// TLAB is a mutator thread-local buffer refill.
	TLAB
	// GCLAB is a collector thread-local buffer refill.
	GCLAB

	NumRequestTypes
)

var requestNames = [NumRequestTypes]string{
	Shared:   "shared",
	SharedGC: "shared-gc",
	TLAB:     "tlab",
	GCLAB:    "gclab",
}

func (t RequestType) String() string {
	if t < NumRequestTypes {
		return requestNames[t]
	}
	return fmt.Sprintf("RequestType(%d)", uint8(t))
}

// IsMutator reports whether the request comes from application code.
func (t RequestType) IsMutator() bool {
	return t == Shared || t == TLAB
}

// ParseRequestType converts a name back to a RequestType.
func ParseRequestType(s string) (RequestType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range requestNames {
		if name == s {
			return RequestType(i), nil
		}
	}
	return 0, fmt.Errorf("invalid allocation request type: %q (expected: shared|shared-gc|tlab|gclab)", s)
}
