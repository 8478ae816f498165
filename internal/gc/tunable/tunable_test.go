package tunable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	s := Snapshot()
	assert.False(t, s.AllocationTrace)
	assert.Equal(t, DefaultAllocationStallThreshold, s.AllocationStallThreshold)
}

func TestApplyRestore(t *testing.T) {
	prev := Apply(Settings{AllocationTrace: true, AllocationStallThreshold: 100 * time.Microsecond})
	defer Restore(prev)

	assert.True(t, AllocationTrace())
	assert.Equal(t, int64(100), AllocationStallThresholdMicros())

	Restore(prev)
	assert.Equal(t, prev, Snapshot())
}

func TestSubMicrosecondThresholdTruncates(t *testing.T) {
	prev := Snapshot()
	defer Restore(prev)

	SetAllocationStallThreshold(1500 * time.Nanosecond)
	assert.Equal(t, int64(1), AllocationStallThresholdMicros())
}
