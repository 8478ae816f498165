package scope

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/gcscope/internal/gc/alloc"
	"github.com/wesleyorama2/gcscope/internal/gc/tunable"
)

func withTunables(t *testing.T, s tunable.Settings) {
	t.Helper()
	prev := tunable.Apply(s)
	t.Cleanup(func() { tunable.Restore(prev) })
}

func TestAllocTrace_DisabledNeverCallsTracker(t *testing.T) {
	withTunables(t, tunable.Settings{AllocationTrace: false, AllocationStallThreshold: 100 * time.Microsecond})
	h := newTestHeap()

	tr := BeginAllocTrace(h, 64, alloc.TLAB)
	assert.False(t, tr.Enabled())
	h.clock.Advance(time.Second)
	tr.End()

	assert.Empty(t, h.tracker.samples)
}

func TestAllocTrace_DisabledToleratesMissingTracker(t *testing.T) {
	withTunables(t, tunable.Settings{AllocationTrace: false, AllocationStallThreshold: 100 * time.Microsecond})
	h := newTestHeap()
	h.tracker = nil

	tr := BeginAllocTrace(h, 64, alloc.Shared)
	tr.End()
}

func TestAllocTrace_StallWarning(t *testing.T) {
	withTunables(t, tunable.Settings{AllocationTrace: true, AllocationStallThreshold: 100 * time.Microsecond})

	tests := []struct {
		name     string
		elapsed  time.Duration
		warnings int
	}{
		{name: "over threshold", elapsed: 150 * time.Microsecond, warnings: 1},
		{name: "under threshold", elapsed: 50 * time.Microsecond, warnings: 0},
		{name: "at threshold", elapsed: 100 * time.Microsecond, warnings: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hook := test.NewGlobal()
			defer hook.Reset()

			h := newTestHeap()
			tr := BeginAllocTrace(h, 512, alloc.Shared)
			h.clock.Advance(tt.elapsed)
			tr.End()

			require.Len(t, h.tracker.samples, 1)
			got := h.tracker.samples[0]
			assert.EqualValues(t, 512, got.words)
			assert.Equal(t, alloc.Shared, got.typ)
			assert.InDelta(t, float64(tt.elapsed/time.Microsecond), got.us, 0.001)

			var warns []*logrus.Entry
			for _, e := range hook.AllEntries() {
				if e.Level == logrus.WarnLevel {
					warns = append(warns, e)
				}
			}
			require.Len(t, warns, tt.warnings)
			if tt.warnings == 0 {
				return
			}
			w := warns[0]
			assert.Equal(t, "Allocation stall: 150 us (threshold: 100 us)", w.Message)
			assert.EqualValues(t, 100, w.Data["threshold_us"])
			assert.InDelta(t, 150.0, w.Data["duration_us"], 0.001)
			assert.EqualValues(t, 512, w.Data["size_words"])
			assert.Equal(t, "shared", w.Data["alloc_type"])
		})
	}
}

func TestAllocTrace_ToggleSampledAtBegin(t *testing.T) {
	withTunables(t, tunable.Settings{AllocationTrace: false, AllocationStallThreshold: time.Millisecond})
	h := newTestHeap()

	off := BeginAllocTrace(h, 8, alloc.TLAB)
	tunable.SetAllocationTrace(true)
	on := BeginAllocTrace(h, 16, alloc.GCLAB)
	tunable.SetAllocationTrace(false)

	off.End()
	on.End()

	require.Len(t, h.tracker.samples, 1)
	assert.Equal(t, alloc.GCLAB, h.tracker.samples[0].typ)
}

func TestAllocTrace_EndOnce(t *testing.T) {
	withTunables(t, tunable.Settings{AllocationTrace: true, AllocationStallThreshold: time.Millisecond})
	h := newTestHeap()

	tr := BeginAllocTrace(h, 8, alloc.TLAB)
	tr.End()
	tr.End()
	assert.Len(t, h.tracker.samples, 1)
}

func TestAllocTrace_MissingTrackerIsFatal(t *testing.T) {
	withTunables(t, tunable.Settings{AllocationTrace: true, AllocationStallThreshold: time.Millisecond})
	h := newTestHeap()
	h.tracker = nil

	tr := BeginAllocTrace(h, 8, alloc.Shared)
	v := violation(t, tr.End)
	assert.Contains(t, v.Message, "allocation tracking")
}
