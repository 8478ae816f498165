package gctrace

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/gcscope/internal/gc/cause"
	"github.com/wesleyorama2/gcscope/internal/gc/gctimer"
)

func TestMain(m *testing.M) {
	logrus.SetOutput(io.Discard)
	os.Exit(m.Run())
}

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func runCycle(tr *Tracer, c cause.Cause, start time.Time, pause time.Duration) {
	timer := gctimer.New()
	timer.RegisterGCStart(start)
	tr.ReportGCStart(c, timer.GCStart())
	tr.ReportHeapSummary(HeapSummary{When: BeforeGC, At: start, Used: 100})
	timer.RegisterGCPhaseStart("pause", start.Add(time.Millisecond))
	timer.RegisterGCPhaseEnd(start.Add(time.Millisecond + pause))
	end := start.Add(10 * time.Millisecond)
	tr.ReportGCEnd(end, timer.TimePartitions())
	timer.RegisterGCEnd(end)
}

func TestTracerRecordsCycle(t *testing.T) {
	tr := New()
	runCycle(tr, cause.AllocationFailure, t0, 2*time.Millisecond)

	assert.False(t, tr.InCycle())
	assert.Equal(t, uint64(1), tr.Total())

	ev, ok := tr.Last()
	require.True(t, ok)
	assert.Equal(t, uint64(0), ev.ID)
	assert.Equal(t, cause.AllocationFailure, ev.Cause)
	assert.Equal(t, 10*time.Millisecond, ev.Duration())
	assert.Equal(t, 1, ev.Pauses)
	assert.Equal(t, 2*time.Millisecond, ev.SumOfPauses)
	assert.Equal(t, 2*time.Millisecond, ev.LongestPause)
	require.Len(t, ev.Heap, 1)
	assert.Equal(t, BeforeGC, ev.Heap[0].When)
	assert.Len(t, ev.Phases, 1)
}

func TestTracerRingKeepsNewest(t *testing.T) {
	tr := NewWithCapacity(3)
	for i := 0; i < 5; i++ {
		runCycle(tr, cause.ConcurrentGC, t0.Add(time.Duration(i)*time.Second), time.Millisecond)
	}

	events := tr.Events()
	require.Len(t, events, 3)
	assert.Equal(t, uint64(2), events[0].ID)
	assert.Equal(t, uint64(4), events[2].ID)
	assert.Equal(t, uint64(5), tr.Total())
}

func TestTracerContracts(t *testing.T) {
	tr := New()
	assert.Panics(t, func() { tr.ReportGCEnd(t0, nil) })

	tr.ReportGCStart(cause.ConcurrentGC, t0)
	assert.Panics(t, func() { tr.ReportGCStart(cause.ConcurrentGC, t0) })
}

func TestHeapSummaryOutsideCycleIsDropped(t *testing.T) {
	tr := New()
	tr.ReportHeapSummary(HeapSummary{When: BeforeGC})
	_, ok := tr.Last()
	assert.False(t, ok)
	assert.Empty(t, tr.Events())
}
