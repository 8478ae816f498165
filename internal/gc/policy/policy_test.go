package policy

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/gcscope/internal/gc/clock"
)

func TestCollectorPolicy(t *testing.T) {
	p := NewCollectorPolicy()
	p.RecordCycleStart()
	p.RecordOutcome(OutcomeConcurrent)
	p.RecordCycleEnd()
	p.RecordCycleStart()
	p.RecordOutcome(OutcomeDegenerated)
	p.RecordOutcome(OutcomeAllocFailureEvac)
	p.RecordOutcome(Outcome(200))

	assert.Equal(t, uint64(2), p.CycleCounter())
	assert.Equal(t, uint64(1), p.Count(OutcomeConcurrent))
	assert.Equal(t, uint64(1), p.Count(OutcomeDegenerated))
	assert.Equal(t, uint64(0), p.Count(OutcomeFull))
	assert.Equal(t, uint64(0), p.Count(Outcome(200)))
	assert.Equal(t, uint64(1), p.Counts()["alloc-failure-evac"])

	var buf bytes.Buffer
	require.NoError(t, p.WriteSummary(&buf))
	assert.Contains(t, buf.String(), "2 cycles: 1 completed concurrently, 1 degenerated")
}

func TestHeuristicsBookkeeping(t *testing.T) {
	c := clock.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	h := NewHeuristics(c)
	assert.Zero(t, h.TimeSinceLastCycle())

	h.RecordCycleStart()
	c.Advance(time.Millisecond)
	h.RecordGCStart()
	c.Advance(2 * time.Millisecond)
	h.RecordGCEnd()
	c.Advance(5 * time.Millisecond)
	h.RecordGCStart()
	c.Advance(time.Millisecond)
	h.RecordGCEnd()
	c.Advance(time.Millisecond)
	h.RecordCycleEnd()

	s := h.Stats()
	assert.Equal(t, int64(1), s.Cycles)
	assert.Equal(t, int64(2), s.Pauses)
	assert.Equal(t, 3*time.Millisecond, s.PauseTime)
	assert.Equal(t, 10*time.Millisecond, s.LastCycleTime)
	assert.False(t, s.InCycle)
	assert.False(t, s.InPause)

	c.Advance(time.Second)
	assert.Equal(t, time.Second, h.TimeSinceLastCycle())
}

func TestHeuristicsContracts(t *testing.T) {
	h := NewHeuristics(nil)
	assert.Panics(t, func() { h.RecordCycleEnd() })
	assert.Panics(t, func() { h.RecordGCEnd() })

	h.RecordCycleStart()
	assert.Panics(t, func() { h.RecordCycleStart() })

	h.RecordGCStart()
	assert.Panics(t, func() { h.RecordGCStart() }, "overlapping pauses")
	assert.Panics(t, func() { h.RecordCycleEnd() }, "cycle end inside pause")
}
