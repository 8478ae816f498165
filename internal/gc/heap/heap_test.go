package heap

import (
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/gcscope/internal/gc/alloc"
	"github.com/wesleyorama2/gcscope/internal/gc/cause"
	"github.com/wesleyorama2/gcscope/internal/gc/clock"
	"github.com/wesleyorama2/gcscope/internal/gc/gctrace"
	"github.com/wesleyorama2/gcscope/internal/gc/phase"
	"github.com/wesleyorama2/gcscope/internal/gc/scope"
	"github.com/wesleyorama2/gcscope/internal/gc/tunable"
)

func TestMain(m *testing.M) {
	logrus.SetOutput(io.Discard)
	os.Exit(m.Run())
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newManualHeap(capacity uint64) (*Heap, *clock.Manual) {
	c := clock.NewManual(epoch)
	return New(Options{Capacity: capacity, Clock: c}), c
}

func TestAllocate_Accounting(t *testing.T) {
	h, _ := newManualHeap(100)
	m := h.NewThread("mutator-0", scope.RoleMutator)

	require.NoError(t, h.Allocate(m, 60, alloc.TLAB, nil))
	assert.EqualValues(t, 60, h.Usage().Used)
	assert.EqualValues(t, 40, h.Free())

	err := h.Allocate(m, 50, alloc.Shared, nil)
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.EqualValues(t, 60, h.Usage().Used)

	assert.EqualValues(t, 60, h.Reclaim(80))
	assert.EqualValues(t, 0, h.Usage().Used)
	assert.EqualValues(t, 60, h.Usage().Committed)

	h.Uncommit()
	assert.EqualValues(t, 0, h.Usage().Committed)
}

func TestAllocate_WaitsForMemory(t *testing.T) {
	h, _ := newManualHeap(10)
	m := h.NewThread("mutator-0", scope.RoleMutator)
	require.NoError(t, h.Allocate(m, 10, alloc.TLAB, nil))

	waits := 0
	err := h.Allocate(m, 4, alloc.TLAB, func() error {
		waits++
		if waits == 2 {
			h.Reclaim(5)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, waits)
	assert.EqualValues(t, 9, h.Usage().Used)

	stop := errors.New("stop")
	err = h.Allocate(m, 4, alloc.TLAB, func() error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestAllocate_TracesLatency(t *testing.T) {
	prev := tunable.Apply(tunable.Settings{AllocationTrace: true, AllocationStallThreshold: time.Second})
	defer tunable.Restore(prev)

	h, _ := newManualHeap(1 << 20)
	m := h.NewThread("mutator-0", scope.RoleMutator)

	err := h.Allocate(m, 256, alloc.Shared, nil)
	require.NoError(t, err)

	full, c := newManualHeap(0)
	fm := full.NewThread("mutator-1", scope.RoleMutator)
	err = full.Allocate(fm, 256, alloc.TLAB, func() error {
		c.Advance(time.Millisecond)
		return errors.New("gave up")
	})
	require.Error(t, err)

	assert.EqualValues(t, 1, h.Allocations().Count())
	assert.EqualValues(t, 1, full.Allocations().Count())
	stats := full.Allocations().ByType()[alloc.TLAB]
	assert.Equal(t, time.Millisecond, stats.Max)
}

func TestAllocate_RequestTypeMustMatchRole(t *testing.T) {
	h, _ := newManualHeap(100)
	worker := h.NewThread("worker-0", scope.RoleWorker)
	mutator := h.NewThread("mutator-0", scope.RoleMutator)

	require.NoError(t, h.Allocate(worker, 1, alloc.GCLAB, nil))
	require.NoError(t, h.Allocate(mutator, 1, alloc.TLAB, nil))

	assert.Panics(t, func() { _ = h.Allocate(worker, 1, alloc.TLAB, nil) })
	assert.PanicsWithError(t,
		"contract violation: shared-gc request from mutator-0(mutator)",
		func() { _ = h.Allocate(mutator, 1, alloc.SharedGC, nil) })
}

func TestAllocTracker_NilWhenDisabled(t *testing.T) {
	h := New(Options{Capacity: 1, DisableAllocTracker: true})
	assert.Nil(t, h.AllocTracker())
	assert.Nil(t, h.Allocations())

	h = New(Options{Capacity: 1})
	assert.NotNil(t, h.AllocTracker())
}

func TestSession_EndToEnd(t *testing.T) {
	h, c := newManualHeap(1000)
	vm := h.NewThread("vm", scope.RoleCoordinator)
	control := h.NewThread("control", scope.RoleConcurrentGC)
	m := h.NewThread("mutator-0", scope.RoleMutator)
	require.NoError(t, h.Allocate(m, 400, alloc.TLAB, nil))

	func() {
		s := scope.BeginSession(h, control, cause.ConcurrentGC)
		defer s.End()

		func() {
			p := scope.BeginPause(h, vm)
			defer p.End()
			g := scope.BeginPhase(h, vm, phase.InitMark)
			defer g.End()
			c.Advance(2 * time.Millisecond)
		}()

		func() {
			g := scope.BeginPhase(h, control, phase.ConcMark)
			defer g.End()
			c.Advance(20 * time.Millisecond)
		}()

		h.Reclaim(300)
	}()

	assert.Equal(t, cause.NoGC, h.GCCause())

	ev, ok := h.Events().Last()
	require.True(t, ok)
	assert.Equal(t, cause.ConcurrentGC, ev.Cause)
	assert.Equal(t, 1, ev.Pauses)
	assert.Equal(t, 2*time.Millisecond, ev.SumOfPauses)
	assert.Equal(t, 22*time.Millisecond, ev.Duration())
	require.Len(t, ev.Heap, 2)
	assert.Equal(t, gctrace.BeforeGC, ev.Heap[0].When)
	assert.EqualValues(t, 400, ev.Heap[0].Used)
	assert.Equal(t, gctrace.AfterGC, ev.Heap[1].When)
	assert.EqualValues(t, 100, ev.Heap[1].Used)

	assert.EqualValues(t, 1, h.PhaseTable().Stats(phase.InitMark).Count)
	assert.EqualValues(t, 1, h.PhaseTable().Stats(phase.ConcMark).Count)

	managers := h.Managers()
	require.Len(t, managers, 2)
	assert.Equal(t, "cycles", managers[0].Name)
	assert.EqualValues(t, 1, managers[0].Collections)
	assert.Equal(t, 22*time.Millisecond, managers[0].AccumulatedGCTime)
	require.NotNil(t, managers[0].Last.PostGCUsage)
	assert.EqualValues(t, 100, managers[0].Last.PostGCUsage.Used)

	assert.Equal(t, "pauses", managers[1].Name)
	assert.EqualValues(t, 1, managers[1].Collections)
	assert.Equal(t, 2*time.Millisecond, managers[1].AccumulatedGCTime)
	assert.Nil(t, managers[1].Last.PreGCUsage)

	assert.EqualValues(t, 1, h.CollectorPolicy().CycleCounter())
	assert.EqualValues(t, 1, h.HeuristicsState().Stats().Pauses)
}

type countingGate struct {
	enters, leaves int
}

func (g *countingGate) Enter() { g.enters++ }
func (g *countingGate) Leave() { g.leaves++ }

func TestAllocate_GateOnlyForMutators(t *testing.T) {
	g := &countingGate{}
	h := New(Options{Capacity: 10, Gate: g})
	m := h.NewThread("mutator-0", scope.RoleMutator)
	w := h.NewThread("worker-0", scope.RoleWorker)

	require.NoError(t, h.Allocate(m, 4, alloc.TLAB, nil))
	require.NoError(t, h.Allocate(w, 4, alloc.GCLAB, nil))
	assert.ErrorIs(t, h.Allocate(m, 4, alloc.Shared, nil), ErrOutOfMemory)

	assert.Equal(t, 2, g.enters)
	assert.Equal(t, 2, g.leaves)
}
