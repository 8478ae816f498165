package scope

import (
	"github.com/wesleyorama2/gcscope/internal/gc/cause"
	"github.com/wesleyorama2/gcscope/internal/gc/contract"
)

// PauseBracket is the timer bracket opened for every pause. It is distinct
// from all phase names.
const PauseBracket = "Collector Pause"

// PauseGuard marks a stop-the-world pause.
//
// # Thread Safety
//
// A PauseGuard is not safe for concurrent use. The goroutine that began
// the pause ends it; parallel workers running inside the pause never
// touch the guard.
type PauseGuard struct {
	heap   Heap        // Heap whose pause timer and heuristics are updated
	record TraceRecord // Snapshot taken at Begin for the pause trace
	ended  bool        // Set by End
}

// BeginPause opens a pause on the coordinator thread t. A session must be
// active.
func BeginPause(h Heap, t *Thread) *PauseGuard {
	contract.Checkf(t.role == RoleCoordinator, "pause must begin on the coordinator, not %s", t)
	contract.Check(h.GCCause() != cause.NoGC, "pause outside of a GC session")

	now := h.Clock().Now()
	h.GCTimer().RegisterGCPhaseStart(PauseBracket, now)
	g := &PauseGuard{
		heap:   h,
		record: beginRecord(h, PauseManager, pauseOptions, now),
	}
	h.Heuristics().RecordGCStart()
	return g
}

// Record returns the pause trace record.
func (g *PauseGuard) Record() TraceRecord { return g.record }

// End closes the pause bracket and notifies heuristics.
func (g *PauseGuard) End() {
	contract.Check(!g.ended, "pause ended twice")
	g.ended = true

	now := g.heap.Clock().Now()
	g.heap.GCTimer().RegisterGCPhaseEnd(now)
	g.record.finish(g.heap, now)
	g.heap.Heuristics().RecordGCEnd()
}
