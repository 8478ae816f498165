package scope

import (
	"github.com/wesleyorama2/gcscope/internal/gc/contract"
	"github.com/wesleyorama2/gcscope/internal/gc/phase"
)

// PhaseGuard marks a named phase on one thread. Phases nest: the guard
// remembers the phase that was current when it began and restores it on
// End.
//
// # Thread Safety
//
// A PhaseGuard is owned by the goroutine driving its thread. The thread's
// current phase is stored atomically, so Registry.CurrentPhases may read
// it from any goroutine while the guard is live.
type PhaseGuard struct {
	heap   Heap        // Heap whose phase timings record the phase
	thread *Thread     // Thread the phase is current on
	phase  phase.Phase // Phase this guard marks
	parent phase.Phase // Phase restored on End, phase.Invalid at top level
	ended  bool        // Set by End
}

// BeginPhase makes p the current phase of t and starts its timing. Only
// coordinator and concurrent GC threads may enter phases.
func BeginPhase(h Heap, t *Thread, p phase.Phase) *PhaseGuard {
	contract.Checkf(t.canEnterPhase(),
		"phase %s must be set by the coordinator or a concurrent GC thread, not %s", p, t)
	contract.Checkf(phase.Valid(p), "invalid phase %d", int(p))

	g := &PhaseGuard{heap: h, thread: t, phase: p, parent: t.CurrentPhase()}
	t.current.Store(int32(p))
	t.registry.active.Add(1)

	h.PhaseTimings().RecordPhaseStart(p)
	return g
}

// Phase returns the phase this guard marks.
func (g *PhaseGuard) Phase() phase.Phase { return g.phase }

// Parent returns the phase that was current when the guard began.
func (g *PhaseGuard) Parent() phase.Phase { return g.parent }

// End stops the phase timing and restores the parent phase.
func (g *PhaseGuard) End() {
	contract.Checkf(!g.ended, "phase %s ended twice", g.phase)
	contract.Checkf(g.thread.CurrentPhase() == g.phase,
		"phase %s ended while %s is current on %s", g.phase, g.thread.CurrentPhase(), g.thread)
	g.ended = true

	g.heap.PhaseTimings().RecordPhaseEnd(g.phase)
	g.thread.current.Store(int32(g.parent))
	g.thread.registry.active.Add(-1)
}
