package scope

import (
	"github.com/wesleyorama2/gcscope/internal/gc/cause"
	"github.com/wesleyorama2/gcscope/internal/gc/contract"
	"github.com/wesleyorama2/gcscope/internal/gc/gctrace"
	"github.com/wesleyorama2/gcscope/internal/gc/phase"
)

// Session marks one collection cycle. Exactly one session is active per
// heap at a time, and while it is active the heap's cause is the cause the
// session was opened with.
//
// # Thread Safety
//
// A Session belongs to the goroutine driving its thread. BeginSession and
// End must run on that goroutine; other goroutines observe the session
// only through the heap's cause and counters.
type Session struct {
	heap   Heap        // Heap whose cause and counters the session updates
	thread *Thread     // Coordinator or concurrent GC thread that opened it
	cause  cause.Cause // Cause published on the heap until End
	record TraceRecord // Snapshot taken at Begin for the cycle trace
	ended  bool        // Set by End
}

// BeginSession opens a cycle for c. No phase may be live on any thread of
// t's registry.
func BeginSession(h Heap, t *Thread, c cause.Cause) *Session {
	contract.Checkf(t.canEnterPhase(), "GC session must begin on a GC thread, not %s", t)
	contract.Check(c != cause.NoGC, "GC session requires a cause")
	contract.Check(!phase.Valid(t.CurrentPhase()), "No current GC phase")
	contract.Checkf(t.registry.ActivePhases() == 0,
		"GC session opened with %d live phases", t.registry.ActivePhases())
	contract.Checkf(h.GCCause() == cause.NoGC,
		"GC session for %s opened while %s is active", c, h.GCCause())

	h.SetGCCause(c)

	timer := h.GCTimer()
	tracer := h.Tracer()
	now := h.Clock().Now()
	timer.RegisterGCStart(now)
	tracer.ReportGCStart(c, timer.GCStart())
	h.TraceHeap(gctrace.BeforeGC, tracer)

	h.Policy().RecordCycleStart()
	h.Heuristics().RecordCycleStart()

	return &Session{
		heap:   h,
		thread: t,
		cause:  c,
		record: beginRecord(h, CycleManager, cycleOptions, now),
	}
}

// Cause returns the cause the session was opened with.
func (s *Session) Cause() cause.Cause { return s.cause }

// Record returns the cycle trace record.
func (s *Session) Record() TraceRecord { return s.record }

// End closes the cycle. The tracer sees the same end instant the timer
// records. The heap's cause is reset even if a check below fails.
func (s *Session) End() {
	contract.Check(!s.ended, "GC session ended twice")
	s.ended = true
	defer s.heap.SetGCCause(cause.NoGC)

	h := s.heap
	h.Heuristics().RecordCycleEnd()

	timer := h.GCTimer()
	tracer := h.Tracer()
	h.TraceHeap(gctrace.AfterGC, tracer)

	end := h.Clock().Now()
	tracer.ReportGCEnd(end, timer.TimePartitions())
	timer.RegisterGCEnd(end)
	s.record.finish(h, end)

	contract.Check(!phase.Valid(s.thread.CurrentPhase()), "No current GC phase")
	contract.Checkf(s.thread.registry.ActivePhases() == 0,
		"GC session closed with %d live phases", s.thread.registry.ActivePhases())
}
