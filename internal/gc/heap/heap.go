// Package heap is the collector heap the scope markers operate on. It
// owns the cycle cause, the timer, the tracer, the phase-timing table,
// the policy and heuristics bookkeeping and the allocation tracker, and
// keeps a word-granular usage account for trace records.
package heap

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/gcscope/internal/gc/alloc"
	"github.com/wesleyorama2/gcscope/internal/gc/cause"
	"github.com/wesleyorama2/gcscope/internal/gc/clock"
	"github.com/wesleyorama2/gcscope/internal/gc/contract"
	"github.com/wesleyorama2/gcscope/internal/gc/gctimer"
	"github.com/wesleyorama2/gcscope/internal/gc/gctrace"
	"github.com/wesleyorama2/gcscope/internal/gc/policy"
	"github.com/wesleyorama2/gcscope/internal/gc/scope"
	"github.com/wesleyorama2/gcscope/internal/gc/timing"
)

// ErrOutOfMemory is returned by Allocate when the heap cannot satisfy a
// request and the caller gave no way to wait for memory.
var ErrOutOfMemory = errors.New("heap: out of memory")

// Gate brackets the mutator side of an allocation attempt. A collector
// that stops the world makes Enter block until the pause is over.
type Gate interface {
	Enter()
	Leave()
}

// Options configures a Heap.
type Options struct {
	// Capacity is the heap size in words.
	Capacity uint64
	// Clock drives every timestamp. Defaults to the system clock.
	Clock clock.Clock
	// TraceCapacity bounds the tracer's event ring.
	TraceCapacity int
	// Timing configures the phase histograms.
	Timing timing.Config
	// DisableAllocTracker leaves the heap without a latency tracker.
	DisableAllocTracker bool
	// Gate, when set, is entered around every mutator allocation attempt.
	Gate Gate
}

// ManagerStats accumulates the trace records of one memory manager.
type ManagerStats struct {
	Name              string             `json:"name"`
	Collections       uint64             `json:"collections"`
	AccumulatedGCTime time.Duration      `json:"accumulatedGcTime"`
	Last              *scope.TraceRecord `json:"last,omitempty"`
}

// Heap implements scope.Heap.
type Heap struct {
	clock      clock.Clock
	timer      *gctimer.Timer
	tracer     *gctrace.Tracer
	timings    *timing.PhaseTimings
	policy     *policy.CollectorPolicy
	heuristics *policy.Heuristics
	tracker    *alloc.Tracker
	threads    *scope.Registry
	gate       Gate

	cause    atomic.Uint32
	capacity uint64
	used     atomic.Uint64
	peak     atomic.Uint64

	mu       sync.Mutex
	managers map[scope.Manager]*ManagerStats
}

// New builds a heap from opts.
func New(opts Options) *Heap {
	c := opts.Clock
	if c == nil {
		c = clock.System{}
	}
	tc := opts.Timing
	if tc == (timing.Config{}) {
		tc = timing.DefaultConfig()
	}
	tracer := gctrace.New()
	if opts.TraceCapacity > 0 {
		tracer = gctrace.NewWithCapacity(opts.TraceCapacity)
	}

	h := &Heap{
		clock:      c,
		timer:      gctimer.New(),
		tracer:     tracer,
		timings:    timing.NewWithConfig(c, tc),
		policy:     policy.NewCollectorPolicy(),
		heuristics: policy.NewHeuristics(c),
		threads:    scope.NewRegistry(),
		capacity:   opts.Capacity,
		gate:       opts.Gate,
		managers: map[scope.Manager]*ManagerStats{
			scope.CycleManager: {Name: scope.CycleManager.String()},
			scope.PauseManager: {Name: scope.PauseManager.String()},
		},
	}
	if !opts.DisableAllocTracker {
		h.tracker = alloc.NewTracker()
	}
	return h
}

// GCCause returns the cause of the open session, or cause.NoGC.
func (h *Heap) GCCause() cause.Cause { return cause.Cause(h.cause.Load()) }

// SetGCCause publishes c as the heap's current cause. Sessions call it on
// Begin and End.
func (h *Heap) SetGCCause(c cause.Cause) { h.cause.Store(uint32(c)) }

// Clock returns the time source used by every guard on this heap.
func (h *Heap) Clock() clock.Clock { return h.clock }

// GCTimer returns the bracket timer that cycles and pauses report to.
func (h *Heap) GCTimer() scope.Timer { return h.timer }

// Tracer returns the cycle and pause tracer.
func (h *Heap) Tracer() scope.Tracer { return h.tracer }

// Policy returns the collector policy as a cycle recorder.
func (h *Heap) Policy() scope.CycleRecorder { return h.policy }

// Heuristics returns the heuristics as seen by guards.
func (h *Heap) Heuristics() scope.Heuristics { return h.heuristics }

// PhaseTimings returns the phase timing table as seen by guards.
func (h *Heap) PhaseTimings() scope.PhaseTimings { return h.timings }

// AllocTracker returns nil when the heap was built without a tracker.
func (h *Heap) AllocTracker() scope.AllocTracker {
	if h.tracker == nil {
		return nil
	}
	return h.tracker
}

type summaryReporter interface {
	ReportHeapSummary(s gctrace.HeapSummary)
}

// TraceHeap reports the current usage to tracers that accept summaries.
func (h *Heap) TraceHeap(when gctrace.When, tracer scope.Tracer) {
	r, ok := tracer.(summaryReporter)
	if !ok {
		return
	}
	u := h.Usage()
	r.ReportHeapSummary(gctrace.HeapSummary{
		When:      when,
		At:        h.clock.Now(),
		Used:      u.Used,
		Committed: u.Committed,
		Capacity:  u.Capacity,
	})
}

// Usage returns the current usage in words. Committed tracks the high
// water mark since the last Uncommit.
func (h *Heap) Usage() scope.Usage {
	return scope.Usage{
		Used:      h.used.Load(),
		Committed: h.peak.Load(),
		Capacity:  h.capacity,
	}
}

// RecordTrace folds a finished trace record into its manager.
func (h *Heap) RecordTrace(r scope.TraceRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m := h.managers[r.Manager]
	m.Collections += r.Collections
	m.AccumulatedGCTime += r.Elapsed
	last := r
	m.Last = &last
}

// Managers returns the per-manager accumulations ordered by name.
func (h *Heap) Managers() []ManagerStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]ManagerStats, 0, len(h.managers))
	for _, m := range h.managers {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Allocate reserves words for a request of kind typ made by t, timing the
// whole attempt with an allocation trace. Mutator attempts pass through the
// gate, so time spent held at a safepoint counts as latency. When the heap
// is full wait is called outside the gate and the attempt retried; a nil
// wait fails with ErrOutOfMemory.
func (h *Heap) Allocate(t *scope.Thread, words uint64, typ alloc.RequestType, wait func() error) error {
	contract.Checkf(typ.IsMutator() == (t.Role() == scope.RoleMutator),
		"%s request from %s", typ, t)

	tr := scope.BeginAllocTrace(h, words, typ)
	defer tr.End()

	for !h.attempt(words, typ) {
		if wait == nil {
			return ErrOutOfMemory
		}
		if err := wait(); err != nil {
			return err
		}
	}
	return nil
}

func (h *Heap) attempt(words uint64, typ alloc.RequestType) bool {
	if h.gate == nil || !typ.IsMutator() {
		return h.tryAllocate(words)
	}
	h.gate.Enter()
	defer h.gate.Leave()
	return h.tryAllocate(words)
}

func (h *Heap) tryAllocate(words uint64) bool {
	for {
		used := h.used.Load()
		if used+words > h.capacity {
			return false
		}
		if h.used.CompareAndSwap(used, used+words) {
			h.bumpPeak(used + words)
			return true
		}
	}
}

func (h *Heap) bumpPeak(v uint64) {
	for {
		p := h.peak.Load()
		if v <= p || h.peak.CompareAndSwap(p, v) {
			return
		}
	}
}

// Reclaim returns words to the heap and reports how many were actually
// freed.
func (h *Heap) Reclaim(words uint64) uint64 {
	for {
		used := h.used.Load()
		n := words
		if n > used {
			n = used
		}
		if h.used.CompareAndSwap(used, used-n) {
			return n
		}
	}
}

// Uncommit drops the committed high water mark back to current usage.
func (h *Heap) Uncommit() {
	h.peak.Store(h.used.Load())
}

// Free reports the unused words.
func (h *Heap) Free() uint64 {
	used := h.used.Load()
	if used >= h.capacity {
		return 0
	}
	return h.capacity - used
}

// Capacity reports the heap size in words.
func (h *Heap) Capacity() uint64 { return h.capacity }

// Threads is the registry collector and mutator threads are created from.
func (h *Heap) Threads() *scope.Registry { return h.threads }

// NewThread creates a thread in the heap's registry.
func (h *Heap) NewThread(name string, role scope.Role) *scope.Thread {
	return h.threads.NewThread(name, role)
}

// Concrete components, for reporting.

func (h *Heap) CycleTimer() *gctimer.Timer { return h.timer }
func (h *Heap) Events() *gctrace.Tracer { return h.tracer }
func (h *Heap) PhaseTable() *timing.PhaseTimings { return h.timings }
func (h *Heap) CollectorPolicy() *policy.CollectorPolicy { return h.policy }
func (h *Heap) HeuristicsState() *policy.Heuristics { return h.heuristics }
func (h *Heap) Allocations() *alloc.Tracker { return h.tracker }

var (
	_ scope.Heap        = (*Heap)(nil)
	_ scope.UsageSource = (*Heap)(nil)
	_ scope.TraceSink   = (*Heap)(nil)
)
