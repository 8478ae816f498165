// Package gctrace reports collection cycles as discrete events.
//
// A Tracer assigns each cycle a sequential GC id when it starts and turns
// it into a GCEvent when it ends. The most recent events are kept in a
// fixed-size ring so reports can show recent history without unbounded
// growth.
package gctrace

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/gcscope/internal/gc/cause"
	"github.com/wesleyorama2/gcscope/internal/gc/contract"
	"github.com/wesleyorama2/gcscope/internal/gc/gctimer"
)

// DefaultCapacity is the number of completed events kept by New.
const DefaultCapacity = 256

// When distinguishes heap summaries taken around a collection.
type When uint8

const (
	BeforeGC When = iota
	AfterGC
)

func (w When) String() string {
	if w == BeforeGC {
		return "Before GC"
	}
	return "After GC"
}

// HeapSummary is a usage snapshot reported through the heap trace hook.
type HeapSummary struct {
	When      When      `json:"when"`
	At        time.Time `json:"at"`
	Used      uint64    `json:"used"`
	Committed uint64    `json:"committed"`
	Capacity  uint64    `json:"capacity"`
}

// GCEvent is one completed cycle.
type GCEvent struct {
	ID           uint64                  `json:"id"`
	Cause        cause.Cause             `json:"cause"`
	Start        time.Time               `json:"start"`
	End          time.Time               `json:"end"`
	Pauses       int                     `json:"pauses"`
	SumOfPauses  time.Duration           `json:"sumOfPauses"`
	LongestPause time.Duration           `json:"longestPause"`
	Phases       []gctimer.PhaseInterval `json:"phases,omitempty"`
	Heap         []HeapSummary           `json:"heap,omitempty"`
}

// Duration is the wall time of the cycle.
func (e GCEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Tracer is safe for concurrent use.
type Tracer struct {
	mu      sync.Mutex
	nextID  uint64
	current *GCEvent

	events   []GCEvent
	capacity int
	head     int
	full     bool
	total    uint64
}

// New returns a tracer keeping the last DefaultCapacity events.
func New() *Tracer {
	return NewWithCapacity(DefaultCapacity)
}

// NewWithCapacity returns a tracer keeping the last capacity events.
func NewWithCapacity(capacity int) *Tracer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tracer{
		events:   make([]GCEvent, capacity),
		capacity: capacity,
	}
}

// ReportGCStart opens the event for a new cycle.
func (t *Tracer) ReportGCStart(c cause.Cause, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	contract.Check(t.current == nil, "gc start reported while a cycle is being traced")
	t.current = &GCEvent{ID: t.nextID, Cause: c, Start: at}
	t.nextID++

	logrus.WithFields(logrus.Fields{
		"gc_id": t.current.ID,
		"cause": c.String(),
	}).Debug("GC cycle started")
}

// ReportHeapSummary attaches a usage snapshot to the open event. Summaries
// reported outside a cycle are dropped.
func (t *Tracer) ReportHeapSummary(s HeapSummary) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return
	}
	t.current.Heap = append(t.current.Heap, s)
}

// ReportGCEnd closes the open event using the timer's partitions.
func (t *Tracer) ReportGCEnd(at time.Time, tp *gctimer.TimePartitions) {
	ev := t.finish(at, tp)

	logrus.WithFields(logrus.Fields{
		"gc_id":         ev.ID,
		"pauses":        ev.Pauses,
		"sum_pauses":    ev.SumOfPauses,
		"longest_pause": ev.LongestPause,
	}).Infof("GC(%d) %s %s", ev.ID, ev.Cause, ev.Duration())
}

func (t *Tracer) finish(at time.Time, tp *gctimer.TimePartitions) GCEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	contract.Check(t.current != nil, "gc end reported without gc start")
	ev := *t.current
	t.current = nil

	ev.End = at
	ev.Pauses = tp.PauseCount()
	ev.SumOfPauses = tp.SumOfPauses()
	ev.LongestPause = tp.LongestPause()
	ev.Phases = tp.Phases()

	t.events[t.head] = ev
	t.head = (t.head + 1) % t.capacity
	if t.head == 0 {
		t.full = true
	}
	t.total++
	return ev
}

// InCycle reports whether a cycle is being traced.
func (t *Tracer) InCycle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current != nil
}

// Total is the number of cycles completed since creation, including those
// that fell out of the ring.
func (t *Tracer) Total() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Events returns the retained events, oldest first.
func (t *Tracer) Events() []GCEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.full {
		out := make([]GCEvent, t.head)
		copy(out, t.events[:t.head])
		return out
	}

	out := make([]GCEvent, t.capacity)
	n := copy(out, t.events[t.head:])
	copy(out[n:], t.events[:t.head])
	return out
}

// Last returns the most recently completed event.
func (t *Tracer) Last() (GCEvent, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.total == 0 {
		return GCEvent{}, false
	}
	idx := (t.head - 1 + t.capacity) % t.capacity
	return t.events[idx], true
}
