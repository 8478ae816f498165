package scope

import (
	"time"

	"github.com/wesleyorama2/gcscope/internal/gc/alloc"
	"github.com/wesleyorama2/gcscope/internal/gc/cause"
	"github.com/wesleyorama2/gcscope/internal/gc/clock"
	"github.com/wesleyorama2/gcscope/internal/gc/gctimer"
	"github.com/wesleyorama2/gcscope/internal/gc/gctrace"
	"github.com/wesleyorama2/gcscope/internal/gc/phase"
)

// Timer is the cycle timer.
type Timer interface {
	RegisterGCStart(at time.Time)
	RegisterGCEnd(at time.Time)
	RegisterGCPhaseStart(name string, at time.Time)
	RegisterGCPhaseEnd(at time.Time)
	GCStart() time.Time
	TimePartitions() *gctimer.TimePartitions
}

// Tracer reports cycle boundaries.
type Tracer interface {
	ReportGCStart(c cause.Cause, at time.Time)
	ReportGCEnd(at time.Time, partitions *gctimer.TimePartitions)
}

// PhaseTimings is the phase-timing table.
type PhaseTimings interface {
	RecordPhaseStart(p phase.Phase)
	RecordPhaseEnd(p phase.Phase)
}

// CycleRecorder observes cycle boundaries.
type CycleRecorder interface {
	RecordCycleStart()
	RecordCycleEnd()
}

// Heuristics observes cycle and pause boundaries.
type Heuristics interface {
	CycleRecorder
	RecordGCStart()
	RecordGCEnd()
}

// AllocTracker receives allocation latency samples.
type AllocTracker interface {
	RecordAllocLatency(words uint64, typ alloc.RequestType, durationMicros float64)
}

// Heap is the collector heap as seen by the markers.
type Heap interface {
	GCCause() cause.Cause
	SetGCCause(c cause.Cause)
	Clock() clock.Clock
	GCTimer() Timer
	Tracer() Tracer
	PhaseTimings() PhaseTimings
	Policy() CycleRecorder
	Heuristics() Heuristics
	// AllocTracker returns nil when allocation tracing was never set up.
	AllocTracker() AllocTracker
	// TraceHeap reports a usage snapshot to tracer.
	TraceHeap(when gctrace.When, tracer Tracer)
}

// UsageSource is implemented by heaps that can report memory usage for
// trace records.
type UsageSource interface {
	Usage() Usage
}

// TraceSink is implemented by heaps that collect finished trace records.
type TraceSink interface {
	RecordTrace(r TraceRecord)
}
