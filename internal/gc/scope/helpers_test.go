package scope

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/gcscope/internal/gc/alloc"
	"github.com/wesleyorama2/gcscope/internal/gc/cause"
	"github.com/wesleyorama2/gcscope/internal/gc/clock"
	"github.com/wesleyorama2/gcscope/internal/gc/contract"
	"github.com/wesleyorama2/gcscope/internal/gc/gctimer"
	"github.com/wesleyorama2/gcscope/internal/gc/gctrace"
	"github.com/wesleyorama2/gcscope/internal/gc/phase"
	"github.com/wesleyorama2/gcscope/internal/gc/policy"
	"github.com/wesleyorama2/gcscope/internal/gc/timing"
)

func TestMain(m *testing.M) {
	logrus.SetOutput(io.Discard)
	os.Exit(m.Run())
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type allocSample struct {
	words uint64
	typ   alloc.RequestType
	us    float64
}

type fakeTracker struct {
	samples []allocSample
}

func (f *fakeTracker) RecordAllocLatency(words uint64, typ alloc.RequestType, us float64) {
	f.samples = append(f.samples, allocSample{words, typ, us})
}

// recordingTimings wraps the real table and logs the call order.
type recordingTimings struct {
	*timing.PhaseTimings
	log *[]string
}

func (r recordingTimings) RecordPhaseStart(p phase.Phase) {
	*r.log = append(*r.log, "start "+p.Key())
	r.PhaseTimings.RecordPhaseStart(p)
}

func (r recordingTimings) RecordPhaseEnd(p phase.Phase) {
	*r.log = append(*r.log, "end "+p.Key())
	r.PhaseTimings.RecordPhaseEnd(p)
}

type testHeap struct {
	cause      cause.Cause
	clock      *clock.Manual
	timer      *gctimer.Timer
	tracer     *gctrace.Tracer
	timings    *timing.PhaseTimings
	policy     *policy.CollectorPolicy
	heuristics *policy.Heuristics
	tracker    *fakeTracker

	used    uint64
	log     []string
	records []TraceRecord
	traced  []gctrace.When
}

func newTestHeap() *testHeap {
	c := clock.NewManual(epoch)
	return &testHeap{
		clock:      c,
		timer:      gctimer.New(),
		tracer:     gctrace.New(),
		timings:    timing.New(c),
		policy:     policy.NewCollectorPolicy(),
		heuristics: policy.NewHeuristics(c),
		tracker:    &fakeTracker{},
		used:       1024,
	}
}

func (h *testHeap) GCCause() cause.Cause { return h.cause }
func (h *testHeap) SetGCCause(c cause.Cause) { h.cause = c }
func (h *testHeap) Clock() clock.Clock { return h.clock }
func (h *testHeap) GCTimer() Timer { return h.timer }
func (h *testHeap) Tracer() Tracer { return h.tracer }
func (h *testHeap) Policy() CycleRecorder { return h.policy }
func (h *testHeap) Heuristics() Heuristics { return h.heuristics }
func (h *testHeap) RecordTrace(r TraceRecord) { h.records = append(h.records, r) }
func (h *testHeap) Usage() Usage { return Usage{Used: h.used, Committed: 4096, Capacity: 8192} }

func (h *testHeap) PhaseTimings() PhaseTimings {
	return recordingTimings{PhaseTimings: h.timings, log: &h.log}
}

func (h *testHeap) AllocTracker() AllocTracker {
	if h.tracker == nil {
		return nil
	}
	return h.tracker
}

func (h *testHeap) TraceHeap(when gctrace.When, _ Tracer) {
	h.traced = append(h.traced, when)
}

// violation runs fn and returns the contract violation it panicked with.
func violation(t *testing.T, fn func()) (v *contract.Violation) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected a contract violation")
		}
		var ok bool
		v, ok = r.(*contract.Violation)
		if !ok {
			panic(r)
		}
	}()
	fn()
	return nil
}
