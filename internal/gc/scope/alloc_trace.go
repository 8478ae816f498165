package scope

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/gcscope/internal/gc/alloc"
	"github.com/wesleyorama2/gcscope/internal/gc/contract"
	"github.com/wesleyorama2/gcscope/internal/gc/tunable"
)

// AllocTrace measures the latency of one allocation request. It is a
// value type so a disabled trace costs one flag read and nothing else.
//
// # Thread Safety
//
// An AllocTrace lives on the stack of the allocating goroutine. The
// tracker it reports to is shared and synchronizes internally.
type AllocTrace struct {
	heap    Heap              // Heap whose tracker receives the sample
	start   time.Time         // Clock reading at Begin
	words   uint64            // Requested size in words
	typ     alloc.RequestType // Request kind used as the sample key
	enabled bool              // False when tracing was off at Begin
}

// BeginAllocTrace starts timing a request for words of kind typ. The
// allocation-trace tunable is sampled once here; End honours that sample.
func BeginAllocTrace(h Heap, words uint64, typ alloc.RequestType) AllocTrace {
	if !tunable.AllocationTrace() {
		return AllocTrace{}
	}
	return AllocTrace{
		heap:    h,
		start:   h.Clock().Now(),
		words:   words,
		typ:     typ,
		enabled: true,
	}
}

// Enabled reports whether the trace is recording.
func (a *AllocTrace) Enabled() bool { return a.enabled }

// End records the latency and warns when it exceeds the stall threshold.
func (a *AllocTrace) End() {
	if !a.enabled {
		return
	}
	a.enabled = false

	elapsed := a.heap.Clock().Now().Sub(a.start)
	us := float64(elapsed) / float64(time.Microsecond)

	tracker := a.heap.AllocTracker()
	contract.Check(tracker != nil, "allocation tracking is not enabled")
	tracker.RecordAllocLatency(a.words, a.typ, us)

	threshold := tunable.AllocationStallThresholdMicros()
	if us > float64(threshold) {
		logrus.WithFields(logrus.Fields{
			"duration_us":  us,
			"threshold_us": threshold,
			"size_words":   a.words,
			"alloc_type":   a.typ.String(),
		}).Warnf("Allocation stall: %.0f us (threshold: %d us)", us, threshold)
	}
}
