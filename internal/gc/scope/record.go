package scope

import (
	"time"

	"github.com/wesleyorama2/gcscope/internal/gc/cause"
)

// Usage is a heap usage snapshot in words.
type Usage struct {
	Used      uint64 `json:"used"`
	Committed uint64 `json:"committed"`
	Capacity  uint64 `json:"capacity"`
}

// Manager names the memory manager a trace record is reported against.
type Manager uint8

const (
	// CycleManager accounts whole collection cycles.
	CycleManager Manager = iota
	// PauseManager accounts stop-the-world pauses.
	PauseManager
)

func (m Manager) String() string {
	if m == PauseManager {
		return "pauses"
	}
	return "cycles"
}

// RecordOptions selects what a TraceRecord captures.
type RecordOptions struct {
	AllMemoryPoolsAffected bool `json:"all_memory_pools_affected"`
	GCBeginTime            bool `json:"gc_begin_time"`
	PreGCUsage             bool `json:"pre_gc_usage"`
	PeakUsage              bool `json:"peak_usage"`
	PostGCUsage            bool `json:"post_gc_usage"`
	AccumulatedGCTime      bool `json:"accumulated_gc_time"`
	GCEndTime              bool `json:"gc_end_time"`
	CountCollection        bool `json:"count_collection"`
}

var (
	cycleOptions = RecordOptions{
		AllMemoryPoolsAffected: true,
		GCBeginTime:            true,
		PreGCUsage:             true,
		PeakUsage:              true,
		PostGCUsage:            true,
		AccumulatedGCTime:      true,
		GCEndTime:              true,
		CountCollection:        true,
	}

	// Pauses never snapshot usage.
	pauseOptions = RecordOptions{
		AllMemoryPoolsAffected: true,
		GCBeginTime:            true,
		AccumulatedGCTime:      true,
		GCEndTime:              true,
		CountCollection:        true,
	}
)

// TraceRecord is the management statistics record held by a Session or a
// PauseGuard.
type TraceRecord struct {
	Manager Manager       `json:"manager"`
	Cause   cause.Cause   `json:"cause"`
	Options RecordOptions `json:"options"`

	Begin time.Time `json:"begin"`
	End   time.Time `json:"end"`

	PreGCUsage  *Usage `json:"pre_gc_usage,omitempty"`
	PeakUsage   *Usage `json:"peak_usage,omitempty"`
	PostGCUsage *Usage `json:"post_gc_usage,omitempty"`

	// Elapsed is End-Begin when AccumulatedGCTime is set.
	Elapsed time.Duration `json:"elapsed"`
	// Collections is 1 when CountCollection is set.
	Collections uint64 `json:"collections"`
}

func beginRecord(h Heap, m Manager, opts RecordOptions, at time.Time) TraceRecord {
	r := TraceRecord{Manager: m, Cause: h.GCCause(), Options: opts, Begin: at}
	if opts.PreGCUsage {
		r.PreGCUsage = usageOf(h)
	}
	if opts.PeakUsage {
		r.PeakUsage = usageOf(h)
	}
	return r
}

func (r *TraceRecord) finish(h Heap, at time.Time) {
	r.End = at
	if r.Options.PeakUsage {
		if u := usageOf(h); u != nil && (r.PeakUsage == nil || u.Used > r.PeakUsage.Used) {
			r.PeakUsage = u
		}
	}
	if r.Options.PostGCUsage {
		r.PostGCUsage = usageOf(h)
	}
	if r.Options.AccumulatedGCTime {
		r.Elapsed = at.Sub(r.Begin)
	}
	if r.Options.CountCollection {
		r.Collections = 1
	}
	if sink, ok := h.(TraceSink); ok {
		sink.RecordTrace(*r)
	}
}

func usageOf(h Heap) *Usage {
	src, ok := h.(UsageSource)
	if !ok {
		return nil
	}
	u := src.Usage()
	return &u
}
