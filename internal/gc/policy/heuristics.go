package policy

import (
	"sync"
	"time"

	"github.com/wesleyorama2/gcscope/internal/gc/clock"
	"github.com/wesleyorama2/gcscope/internal/gc/contract"
)

// Heuristics records cycle and pause boundaries for the collection
// heuristics.
type Heuristics struct {
	clock clock.Clock

	mu             sync.Mutex
	cycleStart     time.Time
	lastCycleEnd   time.Time
	lastCycleTime  time.Duration
	inCycle        bool
	pauseStart     time.Time
	inPause        bool
	pauses         int64
	pauseTime      time.Duration
	cyclePauseTime time.Duration
	cycles         int64
}

// HeuristicsStats is a snapshot of the bookkeeping.
type HeuristicsStats struct {
	Cycles        int64         `json:"cycles"`
	Pauses        int64         `json:"pauses"`
	PauseTime     time.Duration `json:"pauseTime"`
	LastCycleTime time.Duration `json:"lastCycleTime"`
	LastCycleEnd  time.Time     `json:"lastCycleEnd"`
	InCycle       bool          `json:"inCycle"`
	InPause       bool          `json:"inPause"`
}

// NewHeuristics returns heuristics bookkeeping driven by c.
func NewHeuristics(c clock.Clock) *Heuristics {
	if c == nil {
		c = clock.System{}
	}
	return &Heuristics{clock: c}
}

// RecordCycleStart stamps the start of a cycle.
func (h *Heuristics) RecordCycleStart() {
	now := h.clock.Now()

	h.mu.Lock()
	defer h.mu.Unlock()
	contract.Check(!h.inCycle, "heuristics: cycle already started")
	h.inCycle = true
	h.cycleStart = now
	h.cyclePauseTime = 0
}

// RecordCycleEnd stamps the end of a cycle.
func (h *Heuristics) RecordCycleEnd() {
	now := h.clock.Now()

	h.mu.Lock()
	defer h.mu.Unlock()
	contract.Check(h.inCycle, "heuristics: cycle end without start")
	contract.Check(!h.inPause, "heuristics: cycle ended inside a pause")
	h.inCycle = false
	h.lastCycleEnd = now
	h.lastCycleTime = now.Sub(h.cycleStart)
	h.cycles++
}

// RecordGCStart stamps the start of a pause.
func (h *Heuristics) RecordGCStart() {
	now := h.clock.Now()

	h.mu.Lock()
	defer h.mu.Unlock()
	contract.Check(!h.inPause, "heuristics: pauses must not overlap")
	h.inPause = true
	h.pauseStart = now
}

// RecordGCEnd stamps the end of a pause.
func (h *Heuristics) RecordGCEnd() {
	now := h.clock.Now()

	h.mu.Lock()
	defer h.mu.Unlock()
	contract.Check(h.inPause, "heuristics: pause end without start")
	h.inPause = false
	d := now.Sub(h.pauseStart)
	h.pauses++
	h.pauseTime += d
	h.cyclePauseTime += d
}

// TimeSinceLastCycle returns how long ago the last cycle ended, or zero
// if none has.
func (h *Heuristics) TimeSinceLastCycle() time.Duration {
	now := h.clock.Now()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lastCycleEnd.IsZero() {
		return 0
	}
	return now.Sub(h.lastCycleEnd)
}

// Stats returns a snapshot of the bookkeeping.
func (h *Heuristics) Stats() HeuristicsStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HeuristicsStats{
		Cycles:        h.cycles,
		Pauses:        h.pauses,
		PauseTime:     h.pauseTime,
		LastCycleTime: h.lastCycleTime,
		LastCycleEnd:  h.lastCycleEnd,
		InCycle:       h.inCycle,
		InPause:       h.inPause,
	}
}
