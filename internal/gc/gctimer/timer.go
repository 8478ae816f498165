// Package gctimer records the start and end of a collection cycle and the
// nested brackets registered inside it.
package gctimer

import (
	"sync"
	"time"

	"github.com/wesleyorama2/gcscope/internal/gc/contract"
)

// Timer is the cycle timer of a concurrent collector. Pause brackets are
// registered at level 0 so that reporting tools see them before any
// nested detail.
//
// Timer is safe for concurrent use.
type Timer struct {
	mu         sync.Mutex
	gcStart    time.Time
	gcEnd      time.Time
	running    bool
	partitions TimePartitions
}

// New returns an idle timer.
func New() *Timer {
	return &Timer{}
}

// RegisterGCStart opens a cycle at the given time and discards the
// brackets of the previous cycle.
func (t *Timer) RegisterGCStart(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	contract.Check(!t.running, "cycle timer already started")
	t.partitions.clear()
	t.gcStart = at
	t.gcEnd = time.Time{}
	t.running = true
}

// RegisterGCEnd closes the cycle. All brackets must be closed.
func (t *Timer) RegisterGCEnd(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	contract.Check(t.running, "cycle timer not started")
	contract.Checkf(len(t.partitions.active) == 0,
		"cycle ended with %d open timer phases", len(t.partitions.active))
	t.gcEnd = at
	t.running = false
}

// RegisterGCPhaseStart opens a bracket nested in the innermost open one.
func (t *Timer) RegisterGCPhaseStart(name string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.partitions.reportStart(name, at)
}

// RegisterGCPhaseEnd closes the innermost open bracket.
func (t *Timer) RegisterGCPhaseEnd(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.partitions.reportEnd(at)
}

// GCStart returns the start of the current or last cycle.
func (t *Timer) GCStart() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gcStart
}

// GCEnd returns the end of the last completed cycle, or the zero time
// while a cycle is running.
func (t *Timer) GCEnd() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gcEnd
}

// Running reports whether a cycle is open.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// TimePartitions returns a copy of the brackets registered so far.
func (t *Timer) TimePartitions() *TimePartitions {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.partitions.clone()
}
