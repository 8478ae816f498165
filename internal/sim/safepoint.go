package sim

import (
	"sync"
	"sync/atomic"
)

// Safepoint stops mutators for the duration of a pause. Mutators hold it
// shared while they touch the heap; the VM thread holds it exclusively
// while a pause runs.
type Safepoint struct {
	mu     sync.RWMutex
	active atomic.Bool
	count  atomic.Int64
}

// Enter is called by a mutator before touching the heap. It blocks while
// the world is stopped.
func (s *Safepoint) Enter() { s.mu.RLock() }

// Leave releases Enter.
func (s *Safepoint) Leave() { s.mu.RUnlock() }

// Begin stops the world. It returns once every mutator has left the heap.
func (s *Safepoint) Begin() {
	s.mu.Lock()
	s.active.Store(true)
	s.count.Add(1)
}

// End resumes mutators.
func (s *Safepoint) End() {
	s.active.Store(false)
	s.mu.Unlock()
}

// Active reports whether the world is stopped.
func (s *Safepoint) Active() bool { return s.active.Load() }

// Count returns how many times the world was stopped.
func (s *Safepoint) Count() int64 { return s.count.Load() }
