package scope

import (
	"github.com/wesleyorama2/gcscope/internal/gc/contract"
)

// workerSession binds a worker identity to a thread for the lifetime of
// one unit of collector work.
//
// # Thread Safety
//
// Sessions are not shared. Each worker goroutine begins and ends its own
// session on its own thread.
type workerSession struct {
	// thread holds the identity slot written by Begin and cleared by End.
	thread *Thread
	// id is the identity bound at Begin.
	id WorkerID
	// ended guards against a stale session clearing a newer binding.
	ended bool
}

func beginWorkerSession(t *Thread, id WorkerID) workerSession {
	contract.Checkf(id != InvalidWorkerID, "cannot bind the invalid worker id to %s", t)
	contract.Checkf(t.WorkerID() == InvalidWorkerID,
		"worker id already set on %s (%d)", t, t.WorkerID())
	t.workerID.Store(uint32(id))
	return workerSession{thread: t, id: id}
}

// ID returns the bound worker identity.
func (w *workerSession) ID() WorkerID { return w.id }

// End clears the worker identity. Ending twice is a contract violation.
// A slot that no longer holds this session's id is a violation in
// debug-checked builds; release builds reset regardless.
func (w *workerSession) End() {
	contract.Checkf(!w.ended, "worker session %d ended twice on %s", w.id, w.thread)
	w.ended = true
	contract.DebugCheck(w.thread.WorkerID() != InvalidWorkerID, "worker id must be set")
	contract.DebugCheck(w.thread.WorkerID() == w.id, "worker id changed during the session")
	w.thread.workerID.Store(uint32(InvalidWorkerID))
}

// ConcurrentWorkerSession binds a worker identity during concurrent work.
type ConcurrentWorkerSession struct {
	workerSession
}

// BeginConcurrentWorker binds id to t.
func BeginConcurrentWorker(t *Thread, id WorkerID) *ConcurrentWorkerSession {
	return &ConcurrentWorkerSession{beginWorkerSession(t, id)}
}

// ParallelWorkerSession binds a worker identity during a pause.
type ParallelWorkerSession struct {
	workerSession
}

// BeginParallelWorker binds id to t.
func BeginParallelWorker(t *Thread, id WorkerID) *ParallelWorkerSession {
	return &ParallelWorkerSession{beginWorkerSession(t, id)}
}
