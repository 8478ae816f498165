// Package scope provides the scoped markers that bracket collector work:
// cycles (Session), stop-the-world pauses (PauseGuard), named phases
// (PhaseGuard), single allocation requests (AllocTrace) and worker
// contributions (ConcurrentWorkerSession, ParallelWorkerSession).
//
// Every marker is opened by a Begin function and closed by End, which
// callers defer so that bookkeeping runs on every exit path, including a
// panic unwinding through the bracketed work:
//
//	s := scope.BeginSession(heap, control, cause.ConcurrentGC)
//	defer s.End()
//
//	p := scope.BeginPause(heap, vm)
//	defer p.End()
//
//	g := scope.BeginPhase(heap, vm, phase.InitMark)
//	defer g.End()
//
// # Threads
//
// Collector threads are explicit *Thread handles created from a Registry
// with a Role. A handle belongs to the goroutine that drives it; its
// current phase and worker identity are only changed by the markers in
// this package. Phase nesting is tracked per thread and the Registry
// counts live phases across all of its threads, so marker construction
// and destruction never take a lock.
//
// # Contracts
//
// Misuse (a phase opened from a mutator, a session opened while a phase
// is live, a worker identity assigned twice) panics with a
// *contract.Violation.
package scope
