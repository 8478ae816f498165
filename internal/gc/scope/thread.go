package scope

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/wesleyorama2/gcscope/internal/gc/phase"
)

// Role is the capability a thread was created with.
type Role uint8

const (
	// RoleMutator runs application code and allocates.
	RoleMutator Role = iota
	// RoleCoordinator executes stop-the-world operations.
	RoleCoordinator
	// RoleConcurrentGC drives concurrent collector phases.
	RoleConcurrentGC
	// RoleWorker belongs to the parallel worker pool.
	RoleWorker
)

func (r Role) String() string {
	switch r {
	case RoleMutator:
		return "mutator"
	case RoleCoordinator:
		return "coordinator"
	case RoleConcurrentGC:
		return "concurrent-gc"
	case RoleWorker:
		return "worker"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

// WorkerID identifies a worker among the concurrently active ones.
type WorkerID uint32

// InvalidWorkerID marks a thread with no worker identity.
const InvalidWorkerID WorkerID = math.MaxUint32

// Thread is the handle of one collector or mutator thread.
//
// # Thread Safety
//
// A Thread must only be driven by one goroutine at a time. Its current
// phase and worker identity are atomics, so any goroutine may read them.
type Thread struct {
	name     string    // Display name, unique within a simulation
	role     Role      // Capability fixed at creation
	registry *Registry // Registry that created the thread

	current  atomic.Int32  // Innermost live phase.Phase
	workerID atomic.Uint32 // Bound WorkerID or InvalidWorkerID
}

// Name returns the thread name.
func (t *Thread) Name() string { return t.name }

// Role returns the capability the thread was created with.
func (t *Thread) Role() Role { return t.role }

// CurrentPhase returns the innermost live phase on this thread, or
// phase.Invalid.
func (t *Thread) CurrentPhase() phase.Phase { return phase.Phase(t.current.Load()) }

// InRootWorkPhase reports whether the innermost live phase processes
// roots.
func (t *Thread) InRootWorkPhase() bool { return phase.IsRootWork(t.CurrentPhase()) }

// WorkerID returns the worker identity, or InvalidWorkerID.
func (t *Thread) WorkerID() WorkerID { return WorkerID(t.workerID.Load()) }

func (t *Thread) canEnterPhase() bool {
	return t.role == RoleCoordinator || t.role == RoleConcurrentGC
}

func (t *Thread) String() string {
	return t.name + "(" + t.role.String() + ")"
}

// Registry creates threads and tracks how many phases are live across
// them.
//
// # Thread Safety
//
// Registry is safe for concurrent use. The thread list is guarded by a
// mutex and the live phase count is atomic.
type Registry struct {
	active atomic.Int64 // Live phases across all threads

	mu      sync.Mutex
	threads []*Thread // Every thread created, in creation order
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// NewThread creates a thread handle with no current phase and no worker
// identity.
func (r *Registry) NewThread(name string, role Role) *Thread {
	t := &Thread{name: name, role: role, registry: r}
	t.current.Store(int32(phase.Invalid))
	t.workerID.Store(uint32(InvalidWorkerID))

	r.mu.Lock()
	r.threads = append(r.threads, t)
	r.mu.Unlock()
	return t
}

// ActivePhases is the number of live phase markers across all threads.
func (r *Registry) ActivePhases() int64 { return r.active.Load() }

// ThreadPhase pairs a thread with its innermost live phase.
type ThreadPhase struct {
	Thread string      `json:"thread"`
	Role   string      `json:"role"`
	Phase  phase.Phase `json:"phase"`
}

// CurrentPhases lists the threads that have a live phase.
func (r *Registry) CurrentPhases() []ThreadPhase {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []ThreadPhase
	for _, t := range r.threads {
		if p := t.CurrentPhase(); phase.Valid(p) {
			out = append(out, ThreadPhase{Thread: t.name, Role: t.role.String(), Phase: p})
		}
	}
	return out
}

// Threads returns the threads created by r.
func (r *Registry) Threads() []*Thread {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Thread, len(r.threads))
	copy(out, r.threads)
	return out
}
