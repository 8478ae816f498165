package sim

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/wesleyorama2/gcscope/internal/gc/heap"
	"github.com/wesleyorama2/gcscope/internal/gc/scope"
)

// WorkFunc is one worker's share of a parallel or concurrent task.
type WorkFunc func(ctx context.Context, id scope.WorkerID, t *scope.Thread) error

// WorkerPool is the set of collector worker threads. Each task binds a
// worker id to every participating thread for the task's duration. Tasks
// on one pool must not overlap.
type WorkerPool struct {
	threads []*scope.Thread
}

// NewWorkerPool creates n worker threads in h's registry.
func NewWorkerPool(h *heap.Heap, n int) *WorkerPool {
	if n < 1 {
		n = 1
	}
	p := &WorkerPool{threads: make([]*scope.Thread, n)}
	for i := range p.threads {
		p.threads[i] = h.NewThread(fmt.Sprintf("GC Worker#%d", i), scope.RoleWorker)
	}
	return p
}

// Size returns the number of worker threads.
func (p *WorkerPool) Size() int { return len(p.threads) }

// RunParallel runs fn on active workers inside a pause.
func (p *WorkerPool) RunParallel(ctx context.Context, active int, fn WorkFunc) error {
	return p.run(ctx, active, fn, func(t *scope.Thread, id scope.WorkerID) func() {
		return scope.BeginParallelWorker(t, id).End
	})
}

// RunConcurrent runs fn on active workers alongside mutators.
func (p *WorkerPool) RunConcurrent(ctx context.Context, active int, fn WorkFunc) error {
	return p.run(ctx, active, fn, func(t *scope.Thread, id scope.WorkerID) func() {
		return scope.BeginConcurrentWorker(t, id).End
	})
}

func (p *WorkerPool) run(ctx context.Context, active int, fn WorkFunc, bind func(*scope.Thread, scope.WorkerID) func()) error {
	if active < 1 || active > len(p.threads) {
		active = len(p.threads)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < active; i++ {
		t := p.threads[i]
		id := scope.WorkerID(i)
		g.Go(func() error {
			end := bind(t, id)
			defer end()
			return fn(gctx, id, t)
		})
	}
	return g.Wait()
}
