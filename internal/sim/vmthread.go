package sim

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/gcscope/internal/gc/heap"
	"github.com/wesleyorama2/gcscope/internal/gc/scope"
)

type vmOperation struct {
	name string
	fn   func(vm *scope.Thread)
	done chan struct{}
}

// VMThread executes stop-the-world operations one at a time. While an
// operation runs the safepoint is held, so mutators cannot touch the heap.
type VMThread struct {
	thread    *scope.Thread
	safepoint *Safepoint
	ops       chan *vmOperation
	executed  atomic.Int64
}

func newVMThread(h *heap.Heap, sp *Safepoint) *VMThread {
	return &VMThread{
		thread:    h.NewThread("VM Thread", scope.RoleCoordinator),
		safepoint: sp,
		ops:       make(chan *vmOperation),
	}
}

// Run serves operations until ctx is done.
func (v *VMThread) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case op := <-v.ops:
			v.execute(op)
		}
	}
}

func (v *VMThread) execute(op *vmOperation) {
	defer close(op.done)

	v.safepoint.Begin()
	defer v.safepoint.End()

	logrus.WithField("operation", op.name).Debug("VM operation")
	op.fn(v.thread)
	v.executed.Add(1)
}

// Execute runs fn on the VM thread and blocks until it finishes. If ctx is
// done before the VM thread accepts the operation, fn never runs and the
// context error is returned. An accepted operation always runs to
// completion.
func (v *VMThread) Execute(ctx context.Context, name string, fn func(vm *scope.Thread)) error {
	op := &vmOperation{name: name, fn: fn, done: make(chan struct{})}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case v.ops <- op:
	}
	<-op.done
	return nil
}

// Executed returns the number of completed operations.
func (v *VMThread) Executed() int64 { return v.executed.Load() }
