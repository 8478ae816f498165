package sim

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/gcscope/internal/gc/heap"
	"github.com/wesleyorama2/gcscope/internal/gc/scope"
)

func TestMain(m *testing.M) {
	logrus.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestWorkerPool_BindsIDs(t *testing.T) {
	h := heap.New(heap.Options{Capacity: 1})
	pool := NewWorkerPool(h, 4)
	require.Equal(t, 4, pool.Size())

	var mu sync.Mutex
	seen := map[scope.WorkerID]string{}
	err := pool.RunParallel(context.Background(), 3, func(_ context.Context, id scope.WorkerID, th *scope.Thread) error {
		assert.Equal(t, id, th.WorkerID())
		assert.Equal(t, scope.RoleWorker, th.Role())
		mu.Lock()
		seen[id] = th.Name()
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, 3)
	for id := scope.WorkerID(0); id < 3; id++ {
		assert.Contains(t, seen, id)
	}

	for _, th := range h.Threads().Threads() {
		assert.Equal(t, scope.InvalidWorkerID, th.WorkerID(), th.Name())
	}
}

func TestWorkerPool_ErrorResetsIDs(t *testing.T) {
	h := heap.New(heap.Options{Capacity: 1})
	pool := NewWorkerPool(h, 2)
	boom := errors.New("boom")

	err := pool.RunConcurrent(context.Background(), 0, func(ctx context.Context, id scope.WorkerID, _ *scope.Thread) error {
		if id == 1 {
			return boom
		}
		<-ctx.Done()
		return nil
	})
	assert.ErrorIs(t, err, boom)
	for _, th := range h.Threads().Threads() {
		assert.Equal(t, scope.InvalidWorkerID, th.WorkerID())
	}

	// Reassignment on the same threads succeeds.
	require.NoError(t, pool.RunParallel(context.Background(), 2, func(context.Context, scope.WorkerID, *scope.Thread) error {
		return nil
	}))
}

func TestVMThread_ExecuteHoldsSafepoint(t *testing.T) {
	sp := &Safepoint{}
	h := heap.New(heap.Options{Capacity: 1, Gate: sp})
	vm := newVMThread(h, sp)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- vm.Run(ctx) }()

	var role scope.Role
	var active bool
	err := vm.Execute(ctx, "test", func(th *scope.Thread) {
		role = th.Role()
		active = sp.Active()
	})
	require.NoError(t, err)
	assert.Equal(t, scope.RoleCoordinator, role)
	assert.True(t, active)
	assert.False(t, sp.Active())
	assert.EqualValues(t, 1, vm.Executed())
	assert.EqualValues(t, 1, sp.Count())

	cancel()
	require.NoError(t, <-done)

	ran := false
	err = vm.Execute(ctx, "late", func(*scope.Thread) { ran = true })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}

func TestSafepoint_BlocksMutators(t *testing.T) {
	sp := &Safepoint{}
	sp.Begin()

	entered := make(chan struct{})
	go func() {
		sp.Enter()
		close(entered)
		sp.Leave()
	}()

	select {
	case <-entered:
		t.Fatal("mutator entered while the world was stopped")
	case <-time.After(20 * time.Millisecond):
	}

	sp.End()
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("mutator never resumed")
	}
}
