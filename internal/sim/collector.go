package sim

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/gcscope/internal/gc/alloc"
	"github.com/wesleyorama2/gcscope/internal/gc/cause"
	"github.com/wesleyorama2/gcscope/internal/gc/heap"
	"github.com/wesleyorama2/gcscope/internal/gc/phase"
	"github.com/wesleyorama2/gcscope/internal/gc/policy"
	"github.com/wesleyorama2/gcscope/internal/gc/scope"
)

// workSlice bounds how long cancellable work runs between checks.
const workSlice = 250 * time.Microsecond

// degenPoint is where a cancelled concurrent cycle stopped.
type degenPoint int

const (
	degenNone degenPoint = iota
	degenOutsideCycle
	degenMark
	degenEvac
	degenUpdateRefs
)

func (d degenPoint) String() string {
	switch d {
	case degenOutsideCycle:
		return "outside of cycle"
	case degenMark:
		return "mark"
	case degenEvac:
		return "evacuation"
	case degenUpdateRefs:
		return "update refs"
	}
	return "none"
}

// CollectorStats counts what the control thread did.
type CollectorStats struct {
	Concurrent   int64 `json:"concurrent"`
	Degenerated  int64 `json:"degenerated"`
	Full         int64 `json:"full"`
	Cancelled    int64 `json:"cancelled"`
	Upgrades     int64 `json:"upgrades"`
	Uncommits    int64 `json:"uncommits"`
	VMOperations int64 `json:"vmOperations"`
	Safepoints   int64 `json:"safepoints"`
	// RootTasks counts worker tasks run inside root-processing phases.
	RootTasks int64 `json:"rootTasks"`
	// RootWorkTime is the worker time spent in those tasks.
	RootWorkTime time.Duration `json:"rootWorkTime"`
}

// Collector is the control thread of the synthetic collector. It starts
// cycles, runs concurrent phases itself and hands pauses to the VM thread.
type Collector struct {
	cfg     Config
	heap    *heap.Heap
	vm      *VMThread
	control *scope.Thread
	workers *WorkerPool

	allocFailure   chan struct{}
	explicit       chan struct{}
	failurePending atomic.Bool
	evacFailed     atomic.Bool

	mu   sync.Mutex
	done chan struct{}

	concurrent, degenerated, full atomic.Int64
	cancelled, upgrades, uncommits atomic.Int64
	rootTasks, rootWork            atomic.Int64
}

func newCollector(cfg Config, h *heap.Heap, vm *VMThread) *Collector {
	return &Collector{
		cfg:          cfg,
		heap:         h,
		vm:           vm,
		control:      h.NewThread("Control Thread", scope.RoleConcurrentGC),
		workers:      NewWorkerPool(h, cfg.ParallelWorkers),
		allocFailure: make(chan struct{}, 1),
		explicit:     make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
}

// Stats returns the control thread counters.
func (c *Collector) Stats() CollectorStats {
	return CollectorStats{
		Concurrent:   c.concurrent.Load(),
		Degenerated:  c.degenerated.Load(),
		Full:         c.full.Load(),
		Cancelled:    c.cancelled.Load(),
		Upgrades:     c.upgrades.Load(),
		Uncommits:    c.uncommits.Load(),
		VMOperations: c.vm.Executed(),
		Safepoints:   c.vm.safepoint.Count(),
		RootTasks:    c.rootTasks.Load(),
		RootWorkTime: time.Duration(c.rootWork.Load()),
	}
}

// RequestAllocFailureGC reports an allocation failure and waits for the
// next cycle to finish.
func (c *Collector) RequestAllocFailureGC(ctx context.Context) error {
	done := c.cycleDone()
	c.failurePending.Store(true)
	select {
	case c.allocFailure <- struct{}{}:
	default:
	}
	return c.await(ctx, done)
}

// RequestExplicitGC asks for a full collection and waits for the next
// cycle to finish.
func (c *Collector) RequestExplicitGC(ctx context.Context) error {
	done := c.cycleDone()
	select {
	case c.explicit <- struct{}{}:
	default:
	}
	return c.await(ctx, done)
}

func (c *Collector) await(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Collector) cycleDone() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// cycleFinished wakes every mutator waiting for memory. Failure requests
// made before this point are considered served.
func (c *Collector) cycleFinished() {
	c.failurePending.Store(false)
	select {
	case <-c.allocFailure:
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	close(c.done)
	c.done = make(chan struct{})
}

// Run is the control loop. It returns nil when ctx is done.
func (c *Collector) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-ctx.Done():
			return nil
		case <-c.explicit:
			err = c.fullCycle(ctx, cause.ExplicitGC, policy.OutcomeExplicit)
		case <-c.allocFailure:
			err = c.allocFailureCycle(ctx)
		case <-ticker.C:
			switch {
			case c.shouldStartConcurrent():
				err = c.concurrentCycle(ctx)
			case c.shouldUncommit():
				c.uncommit()
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (c *Collector) shouldStartConcurrent() bool {
	if c.cfg.Mode == ModeFull {
		return false
	}
	u := c.heap.Usage()
	threshold := uint64(float64(u.Capacity) * c.cfg.TriggerRatio)
	if u.Used < threshold {
		return false
	}
	logrus.WithFields(logrus.Fields{
		"used":      u.Used,
		"threshold": threshold,
	}).Debug("Trigger: used memory above threshold")
	return true
}

func (c *Collector) shouldUncommit() bool {
	if c.cfg.UncommitDelay <= 0 {
		return false
	}
	u := c.heap.Usage()
	return u.Committed > u.Used && c.heap.HeuristicsState().TimeSinceLastCycle() >= c.cfg.UncommitDelay
}

// uncommit runs outside any session, like the periodic uncommit of an idle
// collector.
func (c *Collector) uncommit() {
	g := scope.BeginPhase(c.heap, c.control, phase.ConcUncommit)
	defer g.End()
	c.heap.Uncommit()
	c.uncommits.Add(1)
}

func (c *Collector) allocFailureCycle(ctx context.Context) error {
	if c.cfg.Mode == ModeFull {
		return c.fullCycle(ctx, cause.AllocationFailure, policy.OutcomeFull)
	}
	return c.degeneratedCycle(ctx, cause.AllocationFailure, degenOutsideCycle)
}

// concurrentCycle runs one concurrent cycle, finishing it in a
// degenerated pause if it gets cancelled.
func (c *Collector) concurrentCycle(ctx context.Context) error {
	point, err := c.runConcurrent(ctx)
	if err != nil {
		return err
	}
	if point == degenNone {
		c.concurrent.Add(1)
		c.heap.CollectorPolicy().RecordOutcome(policy.OutcomeConcurrent)
		c.cycleFinished()
		return nil
	}

	c.cancelled.Add(1)
	gcCause := cause.AllocationFailure
	switch {
	case c.evacFailed.Load():
		gcCause = cause.AllocationFailureEvac
		c.heap.CollectorPolicy().RecordOutcome(policy.OutcomeAllocFailureEvac)
	case !c.failurePending.Load():
		// Degeneration forced by the collector mode.
		gcCause = cause.WhiteboxTest
	case point == degenMark:
		c.heap.CollectorPolicy().RecordOutcome(policy.OutcomeAllocFailureMark)
	default:
		c.heap.CollectorPolicy().RecordOutcome(policy.OutcomeAllocFailureEvac)
	}
	return c.degeneratedCycle(ctx, gcCause, point)
}

func (c *Collector) cancelRequested() bool {
	return c.failurePending.Load() || c.evacFailed.Load()
}

func (c *Collector) runConcurrent(ctx context.Context) (degenPoint, error) {
	s := scope.BeginSession(c.heap, c.control, cause.ConcurrentGC)
	defer s.End()
	c.evacFailed.Store(false)

	if err := c.concurrentPhase(ctx, phase.ConcReset, c.spinWorkers); err != nil {
		return degenNone, err
	}

	err := c.pause(ctx, phase.InitMarkGross, phase.InitMark, func(ctx context.Context, vm *scope.Thread) error {
		c.subPhase(vm, phase.MakeParsable, nil)
		c.subPhase(vm, phase.ClearLiveness, nil)
		if err := c.parallelSubPhase(ctx, vm, phase.ScanRoots); err != nil {
			return err
		}
		c.subPhase(vm, phase.ResizeTLABs, nil)
		return nil
	})
	if err != nil {
		return degenNone, err
	}

	if err := c.concurrentPhase(ctx, phase.ConcMark, c.spinWorkers); err != nil {
		return degenNone, err
	}
	if c.cfg.Mode == ModeDegenerated || c.cancelRequested() {
		return degenMark, nil
	}
	if err := c.concurrentPhase(ctx, phase.ConcPreclean, c.spinWorkers); err != nil {
		return degenNone, err
	}

	marked := c.heap.Usage().Used
	live := uint64(float64(marked) * c.cfg.LiveRatio)
	err = c.pause(ctx, phase.FinalMarkGross, phase.FinalMark, func(ctx context.Context, vm *scope.Thread) error {
		if err := c.parallelSubPhase(ctx, vm, phase.UpdateRoots); err != nil {
			return err
		}
		c.subPhase(vm, phase.FinishQueues, nil)
		c.subPhase(vm, phase.WeakRefs, nil)
		c.subPhase(vm, phase.Purge, nil)
		c.subPhase(vm, phase.PrepareEvac, nil)
		return c.parallelSubPhase(ctx, vm, phase.InitEvac)
	})
	if err != nil {
		return degenNone, err
	}
	if c.cancelRequested() {
		return degenMark, nil
	}

	evacWords := uint64(float64(live) * c.cfg.EvacRatio)
	if err := c.concurrentPhase(ctx, phase.ConcEvac, func(ctx context.Context) error {
		return c.evacuate(ctx, evacWords)
	}); err != nil {
		return degenNone, err
	}
	if c.cancelRequested() {
		return degenEvac, nil
	}

	err = c.pause(ctx, phase.InitUpdateRefsGross, phase.InitUpdateRefs, func(context.Context, *scope.Thread) error {
		return nil
	})
	if err != nil {
		return degenNone, err
	}
	if err := c.concurrentPhase(ctx, phase.ConcUpdateRefs, c.spinWorkers); err != nil {
		return degenNone, err
	}
	if c.cancelRequested() {
		return degenUpdateRefs, nil
	}

	err = c.pause(ctx, phase.FinalUpdateRefsGross, phase.FinalUpdateRefs, func(ctx context.Context, vm *scope.Thread) error {
		if err := c.parallelSubPhase(ctx, vm, phase.FinalUpdateRefsRoots); err != nil {
			return err
		}
		c.subPhase(vm, phase.FinalUpdateRefsRecycle, func() {
			c.heap.Reclaim(marked - live + evacWords)
		})
		return nil
	})
	if err != nil {
		return degenNone, err
	}
	return degenNone, c.concurrentPhase(ctx, phase.ConcCleanup, func(ctx context.Context) error {
		return c.spin(ctx, c.cfg.ConcurrentWork/4, false)
	})
}

// evacuate copies live words with GCLAB allocations split over the
// concurrent workers. A failed copy cancels the cycle.
func (c *Collector) evacuate(ctx context.Context, words uint64) error {
	n := c.cfg.ConcurrentWorkers
	share := words / uint64(n)
	return c.workers.RunConcurrent(ctx, n, func(ctx context.Context, _ scope.WorkerID, t *scope.Thread) error {
		if share > 0 {
			err := c.heap.Allocate(t, share, alloc.GCLAB, nil)
			if errors.Is(err, heap.ErrOutOfMemory) {
				c.evacFailed.Store(true)
				return nil
			}
			if err != nil {
				return err
			}
		}
		return c.spin(ctx, c.cfg.ConcurrentWork, true)
	})
}

// degeneratedCycle finishes collection in one pause and upgrades to a full
// collection when that did not free enough.
func (c *Collector) degeneratedCycle(ctx context.Context, gcCause cause.Cause, point degenPoint) error {
	err := func() error {
		s := scope.BeginSession(c.heap, c.control, gcCause)
		defer s.End()

		logrus.WithFields(logrus.Fields{
			"cause": gcCause.String(),
			"point": point.String(),
		}).Info("Degenerated GC")

		return c.pause(ctx, phase.DegenGCGross, phase.DegenGC, func(ctx context.Context, vm *scope.Thread) error {
			if err := c.parallelSubPhase(ctx, vm, phase.DegenGCUpdateRoots); err != nil {
				return err
			}
			c.reclaimDead()
			return nil
		})
	}()
	if err != nil {
		return err
	}
	c.degenerated.Add(1)
	c.heap.CollectorPolicy().RecordOutcome(policy.OutcomeDegenerated)

	if c.heap.Free() < c.cfg.MaxAllocWords {
		c.upgrades.Add(1)
		return c.fullCycle(ctx, cause.UpgradeToFullGC, policy.OutcomeFull)
	}
	c.cycleFinished()
	return nil
}

func (c *Collector) fullCycle(ctx context.Context, gcCause cause.Cause, outcome policy.Outcome) error {
	err := func() error {
		s := scope.BeginSession(c.heap, c.control, gcCause)
		defer s.End()

		return c.pause(ctx, phase.FullGCGross, phase.FullGC, func(ctx context.Context, vm *scope.Thread) error {
			c.subPhase(vm, phase.FullGCHeapDump, nil)
			c.subPhase(vm, phase.FullGCPrepare, nil)
			for _, p := range []phase.Phase{phase.FullGCRoots, phase.FullGCMark} {
				if err := c.parallelSubPhase(ctx, vm, p); err != nil {
					return err
				}
			}
			c.subPhase(vm, phase.FullGCCalculateAddresses, nil)
			for _, p := range []phase.Phase{phase.FullGCAdjustPointers, phase.FullGCCopyObjects} {
				if err := c.parallelSubPhase(ctx, vm, p); err != nil {
					return err
				}
			}
			c.reclaimDead()
			c.subPhase(vm, phase.FullGCResizeTLABs, nil)
			return nil
		})
	}()
	if err != nil {
		return err
	}
	c.full.Add(1)
	c.heap.CollectorPolicy().RecordOutcome(outcome)
	c.cycleFinished()
	return nil
}

func (c *Collector) reclaimDead() {
	used := c.heap.Usage().Used
	c.heap.Reclaim(used - uint64(float64(used)*c.cfg.LiveRatio))
}

// pause runs body as a VM operation. The control thread holds the gross
// phases while the VM thread holds the net ones.
func (c *Collector) pause(ctx context.Context, gross, net phase.Phase, body func(context.Context, *scope.Thread) error) error {
	total := scope.BeginPhase(c.heap, c.control, phase.TotalPauseGross)
	defer total.End()
	g := scope.BeginPhase(c.heap, c.control, gross)
	defer g.End()

	var bodyErr error
	err := c.vm.Execute(ctx, net.Key(), func(vm *scope.Thread) {
		p := scope.BeginPause(c.heap, vm)
		defer p.End()

		timer := c.heap.CycleTimer()
		clk := c.heap.Clock()
		timer.RegisterGCPhaseStart(net.String(), clk.Now())
		defer func() { timer.RegisterGCPhaseEnd(clk.Now()) }()

		tp := scope.BeginPhase(c.heap, vm, phase.TotalPause)
		defer tp.End()
		n := scope.BeginPhase(c.heap, vm, net)
		defer n.End()

		bodyErr = body(ctx, vm)
	})
	if err != nil {
		return err
	}
	return bodyErr
}

func (c *Collector) subPhase(vm *scope.Thread, p phase.Phase, fn func()) {
	g := scope.BeginPhase(c.heap, vm, p)
	defer g.End()
	if fn != nil {
		fn()
	}
}

func (c *Collector) parallelSubPhase(ctx context.Context, vm *scope.Thread, p phase.Phase) error {
	g := scope.BeginPhase(c.heap, vm, p)
	defer g.End()

	root := vm.InRootWorkPhase()
	n := c.workers.Size()
	return c.workers.RunParallel(ctx, n, func(ctx context.Context, _ scope.WorkerID, _ *scope.Thread) error {
		start := time.Now()
		err := c.spin(ctx, c.cfg.PauseWork/time.Duration(n), false)
		if root {
			c.rootTasks.Add(1)
			c.rootWork.Add(int64(time.Since(start)))
		}
		return err
	})
}

func (c *Collector) concurrentPhase(ctx context.Context, p phase.Phase, fn func(context.Context) error) error {
	g := scope.BeginPhase(c.heap, c.control, p)
	defer g.End()
	return fn(ctx)
}

func (c *Collector) spinWorkers(ctx context.Context) error {
	return c.workers.RunConcurrent(ctx, c.cfg.ConcurrentWorkers, func(ctx context.Context, _ scope.WorkerID, _ *scope.Thread) error {
		return c.spin(ctx, c.cfg.ConcurrentWork, true)
	})
}

// spin stands in for d of collector work. Cancellable work stops early
// once an allocation failure is pending.
func (c *Collector) spin(ctx context.Context, d time.Duration, cancellable bool) error {
	deadline := time.Now().Add(d)
	for {
		if cancellable && c.cancelRequested() {
			return nil
		}
		left := time.Until(deadline)
		if left <= 0 {
			return ctx.Err()
		}
		t := time.NewTimer(min(left, workSlice))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
