// Package sim drives the collector markers end to end with a synthetic
// concurrent collector. A control thread starts cycles and runs concurrent
// phases, a VM thread executes pauses while holding a safepoint, a worker
// pool fans parallel work out, and paced mutators allocate against a
// bounded heap and stall when it is full or the world is stopped.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/wesleyorama2/gcscope/internal/gc/alloc"
	"github.com/wesleyorama2/gcscope/internal/gc/cause"
	"github.com/wesleyorama2/gcscope/internal/gc/gctrace"
	"github.com/wesleyorama2/gcscope/internal/gc/heap"
	"github.com/wesleyorama2/gcscope/internal/gc/phase"
	"github.com/wesleyorama2/gcscope/internal/gc/policy"
	"github.com/wesleyorama2/gcscope/internal/gc/scope"
	"github.com/wesleyorama2/gcscope/internal/gc/timing"
	"github.com/wesleyorama2/gcscope/internal/gc/tunable"
)

// Result is everything a run produced.
type Result struct {
	Name      string        `json:"name"`
	Mode      Mode          `json:"mode"`
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`

	Cycles     uint64                        `json:"cycles"`
	Outcomes   map[string]uint64             `json:"outcomes"`
	Collector  CollectorStats                `json:"collector"`
	Heuristics policy.HeuristicsStats        `json:"heuristics"`
	Events     []gctrace.GCEvent             `json:"events"`
	Phases     []timing.PhaseStats           `json:"phases"`
	Alloc      []alloc.LatencyStats          `json:"alloc"`
	AllocTypes map[string]alloc.LatencyStats `json:"allocTypes"`
	Managers   []heap.ManagerStats           `json:"managers"`
	Mutators   []MutatorStats                `json:"mutators"`
	Heap       scope.Usage                   `json:"heap"`
	Tunables   tunable.Settings              `json:"tunables"`

	Passed     bool              `json:"passed"`
	Thresholds []ThresholdResult `json:"thresholds,omitempty"`
}

// Allocations is the number of successful mutator allocations.
func (r *Result) Allocations() int64 {
	var n int64
	for _, m := range r.Mutators {
		n += m.Allocations
	}
	return n
}

// Simulator owns one heap and the threads that run against it.
type Simulator struct {
	name       string
	cfg        Config
	thresholds Thresholds

	heap      *heap.Heap
	safepoint *Safepoint
	vm        *VMThread
	collector *Collector
	mutators  []*Mutator

	mu      sync.Mutex
	running bool
}

// Option customizes a Simulator.
type Option func(*Simulator)

// WithName labels the result.
func WithName(name string) Option {
	return func(s *Simulator) { s.name = name }
}

// WithThresholds sets the pass/fail criteria evaluated after the run.
func WithThresholds(t Thresholds) Option {
	return func(s *Simulator) { s.thresholds = t }
}

// New validates cfg and builds a simulator.
func New(cfg Config, opts ...Option) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation config: %w", err)
	}

	s := &Simulator{name: "simulation", cfg: cfg, safepoint: &Safepoint{}}
	for _, o := range opts {
		o(s)
	}

	s.heap = heap.New(heap.Options{
		Capacity: cfg.HeapWords,
		Gate:     s.safepoint,
	})
	s.vm = newVMThread(s.heap, s.safepoint)
	s.collector = newCollector(cfg, s.heap, s.vm)
	s.mutators = make([]*Mutator, cfg.Mutators)
	for i := range s.mutators {
		s.mutators[i] = newMutator(i, cfg, s.heap, s.collector)
	}
	return s, nil
}

// Heap returns the simulated heap, for exporters.
func (s *Simulator) Heap() *heap.Heap { return s.heap }

// Collector returns the control thread.
func (s *Simulator) Collector() *Collector { return s.collector }

// Name returns the result label.
func (s *Simulator) Name() string { return s.name }

// Config returns the validated configuration.
func (s *Simulator) Config() Config { return s.cfg }

// Progress is a live view of a running simulation.
type Progress struct {
	Cycles      uint64
	Pauses      int64
	PauseP99    time.Duration
	PauseMax    time.Duration
	Allocations int64
	GCWaits     int64
	OutOfMemory int64
	Heap        scope.Usage
	Cause       cause.Cause
	// Phases lists the threads currently inside a timed phase.
	Phases []scope.ThreadPhase
}

// Progress samples the counters. It is safe to call while Run is active.
func (s *Simulator) Progress() Progress {
	pause := s.heap.PhaseTable().Stats(phase.TotalPause)
	p := Progress{
		Cycles:   s.heap.CollectorPolicy().CycleCounter(),
		Pauses:   pause.Count,
		PauseP99: pause.P99,
		PauseMax: pause.Max,
		Heap:     s.heap.Usage(),
		Cause:    s.heap.GCCause(),
		Phases:   s.heap.Threads().CurrentPhases(),
	}
	for _, m := range s.mutators {
		st := m.Stats()
		p.Allocations += st.Allocations
		p.GCWaits += st.GCWaits
		p.OutOfMemory += st.OutOfMemory
	}
	return p
}

// Run simulates for the configured duration or until ctx is done.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, errors.New("simulation is already running")
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := time.Now()
	logrus.WithFields(logrus.Fields{
		"mode":       s.cfg.Mode,
		"heap_words": s.cfg.HeapWords,
		"mutators":   s.cfg.Mutators,
		"workers":    s.cfg.ParallelWorkers,
	}).Info("Simulation started")

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Duration)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return s.vm.Run(gctx) })
	g.Go(func() error { return s.collector.Run(gctx) })
	for _, m := range s.mutators {
		g.Go(func() error { return m.Run(gctx) })
	}
	if s.cfg.ExplicitGCInterval > 0 {
		g.Go(func() error { return s.requestExplicit(gctx) })
	}
	err := g.Wait()

	result := s.result(start, time.Now())
	logrus.WithFields(logrus.Fields{
		"cycles":      result.Cycles,
		"allocations": result.Allocations(),
		"passed":      result.Passed,
	}).Info("Simulation finished")

	if err != nil {
		return result, fmt.Errorf("simulation failed: %w", err)
	}
	return result, ctx.Err()
}

func (s *Simulator) requestExplicit(ctx context.Context) error {
	t := time.NewTicker(s.cfg.ExplicitGCInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := s.collector.RequestExplicitGC(ctx); err != nil {
				return nil
			}
		}
	}
}

func (s *Simulator) result(start, end time.Time) *Result {
	h := s.heap
	r := &Result{
		Name:       s.name,
		Mode:       s.cfg.Mode,
		StartTime:  start,
		EndTime:    end,
		Duration:   end.Sub(start),
		Cycles:     h.CollectorPolicy().CycleCounter(),
		Outcomes:   h.CollectorPolicy().Counts(),
		Collector:  s.collector.Stats(),
		Heuristics: h.HeuristicsState().Stats(),
		Events:     h.Events().Events(),
		Phases:     h.PhaseTable().Snapshot(),
		Alloc:      h.Allocations().Snapshot(),
		AllocTypes: make(map[string]alloc.LatencyStats),
		Managers:   h.Managers(),
		Heap:       h.Usage(),
		Tunables:   tunable.Snapshot(),
	}
	for typ, st := range h.Allocations().ByType() {
		r.AllocTypes[typ.String()] = st
	}
	for _, m := range s.mutators {
		r.Mutators = append(r.Mutators, m.Stats())
	}
	sort.Slice(r.Mutators, func(i, j int) bool { return r.Mutators[i].Name < r.Mutators[j].Name })

	r.Thresholds = s.thresholds.Evaluate(r)
	r.Passed = true
	for _, t := range r.Thresholds {
		if !t.Passed {
			r.Passed = false
			break
		}
	}
	return r
}
