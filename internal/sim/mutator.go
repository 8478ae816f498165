package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/gcscope/internal/gc/alloc"
	"github.com/wesleyorama2/gcscope/internal/gc/heap"
	"github.com/wesleyorama2/gcscope/internal/gc/scope"
)

// MutatorStats summarizes one mutator's run.
type MutatorStats struct {
	Name        string     `json:"name"`
	Allocations int64      `json:"allocations"`
	Words       uint64     `json:"words"`
	GCWaits     int64      `json:"gcWaits"`
	OutOfMemory int64      `json:"outOfMemory"`
	Pacer       PacerStats `json:"pacer"`
}

// Mutator allocates at a paced rate and waits for the collector when the
// heap is full.
type Mutator struct {
	thread    *scope.Thread
	heap      *heap.Heap
	collector *Collector
	pacer     *Pacer
	rng       *rand.Rand
	cfg       Config

	allocations atomic.Int64
	words       atomic.Uint64
	waits       atomic.Int64
	oom         atomic.Int64
}

func newMutator(id int, cfg Config, h *heap.Heap, c *Collector) *Mutator {
	return &Mutator{
		thread:    h.NewThread(fmt.Sprintf("mutator-%d", id), scope.RoleMutator),
		heap:      h,
		collector: c,
		pacer:     NewPacer(cfg.AllocRate),
		rng:       rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(id))),
		cfg:       cfg,
	}
}

// Run allocates until ctx is done.
func (m *Mutator) Run(ctx context.Context) error {
	for {
		if err := m.pacer.Wait(ctx); err != nil {
			return nil
		}

		words, typ := m.nextRequest()
		attempts := 0
		err := m.heap.Allocate(m.thread, words, typ, func() error {
			attempts++
			if attempts > m.cfg.MaxAllocRetries {
				return heap.ErrOutOfMemory
			}
			m.waits.Add(1)
			return m.collector.RequestAllocFailureGC(ctx)
		})

		switch {
		case err == nil:
			m.allocations.Add(1)
			m.words.Add(words)
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, heap.ErrOutOfMemory):
			m.oom.Add(1)
			logrus.WithFields(logrus.Fields{
				"mutator":    m.thread.Name(),
				"size_words": words,
				"alloc_type": typ.String(),
			}).Warn("Allocation failed after collection")
		default:
			return err
		}
	}
}

func (m *Mutator) nextRequest() (uint64, alloc.RequestType) {
	span := m.cfg.MaxAllocWords - m.cfg.MinAllocWords
	words := m.cfg.MinAllocWords
	if span > 0 {
		words += m.rng.Uint64N(span + 1)
	}
	typ := alloc.Shared
	if m.rng.Float64() < m.cfg.TLABFraction {
		typ = alloc.TLAB
	}
	return words, typ
}

// Stats returns the mutator counters.
func (m *Mutator) Stats() MutatorStats {
	return MutatorStats{
		Name:        m.thread.Name(),
		Allocations: m.allocations.Load(),
		Words:       m.words.Load(),
		GCWaits:     m.waits.Load(),
		OutOfMemory: m.oom.Load(),
		Pacer:       m.pacer.Stats(),
	}
}
