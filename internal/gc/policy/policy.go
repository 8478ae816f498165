// Package policy keeps the cycle bookkeeping of the collector policy and
// heuristics. The decision logic that chooses when and how to collect
// lives elsewhere; these types only observe cycle and pause boundaries.
package policy

import (
	"fmt"
	"io"
	"sync/atomic"
)

// Outcome is how a cycle finished.
type Outcome uint8

const (
	OutcomeConcurrent Outcome = iota
	OutcomeDegenerated
	OutcomeFull
	OutcomeAllocFailureMark
	OutcomeAllocFailureEvac
	OutcomeExplicit
	OutcomeImplicit

	numOutcomes
)

var outcomeNames = [numOutcomes]string{
	OutcomeConcurrent:       "concurrent",
	OutcomeDegenerated:      "degenerated",
	OutcomeFull:             "full",
	OutcomeAllocFailureMark: "alloc-failure-mark",
	OutcomeAllocFailureEvac: "alloc-failure-evac",
	OutcomeExplicit:         "explicit",
	OutcomeImplicit:         "implicit",
}

func (o Outcome) String() string {
	if o < numOutcomes {
		return outcomeNames[o]
	}
	return fmt.Sprintf("Outcome(%d)", uint8(o))
}

// Outcomes lists every outcome in declaration order.
func Outcomes() []Outcome {
	out := make([]Outcome, numOutcomes)
	for i := range out {
		out[i] = Outcome(i)
	}
	return out
}

// CollectorPolicy counts cycles and their outcomes. Safe for concurrent
// use.
type CollectorPolicy struct {
	cycles   atomic.Uint64
	outcomes [numOutcomes]atomic.Uint64
}

// NewCollectorPolicy returns a policy with zeroed counters.
func NewCollectorPolicy() *CollectorPolicy {
	return &CollectorPolicy{}
}

// RecordCycleStart counts a new cycle.
func (p *CollectorPolicy) RecordCycleStart() {
	p.cycles.Add(1)
}

// RecordCycleEnd is a no-op kept for symmetry with Heuristics.
func (p *CollectorPolicy) RecordCycleEnd() {}

// RecordOutcome counts how the current cycle finished.
func (p *CollectorPolicy) RecordOutcome(o Outcome) {
	if o < numOutcomes {
		p.outcomes[o].Add(1)
	}
}

// CycleCounter is the number of cycles started.
func (p *CollectorPolicy) CycleCounter() uint64 {
	return p.cycles.Load()
}

// Count returns how many cycles finished with o.
func (p *CollectorPolicy) Count(o Outcome) uint64 {
	if o >= numOutcomes {
		return 0
	}
	return p.outcomes[o].Load()
}

// Counts returns all outcome counters keyed by name.
func (p *CollectorPolicy) Counts() map[string]uint64 {
	out := make(map[string]uint64, numOutcomes)
	for o := Outcome(0); o < numOutcomes; o++ {
		out[o.String()] = p.outcomes[o].Load()
	}
	return out
}

// WriteSummary prints the outcome counters.
func (p *CollectorPolicy) WriteSummary(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"%d cycles: %d completed concurrently, %d degenerated, %d full, %d explicit, %d implicit\n",
		p.CycleCounter(),
		p.Count(OutcomeConcurrent), p.Count(OutcomeDegenerated), p.Count(OutcomeFull),
		p.Count(OutcomeExplicit), p.Count(OutcomeImplicit))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "  %d caused by allocation failure during mark, %d during evacuation\n",
		p.Count(OutcomeAllocFailureMark), p.Count(OutcomeAllocFailureEvac))
	return err
}
