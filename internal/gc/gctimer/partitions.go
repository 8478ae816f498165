package gctimer

import (
	"time"

	"github.com/wesleyorama2/gcscope/internal/gc/contract"
)

// PhaseInterval is one bracket registered on the timer. Level 0 brackets
// are pauses; deeper levels are nested inside them.
type PhaseInterval struct {
	Name  string    `json:"name"`
	Level int       `json:"level"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End-Start, or zero while the interval is still open.
func (p PhaseInterval) Duration() time.Duration {
	if p.End.IsZero() {
		return 0
	}
	return p.End.Sub(p.Start)
}

// TimePartitions accumulates the brackets of one cycle.
type TimePartitions struct {
	phases       []PhaseInterval
	active       []int
	sumOfPauses  time.Duration
	longestPause time.Duration
}

func (tp *TimePartitions) clear() {
	tp.phases = tp.phases[:0]
	tp.active = tp.active[:0]
	tp.sumOfPauses = 0
	tp.longestPause = 0
}

func (tp *TimePartitions) reportStart(name string, at time.Time) {
	tp.phases = append(tp.phases, PhaseInterval{
		Name:  name,
		Level: len(tp.active),
		Start: at,
	})
	tp.active = append(tp.active, len(tp.phases)-1)
}

func (tp *TimePartitions) reportEnd(at time.Time) {
	contract.Check(len(tp.active) > 0, "phase end without matching phase start")

	idx := tp.active[len(tp.active)-1]
	tp.active = tp.active[:len(tp.active)-1]

	p := &tp.phases[idx]
	p.End = at
	if p.Level == 0 {
		d := p.Duration()
		tp.sumOfPauses += d
		if d > tp.longestPause {
			tp.longestPause = d
		}
	}
}

func (tp *TimePartitions) clone() *TimePartitions {
	out := &TimePartitions{
		phases:       make([]PhaseInterval, len(tp.phases)),
		active:       make([]int, len(tp.active)),
		sumOfPauses:  tp.sumOfPauses,
		longestPause: tp.longestPause,
	}
	copy(out.phases, tp.phases)
	copy(out.active, tp.active)
	return out
}

// Phases returns the registered intervals in start order.
func (tp *TimePartitions) Phases() []PhaseInterval {
	if tp == nil {
		return nil
	}
	out := make([]PhaseInterval, len(tp.phases))
	copy(out, tp.phases)
	return out
}

// ActiveDepth is the number of brackets still open.
func (tp *TimePartitions) ActiveDepth() int {
	if tp == nil {
		return 0
	}
	return len(tp.active)
}

// SumOfPauses totals the closed level-0 intervals.
func (tp *TimePartitions) SumOfPauses() time.Duration {
	if tp == nil {
		return 0
	}
	return tp.sumOfPauses
}

// LongestPause is the longest closed level-0 interval.
func (tp *TimePartitions) LongestPause() time.Duration {
	if tp == nil {
		return 0
	}
	return tp.longestPause
}

// PauseCount counts closed level-0 intervals.
func (tp *TimePartitions) PauseCount() int {
	if tp == nil {
		return 0
	}
	n := 0
	for _, p := range tp.phases {
		if p.Level == 0 && !p.End.IsZero() {
			n++
		}
	}
	return n
}
