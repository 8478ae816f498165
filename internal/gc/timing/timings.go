// Package timing accumulates per-phase durations for the collector.
//
// Durations are stored in HDR histograms in microseconds so that
// percentiles stay accurate across the very wide range phase durations
// cover, from a few microseconds for root scanning to seconds for a full
// collection.
package timing

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/wesleyorama2/gcscope/internal/gc/clock"
	"github.com/wesleyorama2/gcscope/internal/gc/contract"
	"github.com/wesleyorama2/gcscope/internal/gc/phase"
)

// Config controls histogram range and precision.
type Config struct {
	// HistogramMin is the minimum recordable value in microseconds (default: 1)
	HistogramMin int64

	// HistogramMax is the maximum recordable value in microseconds (default: 1 hour)
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures (default: 3)
	HistogramSigFigs int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		HistogramMin:     1,
		HistogramMax:     3600000000,
		HistogramSigFigs: 3,
	}
}

// PhaseStats summarizes one phase.
type PhaseStats struct {
	Phase phase.Phase   `json:"-"`
	Key   string        `json:"key"`
	Name  string        `json:"name"`
	Count int64         `json:"count"`
	Total time.Duration `json:"total"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P90   time.Duration `json:"p90"`
	P99   time.Duration `json:"p99"`
}

// PhaseTimings is the phase-timing table. A phase is entered by one
// thread at a time, so a single start slot per phase is enough; the lock
// only protects the histograms from concurrent readers.
type PhaseTimings struct {
	clock  clock.Clock
	config Config

	mu     sync.Mutex
	starts [phase.NumPhases]time.Time
	hists  [phase.NumPhases]*hdrhistogram.Histogram
	totals [phase.NumPhases]time.Duration
}

// New returns a table using the default configuration.
func New(c clock.Clock) *PhaseTimings {
	return NewWithConfig(c, DefaultConfig())
}

// NewWithConfig returns a table with a custom histogram configuration.
func NewWithConfig(c clock.Clock, config Config) *PhaseTimings {
	if c == nil {
		c = clock.System{}
	}
	pt := &PhaseTimings{clock: c, config: config}
	for i := range pt.hists {
		pt.hists[i] = hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs)
	}
	return pt
}

// RecordPhaseStart stamps the start of p.
func (pt *PhaseTimings) RecordPhaseStart(p phase.Phase) {
	contract.Checkf(phase.Valid(p), "recording start of invalid phase %d", int(p))
	now := pt.clock.Now()

	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.starts[p] = now
}

// RecordPhaseEnd adds the time elapsed since the matching start of p.
func (pt *PhaseTimings) RecordPhaseEnd(p phase.Phase) {
	contract.Checkf(phase.Valid(p), "recording end of invalid phase %d", int(p))
	now := pt.clock.Now()

	pt.mu.Lock()
	defer pt.mu.Unlock()

	start := pt.starts[p]
	contract.Checkf(!start.IsZero(), "phase %s ended without a start", p.Key())
	pt.starts[p] = time.Time{}

	d := now.Sub(start)
	pt.totals[p] += d
	pt.record(p, d)
}

// record stores d in the histogram of p. Caller holds pt.mu.
// NOTE: hdrhistogram RecordValue is not thread-safe.
func (pt *PhaseTimings) record(p phase.Phase, d time.Duration) {
	micros := d.Microseconds()
	if micros < pt.config.HistogramMin {
		micros = pt.config.HistogramMin
	}
	if micros > pt.config.HistogramMax {
		micros = pt.config.HistogramMax
	}
	_ = pt.hists[p].RecordValue(micros)
}

// Stats returns the summary for one phase.
func (pt *PhaseTimings) Stats(p phase.Phase) PhaseStats {
	contract.Checkf(phase.Valid(p), "stats for invalid phase %d", int(p))

	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.statsLocked(p)
}

func (pt *PhaseTimings) statsLocked(p phase.Phase) PhaseStats {
	h := pt.hists[p]
	return PhaseStats{
		Phase: p,
		Key:   p.Key(),
		Name:  p.String(),
		Count: h.TotalCount(),
		Total: pt.totals[p],
		Min:   micros(h.Min()),
		Max:   micros(h.Max()),
		Mean:  time.Duration(h.Mean() * float64(time.Microsecond)),
		P50:   micros(h.ValueAtQuantile(50)),
		P90:   micros(h.ValueAtQuantile(90)),
		P99:   micros(h.ValueAtQuantile(99)),
	}
}

// Snapshot returns stats for every phase that was recorded at least once,
// in declaration order.
func (pt *PhaseTimings) Snapshot() []PhaseStats {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	out := make([]PhaseStats, 0, 16)
	for _, p := range phase.All() {
		if pt.hists[p].TotalCount() == 0 {
			continue
		}
		out = append(out, pt.statsLocked(p))
	}
	return out
}

// Reset discards all recorded data.
func (pt *PhaseTimings) Reset() {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	for i := range pt.hists {
		pt.hists[i].Reset()
		pt.totals[i] = 0
		pt.starts[i] = time.Time{}
	}
}

// WriteSummary prints the timing table.
func (pt *PhaseTimings) WriteSummary(w io.Writer) error {
	stats := pt.Snapshot()
	if _, err := fmt.Fprintln(w, "GC STATISTICS:"); err != nil {
		return err
	}
	for _, s := range stats {
		_, err := fmt.Fprintf(w, "%-32s = %8.3f s (a = %8d us) (n = %5d) (lvls, us = %8d, %8d, %8d, %8d)\n",
			s.Name, s.Total.Seconds(), s.Mean.Microseconds(), s.Count,
			s.Min.Microseconds(), s.P50.Microseconds(), s.P99.Microseconds(), s.Max.Microseconds())
		if err != nil {
			return err
		}
	}
	return nil
}

func micros(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}
