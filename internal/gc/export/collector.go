// Package export publishes collector statistics as Prometheus metrics.
package export

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wesleyorama2/gcscope/internal/gc/cause"
	"github.com/wesleyorama2/gcscope/internal/gc/heap"
	"github.com/wesleyorama2/gcscope/internal/gc/policy"
)

const namespace = "gcscope"

// Collector reads a heap's bookkeeping on every scrape.
type Collector struct {
	heap *heap.Heap

	cycles         *prometheus.Desc
	outcomes       *prometheus.Desc
	pauses         *prometheus.Desc
	pauseSeconds   *prometheus.Desc
	lastCycle      *prometheus.Desc
	active         *prometheus.Desc
	activePhase    *prometheus.Desc
	phaseCount     *prometheus.Desc
	phaseSeconds   *prometheus.Desc
	phaseP99       *prometheus.Desc
	allocRequests  *prometheus.Desc
	allocP99       *prometheus.Desc
	allocWords     *prometheus.Desc
	heapWords      *prometheus.Desc
	managerCount   *prometheus.Desc
	managerSeconds *prometheus.Desc
}

// NewCollector returns a collector over h. Register it with a
// prometheus.Registerer to expose it.
func NewCollector(h *heap.Heap) *Collector {
	desc := func(subsystem, name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, labels, nil)
	}
	return &Collector{
		heap:           h,
		cycles:         desc("gc", "cycles_total", "Collection cycles started."),
		outcomes:       desc("gc", "outcomes_total", "Finished cycles by outcome.", "outcome"),
		pauses:         desc("gc", "pauses_total", "Stop-the-world pauses."),
		pauseSeconds:   desc("gc", "pause_seconds_total", "Accumulated pause time in seconds."),
		lastCycle:      desc("gc", "last_cycle_seconds", "Duration of the last finished cycle."),
		active:         desc("gc", "active", "1 while a collection session is open.", "cause"),
		activePhase:    desc("phase", "active", "1 for each thread inside a timed phase.", "thread", "phase"),
		phaseCount:     desc("phase", "count_total", "Completed phases.", "phase"),
		phaseSeconds:   desc("phase", "seconds_total", "Accumulated phase time in seconds.", "phase"),
		phaseP99:       desc("phase", "p99_seconds", "99th percentile phase duration.", "phase"),
		allocRequests:  desc("alloc", "requests_total", "Traced allocation requests.", "type"),
		allocP99:       desc("alloc", "latency_p99_seconds", "99th percentile allocation latency.", "type"),
		allocWords:     desc("alloc", "words_total", "Words requested by traced allocations.", "type"),
		heapWords:      desc("heap", "words", "Heap usage in words.", "kind"),
		managerCount:   desc("manager", "collections_total", "Collections counted per memory manager.", "manager"),
		managerSeconds: desc("manager", "gc_seconds_total", "Accumulated GC time per memory manager.", "manager"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.cycles, c.outcomes, c.pauses, c.pauseSeconds, c.lastCycle, c.active,
		c.activePhase, c.phaseCount, c.phaseSeconds, c.phaseP99,
		c.allocRequests, c.allocP99, c.allocWords,
		c.heapWords, c.managerCount, c.managerSeconds,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	h := c.heap

	p := h.CollectorPolicy()
	ch <- prometheus.MustNewConstMetric(c.cycles, prometheus.CounterValue, float64(p.CycleCounter()))
	for _, o := range policy.Outcomes() {
		ch <- prometheus.MustNewConstMetric(c.outcomes, prometheus.CounterValue, float64(p.Count(o)), o.String())
	}

	hs := h.HeuristicsState().Stats()
	ch <- prometheus.MustNewConstMetric(c.pauses, prometheus.CounterValue, float64(hs.Pauses))
	ch <- prometheus.MustNewConstMetric(c.pauseSeconds, prometheus.CounterValue, hs.PauseTime.Seconds())
	ch <- prometheus.MustNewConstMetric(c.lastCycle, prometheus.GaugeValue, hs.LastCycleTime.Seconds())

	active := 0.0
	gcCause := h.GCCause()
	if gcCause != cause.NoGC {
		active = 1
	}
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, active, gcCause.Key())

	for _, tp := range h.Threads().CurrentPhases() {
		ch <- prometheus.MustNewConstMetric(c.activePhase, prometheus.GaugeValue, 1, tp.Thread, tp.Phase.Key())
	}

	for _, s := range h.PhaseTable().Snapshot() {
		ch <- prometheus.MustNewConstMetric(c.phaseCount, prometheus.CounterValue, float64(s.Count), s.Key)
		ch <- prometheus.MustNewConstMetric(c.phaseSeconds, prometheus.CounterValue, s.Total.Seconds(), s.Key)
		ch <- prometheus.MustNewConstMetric(c.phaseP99, prometheus.GaugeValue, s.P99.Seconds(), s.Key)
	}

	if tracker := h.Allocations(); tracker != nil {
		for typ, s := range tracker.ByType() {
			ch <- prometheus.MustNewConstMetric(c.allocRequests, prometheus.CounterValue, float64(s.Count), typ.String())
			ch <- prometheus.MustNewConstMetric(c.allocP99, prometheus.GaugeValue, s.P99.Seconds(), typ.String())
			ch <- prometheus.MustNewConstMetric(c.allocWords, prometheus.CounterValue, float64(s.TotalSize), typ.String())
		}
	}

	u := h.Usage()
	ch <- prometheus.MustNewConstMetric(c.heapWords, prometheus.GaugeValue, float64(u.Used), "used")
	ch <- prometheus.MustNewConstMetric(c.heapWords, prometheus.GaugeValue, float64(u.Committed), "committed")
	ch <- prometheus.MustNewConstMetric(c.heapWords, prometheus.GaugeValue, float64(u.Capacity), "capacity")

	for _, m := range h.Managers() {
		ch <- prometheus.MustNewConstMetric(c.managerCount, prometheus.CounterValue, float64(m.Collections), m.Name)
		ch <- prometheus.MustNewConstMetric(c.managerSeconds, prometheus.CounterValue, m.AccumulatedGCTime.Seconds(), m.Name)
	}
}

var _ prometheus.Collector = (*Collector)(nil)
