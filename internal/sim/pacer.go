package sim

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Pacer spaces a mutator's allocations at a fixed rate using a leaky
// bucket: each Next returns the instant the following allocation is due,
// and a mutator that falls behind runs immediately instead of bursting to
// catch up.
//
// Pacer is safe for concurrent use.
type Pacer struct {
	rate        float64 // allocations per second
	lastDrip    time.Time
	accumulated float64
	maxBurst    float64
	mu          sync.Mutex

	scheduled atomic.Int64
	waited    atomic.Int64 // nanoseconds
}

// NewPacer returns a pacer for rate allocations per second. A non-positive
// rate is treated as 1.
func NewPacer(rate float64) *Pacer {
	if rate <= 0 {
		rate = 1.0
	}
	return &Pacer{
		rate:     rate,
		lastDrip: time.Now(),
		maxBurst: 1.0,
	}
}

// Next returns when the next allocation should run. The result may be in
// the past, meaning run now.
func (p *Pacer) Next() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(p.lastDrip).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	p.accumulated += elapsed * p.rate
	if p.accumulated > p.maxBurst {
		p.accumulated = p.maxBurst
	}

	p.scheduled.Add(1)
	if p.accumulated >= 1.0 {
		p.accumulated -= 1.0
		p.lastDrip = now
		return now
	}

	deficit := 1.0 - p.accumulated
	p.accumulated = 0
	next := now.Add(time.Duration(deficit / p.rate * float64(time.Second)))

	// Drip from the scheduled instant so waking at next does not count the
	// same interval twice.
	p.lastDrip = next
	p.waited.Add(int64(next.Sub(now)))
	return next
}

// Wait blocks until the next allocation is due or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	d := time.Until(p.Next())
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SetRate changes the rate without carrying accumulated credit over.
func (p *Pacer) SetRate(rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if rate <= 0 {
		rate = 1.0
	}
	p.rate = rate
	p.accumulated = 0
	p.lastDrip = time.Now()
}

// Rate returns the allocations per second.
func (p *Pacer) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

// PacerStats summarizes a pacer's activity.
type PacerStats struct {
	Rate      float64       `json:"rate"`
	Scheduled int64         `json:"scheduled"`
	Waited    time.Duration `json:"waited"`
}

// Stats returns the pacer's counters.
func (p *Pacer) Stats() PacerStats {
	return PacerStats{
		Rate:      p.Rate(),
		Scheduled: p.scheduled.Load(),
		Waited:    time.Duration(p.waited.Load()),
	}
}
