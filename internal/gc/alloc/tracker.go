package alloc

import (
	"fmt"
	"io"
	"math/bits"
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// NumSizeBuckets is the number of binary-magnitude size buckets. Bucket
// b holds requests of [2^(b-1), 2^b) words; bucket 0 holds empty requests.
const NumSizeBuckets = 65

// SizeBucket returns the binary-magnitude bucket of a request size.
func SizeBucket(words uint64) int {
	return bits.Len64(words)
}

// BucketRange returns the inclusive word range covered by bucket b.
func BucketRange(b int) (lo, hi uint64) {
	if b <= 0 {
		return 0, 0
	}
	lo = uint64(1) << (b - 1)
	hi = lo<<1 - 1
	if b == 64 {
		hi = ^uint64(0)
	}
	return lo, hi
}

type key struct {
	typ    RequestType
	bucket int
}

// LatencyStats summarizes one (type, size bucket) cell.
type LatencyStats struct {
	Type      RequestType   `json:"-"`
	TypeName  string        `json:"type"`
	Bucket    int           `json:"bucket"`
	MinWords  uint64        `json:"minWords"`
	MaxWords  uint64        `json:"maxWords"`
	Count     int64         `json:"count"`
	Min       time.Duration `json:"min"`
	Max       time.Duration `json:"max"`
	Mean      time.Duration `json:"mean"`
	P50       time.Duration `json:"p50"`
	P99       time.Duration `json:"p99"`
	TotalSize uint64        `json:"totalWords"`
}

// Tracker records allocation latencies keyed by (request type, size
// bucket). It is safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	cells map[key]*cell
}

type cell struct {
	hist  *hdrhistogram.Histogram
	words uint64
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{cells: make(map[key]*cell)}
}

// RecordAllocLatency records one request of size words and its latency in
// microseconds. Fractions of a microsecond round down; latencies beyond an
// hour are clamped.
func (t *Tracker) RecordAllocLatency(words uint64, typ RequestType, durationMicros float64) {
	v := int64(durationMicros)
	if v < 0 {
		v = 0
	}
	if v > maxLatencyMicros {
		v = maxLatencyMicros
	}

	k := key{typ: typ, bucket: SizeBucket(words)}

	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.cells[k]
	if !ok {
		c = &cell{hist: hdrhistogram.New(1, maxLatencyMicros, 3)}
		t.cells[k] = c
	}
	_ = c.hist.RecordValue(v)
	c.words += words
}

const maxLatencyMicros = int64(time.Hour / time.Microsecond)

// Count returns the number of recorded requests across all cells.
func (t *Tracker) Count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var n int64
	for _, c := range t.cells {
		n += c.hist.TotalCount()
	}
	return n
}

// Snapshot returns one entry per populated cell ordered by type, then
// bucket.
func (t *Tracker) Snapshot() []LatencyStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]LatencyStats, 0, len(t.cells))
	for k, c := range t.cells {
		lo, hi := BucketRange(k.bucket)
		h := c.hist
		out = append(out, LatencyStats{
			Type:      k.typ,
			TypeName:  k.typ.String(),
			Bucket:    k.bucket,
			MinWords:  lo,
			MaxWords:  hi,
			Count:     h.TotalCount(),
			Min:       micros(h.Min()),
			Max:       micros(h.Max()),
			Mean:      time.Duration(h.Mean() * float64(time.Microsecond)),
			P50:       micros(h.ValueAtQuantile(50)),
			P99:       micros(h.ValueAtQuantile(99)),
			TotalSize: c.words,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Bucket < out[j].Bucket
	})
	return out
}

// ByType merges the size buckets of each request type.
func (t *Tracker) ByType() map[RequestType]LatencyStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	merged := make(map[RequestType]*hdrhistogram.Histogram)
	words := make(map[RequestType]uint64)
	for k, c := range t.cells {
		h, ok := merged[k.typ]
		if !ok {
			h = hdrhistogram.New(1, maxLatencyMicros, 3)
			merged[k.typ] = h
		}
		h.Merge(c.hist)
		words[k.typ] += c.words
	}

	out := make(map[RequestType]LatencyStats, len(merged))
	for typ, h := range merged {
		out[typ] = LatencyStats{
			Type:      typ,
			TypeName:  typ.String(),
			Bucket:    -1,
			Count:     h.TotalCount(),
			Min:       micros(h.Min()),
			Max:       micros(h.Max()),
			Mean:      time.Duration(h.Mean() * float64(time.Microsecond)),
			P50:       micros(h.ValueAtQuantile(50)),
			P99:       micros(h.ValueAtQuantile(99)),
			TotalSize: words[typ],
		}
	}
	return out
}

// WriteSummary prints the latency table.
func (t *Tracker) WriteSummary(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "ALLOCATION LATENCIES (us):"); err != nil {
		return err
	}
	for _, s := range t.Snapshot() {
		_, err := fmt.Fprintf(w, "  %-10s [%10d, %10d] words: n = %7d, min = %7d, p50 = %7d, p99 = %7d, max = %7d\n",
			s.TypeName, s.MinWords, s.MaxWords, s.Count,
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
