package metrics

import (
	"slices"
	"sync"
	"time"
)

const defaultLatencyBufferSize = 10000

// window keeps the most recent latency samples in a ring.
type window struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	full    bool
}

type quantiles struct {
	n                   int
	mean, p50, p95, p99 time.Duration
}

func newWindow(size int) *window {
	return &window{samples: make([]time.Duration, size)}
}

func (w *window) observe(d time.Duration) {
	w.mu.Lock()
	w.samples[w.next] = d
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.full = true
	}
	w.mu.Unlock()
}

// summary sorts a copy of the live samples; ring order does not matter.
func (w *window) summary() quantiles {
	w.mu.Lock()
	n := w.next
	if w.full {
		n = len(w.samples)
	}
	sorted := slices.Clone(w.samples[:n])
	w.mu.Unlock()

	if n == 0 {
		return quantiles{}
	}
	slices.Sort(sorted)

	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	at := func(p int) time.Duration { return sorted[(n-1)*p/100] }
	return quantiles{
		n:    n,
		mean: total / time.Duration(n),
		p50:  at(50),
		p95:  at(95),
		p99:  at(99),
	}
}

func (w *window) reset() {
	w.mu.Lock()
	w.next, w.full = 0, false
	w.mu.Unlock()
}
