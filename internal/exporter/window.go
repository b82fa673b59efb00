package exporter

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// windowEntry is the live count and freshness of one label value.
type windowEntry struct {
	lastSeen time.Time
	count    float64
}

// windowCounter exposes a counter vec whose label values expire: values
// not updated within the window are pruned and the vec is republished
// from the surviving entries, so /metrics only ever shows recently
// active labels.
type windowCounter struct {
	mu      sync.Mutex
	vec     *prometheus.CounterVec
	window  time.Duration
	entries map[string]windowEntry
	now     func() time.Time
}

func newWindowCounter(vec *prometheus.CounterVec, window time.Duration, now func() time.Time) *windowCounter {
	return &windowCounter{
		vec:     vec,
		window:  window,
		entries: make(map[string]windowEntry),
		now:     now,
	}
}

// Update counts one occurrence of the label value, prunes entries older
// than the window, and republishes the vec.
func (w *windowCounter) Update(label string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()

	entry := w.entries[label]
	entry.count++
	entry.lastSeen = now
	w.entries[label] = entry

	for value, e := range w.entries {
		if now.Sub(e.lastSeen) > w.window {
			delete(w.entries, value)
		}
	}

	w.vec.Reset()
	for value, e := range w.entries {
		w.vec.WithLabelValues(value).Add(e.count)
	}
}
