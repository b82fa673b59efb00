// Package ratecounter measures ingest throughput over a discrete
// sample window.
package ratecounter

import (
	"time"
)

// DefaultWindow is the number of observations per report.
const DefaultWindow = 50

// Counter reports the items-per-second rate once every window of
// observations. Not safe for concurrent use; the ingest loop owns it.
type Counter struct {
	size  int
	count int
	mark  time.Time
	now   func() time.Time
}

// New creates a counter with the given window size (DefaultWindow when
// size is not positive).
func New(size int) *Counter {
	if size <= 0 {
		size = DefaultWindow
	}
	return &Counter{size: size, now: time.Now}
}

// Observe records one item. Once per full window it returns the rate
// over that window and true; every other call returns 0 and false.
func (c *Counter) Observe() (float64, bool) {
	now := c.now()
	if c.mark.IsZero() {
		c.mark = now
	}

	c.count++
	if c.count < c.size {
		return 0, false
	}

	elapsed := now.Sub(c.mark).Seconds()
	c.count = 0
	c.mark = now
	if elapsed <= 0 {
		return 0, false
	}
	return float64(c.size) / elapsed, true
}
