// Package budget meters external calls for a single run. Engineer and asset
// tasks charge the same meter from concurrent goroutines, so the counter uses
// an atomic check-and-increment rather than a read-then-write pair.
package budget

import (
	"errors"
	"sync/atomic"
)

// ErrExceeded is returned when a charge would cross the configured limit.
// The call it guards must not be made.
var ErrExceeded = errors.New("budget: call budget exceeded")

// Meter is a shared call counter with a hard limit.
type Meter struct {
	limit int64
	used  atomic.Int64
}

// NewMeter creates a meter allowing up to limit external calls.
// limit <= 0 means unlimited.
func NewMeter(limit int) *Meter {
	return &Meter{limit: int64(limit)}
}

// Charge reserves n calls. It either succeeds atomically or leaves the
// counter untouched and returns ErrExceeded.
func (m *Meter) Charge(n int) error {
	if m == nil || m.limit <= 0 {
		if m != nil {
			m.used.Add(int64(n))
		}
		return nil
	}
	for {
		cur := m.used.Load()
		next := cur + int64(n)
		if next > m.limit {
			return ErrExceeded
		}
		if m.used.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

// Used returns the number of calls charged so far.
func (m *Meter) Used() int {
	if m == nil {
		return 0
	}
	return int(m.used.Load())
}

// Remaining returns how many calls are left, or -1 when unlimited.
func (m *Meter) Remaining() int {
	if m == nil || m.limit <= 0 {
		return -1
	}
	r := m.limit - m.used.Load()
	if r < 0 {
		r = 0
	}
	return int(r)
}
