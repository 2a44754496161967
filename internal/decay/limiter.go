package decay

import "sync"

// Limiter throttles load using a decaying accumulator and a fixed
// threshold. A cost is committed only when accepting it keeps the
// accumulated value at or below the threshold, so a minimal-cost request
// always gets through once decay has drained the register, no matter how
// often the limiter is polled.
//
// A Limiter is safe for concurrent use; calls are serialized so that two
// callers cannot both claim the last increment of budget.
type Limiter struct {
	mu        sync.Mutex
	acc       *Accumulator
	threshold float64
}

// NewLimiter returns a limiter that admits cost while the decayed running
// total stays at or below threshold. The total halves every halfLife time
// units.
func NewLimiter(threshold, halfLife float64) *Limiter {
	return &Limiter{
		acc:       New(halfLife),
		threshold: threshold,
	}
}

// Exceeded reports whether adding cost at now would push the accumulated
// value over the threshold. The cost is committed only on success, so a
// rejected call leaves the register untouched.
//
// Time running backward relative to the limiter's last-seen time reports
// exceeded without committing, failing safe rather than mis-accounting.
func (l *Limiter) Exceeded(now, cost float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now < l.acc.lastTime {
		return true
	}
	if l.acc.Peek(now)+cost > l.threshold {
		return true
	}
	l.acc.Advance(now, cost)
	return false
}

// Value returns the accumulated value projected to now without committing
// anything. For a time before the last update it returns the value as of
// the last update.
func (l *Limiter) Value(now float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now < l.acc.lastTime {
		return l.acc.value
	}
	return l.acc.Peek(now)
}

// Threshold returns the configured admission threshold.
func (l *Limiter) Threshold() float64 { return l.threshold }
