// Package decay implements an exponentially decaying accumulator and a
// rate limiter built on it. Time is an abstract float; the accumulator
// only assumes that one half-life of elapsed time halves the value.
package decay

import "math"

// Accumulator is a single exponentially decaying register. In the absence
// of increments its value halves every halfLife time units.
//
// An Accumulator is not safe for concurrent use; Limiter adds the locking
// needed for shared instances.
type Accumulator struct {
	halfLife float64
	value    float64
	lastTime float64
}

// New returns a zero-valued accumulator with the given half-life.
func New(halfLife float64) *Accumulator {
	return Seed(halfLife, 0, 0)
}

// Seed returns an accumulator holding value as of lastTime.
func Seed(halfLife, value, lastTime float64) *Accumulator {
	return &Accumulator{
		halfLife: halfLife,
		value:    value,
		lastTime: lastTime,
	}
}

// factor returns the decay over dt time units. Computed in one shot from
// the half-life so that dt of exactly one half-life halves exactly;
// folding through a pre-rounded per-unit constant drifts enough to flip
// threshold comparisons at the boundary.
func (a *Accumulator) factor(dt float64) float64 {
	return math.Pow(0.5, dt/a.halfLife)
}

// Advance decays the register forward to now, adds increment, and returns
// the resulting value.
//
// When now is at or before the last update, the register is not decayed
// and lastTime does not move backward; instead the increment itself is
// scaled by the decay over lastTime-now, so a backdated event contributes
// the reduced amount it would be worth at lastTime.
func (a *Accumulator) Advance(now, increment float64) float64 {
	if now > a.lastTime {
		a.value = a.value*a.factor(now-a.lastTime) + increment
		a.lastTime = now
	} else {
		a.value += a.factor(a.lastTime-now) * increment
	}
	return a.value
}

// Peek returns the value Advance(now, increment) would produce without
// mutating the register.
func (a *Accumulator) Peek(now float64) float64 {
	if now > a.lastTime {
		return a.value * a.factor(now-a.lastTime)
	}
	return a.value
}

// Value returns the register value as of the last update.
func (a *Accumulator) Value() float64 { return a.value }

// LastTime returns the time of the last update.
func (a *Accumulator) LastTime() float64 { return a.lastTime }
