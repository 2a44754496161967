// Package score maintains time-decayed activity scores for cached
// entities. Each entity carries one register per configured half-life; a
// register stores only a log-domain score and the time it was last
// touched, so recording an event is O(1) no matter how much history the
// entity has accumulated.
//
// Scores are anchored at value 1 at time zero. The stored log score
// already encodes decay relative to that anchor, which makes it a globally
// comparable sort key: two entities scored at different times can be
// ranked without knowing the current time.
//
// Time is measured in hours since 2000-01-01 UTC.
package score

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/kindling/ember/internal/decay"
)

// Standard half-lives, in hours.
const (
	Day   float64 = 24
	Week  float64 = 7 * Day
	Year  float64 = 365*Day + 6
	Month float64 = Year / 12
)

// Epoch is the zero point of the abstract hour timescale.
var Epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// DefaultHalfLives returns the half-lives scored when an entity does not
// configure its own set.
func DefaultHalfLives() []float64 {
	return []float64{Day, Week, Month, Year}
}

// Hours converts a wall-clock time to hours since the epoch.
func Hours(t time.Time) float64 {
	return t.Sub(Epoch).Hours()
}

// FromHours converts hours since the epoch back to a wall-clock time.
func FromHours(hrs float64) time.Time {
	return Epoch.Add(time.Duration(hrs * float64(time.Hour)))
}

// Register is the persisted state of one (entity, half-life) score.
//
// LogScore is log2 of the score re-anchored to time zero; zero represents
// the floor score of 1, and doubles as the underflow sentinel (score 0)
// once LastTime is far enough in the past. Scores below 1 at time zero
// are not representable and never stored.
type Register struct {
	LogScore float64 `json:"log"`
	LastTime float64 `json:"at"`
}

// Scorable is the capability an entity type implements to be scored.
// Embedding a Set satisfies it.
type Scorable interface {
	// HalfLives returns the half-lives scored for this entity, in hours.
	HalfLives() []float64

	// Register returns the stored register for the given half-life.
	Register(halfLife float64) Register

	// SetRegister replaces the stored register for the given half-life.
	SetRegister(halfLife float64, r Register)
}

// dirtyMarker matches the cache layer's entry state without importing it.
type dirtyMarker interface {
	MarkDirty(critical bool)
}

// RecordEvent folds an activity event of the given weight at time now into
// every register of s. Events with positive weight mark the entity dirty
// when it tracks cache entry state, so the new scores are eventually
// persisted.
//
// Events dated before a register's last update contribute a reduced
// amount rather than rewinding the register; see decay.Accumulator.
func RecordEvent(s Scorable, weight, now float64) {
	for _, half := range s.HalfLives() {
		s.SetRegister(half, tick(s.Register(half), half, weight, now))
	}
	if weight > 0 {
		if m, ok := s.(dirtyMarker); ok {
			m.MarkDirty(false)
		}
	}
}

// At returns the linear score for the given half-life projected to now,
// without mutating stored state.
func At(s Scorable, halfLife, now float64) float64 {
	r := s.Register(halfLife)
	acc := decay.Seed(halfLife, linear(r, halfLife), r.LastTime)
	return acc.Peek(now)
}

// OrderingKey returns the stored log score for the given half-life. It is
// valid as a global descending sort key without reference to the current
// time. Underflowed registers report 0 and rank below any live score.
func OrderingKey(s Scorable, halfLife float64) float64 {
	return s.Register(halfLife).LogScore
}

// Fresh reports whether s has never recorded an event: every register is
// still at its zero value.
func Fresh(s Scorable) bool {
	for _, half := range s.HalfLives() {
		if s.Register(half) != (Register{}) {
			return false
		}
	}
	return true
}

// Snapshot returns the projected linear score per half-life name at now.
func Snapshot(s Scorable, now float64) map[string]float64 {
	m := make(map[string]float64, len(s.HalfLives()))
	for _, half := range s.HalfLives() {
		m[Name(half)] = At(s, half, now)
	}
	return m
}

// Sort orders entities by descending ordering key for the given half-life,
// placing underflowed and never-scored entities last.
func Sort[E Scorable](entities []E, halfLife float64) {
	sort.SliceStable(entities, func(i, j int) bool {
		return OrderingKey(entities[i], halfLife) > OrderingKey(entities[j], halfLife)
	})
}

// tick advances one register by an event of the given weight at now.
func tick(r Register, halfLife, weight, now float64) Register {
	acc := decay.Seed(halfLife, linear(r, halfLife), r.LastTime)
	acc.Advance(now, weight)

	v := acc.Value()
	last := acc.LastTime()
	log := math.Log2(v) + last/halfLife
	if v <= 0 || math.IsInf(log, 0) || math.IsNaN(log) {
		// Underflow: the score has decayed below representable precision
		// (or was driven negative). Collapse to the sentinel, which sorts
		// last among peers.
		return Register{LogScore: 0, LastTime: last}
	}
	return Register{LogScore: log, LastTime: last}
}

// linear reconstructs the linear score of r as of r.LastTime.
func linear(r Register, halfLife float64) float64 {
	return math.Exp2(r.LogScore - r.LastTime/halfLife)
}

// Name returns the canonical name for a half-life, used for persisted
// register keys and for query field naming.
func Name(halfLife float64) string {
	switch halfLife {
	case Day:
		return "day"
	case Week:
		return "week"
	case Month:
		return "month"
	case Year:
		return "year"
	}
	return strconv.FormatFloat(halfLife, 'g', -1, 64)
}

// ParseHalfLife is the inverse of Name: it resolves a canonical name or
// a numeric string to a half-life in hours.
func ParseHalfLife(name string) (float64, bool) {
	switch name {
	case "day":
		return Day, true
	case "week":
		return Week, true
	case "month":
		return Month, true
	case "year":
		return Year, true
	}
	h, err := strconv.ParseFloat(name, 64)
	if err != nil || h <= 0 {
		return 0, false
	}
	return h, true
}
