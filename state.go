package ember

import "github.com/kindling/ember/internal/decay"

// State describes whether a cache entry is in sync with the durable
// store. Ordering matters: state only escalates within a session and is
// reset to Clean only by a successful flush.
type State int

const (
	// Clean entries are in sync with the durable store, or untouched
	// this session.
	Clean State = iota

	// Dirty entries hold local modifications and may be flushed
	// opportunistically, subject to the flush throttle.
	Dirty

	// Critical entries hold modifications that must reach the durable
	// store at the next flush opportunity, throttle or not.
	Critical
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Critical:
		return "critical"
	}
	return "unknown"
}

// EntryState is the per-entity dirty/critical/clean state machine that
// decides whether and when an entity must be persisted. Embed it in
// entity structs:
//
//	type Post struct {
//	    ember.EntryState
//	    Title string `json:"title"`
//	}
//
// The zero value is Clean. EntryState is confined to the session holding
// the entity and needs no locking. Its fields are never serialized: a
// copy read back from any tier starts Clean.
type EntryState struct {
	state     State
	shared    bool
	lastFlush float64
}

// CacheEntry returns the entry state itself, so embedding EntryState
// satisfies the Entity contract's accessor.
func (e *EntryState) CacheEntry() *EntryState { return e }

// State returns the current entry state.
func (e *EntryState) State() State { return e.state }

// MarkDirty escalates the entry to Dirty, or to Critical when critical
// is true. It never downgrades: a Critical entry stays Critical through
// any number of non-critical marks.
func (e *EntryState) MarkDirty(critical bool) {
	if critical {
		e.state = Critical
		return
	}
	if e.state < Dirty {
		e.state = Dirty
	}
}

// Shared reports whether the entity has been installed in the shared
// tier this session.
func (e *EntryState) Shared() bool { return e.shared }

// LastFlush returns the time of the last successful flush, in hours
// since the score epoch, zero if never flushed.
func (e *EntryState) LastFlush() float64 { return e.lastFlush }

// shouldFlush reports whether the entity must be written back now.
// Critical always flushes; Dirty flushes only while the write throttle
// admits it; Clean never flushes.
func (e *EntryState) shouldFlush(now float64, limiter *decay.Limiter) bool {
	switch e.state {
	case Critical:
		return true
	case Dirty:
		return !limiter.Exceeded(now, 1)
	}
	return false
}

// setClean records a successful flush.
func (e *EntryState) setClean(now float64) {
	e.state = Clean
	e.lastFlush = now
}

// reset returns the entry to Clean without recording a flush, used when
// a copy freshly read from the shared tier is installed.
func (e *EntryState) reset() {
	e.state = Clean
}
