package ember

import (
	"testing"

	"github.com/kindling/ember/internal/decay"
)

func TestEntryState_ZeroValueIsClean(t *testing.T) {
	var e EntryState
	if got := e.State(); got != Clean {
		t.Errorf("State() = %v, want Clean", got)
	}
	if e.Shared() {
		t.Error("Shared() = true on zero value")
	}
}

func TestEntryState_MarkDirty_NeverDowngrades(t *testing.T) {
	var e EntryState

	e.MarkDirty(false)
	if got := e.State(); got != Dirty {
		t.Errorf("State() = %v after MarkDirty(false), want Dirty", got)
	}

	e.MarkDirty(true)
	if got := e.State(); got != Critical {
		t.Errorf("State() = %v after MarkDirty(true), want Critical", got)
	}

	// A later non-critical mark must not soften a critical entry.
	e.MarkDirty(false)
	if got := e.State(); got != Critical {
		t.Errorf("State() = %v after re-mark, want Critical", got)
	}
}

func TestEntryState_SetClean_RecordsFlush(t *testing.T) {
	var e EntryState
	e.MarkDirty(true)

	e.setClean(42)
	if got := e.State(); got != Clean {
		t.Errorf("State() = %v after setClean, want Clean", got)
	}
	if got := e.LastFlush(); got != 42 {
		t.Errorf("LastFlush() = %v, want 42", got)
	}
}

func TestEntryState_ShouldFlush(t *testing.T) {
	// Threshold 1: the first dirty flush is admitted, the second is
	// throttled until decay frees budget.
	limiter := decay.NewLimiter(1, 1)

	var clean, dirty, dirty2, critical EntryState
	dirty.MarkDirty(false)
	dirty2.MarkDirty(false)
	critical.MarkDirty(true)

	if clean.shouldFlush(0, limiter) {
		t.Error("clean shouldFlush = true, want false")
	}
	if !dirty.shouldFlush(0, limiter) {
		t.Error("dirty shouldFlush = false with budget available, want true")
	}
	if dirty2.shouldFlush(0, limiter) {
		t.Error("dirty shouldFlush = true with budget exhausted, want false")
	}
	if !critical.shouldFlush(0, limiter) {
		t.Error("critical shouldFlush = false with budget exhausted, want true")
	}
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		Clean:    "clean",
		Dirty:    "dirty",
		Critical: "critical",
		State(9): "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
