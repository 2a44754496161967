package score

import "sort"

// Set is a ready-made Scorable implementation for embedding in entity
// structs:
//
//	type Post struct {
//	    ember.EntryState
//	    score.Set
//	    Title string `json:"title"`
//	}
//
// The register map serializes with the entity; the configured half-lives
// do not (they are type configuration, not state). A Set decoded from
// storage recovers its half-lives from the register keys, or falls back
// to the defaults when it has never been scored.
type Set struct {
	Registers map[string]Register `json:"scores,omitempty"`

	halves []float64
}

// NewSet returns a Set scoring the given half-lives, or the defaults when
// none are given.
func NewSet(halfLives ...float64) Set {
	if len(halfLives) == 0 {
		halfLives = DefaultHalfLives()
	}
	halves := make([]float64, len(halfLives))
	copy(halves, halfLives)
	sort.Float64s(halves)
	return Set{halves: halves}
}

// HalfLives returns the configured half-lives in ascending order.
func (s *Set) HalfLives() []float64 {
	if len(s.halves) > 0 {
		return s.halves
	}
	if len(s.Registers) > 0 {
		halves := make([]float64, 0, len(s.Registers))
		for name := range s.Registers {
			if h, ok := ParseHalfLife(name); ok {
				halves = append(halves, h)
			}
		}
		sort.Float64s(halves)
		s.halves = halves
		return halves
	}
	return DefaultHalfLives()
}

// Register returns the stored register for halfLife, zero if the
// half-life has never been scored.
func (s *Set) Register(halfLife float64) Register {
	return s.Registers[Name(halfLife)]
}

// SetRegister replaces the stored register for halfLife.
func (s *Set) SetRegister(halfLife float64, r Register) {
	if s.Registers == nil {
		s.Registers = make(map[string]Register, len(s.HalfLives()))
	}
	s.Registers[Name(halfLife)] = r
}
