// Package memstore provides an in-memory durable store for testing.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/kindling/ember"
)

// Compile-time check that Store implements ember.DurableStore.
var _ ember.DurableStore = (*Store)(nil)

// Store is an in-memory durable store. It keeps the entity objects it is
// given rather than copies, which suits tests that want to observe what
// was saved.
type Store struct {
	mu       sync.RWMutex
	entities map[string]ember.Entity
	saves    int
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		entities: make(map[string]ember.Entity),
	}
}

// Load returns the stored entity, or ember.ErrNotFound.
func (s *Store) Load(ctx context.Context, kind, key string) (ember.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[kind+"/"+key]
	if !ok {
		return nil, ember.ErrNotFound
	}
	return e, nil
}

// Save stores the entity and returns its key.
func (s *Store) Save(ctx context.Context, e ember.Entity) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entities[e.EntityKind()+"/"+e.EntityKey()] = e
	s.saves++
	return e.EntityKey(), nil
}

// Query returns entities of a kind matching q.
func (s *Store) Query(ctx context.Context, kind string, q ember.Query) ([]ember.Entity, error) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.entities))
	for k := range s.entities {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []ember.Entity
	for _, k := range keys {
		e := s.entities[k]
		if e.EntityKind() != kind {
			continue
		}
		if q.Filter != nil && !q.Filter(e) {
			continue
		}
		out = append(out, e)
	}
	s.mu.RUnlock()

	if q.Less != nil {
		sort.SliceStable(out, func(i, j int) bool { return q.Less(out[i], out[j]) })
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Saves returns how many Save calls the store has served (for test
// assertions on write-back throttling).
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
