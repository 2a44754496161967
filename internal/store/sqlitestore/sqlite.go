// Package sqlitestore provides a SQLite-backed durable store. Entities
// are stored as JSON rows keyed by (kind, key), which keeps the store
// schema-free: the entity registry, not the database, knows the shapes.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/kindling/ember"
)

// Compile-time check that Store implements ember.DurableStore.
var _ ember.DurableStore = (*Store)(nil)

// Store is a SQLite-backed ember.DurableStore.
type Store struct {
	db  *sql.DB
	reg *ember.Registry
}

const schema = `
CREATE TABLE IF NOT EXISTS entities (
	kind TEXT NOT NULL,
	key  TEXT NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (kind, key)
)`

// Open opens (or creates) the database at path. Use ":memory:" for an
// ephemeral store. Entities are decoded through reg.
func Open(path string, reg *ember.Registry) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure sqlite: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, reg: reg}, nil
}

// Load returns the stored entity, or ember.ErrNotFound.
func (s *Store) Load(ctx context.Context, kind, key string) (ember.Entity, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM entities WHERE kind = ? AND key = ?", kind, key,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ember.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s/%s: %w", kind, key, err)
	}
	return s.decode(kind, data)
}

// Save upserts the entity as a JSON row and returns its key.
func (s *Store) Save(ctx context.Context, e ember.Entity) (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encode %s/%s: %w", e.EntityKind(), e.EntityKey(), err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entities (kind, key, data) VALUES (?, ?, ?)
		ON CONFLICT (kind, key) DO UPDATE SET data = excluded.data`,
		e.EntityKind(), e.EntityKey(), data,
	)
	if err != nil {
		return "", fmt.Errorf("save %s/%s: %w", e.EntityKind(), e.EntityKey(), err)
	}
	return e.EntityKey(), nil
}

// Query returns entities of a kind matching q. Filtering and ordering
// happen in Go against the decoded entities; the predicate and order are
// arbitrary functions, not SQL.
func (s *Store) Query(ctx context.Context, kind string, q ember.Query) ([]ember.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT data FROM entities WHERE kind = ? ORDER BY key", kind)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", kind, err)
	}
	defer rows.Close()

	var out []ember.Entity
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		e, err := s.decode(kind, data)
		if err != nil {
			return nil, err
		}
		if q.Filter != nil && !q.Filter(e) {
			continue
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if q.Less != nil {
		sort.SliceStable(out, func(i, j int) bool { return q.Less(out[i], out[j]) })
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) decode(kind string, data []byte) (ember.Entity, error) {
	e, ok := s.reg.New(kind)
	if !ok {
		return nil, fmt.Errorf("decode %s: kind not registered", kind)
	}
	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return e, nil
}
