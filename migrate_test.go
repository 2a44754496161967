package ember_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kindling/ember"
	"github.com/kindling/ember/internal/store/lrudist"
	"github.com/kindling/ember/internal/store/memstore"
)

// doc is a versioned test entity.
type doc struct {
	ember.EntryState
	ID   string `json:"id"`
	Ver  int    `json:"ver"`
	Body string `json:"body"`
}

func (d *doc) EntityKind() string     { return "doc" }
func (d *doc) EntityKey() string      { return d.ID }
func (d *doc) SchemaVersion() int     { return d.Ver }
func (d *doc) SetSchemaVersion(v int) { d.Ver = v }

// Compile-time check that doc implements Versioned via embedding.
var _ ember.Versioned = (*doc)(nil)

func docRegistry() *ember.Registry {
	reg := ember.NewRegistry()
	reg.Register("doc", func() ember.Entity { return &doc{} })
	return reg
}

func TestSession_Get_MigratesOldVersions(t *testing.T) {
	mem := memstore.New()
	mem.Save(context.Background(), &doc{ID: "a", Ver: 0, Body: "x"})

	cache, err := ember.New(
		ember.WithDurableStore(mem),
		ember.WithDistCache(lrudist.New(8, time.Hour, docRegistry())),
		ember.WithMigrations("doc", 2, map[int]ember.Migration{
			0: func(e ember.Entity) error {
				e.(*doc).Body += "+v1"
				return nil
			},
			1: func(e ember.Entity) error {
				e.(*doc).Body += "+v2"
				return nil
			},
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got, err := cache.NewSession("alice").Get(context.Background(), "doc", "a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	d := got.(*doc)
	if d.Ver != 2 {
		t.Errorf("Ver = %d after load, want 2", d.Ver)
	}
	if d.Body != "x+v1+v2" {
		t.Errorf("Body = %q, want steps applied in order", d.Body)
	}
	// The upgraded shape must reach the durable store even under a
	// saturated flush throttle.
	if d.State() != ember.Critical {
		t.Errorf("state = %v after migration, want Critical", d.State())
	}
}

func TestSession_Get_MissingMigrationStep(t *testing.T) {
	mem := memstore.New()
	mem.Save(context.Background(), &doc{ID: "a", Ver: 0})

	cache, err := ember.New(
		ember.WithDurableStore(mem),
		ember.WithMigrations("doc", 2, map[int]ember.Migration{
			1: func(e ember.Entity) error { return nil },
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = cache.NewSession("alice").Get(context.Background(), "doc", "a")
	if !errors.Is(err, ember.ErrMissingMigration) {
		t.Errorf("Get() error = %v, want ErrMissingMigration", err)
	}
}

func TestSession_Get_CurrentVersionUntouched(t *testing.T) {
	mem := memstore.New()
	mem.Save(context.Background(), &doc{ID: "a", Ver: 2, Body: "x"})

	cache, err := ember.New(
		ember.WithDurableStore(mem),
		ember.WithMigrations("doc", 2, map[int]ember.Migration{}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got, err := cache.NewSession("alice").Get(context.Background(), "doc", "a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.(*doc).Body != "x" {
		t.Errorf("Body = %q, want untouched", got.(*doc).Body)
	}
	if got.CacheEntry().State() != ember.Clean {
		t.Errorf("state = %v for current version, want Clean", got.CacheEntry().State())
	}
}
