package ember

import "fmt"

// Versioned entities carry a persisted schema version and are upgraded
// step by step as they are loaded from the durable store.
type Versioned interface {
	Entity

	// SchemaVersion returns the entity's stored schema version.
	SchemaVersion() int

	// SetSchemaVersion records that the entity now has the given schema
	// version.
	SetSchemaVersion(v int)
}

// Migration upgrades an entity in place from one schema version to the
// next.
type Migration func(e Entity) error

// migrationPlan is the registered upgrade path for one kind.
type migrationPlan struct {
	current int
	steps   map[int]Migration
}

// WithMigrations registers the upgrade path for a kind: current is the
// schema version the code expects, and steps[v] upgrades an entity from
// version v to v+1. An entity loaded at an older version with a gap in
// the steps fails the load with ErrMissingMigration.
func WithMigrations(kind string, current int, steps map[int]Migration) Option {
	return optionFunc(func(o *options) {
		if o.migrations == nil {
			o.migrations = make(map[string]migrationPlan)
		}
		o.migrations[kind] = migrationPlan{current: current, steps: steps}
	})
}

// migrate brings a freshly loaded entity up to its kind's current schema
// version. An upgraded entity is marked Critical so the new shape is
// persisted at the next flush.
func (c *Cache) migrate(e Entity) error {
	v, ok := e.(Versioned)
	if !ok {
		return nil
	}
	plan, ok := c.migrations[e.EntityKind()]
	if !ok {
		return nil
	}

	upgraded := false
	for ver := v.SchemaVersion(); ver < plan.current; ver++ {
		step, ok := plan.steps[ver]
		if !ok {
			return fmt.Errorf("%w: %s v%d -> v%d", ErrMissingMigration, e.EntityKind(), ver, ver+1)
		}
		if err := step(e); err != nil {
			return fmt.Errorf("migrating %s v%d: %w", e.EntityKind(), ver, err)
		}
		v.SetSchemaVersion(ver + 1)
		upgraded = true
	}

	if upgraded {
		e.CacheEntry().MarkDirty(true)
	}
	return nil
}
