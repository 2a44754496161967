// Package ember provides a multi-tier entity cache with throttled
// write-back flushing. Entities live in three tiers: a request-scoped
// session tier, a shared distributed tier, and an authoritative durable
// store. Mutations mark entities dirty and are written back at end of
// session, rate-limited by a decaying write budget, so hot entities can
// absorb high event volume without a durable write per event.
//
// Example usage:
//
//	cache, err := ember.New(
//	    ember.WithDurableStore(store),
//	    ember.WithVersion("v12"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sess := cache.NewSession("user-81")
//	defer sess.Flush(ctx)
//
//	ent, err := sess.Get(ctx, "post", "42")
//	...
//	ent.CacheEntry().MarkDirty(false)
//
// The companion score package records time-decayed activity scores on
// cached entities and marks them dirty through the same entry state.
package ember

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kindling/ember/internal/decay"
	"github.com/kindling/ember/internal/stats"
	"github.com/kindling/ember/score"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrNotFound indicates the entity exists in no tier.
	ErrNotFound = errors.New("ember: entity not found")

	// ErrCacheConflict indicates an attempt to install an entity over a
	// different, modified object already held for the same key. Surfaced
	// rather than resolved: proceeding would silently discard uncommitted
	// local modifications.
	ErrCacheConflict = errors.New("ember: cache conflict")

	// ErrMissingMigration indicates a stored entity requires a schema
	// step that has no registered implementation.
	ErrMissingMigration = errors.New("ember: missing migration")

	// ErrNoStore indicates no durable store was provided.
	ErrNoStore = errors.New("ember: no durable store provided")
)

// Entity is anything the cache can hold. Identity is the (kind, key)
// pair; both must be non-empty strings, there is no support for
// store-generated numeric identities. Embedding EntryState satisfies the
// CacheEntry accessor.
type Entity interface {
	// EntityKind names the entity type, e.g. "post".
	EntityKind() string

	// EntityKey is the instance key, unique within the kind.
	EntityKey() string

	// CacheEntry exposes the entity's cache entry state.
	CacheEntry() *EntryState
}

// Query shapes a DurableStore.Query call. A nil Filter matches all
// entities of the kind; a nil Less leaves store order; Limit <= 0 means
// no limit.
type Query struct {
	Filter func(Entity) bool
	Less   func(a, b Entity) bool
	Limit  int
}

// DurableStore is the authoritative backing store. Implementations own
// their timeout and retry policy; calls are treated as synchronous and
// atomic at the single-entity level.
type DurableStore interface {
	// Load returns the stored entity, or ErrNotFound.
	Load(ctx context.Context, kind, key string) (Entity, error)

	// Save writes the entity and returns its instance key.
	Save(ctx context.Context, e Entity) (string, error)

	// Query returns entities of a kind matching q.
	Query(ctx context.Context, kind string, q Query) ([]Entity, error)
}

// DistCache is the shared tier: a get/set-by-key service with per-key
// TTL, shared across sessions and processes. Writes are last-writer-wins
// at the key level; a miss, an expired entry, and a malformed entry are
// indistinguishable to callers.
type DistCache interface {
	Get(ctx context.Context, key string) (Entity, bool)
	Set(ctx context.Context, key string, e Entity, ttl time.Duration) error
}

// Clock supplies the current time in abstract hours since the score
// epoch (2000-01-01 UTC). Supplied by the request lifecycle so that one
// request observes one consistent time.
type Clock interface {
	Now() float64
}

// WallClock is a Clock backed by the system clock.
type WallClock struct{}

// Compile-time check that WallClock implements Clock.
var _ Clock = WallClock{}

// Now returns the current time in hours since the score epoch.
func (WallClock) Now() float64 { return score.Hours(time.Now()) }

// Cache is the long-lived half of the cache layer: configuration, the
// shared tiers, and the write throttle. Sessions created from it carry
// the request-scoped tier. A Cache is safe for concurrent use; Sessions
// are not.
type Cache struct {
	durable    DurableStore
	dist       DistCache
	limiter    *decay.Limiter
	clock      Clock
	version    string
	ttl        time.Duration
	onceTTL    time.Duration
	migrations map[string]migrationPlan
	stats      stats.Collector
	logger     *zap.Logger
}

// New creates a Cache with the given options. A durable store is
// required; everything else has defaults (disabled shared tier, wall
// clock, no-op stats, no-op logging).
func New(opts ...Option) (*Cache, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	if cfg.durable == nil {
		return nil, ErrNoStore
	}

	c := &Cache{
		durable:    cfg.durable,
		dist:       cfg.dist,
		limiter:    decay.NewLimiter(cfg.flushThreshold, cfg.flushHalfLife),
		clock:      cfg.clock,
		version:    cfg.version,
		ttl:        cfg.ttl,
		onceTTL:    cfg.onceTTL,
		migrations: cfg.migrations,
		stats:      cfg.stats,
		logger:     cfg.logger,
	}

	c.logger.Debug("cache initialized",
		zap.String("version", c.version),
		zap.Duration("sharedTTL", c.ttl),
		zap.Float64("flushThreshold", cfg.flushThreshold),
	)

	return c, nil
}

// Key returns the shared-tier key for an entity identity. The deployment
// version component keeps cached shapes from a previous deployment from
// being served after a rolling upgrade.
func (c *Cache) Key(kind, key string) string {
	return kind + "~" + key + "~Cache~" + c.version
}

// Durable returns the durable store backing this cache.
func (c *Cache) Durable() DurableStore { return c.durable }

// Dist returns the shared-tier cache backing this cache.
func (c *Cache) Dist() DistCache { return c.dist }
