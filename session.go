package ember

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kindling/ember/internal/stats"
)

// Session is the request-scoped cache tier. It holds entities exclusively
// for the lifetime of one request: repeated gets for the same key return
// the identical object, so mutations made anywhere in the request are
// visible everywhere in it.
//
// A Session is confined to the request that created it and is not safe
// for concurrent use. Call Flush when the request ends; it is the sole
// point where batched, throttled write-back happens.
type Session struct {
	cache *Cache
	actor string
	local map[string]Entity
}

// NewSession creates a session for one request. actor identifies the
// requesting user and scopes once-per-actor idempotency checks.
func (c *Cache) NewSession(actor string) *Session {
	return &Session{
		cache: c,
		actor: actor,
		local: make(map[string]Entity),
	}
}

// Actor returns the session's actor identifier.
func (s *Session) Actor() string { return s.actor }

// Len returns the number of entities held in the session tier.
func (s *Session) Len() int { return len(s.local) }

// Get returns the entity with the given kind and key, consulting the
// session tier, then the shared tier, then the durable store. Returns
// ErrNotFound if no tier has it.
//
// A copy found in the shared tier is installed Clean: a value freshly
// read from a shared tier is never assumed dirty.
func (s *Session) Get(ctx context.Context, kind, key string) (Entity, error) {
	ck := s.cache.Key(kind, key)

	if e, ok := s.local[ck]; ok {
		s.cache.stats.IncCounter(stats.MetricLocalHits, 1)
		return e, nil
	}

	if e, ok := s.cache.dist.Get(ctx, ck); ok && e != nil {
		s.cache.stats.IncCounter(stats.MetricSharedHits, 1)
		st := e.CacheEntry()
		st.reset()
		st.shared = true
		s.local[ck] = e
		return e, nil
	}

	s.cache.stats.IncCounter(stats.MetricLoads, 1)
	e, err := s.cache.durable.Load(ctx, kind, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.cache.stats.IncCounter(stats.MetricMisses, 1)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading %s/%s: %w", kind, key, err)
	}

	if err := s.cache.migrate(e); err != nil {
		return nil, err
	}
	if err := s.EnsureCached(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// GetOrCreate is Get, except a total miss constructs the entity via
// create, persists it immediately to the durable store, and caches it.
func (s *Session) GetOrCreate(ctx context.Context, kind, key string, create func() Entity) (Entity, error) {
	e, err := s.Get(ctx, kind, key)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	e = create()
	if _, err := s.cache.durable.Save(ctx, e); err != nil {
		return nil, fmt.Errorf("creating %s/%s: %w", kind, key, err)
	}
	e.CacheEntry().setClean(s.cache.clock.Now())
	if err := s.EnsureCached(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Put writes the entity through to the durable store synchronously,
// marks it Clean, and installs it in both cache tiers.
func (s *Session) Put(ctx context.Context, e Entity) error {
	if _, err := s.cache.durable.Save(ctx, e); err != nil {
		return fmt.Errorf("saving %s/%s: %w", e.EntityKind(), e.EntityKey(), err)
	}
	s.cache.stats.IncCounter(stats.MetricFlushes, 1)
	e.CacheEntry().setClean(s.cache.clock.Now())
	return s.EnsureCached(ctx, e)
}

// EnsureCached installs the entity in the session and shared tiers.
//
// If the session already holds a different object for the same key and
// that object is not Clean, EnsureCached fails with ErrCacheConflict:
// replacing it would silently discard uncommitted modifications. This is
// a programmer error at the call site, not a race to be resolved here.
//
// Shared-tier write failures are logged, not returned; the shared tier
// is best effort.
func (s *Session) EnsureCached(ctx context.Context, e Entity) error {
	ck := s.cache.Key(e.EntityKind(), e.EntityKey())

	if held, ok := s.local[ck]; ok && held != e && held.CacheEntry().State() != Clean {
		s.cache.stats.IncCounter(stats.MetricConflicts, 1)
		return fmt.Errorf("%w: %s already holds a %s object", ErrCacheConflict, ck, held.CacheEntry().State())
	}

	s.local[ck] = e
	if err := s.cache.dist.Set(ctx, ck, e, s.cache.ttl); err != nil {
		s.cache.logger.Warn("shared tier write failed",
			zap.String("key", ck),
			zap.Error(err),
		)
		return nil
	}
	e.CacheEntry().shared = true
	return nil
}

// DeferredFlush writes the entity back to the durable store if its state
// calls for it: Critical flushes unconditionally, Dirty flushes while the
// write throttle admits it, Clean is a no-op.
//
// A durable-store failure leaves the entity dirty for retry on the next
// flush cycle and is logged, not returned: the in-memory state is still
// correct, so the caller's work should not abort.
func (s *Session) DeferredFlush(ctx context.Context, e Entity) error {
	st := e.CacheEntry()
	if st.State() == Clean {
		return nil
	}

	if err := s.EnsureCached(ctx, e); err != nil {
		return err
	}

	now := s.cache.clock.Now()
	if !st.shouldFlush(now, s.cache.limiter) {
		s.cache.stats.IncCounter(stats.MetricFlushThrottled, 1)
		s.cache.logger.Debug("flush throttled",
			zap.String("kind", e.EntityKind()),
			zap.String("key", e.EntityKey()),
		)
		return nil
	}

	if _, err := s.cache.durable.Save(ctx, e); err != nil {
		s.cache.stats.IncCounter(stats.MetricFlushFailures, 1)
		s.cache.logger.Error("flush failed, entity stays dirty",
			zap.String("kind", e.EntityKind()),
			zap.String("key", e.EntityKey()),
			zap.String("state", st.State().String()),
			zap.Error(err),
		)
		return nil
	}

	s.cache.stats.IncCounter(stats.MetricFlushes, 1)
	st.setClean(now)
	return nil
}

// Flush runs DeferredFlush over every entity held in the session tier.
// Call it when the request ends.
func (s *Session) Flush(ctx context.Context) error {
	s.cache.stats.SetGauge(stats.MetricSessionEntities, int64(len(s.local)))
	for _, e := range s.local {
		if err := s.DeferredFlush(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Once reports whether this is the first time the session's actor
// performed the named action on subject, recording the attempt in the
// shared tier. Use it for report/vote-once style idempotency. Best
// effort: it inherits the shared tier's TTL eviction and races.
func (s *Session) Once(ctx context.Context, action, subject string) bool {
	key := "once~" + s.actor + "~" + action + "~" + subject
	if _, ok := s.cache.dist.Get(ctx, key); ok {
		return false
	}

	m := &onceMarker{Actor: s.actor, Action: action, Subject: subject}
	if err := s.cache.dist.Set(ctx, key, m, s.cache.onceTTL); err != nil {
		s.cache.logger.Warn("once marker write failed",
			zap.String("key", key),
			zap.Error(err),
		)
	}
	return true
}

// onceKind is the reserved entity kind for idempotency markers.
const onceKind = "__once"

// Compile-time check that embedding EntryState satisfies Entity.
var _ Entity = (*onceMarker)(nil)

// onceMarker records that an actor performed an action on a subject.
type onceMarker struct {
	EntryState
	Actor   string `json:"actor"`
	Action  string `json:"action"`
	Subject string `json:"subject"`
}

func (m *onceMarker) EntityKind() string { return onceKind }

func (m *onceMarker) EntityKey() string {
	return m.Actor + "~" + m.Action + "~" + m.Subject
}
