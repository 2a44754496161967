package ember

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kindling/ember/internal/stats"
)

// Option configures a Cache.
type Option interface {
	apply(*options)
}

// options holds the cache configuration.
type options struct {
	durable        DurableStore
	dist           DistCache
	clock          Clock
	version        string
	ttl            time.Duration
	onceTTL        time.Duration
	flushThreshold float64
	flushHalfLife  float64
	migrations     map[string]migrationPlan
	stats          stats.Collector
	logger         *zap.Logger
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		dist:    nopDist{},
		clock:   WallClock{},
		version: "1",
		ttl:     time.Hour,
		onceTTL: 24 * time.Hour,
		// Budget for roughly ten deferred flushes a minute, recovering
		// with a one-minute half-life (in hours, the clock's unit).
		flushThreshold: 10,
		flushHalfLife:  1.0 / 60,
		stats:          stats.NewNoop(),
		logger:         zap.NewNop(),
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithDurableStore sets the authoritative backing store. Required.
func WithDurableStore(s DurableStore) Option {
	return optionFunc(func(o *options) {
		o.durable = s
	})
}

// WithDistCache sets the shared distributed tier.
// If not set, the shared tier is disabled (every lookup misses it).
func WithDistCache(d DistCache) Option {
	return optionFunc(func(o *options) {
		o.dist = d
	})
}

// WithClock sets the time source.
// If not set, the system clock is used.
func WithClock(c Clock) Option {
	return optionFunc(func(o *options) {
		o.clock = c
	})
}

// WithVersion sets the deployment version tag mixed into every
// shared-tier key. Bump it on schema-affecting deploys so stale cached
// shapes are never decoded.
func WithVersion(v string) Option {
	return optionFunc(func(o *options) {
		o.version = v
	})
}

// WithSharedTTL sets the TTL for shared-tier entries. Default is one
// hour.
func WithSharedTTL(ttl time.Duration) Option {
	return optionFunc(func(o *options) {
		o.ttl = ttl
	})
}

// WithOnceTTL sets how long once-per-actor idempotency markers live in
// the shared tier. Default is 24 hours.
func WithOnceTTL(ttl time.Duration) Option {
	return optionFunc(func(o *options) {
		o.onceTTL = ttl
	})
}

// WithFlushRate tunes the deferred-flush throttle: dirty entities are
// written back only while the decayed count of recent flushes stays at or
// below threshold. halfLife is in hours. Critical entities bypass the
// throttle.
func WithFlushRate(threshold, halfLife float64) Option {
	return optionFunc(func(o *options) {
		o.flushThreshold = threshold
		o.flushHalfLife = halfLife
	})
}

// WithStats sets the stats collector.
// If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		o.stats = c
	})
}

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}

// nopDist is the disabled shared tier: every get misses, every set is
// dropped.
type nopDist struct{}

var _ DistCache = nopDist{}

func (nopDist) Get(ctx context.Context, key string) (Entity, bool) { return nil, false }

func (nopDist) Set(ctx context.Context, key string, e Entity, ttl time.Duration) error {
	return nil
}
