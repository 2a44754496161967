// Package memoryemberfx provides an fx module for a fully in-memory
// ember cache. Useful for testing.
package memoryemberfx

import (
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/kindling/ember"
	"github.com/kindling/ember/internal/stats"
	"github.com/kindling/ember/internal/stats/logger"
	"github.com/kindling/ember/internal/store/lrudist"
	"github.com/kindling/ember/internal/store/memstore"
)

// Module provides an in-memory ember cache for testing.
// Requires a *zap.Logger and an *ember.Registry to be provided.
var Module = fx.Module("memoryember",
	fx.Provide(
		newStatsCollector,
		newDurableStore,
		newDistCache,
		newCache,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("ember.stats"))
}

func newDurableStore() *memstore.Store {
	return memstore.New()
}

func newDistCache(reg *ember.Registry) *lrudist.Cache {
	return lrudist.New(1024, time.Hour, reg)
}

// Params holds dependencies for creating the cache.
type Params struct {
	fx.In

	Logger    *zap.Logger
	Collector stats.Collector
	Durable   *memstore.Store
	Dist      *lrudist.Cache
}

func newCache(p Params) (*ember.Cache, error) {
	return ember.New(
		ember.WithDurableStore(p.Durable),
		ember.WithDistCache(p.Dist),
		ember.WithStats(p.Collector),
		ember.WithLogger(p.Logger.Named("ember")),
	)
}
