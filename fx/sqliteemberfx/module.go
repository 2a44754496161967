// Package sqliteemberfx provides an fx module for an ember cache backed
// by a SQLite durable store.
package sqliteemberfx

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/kindling/ember"
	"github.com/kindling/ember/internal/stats"
	"github.com/kindling/ember/internal/stats/logger"
	"github.com/kindling/ember/internal/store/lrudist"
	"github.com/kindling/ember/internal/store/sqlitestore"
)

// Config holds configuration for the SQLite-backed cache.
type Config struct {
	// Path is the database file, or ":memory:".
	Path string

	// Registry decodes stored entities. Required.
	Registry *ember.Registry

	// Version is the deployment version tag for shared-tier keys.
	Version string

	// SharedCapacity is the entry capacity of the in-process shared
	// tier. Default is 1024.
	SharedCapacity int
}

// Module provides a SQLite-backed ember cache.
// Requires a *zap.Logger and a Config to be provided.
var Module = fx.Module("sqliteember",
	fx.Provide(
		newStatsCollector,
		newCache,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("ember.stats"))
}

// Params holds dependencies for creating the cache.
type Params struct {
	fx.In

	Config    Config
	Logger    *zap.Logger
	Collector stats.Collector
	Lifecycle fx.Lifecycle
}

func newCache(p Params) (*ember.Cache, error) {
	capacity := p.Config.SharedCapacity
	if capacity <= 0 {
		capacity = 1024
	}

	durable, err := sqlitestore.Open(p.Config.Path, p.Config.Registry)
	if err != nil {
		return nil, err
	}

	opts := []ember.Option{
		ember.WithDurableStore(durable),
		ember.WithDistCache(lrudist.New(capacity, time.Hour, p.Config.Registry)),
		ember.WithStats(p.Collector),
		ember.WithLogger(p.Logger.Named("ember")),
	}
	if p.Config.Version != "" {
		opts = append(opts, ember.WithVersion(p.Config.Version))
	}

	cache, err := ember.New(opts...)
	if err != nil {
		durable.Close()
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return durable.Close()
		},
	})

	return cache, nil
}
