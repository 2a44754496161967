// Package lrudist provides an in-process shared-tier cache: capacity
// bounded with LRU eviction plus TTL expiry. Entities round-trip through
// JSON, so every read hands back a private copy and sessions never share
// objects. It stands in for an external distributed cache in tests and
// single-process deployments.
package lrudist

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kindling/ember"
)

// Compile-time check that Cache implements ember.DistCache.
var _ ember.DistCache = (*Cache)(nil)

// entry is the stored form: a serialized snapshot plus its per-key
// deadline. A zero deadline leaves expiry to the cache-wide TTL.
type entry struct {
	kind     string
	data     []byte
	deadline time.Time
}

// Cache is an in-process ember.DistCache.
type Cache struct {
	lru *expirable.LRU[string, entry]
	reg *ember.Registry
	ttl time.Duration
}

// New creates a cache holding at most capacity entries, each expiring
// after defaultTTL unless Set overrides it per key. Entities are decoded
// through reg.
func New(capacity int, defaultTTL time.Duration, reg *ember.Registry) *Cache {
	return &Cache{
		lru: expirable.NewLRU[string, entry](capacity, nil, defaultTTL),
		reg: reg,
		ttl: defaultTTL,
	}
}

// Get returns a fresh copy of the entity stored at key, if present and
// unexpired. An entry whose kind is unregistered or whose snapshot no
// longer parses is dropped and reads as a miss.
func (c *Cache) Get(ctx context.Context, key string) (ember.Entity, bool) {
	ent, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if !ent.deadline.IsZero() && time.Now().After(ent.deadline) {
		c.lru.Remove(key)
		return nil, false
	}

	e, ok := c.reg.New(ent.kind)
	if !ok {
		c.lru.Remove(key)
		return nil, false
	}
	if err := json.Unmarshal(ent.data, e); err != nil {
		c.lru.Remove(key)
		return nil, false
	}
	return e, true
}

// Set snapshots the entity at key. A positive ttl shorter than the cache
// default expires the entry early; otherwise the default applies.
func (c *Cache) Set(ctx context.Context, key string, e ember.Entity, ttl time.Duration) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	var deadline time.Time
	if ttl > 0 && (c.ttl <= 0 || ttl < c.ttl) {
		deadline = time.Now().Add(ttl)
	}
	c.lru.Add(key, entry{kind: e.EntityKind(), data: data, deadline: deadline})
	return nil
}

// Invalidate drops the entry at key, if any.
func (c *Cache) Invalidate(key string) {
	c.lru.Remove(key)
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}
