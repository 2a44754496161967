package ember

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/kindling/ember/internal/codec"
	"github.com/kindling/ember/internal/codec/noopcodec"
	"github.com/kindling/ember/internal/codec/zstdcodec"
)

// ByteKV is a byte-level get/set service with per-key TTL, the shape of a
// memcached- or redis-style client. The service owns its own timeout and
// retry policy.
type ByteKV interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// KVDistCache adapts a ByteKV into a DistCache. Entities travel as
// zstd-compressed JSON envelopes tagged with their kind; the registry
// reconstructs concrete types on the way back.
//
// Any payload that fails to decompress, parse, or match a registered
// kind reads as a miss. The durable store is authoritative, so a corrupt
// or stale shared-tier entry is never worth failing a request over.
type KVDistCache struct {
	kv     ByteKV
	reg    *Registry
	codec  codec.Codec
	logger *zap.Logger
}

// Compile-time check that KVDistCache implements DistCache.
var _ DistCache = (*KVDistCache)(nil)

// NewKVDistCache returns a DistCache backed by kv, decoding entities via
// reg. Payloads are zstd-compressed. If logger is nil, a no-op logger is
// used.
func NewKVDistCache(kv ByteKV, reg *Registry, logger *zap.Logger) *KVDistCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KVDistCache{
		kv:     kv,
		reg:    reg,
		codec:  zstdcodec.New(),
		logger: logger,
	}
}

// NewPlainKVDistCache is NewKVDistCache with compression disabled, for
// KV services that compress at the storage layer or hold payloads small
// enough that zstd framing costs more than it saves.
func NewPlainKVDistCache(kv ByteKV, reg *Registry, logger *zap.Logger) *KVDistCache {
	d := NewKVDistCache(kv, reg, logger)
	d.codec = noopcodec.New()
	return d
}

// envelope is the wire form of a shared-tier entry.
type envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Get reads and decodes the entity stored at key. Malformed entries are
// misses.
func (d *KVDistCache) Get(ctx context.Context, key string) (Entity, bool) {
	raw, ok := d.kv.Get(ctx, key)
	if !ok {
		return nil, false
	}

	plain, err := codec.Decode(d.codec, raw)
	if err != nil {
		d.miss(key, "decompress", err)
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(plain, &env); err != nil {
		d.miss(key, "envelope", err)
		return nil, false
	}

	e, ok := d.reg.New(env.Kind)
	if !ok {
		d.miss(key, "unregistered kind "+env.Kind, nil)
		return nil, false
	}
	if err := json.Unmarshal(env.Data, e); err != nil {
		d.miss(key, "entity", err)
		return nil, false
	}
	return e, true
}

// Set encodes and stores the entity at key with the given TTL.
func (d *KVDistCache) Set(ctx context.Context, key string, e Entity, ttl time.Duration) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	plain, err := json.Marshal(envelope{Kind: e.EntityKind(), Data: data})
	if err != nil {
		return err
	}
	raw, err := codec.Encode(d.codec, plain)
	if err != nil {
		return err
	}
	return d.kv.Set(ctx, key, raw, ttl)
}

func (d *KVDistCache) miss(key, stage string, err error) {
	d.logger.Debug("shared tier entry unreadable, treating as miss",
		zap.String("key", key),
		zap.String("stage", stage),
		zap.String("codec", d.codec.Name()),
		zap.Error(err),
	)
}
