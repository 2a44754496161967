package ember_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/kindling/ember"
)

// fakeKV is an in-memory ByteKV. TTLs are recorded but never enforced.
type fakeKV struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newFakeKV() *fakeKV {
	return &fakeKV{
		data: make(map[string][]byte),
		ttls: make(map[string]time.Duration),
	}
}

func (f *fakeKV) Get(ctx context.Context, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.data[key]
	return b, ok
}

func (f *fakeKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func postRegistry() *ember.Registry {
	reg := ember.NewRegistry()
	reg.Register("post", func() ember.Entity { return &post{} })
	return reg
}

func TestKVDistCache_RoundTrip(t *testing.T) {
	kv := newFakeKV()
	dist := ember.NewKVDistCache(kv, postRegistry(), nil)

	in := &post{ID: "42", Title: "hello", Views: 7}
	if err := dist.Set(context.Background(), "post~42~Cache~1", in, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	out, ok := dist.Get(context.Background(), "post~42~Cache~1")
	if !ok {
		t.Fatal("Get() miss after Set")
	}
	got, ok := out.(*post)
	if !ok {
		t.Fatalf("Get() returned %T, want *post", out)
	}
	if got == in {
		t.Error("Get() returned the stored object, want a decoded copy")
	}
	if got.ID != "42" || got.Title != "hello" || got.Views != 7 {
		t.Errorf("decoded post = %+v, want original fields", got)
	}
	if got.State() != ember.Clean {
		t.Errorf("decoded state = %v, want Clean", got.State())
	}
}

func TestPlainKVDistCache_StoresReadableJSON(t *testing.T) {
	kv := newFakeKV()
	dist := ember.NewPlainKVDistCache(kv, postRegistry(), nil)

	in := &post{ID: "42", Title: "hello"}
	if err := dist.Set(context.Background(), "k", in, 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// Without compression the stored payload is the envelope itself.
	raw, ok := kv.Get(context.Background(), "k")
	if !ok {
		t.Fatal("no payload stored")
	}
	var env struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("stored payload is not plain JSON: %v", err)
	}
	if env.Kind != "post" {
		t.Errorf("envelope kind = %q, want %q", env.Kind, "post")
	}

	got, ok := dist.Get(context.Background(), "k")
	if !ok {
		t.Fatal("Get() miss after Set")
	}
	if got.(*post).Title != "hello" {
		t.Errorf("Title = %q, want %q", got.(*post).Title, "hello")
	}
}

func TestKVDistCache_Get_AbsentKey(t *testing.T) {
	dist := ember.NewKVDistCache(newFakeKV(), postRegistry(), nil)
	if _, ok := dist.Get(context.Background(), "nope"); ok {
		t.Error("Get() hit on absent key")
	}
}

func TestKVDistCache_MalformedPayloadIsMiss(t *testing.T) {
	kv := newFakeKV()
	dist := ember.NewKVDistCache(kv, postRegistry(), nil)

	kv.Set(context.Background(), "bad", []byte("definitely not zstd"), 0)
	if _, ok := dist.Get(context.Background(), "bad"); ok {
		t.Error("Get() hit on malformed payload, want miss")
	}
}

func TestKVDistCache_UnregisteredKindIsMiss(t *testing.T) {
	kv := newFakeKV()
	writer := ember.NewKVDistCache(kv, postRegistry(), nil)
	reader := ember.NewKVDistCache(kv, ember.NewRegistry(), nil)

	in := &post{ID: "42"}
	if err := writer.Set(context.Background(), "k", in, 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, ok := reader.Get(context.Background(), "k"); ok {
		t.Error("Get() hit with unregistered kind, want miss")
	}
}

func TestKVDistCache_BacksSession(t *testing.T) {
	kv := newFakeKV()
	cache, mem, _ := newTestCache(t, ember.WithDistCache(ember.NewKVDistCache(kv, postRegistry(), nil)))

	if err := cache.NewSession("alice").Put(context.Background(), &post{ID: "42", Title: "hi"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	saves := mem.Saves()

	// A second session reads the entity back through the byte tier
	// without touching the durable store.
	got, err := cache.NewSession("bob").Get(context.Background(), "post", "42")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.(*post).Title != "hi" {
		t.Errorf("Title = %q, want %q", got.(*post).Title, "hi")
	}
	if mem.Saves() != saves {
		t.Error("durable store written during shared-tier read")
	}

	// Once markers ride the same byte tier via the built-in kind.
	sess := cache.NewSession("carol")
	if !sess.Once(context.Background(), "vote", "post~42") {
		t.Error("first Once = false, want true")
	}
	if sess.Once(context.Background(), "vote", "post~42") {
		t.Error("second Once = true, want false")
	}
}
