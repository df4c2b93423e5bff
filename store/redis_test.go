package store

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// newTestRedisStore creates a RedisStore backed by a miniredis server.
func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStoreWithClient(RedisStoreConfig{
		Address: mr.Addr(),
		Prefix:  "versiond:",
	}, client)
}

func TestRedisStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisStore(t)

	if err := s.Put(ctx, "version:1.0.0", []byte(`{"status":"stable"}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "version:1.0.0")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"status":"stable"}` {
		t.Errorf("Get = %s", got)
	}

	if err := s.Delete(ctx, "version:1.0.0"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "version:1.0.0"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get after delete: %v, want ErrKeyNotFound", err)
	}
	if err := s.Delete(ctx, "version:1.0.0"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Delete missing: %v, want ErrKeyNotFound", err)
	}
}

func TestRedisStoreListByPrefix(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisStore(t)

	for _, k := range []string{"migration:c", "migration:a", "migration:b", "version:1.0.0"} {
		if err := s.Put(ctx, k, []byte(k)); err != nil {
			t.Fatalf("Put %s: %v", k, err)
		}
	}

	kvs, err := s.List(ctx, "migration:")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(kvs) != 3 {
		t.Fatalf("List returned %d entries, want 3", len(kvs))
	}
	want := []string{"migration:a", "migration:b", "migration:c"}
	for i, kv := range kvs {
		if kv.Key != want[i] {
			t.Errorf("List[%d].Key = %s, want %s", i, kv.Key, want[i])
		}
		if string(kv.Value) != want[i] {
			t.Errorf("List[%d].Value = %s, want %s", i, kv.Value, want[i])
		}
	}
}

func TestRedisStorePrefixIsolation(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s := NewRedisStoreWithClient(RedisStoreConfig{Prefix: "a:"}, client)

	if err := s.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// The raw Redis key carries the configured prefix.
	if !mr.Exists("a:k") {
		t.Error("expected raw key a:k in redis")
	}
	// Listing strips the prefix again.
	kvs, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(kvs) != 1 || kvs[0].Key != "k" {
		t.Errorf("List = %+v, want single key %q", kvs, "k")
	}
}
