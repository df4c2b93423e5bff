package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of go-redis client methods used by
// RedisStore. Keeping it as an interface enables mocking in tests.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Close() error
}

// RedisStoreConfig holds connection settings for a RedisStore.
type RedisStoreConfig struct {
	Address  string
	Password string
	DB       int
	// Prefix is prepended to every key, isolating this service's
	// documents from other users of the same Redis instance.
	Prefix string
}

// RedisStore implements Store on top of a Redis instance. Documents
// are plain string values; prefix listing uses SCAN with a MATCH
// pattern.
type RedisStore struct {
	cfg    RedisStoreConfig
	client RedisClient
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, cfg RedisStoreConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Address, err)
	}
	return &RedisStore{cfg: cfg, client: client}, nil
}

// NewRedisStoreWithClient creates a RedisStore backed by a pre-built
// client. This is intended for testing.
func NewRedisStoreWithClient(cfg RedisStoreConfig, client RedisClient) *RedisStore {
	return &RedisStore{cfg: cfg, client: client}
}

// Close releases the underlying client.
func (r *RedisStore) Close() error { return r.client.Close() }

func (r *RedisStore) key(k string) string { return r.cfg.Prefix + k }

func (r *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	return val, nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	n, err := r.client.Del(ctx, r.key(key)).Result()
	if err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	if n == 0 {
		return ErrKeyNotFound
	}
	return nil
}

func (r *RedisStore) List(ctx context.Context, prefix string) ([]KV, error) {
	pattern := r.key(prefix) + "*"

	var keys []string
	var cursor uint64
	for {
		batch, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan %q: %w", pattern, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Strings(keys)

	result := make([]KV, 0, len(keys))
	for _, k := range keys {
		val, err := r.client.Get(ctx, k).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// Deleted between SCAN and GET; skip.
				continue
			}
			return nil, fmt.Errorf("redis get %q: %w", k, err)
		}
		result = append(result, KV{Key: k[len(r.cfg.Prefix):], Value: val})
	}
	return result, nil
}
