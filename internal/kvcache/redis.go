package kvcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the persisted cache tier. All keys are namespaced with the
// deployment namespace so multiple linkboard instances can coexist on
// one Redis server.
type Redis struct {
	rdb       *redis.Client
	namespace string
}

// NewRedis creates a Redis-backed cache tier.
// Returns an error if namespace is empty.
func NewRedis(opts *redis.Options, namespace string) (*Redis, error) {
	if namespace == "" {
		return nil, fmt.Errorf("cache namespace cannot be empty")
	}
	return &Redis{rdb: redis.NewClient(opts), namespace: namespace}, nil
}

// NewRedisFromClient wraps an existing client, sharing its connection
// pool with other Redis consumers (the push channel adapter).
func NewRedisFromClient(rdb *redis.Client, namespace string) (*Redis, error) {
	if namespace == "" {
		return nil, fmt.Errorf("cache namespace cannot be empty")
	}
	return &Redis{rdb: rdb, namespace: namespace}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := r.rdb.Get(ctx, CacheKey(r.namespace, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", fmt.Errorf("failed to read cache entry from Redis: %w", err)
	}
	return val, nil
}

// Set implements Cache.
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.rdb.Set(ctx, CacheKey(r.namespace, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache entry to Redis: %w", err)
	}
	return nil
}

// Remove implements Cache.
func (r *Redis) Remove(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, CacheKey(r.namespace, key)).Err(); err != nil {
		return fmt.Errorf("failed to remove cache entry from Redis: %w", err)
	}
	return nil
}
