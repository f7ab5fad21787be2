// Package kvcache provides the best-effort key-value cache used for the
// auxiliary order cache and the metadata/query cache.
//
// There is one Cache interface with three implementations: an in-memory
// tier, a Redis-persisted tier, and a Tiered composition that reads
// fast-then-slow and writes through to both. The cache is a side
// channel: it may be empty or unavailable at any time without affecting
// correctness, so persisted-tier failures are logged and absorbed rather
// than returned.
package kvcache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned by Get when the key is absent (or expired).
var ErrMiss = errors.New("cache miss")

// Cache is a best-effort string key-value store with optional TTL.
type Cache interface {
	// Get returns the value for key, or ErrMiss if absent.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// IsMiss reports whether the error is a cache miss.
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}

// Key builders.
//
// All Redis keys are namespaced so multiple linkboard deployments can
// share one Redis server.
// Pattern: linkboard:{namespace}:cache:{key}

// CacheKey returns the namespaced Redis key for a cache entry.
func CacheKey(namespace, key string) string {
	return fmt.Sprintf("linkboard:%s:cache:%s", namespace, key)
}

// OrderKey returns the cache key for a list's last-confirmed order.
func OrderKey(listID string) string {
	return fmt.Sprintf("order:%s", listID)
}

// MetadataKey returns the cache key for enrichment metadata of a URL.
func MetadataKey(url string) string {
	return fmt.Sprintf("metadata:%s", url)
}
