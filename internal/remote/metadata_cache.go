package remote

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/arnobt78/linkboard/internal/kvcache"
	"github.com/arnobt78/linkboard/pkg/linklist"
)

// MetadataSource is the enrichment lookup behind the cache.
type MetadataSource interface {
	Fetch(ctx context.Context, target string) (*linklist.Metadata, error)
}

// DefaultMetadataTTL bounds how long a fetched metadata result is
// reused. Page titles change rarely; a day keeps repeat imports of the
// same URLs from hammering the enrichment service.
const DefaultMetadataTTL = 24 * time.Hour

// CachedMetadata layers a kvcache tier over a metadata source.
// Only successful lookups are cached; failures stay uncached so a
// transient outage does not poison a day of imports.
type CachedMetadata struct {
	source MetadataSource
	cache  kvcache.Cache
	ttl    time.Duration
}

// NewCachedMetadata wraps source with a cache. A non-positive ttl
// falls back to DefaultMetadataTTL.
func NewCachedMetadata(source MetadataSource, cache kvcache.Cache, ttl time.Duration) *CachedMetadata {
	if ttl <= 0 {
		ttl = DefaultMetadataTTL
	}
	return &CachedMetadata{source: source, cache: cache, ttl: ttl}
}

// Fetch implements MetadataSource.
func (c *CachedMetadata) Fetch(ctx context.Context, target string) (*linklist.Metadata, error) {
	key := kvcache.MetadataKey(target)
	if raw, err := c.cache.Get(ctx, key); err == nil {
		var meta linklist.Metadata
		if err := json.Unmarshal([]byte(raw), &meta); err == nil {
			return &meta, nil
		}
		// Corrupt entry; drop it and refetch.
		_ = c.cache.Remove(ctx, key)
	}

	meta, err := c.source.Fetch(ctx, target)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(meta); err == nil {
		if err := c.cache.Set(ctx, key, string(raw), c.ttl); err != nil {
			log.Printf("[Metadata] Failed to cache metadata for %s: %v", target, err)
		}
	}
	return meta, nil
}
