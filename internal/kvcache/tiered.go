package kvcache

import (
	"context"
	"log"
	"time"
)

// Tiered composes a fast in-memory tier over a slower persisted tier.
// Reads go fast-then-slow, promoting slow-tier hits into the fast tier;
// writes go through to both. The slow tier is best-effort: its failures
// are logged and absorbed so an unavailable Redis never breaks callers.
type Tiered struct {
	fast Cache
	slow Cache
}

// NewTiered builds a tiered cache. slow may be nil, in which case the
// cache degrades to the fast tier alone.
func NewTiered(fast, slow Cache) *Tiered {
	return &Tiered{fast: fast, slow: slow}
}

// Get implements Cache.
func (t *Tiered) Get(ctx context.Context, key string) (string, error) {
	val, err := t.fast.Get(ctx, key)
	if err == nil {
		return val, nil
	}
	if !IsMiss(err) {
		return "", err
	}
	if t.slow == nil {
		return "", ErrMiss
	}

	val, err = t.slow.Get(ctx, key)
	if err != nil {
		if !IsMiss(err) {
			log.Printf("[Cache] persisted tier read failed for %q: %v", key, err)
		}
		return "", ErrMiss
	}

	// Promote so subsequent reads hit the fast tier. TTL is unknown at
	// this point; the slow tier remains the expiry authority.
	if perr := t.fast.Set(ctx, key, val, 0); perr != nil {
		log.Printf("[Cache] promotion failed for %q: %v", key, perr)
	}
	return val, nil
}

// Set implements Cache. Write-through: the fast tier is authoritative
// for the caller's success; slow-tier failures are logged only.
func (t *Tiered) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := t.fast.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	if t.slow != nil {
		if err := t.slow.Set(ctx, key, value, ttl); err != nil {
			log.Printf("[Cache] persisted tier write failed for %q: %v", key, err)
		}
	}
	return nil
}

// Remove implements Cache.
func (t *Tiered) Remove(ctx context.Context, key string) error {
	if err := t.fast.Remove(ctx, key); err != nil {
		return err
	}
	if t.slow != nil {
		if err := t.slow.Remove(ctx, key); err != nil {
			log.Printf("[Cache] persisted tier remove failed for %q: %v", key, err)
		}
	}
	return nil
}
