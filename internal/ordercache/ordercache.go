// Package ordercache persists the last confirmed item order per list so
// an order survives a reload or interruption racing a reorder commit.
//
// The cache is a side channel, never authoritative: an entry is only
// honoured while its item-id set matches the current snapshot's id set
// exactly. Anything else (items added, removed, or the entry simply
// gone) means the entry is discarded.
package ordercache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arnobt78/linkboard/internal/kvcache"
	"github.com/arnobt78/linkboard/pkg/linklist"
)

// DefaultTTL bounds how long a confirmed order can outlive the commit
// that produced it.
const DefaultTTL = 10 * time.Minute

// Entry is one persisted order snapshot.
type Entry struct {
	ListID    string                  `json:"list_id"`
	Snapshot  []linklist.ItemPosition `json:"snapshot"`
	WrittenAt time.Time               `json:"written_at"`
}

// IDs returns the entry's item ids in snapshot order.
func (e *Entry) IDs() []string {
	ids := make([]string, len(e.Snapshot))
	for i, ip := range e.Snapshot {
		ids[i] = ip.ID
	}
	return ids
}

// OrderCache stores last-confirmed orders in a kvcache tier.
type OrderCache struct {
	cache kvcache.Cache
	ttl   time.Duration
}

// New creates an order cache over the given cache tier.
// A non-positive ttl falls back to DefaultTTL.
func New(cache kvcache.Cache, ttl time.Duration) *OrderCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &OrderCache{cache: cache, ttl: ttl}
}

// Save records the items' current order for the list. Failures are
// returned but callers treat them as best-effort.
func (c *OrderCache) Save(ctx context.Context, listID string, items []linklist.Item) error {
	entry := Entry{
		ListID:    listID,
		Snapshot:  make([]linklist.ItemPosition, len(items)),
		WrittenAt: time.Now().UTC(),
	}
	for i := range items {
		entry.Snapshot[i] = linklist.ItemPosition{ID: items[i].ID, Position: items[i].Position}
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to serialize order entry: %w", err)
	}
	if err := c.cache.Set(ctx, kvcache.OrderKey(listID), string(raw), c.ttl); err != nil {
		return fmt.Errorf("failed to persist order entry: %w", err)
	}
	return nil
}

// SaveIDs is Save for a bare id sequence; positions are the slice indexes.
func (c *OrderCache) SaveIDs(ctx context.Context, listID string, ids []string) error {
	items := make([]linklist.Item, len(ids))
	for i, id := range ids {
		items[i] = linklist.Item{ID: id, Position: i}
	}
	return c.Save(ctx, listID, items)
}

// Load returns the cached entry for the list if one exists and its id
// set matches currentIDs exactly. A stale entry (id-set mismatch) is
// removed and reported as absent.
func (c *OrderCache) Load(ctx context.Context, listID string, currentIDs []string) (*Entry, bool) {
	raw, err := c.cache.Get(ctx, kvcache.OrderKey(listID))
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		// Corrupt entry; drop it.
		_ = c.cache.Remove(ctx, kvcache.OrderKey(listID))
		return nil, false
	}

	if !linklist.SameIDSet(entry.IDs(), currentIDs) {
		_ = c.cache.Remove(ctx, kvcache.OrderKey(listID))
		return nil, false
	}
	return &entry, true
}

// Clear removes the list's cached order, if any.
func (c *OrderCache) Clear(ctx context.Context, listID string) error {
	return c.cache.Remove(ctx, kvcache.OrderKey(listID))
}
