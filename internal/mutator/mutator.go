// Package mutator implements the optimistic write path: every local
// edit is applied to the shared snapshot synchronously, committed to the
// remote store, and reconciled against the response. A failed commit
// reverts through a canonical refetch.
package mutator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/arnobt78/linkboard/internal/lease"
	"github.com/arnobt78/linkboard/internal/ordercache"
	"github.com/arnobt78/linkboard/internal/remote"
	"github.com/arnobt78/linkboard/internal/store"
	"github.com/arnobt78/linkboard/pkg/linklist"
)

// DefaultLeaseTTL bounds how long a single write suppresses
// remote-driven refreshes. The lease auto-expires; a mutator that dies
// mid-write cannot wedge the coordinator.
const DefaultLeaseTTL = 1500 * time.Millisecond

// RefetchFunc pulls canonical state from the server and replaces the
// snapshot. Injected by the engine so every component reverts the same
// way.
type RefetchFunc func(ctx context.Context) error

// Mutator applies local writes optimistically and reconciles them.
type Mutator struct {
	store    *store.Store
	remote   remote.Store
	gate     *lease.Gate
	orders   *ordercache.OrderCache
	refetch  RefetchFunc
	userID   string
	leaseTTL time.Duration
}

// New creates a mutator. orders may be nil (no order mirroring);
// leaseTTL <= 0 falls back to DefaultLeaseTTL.
func New(st *store.Store, rs remote.Store, gate *lease.Gate, orders *ordercache.OrderCache, refetch RefetchFunc, userID string, leaseTTL time.Duration) *Mutator {
	if leaseTTL <= 0 {
		leaseTTL = DefaultLeaseTTL
	}
	return &Mutator{
		store:    st,
		remote:   rs,
		gate:     gate,
		orders:   orders,
		refetch:  refetch,
		userID:   userID,
		leaseTTL: leaseTTL,
	}
}

// Gate exposes the write gate for the invalidation coordinator.
func (m *Mutator) Gate() *lease.Gate {
	return m.gate
}

// Add optimistically appends a new item and commits it.
// The item id is generated client-side so the item is visible
// immediately; if the server assigns a different id, the reconcile step
// rewrites it in place. Returns the item's final id.
func (m *Mutator) Add(ctx context.Context, record linklist.ImportRecord) (string, error) {
	snap, err := m.editableSnapshot("commit_add")
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	item := linklist.Item{
		ID:          linklist.NewItemID(),
		URL:         record.URL,
		Title:       record.Title,
		Description: record.Description,
		Tags:        append([]string(nil), record.Tags...),
		Category:    record.Category,
		Position:    len(snap.Items),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// The lease auto-expires; the bounded delay is the suppression window.
	m.gate.Acquire(lease.KindWrite, m.leaseTTL)

	next := snap.Clone()
	next.Items = append(next.Items, item)
	m.store.Set(next)

	res, err := m.remote.CommitAdd(ctx, snap.ID, item)
	if err != nil {
		return "", m.revert(ctx, "commit_add", err)
	}

	finalID := item.ID
	if res.Item.ID != "" && res.Item.ID != item.ID {
		finalID = res.Item.ID
		m.rewriteItemID(item.ID, res.Item.ID)
	}
	m.applyServer(ctx, res.List)
	return finalID, nil
}

// Edit applies a field patch to an active item.
func (m *Mutator) Edit(ctx context.Context, itemID string, patch remote.ItemPatch) error {
	return m.mutateItem(ctx, "commit_edit", itemID,
		func(it *linklist.Item) { applyPatch(it, patch) },
		func(ctx context.Context, listID string) (*linklist.List, error) {
			res, err := m.remote.CommitEdit(ctx, listID, itemID, patch)
			if err != nil {
				return nil, err
			}
			return res.List, nil
		})
}

// ToggleFavorite flips the favorite flag on an active item.
func (m *Mutator) ToggleFavorite(ctx context.Context, itemID string) error {
	return m.toggle(ctx, itemID, false)
}

// TogglePin flips the pinned flag on an active item. Pinned items render
// before unpinned items, so this is also an implicit reorder. The
// position keys are untouched; the derived sort handles the rest.
func (m *Mutator) TogglePin(ctx context.Context, itemID string) error {
	return m.toggle(ctx, itemID, true)
}

func (m *Mutator) toggle(ctx context.Context, itemID string, pin bool) error {
	snap := m.store.Get()
	if snap == nil {
		return fmt.Errorf("no list loaded")
	}
	idx := snap.ActiveByID(itemID)
	if idx < 0 {
		return linklist.NewError(linklist.KindValidation, "commit_edit", fmt.Errorf("unknown item %s", itemID))
	}

	// The same patch drives both the optimistic apply and the commit, so
	// they cannot disagree.
	patch := remote.ItemPatch{}
	if pin {
		next := !snap.Items[idx].IsPinned
		patch.IsPinned = &next
	} else {
		next := !snap.Items[idx].IsFavorite
		patch.IsFavorite = &next
	}

	return m.Edit(ctx, itemID, patch)
}

// Archive moves an active item into the archived set, dropping it from
// the position ordering. All fields are preserved for later restore.
func (m *Mutator) Archive(ctx context.Context, itemID string) error {
	return m.mutateList(ctx, "commit_archive",
		func(l *linklist.List) error {
			idx := l.ActiveByID(itemID)
			if idx < 0 {
				return fmt.Errorf("unknown item %s", itemID)
			}
			it := l.Items[idx]
			it.Touch()
			l.Items = append(l.Items[:idx], l.Items[idx+1:]...)
			linklist.Renumber(l.Items)
			l.ArchivedItems = append(l.ArchivedItems, it)
			return nil
		},
		func(ctx context.Context, listID string) (*linklist.List, error) {
			res, err := m.remote.CommitArchive(ctx, listID, itemID)
			if err != nil {
				return nil, err
			}
			return res.List, nil
		})
}

// Restore moves an archived item back into the active set, appended at
// the end of the order.
func (m *Mutator) Restore(ctx context.Context, itemID string) error {
	return m.mutateList(ctx, "commit_restore",
		func(l *linklist.List) error {
			idx := l.ArchivedByID(itemID)
			if idx < 0 {
				return fmt.Errorf("unknown archived item %s", itemID)
			}
			it := l.ArchivedItems[idx]
			it.Touch()
			it.Position = len(l.Items)
			l.ArchivedItems = append(l.ArchivedItems[:idx], l.ArchivedItems[idx+1:]...)
			l.Items = append(l.Items, it)
			return nil
		},
		func(ctx context.Context, listID string) (*linklist.List, error) {
			res, err := m.remote.CommitRestore(ctx, listID, itemID)
			if err != nil {
				return nil, err
			}
			return res.List, nil
		})
}

// Delete permanently removes an item (active or archived). The id is
// never reused; derived caches are purged via the order cache refresh in
// applyServer.
func (m *Mutator) Delete(ctx context.Context, itemID string) error {
	return m.mutateList(ctx, "commit_delete",
		func(l *linklist.List) error {
			if idx := l.ActiveByID(itemID); idx >= 0 {
				l.Items = append(l.Items[:idx], l.Items[idx+1:]...)
				linklist.Renumber(l.Items)
				return nil
			}
			if idx := l.ArchivedByID(itemID); idx >= 0 {
				l.ArchivedItems = append(l.ArchivedItems[:idx], l.ArchivedItems[idx+1:]...)
				return nil
			}
			return fmt.Errorf("unknown item %s", itemID)
		},
		func(ctx context.Context, listID string) (*linklist.List, error) {
			res, err := m.remote.CommitDelete(ctx, listID, itemID)
			if err != nil {
				return nil, err
			}
			return res.List, nil
		})
}

// TrackClick bumps an item's click count. The count is server-computed;
// the optimistic increment is display-only and the reconcile step adopts
// the server's number. No edit capability is required: viewers of a
// shared list generate clicks too.
func (m *Mutator) TrackClick(ctx context.Context, itemID string) error {
	snap := m.store.Get()
	if snap == nil {
		return fmt.Errorf("no list loaded")
	}
	idx := snap.ActiveByID(itemID)
	if idx < 0 {
		return linklist.NewError(linklist.KindValidation, "commit_click", fmt.Errorf("unknown item %s", itemID))
	}

	m.gate.Acquire(lease.KindWrite, m.leaseTTL)

	next := snap.Clone()
	next.Items[idx].ClickCount++
	m.store.Set(next)

	res, err := m.remote.CommitClick(ctx, snap.ID, itemID)
	if err != nil {
		return m.revert(ctx, "commit_click", err)
	}
	m.applyServer(ctx, res.List)
	return nil
}

// CommitRecord is the commit primitive shared with the bulk importer:
// the same add path, minus the optimistic store apply (the importer
// reconciles once per response instead of once per keystroke).
func (m *Mutator) CommitRecord(ctx context.Context, record linklist.ImportRecord) error {
	snap := m.store.Get()
	if snap == nil {
		return fmt.Errorf("no list loaded")
	}
	now := time.Now().UTC()
	item := linklist.Item{
		ID:          linklist.NewItemID(),
		URL:         record.URL,
		Title:       record.Title,
		Description: record.Description,
		Tags:        append([]string(nil), record.Tags...),
		Category:    record.Category,
		Position:    len(snap.Items),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	res, err := m.remote.CommitAdd(ctx, snap.ID, item)
	if err != nil {
		return err
	}
	m.applyServer(ctx, res.List)
	return nil
}

// --- shared plumbing ---

func (m *Mutator) editableSnapshot(op string) (*linklist.List, error) {
	snap := m.store.Get()
	if snap == nil {
		return nil, fmt.Errorf("no list loaded")
	}
	// Capability check before any optimistic change: a caller without
	// edit rights never sees a flicker of the rejected write.
	if !snap.CanEdit(m.userID) {
		return nil, linklist.NewError(linklist.KindPermission, op, fmt.Errorf("user %s cannot edit list %s", m.userID, snap.ID))
	}
	return snap, nil
}

func (m *Mutator) mutateItem(ctx context.Context, op, itemID string, apply func(*linklist.Item), commit func(context.Context, string) (*linklist.List, error)) error {
	return m.mutateList(ctx, op, func(l *linklist.List) error {
		idx := l.ActiveByID(itemID)
		if idx < 0 {
			return fmt.Errorf("unknown item %s", itemID)
		}
		apply(&l.Items[idx])
		l.Items[idx].Touch()
		return nil
	}, commit)
}

func (m *Mutator) mutateList(ctx context.Context, op string, apply func(*linklist.List) error, commit func(context.Context, string) (*linklist.List, error)) error {
	snap, err := m.editableSnapshot(op)
	if err != nil {
		return err
	}

	next := snap.Clone()
	if err := apply(next); err != nil {
		return linklist.NewError(linklist.KindValidation, op, err)
	}

	m.gate.Acquire(lease.KindWrite, m.leaseTTL)

	m.store.Set(next)

	serverList, err := commit(ctx, snap.ID)
	if err != nil {
		return m.revert(ctx, op, err)
	}
	m.applyServer(ctx, serverList)
	return nil
}

// applyServer reconciles a server snapshot into the store and mirrors
// the confirmed active order into the order cache.
func (m *Mutator) applyServer(ctx context.Context, serverList *linklist.List) {
	merged := Reconcile(m.store.Get(), serverList)
	m.store.Set(merged)
	if m.orders != nil && merged != nil {
		if err := m.orders.Save(ctx, merged.ID, merged.Items); err != nil {
			log.Printf("[Mutator] order cache save failed: %v", err)
		}
	}
}

// revert discards the optimistic change by refetching canonical state.
func (m *Mutator) revert(ctx context.Context, op string, cause error) error {
	log.Printf("[Mutator] %s failed, reverting to canonical state: %v", op, cause)
	if m.refetch != nil {
		// Cancellation of the triggering call must not block the revert.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := m.refetch(rctx); err != nil {
			log.Printf("[Mutator] canonical refetch after %s failure also failed: %v", op, err)
		}
	}
	return linklist.NewError(linklist.Classify(cause), op, cause)
}

// rewriteItemID replaces an optimistic client id with the server's.
func (m *Mutator) rewriteItemID(oldID, newID string) {
	snap := m.store.Get()
	if snap == nil {
		return
	}
	idx := snap.ActiveByID(oldID)
	if idx < 0 {
		return
	}
	next := snap.Clone()
	next.Items[idx].ID = newID
	m.store.Set(next)
}

func applyPatch(it *linklist.Item, p remote.ItemPatch) {
	if p.URL != nil {
		it.URL = *p.URL
	}
	if p.Title != nil {
		it.Title = *p.Title
	}
	if p.Description != nil {
		it.Description = *p.Description
	}
	if p.Tags != nil {
		it.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Notes != nil {
		it.Notes = *p.Notes
	}
	if p.Reminder != nil {
		r := *p.Reminder
		it.Reminder = &r
	}
	if p.Category != nil {
		it.Category = *p.Category
	}
	if p.IsFavorite != nil {
		it.IsFavorite = *p.IsFavorite
	}
	if p.IsPinned != nil {
		it.IsPinned = *p.IsPinned
	}
}
