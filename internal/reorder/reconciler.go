// Package reorder owns position changes: the drag gesture state machine,
// the renumbering rule, and the grace window that keeps a just-committed
// order from bouncing back when a stale server echo or push invalidation
// arrives moments later.
package reorder

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/arnobt78/linkboard/internal/lease"
	"github.com/arnobt78/linkboard/internal/mutator"
	"github.com/arnobt78/linkboard/internal/ordercache"
	"github.com/arnobt78/linkboard/internal/remote"
	"github.com/arnobt78/linkboard/internal/store"
	"github.com/arnobt78/linkboard/pkg/linklist"
)

// State is the reconciler's position in the gesture lifecycle.
type State int

const (
	// Idle: no gesture in progress.
	Idle State = iota
	// Dragging: a gesture is live; intermediate orders go to the order
	// cache and the in-memory pending reference only.
	Dragging
	// Committing: the gesture ended and the reorder request is in flight.
	Committing
)

func (s State) String() string {
	switch s {
	case Dragging:
		return "dragging"
	case Committing:
		return "committing"
	default:
		return "idle"
	}
}

// DefaultGraceWindow is how long a committed order overrides incoming
// invalidations. Configurable because the right value depends on backend
// latency.
const DefaultGraceWindow = 30 * time.Second

// maxDragHold bounds how long a single gesture may suppress refreshes.
// Extended on every Move, so only an abandoned drag hits it.
const maxDragHold = 2 * time.Minute

// Reconciler drives one list's reorder gestures.
type Reconciler struct {
	st      *store.Store
	remote  remote.Store
	gate    *lease.Gate
	orders  *ordercache.OrderCache
	refetch mutator.RefetchFunc
	grace   time.Duration

	mu          sync.Mutex
	state       State
	pending     []string // full candidate order, ids left to right
	lastSrc     int
	lastDst     int
	hold        *lease.Lease
	committedAt time.Time
}

// New creates a reconciler. grace <= 0 falls back to DefaultGraceWindow.
func New(st *store.Store, rs remote.Store, gate *lease.Gate, orders *ordercache.OrderCache, refetch mutator.RefetchFunc, grace time.Duration) *Reconciler {
	if grace <= 0 {
		grace = DefaultGraceWindow
	}
	return &Reconciler{st: st, remote: rs, gate: gate, orders: orders, refetch: refetch, grace: grace}
}

// State returns the current gesture state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Begin starts a drag gesture. Returns false (and does nothing) when a
// commit for this list is still in flight: a new gesture cannot begin
// until the previous one settles.
func (r *Reconciler) Begin() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Committing {
		return false
	}
	if r.state == Idle {
		r.state = Dragging
		r.lastSrc, r.lastDst = -1, -1
		snap := r.st.Get()
		if snap != nil {
			r.pending = snap.ActiveIDs()
		} else {
			r.pending = nil
		}
		r.hold = r.gate.Acquire(lease.KindReorder, maxDragHold)
	}
	return true
}

// Move records an intermediate drag position over the visible subset.
// visibleIDs is the id sequence the gesture actually operated on - the
// full active order when no filter is applied, or the filtered/sorted
// subset otherwise. Hidden items keep their prior relative order after
// the visible ids, so a reorder gesture never disturbs items it could
// not see. Repeated calls with the same (src, dst) pair are deduplicated.
//
// Intermediate orders are written to the order cache and the in-memory
// pending reference only, never to the authoritative position fields, so
// the UI's transient animation state stays undisturbed.
func (r *Reconciler) Move(ctx context.Context, src, dst int, visibleIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Dragging {
		return
	}
	if src == r.lastSrc && dst == r.lastDst {
		return
	}
	r.lastSrc, r.lastDst = src, dst
	if r.hold != nil {
		r.hold.Extend(maxDragHold)
	}

	snap := r.st.Get()
	if snap == nil {
		return
	}
	full := snap.ActiveIDs()
	r.pending = candidateOrder(full, visibleIDs, src, dst)

	if r.orders != nil {
		if err := r.orders.SaveIDs(ctx, snap.ID, r.pending); err != nil {
			log.Printf("[Reorder] order cache write during drag failed: %v", err)
		}
	}
}

// candidateOrder applies the move to the visible subset and appends the
// hidden ids in their prior relative order.
func candidateOrder(full, visible []string, src, dst int) []string {
	if len(visible) == 0 {
		visible = full
	}
	moved := linklist.ApplyMove(visible, src, dst)

	inVisible := make(map[string]bool, len(visible))
	for _, id := range visible {
		inVisible[id] = true
	}
	out := make([]string, 0, len(full))
	out = append(out, moved...)
	for _, id := range full {
		if !inVisible[id] {
			out = append(out, id)
		}
	}
	return out
}

// Cancel abandons the gesture without a network call.
func (r *Reconciler) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Dragging {
		return
	}
	r.state = Idle
	r.pending = nil
	if r.hold != nil {
		r.hold.Release()
		r.hold = nil
	}
}

// Commit ends the gesture. When the pending order equals the current
// order (no real movement) it exits to Idle with no network call.
// Otherwise the new order is renumbered, written to the store
// optimistically, mirrored into the order cache, and committed to the
// remote store; the response is merged with the local order always
// forced over the bare server echo, and the grace window starts.
func (r *Reconciler) Commit(ctx context.Context) error {
	r.mu.Lock()
	if r.state != Dragging {
		r.mu.Unlock()
		return nil
	}
	snap := r.st.Get()
	if snap == nil {
		r.finishLocked()
		r.mu.Unlock()
		return nil
	}

	current := snap.ActiveIDs()
	pending := append([]string(nil), r.pending...)
	if sameOrder(current, pending) {
		// Rejected case: the gesture went nowhere.
		r.finishLocked()
		r.mu.Unlock()
		return nil
	}

	r.state = Committing
	r.committedAt = time.Now()
	if r.hold != nil {
		// The grace window rides the same lease: the coordinator sees
		// one gate held from gesture start to window expiry.
		r.hold.Extend(r.grace)
	}

	// Optimistic apply: the pending order becomes the canonical
	// left-to-right order with positions renumbered 0..n-1.
	next := snap.Clone()
	next.Items = linklist.OrderByIDs(next.Items, pending)
	listID := next.ID
	r.mu.Unlock()

	r.st.Set(next)
	if r.orders != nil {
		if err := r.orders.SaveIDs(ctx, listID, pending); err != nil {
			log.Printf("[Reorder] order cache mirror failed: %v", err)
		}
	}

	res, err := r.remote.CommitReorder(ctx, listID, pending)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		return r.failLocked(ctx, listID, err)
	}

	if res.List != nil && missingAny(res.List, pending) {
		// An item we just ordered no longer exists server-side: the
		// local intent cannot be honoured.
		err := linklist.NewError(linklist.KindConflict, "commit_reorder",
			fmt.Errorf("server snapshot no longer contains the committed order"))
		return r.failLocked(ctx, listID, err)
	}

	// Merge server-owned fields, then force the locally-preserved order
	// back over the echo: between request and response another event may
	// have raced in, so the echo's ordering is never trusted.
	merged := mutator.Reconcile(r.st.Get(), res.List)
	merged.Items = linklist.OrderByIDs(merged.Items, pending)
	r.st.Set(merged)

	r.state = Idle
	r.pending = nil
	return nil
}

// failLocked discards the pending order, clears the cache entry, and
// reverts via canonical refetch. Called with the lock held.
func (r *Reconciler) failLocked(ctx context.Context, listID string, cause error) error {
	log.Printf("[Reorder] commit failed, discarding pending order: %v", cause)
	// No grace window after a failed commit: the refetched canonical
	// state is authoritative immediately.
	r.committedAt = time.Time{}
	r.finishLocked()

	if r.orders != nil {
		if err := r.orders.Clear(ctx, listID); err != nil {
			log.Printf("[Reorder] order cache clear failed: %v", err)
		}
	}
	if r.refetch != nil {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := r.refetch(rctx); err != nil {
			log.Printf("[Reorder] canonical refetch after reorder failure failed: %v", err)
		}
	}
	return linklist.NewError(linklist.Classify(cause), "commit_reorder", cause)
}

// finishLocked returns to Idle and drops the gesture's lease. A
// successful commit does not come through here: it keeps the lease live
// so the grace window holds the gate until the TTL expires.
func (r *Reconciler) finishLocked() {
	r.state = Idle
	r.pending = nil
	if r.hold != nil {
		r.hold.Release()
		r.hold = nil
	}
}

// Suppressed reports whether an invalidation for this list should be
// held back: a gesture is live, a commit is in flight, or the grace
// window since the last commit has not elapsed.
func (r *Reconciler) Suppressed(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Idle {
		return true
	}
	return !r.committedAt.IsZero() && now.Sub(r.committedAt) < r.grace
}

func sameOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// missingAny reports whether any of the committed ids is absent from the
// server snapshot's active items.
func missingAny(server *linklist.List, ids []string) bool {
	present := make(map[string]bool, len(server.Items))
	for i := range server.Items {
		present[server.Items[i].ID] = true
	}
	for _, id := range ids {
		if !present[id] {
			return true
		}
	}
	return false
}
