package reorder

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnobt78/linkboard/internal/kvcache"
	"github.com/arnobt78/linkboard/internal/lease"
	"github.com/arnobt78/linkboard/internal/ordercache"
	"github.com/arnobt78/linkboard/internal/remote"
	"github.com/arnobt78/linkboard/internal/store"
	"github.com/arnobt78/linkboard/pkg/linklist"
)

// reorderRemote serves exactly the reconciler's needs: CommitReorder
// either blocks, fails, or echoes a scripted (possibly stale) snapshot.
type reorderRemote struct {
	echo     *linklist.List
	err      error
	block    chan struct{} // when non-nil, CommitReorder waits on it
	reorders atomic.Int32
	fetches  atomic.Int32
	fetch    *linklist.List
}

func (f *reorderRemote) FetchList(ctx context.Context, slug string) (*linklist.List, error) {
	f.fetches.Add(1)
	return f.fetch.Clone(), nil
}

func (f *reorderRemote) CommitReorder(ctx context.Context, listID string, itemIDs []string) (*remote.ListResult, error) {
	f.reorders.Add(1)
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return &remote.ListResult{List: f.echo.Clone()}, nil
}

// The remaining Store methods are unused by the reconciler.
func (f *reorderRemote) CommitAdd(context.Context, string, linklist.Item) (*remote.AddResult, error) {
	panic("not used")
}
func (f *reorderRemote) CommitEdit(context.Context, string, string, remote.ItemPatch) (*remote.EditResult, error) {
	panic("not used")
}
func (f *reorderRemote) CommitArchive(context.Context, string, string) (*remote.ListResult, error) {
	panic("not used")
}
func (f *reorderRemote) CommitRestore(context.Context, string, string) (*remote.ListResult, error) {
	panic("not used")
}
func (f *reorderRemote) CommitDelete(context.Context, string, string) (*remote.ListResult, error) {
	panic("not used")
}
func (f *reorderRemote) CommitClick(context.Context, string, string) (*remote.EditResult, error) {
	panic("not used")
}

func listOf(ids ...string) *linklist.List {
	l := &linklist.List{ID: "l1", Slug: "s"}
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range ids {
		l.Items = append(l.Items, linklist.Item{ID: id, Position: i, CreatedAt: base})
	}
	return l
}

type fixture struct {
	rec    *Reconciler
	st     *store.Store
	fr     *reorderRemote
	orders *ordercache.OrderCache
	gate   *lease.Gate
}

func setup(t *testing.T, grace time.Duration, ids ...string) *fixture {
	t.Helper()
	st := store.New()
	list := listOf(ids...)
	st.Set(list)

	fr := &reorderRemote{echo: list.Clone(), fetch: list.Clone()}
	orders := ordercache.New(kvcache.NewMemory(), time.Minute)
	gate := lease.NewGate()
	refetch := func(ctx context.Context) error {
		l, err := fr.FetchList(ctx, "s")
		if err != nil {
			return err
		}
		st.Set(l)
		return nil
	}
	return &fixture{
		rec:    New(st, fr, gate, orders, refetch, grace),
		st:     st,
		fr:     fr,
		orders: orders,
		gate:   gate,
	}
}

func drag(t *testing.T, fx *fixture, src, dst int, visible ...string) {
	t.Helper()
	require.True(t, fx.rec.Begin())
	fx.rec.Move(context.Background(), src, dst, visible)
	require.NoError(t, fx.rec.Commit(context.Background()))
}

func TestShiftRule(t *testing.T) {
	// A(pos0) B(pos1) C(pos2); moving A to index 1 yields B A C with
	// positions renumbered 0 1 2.
	fx := setup(t, time.Minute, "A", "B", "C")
	drag(t, fx, 0, 1)

	snap := fx.st.Get()
	assert.Equal(t, []string{"B", "A", "C"}, snap.ActiveIDs())
	for i := range snap.Items {
		assert.Equal(t, i, snap.Items[i].Position)
	}
}

func TestServerEchoNeverResetsOrder(t *testing.T) {
	fx := setup(t, time.Minute, "A", "B", "C")
	// The echo replays the pre-reorder order, as a slow backend would.
	fx.fr.echo = listOf("A", "B", "C")

	drag(t, fx, 2, 0)
	assert.Equal(t, []string{"C", "A", "B"}, fx.st.Get().ActiveIDs(),
		"locally-preserved order must win over the bare echo")
}

func TestGestureComposition(t *testing.T) {
	// Composing gestures in issuance order converges to the same result
	// regardless of what each stale echo claimed.
	fx := setup(t, time.Minute, "A", "B", "C", "D")
	fx.fr.echo = listOf("A", "B", "C", "D")

	drag(t, fx, 0, 3) // A to end: B C D A
	drag(t, fx, 1, 0) // C to front: C B D A
	drag(t, fx, 3, 2) // A before D... -> C B A D

	assert.Equal(t, []string{"C", "B", "A", "D"}, fx.st.Get().ActiveIDs())
}

func TestFilteredReorderLeavesHiddenAlone(t *testing.T) {
	fx := setup(t, time.Minute, "A", "B", "C", "D", "E")
	// The user sees only B and D (a filter is active) and swaps them.
	require.True(t, fx.rec.Begin())
	fx.rec.Move(context.Background(), 0, 1, []string{"B", "D"})
	require.NoError(t, fx.rec.Commit(context.Background()))

	got := fx.st.Get().ActiveIDs()
	assert.Equal(t, []string{"D", "B", "A", "C", "E"}, got,
		"visible ids reordered first, hidden ids follow in prior relative order")
}

func TestNoMovementMakesNoCall(t *testing.T) {
	fx := setup(t, time.Minute, "A", "B")

	require.True(t, fx.rec.Begin())
	fx.rec.Move(context.Background(), 1, 1, nil) // no-op move
	require.NoError(t, fx.rec.Commit(context.Background()))

	assert.Equal(t, int32(0), fx.fr.reorders.Load())
	assert.Equal(t, Idle, fx.rec.State())
	assert.False(t, fx.gate.Held(), "abandoned gesture must release the gate")
}

func TestMoveDedup(t *testing.T) {
	fx := setup(t, time.Minute, "A", "B", "C")
	require.True(t, fx.rec.Begin())

	ctx := context.Background()
	fx.rec.Move(ctx, 0, 2, nil)
	before, ok := fx.orders.Load(ctx, "l1", []string{"A", "B", "C"})
	require.True(t, ok)

	// Same (src,dst) again: deduplicated, cache untouched.
	fx.rec.Move(ctx, 0, 2, nil)
	after, ok := fx.orders.Load(ctx, "l1", []string{"A", "B", "C"})
	require.True(t, ok)
	assert.Equal(t, before.WrittenAt, after.WrittenAt)

	fx.rec.Cancel()
}

func TestDraggingWritesCacheNotStore(t *testing.T) {
	fx := setup(t, time.Minute, "A", "B", "C")
	ctx := context.Background()

	require.True(t, fx.rec.Begin())
	fx.rec.Move(ctx, 0, 2, nil)

	// Authoritative store is untouched mid-drag.
	assert.Equal(t, []string{"A", "B", "C"}, fx.st.Get().ActiveIDs())

	// The candidate order is already in the cache.
	entry, ok := fx.orders.Load(ctx, "l1", []string{"A", "B", "C"})
	require.True(t, ok)
	assert.Equal(t, []string{"B", "C", "A"}, entry.IDs())

	fx.rec.Cancel()
	assert.Equal(t, Idle, fx.rec.State())
}

func TestConcurrentGestureGuard(t *testing.T) {
	fx := setup(t, time.Minute, "A", "B")
	fx.fr.block = make(chan struct{})

	require.True(t, fx.rec.Begin())
	fx.rec.Move(context.Background(), 0, 1, nil)

	done := make(chan error, 1)
	go func() { done <- fx.rec.Commit(context.Background()) }()

	require.Eventually(t, func() bool { return fx.rec.State() == Committing },
		time.Second, time.Millisecond)

	assert.False(t, fx.rec.Begin(), "a new gesture cannot begin while committing")

	close(fx.fr.block)
	require.NoError(t, <-done)
	assert.True(t, fx.rec.Begin(), "and can begin again once the commit settles")
	fx.rec.Cancel()
}

func TestCommitFailure(t *testing.T) {
	fx := setup(t, time.Minute, "A", "B", "C")
	fx.fr.err = errors.New("backend down")

	require.True(t, fx.rec.Begin())
	fx.rec.Move(context.Background(), 0, 2, nil)
	err := fx.rec.Commit(context.Background())
	require.Error(t, err)

	// Pending order discarded, cache cleared, canonical state refetched.
	assert.Equal(t, []string{"A", "B", "C"}, fx.st.Get().ActiveIDs())
	_, ok := fx.orders.Load(context.Background(), "l1", []string{"A", "B", "C"})
	assert.False(t, ok)
	assert.Equal(t, int32(1), fx.fr.fetches.Load())
	assert.False(t, fx.rec.Suppressed(time.Now()), "no grace window after a failed commit")
}

func TestConflictWhenItemVanishes(t *testing.T) {
	fx := setup(t, time.Minute, "A", "B", "C")
	// A collaborator deleted C while our reorder was in flight.
	fx.fr.echo = listOf("A", "B")

	require.True(t, fx.rec.Begin())
	fx.rec.Move(context.Background(), 2, 0, nil)
	err := fx.rec.Commit(context.Background())
	require.Error(t, err)
	assert.True(t, linklist.IsConflict(err))
	assert.Equal(t, int32(1), fx.fr.fetches.Load(), "conflict resolves by refetching")
}

func TestGraceWindow(t *testing.T) {
	grace := 100 * time.Millisecond
	fx := setup(t, grace, "A", "B")

	drag(t, fx, 0, 1)
	committed := time.Now()

	assert.True(t, fx.rec.Suppressed(committed.Add(grace-10*time.Millisecond)),
		"inside the window invalidations are suppressed")
	assert.True(t, fx.gate.Held(), "the gate rides the grace window")

	assert.False(t, fx.rec.Suppressed(committed.Add(grace+10*time.Millisecond)),
		"after the window canonical state is authoritative again")
	assert.Eventually(t, func() bool { return !fx.gate.Held() }, time.Second, 5*time.Millisecond)
}

func TestSuppressedDuringGesture(t *testing.T) {
	fx := setup(t, time.Minute, "A", "B")
	assert.False(t, fx.rec.Suppressed(time.Now()))

	require.True(t, fx.rec.Begin())
	assert.True(t, fx.rec.Suppressed(time.Now()))
	fx.rec.Cancel()
	assert.False(t, fx.rec.Suppressed(time.Now()))
}
