package preserve

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/partsdesk/internal/client/form"
	"github.com/dmitrijs2005/partsdesk/internal/client/storage"
	"github.com/dmitrijs2005/partsdesk/internal/clock"
	"github.com/dmitrijs2005/partsdesk/internal/common"
)

var epoch = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	clk   *clock.Fake
	nav   *form.MemoryAdapter
	kv    *storage.MemoryStore
	store *Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewFake(epoch)
	nav := form.NewMemoryAdapter("/quotes/new")
	kv := storage.NewMemoryStore(clk.Now)
	return &fixture{
		clk:   clk,
		nav:   nav,
		kv:    kv,
		store: New(kv, nav, clk, Options{}),
	}
}

func TestPreserve_RestoreIsOneShot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Preserve(ctx, map[string]any{"a": 1}, ""))

	data, url, err := f.store.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": int64(1)}, data)
	assert.Equal(t, "/quotes/new", url)

	data, url, err = f.store.Restore(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.Empty(t, url)
}

func TestPreserve_KeepsNumberKinds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Preserve(ctx, map[string]any{
		"qty":      3,
		"discount": 2.5,
		"big":      int64(9007199254740993),
		"lines":    []any{1, map[string]any{"price": 10}},
		"sku":      "BP-01",
	}, ""))

	data, _, err := f.store.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"qty":      int64(3),
		"discount": 2.5,
		"big":      int64(9007199254740993),
		"lines":    []any{int64(1), map[string]any{"price": int64(10)}},
		"sku":      "BP-01",
	}, data)
}

func TestPreserve_ExpiredSnapshotIsAbsent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Written directly so the backend itself does not expire it.
	raw := []byte(`{"formData":{"client":"Auto Center"},"url":"/clients/7","timestamp":"` +
		epoch.Add(-31*time.Minute).Format(time.RFC3339Nano) + `"}`)
	require.NoError(t, f.kv.Set(ctx, common.PreservedDataKey, raw, 0))

	info, err := f.store.Info(ctx)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.True(t, info.Expired)
	assert.Equal(t, 1, info.FieldsCount)
	assert.Equal(t, 31*time.Minute, info.Age)

	assert.False(t, f.store.HasPreserved(ctx))

	data, url, err := f.store.Restore(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.Empty(t, url)

	left, err := f.kv.Get(ctx, common.PreservedDataKey)
	require.NoError(t, err)
	assert.Nil(t, left, "stale snapshot must be purged")
}

func TestPreserve_RestoreNavigatesWhenURLDiffers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Preserve(ctx, map[string]any{"qty": "2"}, "/orders/31"))
	f.nav.Navigate("/login")

	_, url, err := f.store.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/orders/31", url)
	assert.Equal(t, "/orders/31", f.nav.Location())
}

func TestPreserve_RestoreSameURLDoesNotNavigate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Preserve(ctx, map[string]any{"qty": "2"}, ""))
	_, _, err := f.store.Restore(ctx)
	require.NoError(t, err)
	assert.Empty(t, f.nav.History())
}

func TestPreserve_OverwritesPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Preserve(ctx, map[string]any{"a": "1"}, "/a"))
	f.clk.Advance(time.Minute)
	require.NoError(t, f.store.Preserve(ctx, map[string]any{"b": "2", "c": "3"}, "/b"))

	snap, err := f.store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "/b", snap.URL)
	assert.Equal(t, epoch.Add(time.Minute), snap.Timestamp.UTC())
	assert.Len(t, snap.FormData, 2)
}

func TestPreserve_InfoAbsent(t *testing.T) {
	f := newFixture(t)
	info, err := f.store.Info(context.Background())
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestPreserve_BeforeUnload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, block := f.store.BeforeUnload(ctx)
	assert.False(t, block)

	require.NoError(t, f.store.Preserve(ctx, map[string]any{"a": "1"}, ""))
	msg, block := f.store.BeforeUnload(ctx)
	assert.True(t, block)
	assert.Equal(t, UnloadMessage, msg)

	require.NoError(t, f.store.Clear(ctx))
	_, block = f.store.BeforeUnload(ctx)
	assert.False(t, block)
}

func TestAutoPreserve_Debounces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.AutoPreserve(map[string]any{"notes": "f"})
	f.clk.Advance(400 * time.Millisecond)
	f.store.AutoPreserve(map[string]any{"notes": "fr"})
	f.clk.Advance(400 * time.Millisecond)
	f.store.AutoPreserve(map[string]any{"notes": "fre"})
	f.clk.Advance(999 * time.Millisecond)

	assert.False(t, f.store.HasPreserved(ctx))
	assert.Equal(t, 1, f.clk.Pending())

	f.clk.Advance(time.Millisecond)
	snap, err := f.store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, map[string]any{"notes": "fre"}, snap.FormData)
	assert.Zero(t, f.clk.Pending())
}

// firedScheduler hands out callbacks without running them; its cancel is a
// no-op, like stopping a timer that has already fired.
type firedScheduler struct {
	now time.Time
	fns []func()
}

func (s *firedScheduler) Now() time.Time { return s.now }

func (s *firedScheduler) Schedule(fn func(), _ time.Duration) clock.CancelFunc {
	s.fns = append(s.fns, fn)
	return func() {}
}

func TestAutoPreserve_FiredStaleTimerDoesNotWin(t *testing.T) {
	sched := &firedScheduler{now: epoch}
	kv := storage.NewMemoryStore(func() time.Time { return sched.now })
	store := New(kv, form.NewMemoryAdapter("/quotes/new"), sched, Options{})
	ctx := context.Background()

	store.AutoPreserve(map[string]any{"notes": "old"})
	store.AutoPreserve(map[string]any{"notes": "new"})
	require.Len(t, sched.fns, 2)

	sched.fns[0]()
	assert.False(t, store.HasPreserved(ctx), "superseded timer must not write")

	sched.fns[1]()
	snap, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, map[string]any{"notes": "new"}, snap.FormData)
}

func TestAutoPreserve_StopBeatsFiredTimer(t *testing.T) {
	sched := &firedScheduler{now: epoch}
	kv := storage.NewMemoryStore(func() time.Time { return sched.now })
	store := New(kv, form.NewMemoryAdapter("/quotes/new"), sched, Options{})

	store.AutoPreserve(map[string]any{"notes": "draft"})
	store.StopAutoPreserve()
	sched.fns[0]()

	assert.False(t, store.HasPreserved(context.Background()))
}

func TestAutoPreserve_IgnoresEmptyAndStops(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.AutoPreserve(nil)
	assert.Zero(t, f.clk.Pending())

	f.store.AutoPreserve(map[string]any{"x": "1"})
	f.store.StopAutoPreserve()
	f.clk.Advance(2 * time.Second)
	assert.False(t, f.store.HasPreserved(ctx))
}
