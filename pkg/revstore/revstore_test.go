package revstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "state", "revisions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_RecordAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rev, err := store.Record(ctx, Revision{
		Filename:       "calc.go",
		SourceSHA256:   "abc",
		DocumentSHA256: "def",
		Endpoints:      []string{"/add", "/sub"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rev.ID)
	assert.Equal(t, OutcomePending, rev.Outcome)
	assert.False(t, rev.CreatedAt.IsZero())

	got, err := store.Get(ctx, rev.ID)
	require.NoError(t, err)
	assert.Equal(t, rev.Filename, got.Filename)
	assert.Equal(t, []string{"/add", "/sub"}, got.Endpoints)
	assert.True(t, rev.CreatedAt.Equal(got.CreatedAt))

	_, err = store.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_LatestAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Latest(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"a.go", "b.go", "c.go"} {
		_, err := store.Record(ctx, Revision{Filename: name, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c.go", latest.Filename)
	assert.Equal(t, []string{}, latest.Endpoints)

	revs, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, "c.go", revs[0].Filename)
	assert.Equal(t, "b.go", revs[1].Filename)
}

func TestStore_SetOutcome(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rev, err := store.Record(ctx, Revision{Filename: "calc.go"})
	require.NoError(t, err)

	require.NoError(t, store.SetOutcome(ctx, rev.ID, OutcomeFailed, "start timeout"))
	got, err := store.Get(ctx, rev.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, got.Outcome)
	assert.Equal(t, "start timeout", got.Error)

	assert.ErrorIs(t, store.SetOutcome(ctx, "missing", OutcomeRunning, ""), ErrNotFound)
}

func TestStore_Prune(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := store.Record(ctx, Revision{Filename: "f.go", CreatedAt: base.Add(time.Duration(i) * time.Second)})
		require.NoError(t, err)
	}

	removed, err := store.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	revs, err := store.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, revs, 2)
}
