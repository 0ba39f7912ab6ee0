package statedb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestViewState_CRUD(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.GetViewState(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.SetViewState(ctx, "s1", []byte(`{"openFilePaths":["a"]}`)))
	require.NoError(t, db.SetViewState(ctx, "s1", []byte(`{"openFilePaths":["b"]}`)))

	got, err := db.GetViewState(ctx, "s1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"openFilePaths":["b"]}`, string(got))

	require.NoError(t, db.DeleteViewState(ctx, "s1"))
	require.NoError(t, db.DeleteViewState(ctx, "s1"))
	_, err = db.GetViewState(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLayout_IndependentOfViewState(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SetLayout(ctx, "s1", []byte(`{"root":null}`)))
	_, err := db.GetViewState(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := db.GetLayout(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, `{"root":null}`, string(got))

	require.NoError(t, db.DeleteViewState(ctx, "s1"))
	_, err = db.GetLayout(ctx, "s1")
	assert.NoError(t, err)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.SetViewState(context.Background(), "s1", []byte(`{}`)))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	got, err := db.GetViewState(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(got))
	assert.Equal(t, path, db.Path())
}

func TestSessions(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	require.NoError(t, db.SetViewState(ctx, "a", []byte(`{}`)))
	require.NoError(t, db.SetLayout(ctx, "a", []byte(`{}`)))
	require.NoError(t, db.SetLayout(ctx, "b", []byte(`{}`)))

	ids, err := db.Sessions(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}
