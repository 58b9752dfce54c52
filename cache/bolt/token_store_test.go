package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func setupTestStore(t *testing.T, origin string) (*TokenStore, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "nested", "tokens.db")
	store, err := Open(dbPath, origin)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store, dbPath
}

func TestTokenStore_SetGetClear(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t, "https://api.example.com")

	_, ok, err := store.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "token-1"))
	got, ok, err := store.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "token-1", got)

	require.NoError(t, store.Clear(ctx))
	_, ok, err = store.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, store.Clear(ctx), "clear must be idempotent")
}

func TestTokenStore_Persistence(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "tokens.db")

	first, err := Open(dbPath, "http://localhost:5000")
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "survives-restart"))
	require.NoError(t, first.Close())

	second, err := Open(dbPath, "http://localhost:5000")
	require.NoError(t, err)
	defer second.Close()

	got, ok, err := second.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "survives-restart", got)
}

func TestTokenStore_OriginIsolation(t *testing.T) {
	ctx := context.Background()
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "shared.db"), 0o600, &bbolt.Options{Timeout: time.Second})
	require.NoError(t, err)
	defer db.Close()

	a, err := New(db, "https://a.example.com")
	require.NoError(t, err)
	b, err := New(db, "https://b.example.com")
	require.NoError(t, err)

	require.NoError(t, a.Set(ctx, "token-a"))

	_, ok, err := b.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "origin b must not see origin a's token")

	require.NoError(t, b.Set(ctx, "token-b"))
	require.NoError(t, b.Clear(ctx))

	got, ok, err := a.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "token-a", got)

	// A borrowed db is left open by Close.
	require.NoError(t, a.Close())
	_, _, err = a.Get(ctx)
	assert.NoError(t, err)
}

func TestNew_RejectsEmptyOrigin(t *testing.T) {
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "x.db"), 0o600, nil)
	require.NoError(t, err)
	defer db.Close()

	_, err = New(db, "")
	assert.Error(t, err)
}
