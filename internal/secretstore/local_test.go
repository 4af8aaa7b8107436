package secretstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	dserrors "github.com/notorios/meli-token-manager/internal/errors"
	"github.com/notorios/meli-token-manager/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_ReadLatestOnEmptyStoreIsNotFound(t *testing.T) {
	store, err := NewLocal(t.TempDir(), "meli-tokens")
	require.NoError(t, err)

	_, err = store.ReadLatest(context.Background())
	require.Error(t, err)
	assert.True(t, dserrors.IsNotFound(err))
}

func TestLocal_AddVersionAndReadLatest(t *testing.T) {
	store, err := NewLocal(t.TempDir(), "meli-tokens")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.EnsureSecret(ctx))

	first := token.New("A1", "R1", 3600, time.Unix(1_700_000_000, 0), token.OriginBootstrap)
	second := token.New("A2", "R2", 3600, time.Unix(1_700_003_600, 0), token.OriginRotation)

	require.NoError(t, store.AddVersion(ctx, first))
	got, err := store.ReadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	require.NoError(t, store.AddVersion(ctx, second))
	got, err = store.ReadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, got, "latest always wins")
}

func TestLocal_EnsureSecretIsIdempotent(t *testing.T) {
	store, err := NewLocal(t.TempDir(), "meli-tokens")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.EnsureSecret(ctx))
	require.NoError(t, store.EnsureSecret(ctx))
}

func TestLocal_VersionsAreOrderedFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocal(dir, "meli-tokens")
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec := token.New("A", "R", 3600, time.Now(), token.OriginRotation)
		require.NoError(t, store.AddVersion(ctx, rec))
	}

	entries, err := os.ReadDir(filepath.Join(dir, "meli-tokens"))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "000001.json", entries[0].Name())
	assert.Equal(t, "000003.json", entries[2].Name())
}

func TestLocal_CancelledContext(t *testing.T) {
	store, err := NewLocal(t.TempDir(), "meli-tokens")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.ReadLatest(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
