package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	dserrors "github.com/notorios/meli-token-manager/internal/errors"
	"github.com/notorios/meli-token-manager/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile_RoundTrip(t *testing.T) {
	f, err := NewFile(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, err)

	rec := token.New("A1", "R1", 3600, time.Unix(1_700_000_000, 0), token.OriginRotation)
	rec.TokenType = "Bearer"

	require.NoError(t, f.Write(rec))

	got, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestFile_MissingIsNotFound(t *testing.T) {
	f, err := NewFile(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, err)

	_, err = f.Read()
	require.Error(t, err)
	assert.True(t, dserrors.IsNotFound(err))
}

func TestFile_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "tokens.json")
	f, err := NewFile(path)
	require.NoError(t, err)

	rec := token.New("A1", "R1", 3600, time.Now(), token.OriginBootstrap)
	require.NoError(t, f.Write(rec))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFile_WriteUsesSharedFieldNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	f, err := NewFile(path)
	require.NoError(t, err)

	rec := token.New("A1", "R1", 3600, time.Unix(0, 0), token.OriginRotation)
	require.NoError(t, f.Write(rec))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"access_token", "refresh_token", "expires_in", "expires_at"} {
		assert.Contains(t, raw, key)
	}
	assert.EqualValues(t, 3600, raw["expires_at"], "expires_at written at t=0 with expires_in 3600")
}

func TestFile_OverwriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(filepath.Join(dir, "tokens.json"))
	require.NoError(t, err)

	first := token.New("A1", "R1", 3600, time.Now(), token.OriginBootstrap)
	second := token.New("A2", "R2", 3600, time.Now(), token.OriginRotation)
	require.NoError(t, f.Write(first))
	require.NoError(t, f.Write(second))

	got, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, "A2", got.AccessToken)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not survive a write")
}

func TestNewFile_EmptyPath(t *testing.T) {
	_, err := NewFile("")
	require.Error(t, err)
}
