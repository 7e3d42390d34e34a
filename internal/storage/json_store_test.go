// ABOUTME: Tests for the single-document JSON backend.
// ABOUTME: Covers missing files, corrupt or foreign documents, and failed writes.
package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONStoreMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "none", "entries.json")
	store, err := NewJSONStore(path, nil)
	require.NoError(t, err)

	entries, err := store.LoadAllEntries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "loading must not create the file")
}

func TestJSONStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	store, err := NewJSONStore(path, nil)
	require.NoError(t, err)

	_, err = store.LoadAllEntries(context.Background())
	assert.True(t, errors.Is(err, ErrData))
}

func TestJSONStoreRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 9, "next_id": 0, "entries": []}`), 0o600))
	store, err := NewJSONStore(path, nil)
	require.NoError(t, err)

	_, err = store.LoadAllEntries(context.Background())
	assert.True(t, errors.Is(err, ErrData))
}

func TestJSONStoreFailedWriteKeepsState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entries.json")
	store, err := NewJSONStore(path, nil)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := store.AddEntry(ctx, draft("kept", baseDate))
	require.NoError(t, err)

	// A non-empty directory at the target path makes the rename fail.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.MkdirAll(filepath.Join(path, "child"), 0o750))

	_, err = store.AddEntry(ctx, draft("lost", baseDate))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrData))

	dto, err := store.GetExportObject(ctx, []uint32{first.ID, first.ID + 1})
	require.NoError(t, err)
	require.Len(t, dto.Entries, 1)
	assert.Equal(t, "kept", dto.Entries[0].Title)
}

func TestNewJSONStoreRequiresPath(t *testing.T) {
	_, err := NewJSONStore("", nil)
	assert.Error(t, err)
}
