package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageDeleteIdempotent(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("cert.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)

	require.NoError(t, store.Delete("cert.pdf"))
	// Second delete races with nothing; already-gone is success.
	require.NoError(t, store.Delete("cert.pdf"))
	assert.False(t, store.Exists("cert.pdf"))
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = store.Save("old.pdf", []byte("old"))
	require.NoError(t, err)
	_, err = store.Save("fresh.zip", []byte("fresh"))
	require.NoError(t, err)
	_, err = store.Save("notes.txt", []byte("kept"))
	require.NoError(t, err)

	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.pdf"), stale, stale))
	require.NoError(t, os.Chtimes(filepath.Join(dir, "notes.txt"), stale, stale))

	deleted, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old.pdf"}, deleted)
	assert.True(t, store.Exists("fresh.zip"))
	// Only PDF/ZIP artifacts are swept.
	assert.True(t, store.Exists("notes.txt"))
}

func TestLocalStorageStats(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("a.pdf", []byte("aaaa"))
	require.NoError(t, err)
	_, err = store.Save("b.zip", []byte("bb"))
	require.NoError(t, err)

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.True(t, stats.Exists)
	assert.Equal(t, 2, stats.TotalFiles)
	assert.Equal(t, 1, stats.PDFCount)
	assert.Equal(t, 1, stats.ZIPCount)
}

func TestSignedURLSignerRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	token, expiresAt, err := signer.Generate("uuid-1", "uuid-1.pdf")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	id, relPath, _, err := signer.Parse(token, false)
	require.NoError(t, err)
	assert.Equal(t, "uuid-1", id)
	assert.Equal(t, "uuid-1.pdf", relPath)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	token, _, err := signer.Generate("uuid-1", "uuid-1.pdf")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token+"x", false)
	assert.Error(t, err)

	other := NewSignedURLSigner("other", time.Hour)
	_, _, _, err = other.Parse(token, false)
	assert.Error(t, err)
}
