package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localci/localci/pkg/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	paths, err := storage.Instance()
	require.NoError(t, err)

	m, err := New(paths)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestSaveAndRestoreRoundTrip(t *testing.T) {
	m := newTestManager(t)

	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "deps.lock")
	require.NoError(t, os.WriteFile(src, []byte("locked"), 0o644))

	require.NoError(t, m.Save("deps-key", []string{src}))
	assert.True(t, m.HasCache("deps-key"))

	destDir := t.TempDir()
	dest := filepath.Join(destDir, "deps.lock")
	require.NoError(t, m.Restore("deps-key", []string{dest}))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "locked", string(data))
}

func TestRestoreMissingKeyIsCacheMiss(t *testing.T) {
	m := newTestManager(t)
	err := m.Restore("nope", []string{"/tmp/whatever"})
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestClearCacheRemovesEntry(t *testing.T) {
	m := newTestManager(t)
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "f")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))
	require.NoError(t, m.Save("k", []string{src}))

	require.NoError(t, m.ClearCache("k"))
	assert.False(t, m.HasCache("k"))
}

func TestListKeys(t *testing.T) {
	m := newTestManager(t)
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "f")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	require.NoError(t, m.Save("a", []string{src}))
	require.NoError(t, m.Save("b", []string{src}))

	keys, err := m.ListKeys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)
}
