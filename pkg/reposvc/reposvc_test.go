package reposvc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localci/localci/pkg/storage"
)

func newTestPaths(t *testing.T) *storage.Paths {
	t.Helper()
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	p, err := storage.Instance()
	require.NoError(t, err)
	return p
}

func TestIsClonedFalseForUnclonedRepo(t *testing.T) {
	m := New(newTestPaths(t), nil)
	assert.False(t, m.IsCloned("https://example.com/owner/repo.git"))
}

func TestIsClonedTrueWhenGitDirPresent(t *testing.T) {
	paths := newTestPaths(t)
	m := New(paths, nil)

	localPath := m.GetLocalPath("https://example.com/owner/repo.git")
	require.NoError(t, os.MkdirAll(filepath.Join(localPath, ".git"), 0o755))

	assert.True(t, m.IsCloned("https://example.com/owner/repo.git"))
}

func TestCloneRepositoryRejectsAlreadyCloned(t *testing.T) {
	paths := newTestPaths(t)
	m := New(paths, nil)

	localPath := m.GetLocalPath("https://example.com/owner/repo.git")
	require.NoError(t, os.MkdirAll(filepath.Join(localPath, ".git"), 0o755))

	err := m.CloneRepository(nil, "https://example.com/owner/repo.git", "")
	assert.Error(t, err)
}

func TestListRepositoriesFindsGitDirs(t *testing.T) {
	paths := newTestPaths(t)
	m := New(paths, nil)

	local := m.GetLocalPath("https://example.com/owner/repo.git")
	require.NoError(t, os.MkdirAll(filepath.Join(local, ".git"), 0o755))

	repos := m.ListRepositories()
	assert.Contains(t, repos, local)
}
