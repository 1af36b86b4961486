// Package storage resolves the platform-appropriate roots for cloned
// repositories, the on-disk cache and artifacts, and maps a repository URL
// to a stable local directory (spec.md §4.1, §6).
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/adrg/xdg"
	"github.com/pkg/errors"
)

// Paths is the process-wide Storage Paths service. It is read-only after
// initialization and safe to share across goroutines (spec.md §5).
type Paths struct {
	repoRoot  string
	cacheRoot string
}

var (
	instance     *Paths
	instanceOnce sync.Once
	instanceErr  error
)

// Instance returns the single process-wide Paths, initializing it (and
// creating its directories) on first access.
func Instance() (*Paths, error) {
	instanceOnce.Do(func() {
		instance, instanceErr = newPaths()
	})
	return instance, instanceErr
}

func newPaths() (*Paths, error) {
	// xdg.DataHome/xdg.CacheHome already implement the XDG_DATA_HOME /
	// XDG_CACHE_HOME-with-fallback-to-~/.local/share and ~/.cache behaviour
	// spec.md §4.1 describes, and resolve to the right per-user application
	// data directory on Windows too.
	p := &Paths{
		repoRoot:  filepath.Join(xdg.DataHome, "localci", "repos"),
		cacheRoot: filepath.Join(xdg.CacheHome, "localci"),
	}
	if err := p.ensureDirectories(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Paths) ensureDirectories() error {
	for _, dir := range []string{p.repoRoot, p.cacheRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "creating storage directory %s", dir)
		}
	}
	return nil
}

// RepoStorageRoot is the directory under which cloned repositories live.
func (p *Paths) RepoStorageRoot() string {
	return p.repoRoot
}

// CacheRoot is the directory under which cache entries and artifacts live.
func (p *Paths) CacheRoot() string {
	return p.cacheRoot
}

// RepoDirectory maps a repository URL to its stable local directory. The
// mapping is a pure function: equal URLs produce equal paths (spec.md §8).
func (p *Paths) RepoDirectory(repoURL string) string {
	return filepath.Join(p.repoRoot, RepoKey(repoURL))
}

// CacheDirectory maps a cache key to its entry directory
// (<cacheRoot>/cache/<sha256-hex(key)>).
func (p *Paths) CacheDirectory(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(p.cacheRoot, "cache", hex.EncodeToString(sum[:]))
}

// ArtifactPath maps a workflow id and artifact name to their on-disk path
// (<cacheRoot>/artifacts/<workflowId>/<name>). Directory artifacts are not
// supported in v1 (spec.md §6).
func (p *Paths) ArtifactPath(workflowID, name string) string {
	return filepath.Join(p.cacheRoot, "artifacts", workflowID, name)
}

var unsafeFilenameChars = strings.NewReplacer(
	":", "_", "?", "_", "*", "_", `"`, "_", "<", "_", ">", "_", "|", "_",
)

// RepoKey derives the stable, filesystem-safe directory name for repoURL:
// <host>/<owner>/<name>_<hash8>, with a trailing .git stripped and
// filesystem-unsafe characters substituted with `_`.
func RepoKey(repoURL string) string {
	host, path := splitRepoURL(repoURL)
	path = strings.TrimPrefix(path, "/")
	path = strings.TrimSuffix(path, ".git")

	sum := sha256.Sum256([]byte(repoURL))
	hash := hex.EncodeToString(sum[:])[:8]

	key := host + "/" + path + "_" + hash
	return unsafeFilenameChars.Replace(key)
}

func splitRepoURL(repoURL string) (host, path string) {
	u, err := url.Parse(repoURL)
	if err != nil || u.Host == "" {
		// Fall back to scp-like git remotes (git@host:owner/repo.git).
		if idx := strings.Index(repoURL, "@"); idx >= 0 {
			rest := repoURL[idx+1:]
			if c := strings.Index(rest, ":"); c >= 0 {
				return rest[:c], rest[c+1:]
			}
		}
		return "", repoURL
	}
	return u.Host, u.Path
}
