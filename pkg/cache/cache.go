// Package cache saves and restores named sets of files across runs
// (spec.md §6), keyed the way a hosted workflow cache step is keyed.
// Grounded on original_source's CacheManager: files are copied into a
// sha256-hashed directory under the cache root. A bolthold-backed manifest
// index is layered on top so ListKeys and ClearAll don't need to walk the
// cache tree, which the original's QDir-based implementation always did.
package cache

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/timshannon/bolthold"

	"github.com/localci/localci/pkg/storage"
)

// boltOpenTimeout bounds how long opening the index waits on another
// process's lock before giving up.
const boltOpenTimeout = 5 * time.Second

// Entry is the manifest record kept for each cache key.
type Entry struct {
	Key       string `boltholdKey:"Key"`
	Files     []string
	CreatedAt int64
}

// ErrCacheMiss is returned by Restore when key has no cache entry.
var ErrCacheMiss = errors.New("cache miss")

// Manager saves and restores cache entries under a storage.Paths cache
// root, indexed in a bolthold store.
type Manager struct {
	paths *storage.Paths
	store *bolthold.Store
}

// New opens (creating if absent) the cache manifest index under
// paths.CacheRoot().
func New(paths *storage.Paths) (*Manager, error) {
	indexPath := filepath.Join(paths.CacheRoot(), "cache-index.db")
	store, err := bolthold.Open(indexPath, 0o644, &bolthold.Options{Options: &bolt.Options{Timeout: boltOpenTimeout}})
	if err != nil {
		return nil, errors.Wrap(err, "opening cache index")
	}
	return &Manager{paths: paths, store: store}, nil
}

// Close releases the underlying bolt database handle.
func (m *Manager) Close() error {
	return m.store.Close()
}

// Save copies each of paths's files into key's cache directory and records
// a manifest entry.
func (m *Manager) Save(key string, paths []string) error {
	dir := m.paths.CacheDirectory(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "creating cache directory")
	}

	var saved []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		dest := filepath.Join(dir, filepath.Base(p))
		if err := copyFile(p, dest); err != nil {
			return errors.Wrapf(err, "caching file %s", p)
		}
		saved = append(saved, filepath.Base(p))
	}

	entry := &Entry{Key: key, Files: saved, CreatedAt: time.Now().Unix()}
	return m.store.Upsert(key, entry)
}

// Restore copies key's cached files back to the corresponding entries in
// paths, matched positionally the way the original implementation does.
// Returns ErrCacheMiss if key was never saved.
func (m *Manager) Restore(key string, paths []string) error {
	if !m.HasCache(key) {
		return ErrCacheMiss
	}

	dir := m.paths.CacheDirectory(key)
	var entry Entry
	if err := m.store.Get(key, &entry); err != nil {
		return errors.Wrap(err, "reading cache manifest")
	}

	for i := 0; i < len(entry.Files) && i < len(paths); i++ {
		src := filepath.Join(dir, entry.Files[i])
		dest := paths[i]
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return errors.Wrap(err, "creating restore destination")
		}
		if err := copyFile(src, dest); err != nil {
			return errors.Wrapf(err, "restoring cached file %s", dest)
		}
	}
	return nil
}

// HasCache reports whether key has a saved manifest entry.
func (m *Manager) HasCache(key string) bool {
	var entry Entry
	return m.store.Get(key, &entry) == nil
}

// ListKeys returns every cache key currently recorded.
func (m *Manager) ListKeys() ([]string, error) {
	var entries []Entry
	if err := m.store.Find(&entries, nil); err != nil {
		return nil, errors.Wrap(err, "listing cache entries")
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	return keys, nil
}

// ClearCache removes key's cache directory and manifest entry.
func (m *Manager) ClearCache(key string) error {
	dir := m.paths.CacheDirectory(key)
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrap(err, "removing cache directory")
	}
	if err := m.store.Delete(key, &Entry{}); err != nil && !errors.Is(err, bolthold.ErrNotFound) {
		return errors.Wrap(err, "removing cache manifest entry")
	}
	return nil
}

// ClearAll wipes every cache entry and the cache directory tree.
func (m *Manager) ClearAll() error {
	keys, err := m.ListKeys()
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := m.ClearCache(key); err != nil {
			return err
		}
	}
	return os.RemoveAll(filepath.Join(m.paths.CacheRoot(), "cache"))
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

