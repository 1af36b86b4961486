// Package artifact uploads and downloads the single files a workflow run
// produces or consumes (spec.md §6). Grounded on original_source's
// ArtifactManager: directory artifacts are explicitly unsupported in v1,
// matching the original's stub.
package artifact

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/localci/localci/pkg/storage"
)

// ErrDirectoryArtifact is returned by Upload when path names a directory.
// Archiving directory artifacts is out of scope for v1.
var ErrDirectoryArtifact = errors.New("directory artifacts not yet implemented")

// ErrNotFound is returned by Download when the named artifact does not
// exist for workflowID.
var ErrNotFound = errors.New("artifact not found")

// Manager stores and retrieves per-workflow-run artifacts under a
// storage.Paths cache root.
type Manager struct {
	paths *storage.Paths
}

// New returns a Manager rooted at paths.
func New(paths *storage.Paths) *Manager {
	return &Manager{paths: paths}
}

// Upload copies the single file at path into workflowID's artifact
// directory under name.
func (m *Manager) Upload(name, path, workflowID string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "stating artifact source %s", path)
	}
	if info.IsDir() {
		return ErrDirectoryArtifact
	}

	dest := m.paths.ArtifactPath(workflowID, name)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrap(err, "creating artifact directory")
	}
	return copyFile(path, dest)
}

// Download copies workflowID's artifact named name to destinationPath.
func (m *Manager) Download(name, workflowID, destinationPath string) error {
	src := m.paths.ArtifactPath(workflowID, name)
	if _, err := os.Stat(src); err != nil {
		return errors.Wrapf(ErrNotFound, "%s", name)
	}
	if err := os.MkdirAll(filepath.Dir(destinationPath), 0o755); err != nil {
		return errors.Wrap(err, "creating download destination")
	}
	return copyFile(src, destinationPath)
}

// List returns the artifact names stored for workflowID.
func (m *Manager) List(workflowID string) ([]string, error) {
	dir := filepath.Dir(m.paths.ArtifactPath(workflowID, "placeholder"))
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "listing artifacts")
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
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
