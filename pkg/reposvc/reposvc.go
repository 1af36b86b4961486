// Package reposvc clones and updates the working copies the engine runs
// workflows against, mapping each repository URL onto the stable local
// directory pkg/storage resolves (spec.md §4.1, §6). Grounded on
// original_source's RepoManager, translated from a `git` subprocess onto
// in-process go-git. Clone progress is reported as two fixed milestones
// (10% when the clone starts, 100% when it completes); go-git's own
// transfer progress is not forwarded.
package reposvc

import (
	"context"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/localci/localci/pkg/storage"
)

// ProgressFunc receives clone/update progress as a percentage and a short
// human-readable phase, mirroring the original's cloneProgress(pct, phase)
// signal.
type ProgressFunc func(percent int, phase string)

// Manager clones and refreshes repository working copies under the
// process's storage root.
type Manager struct {
	paths    *storage.Paths
	logger   *logrus.Entry
	progress ProgressFunc
}

// New returns a Manager rooted at paths. If progress is nil, progress
// notifications are discarded.
func New(paths *storage.Paths, progress ProgressFunc) *Manager {
	if progress == nil {
		progress = func(int, string) {}
	}
	return &Manager{paths: paths, logger: logrus.WithField("component", "reposvc"), progress: progress}
}

// CloneRepository clones repoURL (optionally at branch) into its mapped
// local directory. Cloning an already-cloned repository is an error, per
// the original's guard.
func (m *Manager) CloneRepository(ctx context.Context, repoURL, branch string) error {
	localPath := m.paths.RepoDirectory(repoURL)
	if m.IsCloned(repoURL) {
		return errors.Errorf("repository already cloned at: %s", localPath)
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return errors.Wrap(err, "creating repo parent directory")
	}

	m.progress(10, "cloning repository...")

	opts := &git.CloneOptions{URL: repoURL}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
		opts.SingleBranch = true
	}

	_, err := git.PlainCloneContext(ctx, localPath, false, opts)
	if err != nil {
		return errors.Wrap(err, "git clone failed")
	}

	m.progress(100, "clone completed")
	return nil
}

// UpdateRepository fast-forwards an already-cloned repository's current
// branch.
func (m *Manager) UpdateRepository(ctx context.Context, repoURL string) error {
	localPath := m.GetLocalPath(repoURL)
	if !m.IsCloned(repoURL) {
		return errors.Errorf("repository not cloned: %s", repoURL)
	}

	repo, err := git.PlainOpen(localPath)
	if err != nil {
		return errors.Wrap(err, "opening repository")
	}
	wt, err := repo.Worktree()
	if err != nil {
		return errors.Wrap(err, "opening worktree")
	}

	err = wt.PullContext(ctx, &git.PullOptions{})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return errors.Wrap(err, "git pull failed")
	}
	return nil
}

// GetLocalPath returns the local directory repoURL maps to, whether or not
// it has been cloned yet.
func (m *Manager) GetLocalPath(repoURL string) string {
	return m.paths.RepoDirectory(repoURL)
}

// IsCloned reports whether repoURL's mapped directory is a git working copy.
func (m *Manager) IsCloned(repoURL string) bool {
	localPath := m.GetLocalPath(repoURL)
	info, err := os.Stat(filepath.Join(localPath, ".git"))
	return err == nil && (info.IsDir() || info.Mode().IsRegular())
}

// ListRepositories walks the storage root for every
// <host>/<owner>/<name_hash> directory that looks like a git working copy.
func (m *Manager) ListRepositories() []string {
	root := m.paths.RepoStorageRoot()
	var repos []string

	hosts, err := os.ReadDir(root)
	if err != nil {
		return repos
	}
	for _, host := range hosts {
		if !host.IsDir() {
			continue
		}
		hostPath := filepath.Join(root, host.Name())
		owners, err := os.ReadDir(hostPath)
		if err != nil {
			continue
		}
		for _, owner := range owners {
			if !owner.IsDir() {
				continue
			}
			ownerPath := filepath.Join(hostPath, owner.Name())
			entries, err := os.ReadDir(ownerPath)
			if err != nil {
				continue
			}
			for _, entry := range entries {
				if !entry.IsDir() {
					continue
				}
				repoPath := filepath.Join(ownerPath, entry.Name())
				if _, err := os.Stat(filepath.Join(repoPath, ".git")); err == nil {
					repos = append(repos, repoPath)
				}
			}
		}
	}
	return repos
}
