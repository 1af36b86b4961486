// Package actioncache resolves a `uses:` action reference (owner/repo@ref)
// to a pinned commit and hands back that commit's tree as a tar stream, so
// a backend can stage an action's code into a sandbox without a full
// working-copy clone per step. Adapted from the teacher's
// pkg/runner/action_cache.go, which does the same job for the hosted
// action-cache protocol: fetch a single ref into an anonymous branch of a
// bare local mirror, resolve it to a commit, then walk that commit's tree.
package actioncache

import (
	"archive/tar"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/Masterminds/semver"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// Cache fetches and resolves action references against a bare local mirror
// cached under Path.
type Cache struct {
	Path string
}

// New returns a Cache storing its bare mirrors under path.
func New(path string) *Cache {
	return &Cache{Path: path}
}

// Fetch pulls ref (a branch, tag, or exact SHA) of the repository at url
// into cacheDir's bare mirror and returns the commit SHA it resolved to.
func (c *Cache) Fetch(ctx context.Context, cacheDir, url, ref, token string) (string, error) {
	gitPath := path.Join(c.Path, safeFilename(cacheDir)+".git")
	repo, err := git.PlainInit(gitPath, true)
	if errors.Is(err, git.ErrRepositoryAlreadyExists) {
		repo, err = git.PlainOpen(gitPath)
	}
	if err != nil {
		return "", err
	}

	branchName, err := randomBranchName()
	if err != nil {
		return "", err
	}

	var refSpec config.RefSpec
	spec := config.RefSpec(ref + ":" + branchName)
	tagOrSHA := false
	switch {
	case spec.IsExactSHA1():
		refSpec = spec
	case strings.HasPrefix(ref, "refs/"):
		refSpec = config.RefSpec(ref + ":refs/heads/" + branchName)
	default:
		tagOrSHA = true
		refSpec = config.RefSpec("refs/*/" + ref + ":refs/heads/*/" + branchName)
	}

	var auth transport.AuthMethod
	if token != "" {
		auth = &http.BasicAuth{Username: "token", Password: token}
	}

	remote, err := repo.CreateRemoteAnonymous(&config.RemoteConfig{Name: "anonymous", URLs: []string{url}})
	if err != nil {
		return "", err
	}
	defer cleanupBranch(repo, branchName)

	if err := remote.FetchContext(ctx, &git.FetchOptions{
		RefSpecs: []config.RefSpec{refSpec},
		Auth:     auth,
		Force:    true,
	}); err != nil {
		return "", err
	}

	if tagOrSHA {
		for _, prefix := range []string{"refs/heads/tags/", "refs/heads/heads/"} {
			if hash, err := repo.ResolveRevision(plumbing.Revision(prefix + branchName)); err == nil {
				return hash.String(), nil
			}
		}
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(branchName))
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

// ResolveVersion picks the highest semver tag among candidates satisfying
// constraint (e.g. "^3.0.0" for a `uses: actions/checkout@v3` reference).
// It returns the matching tag verbatim, or an error if none satisfy it.
func ResolveVersion(constraint string, candidates []string) (string, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return "", err
	}

	type tagVersion struct {
		tag string
		ver *semver.Version
	}
	var versions []tagVersion
	for _, tag := range candidates {
		v, err := semver.NewVersion(strings.TrimPrefix(tag, "v"))
		if err != nil {
			continue
		}
		if c.Check(v) {
			versions = append(versions, tagVersion{tag: tag, ver: v})
		}
	}
	if len(versions) == 0 {
		return "", errors.New("no tag satisfies constraint " + constraint)
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i].ver.LessThan(versions[j].ver) })
	return versions[len(versions)-1].tag, nil
}

// GetTarArchive walks the commit sha resolved for cacheDir and writes the
// subtree rooted at fpath as a tar stream.
func (c *Cache) GetTarArchive(ctx context.Context, cacheDir, sha, fpath string) (io.ReadCloser, error) {
	gitPath := path.Join(c.Path, safeFilename(cacheDir)+".git")
	repo, err := git.PlainOpen(gitPath)
	if err != nil {
		return nil, err
	}
	commit, err := repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, err
	}
	files, err := commit.Files()
	if err != nil {
		return nil, err
	}

	rpipe, wpipe := io.Pipe()
	go func() {
		defer wpipe.Close()
		tw := tar.NewWriter(wpipe)
		defer tw.Close()
		clean := path.Clean(fpath)

		_ = files.ForEach(func(f *object.File) error {
			name := f.Name
			switch {
			case strings.HasPrefix(name, clean+"/"):
				name = name[len(clean)+1:]
			case clean != "." && name != clean:
				return nil
			}

			mode, err := f.Mode.ToOSFileMode()
			if err != nil {
				return err
			}
			if mode&fs.ModeSymlink == fs.ModeSymlink {
				content, err := f.Contents()
				if err != nil {
					return err
				}
				return tw.WriteHeader(&tar.Header{Name: name, Mode: int64(mode), Linkname: content})
			}

			if err := tw.WriteHeader(&tar.Header{Name: name, Mode: int64(mode), Size: f.Size}); err != nil {
				return err
			}
			reader, err := f.Reader()
			if err != nil {
				return err
			}
			defer reader.Close()
			_, err = io.Copy(tw, reader)
			return err
		})
	}()
	return rpipe, nil
}

func cleanupBranch(repo *git.Repository, branchName string) {
	refs, err := repo.References()
	if err != nil {
		return
	}
	_ = refs.ForEach(func(r *plumbing.Reference) error {
		if strings.Contains(r.Name().String(), branchName) {
			return repo.DeleteBranch(r.Name().String())
		}
		return nil
	})
}

func randomBranchName() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// safeFilename replaces characters that are awkward in a directory name
// with an underscore.
func safeFilename(s string) string {
	return strings.NewReplacer(
		"/", "_", ":", "_", "*", "_", "?", "_", `"`, "_", "<", "_", ">", "_", "|", "_",
	).Replace(s)
}
