// Package discovery enumerates workflow files under a repository's
// conventional workflow directory (spec.md §4.6). It performs no YAML
// validity check — that is pkg/parser's role.
package discovery

import (
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

const workflowsDir = ".github/workflows"

var workflowExtensions = map[string]bool{".yml": true, ".yaml": true}

// Discover returns the paths (repoRoot joined with the workflow directory
// and file name, so absolute only when repoRoot is) of every workflow file under
// <repoRoot>/.github/workflows: readable regular files with a .yml or .yaml
// extension, in directory order.
func Discover(repoRoot string) ([]string, error) {
	dir := filepath.Join(repoRoot, workflowsDir)

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	ignore := loadIgnore(repoRoot)

	var workflows []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !workflowExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}

		rel := filepath.Join(workflowsDir, entry.Name())
		if ignore != nil && ignore.MatchesPath(rel) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if !isReadableRegularFile(path) {
			continue
		}
		workflows = append(workflows, path)
	}

	return workflows, nil
}

// HasWorkflows reports whether repoRoot has at least one discoverable
// workflow file.
func HasWorkflows(repoRoot string) bool {
	workflows, err := Discover(repoRoot)
	return err == nil && len(workflows) > 0
}

func isReadableRegularFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

// loadIgnore reads repoRoot/.gitignore, if present, so a repository's own
// ignored or generated workflow copies are not double-discovered. Absence of
// a .gitignore is not an error.
func loadIgnore(repoRoot string) *gitignore.GitIgnore {
	ign, err := gitignore.CompileIgnoreFile(filepath.Join(repoRoot, ".gitignore"))
	if err != nil {
		return nil
	}
	return ign
}
