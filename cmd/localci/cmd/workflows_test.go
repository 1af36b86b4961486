package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickWorkflowSingleMatchSkipsPrompt(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".github", "workflows")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	wf := filepath.Join(dir, "ci.yml")
	require.NoError(t, os.WriteFile(wf, []byte("jobs: {a: {runs-on: ubuntu-latest, steps: [{run: echo hi}]}}"), 0o644))

	picked, err := pickWorkflow(root)
	require.NoError(t, err)
	assert.Equal(t, wf, picked)
}

func TestPickWorkflowNoMatchesIsError(t *testing.T) {
	root := t.TempDir()
	_, err := pickWorkflow(root)
	assert.Error(t, err)
}
