package doctor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWorkflow(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ci.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCheckWorkflowFlagsWorkflowCall(t *testing.T) {
	path := writeWorkflow(t, `
on:
  workflow_call: {}
jobs:
  a:
    runs-on: ubuntu-latest
    steps: [{run: "echo hi"}]
`)
	report, err := CheckWorkflow(path)
	require.NoError(t, err)
	assert.Greater(t, report.Warnings(), 0)
	assert.Equal(t, 0, report.ExitCode())
}

func TestCheckWorkflowFlagsMacOSAsError(t *testing.T) {
	path := writeWorkflow(t, `
jobs:
  a:
    runs-on: macos-latest
    steps: [{run: "echo hi"}]
`)
	report, err := CheckWorkflow(path)
	require.NoError(t, err)
	assert.Greater(t, report.Errors(), 0)
	assert.Equal(t, 1, report.ExitCode())
}

func TestCheckWorkflowFlagsMissingDependency(t *testing.T) {
	path := writeWorkflow(t, `
jobs:
  a:
    runs-on: ubuntu-latest
    needs: b
    steps: [{run: "echo hi"}]
`)
	report, err := CheckWorkflow(path)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ExitCode())

	found := false
	for _, c := range report.Checks {
		if c.Severity == SeverityError {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCheckWorkflowCleanWorkflowHasNoIssues(t *testing.T) {
	path := writeWorkflow(t, `
on: push
jobs:
  a:
    runs-on: ubuntu-latest
    steps: [{run: "echo hi"}]
`)
	report, err := CheckWorkflow(path)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Issues())
}

func TestCheckBackendsNoneAvailableIsError(t *testing.T) {
	probe := func(ctx context.Context, binary string) (string, bool) {
		return "", false
	}
	report := CheckBackends(context.Background(), probe)
	assert.Equal(t, 1, report.Errors())
	assert.Equal(t, 1, report.Warnings())
}

func TestCheckBackendsDockerAvailableIsOK(t *testing.T) {
	probe := func(ctx context.Context, binary string) (string, bool) {
		if binary == "docker" {
			return "24.0.5", true
		}
		return "", false
	}
	report := CheckBackends(context.Background(), probe)
	assert.Equal(t, 0, report.Errors())
}
