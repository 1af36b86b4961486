package matrix

import (
	"testing"

	"github.com/localci/localci/pkg/model"
	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func jobFromYAML(t *testing.T, src string) *model.Job {
	t.Helper()
	wf := new(model.Workflow)
	full := "jobs:\n  t:\n" + indent(src)
	assert.NoError(t, yaml.Unmarshal([]byte(full), wf))
	return wf.GetJob("t")
}

func indent(s string) string {
	out := ""
	for _, line := range splitLines(s) {
		if line == "" {
			continue
		}
		out += "    " + line + "\n"
	}
	return out
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func TestExpandNoMatrixReturnsSameJob(t *testing.T) {
	job := jobFromYAML(t, "runs-on: ubuntu-latest\n")
	jobs := Expand(job)
	assert.Len(t, jobs, 1)
	assert.Same(t, job, jobs[0])
}

func TestExpandCardinalityAndOrder(t *testing.T) {
	job := jobFromYAML(t, `
name: t
runs-on: ubuntu-latest
strategy:
  matrix:
    os: [ubuntu-latest, ubuntu-20.04]
    node: [18, 20]
`)
	ids, jobs := ExpandWithID("t", job)
	assert.Len(t, jobs, 4)
	assert.Equal(t, []string{
		"t(os=ubuntu-latest, node=18)",
		"t(os=ubuntu-latest, node=20)",
		"t(os=ubuntu-20.04, node=18)",
		"t(os=ubuntu-20.04, node=20)",
	}, ids)

	seen := make(map[string]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}

	assert.Equal(t, "ubuntu-latest", jobs[0].Env["matrix.os"])
	assert.Equal(t, "18", jobs[0].Env["matrix.node"])
	assert.Equal(t, "t (os=ubuntu-20.04, node=18)", jobs[2].Name)
}

func TestExpandEmptyMatrixYieldsZeroJobs(t *testing.T) {
	job := jobFromYAML(t, `
runs-on: ubuntu-latest
strategy:
  matrix: {}
`)
	assert.True(t, job.MatrixDeclared())
	assert.False(t, job.HasMatrix())
	jobs := Expand(job)
	assert.Len(t, jobs, 0)
}
