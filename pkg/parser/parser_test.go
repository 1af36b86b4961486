package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	gotestassert "gotest.tools/v3/assert"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.yml")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseHelloWorkflow(t *testing.T) {
	path := writeFixture(t, `
name: hello
on: push
jobs:
  a:
    runs-on: ubuntu-latest
    steps:
      - run: echo hi
`)
	p := New()
	wf, errs := p.Parse(path)
	assert.Empty(t, errs)
	assert.Equal(t, "hello", wf.Name)
	assert.Equal(t, []string{"a"}, wf.JobIDs())
	assert.Equal(t, "ubuntu-latest", wf.GetJob("a").RunsOnSpec())
}

func TestParseNeedsScalarBecomesList(t *testing.T) {
	path := writeFixture(t, `
jobs:
  a:
    runs-on: ubuntu-latest
    steps: []
  b:
    runs-on: ubuntu-latest
    needs: a
    steps: []
`)
	wf, errs := New().Parse(path)
	assert.Empty(t, errs)
	assert.Equal(t, []string{"a"}, wf.GetJob("b").Needs())
}

func TestParseUnknownStepKeysAreDropped(t *testing.T) {
	path := writeFixture(t, `
jobs:
  a:
    runs-on: ubuntu-latest
    steps:
      - run: echo hi
        totally-unrecognized: true
`)
	wf, errs := New().Parse(path)
	assert.Empty(t, errs)
	assert.Equal(t, "echo hi", wf.GetJob("a").Steps[0].Run)
}

func TestParseMalformedYAMLNeverPanics(t *testing.T) {
	path := writeFixture(t, "jobs: [this is not a mapping\n")
	wf, errs := New().Parse(path)
	assert.NotNil(t, wf)
	assert.NotEmpty(t, errs)
}

func TestParseBadNeedsShapeRecordsError(t *testing.T) {
	path := writeFixture(t, `
jobs:
  a:
    runs-on: ubuntu-latest
    needs:
      nested: mapping
    steps: []
`)
	_, errs := New().Parse(path)
	assert.NotEmpty(t, errs)
}

func TestParseIdempotent(t *testing.T) {
	path := writeFixture(t, `
jobs:
  b:
    runs-on: ubuntu-latest
  a:
    runs-on: ubuntu-latest
`)
	p := New()
	wf1, _ := p.Parse(path)
	wf2, _ := p.Parse(path)
	gotestassert.DeepEqual(t, wf1.JobIDs(), wf2.JobIDs())
}
