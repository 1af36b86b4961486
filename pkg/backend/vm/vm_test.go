package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/localci/localci/pkg/backend"
)

func TestMapRunsOnToVMImage(t *testing.T) {
	cases := map[string]string{
		"ubuntu-latest":  "ubuntu-22.04.qcow2",
		"ubuntu-20.04":   "ubuntu-20.04.qcow2",
		"windows-latest": "windows-2022.qcow2",
		"macos-latest":   defaultImage,
	}
	for runsOn, want := range cases {
		assert.Equal(t, want, mapRunsOnToVMImage(runsOn), "runsOn=%s", runsOn)
	}
}

func TestExecuteStepBeforePrepareIsError(t *testing.T) {
	b := New(backend.NopEvents{})
	err := b.ExecuteStep(nil, &backend.Step{ID: "s1", Run: "echo hi"}, backend.StepContext{})
	assert.Error(t, err)
}

func TestCleanupWithoutPrepareIsNoop(t *testing.T) {
	b := New(backend.NopEvents{})
	assert.NoError(t, b.Cleanup(nil))
}
