package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/localci/localci/pkg/backend"
	"github.com/localci/localci/pkg/model"
)

// fakeBackend succeeds unless its step's Run command is exactly "exit 1",
// matching the literal fixtures in spec.md §8's end-to-end scenarios.
type fakeBackend struct {
	prepareCalls int
	cleanupCalls int
	lastStepEnv  map[string]string
}

func (f *fakeBackend) PrepareEnvironment(ctx context.Context, runsOn string) error {
	f.prepareCalls++
	return nil
}

func (f *fakeBackend) ExecuteStep(ctx context.Context, step *backend.Step, stepCtx backend.StepContext) error {
	f.lastStepEnv = stepCtx.Env
	if stepCtx.Events != nil {
		stepCtx.Events.Output(step.Run + "\n")
	}
	if step.Run == "exit 1" {
		return assert.AnError
	}
	return nil
}

func (f *fakeBackend) Cleanup(ctx context.Context) error {
	f.cleanupCalls++
	return nil
}

func workflowFromYAML(t *testing.T, src string) *model.Workflow {
	t.Helper()
	wf := new(model.Workflow)
	require.NoError(t, yaml.Unmarshal([]byte(src), wf))
	return wf
}

func TestExecuteWorkflowHello(t *testing.T) {
	wf := workflowFromYAML(t, `
jobs:
  a:
    runs-on: ubuntu-latest
    steps:
      - run: echo hi
`)
	rec := &RecordingEvents{}
	ok, err := New().ExecuteWorkflow(context.Background(), wf, &fakeBackend{}, rec)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{
		"job-started:a",
		"step-started:a:echo hi",
		"step-output:a:echo hi",
		"step-finished:a:echo hi:true",
		"job-finished:a:true",
		"execution-finished:true",
	}, rec.Events)
}

func TestExecuteWorkflowEmitsStepOutputBetweenStartAndFinish(t *testing.T) {
	wf := workflowFromYAML(t, `
jobs:
  a:
    runs-on: ubuntu-latest
    steps:
      - run: echo hi
`)
	rec := &RecordingEvents{}
	ok, err := New().ExecuteWorkflow(context.Background(), wf, &fakeBackend{}, rec)
	require.NoError(t, err)
	assert.True(t, ok)

	startIdx, outputIdx, finishIdx := -1, -1, -1
	for i, e := range rec.Events {
		switch e {
		case "step-started:a:echo hi":
			startIdx = i
		case "step-output:a:echo hi":
			outputIdx = i
		case "step-finished:a:echo hi:true":
			finishIdx = i
		}
	}
	require.NotEqual(t, -1, startIdx)
	require.NotEqual(t, -1, outputIdx)
	require.NotEqual(t, -1, finishIdx)
	assert.True(t, startIdx < outputIdx && outputIdx < finishIdx,
		"expected stepOutput between stepStarted and stepFinished, got order %v", rec.Events)
}

func TestExecuteWorkflowLinearChain(t *testing.T) {
	wf := workflowFromYAML(t, `
jobs:
  a:
    runs-on: ubuntu-latest
    steps: [{run: "echo a"}]
  b:
    runs-on: ubuntu-latest
    needs: a
    steps: [{run: "echo b"}]
  c:
    runs-on: ubuntu-latest
    needs: b
    steps: [{run: "echo c"}]
`)
	rec := &RecordingEvents{}
	ok, err := New().ExecuteWorkflow(context.Background(), wf, &fakeBackend{}, rec)
	require.NoError(t, err)
	assert.True(t, ok)

	var finishOrder []string
	for _, e := range rec.Events {
		if len(e) > 13 && e[:13] == "job-finished:" {
			finishOrder = append(finishOrder, e)
		}
	}
	assert.Equal(t, []string{"job-finished:a:true", "job-finished:b:true", "job-finished:c:true"}, finishOrder)
}

func TestExecuteWorkflowFanInFailure(t *testing.T) {
	wf := workflowFromYAML(t, `
jobs:
  a:
    runs-on: ubuntu-latest
    steps: [{run: "exit 1"}]
  b:
    runs-on: ubuntu-latest
    steps: [{run: "echo b"}]
  c:
    runs-on: ubuntu-latest
    needs: [a, b]
    steps: [{run: "echo c"}]
`)
	rec := &RecordingEvents{}
	ok, err := New().ExecuteWorkflow(context.Background(), wf, &fakeBackend{}, rec)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Contains(t, rec.Events, "job-finished:a:false")
	assert.Contains(t, rec.Events, "job-finished:b:true")
	assert.Contains(t, rec.Events, "job-finished:c:false")
	for _, e := range rec.Events {
		assert.NotContains(t, e, "step-started:c:")
	}
	assert.Equal(t, "execution-finished:false", rec.Events[len(rec.Events)-1])
}

func TestExecuteWorkflowMissingDependency(t *testing.T) {
	wf := workflowFromYAML(t, `
jobs:
  a:
    runs-on: ubuntu-latest
    needs: b
    steps: [{run: "echo a"}]
`)
	rec := &RecordingEvents{}
	ok, err := New().ExecuteWorkflow(context.Background(), wf, &fakeBackend{}, rec)
	require.Error(t, err)
	assert.False(t, ok)

	found := false
	for _, e := range rec.Events {
		if len(e) >= 6 && e[:6] == "error:" {
			found = true
		}
	}
	assert.True(t, found, "expected an error event, got %v", rec.Events)
}

func TestExecuteWorkflowMatrixExpansionOrdersJobsAndWaitsForAll(t *testing.T) {
	wf := workflowFromYAML(t, `
jobs:
  t:
    runs-on: ubuntu-latest
    strategy:
      matrix:
        n: [1, 2, 3]
    steps: [{run: "echo t"}]
  after:
    runs-on: ubuntu-latest
    needs: t
    steps: [{run: "echo after"}]
`)
	rec := &RecordingEvents{}
	ok, err := New().ExecuteWorkflow(context.Background(), wf, &fakeBackend{}, rec)
	require.NoError(t, err)
	assert.True(t, ok)

	startedCount := 0
	afterIdx, lastMatrixFinishIdx := -1, -1
	for i, e := range rec.Events {
		if e == "job-started:t(n=1)" || e == "job-started:t(n=2)" || e == "job-started:t(n=3)" {
			startedCount++
		}
		if e == "job-finished:t(n=1):true" || e == "job-finished:t(n=2):true" || e == "job-finished:t(n=3):true" {
			lastMatrixFinishIdx = i
		}
		if e == "job-started:after" {
			afterIdx = i
		}
	}
	assert.Equal(t, 3, startedCount)
	require.NotEqual(t, -1, afterIdx)
	assert.Greater(t, afterIdx, lastMatrixFinishIdx)
}

func TestExecuteWorkflowRejectsConcurrentRuns(t *testing.T) {
	wf := workflowFromYAML(t, `
jobs:
  a:
    runs-on: ubuntu-latest
    steps: [{run: "echo hi"}]
`)
	s := New()
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	ok, err := s.ExecuteWorkflow(context.Background(), wf, &fakeBackend{}, &RecordingEvents{})
	assert.False(t, ok)
	assert.ErrorIs(t, err, errAlreadyRunning)
}

func TestExecuteWorkflowThreadsWorkflowEnvIntoStepEnv(t *testing.T) {
	wf := workflowFromYAML(t, `
env:
  FROM_WORKFLOW: workflow-value
  OVERRIDDEN: workflow-value
jobs:
  a:
    runs-on: ubuntu-latest
    env:
      OVERRIDDEN: job-value
    steps:
      - run: echo hi
`)
	be := &fakeBackend{}
	ok, err := New().ExecuteWorkflow(context.Background(), wf, be, &RecordingEvents{})
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, "workflow-value", be.lastStepEnv["FROM_WORKFLOW"])
	assert.Equal(t, "job-value", be.lastStepEnv["OVERRIDDEN"])
}

func TestPrepareAndCleanupCalledOncePerJob(t *testing.T) {
	wf := workflowFromYAML(t, `
jobs:
  a:
    runs-on: ubuntu-latest
    steps: [{run: "echo a"}, {run: "echo a2"}]
  b:
    runs-on: ubuntu-latest
    needs: a
    steps: [{run: "echo b"}]
`)
	be := &fakeBackend{}
	ok, err := New().ExecuteWorkflow(context.Background(), wf, be, &RecordingEvents{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, be.prepareCalls)
	assert.Equal(t, 2, be.cleanupCalls)
}
