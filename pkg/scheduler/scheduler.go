// Package scheduler walks a workflow's job dependency graph, dispatching
// each ready job onto a backend and gating its dependents on its outcome
// (spec.md §4.5). It is grounded on original_source's JobExecutor: a
// ready-queue/processed/failed-set algorithm, translated from Qt signals
// into the Events interface.
package scheduler

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/localci/localci/pkg/backend"
	"github.com/localci/localci/pkg/common"
	"github.com/localci/localci/pkg/matrix"
	"github.com/localci/localci/pkg/model"
)

// Scheduler executes a parsed, matrix-expanded workflow's jobs in
// dependency order against a single Backend, constructed once per run and
// reused across every job (spec.md §4.5: "the chosen backend is constructed
// once per run and shared across jobs"). One Scheduler instance runs a
// single workflow at a time; ExecuteWorkflow rejects a concurrent call with
// errAlreadyRunning, matching the original single-flight guard.
type Scheduler struct {
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

var errAlreadyRunning = errors.New("execution already in progress")

// New returns an idle Scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// ExecuteWorkflow expands every job's matrix, builds the dependency graph
// over the expanded job set, and runs jobs against be as their dependencies
// resolve. It returns the overall success (every job and its dependents
// completed without failure) and the first unrecoverable error, if any — a
// single job's step failure is reported through Events, not returned here.
func (s *Scheduler) ExecuteWorkflow(ctx context.Context, wf *model.Workflow, be backend.Backend, events Events) (bool, error) {
	if events == nil {
		events = NopEvents{}
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		events.Error(errAlreadyRunning.Error())
		return false, errAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()
	}()

	jobs, expandedOf := expandAll(wf)

	dependencies := make(map[string][]string, len(jobs))
	dependents := make(map[string][]string, len(jobs))
	var readyQueue []string
	queued := make(map[string]bool, len(jobs))

	for id, job := range jobs {
		needs := resolveNeeds(job.Needs(), expandedOf)
		dependencies[id] = needs
		if len(needs) == 0 {
			readyQueue = append(readyQueue, id)
			queued[id] = true
		}
		for _, dep := range needs {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	if len(readyQueue) == 0 {
		err := model.NewSchemaError(wf.File, "no runnable jobs found: check for circular or missing dependencies")
		events.Error(err.Error())
		events.ExecutionFinished(false)
		return false, err
	}

	processed := make(map[string]bool, len(jobs))
	failed := make(map[string]bool)
	success := true

	for len(readyQueue) > 0 {
		if ctx.Err() != nil {
			events.Error("execution cancelled")
			success = false
			break
		}

		id := readyQueue[0]
		readyQueue = readyQueue[1:]
		delete(queued, id)

		job := jobs[id]
		common.Logger(ctx).Debugf("starting job %s (runs-on %s)", id, job.RunsOnSpec())
		events.JobStarted(id)
		jobOK := s.executeJob(ctx, id, wf.Env, job, be, events)
		events.JobFinished(id, jobOK)
		common.Logger(ctx).Debugf("finished job %s: success=%v", id, jobOK)

		processed[id] = true
		if !jobOK {
			failed[id] = true
			success = false
		}

		for _, depID := range dependents[id] {
			if processed[depID] || queued[depID] {
				continue
			}

			needs := dependencies[depID]
			depsProcessed := true
			depsFailed := false
			for _, dep := range needs {
				if !processed[dep] {
					depsProcessed = false
					break
				}
				if failed[dep] {
					depsFailed = true
				}
			}
			if !depsProcessed {
				continue
			}

			if depsFailed {
				events.Error("skipping " + depID + " because a dependency failed")
				events.JobFinished(depID, false)
				processed[depID] = true
				failed[depID] = true
				success = false
				continue
			}

			readyQueue = append(readyQueue, depID)
			queued[depID] = true
		}
	}

	if len(processed) != len(jobs) {
		events.Error("workflow contains unresolved dependencies or cycles")
		success = false
	}

	events.ExecutionFinished(success)
	return success, nil
}

// StopExecution cancels the in-flight ExecuteWorkflow call, if any. The
// running job's backend still receives its Cleanup call as ExecuteWorkflow
// unwinds.
func (s *Scheduler) StopExecution() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running && s.cancel != nil {
		s.cancel()
	}
}

// IsRunning reports whether a workflow is currently executing.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) executeJob(ctx context.Context, id string, workflowEnv map[string]string, job *model.Job, be backend.Backend, events Events) bool {
	if err := be.PrepareEnvironment(ctx, job.RunsOnSpec()); err != nil {
		events.Error("failed to prepare environment for " + job.RunsOnSpec() + ": " + err.Error())
		_ = be.Cleanup(context.Background())
		return false
	}
	defer func() {
		if err := be.Cleanup(context.Background()); err != nil {
			events.Error("cleanup failed for " + id + ": " + err.Error())
		}
	}()

	baseEnv := model.MergeEnv(workflowEnv, job.Env)
	matrixEnv := make(map[string]string)
	for k, v := range job.Env {
		if strings.HasPrefix(k, "matrix.") {
			matrixEnv[k] = v
		}
	}
	for _, step := range job.Steps {
		label := step.String()
		events.StepStarted(id, label)

		stepEnv := model.MergeEnv(baseEnv, step.GetEnv(), matrixEnv)
		stepEvents := &stepOutputRelay{events: events, jobID: id, stepLabel: label}
		exec := common.NewConditionalExecutor(
			func(context.Context) bool { return true },
			stepExecutor(be, step, stepEnv, stepEvents),
			nil,
		)
		err := exec(ctx)
		events.StepFinished(id, label, err == nil)
		if err != nil {
			return false
		}
	}
	return true
}

func stepExecutor(be backend.Backend, step *model.Step, env map[string]string, stepEvents backend.Events) common.Executor {
	return func(ctx context.Context) error {
		return be.ExecuteStep(ctx, &backend.Step{
			ID:               step.ID,
			Run:              step.Run,
			Uses:             step.Uses,
			Shell:            step.Shell,
			WorkingDirectory: step.WorkingDirectory,
		}, backend.StepContext{Env: env, WorkingDirectory: step.WorkingDirectory, Events: stepEvents})
	}
}

// stepOutputRelay adapts a single step's backend.Events calls onto the
// scheduler's own Events.StepOutput/Error, annotating each line with the job
// and step it came from so consumers can demultiplex concurrent output
// (spec.md §5).
type stepOutputRelay struct {
	events    Events
	jobID     string
	stepLabel string
}

func (r *stepOutputRelay) Output(text string) {
	r.events.StepOutput(r.jobID, r.stepLabel, text)
}

func (r *stepOutputRelay) Error(message string) {
	r.events.Error(message)
}

// expandAll runs the matrix expander over every job in wf and returns the
// resulting job set keyed by its (possibly synthesized) id, plus a map from
// each source job id to the ids it expanded into (a singleton for
// unmatrixed jobs), so `needs` references to a matrixed job id can be
// resolved to every one of its expansions.
func expandAll(wf *model.Workflow) (jobs map[string]*model.Job, expandedOf map[string][]string) {
	jobs = make(map[string]*model.Job)
	expandedOf = make(map[string][]string)
	for _, id := range wf.JobIDs() {
		job := wf.GetJob(id)
		ids, expanded := matrix.ExpandWithID(id, job)
		expandedOf[id] = ids
		for i, eid := range ids {
			jobs[eid] = expanded[i]
		}
	}
	return jobs, expandedOf
}

// resolveNeeds maps a job's source-level `needs` ids onto the full set of
// expanded ids each referenced job fanned into. A downstream job waits for
// every matrix instance of an upstream job to finish.
func resolveNeeds(needs []string, expandedOf map[string][]string) []string {
	var out []string
	for _, need := range needs {
		expanded, ok := expandedOf[need]
		if !ok {
			// Unknown id: kept verbatim so the "unresolved dependency"
			// detection at run end can still report it.
			out = append(out, need)
			continue
		}
		out = append(out, expanded...)
	}
	return out
}
