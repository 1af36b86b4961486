// Package backend defines the contract every execution backend implements,
// and the event notifications backends emit while a job runs (spec.md §4.4).
package backend

import (
	"context"
	"time"
)

// Timeouts bound the three lifecycle calls every backend makes to the
// outside world. A backend that cannot complete prepareEnvironment,
// executeStep, or cleanup within these windows must return an error rather
// than block the scheduler indefinitely.
const (
	PrepareTimeout       = 1 * time.Minute
	StepTimeout          = 5 * time.Minute
	CleanupTimeout       = 30 * time.Second
	RuntimeDetectTimeout = 5 * time.Second
)

// StepContext carries the environment a step executes with: the merged
// environment (workflow, job, step, then matrix injections; later layers
// win), the
// working directory if the step requested one, and the Events sink this
// step's output and errors must be reported through. Events is set by the
// scheduler on every call so output can be annotated with the job and step
// it came from (spec.md §5); a Backend constructed directly (e.g. in a
// test) may leave it nil, in which case the backend falls back to whatever
// Events it was constructed with.
type StepContext struct {
	Env              map[string]string
	WorkingDirectory string
	Events           Events
}

// Events receives output and error notifications as a job runs. Both
// methods must be safe to call from any goroutine and must not block the
// caller for long, since backends may call them from an exec loop.
type Events interface {
	Output(text string)
	Error(message string)
}

// NopEvents discards every notification. Useful in tests and for callers
// that only care about the error return.
type NopEvents struct{}

func (NopEvents) Output(string) {}
func (NopEvents) Error(string)  {}

// FuncEvents adapts two closures to the Events interface.
type FuncEvents struct {
	OutputFunc func(string)
	ErrorFunc  func(string)
}

func (f FuncEvents) Output(text string) {
	if f.OutputFunc != nil {
		f.OutputFunc(text)
	}
}

func (f FuncEvents) Error(message string) {
	if f.ErrorFunc != nil {
		f.ErrorFunc(message)
	}
}

// Backend is an execution environment for jobs. A scheduler shares one
// Backend across every job of a run and, for each job, calls
// PrepareEnvironment once, ExecuteStep once per step, and Cleanup exactly
// once when the job is done (whether it succeeded, failed, or was
// cancelled).
type Backend interface {
	// PrepareEnvironment provisions whatever sandbox runsOn maps to
	// (container or VM) and brings it to a state ready for ExecuteStep.
	PrepareEnvironment(ctx context.Context, runsOn string) error

	// ExecuteStep runs a single step's command inside the previously
	// prepared sandbox. It returns an error if the step could not be
	// started or exited non-zero.
	ExecuteStep(ctx context.Context, step *Step, stepCtx StepContext) error

	// Cleanup tears down the sandbox. It is called even after a failed
	// PrepareEnvironment or ExecuteStep, and must tolerate a partially
	// prepared backend.
	Cleanup(ctx context.Context) error
}

// Step is the minimal view of a model.Step a backend needs. It is declared
// here, rather than imported from pkg/model, so pkg/backend does not depend
// on the parser's richer representation.
type Step struct {
	ID               string
	Run              string
	Uses             string
	Shell            string
	WorkingDirectory string
}
