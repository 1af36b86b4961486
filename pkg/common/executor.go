package common

import "context"

// Executor is a function that runs to completion or returns an error. Every
// blocking interaction with the outside world (a backend call, a git
// operation, a subprocess) is expressed as one of these so pipelines compose
// without bespoke glue.
type Executor func(ctx context.Context) error

// NewPipelineExecutor chains executors, running each in order and stopping
// at the first error.
func NewPipelineExecutor(executors ...Executor) Executor {
	if len(executors) == 0 {
		return func(ctx context.Context) error { return nil }
	}
	return func(ctx context.Context) error {
		for _, executor := range executors {
			if err := executor(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// NewConditionalExecutor only runs trueExecutor or falseExecutor depending on
// the result of conditional. Either branch may be nil.
func NewConditionalExecutor(conditional func(ctx context.Context) bool, trueExecutor, falseExecutor Executor) Executor {
	return func(ctx context.Context) error {
		if conditional(ctx) {
			if trueExecutor != nil {
				return trueExecutor(ctx)
			}
		} else if falseExecutor != nil {
			return falseExecutor(ctx)
		}
		return nil
	}
}

// NewErrorExecutor returns an Executor that always fails with err.
func NewErrorExecutor(err error) Executor {
	return func(ctx context.Context) error {
		return err
	}
}
