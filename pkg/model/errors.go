package model

import "fmt"

// SchemaError reports a structural problem with a Workflow that the parser
// could not have caught in isolation: an unresolved `needs` reference, a
// dependency cycle, or an empty/unschedulable job set. See spec.md §7.
type SchemaError struct {
	WorkflowFile string
	Message      string
}

func (e *SchemaError) Error() string {
	if e.WorkflowFile != "" {
		return fmt.Sprintf("%s: %s", e.WorkflowFile, e.Message)
	}
	return e.Message
}

// NewSchemaError builds a SchemaError for workflow file.
func NewSchemaError(file, format string, args ...interface{}) *SchemaError {
	return &SchemaError{WorkflowFile: file, Message: fmt.Sprintf(format, args...)}
}
