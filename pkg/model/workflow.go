// Package model defines the typed in-memory representation of a workflow:
// triggers, env, jobs, steps and matrix strategy. Values in this package are
// produced by pkg/parser and are immutable once parsed; matrix expansion in
// pkg/matrix only ever produces new Jobs, it never mutates the source.
package model

import (
	"sort"

	"gopkg.in/yaml.v3"
)

// Workflow is the typed representation of a single workflow file.
type Workflow struct {
	Name string `yaml:"name"`

	// RawOn is stored verbatim; the engine does not evaluate triggers. On()
	// normalizes the scalar/sequence/mapping shapes into event names.
	RawOn yaml.Node `yaml:"on"`

	// File is the absolute path this workflow was parsed from.
	File string `yaml:"-"`

	Env  map[string]string `yaml:"env"`
	Jobs OrderedJobs       `yaml:"jobs"`
}

// On returns the trigger event names regardless of whether `on` was written
// as a scalar, a sequence or a mapping. The engine never filters jobs by
// these values; they exist for the doctor surface and for callers that want
// to describe a workflow.
func (w *Workflow) On() []string {
	switch w.RawOn.Kind {
	case yaml.ScalarNode:
		var val string
		if err := w.RawOn.Decode(&val); err != nil {
			return nil
		}
		return []string{val}
	case yaml.SequenceNode:
		var val []string
		if err := w.RawOn.Decode(&val); err != nil {
			return nil
		}
		return val
	case yaml.MappingNode:
		var val map[string]interface{}
		if err := w.RawOn.Decode(&val); err != nil {
			return nil
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys
	}
	return nil
}

// JobIDs returns every job id in insertion order.
func (w *Workflow) JobIDs() []string {
	return w.Jobs.Keys()
}

// GetJob returns the job with the given id, or nil. Matches act's
// Workflow.GetJob behaviour of defaulting Name to the id.
func (w *Workflow) GetJob(id string) *Job {
	j, ok := w.Jobs.Get(id)
	if !ok {
		return nil
	}
	if j.Name == "" {
		j.Name = id
	}
	return j
}
