package model

import (
	"gopkg.in/yaml.v3"
)

// Job is a named unit scheduled as a whole onto a single sandbox. It is
// immutable from the scheduler's viewpoint; the Matrix Expander produces new
// Jobs with synthesized ids, it never mutates the source.
type Job struct {
	Name string `yaml:"name"`

	RawNeeds  yaml.Node `yaml:"needs"`
	RawRunsOn yaml.Node `yaml:"runs-on"`

	Env map[string]string `yaml:"env"`
	If  string            `yaml:"if"`

	Steps []*Step `yaml:"steps"`

	Strategy *Strategy         `yaml:"strategy"`
	Outputs  map[string]string `yaml:"outputs"`
}

// Strategy holds the job's matrix configuration. fail-fast and max-parallel
// are open questions per spec.md §9 and are not interpreted by the engine.
type Strategy struct {
	RawMatrix yaml.Node `yaml:"matrix"`
}

// Needs normalizes the `needs` key, which may be a scalar or a sequence in
// the source, into an ordered list of job ids. A job with no `needs` key
// returns an empty, non-nil slice.
func (j *Job) Needs() []string {
	switch j.RawNeeds.Kind {
	case yaml.ScalarNode:
		var val string
		if err := j.RawNeeds.Decode(&val); err != nil {
			return []string{}
		}
		return []string{val}
	case yaml.SequenceNode:
		var val []string
		if err := j.RawNeeds.Decode(&val); err != nil {
			return []string{}
		}
		return val
	}
	return []string{}
}

// RunsOn normalizes the `runs-on` key. GitHub allows a label list here; the
// engine passes every label, space-joined by RunsOnSpec, to the backend's
// image mapping.
func (j *Job) RunsOn() []string {
	switch j.RawRunsOn.Kind {
	case yaml.ScalarNode:
		var val string
		if err := j.RawRunsOn.Decode(&val); err != nil {
			return nil
		}
		return []string{val}
	case yaml.SequenceNode:
		var val []string
		if err := j.RawRunsOn.Decode(&val); err != nil {
			return nil
		}
		return val
	}
	return nil
}

// RunsOnSpec returns the effective runner spec string the backend resolves
// into an image, joined with a space if more than one label is present.
func (j *Job) RunsOnSpec() string {
	labels := j.RunsOn()
	spec := ""
	for i, l := range labels {
		if i > 0 {
			spec += " "
		}
		spec += l
	}
	return spec
}

// Matrix decodes the strategy.matrix mapping. A scalar axis value is
// returned as a singleton slice so callers always see []interface{}.
func (j *Job) Matrix() map[string][]interface{} {
	if j.Strategy == nil || j.Strategy.RawMatrix.Kind != yaml.MappingNode {
		return nil
	}

	result := make(map[string][]interface{})
	node := j.Strategy.RawMatrix
	for i := 0; i+1 < len(node.Content); i += 2 {
		var key string
		if err := node.Content[i].Decode(&key); err != nil {
			continue
		}
		valNode := node.Content[i+1]

		if valNode.Kind == yaml.SequenceNode {
			var vals []interface{}
			if err := valNode.Decode(&vals); err != nil {
				continue
			}
			result[key] = vals
		} else {
			var scalar interface{}
			if err := valNode.Decode(&scalar); err != nil {
				continue
			}
			result[key] = []interface{}{scalar}
		}
	}
	return result
}

// MatrixAxisOrder returns the matrix's axis keys in the order they appear in
// the source file. Cartesian expansion iterates this order so the last axis
// varies fastest, deterministically, across runs.
func (j *Job) MatrixAxisOrder() []string {
	if j.Strategy == nil || j.Strategy.RawMatrix.Kind != yaml.MappingNode {
		return nil
	}
	node := j.Strategy.RawMatrix
	order := make([]string, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var key string
		if err := node.Content[i].Decode(&key); err != nil {
			continue
		}
		order = append(order, key)
	}
	return order
}

// MatrixDeclared reports whether the job has a `strategy.matrix` mapping at
// all, regardless of whether it has any axes. This is distinct from
// HasMatrix: `strategy: {matrix: {}}` declares a matrix with zero axes,
// which the expander treats as "drop this job", whereas no `strategy.matrix`
// key at all means "run the job once, unexpanded".
func (j *Job) MatrixDeclared() bool {
	return j.Strategy != nil && j.Strategy.RawMatrix.Kind == yaml.MappingNode
}

// HasMatrix reports whether the job declares a matrix with at least one
// axis.
func (j *Job) HasMatrix() bool {
	return len(j.Matrix()) > 0
}

// Clone returns a shallow copy of j suitable as the basis for a matrix
// expansion: env is copied and steps get a fresh slice, so adding matrix
// env entries or replacing steps never touches the source job. The *Step
// values themselves are shared, since Steps are immutable once parsed.
func (j *Job) Clone() *Job {
	clone := *j
	clone.Env = make(map[string]string, len(j.Env))
	for k, v := range j.Env {
		clone.Env[k] = v
	}
	clone.Steps = make([]*Step, len(j.Steps))
	copy(clone.Steps, j.Steps)
	return &clone
}
