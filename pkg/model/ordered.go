package model

import "gopkg.in/yaml.v3"

// OrderedJobs is an insertion-ordered mapping from job id to *Job. A plain Go
// map would lose the source ordering that the Workflow Parser's idempotence
// guarantee depends on, so this
// type decodes a YAML mapping node pair-by-pair instead of through the
// default map decoding path.
type OrderedJobs struct {
	ids  []string
	jobs map[string]*Job
}

// UnmarshalYAML implements yaml.Unmarshaler, preserving the key order of the
// `jobs` mapping as written in the source file.
func (o *OrderedJobs) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	o.ids = make([]string, 0, len(node.Content)/2)
	o.jobs = make(map[string]*Job, len(node.Content)/2)

	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valNode := node.Content[i+1]

		var id string
		if err := keyNode.Decode(&id); err != nil {
			// Tolerant: a malformed job key is skipped, siblings still parse.
			continue
		}

		job := new(Job)
		if err := valNode.Decode(job); err != nil {
			continue
		}

		if _, exists := o.jobs[id]; !exists {
			o.ids = append(o.ids, id)
		}
		o.jobs[id] = job
	}
	return nil
}

// Keys returns the job ids in insertion order.
func (o OrderedJobs) Keys() []string {
	out := make([]string, len(o.ids))
	copy(out, o.ids)
	return out
}

// Get returns the job for id and whether it was present.
func (o OrderedJobs) Get(id string) (*Job, bool) {
	if o.jobs == nil {
		return nil, false
	}
	j, ok := o.jobs[id]
	return j, ok
}

// Len reports the number of jobs.
func (o OrderedJobs) Len() int {
	return len(o.ids)
}

// Set inserts or replaces the job at id, appending to the order if new.
func (o *OrderedJobs) Set(id string, job *Job) {
	if o.jobs == nil {
		o.jobs = make(map[string]*Job)
	}
	if _, exists := o.jobs[id]; !exists {
		o.ids = append(o.ids, id)
	}
	o.jobs[id] = job
}

// NewOrderedJobs builds an OrderedJobs from ids (in order) and their jobs.
func NewOrderedJobs(ids []string, jobs map[string]*Job) OrderedJobs {
	o := OrderedJobs{ids: make([]string, len(ids)), jobs: make(map[string]*Job, len(jobs))}
	copy(o.ids, ids)
	for k, v := range jobs {
		o.jobs[k] = v
	}
	return o
}
