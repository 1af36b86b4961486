// Package parser turns a workflow YAML file into a *model.Workflow. Parsing
// is tolerant: structural surprises at recognized keys are recorded as
// errors but do not abort sibling parsing when practical, and a malformed
// document never panics or propagates out of band — callers always get a
// (possibly empty) Workflow plus an error list (spec.md §4.2, §7).
package parser

import (
	"fmt"
	"os"

	"github.com/localci/localci/pkg/model"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Error is one accumulated parse-time problem, always attributed to the
// source file it came from.
type Error struct {
	File    string
	Message string
}

func (e Error) String() string {
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Parser parses workflow files one at a time. A Parser instance is not safe
// for concurrent use; callers running parses concurrently should use one
// Parser per goroutine (spec.md §5).
type Parser struct {
	errors []Error
}

// New returns a ready-to-use Parser.
func New() *Parser {
	return &Parser{}
}

// Parse reads the workflow file at path and returns the resulting Workflow
// together with every error accumulated while parsing it. The returned
// Workflow is always non-nil, even on a totally malformed document.
func (p *Parser) Parse(path string) (*model.Workflow, []Error) {
	p.errors = nil

	workflow := &model.Workflow{File: path}

	data, err := os.ReadFile(path)
	if err != nil {
		p.addErrorf(path, "reading workflow file: %v", err)
		return workflow, p.errors
	}

	// First pass: decode into a raw node tree so we can flag shape surprises
	// at recognized keys without losing the rest of the document to a single
	// strict-decode failure.
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		p.addErrorf(path, "YAML parsing error: %v", err)
		return workflow, p.errors
	}
	if len(root.Content) == 1 {
		p.validateShape(path, root.Content[0])
	}

	// Second pass: best-effort typed decode. model's own UnmarshalYAML
	// implementations are tolerant (they skip what they cannot decode rather
	// than abort), so this always yields a usable, possibly partial,
	// Workflow even when the first pass recorded errors.
	if err := yaml.Unmarshal(data, workflow); err != nil {
		p.addErrorf(path, "decoding workflow: %v", err)
	}
	workflow.File = path

	return workflow, p.errors
}

func (p *Parser) addErrorf(file, format string, args ...interface{}) {
	p.errors = append(p.errors, Error{File: file, Message: fmt.Sprintf(format, args...)})
}

// validateShape walks the recognized top-level and job-level keys looking
// for shapes the hosted dialect would reject outright, recording each as an
// Error without stopping the walk.
func (p *Parser) validateShape(file string, doc *yaml.Node) {
	if doc.Kind != yaml.MappingNode {
		p.addErrorf(file, "workflow document root must be a mapping")
		return
	}

	jobsNode := mappingValue(doc, "jobs")
	if jobsNode == nil {
		p.addErrorf(file, "workflow has no 'jobs' mapping")
		return
	}
	if jobsNode.Kind != yaml.MappingNode {
		p.addErrorf(file, "'jobs' must be a mapping")
		return
	}

	for i := 0; i+1 < len(jobsNode.Content); i += 2 {
		jobID := jobsNode.Content[i].Value
		jobNode := jobsNode.Content[i+1]
		if jobNode.Kind != yaml.MappingNode {
			p.addErrorf(file, "job '%s' must be a mapping", jobID)
			continue
		}
		p.validateJobShape(file, jobID, jobNode)
	}
}

func (p *Parser) validateJobShape(file, jobID string, jobNode *yaml.Node) {
	if needs := mappingValue(jobNode, "needs"); needs != nil {
		if needs.Kind != yaml.ScalarNode && needs.Kind != yaml.SequenceNode {
			p.addErrorf(file, "job '%s': 'needs' must be a string or a list of strings", jobID)
		}
	}
	if runsOn := mappingValue(jobNode, "runs-on"); runsOn != nil {
		if runsOn.Kind != yaml.ScalarNode && runsOn.Kind != yaml.SequenceNode {
			p.addErrorf(file, "job '%s': 'runs-on' must be a string or a list of strings", jobID)
		}
	}
	if steps := mappingValue(jobNode, "steps"); steps != nil && steps.Kind != yaml.SequenceNode {
		p.addErrorf(file, "job '%s': 'steps' must be a list", jobID)
	}
	if strategy := mappingValue(jobNode, "strategy"); strategy != nil {
		if strategy.Kind != yaml.MappingNode {
			p.addErrorf(file, "job '%s': 'strategy' must be a mapping", jobID)
			return
		}
		if matrix := mappingValue(strategy, "matrix"); matrix != nil && matrix.Kind != yaml.MappingNode {
			p.addErrorf(file, "job '%s': 'strategy.matrix' must be a mapping", jobID)
		} else if matrix != nil && len(matrix.Content) == 0 {
			p.addErrorf(file, "job '%s': 'strategy.matrix' must declare at least one axis", jobID)
		}
	}
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// Wrap attaches file context to a non-parser error, for callers that need to
// surface a filesystem or I/O failure alongside parse Errors.
func Wrap(file string, err error) error {
	return errors.Wrapf(err, "workflow %s", file)
}
