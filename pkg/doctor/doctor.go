// Package doctor runs the preflight diagnostics a user runs before trusting
// a workflow to execute locally: backend availability, parse-level
// structural checks, and known-limitation textual scans (spec.md §7,
// "Unsupported feature" taxonomy). Grounded on original_source's
// CommandHandler::handleDoctor, whose summary and exit-code rule (nonzero
// only when an Error-severity check fires) this package reproduces.
package doctor

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rhysd/actionlint"

	"github.com/localci/localci/pkg/model"
	"github.com/localci/localci/pkg/parser"
)

// Severity classifies a Check's finding.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarning
	SeverityError
)

// Check is a single diagnostic finding.
type Check struct {
	Severity   Severity
	Message    string
	Workaround string
}

// Report is the accumulated result of a doctor run.
type Report struct {
	Checks []Check
}

func (r *Report) add(sev Severity, message, workaround string) {
	r.Checks = append(r.Checks, Check{Severity: sev, Message: message, Workaround: workaround})
}

// Warnings returns the number of warning-severity checks.
func (r *Report) Warnings() int {
	n := 0
	for _, c := range r.Checks {
		if c.Severity == SeverityWarning {
			n++
		}
	}
	return n
}

// Errors returns the number of error-severity checks.
func (r *Report) Errors() int {
	n := 0
	for _, c := range r.Checks {
		if c.Severity == SeverityError {
			n++
		}
	}
	return n
}

// Issues is the total count of non-OK checks.
func (r *Report) Issues() int {
	return r.Warnings() + r.Errors()
}

// ExitCode is 1 if any error-severity check fired, 0 otherwise — the
// original's `errors > 0 ? 1 : 0` rule.
func (r *Report) ExitCode() int {
	if r.Errors() > 0 {
		return 1
	}
	return 0
}

// RuntimeProbe reports whether a named runtime binary is usable, used for
// the backend-availability section without doctor depending on pkg/backend.
type RuntimeProbe func(ctx context.Context, binary string) (version string, ok bool)

// DefaultProbe runs "<binary> --version" and reports its trimmed first
// line of output, matching the original's 3-second QProcess probes.
func DefaultProbe(ctx context.Context, binary string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, binary, "--version").Output()
	if err != nil {
		return "", false
	}
	line := strings.SplitN(string(out), "\n", 2)[0]
	return strings.TrimSpace(line), true
}

// CheckBackends probes docker, podman and qemu availability.
func CheckBackends(ctx context.Context, probe RuntimeProbe) *Report {
	report := &Report{}

	if version, ok := probe(ctx, "docker"); ok {
		report.add(SeverityOK, "container backend: Docker detected ("+version+")", "")
	} else if version, ok := probe(ctx, "podman"); ok {
		report.add(SeverityOK, "container backend: Podman detected ("+version+")", "")
	} else {
		report.add(SeverityError, "container backend: neither Docker nor Podman found",
			"install Docker or Podman for container backend support")
	}

	if version, ok := probe(ctx, "qemu-system-x86_64"); ok {
		report.add(SeverityOK, "QEMU backend: available ("+version+")", "")
	} else {
		report.add(SeverityWarning, "QEMU backend: not available",
			"install QEMU for VM-based execution (optional)")
	}

	return report
}

// limitationScan is one textual substring check against the raw workflow
// bytes, grounded on the original's four named limitation scans.
var limitationScans = []struct {
	substr     string
	severity   Severity
	message    string
	workaround string
}{
	{"workflow_call", SeverityWarning, "uses reusable workflow (not supported)", "flatten the workflow"},
	{"services:", SeverityWarning, "service containers detected (not supported)", "run services manually before workflow execution"},
	{"concurrency:", SeverityWarning, "concurrency groups (not supported)", "all jobs run as configured; no concurrency limits applied"},
}

var expressionScans = []string{"fromJSON", "hashFiles", "toJSON"}

// CheckWorkflow parses workflowPath, validates its dependency graph, scans
// it for known unsupported features, and runs actionlint for deeper
// structural validation.
func CheckWorkflow(workflowPath string) (*Report, error) {
	report := &Report{}

	raw, err := os.ReadFile(workflowPath)
	if err != nil {
		return nil, err
	}

	p := parser.New()
	wf, parseErrors := p.Parse(workflowPath)
	if len(parseErrors) > 0 {
		for _, e := range parseErrors {
			report.add(SeverityError, "workflow parsing failed: "+e.String(), "")
		}
		return report, nil
	}
	report.add(SeverityOK, "basic workflow structure valid", "")

	checkDependencyGraph(report, wf)
	scanLimitations(report, string(raw))
	runActionlint(report, workflowPath)

	return report, nil
}

func checkDependencyGraph(report *Report, wf *model.Workflow) {
	ids := make(map[string]bool)
	for _, id := range wf.JobIDs() {
		ids[id] = true
	}

	hasDeps := false
	valid := true
	for _, id := range wf.JobIDs() {
		job := wf.GetJob(id)
		for _, need := range job.Needs() {
			hasDeps = true
			if !ids[need] {
				valid = false
				report.add(SeverityError, "job '"+id+"' depends on non-existent job '"+need+"'", "")
			}
		}
	}
	if valid && hasDeps {
		report.add(SeverityOK, "job dependencies resolvable", "")
	}
}

func scanLimitations(report *Report, content string) {
	for _, scan := range limitationScans {
		if strings.Contains(content, scan.substr) {
			report.add(scan.severity, scan.message, scan.workaround)
		}
	}

	for _, expr := range expressionScans {
		if strings.Contains(content, expr) {
			report.add(SeverityWarning, "uses '"+expr+"' expression (limited support)",
				"simplify the expression or use explicit run steps")
			break // only warn once for expressions, matching the original
		}
	}

	if strings.Contains(content, "macos-latest") || strings.Contains(content, "macos-") {
		report.add(SeverityError, "macOS runners not supported",
			"use Linux runners, or run macOS workflows on the hosted service")
	}
}

// runActionlint layers actionlint's structural validation on top of the
// tolerant parser's shape checks, surfacing anything it flags as a warning
// (the tolerant parser, not actionlint, owns whether the workflow is
// considered unschedulable).
func runActionlint(report *Report, workflowPath string) {
	linter, err := actionlint.NewLinter(discardWriter{}, &actionlint.LinterOptions{})
	if err != nil {
		return
	}
	errs, err := linter.LintFile(workflowPath, nil)
	if err != nil {
		return
	}
	for _, e := range errs {
		report.add(SeverityWarning, "actionlint: "+e.Message, "")
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
