// Package matrix fans a job with an N-axis strategy.matrix into the set of
// concrete jobs the hosted runner would schedule, per spec.md §4.3. Matrix
// include/exclude and fail-fast are explicitly out of scope (spec.md §9):
// this expander implements only the plain Cartesian product.
package matrix

import (
	"fmt"

	"github.com/localci/localci/pkg/common"
	"github.com/localci/localci/pkg/model"
)

// Expand returns the jobs produced by job's matrix. A job with no matrix
// expands to a single-element slice containing the job unchanged. A job
// whose matrix decodes to an empty mapping expands to zero jobs — the
// parser is expected to flag an empty `strategy.matrix:` as a shape error;
// the expander faithfully produces the empty set either way.
func Expand(job *model.Job) []*model.Job {
	if !job.MatrixDeclared() {
		return []*model.Job{job}
	}

	axes := job.Matrix()
	order := job.MatrixAxisOrder()
	if len(axes) == 0 {
		return nil
	}

	combos := common.CartesianProduct(axes, order)
	expanded := make([]*model.Job, 0, len(combos))

	for _, combo := range combos {
		suffix := suffixFor(order, combo)

		clone := job.Clone()
		clone.Name = job.Name + " " + suffix

		for _, axis := range order {
			clone.Env["matrix."+axis] = fmt.Sprintf("%v", combo[axis])
		}

		expanded = append(expanded, clone)
	}

	return expanded
}

// ExpandWithID is Expand, but also assigns each resulting job the
// deterministic id `srcID(k1=v1, k2=v2, …)` per spec.md §3's matrix-expansion
// invariant. It returns ids in the same order as the jobs slice.
func ExpandWithID(srcID string, job *model.Job) (ids []string, jobs []*model.Job) {
	jobs = Expand(job)
	if len(jobs) == 1 && jobs[0] == job {
		return []string{srcID}, jobs
	}

	axes := job.Matrix()
	order := job.MatrixAxisOrder()
	combos := common.CartesianProduct(axes, order)

	ids = make([]string, 0, len(jobs))
	for _, combo := range combos {
		ids = append(ids, srcID+suffixFor(order, combo))
	}
	return ids, jobs
}

func suffixFor(order []string, combo map[string]interface{}) string {
	suffix := "("
	for i, axis := range order {
		if i > 0 {
			suffix += ", "
		}
		suffix += fmt.Sprintf("%s=%v", axis, combo[axis])
	}
	suffix += ")"
	return suffix
}
