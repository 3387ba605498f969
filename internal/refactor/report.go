package refactor

import (
	"github.com/aretw0/thicket/pkg/domain"
)

// Report lists the outcome of every file touched by one refactor batch, in
// write order.
type Report struct {
	Operation string               `json:"operation"`
	Outcomes  []domain.FileOutcome `json:"outcomes"`
}

// Succeeded returns the labels of the files that were written.
func (r *Report) Succeeded() []string {
	var out []string
	for _, o := range r.Outcomes {
		if o.OK() {
			out = append(out, label(o))
		}
	}
	return out
}

// Failed returns the write error of every file that failed, keyed by label.
func (r *Report) Failed() map[string]error {
	out := make(map[string]error)
	for _, o := range r.Outcomes {
		if !o.OK() {
			out[label(o)] = o.Err
		}
	}
	return out
}

// Err returns a *domain.RefactorPartialFailure when any write failed.
func (r *Report) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	return &domain.RefactorPartialFailure{
		Operation: r.Operation,
		Succeeded: r.Succeeded(),
		Failed:    failed,
	}
}

// Changes sums the rewritten references over the successful writes.
func (r *Report) Changes() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n += o.Changes
		}
	}
	return n
}

// label identifies an outcome: "scope/name" for wildcards, the template name
// for templates.
func label(o domain.FileOutcome) string {
	if o.Scope == "" {
		return o.Name
	}
	return string(o.Scope) + "/" + o.Name
}
