package domain

import "fmt"

// ProblemKind tags a non-fatal failure recorded during resolution.
type ProblemKind string

const (
	ProblemMissingWildcard       ProblemKind = "missing_wildcard"
	ProblemCorruptWildcard       ProblemKind = "corrupt_wildcard"
	ProblemUnsatisfiableRequires ProblemKind = "unsatisfiable_requires"
	ProblemUnsatisfiableUnique   ProblemKind = "unsatisfiable_unique"
	ProblemCyclicInclude         ProblemKind = "cyclic_include"
	ProblemSyntax                ProblemKind = "syntax_error"
	ProblemExpansionLimit        ProblemKind = "expansion_limit"
)

// Sentinel returns the error value matching the problem kind.
func (k ProblemKind) Sentinel() error {
	switch k {
	case ProblemMissingWildcard:
		return ErrMissingWildcard
	case ProblemCorruptWildcard:
		return ErrCorruptWildcard
	case ProblemUnsatisfiableRequires:
		return ErrUnsatisfiableRequires
	case ProblemUnsatisfiableUnique:
		return ErrUnsatisfiableUnique
	case ProblemCyclicInclude:
		return ErrCyclicInclude
	case ProblemSyntax:
		return ErrSyntax
	case ProblemExpansionLimit:
		return ErrExpansionLimit
	}
	return nil
}

// Problem is a directive-level failure. The directive's output is an empty span.
type Problem struct {
	Kind      ProblemKind `json:"kind"`
	Name      string      `json:"name"`
	Directive int         `json:"directive"`
	Path      []string    `json:"path,omitempty"`
	Detail    string      `json:"detail,omitempty"`
}

// Err converts the problem into an error wrapping its sentinel.
func (p Problem) Err() error {
	if p.Detail == "" {
		return fmt.Errorf("%w: %s", p.Kind.Sentinel(), p.Name)
	}
	return fmt.Errorf("%w: %s: %s", p.Kind.Sentinel(), p.Name, p.Detail)
}

// Binding records the values chosen for a wildcard name.
type Binding struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
	// Directive is the index of the top-level directive that produced the binding.
	Directive int `json:"directive"`
	// Depth is 0 for the directive itself and grows with each level of inclusion.
	Depth int `json:"depth"`
}

// Clamp records a RANGE directive whose count was reduced to the eligible set size.
type Clamp struct {
	Name      string `json:"name"`
	Directive int    `json:"directive"`
	Requested int    `json:"requested"`
	Granted   int    `json:"granted"`
}

// Segment is one piece of the resolved output.
// Segments with a Name came from a directive and can be swapped.
type Segment struct {
	Text      string        `json:"text"`
	Name      string        `json:"name,omitempty"`
	Kind      DirectiveKind `json:"kind,omitempty"`
	Directive int           `json:"directive"`
	Values    []string      `json:"values,omitempty"`
	Problem   ProblemKind   `json:"problem,omitempty"`
}

// ResolvedPrompt is the outcome of one resolution pass.
type ResolvedPrompt struct {
	ID       string    `json:"id"`
	Workflow Workflow  `json:"workflow"`
	Seed     int64     `json:"seed"`
	Seeded   bool      `json:"seeded"`
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
	Bindings []Binding `json:"bindings"`
	Missing  []string  `json:"missing,omitempty"`
	Problems []Problem `json:"problems,omitempty"`
	Clamps   []Clamp   `json:"clamps,omitempty"`
}

// OK reports whether every directive resolved without problems.
func (r *ResolvedPrompt) OK() bool {
	return len(r.Problems) == 0
}

// BindingMap flattens the ordered bindings into name -> values.
func (r *ResolvedPrompt) BindingMap() map[string][]string {
	out := make(map[string][]string, len(r.Bindings))
	for _, b := range r.Bindings {
		out[b.Name] = append(out[b.Name], b.Values...)
	}
	return out
}

// ProblemsOf returns the problems of the given kind.
func (r *ResolvedPrompt) ProblemsOf(kind ProblemKind) []Problem {
	var out []Problem
	for _, p := range r.Problems {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}
