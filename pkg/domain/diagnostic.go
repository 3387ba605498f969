package domain

// DiagnosticKind is the machine readable tag of a validator finding.
type DiagnosticKind string

const (
	DiagBrokenReference      DiagnosticKind = "broken_reference"
	DiagCyclicInclude        DiagnosticKind = "cyclic_include"
	DiagEmptyWildcard        DiagnosticKind = "empty_wildcard"
	DiagDuplicateChoice      DiagnosticKind = "duplicate_choice"
	DiagMissingRequiredValue DiagnosticKind = "missing_required_value"
	DiagOutOfOrderRequires   DiagnosticKind = "out_of_order_requires"
	DiagCorruptWildcard      DiagnosticKind = "corrupt_wildcard"
	DiagTemplateSyntax       DiagnosticKind = "template_syntax"
)

// Severity ranks diagnostics.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is a single validator finding with enough location data to jump
// to the offending entry.
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
	Hint     string         `json:"hint,omitempty"`

	File        string `json:"file,omitempty"`
	Scope       Scope  `json:"scope,omitempty"`
	Path        string `json:"path,omitempty"`
	ChoiceIndex int    `json:"choice_index"`

	Target   string   `json:"target,omitempty"`
	EdgeKind string   `json:"edge_kind,omitempty"`
	Values   []string `json:"values,omitempty"`
	Indexes  []int    `json:"indexes,omitempty"`
	Cycle    []string `json:"cycle,omitempty"`

	Template  string `json:"template,omitempty"`
	Directive int    `json:"directive,omitempty"`
}

// Errors returns the diagnostics with error severity.
func Errors(diags []Diagnostic) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}
