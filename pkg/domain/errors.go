package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrMissingWildcard is returned when a referenced wildcard does not exist.
	ErrMissingWildcard = errors.New("missing wildcard")

	// ErrCorruptWildcard is returned when a persisted wildcard file cannot be decoded.
	ErrCorruptWildcard = errors.New("corrupt wildcard")

	// ErrUnsatisfiableRequires is recorded when no choice passes its requires conditions.
	ErrUnsatisfiableRequires = errors.New("unsatisfiable requires")

	// ErrUnsatisfiableUnique is recorded when a unique directive has no unused value left.
	ErrUnsatisfiableUnique = errors.New("unsatisfiable unique")

	// ErrCyclicInclude is recorded when includes lead back to a wildcard being expanded.
	ErrCyclicInclude = errors.New("cyclic include")

	// ErrExpansionLimit is recorded when a resolution expands more wildcards
	// than its budget allows.
	ErrExpansionLimit = errors.New("expansion limit reached")

	// ErrSyntax is the sentinel behind SyntaxError.
	ErrSyntax = errors.New("template syntax error")

	// ErrRefactorPartialFailure is the sentinel behind RefactorPartialFailure.
	ErrRefactorPartialFailure = errors.New("refactor partially applied")

	// ErrInvalidWorkflow is returned for unknown workflow or scope names.
	ErrInvalidWorkflow = errors.New("invalid workflow")

	// ErrNameConflict is returned when a write would overwrite an existing name or value.
	ErrNameConflict = errors.New("name conflict")

	// ErrInvalidName is returned for wildcard names that cannot be used as file names.
	ErrInvalidName = errors.New("invalid wildcard name")

	// ErrValueNotFound is returned when a wildcard has no choice with the given value.
	ErrValueNotFound = errors.New("value not found")

	// ErrTemplateNotFound is returned when a template cannot be found in the library.
	ErrTemplateNotFound = errors.New("template not found")
)

// SyntaxIssue locates one malformed directive.
type SyntaxIssue struct {
	Offset int    `json:"offset"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Raw    string `json:"raw"`
	Reason string `json:"reason"`
}

// SyntaxError collects every malformed directive of one template.
type SyntaxError struct {
	Issues []SyntaxIssue
}

func (e *SyntaxError) Error() string {
	if len(e.Issues) == 1 {
		i := e.Issues[0]
		return fmt.Sprintf("template syntax error at %d:%d: %s (%s)", i.Line, i.Column, i.Reason, i.Raw)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d template syntax errors:\n", len(e.Issues))
	for n, i := range e.Issues {
		fmt.Fprintf(&sb, "  %d. %d:%d: %s (%s)\n", n+1, i.Line, i.Column, i.Reason, i.Raw)
	}
	return sb.String()
}

func (e *SyntaxError) Is(target error) bool { return target == ErrSyntax }

// CorruptWildcardError isolates a decode failure to one wildcard file.
type CorruptWildcardError struct {
	Name  string
	Scope Scope
	Path  string
	Err   error
}

func (e *CorruptWildcardError) Error() string {
	return fmt.Sprintf("corrupt wildcard %q (%s): %v", e.Name, e.Scope, e.Err)
}

func (e *CorruptWildcardError) Unwrap() error { return e.Err }

func (e *CorruptWildcardError) Is(target error) bool { return target == ErrCorruptWildcard }

// RefactorPartialFailure reports that some files of a refactor batch failed to write.
// Files listed in Succeeded were written and are not rolled back.
type RefactorPartialFailure struct {
	Operation string
	Succeeded []string
	Failed    map[string]error
}

func (e *RefactorPartialFailure) Error() string {
	names := make([]string, 0, len(e.Failed))
	for n := range e.Failed {
		names = append(names, n)
	}
	sort.Strings(names)
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d of %d files failed", e.Operation, len(e.Failed), len(e.Failed)+len(e.Succeeded))
	for _, n := range names {
		fmt.Fprintf(&sb, "\n- %s: %v", n, e.Failed[n])
	}
	return sb.String()
}

func (e *RefactorPartialFailure) Is(target error) bool { return target == ErrRefactorPartialFailure }
