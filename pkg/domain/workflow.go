package domain

import (
	"fmt"
	"strings"
)

// Workflow selects which part of the corpus is visible to an operation.
type Workflow string

const (
	WorkflowSFW  Workflow = "sfw"
	WorkflowNSFW Workflow = "nsfw"
)

// Scope identifies the directory that owns a wildcard file.
type Scope string

const (
	// ScopeShared files are visible in every workflow.
	ScopeShared Scope = "shared"
	// ScopeNSFW files are visible only under WorkflowNSFW.
	ScopeNSFW Scope = "nsfw"
)

// AllScopes lists every scope in load order.
var AllScopes = []Scope{ScopeShared, ScopeNSFW}

// ParseWorkflow converts user input into a Workflow. Empty input means sfw.
func ParseWorkflow(s string) (Workflow, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(WorkflowSFW):
		return WorkflowSFW, nil
	case string(WorkflowNSFW):
		return WorkflowNSFW, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidWorkflow, s)
}

// ParseScope converts user input into a Scope. Empty input means shared.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ScopeShared):
		return ScopeShared, nil
	case string(ScopeNSFW):
		return ScopeNSFW, nil
	}
	return "", fmt.Errorf("%w: unknown scope %q", ErrInvalidWorkflow, s)
}

// Scopes returns the scopes visible to the workflow in load order.
// Later scopes override earlier ones when both define the same name.
func (w Workflow) Scopes() []Scope {
	if w == WorkflowNSFW {
		return []Scope{ScopeShared, ScopeNSFW}
	}
	return []Scope{ScopeShared}
}

func (w Workflow) String() string { return string(w) }

func (s Scope) String() string { return string(s) }

// ValidateName reports whether name can be used as a wildcard name and file
// basename. Names use letters, digits, underscore, dot, dash and space and
// must contain at least one letter or digit.
func ValidateName(name string) error {
	if name == "" || strings.TrimSpace(name) != name || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	alnum := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			alnum = true
		case r == '_', r == '.', r == '-', r == ' ':
		default:
			return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, r)
		}
	}
	if !alnum {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
