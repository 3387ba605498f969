package domain

// FileOutcome is the result of writing one file during a batch operation.
type FileOutcome struct {
	Name    string `json:"name"`
	Scope   Scope  `json:"scope,omitempty"`
	Path    string `json:"path,omitempty"`
	Op      string `json:"op"`
	Changes int    `json:"changes"`
	Err     error  `json:"-"`
	Error   string `json:"error,omitempty"`

	// Conflicts describes requires entries that a rename made overlap.
	Conflicts []string `json:"conflicts,omitempty"`
}

// OK reports whether the write succeeded.
func (o FileOutcome) OK() bool { return o.Err == nil }
