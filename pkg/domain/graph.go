package domain

// EdgeKind distinguishes the two ways a wildcard can depend on another.
type EdgeKind string

const (
	// EdgeInclude: a choice of the source includes or embeds the target.
	EdgeInclude EdgeKind = "include"
	// EdgeRequires: a choice of the source names the target as a requires key.
	EdgeRequires EdgeKind = "requires"
)

// Edge is a single dependency between two wildcards.
type Edge struct {
	From string   `json:"from" yaml:"from"`
	To   string   `json:"to" yaml:"to"`
	Kind EdgeKind `json:"kind" yaml:"kind"`

	// Scope and ChoiceIndex locate the choice that produced the edge.
	// ChoiceIndex is -1 for file-level includes.
	Scope       Scope `json:"scope" yaml:"scope"`
	ChoiceIndex int   `json:"choice_index" yaml:"choice_index"`

	// Embedded is set for include edges coming from a directive inside a value.
	Embedded bool `json:"embedded,omitempty" yaml:"embedded,omitempty"`

	// Value is the required value for requires edges.
	Value string `json:"value,omitempty" yaml:"value,omitempty"`

	// Dangling marks an edge whose target is not defined in the corpus.
	Dangling bool `json:"dangling,omitempty" yaml:"dangling,omitempty"`
}
