package domain

import (
	"maps"
	"math"
	"slices"
	"sort"
	"strings"
	"time"
)

// Format is the on-disk encoding of a wildcard file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	// FormatText is the legacy one-value-per-line format. It is migrated to JSON on save.
	FormatText Format = "txt"
)

// Choice is one candidate value within a wildcard.
type Choice struct {
	Value  string   `json:"value" yaml:"value"`
	Weight float64  `json:"weight,omitempty" yaml:"weight,omitempty"`
	Tags   []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Requires maps a wildcard name to the value it must already be bound to.
	Requires map[string]string `json:"requires,omitempty" yaml:"requires,omitempty"`

	// Conditions holds the requires entries that are not single pins. They
	// must all hold alongside Requires.
	Conditions Rule `json:"conditions,omitempty" yaml:"-"`

	// Includes names wildcards whose resolution is spliced into Value.
	Includes []string `json:"includes,omitempty" yaml:"includes,omitempty"`
}

// EffectiveWeight returns the sampling weight. Weights that are not positive
// and finite count as 1.
func (c Choice) EffectiveWeight() float64 {
	if !ValidWeight(c.Weight) {
		return 1
	}
	return c.Weight
}

// ValidWeight reports whether w can be used as a sampling weight.
func ValidWeight(w float64) bool {
	return w > 0 && !math.IsInf(w, 1) && !math.IsNaN(w)
}

// IsPlain reports whether the choice carries nothing but a value with default weight.
func (c Choice) IsPlain() bool {
	return (c.Weight == 0 || c.Weight == 1) &&
		len(c.Tags) == 0 && len(c.Requires) == 0 && len(c.Conditions) == 0 && len(c.Includes) == 0
}

// Clone returns a deep copy of the choice.
func (c Choice) Clone() Choice {
	c.Tags = slices.Clone(c.Tags)
	c.Includes = slices.Clone(c.Includes)
	if c.Requires != nil {
		c.Requires = maps.Clone(c.Requires)
	}
	c.Conditions = c.Conditions.Clone()
	return c
}

// RequireKeys returns the requires keys in sorted order.
func (c Choice) RequireKeys() []string {
	keys := make([]string, 0, len(c.Requires))
	for k := range c.Requires {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RequiredNames returns every wildcard the choice depends on through Requires
// or Conditions, sorted.
func (c Choice) RequiredNames() []string {
	names := c.RequireKeys()
	for _, n := range c.Conditions.Names() {
		if _, ok := c.Requires[n]; !ok {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// Satisfied reports whether the pins and conditions hold for the bound values.
func (c Choice) Satisfied(bound map[string][]string) bool {
	for k, v := range c.Requires {
		if !slices.Contains(bound[k], v) {
			return false
		}
	}
	return c.Conditions.Holds(bound)
}

// Wildcard is a named collection of Choices backed by one persisted file.
//
// Wildcards handed out by a store are shared between readers and must be
// treated as read-only. Use Clone before modifying one.
type Wildcard struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Scope       Scope    `json:"scope" yaml:"scope"`
	Choices     []Choice `json:"choices" yaml:"choices"`

	// Includes holds file-level includes. They count as included by every choice
	// for dependency analysis but are not spliced during resolution.
	Includes []string `json:"includes,omitempty" yaml:"includes,omitempty"`

	Path    string    `json:"path,omitempty" yaml:"-"`
	ModTime time.Time `json:"mod_time,omitempty" yaml:"-"`
	Size    int64     `json:"-" yaml:"-"`
	Format  Format    `json:"format,omitempty" yaml:"-"`
}

// Clone returns a deep copy of the wildcard.
func (w *Wildcard) Clone() *Wildcard {
	if w == nil {
		return nil
	}
	out := *w
	out.Includes = slices.Clone(w.Includes)
	out.Choices = make([]Choice, len(w.Choices))
	for i, c := range w.Choices {
		out.Choices[i] = c.Clone()
	}
	return &out
}

// Values returns the choice values in file order.
func (w *Wildcard) Values() []string {
	out := make([]string, len(w.Choices))
	for i, c := range w.Choices {
		out[i] = c.Value
	}
	return out
}

// Find returns the index of the first choice whose value equals v, or -1.
func (w *Wildcard) Find(v string) int {
	for i, c := range w.Choices {
		if c.Value == v {
			return i
		}
	}
	return -1
}

// NormalizeValue folds case and collapses whitespace so that values which only
// differ cosmetically compare equal.
func NormalizeValue(v string) string {
	return strings.ToLower(strings.Join(strings.Fields(v), " "))
}

// Catalog is every wildcard persisted in a single scope.
type Catalog struct {
	Scope     Scope
	Wildcards map[string]*Wildcard
	Corrupt   map[string]*CorruptWildcardError
}

// NewCatalog returns an empty catalog for the scope.
func NewCatalog(scope Scope) *Catalog {
	return &Catalog{
		Scope:     scope,
		Wildcards: make(map[string]*Wildcard),
		Corrupt:   make(map[string]*CorruptWildcardError),
	}
}

// Corpus is the read-only view of every wildcard visible to one workflow.
type Corpus struct {
	Workflow  Workflow
	Wildcards map[string]*Wildcard
	Corrupt   map[string]*CorruptWildcardError
}

// MergeCatalogs overlays the catalogs in order. A later catalog shadows earlier
// definitions of the same name, including with a corrupt entry.
func MergeCatalogs(workflow Workflow, catalogs ...*Catalog) *Corpus {
	c := &Corpus{
		Workflow:  workflow,
		Wildcards: make(map[string]*Wildcard),
		Corrupt:   make(map[string]*CorruptWildcardError),
	}
	for _, cat := range catalogs {
		if cat == nil {
			continue
		}
		for name, w := range cat.Wildcards {
			c.Wildcards[name] = w
			delete(c.Corrupt, name)
		}
		for name, err := range cat.Corrupt {
			c.Corrupt[name] = err
			delete(c.Wildcards, name)
		}
	}
	return c
}

// Get returns the named wildcard if it is visible and well formed.
func (c *Corpus) Get(name string) (*Wildcard, bool) {
	w, ok := c.Wildcards[name]
	return w, ok
}

// Has reports whether the name exists in the corpus, corrupt or not.
func (c *Corpus) Has(name string) bool {
	if _, ok := c.Wildcards[name]; ok {
		return true
	}
	_, ok := c.Corrupt[name]
	return ok
}

// Names returns the names of every well formed wildcard, sorted.
func (c *Corpus) Names() []string {
	names := make([]string, 0, len(c.Wildcards))
	for n := range c.Wildcards {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
