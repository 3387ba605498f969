package domain

import (
	"slices"
	"sort"
	"strings"
)

// ConditionOp is the operator of a compound condition.
type ConditionOp string

const (
	// OpMatch tests the values bound to a single wildcard.
	OpMatch ConditionOp = ""
	OpAnd   ConditionOp = "and"
	OpOr    ConditionOp = "or"
	// OpNot holds when none of its terms hold.
	OpNot ConditionOp = "not"
	// OpTags is kept for files written by other tools. It is never evaluated.
	OpTags ConditionOp = "tags"
)

// IsConditionOp reports whether key is an operator rather than a wildcard name.
func IsConditionOp(key string) bool {
	switch ConditionOp(key) {
	case OpAnd, OpOr, OpNot, OpTags:
		return true
	}
	return false
}

// Condition is one entry of a requires object that is more than a single
// name=value pin: a value list, an any/not test, or a logical operator.
type Condition struct {
	Op ConditionOp `json:"op,omitempty" yaml:"op,omitempty"`

	// Name, AnyOf and NoneOf describe an OpMatch test. The wildcard must be
	// bound; when AnyOf is set one bound value must be in it, and no bound
	// value may be in NoneOf. OpTags keeps its tag list in AnyOf.
	Name   string   `json:"name,omitempty" yaml:"name,omitempty"`
	AnyOf  []string `json:"any,omitempty" yaml:"any,omitempty"`
	NoneOf []string `json:"none,omitempty" yaml:"none,omitempty"`

	// Terms are the operands of and, or and not.
	Terms []Rule `json:"terms,omitempty" yaml:"terms,omitempty"`
}

// Rule is a conjunction of conditions, the shape of a requires object.
type Rule []Condition

// Holds evaluates the rule. An empty rule always holds.
func (r Rule) Holds(bound map[string][]string) bool {
	for _, c := range r {
		if !c.Holds(bound) {
			return false
		}
	}
	return true
}

// Holds evaluates the condition against the values bound so far.
// A test on an unbound wildcard fails.
func (c Condition) Holds(bound map[string][]string) bool {
	switch c.Op {
	case OpAnd:
		for _, t := range c.Terms {
			if !t.Holds(bound) {
				return false
			}
		}
		return true
	case OpOr:
		for _, t := range c.Terms {
			if t.Holds(bound) {
				return true
			}
		}
		return false
	case OpNot:
		for _, t := range c.Terms {
			if t.Holds(bound) {
				return false
			}
		}
		return true
	case OpTags:
		return true
	}

	values := bound[c.Name]
	if len(values) == 0 {
		return false
	}
	if len(c.AnyOf) > 0 && !overlaps(values, c.AnyOf) {
		return false
	}
	return !overlaps(values, c.NoneOf)
}

func overlaps(a, b []string) bool {
	for _, v := range a {
		if slices.Contains(b, v) {
			return true
		}
	}
	return false
}

// Names returns the wildcard names the rule tests, sorted.
func (r Rule) Names() []string {
	seen := make(map[string]bool)
	r.walk(func(c *Condition) {
		if c.Op == OpMatch && c.Name != "" {
			seen[c.Name] = true
		}
	})
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Values returns every value the rule mentions for name, accepted or rejected,
// in first-seen order.
func (r Rule) Values(name string) []string {
	var out []string
	r.walk(func(c *Condition) {
		if c.Op != OpMatch || c.Name != name {
			return
		}
		for _, v := range append(slices.Clone(c.AnyOf), c.NoneOf...) {
			if !slices.Contains(out, v) {
				out = append(out, v)
			}
		}
	})
	return out
}

// RenameWildcard points every test on oldName at newName and returns the
// number of tests changed.
func (r Rule) RenameWildcard(oldName, newName string) int {
	n := 0
	r.walk(func(c *Condition) {
		if c.Op == OpMatch && c.Name == oldName {
			c.Name = newName
			n++
		}
	})
	return n
}

// ReplaceValue rewrites oldValue to newValue in every test on name and
// returns the number of values changed.
func (r Rule) ReplaceValue(name, oldValue, newValue string) int {
	n := 0
	r.walk(func(c *Condition) {
		if c.Op != OpMatch || c.Name != name {
			return
		}
		for _, list := range [][]string{c.AnyOf, c.NoneOf} {
			for i, v := range list {
				if v == oldValue {
					list[i] = newValue
					n++
				}
			}
		}
	})
	return n
}

func (r Rule) walk(fn func(*Condition)) {
	for i := range r {
		c := &r[i]
		fn(c)
		for _, t := range c.Terms {
			t.walk(fn)
		}
	}
}

// Clone returns a deep copy of the rule.
func (r Rule) Clone() Rule {
	if r == nil {
		return nil
	}
	out := make(Rule, len(r))
	for i, c := range r {
		c.AnyOf = slices.Clone(c.AnyOf)
		c.NoneOf = slices.Clone(c.NoneOf)
		if c.Terms != nil {
			terms := make([]Rule, len(c.Terms))
			for j, t := range c.Terms {
				terms[j] = t.Clone()
			}
			c.Terms = terms
		}
		out[i] = c
	}
	return out
}

// String renders the rule for messages and graph labels.
func (r Rule) String() string {
	parts := make([]string, len(r))
	for i, c := range r {
		parts[i] = c.String()
	}
	return strings.Join(parts, " and ")
}

func (c Condition) String() string {
	switch c.Op {
	case OpAnd, OpOr:
		parts := make([]string, len(c.Terms))
		for i, t := range c.Terms {
			parts[i] = t.String()
		}
		return "(" + strings.Join(parts, " "+string(c.Op)+" ") + ")"
	case OpNot:
		parts := make([]string, len(c.Terms))
		for i, t := range c.Terms {
			parts[i] = t.String()
		}
		return "not (" + strings.Join(parts, " or ") + ")"
	case OpTags:
		return "tags [" + strings.Join(c.AnyOf, ", ") + "]"
	}

	if len(c.AnyOf) == 0 && len(c.NoneOf) == 0 {
		return c.Name + " bound"
	}
	var parts []string
	switch {
	case len(c.AnyOf) == 1:
		parts = append(parts, c.Name+"="+c.AnyOf[0])
	case len(c.AnyOf) > 1:
		parts = append(parts, c.Name+" in ["+strings.Join(c.AnyOf, ", ")+"]")
	}
	if len(c.NoneOf) > 0 {
		parts = append(parts, c.Name+" not in ["+strings.Join(c.NoneOf, ", ")+"]")
	}
	return strings.Join(parts, " and ")
}
