package domain

import (
	"slices"
	"sort"
)

// MergeChoices appends the choices of extra to base. A choice whose normalized
// value already exists is folded into the existing entry: tags and includes are
// unioned, requires keys missing from the existing entry are copied over, new
// conditions are appended and the larger weight wins.
func MergeChoices(base []Choice, extra ...Choice) []Choice {
	out := make([]Choice, 0, len(base)+len(extra))
	index := make(map[string]int, len(base)+len(extra))
	for _, c := range append(slices.Clone(base), extra...) {
		key := NormalizeValue(c.Value)
		if i, ok := index[key]; ok {
			out[i] = mergeChoice(out[i], c)
			continue
		}
		index[key] = len(out)
		out = append(out, c.Clone())
	}
	return out
}

func mergeChoice(a, b Choice) Choice {
	a.Tags = union(a.Tags, b.Tags)
	a.Includes = union(a.Includes, b.Includes)
	if b.Weight > a.Weight {
		a.Weight = b.Weight
	}
	for k, v := range b.Requires {
		if a.Requires == nil {
			a.Requires = make(map[string]string)
		}
		if _, ok := a.Requires[k]; !ok {
			a.Requires[k] = v
		}
	}
	seen := make(map[string]bool, len(a.Conditions))
	for _, c := range a.Conditions {
		seen[c.String()] = true
	}
	for _, c := range b.Conditions {
		if !seen[c.String()] {
			seen[c.String()] = true
			a.Conditions = append(a.Conditions, Rule{c}.Clone()...)
		}
	}
	return a
}

func union(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(slices.Clone(a), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
