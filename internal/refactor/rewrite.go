package refactor

import (
	"fmt"
	"strings"

	"github.com/aretw0/thicket/internal/compiler"
	"github.com/aretw0/thicket/pkg/domain"
)

// renameRefs rewrites every reference to oldName inside w: include entries,
// requires keys, condition names and directives embedded in choice values. It
// returns the number of references rewritten and a description of every
// choice that already pinned newName to a different value. Such a choice
// keeps both values, the moved one as a condition.
func renameRefs(w *domain.Wildcard, oldName, newName string) (int, []string) {
	n := 0
	var conflicts []string
	n += renameList(w.Includes, oldName, newName)
	for i := range w.Choices {
		c := &w.Choices[i]
		n += renameList(c.Includes, oldName, newName)

		if v, ok := c.Requires[oldName]; ok {
			delete(c.Requires, oldName)
			switch existing, clash := c.Requires[newName]; {
			case !clash:
				c.Requires[newName] = v
			case existing != v:
				c.Conditions = append(c.Conditions, domain.Condition{Name: newName, AnyOf: []string{v}})
				conflicts = append(conflicts, fmt.Sprintf("choice %d %q requires %s=%q and %s=%q", i, c.Value, newName, existing, newName, v))
			}
			n++
		}
		n += c.Conditions.RenameWildcard(oldName, newName)

		if strings.Contains(c.Value, "__") {
			value, count := compiler.Rename(c.Value, oldName, newName)
			c.Value = value
			n += count
		}
	}
	return n, conflicts
}

func renameList(list []string, oldName, newName string) int {
	n := 0
	for i, s := range list {
		if s == oldName {
			list[i] = newName
			n++
		}
	}
	return n
}

// replaceRequires rewrites requires pins and condition values naming
// oldValue of name.
func replaceRequires(w *domain.Wildcard, name, oldValue, newValue string) int {
	n := 0
	for i := range w.Choices {
		c := &w.Choices[i]
		if v, ok := c.Requires[name]; ok && v == oldValue {
			c.Requires[name] = newValue
			n++
		}
		n += c.Conditions.ReplaceValue(name, oldValue, newValue)
	}
	return n
}
