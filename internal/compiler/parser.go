package compiler

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/aretw0/thicket/pkg/domain"
)

// directivePattern matches __name__, __!name__, __name:n__ and __name:min-max__.
// Names never span lines.
var directivePattern = regexp.MustCompile(`__(!)?([A-Za-z0-9_. \t-]+?)(?::(\d+)(?:-(\d+))?)?__`)

const (
	groupUnique = 1
	groupName   = 2
	groupMin    = 3
	groupMax    = 4
)

// Parser is responsible for converting raw template text into a Template.
type Parser struct{}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{}
}

// Parse is a convenience wrapper around Parser.Parse.
func Parse(text string) (*domain.Template, error) {
	return NewParser().Parse(text)
}

// Parse splits text into literal spans and directives.
// Marker content that does not form a directive stays literal. Directives that
// match the grammar but are invalid (empty range, min above max) are collected
// into a single *domain.SyntaxError and no template is returned.
func (p *Parser) Parse(text string) (*domain.Template, error) {
	var (
		spans  []domain.Span
		issues []domain.SyntaxIssue
		last   int
		index  int
	)

	for _, m := range directivePattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[0], m[1]
		raw := text[start:end]
		name := strings.TrimSpace(group(text, m, groupName))

		if !isName(name) {
			// e.g. "_____" or "__ . __": leave it for the literal span.
			continue
		}

		d := &domain.Directive{
			Kind:   domain.DirectivePlain,
			Name:   name,
			Raw:    raw,
			Offset: start,
		}
		if group(text, m, groupUnique) != "" {
			d.Kind = domain.DirectiveUnique
		}

		if minText := group(text, m, groupMin); minText != "" {
			maxText := group(text, m, groupMax)
			if maxText == "" {
				maxText = minText
			}
			lo, errLo := strconv.Atoi(minText)
			hi, errHi := strconv.Atoi(maxText)
			switch {
			case errLo != nil || errHi != nil:
				issues = append(issues, issueAt(text, start, raw, "range bound out of bounds"))
				continue
			case hi == 0:
				issues = append(issues, issueAt(text, start, raw, "range must allow at least one value"))
				continue
			case lo > hi:
				issues = append(issues, issueAt(text, start, raw, "range minimum is greater than maximum"))
				continue
			}
			if d.Kind == domain.DirectiveUnique {
				issues = append(issues, issueAt(text, start, raw, "unique marker cannot be combined with a range"))
				continue
			}
			d.Kind = domain.DirectiveRange
			d.Min, d.Max = lo, hi
		}

		if start > last {
			spans = append(spans, domain.Span{Literal: text[last:start]})
		}
		d.Index = index
		index++
		spans = append(spans, domain.Span{Directive: d})
		last = end
	}

	if len(issues) > 0 {
		return nil, &domain.SyntaxError{Issues: issues}
	}

	if last < len(text) {
		spans = append(spans, domain.Span{Literal: text[last:]})
	}
	return domain.NewTemplate(text, spans), nil
}

// References returns every wildcard name mentioned by a directive-shaped marker,
// in order of first appearance, without validating ranges.
func References(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range directivePattern.FindAllStringSubmatchIndex(text, -1) {
		name := strings.TrimSpace(group(text, m, groupName))
		if !isName(name) || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// Rename rewrites every directive naming oldName so it names newName, keeping
// the unique marker and range suffix. It returns the new text and the number
// of directives rewritten.
func Rename(text, oldName, newName string) (string, int) {
	matches := directivePattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, 0
	}

	var (
		sb    strings.Builder
		last  int
		count int
	)
	for _, m := range matches {
		if strings.TrimSpace(group(text, m, groupName)) != oldName {
			continue
		}
		nameStart, nameEnd := m[2*groupName], m[2*groupName+1]
		sb.WriteString(text[last:nameStart])
		sb.WriteString(newName)
		last = nameEnd
		count++
	}
	if count == 0 {
		return text, 0
	}
	sb.WriteString(text[last:])
	return sb.String(), count
}

func group(text string, m []int, g int) string {
	if m[2*g] < 0 {
		return ""
	}
	return text[m[2*g]:m[2*g+1]]
}

func isName(name string) bool {
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return true
		}
	}
	return false
}

func issueAt(text string, offset int, raw, reason string) domain.SyntaxIssue {
	line := 1 + strings.Count(text[:offset], "\n")
	col := offset + 1
	if nl := strings.LastIndexByte(text[:offset], '\n'); nl >= 0 {
		col = offset - nl
	}
	return domain.SyntaxIssue{
		Offset: offset,
		Line:   line,
		Column: col,
		Raw:    raw,
		Reason: reason,
	}
}
