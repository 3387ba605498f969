package domain

import "strings"

// DirectiveKind distinguishes the placeholder variants.
type DirectiveKind int

const (
	// DirectivePlain resolves to one value.
	DirectivePlain DirectiveKind = iota
	// DirectiveUnique resolves to one value not yet bound to the same name.
	DirectiveUnique
	// DirectiveRange resolves to between Min and Max distinct values.
	DirectiveRange
)

func (k DirectiveKind) String() string {
	switch k {
	case DirectiveUnique:
		return "unique"
	case DirectiveRange:
		return "range"
	default:
		return "plain"
	}
}

// MarshalText renders the kind by name in JSON and YAML output.
func (k DirectiveKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Directive is one placeholder occurrence in a template.
type Directive struct {
	Kind DirectiveKind `json:"kind"`
	Name string        `json:"name"`
	Min  int           `json:"min,omitempty"`
	Max  int           `json:"max,omitempty"`

	// Raw is the exact source text of the directive, markers included.
	Raw string `json:"raw"`
	// Offset is the byte offset of Raw in the template source.
	Offset int `json:"offset"`
	// Index is the position of the directive among the template's directives.
	Index int `json:"index"`
}

// Span is either a literal run of text or a directive.
type Span struct {
	Literal   string     `json:"literal,omitempty"`
	Directive *Directive `json:"directive,omitempty"`
}

// Template is the parsed form of template text.
type Template struct {
	Source string `json:"source"`
	Spans  []Span `json:"spans"`

	names []string
}

// NewTemplate builds a Template from spans and computes its resolvable set.
func NewTemplate(source string, spans []Span) *Template {
	t := &Template{Source: source, Spans: spans}
	seen := make(map[string]bool)
	for _, s := range spans {
		if s.Directive == nil || seen[s.Directive.Name] {
			continue
		}
		seen[s.Directive.Name] = true
		t.names = append(t.names, s.Directive.Name)
	}
	return t
}

// Names returns the wildcard names referenced by the template in order of first use.
func (t *Template) Names() []string {
	return append([]string(nil), t.names...)
}

// Directives returns the template's directives in order.
func (t *Template) Directives() []Directive {
	var out []Directive
	for _, s := range t.Spans {
		if s.Directive != nil {
			out = append(out, *s.Directive)
		}
	}
	return out
}

// String reconstructs the template source from its spans.
func (t *Template) String() string {
	var sb strings.Builder
	for _, s := range t.Spans {
		if s.Directive != nil {
			sb.WriteString(s.Directive.Raw)
			continue
		}
		sb.WriteString(s.Literal)
	}
	return sb.String()
}

// TemplateDoc is a stored template with its metadata.
type TemplateDoc struct {
	Name     string   `json:"name"`
	Title    string   `json:"title,omitempty"`
	Workflow Workflow `json:"workflow"`
	Tags     []string `json:"tags,omitempty"`
	Path     string   `json:"path,omitempty"`
	Text     string   `json:"text"`
}
