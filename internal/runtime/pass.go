package runtime

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/aretw0/thicket/internal/compiler"
	"github.com/aretw0/thicket/pkg/domain"
)

// pass is the resolution context of a single call. It is never shared.
type pass struct {
	corpus   *domain.Corpus
	rng      *rand.Rand
	maxDepth int
	sep      string

	// budget is the number of expansions left.
	budget    int
	exhausted bool

	bound  map[string][]string
	stack  []string
	result *domain.ResolvedPrompt

	// directive is the index of the top-level directive being resolved.
	directive int
	// segProblem is the first problem raised by the current top-level directive itself.
	segProblem domain.ProblemKind

	reroll map[string]bool
	swap   map[string]string
	reuse  map[reuseKey][][]string
	byName map[string][][]string

	parsed  map[string]*domain.Template
	missing map[string]bool
}

type reuseKey struct {
	directive int
	name      string
}

func newPass(corpus *domain.Corpus, opts Options, rng *rand.Rand) *pass {
	p := &pass{
		corpus:   corpus,
		rng:      rng,
		maxDepth: opts.MaxDepth,
		sep:      opts.Separator,
		budget:   opts.MaxExpansions,
		bound:    make(map[string][]string),
		result:   &domain.ResolvedPrompt{Workflow: corpus.Workflow},
		reroll:   make(map[string]bool),
		swap:     opts.Swap,
		reuse:    make(map[reuseKey][][]string),
		byName:   make(map[string][][]string),
		parsed:   make(map[string]*domain.Template),
		missing:  make(map[string]bool),
	}
	for _, name := range opts.Reroll {
		p.reroll[name] = true
	}
	for _, b := range opts.Existing {
		k := reuseKey{b.Directive, b.Name}
		p.reuse[k] = append(p.reuse[k], b.Values)
		if b.Depth == 0 {
			p.byName[b.Name] = append(p.byName[b.Name], b.Values)
		}
	}
	return p
}

func (p *pass) run(tmpl *domain.Template) {
	var text strings.Builder
	for _, span := range tmpl.Spans {
		if span.Directive == nil {
			p.result.Segments = append(p.result.Segments, domain.Segment{Text: span.Literal, Directive: -1})
			text.WriteString(span.Literal)
			continue
		}

		d := *span.Directive
		p.directive = d.Index
		p.segProblem = ""
		out, values := p.expand(d, 0)

		p.result.Segments = append(p.result.Segments, domain.Segment{
			Text:      out,
			Name:      d.Name,
			Kind:      d.Kind,
			Directive: d.Index,
			Values:    values,
			Problem:   p.segProblem,
		})
		text.WriteString(out)
	}
	p.result.Text = text.String()
}

// expand resolves one directive at the given inclusion depth and returns the
// spliced text together with the raw values bound for it.
func (p *pass) expand(d domain.Directive, depth int) (string, []string) {
	name := d.Name

	if i := slices.Index(p.stack, name); i >= 0 {
		path := append(slices.Clone(p.stack[i:]), name)
		p.problem(domain.ProblemCyclicInclude, name, depth, path, "")
		return "", nil
	}
	if len(p.stack) >= p.maxDepth {
		path := append(slices.Clone(p.stack), name)
		p.problem(domain.ProblemCyclicInclude, name, depth, path, fmt.Sprintf("inclusion depth limit %d reached", p.maxDepth))
		return "", nil
	}

	if p.budget <= 0 {
		// Reported once, then again for each later top-level directive.
		if !p.exhausted || depth == 0 {
			p.exhausted = true
			p.problem(domain.ProblemExpansionLimit, name, depth, nil, "expansion budget spent")
		}
		return "", nil
	}
	p.budget--

	if cerr, ok := p.corpus.Corrupt[name]; ok {
		p.problem(domain.ProblemCorruptWildcard, name, depth, nil, cerr.Error())
		return "", nil
	}
	w, ok := p.corpus.Get(name)
	if !ok {
		if !p.missing[name] {
			p.missing[name] = true
			p.result.Missing = append(p.result.Missing, name)
		}
		p.problem(domain.ProblemMissingWildcard, name, depth, nil, "")
		return "", nil
	}

	chosen, ok := p.choose(d, w, depth)
	if !ok {
		return "", nil
	}

	values := make([]string, len(chosen))
	for i, c := range chosen {
		values[i] = c.Value
	}
	// Bind before expanding so nested requires observe the parent's value.
	p.bound[name] = append(p.bound[name], values...)
	p.result.Bindings = append(p.result.Bindings, domain.Binding{
		Name:      name,
		Values:    values,
		Directive: p.directive,
		Depth:     depth,
	})

	p.stack = append(p.stack, name)
	parts := make([]string, len(chosen))
	for i, c := range chosen {
		parts[i] = p.expandValue(c, depth)
	}
	p.stack = p.stack[:len(p.stack)-1]

	return strings.Join(parts, p.sep), values
}

// choose selects the choices for a directive: a forced swap, a reused
// existing binding that is still eligible, or a fresh weighted draw.
func (p *pass) choose(d domain.Directive, w *domain.Wildcard, depth int) ([]domain.Choice, bool) {
	name := d.Name

	if v, ok := p.swap[name]; ok && depth == 0 {
		if i := w.Find(v); i >= 0 {
			return []domain.Choice{w.Choices[i]}, true
		}
		return []domain.Choice{{Value: v, Weight: 1}}, true
	}

	eligible := EligibleChoices(w.Choices, p.bound)
	if len(eligible) == 0 {
		p.problem(domain.ProblemUnsatisfiableRequires, name, depth, nil, unmet(w.Choices, p.bound))
		return nil, false
	}

	if d.Kind == domain.DirectiveUnique {
		used := p.bound[name]
		eligible = slices.DeleteFunc(eligible, func(c domain.Choice) bool {
			return slices.Contains(used, c.Value)
		})
		if len(eligible) == 0 {
			p.problem(domain.ProblemUnsatisfiableUnique, name, depth, nil,
				fmt.Sprintf("all %d eligible values already used", len(used)))
			return nil, false
		}
	}

	if reused, ok := p.reused(name, eligible, depth); ok {
		return reused, true
	}

	count := 1
	if d.Kind == domain.DirectiveRange {
		if d.Max > len(eligible) {
			count = len(eligible)
			p.result.Clamps = append(p.result.Clamps, domain.Clamp{
				Name:      name,
				Directive: p.directive,
				Requested: d.Max,
				Granted:   count,
			})
		} else {
			count = d.Min + p.rng.IntN(d.Max-d.Min+1)
		}
	}
	return sample(p.rng, eligible, count), true
}

// reused pops the next existing binding for the name. The binding is only
// kept when every value is still eligible.
func (p *pass) reused(name string, eligible []domain.Choice, depth int) ([]domain.Choice, bool) {
	if p.reroll[name] {
		return nil, false
	}

	var values []string
	k := reuseKey{p.directive, name}
	switch {
	case len(p.reuse[k]) > 0:
		values, p.reuse[k] = p.reuse[k][0], p.reuse[k][1:]
	case depth == 0 && len(p.byName[name]) > 0:
		values, p.byName[name] = p.byName[name][0], p.byName[name][1:]
	default:
		return nil, false
	}
	if len(values) == 0 {
		return nil, false
	}

	out := make([]domain.Choice, 0, len(values))
	for _, v := range values {
		i := slices.IndexFunc(eligible, func(c domain.Choice) bool { return c.Value == v })
		if i < 0 {
			return nil, false
		}
		out = append(out, eligible[i])
	}
	return out, true
}

// expandValue resolves the directives embedded in a chosen value, then
// appends the resolution of included names the value does not embed.
func (p *pass) expandValue(c domain.Choice, depth int) string {
	var sb strings.Builder
	embedded := make(map[string]bool)

	tmpl, err := p.parse(c.Value)
	if err != nil {
		p.problem(domain.ProblemSyntax, c.Value, depth+1, nil, err.Error())
		sb.WriteString(c.Value)
	} else {
		for _, span := range tmpl.Spans {
			if span.Directive == nil {
				sb.WriteString(span.Literal)
				continue
			}
			embedded[span.Directive.Name] = true
			out, _ := p.expand(*span.Directive, depth+1)
			sb.WriteString(out)
		}
	}

	for _, inc := range c.Includes {
		if embedded[inc] {
			continue
		}
		out, _ := p.expand(domain.Directive{Kind: domain.DirectivePlain, Name: inc, Index: p.directive}, depth+1)
		if out == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(out)
	}
	return sb.String()
}

func (p *pass) parse(value string) (*domain.Template, error) {
	if t, ok := p.parsed[value]; ok {
		return t, nil
	}
	if !strings.Contains(value, "__") {
		t := domain.NewTemplate(value, []domain.Span{{Literal: value}})
		p.parsed[value] = t
		return t, nil
	}
	t, err := compiler.Parse(value)
	if err != nil {
		return nil, err
	}
	p.parsed[value] = t
	return t, nil
}

func (p *pass) problem(kind domain.ProblemKind, name string, depth int, path []string, detail string) {
	if depth == 0 && p.segProblem == "" {
		p.segProblem = kind
	}
	p.result.Problems = append(p.result.Problems, domain.Problem{
		Kind:      kind,
		Name:      name,
		Directive: p.directive,
		Path:      path,
		Detail:    detail,
	})
}

// unmet describes the first unmet requires entry, for diagnostics.
func unmet(choices []domain.Choice, bound map[string][]string) string {
	for _, c := range choices {
		for _, key := range c.RequireKeys() {
			values, ok := bound[key]
			if !ok {
				return fmt.Sprintf("%q requires %s=%q but %s is unbound", c.Value, key, c.Requires[key], key)
			}
			if !slices.Contains(values, c.Requires[key]) {
				return fmt.Sprintf("%q requires %s=%q but %s is %q", c.Value, key, c.Requires[key], key, strings.Join(values, ", "))
			}
		}
		for _, cond := range c.Conditions {
			if !cond.Holds(bound) {
				return fmt.Sprintf("%q requires %s", c.Value, cond)
			}
		}
	}
	if len(choices) == 0 {
		return "wildcard has no choices"
	}
	return ""
}
