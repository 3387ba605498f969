package validator

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/aretw0/thicket/internal/compiler"
	"github.com/aretw0/thicket/internal/depgraph"
	"github.com/aretw0/thicket/internal/logging"
	"github.com/aretw0/thicket/internal/suggest"
	"github.com/aretw0/thicket/pkg/domain"
	"github.com/aretw0/thicket/pkg/ports"
	"github.com/aretw0/thicket/pkg/scopelock"
)

// Validator runs every check against the wildcards and templates of a workflow.
type Validator struct {
	store     ports.ChoiceStore
	templates ports.TemplateLibrary
	locks     *scopelock.Manager
	logger    *slog.Logger
}

// Option configures the Validator.
type Option func(*Validator)

// WithTemplates adds the template library to the checked set.
func WithTemplates(lib ports.TemplateLibrary) Option {
	return func(v *Validator) {
		v.templates = lib
	}
}

// WithLocks makes Run wait for refactor batches holding the scope lock.
func WithLocks(locks *scopelock.Manager) Option {
	return func(v *Validator) {
		v.locks = locks
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// New creates a Validator over the store.
func New(store ports.ChoiceStore, opts ...Option) *Validator {
	v := &Validator{store: store, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Run validates the workflow and returns the ordered diagnostics.
// An error is only returned when the snapshot or the template list cannot be read.
func (v *Validator) Run(ctx context.Context, workflow domain.Workflow) ([]domain.Diagnostic, error) {
	var (
		corpus *domain.Corpus
		docs   []domain.TemplateDoc
	)
	read := func(ctx context.Context) error {
		var err error
		corpus, err = v.store.Snapshot(ctx, workflow)
		if err != nil {
			return fmt.Errorf("failed to snapshot wildcards: %w", err)
		}
		if v.templates != nil {
			docs, err = v.templates.Templates(ctx, workflow)
			if err != nil {
				return fmt.Errorf("failed to list templates: %w", err)
			}
		}
		return nil
	}

	var err error
	if v.locks == nil {
		err = read(ctx)
	} else {
		err = v.locks.WithRLock(ctx, workflow.Scopes(), read)
	}
	if err != nil {
		return nil, err
	}

	diags := Validate(depgraph.Build(corpus), docs...)
	v.logger.Debug("validation finished",
		"workflow", workflow,
		"wildcards", len(corpus.Wildcards),
		"templates", len(docs),
		"diagnostics", len(diags),
		"errors", len(domain.Errors(diags)),
	)
	return diags, nil
}

// Validate runs every check. Checks are independent and all of them run, so a
// single pass surfaces the full set of findings. Diagnostics are grouped by
// check, then ordered by file and choice index.
func Validate(g *depgraph.Graph, templates ...domain.TemplateDoc) []domain.Diagnostic {
	parsed, syntax := parseTemplates(templates)

	checks := []func() []domain.Diagnostic{
		func() []domain.Diagnostic { return brokenReferences(g, parsed) },
		func() []domain.Diagnostic { return cyclicIncludes(g) },
		func() []domain.Diagnostic { return emptyWildcards(g) },
		func() []domain.Diagnostic { return duplicateChoices(g) },
		func() []domain.Diagnostic { return missingRequiredValues(g) },
		func() []domain.Diagnostic { return outOfOrderRequires(g, parsed) },
		func() []domain.Diagnostic { return corruptWildcards(g) },
		func() []domain.Diagnostic { return syntax },
	}

	var out []domain.Diagnostic
	for _, check := range checks {
		diags := check()
		sort.SliceStable(diags, func(i, j int) bool { return less(diags[i], diags[j]) })
		out = append(out, diags...)
	}
	return out
}

func less(a, b domain.Diagnostic) bool {
	if a.File != b.File {
		return a.File < b.File
	}
	if a.Template != b.Template {
		return a.Template < b.Template
	}
	if a.ChoiceIndex != b.ChoiceIndex {
		return a.ChoiceIndex < b.ChoiceIndex
	}
	return a.Directive < b.Directive
}

type parsedTemplate struct {
	doc  domain.TemplateDoc
	tmpl *domain.Template
}

func parseTemplates(docs []domain.TemplateDoc) ([]parsedTemplate, []domain.Diagnostic) {
	var (
		out   []parsedTemplate
		diags []domain.Diagnostic
	)
	for _, doc := range docs {
		tmpl, err := compiler.Parse(doc.Text)
		if err == nil {
			out = append(out, parsedTemplate{doc: doc, tmpl: tmpl})
			continue
		}
		diags = append(diags, domain.Diagnostic{
			Kind:        domain.DiagTemplateSyntax,
			Severity:    domain.SeverityError,
			Template:    doc.Name,
			Path:        doc.Path,
			ChoiceIndex: -1,
			Message:     fmt.Sprintf("%s: %v", doc.Name, err),
		})
	}
	return out, diags
}

func wildcardDiag(g *depgraph.Graph, kind domain.DiagnosticKind, sev domain.Severity, name string, choice int) domain.Diagnostic {
	d := domain.Diagnostic{Kind: kind, Severity: sev, File: name, ChoiceIndex: choice}
	if w, ok := g.Corpus().Get(name); ok {
		d.Scope = w.Scope
		d.Path = w.Path
	}
	return d
}

func brokenReferences(g *depgraph.Graph, templates []parsedTemplate) []domain.Diagnostic {
	known := g.Corpus().Names()
	var diags []domain.Diagnostic
	for _, e := range g.Dangling() {
		d := wildcardDiag(g, domain.DiagBrokenReference, domain.SeverityError, e.From, e.ChoiceIndex)
		d.Target = e.To
		d.EdgeKind = string(e.Kind)
		d.Hint = suggest.Hint(e.To, known)
		verb := "includes"
		if e.Kind == domain.EdgeRequires {
			verb = "requires"
		}
		d.Message = fmt.Sprintf("%s %s %q, which does not exist", locate(e.From, e.ChoiceIndex), verb, e.To)
		diags = append(diags, d)
	}

	for _, t := range templates {
		for _, dir := range t.tmpl.Directives() {
			if g.Has(dir.Name) {
				continue
			}
			diags = append(diags, domain.Diagnostic{
				Kind:        domain.DiagBrokenReference,
				Severity:    domain.SeverityError,
				Template:    t.doc.Name,
				Path:        t.doc.Path,
				ChoiceIndex: -1,
				Directive:   dir.Index,
				Target:      dir.Name,
				EdgeKind:    string(domain.EdgeInclude),
				Hint:        suggest.Hint(dir.Name, known),
				Message:     fmt.Sprintf("template %s references %q, which does not exist", t.doc.Name, dir.Name),
			})
		}
	}
	return diags
}

func cyclicIncludes(g *depgraph.Graph) []domain.Diagnostic {
	var diags []domain.Diagnostic
	for _, cycle := range g.IncludeCycles() {
		d := wildcardDiag(g, domain.DiagCyclicInclude, domain.SeverityError, cycle[0], -1)
		d.Cycle = cycle
		d.Message = "include cycle: " + strings.Join(cycle, " -> ")
		diags = append(diags, d)
	}
	return diags
}

func emptyWildcards(g *depgraph.Graph) []domain.Diagnostic {
	corpus := g.Corpus()
	var diags []domain.Diagnostic
	for _, name := range corpus.Names() {
		if len(corpus.Wildcards[name].Choices) > 0 {
			continue
		}
		d := wildcardDiag(g, domain.DiagEmptyWildcard, domain.SeverityError, name, -1)
		d.Message = fmt.Sprintf("wildcard %s has no choices", name)
		diags = append(diags, d)
	}
	return diags
}

func duplicateChoices(g *depgraph.Graph) []domain.Diagnostic {
	corpus := g.Corpus()
	var diags []domain.Diagnostic
	for _, name := range corpus.Names() {
		groups := make(map[string][]int)
		var order []string
		for i, c := range corpus.Wildcards[name].Choices {
			key := domain.NormalizeValue(c.Value)
			if _, ok := groups[key]; !ok {
				order = append(order, key)
			}
			groups[key] = append(groups[key], i)
		}
		for _, key := range order {
			idx := groups[key]
			if len(idx) < 2 {
				continue
			}
			d := wildcardDiag(g, domain.DiagDuplicateChoice, domain.SeverityWarning, name, idx[0])
			d.Indexes = idx
			for _, i := range idx {
				d.Values = append(d.Values, corpus.Wildcards[name].Choices[i].Value)
			}
			d.Message = fmt.Sprintf("wildcard %s repeats %q at choices %s", name, key, joinInts(idx))
			d.Hint = "merge the duplicates or remove all but one"
			diags = append(diags, d)
		}
	}
	return diags
}

func missingRequiredValues(g *depgraph.Graph) []domain.Diagnostic {
	corpus := g.Corpus()
	var diags []domain.Diagnostic
	for _, e := range g.Edges() {
		if e.Kind != domain.EdgeRequires || e.Dangling || e.Value == "" {
			continue
		}
		target, ok := corpus.Get(e.To)
		if !ok || target.Find(e.Value) >= 0 {
			continue
		}
		d := wildcardDiag(g, domain.DiagMissingRequiredValue, domain.SeverityError, e.From, e.ChoiceIndex)
		d.Target = e.To
		d.Values = []string{e.Value}
		d.Message = fmt.Sprintf("%s requires %s=%q, but %s never produces that value", locate(e.From, e.ChoiceIndex), e.To, e.Value, e.To)
		d.Hint = suggest.Hint(e.Value, target.Values())
		diags = append(diags, d)
	}
	return diags
}

// outOfOrderRequires walks each template's directives in order. A name counts
// as bound once an earlier directive names it or reaches it through includes.
// Every wildcard the current directive reaches through includes is checked,
// not only the directive's own. A wildcard reached from the directive may
// also rely on a sibling include of that directive. A requires name that is
// not bound yet is reported once per template, directive name and name.
func outOfOrderRequires(g *depgraph.Graph, templates []parsedTemplate) []domain.Diagnostic {
	corpus := g.Corpus()
	closures := make(map[string]map[string]bool)
	closureOf := func(name string) map[string]bool {
		if c, ok := closures[name]; ok {
			return c
		}
		c := make(map[string]bool)
		for _, n := range includeClosure(g, name) {
			c[n] = true
		}
		closures[name] = c
		return c
	}

	var diags []domain.Diagnostic
	for _, t := range templates {
		referenced := t.tmpl.Names()
		bound := make(map[string]bool)
		reported := make(map[[2]string]bool)

		for _, dir := range t.tmpl.Directives() {
			reach := closureOf(dir.Name)
			for _, via := range reachOrder(dir.Name, reach) {
				w, ok := corpus.Get(via)
				if !ok {
					continue
				}
				own := closureOf(via)
				for _, c := range w.Choices {
					for _, key := range c.RequiredNames() {
						k := [2]string{dir.Name, key}
						if bound[key] || reported[k] || (via != dir.Name && reach[key] && !own[key]) {
							continue
						}
						reported[k] = true

						when := "is never bound before it"
						if slices.Contains(referenced, key) {
							when = "is only bound later in the template"
						}
						who := dir.Name
						if via != dir.Name {
							who = fmt.Sprintf("%s (through %s)", dir.Name, via)
						}
						diags = append(diags, domain.Diagnostic{
							Kind:        domain.DiagOutOfOrderRequires,
							Severity:    domain.SeverityWarning,
							Template:    t.doc.Name,
							Path:        t.doc.Path,
							ChoiceIndex: -1,
							Directive:   dir.Index,
							Target:      key,
							Message:     fmt.Sprintf("%s: %s requires %s, which %s", t.doc.Name, who, key, when),
							Hint:        fmt.Sprintf("place a __%s__ directive before __%s__", key, dir.Name),
						})
					}
				}
			}
			for name := range reach {
				bound[name] = true
			}
			bound[dir.Name] = true
		}
	}
	return diags
}

// reachOrder lists the directive's own wildcard first, then the rest sorted.
func reachOrder(name string, reach map[string]bool) []string {
	out := make([]string, 0, len(reach))
	for n := range reach {
		if n != name {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return append([]string{name}, out...)
}

func includeClosure(g *depgraph.Graph, name string) []string {
	seen := map[string]bool{name: true}
	queue := []string{name}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, e := range g.Out(n) {
			if e.Kind == domain.EdgeInclude && !seen[e.To] {
				seen[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	return out
}

func corruptWildcards(g *depgraph.Graph) []domain.Diagnostic {
	corpus := g.Corpus()
	var diags []domain.Diagnostic
	for name, cerr := range corpus.Corrupt {
		diags = append(diags, domain.Diagnostic{
			Kind:        domain.DiagCorruptWildcard,
			Severity:    domain.SeverityError,
			File:        name,
			Scope:       cerr.Scope,
			Path:        cerr.Path,
			ChoiceIndex: -1,
			Message:     cerr.Error(),
			Hint:        "fix the file by hand or re-import it",
		})
	}
	return diags
}

func locate(name string, choice int) string {
	if choice < 0 {
		return name
	}
	return fmt.Sprintf("%s[%d]", name, choice)
}

func joinInts(in []int) string {
	parts := make([]string, len(in))
	for i, n := range in {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}
