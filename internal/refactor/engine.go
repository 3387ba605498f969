// Package refactor applies project wide renames and value changes.
//
// A batch first plans every write from a consistent snapshot, then performs
// the writes one file at a time. Each write is atomic on its own; the batch is
// not. Outcomes are reported per file and nothing is rolled back.
package refactor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/aretw0/thicket/internal/compiler"
	"github.com/aretw0/thicket/internal/depgraph"
	"github.com/aretw0/thicket/internal/logging"
	"github.com/aretw0/thicket/internal/suggest"
	"github.com/aretw0/thicket/pkg/domain"
	"github.com/aretw0/thicket/pkg/ports"
	"github.com/aretw0/thicket/pkg/scopelock"
	"github.com/cockroachdb/errors"
)

const (
	OpRename       = "rename"
	OpReplaceValue = "replace-value"
	OpMerge        = "merge"
	OpImport       = "import"
	OpArchive      = "archive"
)

// Engine rewrites wildcard files and templates.
type Engine struct {
	store     ports.ChoiceStore
	templates ports.TemplateStore
	locks     *scopelock.Manager
	logger    *slog.Logger
}

// Option configures the Engine.
type Option func(*Engine)

// WithTemplates makes renames rewrite the directives of stored templates.
func WithTemplates(templates ports.TemplateStore) Option {
	return func(e *Engine) {
		e.templates = templates
	}
}

// WithLocks shares the scope locks with the resolvers reading the same store.
func WithLocks(locks *scopelock.Manager) Option {
	return func(e *Engine) {
		if locks != nil {
			e.locks = locks
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates a refactor Engine.
func New(store ports.ChoiceStore, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		locks:  scopelock.NewManager(),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// write is one planned file write.
type write struct {
	op       string
	wildcard *domain.Wildcard
	template *domain.TemplateDoc
	// remove is deleted after the wildcard is saved.
	remove    string
	archive   []string
	changes   int
	conflicts []string
}

// corpus is the per-scope view a batch plans against.
type corpus map[domain.Scope]*domain.Catalog

func (e *Engine) load(ctx context.Context) (corpus, error) {
	c := make(corpus)
	for _, scope := range domain.AllScopes {
		cat, err := e.store.Load(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s wildcards: %w", scope, err)
		}
		c[scope] = cat
	}
	return c, nil
}

// defined reports the scopes defining name, corrupt definitions included.
func (c corpus) defined(name string) []domain.Scope {
	var out []domain.Scope
	for _, scope := range domain.AllScopes {
		cat := c[scope]
		_, ok := cat.Wildcards[name]
		_, bad := cat.Corrupt[name]
		if ok || bad {
			out = append(out, scope)
		}
	}
	return out
}

func (c corpus) names() []string {
	seen := make(map[string]bool)
	var out []string
	for _, cat := range c {
		for n := range cat.Wildcards {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	sort.Strings(out)
	return out
}

// referrers returns clones of the wildcards in scope with an edge into name,
// sorted by name. The graph is built from that scope alone, so references to
// names defined in another scope still show up as (dangling) edges.
func (c corpus) referrers(scope domain.Scope, name string) []*domain.Wildcard {
	cat := c[scope]
	g := depgraph.Build(domain.MergeCatalogs("", cat))
	var out []*domain.Wildcard
	for _, from := range g.Dependents(name) {
		if w, ok := cat.Wildcards[from]; ok {
			out = append(out, w.Clone())
		}
	}
	return out
}

// Rename renames a wildcard in every scope defining it and rewrites every
// reference to it: include entries, requires keys, embedded directives and
// template directives.
func (e *Engine) Rename(ctx context.Context, oldName, newName string) (*Report, error) {
	if err := domain.ValidateName(newName); err != nil {
		return nil, err
	}
	if oldName == newName {
		return &Report{Operation: OpRename}, nil
	}

	var report *Report
	err := e.locks.WithLock(ctx, domain.AllScopes, func(ctx context.Context) error {
		c, err := e.load(ctx)
		if err != nil {
			return err
		}
		owners := c.defined(oldName)
		if len(owners) == 0 {
			return suggest.MissingWildcard(oldName, c.names())
		}
		if clash := c.defined(newName); len(clash) > 0 {
			return errors.WithHint(
				errors.Wrapf(domain.ErrNameConflict, "%q already exists in %s", newName, clash[0]),
				"use merge to fold one wildcard into the other",
			)
		}
		for _, scope := range owners {
			if cerr, bad := c[scope].Corrupt[oldName]; bad {
				return errors.WithHint(cerr, "fix the file before renaming it")
			}
		}

		var plan []write
		for _, scope := range domain.AllScopes {
			for _, w := range c.referrers(scope, oldName) {
				if w.Name == oldName {
					continue
				}
				if n, conflicts := renameRefs(w, oldName, newName); n > 0 {
					plan = append(plan, write{op: "rewrite", wildcard: w, changes: n, conflicts: conflicts})
				}
			}
		}
		for _, scope := range owners {
			w := c[scope].Wildcards[oldName].Clone()
			n, conflicts := renameRefs(w, oldName, newName)
			w.Name = newName
			w.Path = ""
			plan = append(plan, write{op: "rename", wildcard: w, remove: oldName, changes: n + 1, conflicts: conflicts})
		}
		tplan, err := e.planTemplates(ctx, map[string]string{oldName: newName})
		if err != nil {
			return err
		}
		plan = append(plan, tplan...)

		report = e.apply(ctx, OpRename, plan)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, report.Err()
}

// planTemplates rewrites the directives of every stored template, applying
// the renames old -> new in sorted order of the old names.
func (e *Engine) planTemplates(ctx context.Context, renames map[string]string) ([]write, error) {
	if e.templates == nil {
		return nil, nil
	}
	docs, err := e.templates.Templates(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	olds := make([]string, 0, len(renames))
	for old := range renames {
		olds = append(olds, old)
	}
	sort.Strings(olds)

	var plan []write
	for _, doc := range docs {
		total := 0
		for _, old := range olds {
			text, n := compiler.Rename(doc.Text, old, renames[old])
			doc.Text = text
			total += n
		}
		if total > 0 {
			plan = append(plan, write{op: "template", template: &doc, changes: total})
		}
	}
	return plan, nil
}

// ReplaceValue changes a choice value of the wildcard owned by scope and
// rewrites every requires entry pinned to the old value. References from the
// nsfw scope are left alone when nsfw shadows a shared wildcard.
func (e *Engine) ReplaceValue(ctx context.Context, scope domain.Scope, name, oldValue, newValue string) (*Report, error) {
	scope, err := domain.ParseScope(string(scope))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(newValue) == "" {
		return nil, errors.New("replacement value is empty")
	}
	if oldValue == newValue {
		return &Report{Operation: OpReplaceValue}, nil
	}

	var report *Report
	err = e.locks.WithLock(ctx, domain.AllScopes, func(ctx context.Context) error {
		c, err := e.load(ctx)
		if err != nil {
			return err
		}
		owner, ok := c[scope].Wildcards[name]
		if !ok {
			if cerr, bad := c[scope].Corrupt[name]; bad {
				return cerr
			}
			return suggest.MissingWildcard(name, c.names())
		}
		i := owner.Find(oldValue)
		if i < 0 {
			err := errors.Wrapf(domain.ErrValueNotFound, "%s has no choice %q", name, oldValue)
			if hint := suggest.Hint(oldValue, owner.Values()); hint != "" {
				err = errors.WithHint(err, hint)
			}
			return err
		}
		if owner.Find(newValue) >= 0 {
			return errors.WithHint(
				errors.Wrapf(domain.ErrNameConflict, "%s already has a choice %q", name, newValue),
				"remove one of the two choices first",
			)
		}

		w := owner.Clone()
		w.Choices[i].Value = newValue
		n := 1 + replaceRequires(w, name, oldValue, newValue)
		plan := []write{{op: "rewrite", wildcard: w, changes: n}}

		for _, s := range visibleFrom(c, scope, name) {
			for _, ref := range c.referrers(s, name) {
				if ref.Name == name && s == scope {
					continue
				}
				if n := replaceRequires(ref, name, oldValue, newValue); n > 0 {
					plan = append(plan, write{op: "rewrite", wildcard: ref, changes: n})
				}
			}
		}

		report = e.apply(ctx, OpReplaceValue, plan)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, report.Err()
}

// visibleFrom returns the scopes whose references to name resolve to the
// definition owned by scope.
func visibleFrom(c corpus, scope domain.Scope, name string) []domain.Scope {
	out := []domain.Scope{scope}
	if scope != domain.ScopeShared {
		return out
	}
	for _, s := range domain.AllScopes {
		if s == domain.ScopeShared {
			continue
		}
		_, shadow := c[s].Wildcards[name]
		_, bad := c[s].Corrupt[name]
		if !shadow && !bad {
			out = append(out, s)
		}
	}
	return out
}

// Merge folds the sources into target within one scope: choices are unioned
// by normalized value, descriptions concatenated and file-level includes
// unioned. The target is written, the sources archived and every reference to
// a source renamed to the target.
func (e *Engine) Merge(ctx context.Context, scope domain.Scope, target string, sources ...string) (*Report, error) {
	if err := domain.ValidateName(target); err != nil {
		return nil, err
	}
	scope, err := domain.ParseScope(string(scope))
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, errors.New("merge needs at least one source")
	}

	var report *Report
	err = e.locks.WithLock(ctx, domain.AllScopes, func(ctx context.Context) error {
		c, err := e.load(ctx)
		if err != nil {
			return err
		}
		cat := c[scope]
		if cerr, bad := cat.Corrupt[target]; bad {
			return cerr
		}

		merged := &domain.Wildcard{Name: target, Scope: scope, Format: domain.FormatJSON}
		if w, ok := cat.Wildcards[target]; ok {
			merged = w.Clone()
		}
		var descriptions []string
		if merged.Description != "" {
			descriptions = append(descriptions, merged.Description)
		}

		var srcs []*domain.Wildcard
		for _, name := range sources {
			if name == target {
				continue
			}
			src, ok := cat.Wildcards[name]
			if !ok {
				if cerr, bad := cat.Corrupt[name]; bad {
					return cerr
				}
				return suggest.MissingWildcard(name, c.names())
			}
			srcs = append(srcs, src)
			merged.Choices = domain.MergeChoices(merged.Choices, src.Choices...)
			merged.Includes = appendMissing(merged.Includes, src.Includes...)
			if src.Description != "" {
				descriptions = append(descriptions, src.Description)
			}
		}
		merged.Description = strings.Join(descriptions, "\n")

		var plan []write
		archived := make([]string, 0, len(srcs))
		var mergeConflicts []string
		for _, src := range srcs {
			_, conflicts := renameRefs(merged, src.Name, target)
			mergeConflicts = append(mergeConflicts, conflicts...)
			archived = append(archived, src.Name)
		}
		plan = append(plan, write{op: "merge", wildcard: merged, archive: archived, changes: len(srcs), conflicts: mergeConflicts})

		rewritten := make(map[string]int)
		for _, s := range visibleFrom(c, scope, target) {
			for _, src := range srcs {
				for _, ref := range c.referrers(s, src.Name) {
					if ref.Name == target || containsName(archived, ref.Name) {
						continue
					}
					key := string(s) + "/" + ref.Name
					if i, ok := rewritten[key]; ok {
						n, conflicts := renameRefs(plan[i].wildcard, src.Name, target)
						plan[i].changes += n
						plan[i].conflicts = append(plan[i].conflicts, conflicts...)
						continue
					}
					if n, conflicts := renameRefs(ref, src.Name, target); n > 0 {
						rewritten[key] = len(plan)
						plan = append(plan, write{op: "rewrite", wildcard: ref, changes: n, conflicts: conflicts})
					}
				}
			}
		}
		renames := make(map[string]string, len(srcs))
		for _, src := range srcs {
			renames[src.Name] = target
		}
		tplan, err := e.planTemplates(ctx, renames)
		if err != nil {
			return err
		}
		plan = append(plan, tplan...)

		report = e.apply(ctx, OpMerge, plan)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, report.Err()
}

// Import merges choices into the named wildcard of scope, creating it when it
// does not exist. Values already present are folded into the existing choice.
func (e *Engine) Import(ctx context.Context, scope domain.Scope, name string, choices []domain.Choice) (*Report, error) {
	if err := domain.ValidateName(name); err != nil {
		return nil, err
	}
	scope, err := domain.ParseScope(string(scope))
	if err != nil {
		return nil, err
	}
	if len(choices) == 0 {
		return &Report{Operation: OpImport}, nil
	}

	var report *Report
	err = e.locks.WithLock(ctx, []domain.Scope{scope}, func(ctx context.Context) error {
		cat, err := e.store.Load(ctx, scope)
		if err != nil {
			return fmt.Errorf("failed to load %s wildcards: %w", scope, err)
		}
		if cerr, bad := cat.Corrupt[name]; bad {
			return errors.WithHint(cerr, "fix the file before importing into it")
		}
		w := &domain.Wildcard{Name: name, Scope: scope, Format: domain.FormatJSON}
		if existing, ok := cat.Wildcards[name]; ok {
			w = existing.Clone()
		}
		before := len(w.Choices)
		w.Choices = domain.MergeChoices(w.Choices, choices...)

		report = e.apply(ctx, OpImport, []write{{op: "import", wildcard: w, changes: len(w.Choices) - before}})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, report.Err()
}

// Archive moves a wildcard of scope into the archive. Wildcards still
// referring to it are left as they are and show up as broken references.
func (e *Engine) Archive(ctx context.Context, scope domain.Scope, name string) (*Report, error) {
	scope, err := domain.ParseScope(string(scope))
	if err != nil {
		return nil, err
	}
	var report *Report
	err = e.locks.WithLock(ctx, []domain.Scope{scope}, func(ctx context.Context) error {
		cat, err := e.store.Load(ctx, scope)
		if err != nil {
			return fmt.Errorf("failed to load %s wildcards: %w", scope, err)
		}
		_, ok := cat.Wildcards[name]
		_, bad := cat.Corrupt[name]
		if !ok && !bad {
			return suggest.MissingWildcard(name, domain.MergeCatalogs("", cat).Names())
		}

		report = &Report{Operation: OpArchive}
		o := domain.FileOutcome{Name: name, Scope: scope, Op: "archive", Changes: 1}
		o.Err = e.store.Archive(ctx, name, scope)
		e.store.Invalidate(name, scope)
		e.record(report, o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, report.Err()
}

// ArchiveTemplate moves a stored template into the archive.
func (e *Engine) ArchiveTemplate(ctx context.Context, name string) (*Report, error) {
	if e.templates == nil {
		return nil, errors.Wrap(domain.ErrTemplateNotFound, "no template library configured")
	}
	report := &Report{Operation: OpArchive}
	if _, err := e.templates.Template(ctx, name); err != nil {
		return nil, err
	}
	o := domain.FileOutcome{Name: name, Op: "archive", Changes: 1}
	o.Err = e.templates.ArchiveTemplate(ctx, name)
	e.record(report, o)
	return report, report.Err()
}

func appendMissing(list []string, items ...string) []string {
	for _, it := range items {
		if !containsName(list, it) {
			list = append(list, it)
		}
	}
	return list
}

func containsName(list []string, name string) bool {
	for _, s := range list {
		if s == name {
			return true
		}
	}
	return false
}

// apply performs the planned writes in order and records one outcome each.
// A failed write does not stop the batch.
func (e *Engine) apply(ctx context.Context, op string, plan []write) *Report {
	report := &Report{Operation: op}
	for _, w := range plan {
		var o domain.FileOutcome
		if w.template != nil {
			o = domain.FileOutcome{Name: w.template.Name, Path: w.template.Path, Op: w.op, Changes: w.changes}
			o.Err = e.templates.SaveTemplate(ctx, *w.template)
		} else {
			o = domain.FileOutcome{Name: w.wildcard.Name, Scope: w.wildcard.Scope, Path: w.wildcard.Path, Op: w.op, Changes: w.changes, Conflicts: w.conflicts}
			o.Err = e.saveWildcard(ctx, w)
			e.store.Invalidate(w.wildcard.Name, w.wildcard.Scope)
		}
		e.record(report, o)
	}
	return report
}

func (e *Engine) record(report *Report, o domain.FileOutcome) {
	if o.Err != nil {
		o.Error = o.Err.Error()
		e.logger.Error("refactor write failed", "op", report.Operation, "file", label(o), "err", o.Err)
	} else {
		e.logger.Info("refactor write", "op", report.Operation, "file", label(o), "changes", o.Changes)
	}
	for _, c := range o.Conflicts {
		e.logger.Warn("refactor requires conflict", "op", report.Operation, "file", label(o), "conflict", c)
	}
	report.Outcomes = append(report.Outcomes, o)
}

func (e *Engine) saveWildcard(ctx context.Context, w write) error {
	if err := e.store.Save(ctx, w.wildcard); err != nil {
		return err
	}
	scope := w.wildcard.Scope
	if w.remove != "" {
		if err := e.store.Delete(ctx, w.remove, scope); err != nil {
			return fmt.Errorf("saved %s but failed to remove %s: %w", w.wildcard.Name, w.remove, err)
		}
		e.store.Invalidate(w.remove, scope)
	}
	for _, name := range w.archive {
		if err := e.store.Archive(ctx, name, scope); err != nil {
			return fmt.Errorf("saved %s but failed to archive %s: %w", w.wildcard.Name, name, err)
		}
		e.store.Invalidate(name, scope)
	}
	return nil
}
