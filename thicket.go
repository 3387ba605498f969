package thicket

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/thicket/internal/adapters/file"
	"github.com/aretw0/thicket/internal/compiler"
	"github.com/aretw0/thicket/internal/depgraph"
	"github.com/aretw0/thicket/internal/dto"
	"github.com/aretw0/thicket/internal/logging"
	"github.com/aretw0/thicket/internal/refactor"
	"github.com/aretw0/thicket/internal/runtime"
	"github.com/aretw0/thicket/internal/sanitize"
	"github.com/aretw0/thicket/internal/validator"
	loamAdapter "github.com/aretw0/thicket/pkg/adapters/loam"
	"github.com/aretw0/thicket/pkg/domain"
	"github.com/aretw0/thicket/pkg/ports"
	"github.com/aretw0/thicket/pkg/scopelock"
)

// TemplatesDir is the template library directory under the data root.
const TemplatesDir = "templates"

// Engine is the high-level entry point for the thicket library.
// It wires the choice store, the template library and the scope locks into
// the resolver, the validator and the refactor engine.
type Engine struct {
	store     ports.ChoiceStore
	templates ports.TemplateStore
	locks     *scopelock.Manager
	resolver  *runtime.Resolver
	validator *validator.Validator
	refactor  *refactor.Engine
	guard     *sanitize.Guard
	logger    *slog.Logger

	locker        ports.DistributedLocker
	lockTTL       time.Duration
	maxDepth      int
	maxExpansions int
	separator     string
	concurrency   int
	inputLimits   sanitize.Limits

	Name string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore injects a custom ChoiceStore, bypassing the default file store.
func WithStore(store ports.ChoiceStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithTemplates injects a custom template library, bypassing the default Loam library.
func WithTemplates(templates ports.TemplateStore) Option {
	return func(e *Engine) {
		e.templates = templates
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLocker extends refactor write locks across processes.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = locker
		e.lockTTL = ttl
	}
}

// WithMaxDepth bounds nested inclusion during resolution.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		e.maxDepth = depth
	}
}

// WithMaxExpansions bounds the wildcard expansions of one resolution.
func WithMaxExpansions(n int) Option {
	return func(e *Engine) {
		e.maxExpansions = n
	}
}

// WithInputLimits bounds the size and the directive count of template text
// passed to Resolve. Zero keeps the default.
func WithInputLimits(maxBytes, maxDirectives int) Option {
	return func(e *Engine) {
		e.inputLimits = sanitize.Limits{MaxBytes: maxBytes, MaxDirectives: maxDirectives}
	}
}

// WithSeparator sets the string joining the values of a range directive.
func WithSeparator(sep string) Option {
	return func(e *Engine) {
		e.separator = sep
	}
}

// WithLoadConcurrency bounds the parallel file decodes of the default store.
func WithLoadConcurrency(n int) Option {
	return func(e *Engine) {
		e.concurrency = n
	}
}

// New initializes a thicket Engine.
// By default wildcards are read from <dataDir>/wildcards and templates from
// <dataDir>/templates. If WithStore is provided dataDir may be empty; the
// template library is then only available through WithTemplates.
func New(dataDir string, opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}

	var absPath string
	if dataDir != "" {
		p, err := filepath.Abs(dataDir)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		absPath = p
		eng.Name = filepath.Base(absPath)
		eng.logger = eng.logger.With("data", eng.Name)
	}
	eng.guard = sanitize.New(eng.inputLimits)

	if eng.store == nil {
		if absPath == "" {
			return nil, fmt.Errorf("dataDir is required when no custom store is provided")
		}
		fileOpts := []file.Option{file.WithLogger(eng.logger)}
		if eng.concurrency > 0 {
			fileOpts = append(fileOpts, file.WithConcurrency(eng.concurrency))
		}
		eng.store = file.New(absPath, fileOpts...)
	}
	if eng.templates == nil && absPath != "" {
		lib, err := loamAdapter.Open(filepath.Join(absPath, TemplatesDir))
		if err != nil {
			return nil, err
		}
		eng.templates = lib
	}

	lockOpts := []scopelock.Option{scopelock.WithLogger(eng.logger)}
	if eng.locker != nil {
		lockOpts = append(lockOpts, scopelock.WithLocker(eng.locker))
		if eng.lockTTL > 0 {
			lockOpts = append(lockOpts, scopelock.WithTTL(eng.lockTTL))
		}
	}
	eng.locks = scopelock.NewManager(lockOpts...)

	resolverOpts := []runtime.Option{
		runtime.WithLogger(eng.logger),
		runtime.WithLocks(eng.locks),
	}
	if eng.maxDepth > 0 {
		resolverOpts = append(resolverOpts, runtime.WithMaxDepth(eng.maxDepth))
	}
	if eng.maxExpansions > 0 {
		resolverOpts = append(resolverOpts, runtime.WithMaxExpansions(eng.maxExpansions))
	}
	if eng.separator != "" {
		resolverOpts = append(resolverOpts, runtime.WithSeparator(eng.separator))
	}
	eng.resolver = runtime.NewResolver(eng.store, resolverOpts...)

	validatorOpts := []validator.Option{validator.WithLogger(eng.logger), validator.WithLocks(eng.locks)}
	refactorOpts := []refactor.Option{refactor.WithLogger(eng.logger), refactor.WithLocks(eng.locks)}
	if eng.templates != nil {
		validatorOpts = append(validatorOpts, validator.WithTemplates(eng.templates))
		refactorOpts = append(refactorOpts, refactor.WithTemplates(eng.templates))
	}
	eng.validator = validator.New(eng.store, validatorOpts...)
	eng.refactor = refactor.New(eng.store, refactorOpts...)
	return eng, nil
}

// ResolveRequest selects what to resolve and how.
type ResolveRequest struct {
	// Text is raw template text. It takes precedence over Template.
	Text string `json:"text,omitempty"`
	// Template names a template of the library.
	Template string `json:"template,omitempty"`

	// Workflow defaults to the stored template's workflow, then sfw.
	Workflow domain.Workflow   `json:"workflow,omitempty"`
	Seed     *int64            `json:"seed,omitempty"`
	Existing []domain.Binding  `json:"existing,omitempty"`
	Reroll   []string          `json:"reroll,omitempty"`
	Swap     map[string]string `json:"swap,omitempty"`
	Tidy     bool              `json:"tidy,omitempty"`
}

// Resolve expands the requested template.
func (e *Engine) Resolve(ctx context.Context, req ResolveRequest) (*domain.ResolvedPrompt, error) {
	text, workflow := req.Text, req.Workflow
	if text == "" && req.Template != "" {
		doc, err := e.Template(ctx, req.Template)
		if err != nil {
			return nil, err
		}
		text = doc.Text
		if workflow == "" {
			workflow = doc.Workflow
		}
	}
	tmpl, err := e.guard.Parse(text)
	if err != nil {
		return nil, err
	}
	return e.resolver.Resolve(ctx, tmpl, runtime.Options{
		Workflow: workflow,
		Seed:     req.Seed,
		Existing: req.Existing,
		Reroll:   req.Reroll,
		Swap:     req.Swap,
		Tidy:     req.Tidy,
	})
}

// SwapOptions lists the choices of name eligible under the given bindings.
func (e *Engine) SwapOptions(ctx context.Context, workflow domain.Workflow, name string, bindings map[string][]string) ([]domain.Choice, error) {
	return e.resolver.SwapOptions(ctx, workflow, name, bindings)
}

// Snapshot returns the merged wildcard view of a workflow.
func (e *Engine) Snapshot(ctx context.Context, workflow domain.Workflow) (*domain.Corpus, error) {
	return e.resolver.Snapshot(ctx, workflow)
}

// Wildcard returns one wildcard as seen from the workflow.
func (e *Engine) Wildcard(ctx context.Context, workflow domain.Workflow, name string) (*domain.Wildcard, error) {
	return e.store.Get(ctx, workflow, name)
}

// Validate runs every validator check over the workflow and its templates.
func (e *Engine) Validate(ctx context.Context, workflow domain.Workflow) ([]domain.Diagnostic, error) {
	return e.validator.Run(ctx, workflow)
}

// Graph builds the dependency graph of the workflow.
func (e *Engine) Graph(ctx context.Context, workflow domain.Workflow) (*depgraph.Graph, error) {
	corpus, err := e.Snapshot(ctx, workflow)
	if err != nil {
		return nil, err
	}
	return depgraph.Build(corpus), nil
}

// Usage splits the wildcards of a workflow into the ones reachable from its
// templates and the rest. Templates that do not parse are skipped.
type Usage struct {
	Used   []string `json:"used"`
	Unused []string `json:"unused"`
}

// Usage computes the template usage of the workflow's wildcards.
func (e *Engine) Usage(ctx context.Context, workflow domain.Workflow) (*depgraph.Graph, *Usage, error) {
	g, err := e.Graph(ctx, workflow)
	if err != nil {
		return nil, nil, err
	}
	docs, err := e.Templates(ctx, workflow)
	if err != nil {
		return nil, nil, err
	}
	var parsed []*domain.Template
	for _, d := range docs {
		if t, err := compiler.Parse(d.Text); err == nil {
			parsed = append(parsed, t)
		}
	}
	used := g.UsedBy(parsed...)
	return g, &Usage{Used: used, Unused: g.Unused(used...)}, nil
}

// Template returns one template of the library.
func (e *Engine) Template(ctx context.Context, name string) (*domain.TemplateDoc, error) {
	if e.templates == nil {
		return nil, fmt.Errorf("%w: %s (no template library)", domain.ErrTemplateNotFound, name)
	}
	return e.templates.Template(ctx, name)
}

// Templates lists the library's templates of a workflow. An empty workflow lists all.
func (e *Engine) Templates(ctx context.Context, workflow domain.Workflow) ([]domain.TemplateDoc, error) {
	if e.templates == nil {
		return nil, nil
	}
	return e.templates.Templates(ctx, workflow)
}

// Rename renames a wildcard and rewrites every reference to it.
func (e *Engine) Rename(ctx context.Context, oldName, newName string) (*refactor.Report, error) {
	return e.refactor.Rename(ctx, oldName, newName)
}

// ReplaceValue renames a choice value and rewrites the requires pinned to it.
func (e *Engine) ReplaceValue(ctx context.Context, scope domain.Scope, name, oldValue, newValue string) (*refactor.Report, error) {
	return e.refactor.ReplaceValue(ctx, scope, name, oldValue, newValue)
}

// Merge folds the sources into target.
func (e *Engine) Merge(ctx context.Context, scope domain.Scope, target string, sources ...string) (*refactor.Report, error) {
	return e.refactor.Merge(ctx, scope, target, sources...)
}

// Archive moves a wildcard into the archive.
func (e *Engine) Archive(ctx context.Context, scope domain.Scope, name string) (*refactor.Report, error) {
	return e.refactor.Archive(ctx, scope, name)
}

// ArchiveTemplate moves a template into the archive.
func (e *Engine) ArchiveTemplate(ctx context.Context, name string) (*refactor.Report, error) {
	return e.refactor.ArchiveTemplate(ctx, name)
}

// Import normalizes generated text into choices and merges them into the wildcard.
func (e *Engine) Import(ctx context.Context, scope domain.Scope, name, generated string) (*refactor.Report, error) {
	choices, err := dto.NormalizeGenerated(generated)
	if err != nil {
		return nil, err
	}
	return e.refactor.Import(ctx, scope, name, choices)
}

// Generate asks the generator for choices and imports its output.
func (e *Engine) Generate(ctx context.Context, gen ports.Generator, scope domain.Scope, name, prompt string) (*refactor.Report, error) {
	if strings.TrimSpace(prompt) == "" {
		prompt = fmt.Sprintf("List choices for the wildcard %q as a JSON array of strings.", name)
	}
	out, err := gen.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("generator output received", "wildcard", name, "bytes", len(out))
	return e.Import(ctx, scope, name, out)
}

// Store returns the underlying choice store.
func (e *Engine) Store() ports.ChoiceStore {
	return e.store
}

// Library returns the template library, nil when none is configured.
func (e *Engine) Library() ports.TemplateStore {
	return e.templates
}
