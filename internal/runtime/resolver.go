package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/aretw0/thicket/internal/compiler"
	"github.com/aretw0/thicket/internal/logging"
	"github.com/aretw0/thicket/internal/suggest"
	"github.com/aretw0/thicket/pkg/domain"
	"github.com/aretw0/thicket/pkg/ports"
	"github.com/aretw0/thicket/pkg/scopelock"
	"github.com/google/uuid"
)

const (
	// DefaultMaxDepth bounds nested inclusion.
	DefaultMaxDepth = 32
	// DefaultMaxExpansions bounds the wildcard expansions of one resolution.
	DefaultMaxExpansions = 10000
	// DefaultSeparator joins the values of a range directive.
	DefaultSeparator = ", "
)

// ErrNilTemplate is returned when Resolve is called without a template.
var ErrNilTemplate = errors.New("template is nil")

// Options controls a single resolution.
type Options struct {
	Workflow domain.Workflow

	// Seed makes the resolution deterministic. When nil a fresh seed is drawn
	// and reported in the result so the output can be reproduced.
	Seed *int64

	// Existing bindings from a previous resolution are kept when still eligible.
	Existing []domain.Binding
	// Reroll names wildcards drawn fresh even when Existing holds a value.
	Reroll []string
	// Swap forces the value of top-level directives naming the wildcard.
	// A value the wildcard does not define is used verbatim.
	Swap map[string]string

	// Tidy collapses whitespace and empty comma slots in the final text.
	Tidy bool

	MaxDepth int
	// MaxExpansions bounds the total number of wildcard expansions, nested
	// ones included. Once spent, the remaining directives resolve empty.
	MaxExpansions int
	Separator     string
}

// Resolver expands templates against the wildcards of a ChoiceStore.
type Resolver struct {
	store         ports.ChoiceStore
	locks         *scopelock.Manager
	logger        *slog.Logger
	maxDepth      int
	maxExpansions int
	separator     string
}

// Option configures the Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithLocks makes snapshots wait for refactor batches holding the scope lock.
func WithLocks(locks *scopelock.Manager) Option {
	return func(r *Resolver) {
		r.locks = locks
	}
}

// WithMaxDepth bounds nested inclusion.
func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// WithMaxExpansions bounds the wildcard expansions of one resolution.
func WithMaxExpansions(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxExpansions = n
		}
	}
}

// WithSeparator sets the separator used to join range values.
func WithSeparator(sep string) Option {
	return func(r *Resolver) {
		r.separator = sep
	}
}

// NewResolver creates a Resolver reading from store.
func NewResolver(store ports.ChoiceStore, opts ...Option) *Resolver {
	r := &Resolver{
		store:         store,
		logger:        logging.NewNop(),
		maxDepth:      DefaultMaxDepth,
		maxExpansions: DefaultMaxExpansions,
		separator:     DefaultSeparator,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Snapshot returns a consistent read view of the workflow's wildcards.
func (r *Resolver) Snapshot(ctx context.Context, workflow domain.Workflow) (*domain.Corpus, error) {
	if r.locks == nil {
		return r.store.Snapshot(ctx, workflow)
	}
	var corpus *domain.Corpus
	err := r.locks.WithRLock(ctx, workflow.Scopes(), func(ctx context.Context) error {
		var err error
		corpus, err = r.store.Snapshot(ctx, workflow)
		return err
	})
	return corpus, err
}

// Resolve expands a parsed template. Directive failures are reported in the
// result; an error is only returned when no snapshot could be taken.
func (r *Resolver) Resolve(ctx context.Context, tmpl *domain.Template, opts Options) (*domain.ResolvedPrompt, error) {
	if tmpl == nil {
		return nil, ErrNilTemplate
	}
	if opts.Workflow == "" {
		opts.Workflow = domain.WorkflowSFW
	}
	corpus, err := r.Snapshot(ctx, opts.Workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot wildcards: %w", err)
	}

	if opts.MaxDepth <= 0 {
		opts.MaxDepth = r.maxDepth
	}
	if opts.MaxExpansions <= 0 {
		opts.MaxExpansions = r.maxExpansions
	}
	if opts.Separator == "" {
		opts.Separator = r.separator
	}

	res := ResolveCorpus(corpus, tmpl, opts)
	res.ID = uuid.NewString()

	r.logger.Debug("template resolved",
		"id", res.ID,
		"workflow", res.Workflow,
		"seed", res.Seed,
		"bindings", len(res.Bindings),
		"problems", len(res.Problems),
	)
	return res, nil
}

// ResolveText parses and resolves raw template text.
func (r *Resolver) ResolveText(ctx context.Context, text string, opts Options) (*domain.ResolvedPrompt, error) {
	tmpl, err := compiler.Parse(text)
	if err != nil {
		return nil, err
	}
	return r.Resolve(ctx, tmpl, opts)
}

// SwapOptions returns, in file order, the choices of name that are eligible
// given the bindings made so far.
func (r *Resolver) SwapOptions(ctx context.Context, workflow domain.Workflow, name string, bindings map[string][]string) ([]domain.Choice, error) {
	corpus, err := r.Snapshot(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot wildcards: %w", err)
	}
	if cerr, ok := corpus.Corrupt[name]; ok {
		return nil, cerr
	}
	w, ok := corpus.Get(name)
	if !ok {
		return nil, suggest.MissingWildcard(name, corpus.Names())
	}
	return EligibleChoices(w.Choices, bindings), nil
}

// ResolveCorpus is the pure resolution step over an immutable snapshot.
func ResolveCorpus(corpus *domain.Corpus, tmpl *domain.Template, opts Options) *domain.ResolvedPrompt {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MaxExpansions <= 0 {
		opts.MaxExpansions = DefaultMaxExpansions
	}
	if opts.Separator == "" {
		opts.Separator = DefaultSeparator
	}

	seed, seeded := rand.Int64(), false
	if opts.Seed != nil {
		seed, seeded = *opts.Seed, true
	}

	p := newPass(corpus, opts, NewRand(seed))
	p.run(tmpl)

	res := p.result
	res.Seed = seed
	res.Seeded = seeded
	if opts.Tidy {
		res.Text = Tidy(res.Text)
	}
	return res
}
