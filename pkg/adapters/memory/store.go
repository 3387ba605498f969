package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/thicket/internal/suggest"
	"github.com/aretw0/thicket/pkg/domain"
)

// Store implements ports.ChoiceStore in memory.
// Safe for concurrent use. Wildcards are cloned on write so callers can keep
// mutating the value they saved.
type Store struct {
	mu       sync.RWMutex
	data     map[domain.Scope]map[string]*domain.Wildcard
	archived map[domain.Scope]map[string]*domain.Wildcard
	corrupt  map[domain.Scope]map[string]*domain.CorruptWildcardError

	// FailSave, when set, is consulted before every Save. A non-nil error
	// aborts the write. Tests use it to inject write failures.
	FailSave func(w *domain.Wildcard) error
}

// NewStore creates a new in-memory store seeded with the given wildcards.
func NewStore(seed ...*domain.Wildcard) *Store {
	s := &Store{
		data:     make(map[domain.Scope]map[string]*domain.Wildcard),
		archived: make(map[domain.Scope]map[string]*domain.Wildcard),
		corrupt:  make(map[domain.Scope]map[string]*domain.CorruptWildcardError),
	}
	for _, w := range seed {
		s.put(w)
	}
	return s
}

// MarkCorrupt registers a wildcard that failed to decode.
func (s *Store) MarkCorrupt(name string, scope domain.Scope, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[scope] != nil {
		delete(s.data[scope], name)
	}
	if s.corrupt[scope] == nil {
		s.corrupt[scope] = make(map[string]*domain.CorruptWildcardError)
	}
	s.corrupt[scope][name] = &domain.CorruptWildcardError{Name: name, Scope: scope, Err: cause}
}

// Archived returns an archived wildcard.
func (s *Store) Archived(name string, scope domain.Scope) (*domain.Wildcard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.archived[scope][name]
	return w, ok
}

// Load returns every wildcard in the scope.
func (s *Store) Load(ctx context.Context, scope domain.Scope) (*domain.Catalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cat := domain.NewCatalog(scope)
	for name, w := range s.data[scope] {
		cat.Wildcards[name] = w
	}
	for name, err := range s.corrupt[scope] {
		cat.Corrupt[name] = err
	}
	return cat, nil
}

// Snapshot merges the scopes visible to the workflow.
func (s *Store) Snapshot(ctx context.Context, workflow domain.Workflow) (*domain.Corpus, error) {
	var cats []*domain.Catalog
	for _, scope := range workflow.Scopes() {
		cat, err := s.Load(ctx, scope)
		if err != nil {
			return nil, err
		}
		cats = append(cats, cat)
	}
	return domain.MergeCatalogs(workflow, cats...), nil
}

// Get returns a wildcard visible to the workflow.
func (s *Store) Get(ctx context.Context, workflow domain.Workflow, name string) (*domain.Wildcard, error) {
	corpus, err := s.Snapshot(ctx, workflow)
	if err != nil {
		return nil, err
	}
	if cerr, ok := corpus.Corrupt[name]; ok {
		return nil, cerr
	}
	w, ok := corpus.Get(name)
	if !ok {
		return nil, suggest.MissingWildcard(name, corpus.Names())
	}
	return w, nil
}

// Save stores a copy of the wildcard.
func (s *Store) Save(ctx context.Context, w *domain.Wildcard) error {
	if err := domain.ValidateName(w.Name); err != nil {
		return err
	}
	scope, err := domain.ParseScope(string(w.Scope))
	if err != nil {
		return err
	}
	if scope != w.Scope {
		w = w.Clone()
		w.Scope = scope
	}
	if s.FailSave != nil {
		if err := s.FailSave(w); err != nil {
			return fmt.Errorf("failed to save %s: %w", w.Name, err)
		}
	}
	s.put(w)
	return nil
}

func (s *Store) put(w *domain.Wildcard) {
	if w.Scope == "" {
		w = w.Clone()
		w.Scope = domain.ScopeShared
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[w.Scope] == nil {
		s.data[w.Scope] = make(map[string]*domain.Wildcard)
	}
	s.data[w.Scope][w.Name] = w.Clone()
	if s.corrupt[w.Scope] != nil {
		delete(s.corrupt[w.Scope], w.Name)
	}
}

// Delete removes the wildcard.
func (s *Store) Delete(ctx context.Context, name string, scope domain.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[scope] != nil {
		delete(s.data[scope], name)
	}
	if s.corrupt[scope] != nil {
		delete(s.corrupt[scope], name)
	}
	return nil
}

// Archive moves the wildcard into the archived set.
func (s *Store) Archive(ctx context.Context, name string, scope domain.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.data[scope][name]
	if !ok {
		return fmt.Errorf("%w: %q in scope %s", domain.ErrMissingWildcard, name, scope)
	}
	if s.archived[scope] == nil {
		s.archived[scope] = make(map[string]*domain.Wildcard)
	}
	s.archived[scope][name] = w
	delete(s.data[scope], name)
	return nil
}

// Invalidate is a no-op: the memory store has no backing files.
func (s *Store) Invalidate(name string, scope domain.Scope) {}

// InvalidateAll is a no-op.
func (s *Store) InvalidateAll() {}
