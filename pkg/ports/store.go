package ports

import (
	"context"

	"github.com/aretw0/thicket/pkg/domain"
)

// ChoiceStore defines how wildcard files are read and written.
// Implementations own a cache keyed by (name, scope) and must be safe for
// concurrent use. Wildcards returned by a store are shared and read-only.
type ChoiceStore interface {
	// Load returns every wildcard persisted in one scope.
	// A file that fails to decode is recorded in Catalog.Corrupt and never
	// prevents its siblings from loading.
	Load(ctx context.Context, scope domain.Scope) (*domain.Catalog, error)

	// Snapshot returns the merged view for a workflow. Scopes are overlaid in
	// workflow order, so nsfw definitions shadow shared ones.
	Snapshot(ctx context.Context, workflow domain.Workflow) (*domain.Corpus, error)

	// Get returns a single wildcard visible to the workflow.
	// Returns domain.ErrMissingWildcard if absent, or a *domain.CorruptWildcardError.
	Get(ctx context.Context, workflow domain.Workflow, name string) (*domain.Wildcard, error)

	// Save persists the wildcard in its scope and replaces the cache entry.
	Save(ctx context.Context, w *domain.Wildcard) error

	// Delete removes the wildcard file. Deleting a missing name is not an error.
	Delete(ctx context.Context, name string, scope domain.Scope) error

	// Archive moves the wildcard out of the active set.
	Archive(ctx context.Context, name string, scope domain.Scope) error

	// Invalidate drops the cache entry for one wildcard.
	Invalidate(name string, scope domain.Scope)

	// InvalidateAll drops every cache entry.
	InvalidateAll()
}
