package ports

import (
	"context"

	"github.com/aretw0/thicket/pkg/domain"
)

// TemplateLibrary defines where prompt templates are read from.
// This allows the template source (Loam, FS, Memory) to be decoupled.
type TemplateLibrary interface {
	// Template retrieves one template by name. Names are slash separated paths
	// relative to the library root without extension, e.g. "sfw/portrait".
	// Returns domain.ErrTemplateNotFound if it does not exist.
	Template(ctx context.Context, name string) (*domain.TemplateDoc, error)

	// Templates lists the templates stored for the workflow, sorted by name.
	// An empty workflow lists every template.
	Templates(ctx context.Context, workflow domain.Workflow) ([]domain.TemplateDoc, error)
}

// Generator produces raw text for a request. Its output is untrusted and is
// normalized before being merged into a wildcard.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// TemplateStore is a TemplateLibrary that can also be written. Refactors use
// it to rewrite directives in stored templates.
type TemplateStore interface {
	TemplateLibrary

	// SaveTemplate writes the template text, replacing any previous version.
	SaveTemplate(ctx context.Context, doc domain.TemplateDoc) error

	// ArchiveTemplate moves the template out of the library.
	ArchiveTemplate(ctx context.Context, name string) error
}
