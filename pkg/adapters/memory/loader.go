package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/thicket/pkg/domain"
)

// Library implements ports.TemplateLibrary using an in-memory map.
type Library struct {
	mu       sync.RWMutex
	docs     map[string]domain.TemplateDoc
	archived map[string]domain.TemplateDoc

	// FailSave, when set, is consulted before every SaveTemplate.
	FailSave func(doc domain.TemplateDoc) error
}

// NewLibrary creates a library holding the given templates.
func NewLibrary(docs ...domain.TemplateDoc) *Library {
	l := &Library{
		docs:     make(map[string]domain.TemplateDoc),
		archived: make(map[string]domain.TemplateDoc),
	}
	for _, d := range docs {
		l.Put(d)
	}
	return l
}

// NewFromTexts creates a library from name → text pairs. The workflow of each
// template is taken from the first path element of its name and defaults to sfw.
func NewFromTexts(texts map[string]string) *Library {
	l := NewLibrary()
	for name, text := range texts {
		l.Put(domain.TemplateDoc{Name: name, Workflow: workflowOf(name), Text: text})
	}
	return l
}

// Put adds or replaces a template.
func (l *Library) Put(doc domain.TemplateDoc) {
	if doc.Workflow == "" {
		doc.Workflow = workflowOf(doc.Name)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.docs[doc.Name] = doc
}

// Template retrieves a template by name.
func (l *Library) Template(ctx context.Context, name string) (*domain.TemplateDoc, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	doc, ok := l.docs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, name)
	}
	return &doc, nil
}

// Templates returns the templates of a workflow, sorted by name.
func (l *Library) Templates(ctx context.Context, workflow domain.Workflow) ([]domain.TemplateDoc, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.TemplateDoc, 0, len(l.docs))
	for _, d := range l.docs {
		if workflow == "" || d.Workflow == workflow {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SaveTemplate stores the template.
func (l *Library) SaveTemplate(ctx context.Context, doc domain.TemplateDoc) error {
	if l.FailSave != nil {
		if err := l.FailSave(doc); err != nil {
			return fmt.Errorf("failed to save template %s: %w", doc.Name, err)
		}
	}
	l.Put(doc)
	return nil
}

// ArchiveTemplate moves the template aside. Archived templates are no longer listed.
func (l *Library) ArchiveTemplate(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	doc, ok := l.docs[name]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, name)
	}
	delete(l.docs, name)
	l.archived[name] = doc
	return nil
}

func workflowOf(name string) domain.Workflow {
	for i := 0; i < len(name); i++ {
		if name[i] == '/' {
			if wf, err := domain.ParseWorkflow(name[:i]); err == nil {
				return wf
			}
			break
		}
	}
	return domain.WorkflowSFW
}
