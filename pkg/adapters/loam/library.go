package loam

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/thicket/pkg/domain"
)

// ArchivePrefix is the ID prefix archived templates are moved under.
const ArchivePrefix = "archive/"

// Library adapts a Loam repository to ports.TemplateStore.
// Markdown, JSON and YAML documents go through Loam; the document body is the
// template text. Plain .txt files in the same tree are read as-is.
type Library struct {
	Repo *loam.TypedRepository[TemplateMetadata]
	root string
}

// New creates a library over an existing repository rooted at root.
func New(root string, repo *loam.TypedRepository[TemplateMetadata]) *Library {
	return &Library{Repo: repo, root: root}
}

// Open initializes a Loam repository in dir (creating it if needed) and wraps it.
func Open(dir string) (*Library, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create template directory: %w", err)
	}
	// Strict mode keeps numeric front matter consistent across adapters.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithVersioning(false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(absPath, loam.NewTypedRepository[TemplateMetadata](repo)), nil
}

// Root returns the library directory.
func (l *Library) Root() string {
	return l.root
}

// Template retrieves one template by name.
func (l *Library) Template(ctx context.Context, name string) (*domain.TemplateDoc, error) {
	name = trimExtension(name)
	if strings.HasPrefix(name, ArchivePrefix) {
		return nil, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, name)
	}
	if doc, ok, err := l.plainText(name); ok || err != nil {
		return doc, err
	}

	doc, err := l.Repo.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrTemplateNotFound, name, err)
	}
	out := toTemplateDoc(name, doc.ID, doc.Data, doc.Content)
	return &out, nil
}

// Templates lists the templates of a workflow, sorted by name.
// Two documents that normalize to the same name are a collision.
func (l *Library) Templates(ctx context.Context, workflow domain.Workflow) ([]domain.TemplateDoc, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	out := make([]domain.TemplateDoc, 0, len(docs))
	add := func(doc domain.TemplateDoc) error {
		if existing, ok := seen[doc.Name]; ok {
			return fmt.Errorf("collision detected: template '%s' is defined in both '%s' and '%s'", doc.Name, existing, doc.Path)
		}
		seen[doc.Name] = doc.Path
		if workflow == "" || doc.Workflow == workflow {
			out = append(out, doc)
		}
		return nil
	}

	for _, doc := range docs {
		name := trimExtension(doc.ID)
		if strings.HasPrefix(name, ArchivePrefix) || filepath.Ext(doc.ID) == ".txt" {
			continue
		}
		if err := add(toTemplateDoc(name, doc.ID, doc.Data, doc.Content)); err != nil {
			return nil, err
		}
	}

	texts, err := l.plainTexts()
	if err != nil {
		return nil, err
	}
	for _, doc := range texts {
		if err := add(doc); err != nil {
			return nil, err
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SaveTemplate writes the template. Plain text templates stay plain text;
// everything else is saved as a Loam document with front matter.
func (l *Library) SaveTemplate(ctx context.Context, doc domain.TemplateDoc) error {
	name := trimExtension(doc.Name)
	if name == "" || strings.HasPrefix(name, ArchivePrefix) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidName, doc.Name)
	}
	if path := l.textPath(name); fileExists(path) {
		if err := os.WriteFile(path, []byte(doc.Text), 0o644); err != nil {
			return fmt.Errorf("failed to save template %s: %w", name, err)
		}
		return nil
	}

	meta := TemplateMetadata{Title: doc.Title, Tags: doc.Tags}
	if doc.Workflow != "" {
		meta.Workflow = string(doc.Workflow)
	}
	err := l.Repo.Save(ctx, &loam.DocumentModel[TemplateMetadata]{
		ID:      name,
		Content: doc.Text,
		Data:    meta,
	})
	if err != nil {
		return fmt.Errorf("failed to save template %s: %w", name, err)
	}
	return nil
}

// ArchiveTemplate moves the template under archive/.
func (l *Library) ArchiveTemplate(ctx context.Context, name string) error {
	name = trimExtension(name)
	if path := l.textPath(name); fileExists(path) {
		dst := filepath.Join(l.root, filepath.FromSlash(ArchivePrefix+name+".txt"))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("failed to archive template %s: %w", name, err)
		}
		if err := os.Rename(path, dst); err != nil {
			return fmt.Errorf("failed to archive template %s: %w", name, err)
		}
		return nil
	}

	doc, err := l.Template(ctx, name)
	if err != nil {
		return err
	}
	err = l.Repo.Save(ctx, &loam.DocumentModel[TemplateMetadata]{
		ID:      ArchivePrefix + name,
		Content: doc.Text,
		Data:    TemplateMetadata{Title: doc.Title, Workflow: string(doc.Workflow), Tags: doc.Tags},
	})
	if err != nil {
		return fmt.Errorf("failed to archive template %s: %w", name, err)
	}
	// The source document keeps whatever extension it was authored with.
	matches, err := filepath.Glob(filepath.Join(l.root, filepath.FromSlash(name)) + ".*")
	if err != nil {
		return fmt.Errorf("failed to locate template %s: %w", name, err)
	}
	for _, path := range matches {
		if filepath.Ext(path) == ".txt" {
			continue
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove archived template %s: %w", name, err)
		}
	}
	return nil
}

func (l *Library) textPath(name string) string {
	return filepath.Join(l.root, filepath.FromSlash(name)+".txt")
}

func (l *Library) plainText(name string) (*domain.TemplateDoc, bool, error) {
	path := l.textPath(name)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read template %s: %w", name, err)
	}
	doc := domain.TemplateDoc{
		Name:     name,
		Workflow: workflowOf(name, ""),
		Path:     filepath.ToSlash(name) + ".txt",
		Text:     strings.TrimRight(string(data), "\r\n"),
	}
	return &doc, true, nil
}

func (l *Library) plainTexts() ([]domain.TemplateDoc, error) {
	var out []domain.TemplateDoc
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(l.root, path)
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && (strings.HasPrefix(d.Name(), ".") || rel+"/" == ArchivePrefix) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".txt" {
			return nil
		}
		doc, ok, err := l.plainText(trimExtension(rel))
		if err != nil || !ok {
			return err
		}
		out = append(out, *doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list plain templates: %w", err)
	}
	return out, nil
}

func toTemplateDoc(name, id string, meta TemplateMetadata, content string) domain.TemplateDoc {
	return domain.TemplateDoc{
		Name:     name,
		Title:    meta.Title,
		Workflow: workflowOf(name, meta.Workflow),
		Tags:     meta.Tags,
		Path:     filepath.ToSlash(id),
		Text:     strings.TrimSpace(content),
	}
}

// workflowOf prefers the front matter and falls back to the first path element.
func workflowOf(name, declared string) domain.Workflow {
	if declared != "" {
		if wf, err := domain.ParseWorkflow(declared); err == nil {
			return wf
		}
	}
	if first, _, ok := strings.Cut(name, "/"); ok {
		if wf, err := domain.ParseWorkflow(first); err == nil {
			return wf
		}
	}
	return domain.WorkflowSFW
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
