package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/thicket/pkg/domain"
	"github.com/aretw0/thicket/pkg/ports"
)

// TemplateLibraryContractTest is a reusable test suite that verifies if an adapter complies with ports.TemplateLibrary.
// setup lists exactly the templates the library holds.
func TemplateLibraryContractTest(t *testing.T, lib ports.TemplateLibrary, setup []domain.TemplateDoc) {
	t.Helper()
	ctx := context.Background()

	// 1. Test Template (Success)
	t.Run("Template_Success", func(t *testing.T) {
		for _, want := range setup {
			got, err := lib.Template(ctx, want.Name)
			if err != nil {
				t.Fatalf("unexpected error getting template %s: %v", want.Name, err)
			}
			if got.Text != want.Text {
				t.Errorf("text mismatch for %s. got %q, want %q", want.Name, got.Text, want.Text)
			}
			if got.Workflow != want.Workflow {
				t.Errorf("workflow mismatch for %s. got %q, want %q", want.Name, got.Workflow, want.Workflow)
			}
		}
	})

	// 2. Test Template (NotFound)
	t.Run("Template_NotFound", func(t *testing.T) {
		_, err := lib.Template(ctx, "non-existent-template")
		if !errors.Is(err, domain.ErrTemplateNotFound) {
			t.Errorf("expected ErrTemplateNotFound, got %v", err)
		}
	})

	// 3. Test Templates per workflow
	t.Run("Templates", func(t *testing.T) {
		all, err := lib.Templates(ctx, "")
		if err != nil {
			t.Fatalf("unexpected error listing templates: %v", err)
		}
		if len(all) != len(setup) {
			t.Errorf("expected %d templates, got %d", len(setup), len(all))
		}
		for i := 1; i < len(all); i++ {
			if all[i-1].Name > all[i].Name {
				t.Errorf("templates not sorted: %s before %s", all[i-1].Name, all[i].Name)
			}
		}

		for _, wf := range []domain.Workflow{domain.WorkflowSFW, domain.WorkflowNSFW} {
			want := 0
			for _, d := range setup {
				if d.Workflow == wf {
					want++
				}
			}
			got, err := lib.Templates(ctx, wf)
			if err != nil {
				t.Fatalf("unexpected error listing %s templates: %v", wf, err)
			}
			if len(got) != want {
				t.Errorf("expected %d %s templates, got %d", want, wf, len(got))
			}
			for _, d := range got {
				if d.Workflow != wf {
					t.Errorf("template %s has workflow %s, listed under %s", d.Name, d.Workflow, wf)
				}
			}
		}
	})
}

// TemplateStoreContractTest verifies the write side of a ports.TemplateStore.
// The store must not hold a template named "sfw/contract-draft".
func TemplateStoreContractTest(t *testing.T, store ports.TemplateStore) {
	t.Helper()
	ctx := context.Background()
	const name = "sfw/contract-draft"

	t.Run("SaveTemplate", func(t *testing.T) {
		doc := domain.TemplateDoc{Name: name, Workflow: domain.WorkflowSFW, Text: "a __color__ draft"}
		if err := store.SaveTemplate(ctx, doc); err != nil {
			t.Fatalf("unexpected error saving template: %v", err)
		}
		doc.Text = "a __hue__ draft"
		if err := store.SaveTemplate(ctx, doc); err != nil {
			t.Fatalf("unexpected error replacing template: %v", err)
		}
		got, err := store.Template(ctx, name)
		if err != nil {
			t.Fatalf("unexpected error reading saved template: %v", err)
		}
		if got.Text != doc.Text {
			t.Errorf("text mismatch. got %q, want %q", got.Text, doc.Text)
		}
	})

	t.Run("ArchiveTemplate", func(t *testing.T) {
		if err := store.ArchiveTemplate(ctx, name); err != nil {
			t.Fatalf("unexpected error archiving template: %v", err)
		}
		if _, err := store.Template(ctx, name); !errors.Is(err, domain.ErrTemplateNotFound) {
			t.Errorf("expected ErrTemplateNotFound after archive, got %v", err)
		}
		if err := store.ArchiveTemplate(ctx, name); !errors.Is(err, domain.ErrTemplateNotFound) {
			t.Errorf("expected ErrTemplateNotFound archiving twice, got %v", err)
		}
	})
}
