package memory_test

import (
	"testing"

	"github.com/aretw0/thicket/pkg/adapters/memory"
	"github.com/aretw0/thicket/pkg/domain"
	contract "github.com/aretw0/thicket/pkg/ports/tests"
)

func TestLibrary_Contract(t *testing.T) {
	docs := []domain.TemplateDoc{
		{Name: "sfw/portrait", Workflow: domain.WorkflowSFW, Text: "a __color__ hat"},
		{Name: "sfw/landscape", Workflow: domain.WorkflowSFW, Text: "__place__ at __time__"},
		{Name: "nsfw/noir", Workflow: domain.WorkflowNSFW, Text: "__mood__ alley"},
	}
	contract.TemplateLibraryContractTest(t, memory.NewLibrary(docs...), docs)
}

func TestNewFromTexts_Workflow(t *testing.T) {
	lib := memory.NewFromTexts(map[string]string{"nsfw/a": "x", "b": "y"})
	a, err := lib.Template(t.Context(), "nsfw/a")
	if err != nil {
		t.Fatal(err)
	}
	if a.Workflow != domain.WorkflowNSFW {
		t.Errorf("expected nsfw workflow, got %s", a.Workflow)
	}
	b, _ := lib.Template(t.Context(), "b")
	if b.Workflow != domain.WorkflowSFW {
		t.Errorf("expected sfw default, got %s", b.Workflow)
	}
}

func TestLibrary_StoreContract(t *testing.T) {
	contract.TemplateStoreContractTest(t, memory.NewLibrary())
}
