package tui_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/aretw0/thicket/internal/presentation/tui"
	"github.com/aretw0/thicket/internal/refactor"
	"github.com/aretw0/thicket/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolutionMarkdown(t *testing.T) {
	res := &domain.ResolvedPrompt{
		Workflow: domain.WorkflowSFW,
		Seed:     7,
		Text:     "a red | blue hat",
		Bindings: []domain.Binding{{Name: "color", Values: []string{"red | blue"}}},
		Clamps:   []domain.Clamp{{Name: "color", Requested: 5, Granted: 3}},
		Problems: []domain.Problem{{Kind: domain.ProblemCyclicInclude, Name: "A", Path: []string{"A", "B", "A"}}},
	}
	md := tui.ResolutionMarkdown(res)
	assert.Contains(t, md, "a red | blue hat")
	assert.Contains(t, md, "(random)")
	assert.Contains(t, md, `| color | red \| blue | 0 |`)
	assert.Contains(t, md, "asked for 5 values, only 3 eligible")
	assert.Contains(t, md, "A → B → A")

	res.Seeded = true
	assert.NotContains(t, tui.ResolutionMarkdown(res), "(random)")
}

func TestDiagnosticsMarkdown(t *testing.T) {
	assert.Equal(t, "No problems found.\n", tui.DiagnosticsMarkdown(nil))

	md := tui.DiagnosticsMarkdown([]domain.Diagnostic{
		{Kind: domain.DiagOutOfOrderRequires, Severity: domain.SeverityWarning, Message: "late"},
		{Kind: domain.DiagBrokenReference, Severity: domain.SeverityError, Message: "gone", Hint: `did you mean "color"?`},
	})
	require.Contains(t, md, "## Errors (1)")
	require.Contains(t, md, "## Warnings (1)")
	assert.Less(t, bytes.Index([]byte(md), []byte("Errors")), bytes.Index([]byte(md), []byte("Warnings")))
	assert.Contains(t, md, "*did you mean \"color\"?*")
}

func TestRefactorMarkdown(t *testing.T) {
	assert.Equal(t, "Nothing to change.\n", tui.RefactorMarkdown(&refactor.Report{Operation: refactor.OpRename}))

	md := tui.RefactorMarkdown(&refactor.Report{
		Operation: refactor.OpRename,
		Outcomes: []domain.FileOutcome{
			{Name: "outfit", Scope: domain.ScopeShared, Op: "rewrite", Changes: 2},
			{Name: "sfw/look", Op: "rewrite", Changes: 1, Err: errors.New("disk full")},
		},
	})
	assert.Contains(t, md, "| shared/outfit | rewrite | 2 | ok |")
	assert.Contains(t, md, "| sfw/look | rewrite | 1 | **failed**: disk full |")
	assert.Contains(t, md, "2 references rewritten.")
}

func TestNewRenderer_PlainOutput(t *testing.T) {
	var buf bytes.Buffer
	render := tui.NewRenderer(&buf)
	out, err := render("# title")
	require.NoError(t, err)
	assert.Equal(t, "# title", out)
	assert.False(t, tui.IsTerminal(&buf))
	assert.Equal(t, 80, tui.Width(&buf))

	tui.PrintBanner(&buf)
	assert.NotEmpty(t, buf.String())
}
