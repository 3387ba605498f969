package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/thicket/internal/refactor"
	"github.com/aretw0/thicket/pkg/domain"
)

// ResolutionMarkdown describes a resolved prompt: the text, what each
// directive bound and every problem met on the way.
func ResolutionMarkdown(res *domain.ResolvedPrompt) string {
	var sb strings.Builder
	sb.WriteString("## Prompt\n\n")
	fmt.Fprintf(&sb, "```\n%s\n```\n\n", res.Text)

	seed := fmt.Sprintf("%d", res.Seed)
	if !res.Seeded {
		seed += " (random)"
	}
	fmt.Fprintf(&sb, "*workflow* `%s` · *seed* `%s`\n\n", res.Workflow, seed)

	if len(res.Bindings) > 0 {
		sb.WriteString("| wildcard | values | depth |\n|---|---|---|\n")
		for _, b := range res.Bindings {
			fmt.Fprintf(&sb, "| %s | %s | %d |\n", escapeCell(b.Name), escapeCell(strings.Join(b.Values, ", ")), b.Depth)
		}
		sb.WriteString("\n")
	}

	for _, c := range res.Clamps {
		fmt.Fprintf(&sb, "> range on **%s** asked for %d values, only %d eligible\n\n", c.Name, c.Requested, c.Granted)
	}

	if len(res.Problems) > 0 {
		sb.WriteString("### Problems\n\n")
		for _, p := range res.Problems {
			fmt.Fprintf(&sb, "- **%s** `%s`", p.Kind, p.Name)
			if len(p.Path) > 0 {
				fmt.Fprintf(&sb, " (%s)", strings.Join(p.Path, " → "))
			}
			if p.Detail != "" {
				fmt.Fprintf(&sb, ": %s", p.Detail)
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// DiagnosticsMarkdown lists validator findings grouped by severity.
func DiagnosticsMarkdown(diags []domain.Diagnostic) string {
	if len(diags) == 0 {
		return "No problems found.\n"
	}
	var sb strings.Builder
	for _, sev := range []domain.Severity{domain.SeverityError, domain.SeverityWarning} {
		var group []domain.Diagnostic
		for _, d := range diags {
			if d.Severity == sev {
				group = append(group, d)
			}
		}
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "## %ss (%d)\n\n", strings.ToUpper(string(sev[:1]))+string(sev[1:]), len(group))
		for _, d := range group {
			fmt.Fprintf(&sb, "- `%s` %s", d.Kind, d.Message)
			if d.Hint != "" {
				fmt.Fprintf(&sb, " *%s*", d.Hint)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// RefactorMarkdown lists the files a refactor batch touched.
func RefactorMarkdown(report *refactor.Report) string {
	if report == nil || len(report.Outcomes) == 0 {
		return "Nothing to change.\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n\n", report.Operation)
	sb.WriteString("| file | op | changes | result |\n|---|---|---|---|\n")
	for _, o := range report.Outcomes {
		file := o.Name
		if o.Scope != "" {
			file = string(o.Scope) + "/" + o.Name
		}
		result := "ok"
		if !o.OK() {
			result = "**failed**: " + o.Err.Error()
		} else if len(o.Conflicts) > 0 {
			result = "ok, check requires: " + strings.Join(o.Conflicts, "; ")
		}
		fmt.Fprintf(&sb, "| %s | %s | %d | %s |\n", escapeCell(file), o.Op, o.Changes, escapeCell(result))
	}
	fmt.Fprintf(&sb, "\n%d references rewritten.\n", report.Changes())
	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
