package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/thicket/internal/depgraph"
	"github.com/aretw0/thicket/pkg/domain"
)

// Overlay highlights parts of the graph.
type Overlay struct {
	// Used marks wildcards reachable from the template set.
	Used []string
	// Focus marks the wildcard the view is centred on.
	Focus string
}

// GenerateMermaid produces a Mermaid flowchart of the dependency graph.
// It applies semantic styling:
// - Wildcard: [Rectangle]
// - Corrupt file: {{Hexagon}}
// - Missing target: [/Trapezoid\]
// - Include: solid arrow, "embeds" label for directives inside a value
// - Requires: dotted arrow labelled with the required value
// Nodes that sit on an include cycle are styled as such.
func GenerateMermaid(g *depgraph.Graph, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for _, node := range g.Nodes() {
		opener, closer := "[", "]"
		if node.Corrupt {
			opener, closer = "{{", "}}"
		}
		label := node.Name
		if node.Scope == domain.ScopeNSFW {
			label += " <br/> nsfw"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(node.Name), opener, label, closer)
	}

	missing := make(map[string]bool)
	for _, e := range g.Dangling() {
		if !missing[e.To] {
			missing[e.To] = true
			fmt.Fprintf(&sb, "    %s[/\"%s\"\\]\n", sanitizeMermaidID(e.To), e.To)
		}
	}

	seen := make(map[string]bool)
	for _, e := range g.Edges() {
		arrow := "-->"
		switch {
		case e.Kind == domain.EdgeRequires:
			// Escape double quotes in the value for the Mermaid label
			arrow = fmt.Sprintf("-. \"%s\" .->", strings.ReplaceAll(e.Value, "\"", "'"))
		case e.Embedded:
			arrow = "-- embeds -->"
		}
		line := fmt.Sprintf("    %s %s %s\n", sanitizeMermaidID(e.From), arrow, sanitizeMermaidID(e.To))
		if seen[line] {
			continue
		}
		seen[line] = true
		sb.WriteString(line)
	}

	cycles := g.IncludeCycles()
	if len(cycles) == 0 && len(missing) == 0 && overlay == nil {
		return sb.String()
	}

	sb.WriteString("\n    %% Styles\n")
	// Force black text (color:#000) for contrast on the light fills in both themes
	sb.WriteString("    classDef cycle fill:#ffcdd2,stroke:#b71c1c,stroke-width:2px,color:#000;\n")
	sb.WriteString("    classDef missing fill:#eeeeee,stroke:#616161,stroke-dasharray:4 4,color:#000;\n")
	sb.WriteString("    classDef used fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
	sb.WriteString("    classDef focus fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

	styled := make(map[string]bool)
	class := func(name, kind string) {
		id := sanitizeMermaidID(name)
		if id == "" || styled[id+kind] {
			return
		}
		styled[id+kind] = true
		fmt.Fprintf(&sb, "    class %s %s;\n", id, kind)
	}

	if overlay != nil {
		for _, name := range overlay.Used {
			class(name, "used")
		}
	}
	for _, cycle := range cycles {
		for _, name := range cycle {
			class(name, "cycle")
		}
	}
	for _, e := range g.Dangling() {
		class(e.To, "missing")
	}
	if overlay != nil && overlay.Focus != "" {
		class(overlay.Focus, "focus")
	}
	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
