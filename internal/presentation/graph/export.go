package graph

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/thicket/internal/depgraph"
	"github.com/aretw0/thicket/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Export is the serializable form of a dependency graph.
type Export struct {
	Nodes  []depgraph.Node `json:"nodes" yaml:"nodes"`
	Edges  []domain.Edge   `json:"edges" yaml:"edges"`
	Cycles [][]string      `json:"cycles,omitempty" yaml:"cycles,omitempty"`
}

// NewExport snapshots the graph.
func NewExport(g *depgraph.Graph) Export {
	return Export{
		Nodes:  g.Nodes(),
		Edges:  g.Edges(),
		Cycles: g.IncludeCycles(),
	}
}

// Formats lists the names accepted by Render.
var Formats = []string{"mermaid", "json", "yaml"}

// Render encodes the graph in the named format.
func Render(g *depgraph.Graph, format string, overlay *Overlay) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", "mermaid":
		return []byte(GenerateMermaid(g, overlay)), nil
	case "json":
		data, err := json.MarshalIndent(NewExport(g), "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case "yaml", "yml":
		return yaml.Marshal(NewExport(g))
	}
	return nil, fmt.Errorf("unknown graph format %q (want one of %s)", format, strings.Join(Formats, ", "))
}
