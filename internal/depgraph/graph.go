// Package depgraph derives the wildcard dependency graph from a corpus.
//
// An edge A -> B means resolving A may need B: a choice of A includes B,
// embeds a __B__ directive in its value, or names B as a requires key.
// The graph is rebuilt from a snapshot and never mutated afterwards.
package depgraph

import (
	"slices"
	"sort"

	"github.com/aretw0/thicket/internal/compiler"
	"github.com/aretw0/thicket/pkg/domain"
)

// Node is a wildcard defined in the corpus.
type Node struct {
	Name    string       `json:"name" yaml:"name"`
	Scope   domain.Scope `json:"scope" yaml:"scope"`
	Choices int          `json:"choices" yaml:"choices"`
	Corrupt bool         `json:"corrupt,omitempty" yaml:"corrupt,omitempty"`
}

// Graph is an immutable dependency graph.
type Graph struct {
	corpus *domain.Corpus
	nodes  map[string]Node
	edges  []domain.Edge
	out    map[string][]int
	in     map[string][]int
}

// Build derives the graph in a single pass over every choice of the corpus.
func Build(corpus *domain.Corpus) *Graph {
	g := &Graph{
		corpus: corpus,
		nodes:  make(map[string]Node),
		out:    make(map[string][]int),
		in:     make(map[string][]int),
	}

	for name, cerr := range corpus.Corrupt {
		g.nodes[name] = Node{Name: name, Scope: cerr.Scope, Corrupt: true}
	}
	names := corpus.Names()
	for _, name := range names {
		w := corpus.Wildcards[name]
		g.nodes[name] = Node{Name: name, Scope: w.Scope, Choices: len(w.Choices)}
	}

	for _, name := range names {
		w := corpus.Wildcards[name]
		for _, inc := range w.Includes {
			g.add(domain.Edge{From: name, To: inc, Kind: domain.EdgeInclude, Scope: w.Scope, ChoiceIndex: -1})
		}
		for i, c := range w.Choices {
			for _, inc := range c.Includes {
				g.add(domain.Edge{From: name, To: inc, Kind: domain.EdgeInclude, Scope: w.Scope, ChoiceIndex: i})
			}
			for _, ref := range compiler.References(c.Value) {
				g.add(domain.Edge{From: name, To: ref, Kind: domain.EdgeInclude, Scope: w.Scope, ChoiceIndex: i, Embedded: true})
			}
			for _, key := range c.RequireKeys() {
				g.add(domain.Edge{From: name, To: key, Kind: domain.EdgeRequires, Scope: w.Scope, ChoiceIndex: i, Value: c.Requires[key]})
			}
			for _, key := range c.Conditions.Names() {
				values := c.Conditions.Values(key)
				if len(values) == 0 {
					values = []string{""}
				}
				for _, v := range values {
					g.add(domain.Edge{From: name, To: key, Kind: domain.EdgeRequires, Scope: w.Scope, ChoiceIndex: i, Value: v})
				}
			}
		}
	}
	return g
}

func (g *Graph) add(e domain.Edge) {
	_, ok := g.nodes[e.To]
	e.Dangling = !ok
	i := len(g.edges)
	g.edges = append(g.edges, e)
	g.out[e.From] = append(g.out[e.From], i)
	g.in[e.To] = append(g.in[e.To], i)
}

// Corpus returns the snapshot the graph was built from.
func (g *Graph) Corpus() *domain.Corpus {
	return g.corpus
}

// Nodes returns every defined wildcard, corrupt ones included, sorted by name.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Has reports whether name is defined.
func (g *Graph) Has(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// Edges returns every edge ordered by source name, then choice index.
func (g *Graph) Edges() []domain.Edge {
	return slices.Clone(g.edges)
}

// Out returns the edges leaving name.
func (g *Graph) Out(name string) []domain.Edge {
	return g.collect(g.out[name])
}

// In returns the edges pointing at name, dangling or not.
func (g *Graph) In(name string) []domain.Edge {
	return g.collect(g.in[name])
}

func (g *Graph) collect(idx []int) []domain.Edge {
	out := make([]domain.Edge, len(idx))
	for i, e := range idx {
		out[i] = g.edges[e]
	}
	return out
}

// Dangling returns the edges whose target is not defined.
func (g *Graph) Dangling() []domain.Edge {
	var out []domain.Edge
	for _, e := range g.edges {
		if e.Dangling {
			out = append(out, e)
		}
	}
	return out
}

// Dependencies returns the distinct names name depends on, sorted.
func (g *Graph) Dependencies(name string) []string {
	return distinct(g.Out(name), func(e domain.Edge) string { return e.To })
}

// Dependents returns the distinct names depending on name, sorted.
func (g *Graph) Dependents(name string) []string {
	return distinct(g.In(name), func(e domain.Edge) string { return e.From })
}

func distinct(edges []domain.Edge, key func(domain.Edge) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range edges {
		k := key(e)
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Closure returns the defined wildcards reachable from names over both edge
// kinds, the starting names included, sorted.
func (g *Graph) Closure(names ...string) []string {
	seen := make(map[string]bool)
	queue := slices.Clone(names)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] || !g.Has(name) {
			continue
		}
		seen[name] = true
		for _, i := range g.out[name] {
			if to := g.edges[i].To; !seen[to] {
				queue = append(queue, to)
			}
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// UsedBy returns the closure of every name referenced by the templates.
func (g *Graph) UsedBy(templates ...*domain.Template) []string {
	var names []string
	for _, t := range templates {
		names = append(names, t.Names()...)
	}
	return g.Closure(names...)
}

// Unused returns the defined wildcards outside the closure of used.
func (g *Graph) Unused(used ...string) []string {
	reach := g.Closure(used...)
	var out []string
	for _, n := range g.Nodes() {
		if _, found := slices.BinarySearch(reach, n.Name); !found {
			out = append(out, n.Name)
		}
	}
	return out
}

// IncludeCycles finds include cycles with a depth-first search that keeps the
// current path on a stack. One cycle is reported per traversal; the search
// then resumes from the next unvisited node. Each cycle starts and ends with
// the same name, e.g. [A B C A].
func (g *Graph) IncludeCycles() [][]string {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int)
	var (
		cycles [][]string
		stack  []string
	)

	var visit func(name string) []string
	visit = func(name string) []string {
		state[name] = onStack
		stack = append(stack, name)
		for _, to := range g.includeTargets(name) {
			switch state[to] {
			case onStack:
				i := slices.Index(stack, to)
				return append(slices.Clone(stack[i:]), to)
			case unvisited:
				if cycle := visit(to); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = done
		return nil
	}

	for _, n := range g.Nodes() {
		if state[n.Name] != unvisited {
			continue
		}
		stack = stack[:0]
		if cycle := visit(n.Name); cycle != nil {
			cycles = append(cycles, cycle)
			for _, s := range stack {
				state[s] = done
			}
		}
	}
	return cycles
}

// includeTargets returns the defined include targets of name, sorted.
func (g *Graph) includeTargets(name string) []string {
	var out []string
	for _, i := range g.out[name] {
		e := g.edges[i]
		if e.Kind == domain.EdgeInclude && !e.Dangling && !slices.Contains(out, e.To) {
			out = append(out, e.To)
		}
	}
	sort.Strings(out)
	return out
}
