// Package depgraph builds cross-reference dependency graphs from extracted
// facts and detects cycles, coupling hotspots, and architecture smells.
package depgraph

import (
	"context"
	"sort"
	"strings"

	"github.com/dejo1307/codecolony/internal/facts"
)

// Granularity selects which declaration kinds become graph nodes.
type Granularity string

const (
	GranularityModule   Granularity = "module"
	GranularityClass    Granularity = "class"
	GranularityFunction Granularity = "function"
)

// Node is a declaration in the dependency graph. Nodes and edges reference
// each other by index, never by pointer; the graph is never mutated after
// Build returns.
type Node struct {
	QualifiedName string `json:"qualified_name"`
	Kind          string `json:"kind"`
	Path          string `json:"path,omitempty"`
	LOC           int    `json:"loc"`
	Complexity    int    `json:"complexity,omitempty"`
	InDegree      int    `json:"in_degree"`
	OutDegree     int    `json:"out_degree"`
}

// Edge is a directed dependency between two nodes, deduplicated by
// (from, to, kind); weight counts the underlying fact occurrences.
type Edge struct {
	From   int    `json:"from"`
	To     int    `json:"to"`
	Kind   string `json:"kind"`
	Weight int    `json:"weight"`
}

// Graph is an immutable directed multigraph over declarations.
type Graph struct {
	Nodes []Node
	Edges []Edge

	index map[string]int // qualified name -> node index
	out   [][]int        // node -> edge indices
	in    [][]int        // node -> edge indices
}

// ctxCheckStride bounds how many nodes or edges are processed between
// context checks during construction.
const ctxCheckStride = 1024

// Build constructs a graph at the given granularity from the fact store.
// One node per declaration of the matching kinds; edges are resolved to the
// nearest enclosing node of the requested granularity. Construction stops
// with the context error when cancelled.
func Build(ctx context.Context, store *facts.Store, g Granularity) (*Graph, error) {
	gr := &Graph{index: make(map[string]int)}

	n := 0
	kinds := nodeKinds(g)
	for _, kind := range kinds {
		for _, d := range store.DeclarationsByKind(kind) {
			if n%ctxCheckStride == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			n++
			if _, exists := gr.index[d.QualifiedName]; exists {
				continue
			}
			gr.index[d.QualifiedName] = len(gr.Nodes)
			gr.Nodes = append(gr.Nodes, Node{
				QualifiedName: d.QualifiedName,
				Kind:          d.Kind,
				Path:          d.Path,
				LOC:           d.LOC(),
				Complexity:    d.Complexity,
			})
		}
	}

	gr.out = make([][]int, len(gr.Nodes))
	gr.in = make([][]int, len(gr.Nodes))

	edgeIdx := make(map[[3]string]int) // from,to,kind -> edge index
	for n, e := range store.Edges() {
		if n%ctxCheckStride == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		from, okFrom := gr.resolve(e.From)
		to, okTo := gr.resolve(e.To)
		if !okFrom || !okTo {
			continue
		}
		// Edges between distinct fine-grained units that collapse onto the
		// same coarse node are containment, not self-dependency. A true
		// self-reference keeps its self-loop.
		if from == to && e.From != e.To {
			continue
		}

		key := [3]string{gr.Nodes[from].QualifiedName, gr.Nodes[to].QualifiedName, e.Kind}
		if i, ok := edgeIdx[key]; ok {
			gr.Edges[i].Weight++
			continue
		}
		edgeIdx[key] = len(gr.Edges)
		gr.Edges = append(gr.Edges, Edge{From: from, To: to, Kind: e.Kind, Weight: 1})
		gr.out[from] = append(gr.out[from], len(gr.Edges)-1)
		gr.in[to] = append(gr.in[to], len(gr.Edges)-1)
	}

	for i := range gr.Nodes {
		gr.Nodes[i].OutDegree = len(gr.out[i])
		gr.Nodes[i].InDegree = len(gr.in[i])
	}

	return gr, nil
}

func nodeKinds(g Granularity) []string {
	switch g {
	case GranularityClass:
		return []string{facts.KindClass}
	case GranularityFunction:
		return []string{facts.KindFunction}
	default:
		return []string{facts.KindModule}
	}
}

// resolve maps a qualified name to a node index, walking up enclosing
// scopes ("a/b.C.m" -> "a/b.C" -> "a/b" -> "a") until a node matches.
func (g *Graph) resolve(qualifiedName string) (int, bool) {
	cur := qualifiedName
	for {
		if idx, ok := g.index[cur]; ok {
			return idx, true
		}
		next := parentScope(cur)
		if next == cur {
			return 0, false
		}
		cur = next
	}
}

// parentScope strips the last scope component: first trailing ".name"
// segments, then trailing "/dir" segments.
func parentScope(name string) string {
	if i := strings.LastIndex(name, "."); i > strings.LastIndex(name, "/") {
		return name[:i]
	}
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[:i]
	}
	return name
}

// NodeByName returns the node index for a qualified name.
func (g *Graph) NodeByName(qualifiedName string) (int, bool) {
	idx, ok := g.index[qualifiedName]
	return idx, ok
}

// Successors returns the distinct node indices reachable by one outgoing
// edge, sorted for determinism.
func (g *Graph) Successors(node int) []int {
	return g.distinctNeighbors(g.out[node], func(e Edge) int { return e.To })
}

// Predecessors returns the distinct node indices with an edge into node,
// sorted for determinism.
func (g *Graph) Predecessors(node int) []int {
	return g.distinctNeighbors(g.in[node], func(e Edge) int { return e.From })
}

func (g *Graph) distinctNeighbors(edges []int, pick func(Edge) int) []int {
	seen := make(map[int]bool, len(edges))
	var result []int
	for _, ei := range edges {
		n := pick(g.Edges[ei])
		if !seen[n] {
			seen[n] = true
			result = append(result, n)
		}
	}
	sort.Ints(result)
	return result
}

// Coupling holds per-node coupling metrics.
type Coupling struct {
	QualifiedName string  `json:"qualified_name"`
	Afferent      int     `json:"afferent"`    // distinct incoming neighbors
	Efferent      int     `json:"efferent"`    // distinct outgoing neighbors
	Instability   float64 `json:"instability"` // efferent / (afferent + efferent)
}

// CouplingMetrics computes afferent/efferent coupling and instability for
// every node, in node order. Self-loops do not count as coupling.
func (g *Graph) CouplingMetrics() []Coupling {
	result := make([]Coupling, len(g.Nodes))
	for i := range g.Nodes {
		ca, ce := 0, 0
		for _, n := range g.Predecessors(i) {
			if n != i {
				ca++
			}
		}
		for _, n := range g.Successors(i) {
			if n != i {
				ce++
			}
		}
		inst := 0.0
		if ca+ce > 0 {
			inst = float64(ce) / float64(ca+ce)
		}
		result[i] = Coupling{
			QualifiedName: g.Nodes[i].QualifiedName,
			Afferent:      ca,
			Efferent:      ce,
			Instability:   inst,
		}
	}
	return result
}

// AdjacencyExport is the lossless serialized form of the graph: adjacency
// lists keyed by qualified name.
type AdjacencyExport struct {
	Nodes map[string]Node         `json:"nodes"`
	Edges map[string][]ExportEdge `json:"edges"` // from qualified name -> outgoing
}

// ExportEdge is one outgoing edge in the export form.
type ExportEdge struct {
	To     string `json:"to"`
	Kind   string `json:"kind"`
	Weight int    `json:"weight"`
}

// Export renders the graph as adjacency lists keyed by qualified name.
// No node or edge information is dropped.
func (g *Graph) Export() AdjacencyExport {
	exp := AdjacencyExport{
		Nodes: make(map[string]Node, len(g.Nodes)),
		Edges: make(map[string][]ExportEdge),
	}
	for _, n := range g.Nodes {
		exp.Nodes[n.QualifiedName] = n
	}
	for _, e := range g.Edges {
		from := g.Nodes[e.From].QualifiedName
		exp.Edges[from] = append(exp.Edges[from], ExportEdge{
			To:     g.Nodes[e.To].QualifiedName,
			Kind:   e.Kind,
			Weight: e.Weight,
		})
	}
	for from := range exp.Edges {
		es := exp.Edges[from]
		sort.Slice(es, func(i, j int) bool {
			if es[i].To != es[j].To {
				return es[i].To < es[j].To
			}
			return es[i].Kind < es[j].Kind
		})
	}
	return exp
}
