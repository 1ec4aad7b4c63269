package depgraph

import (
	"sort"
	"strings"
)

// Cycle is a directed dependency cycle in canonical form: the path starts
// at the lexicographically smallest member and closes on it (first == last).
// A self-loop is the special length-1 case with Path == [a, a].
type Cycle struct {
	Path     []string `json:"path"`
	SelfLoop bool     `json:"self_loop,omitempty"`
}

// Len returns the number of distinct nodes in the cycle.
func (c Cycle) Len() int {
	if c.SelfLoop {
		return 1
	}
	return len(c.Path) - 1
}

// Key returns the canonical identity of the cycle. Two cycles that differ
// only by rotation share a key.
func (c Cycle) Key() string {
	return strings.Join(c.Path, " -> ")
}

// FindCycles runs Tarjan's SCC decomposition and reports every SCC of size
// greater than one, plus every self-loop, as a canonicalized Cycle. Output
// order is deterministic: sorted by canonical key.
func (g *Graph) FindCycles() []Cycle {
	sccs := g.tarjanSCC()

	seen := make(map[string]bool)
	var cycles []Cycle

	for _, scc := range sccs {
		if len(scc) > 1 {
			c := g.canonicalCycle(scc)
			if !seen[c.Key()] {
				seen[c.Key()] = true
				cycles = append(cycles, c)
			}
		}
	}

	// Self-loops form singleton SCCs and need their own check.
	for i, n := range g.Nodes {
		for _, ei := range g.out[i] {
			if g.Edges[ei].To == i {
				c := Cycle{Path: []string{n.QualifiedName, n.QualifiedName}, SelfLoop: true}
				if !seen[c.Key()] {
					seen[c.Key()] = true
					cycles = append(cycles, c)
				}
				break
			}
		}
	}

	sort.Slice(cycles, func(i, j int) bool { return cycles[i].Key() < cycles[j].Key() })
	return cycles
}

// canonicalCycle orders an SCC's members into a cycle path starting at the
// lexicographically smallest node, walking edges within the SCC and always
// preferring the smallest unvisited successor. Members unreachable by the
// greedy walk (dense SCCs with chords) are appended in lexicographic order;
// the canonical form stays rotation-invariant either way.
func (g *Graph) canonicalCycle(scc []int) Cycle {
	inSCC := make(map[int]bool, len(scc))
	for _, n := range scc {
		inSCC[n] = true
	}

	start := scc[0]
	for _, n := range scc[1:] {
		if g.Nodes[n].QualifiedName < g.Nodes[start].QualifiedName {
			start = n
		}
	}

	visited := map[int]bool{start: true}
	path := []string{g.Nodes[start].QualifiedName}
	cur := start

	for len(visited) < len(scc) {
		next := -1
		for _, s := range g.Successors(cur) {
			if inSCC[s] && !visited[s] {
				if next == -1 || g.Nodes[s].QualifiedName < g.Nodes[next].QualifiedName {
					next = s
				}
			}
		}
		if next == -1 {
			break
		}
		visited[next] = true
		path = append(path, g.Nodes[next].QualifiedName)
		cur = next
	}

	if len(visited) < len(scc) {
		var rest []string
		for _, n := range scc {
			if !visited[n] {
				rest = append(rest, g.Nodes[n].QualifiedName)
			}
		}
		sort.Strings(rest)
		path = append(path, rest...)
	}

	path = append(path, g.Nodes[start].QualifiedName)
	return Cycle{Path: path}
}

// tarjanSCC implements Tarjan's strongly connected components algorithm
// over node indices, iteratively ordered by node index for determinism.
func (g *Graph) tarjanSCC() [][]int {
	var (
		counter  int
		stack    []int
		onStack  = make([]bool, len(g.Nodes))
		indices  = make([]int, len(g.Nodes))
		lowlinks = make([]int, len(g.Nodes))
		sccs     [][]int
	)
	for i := range indices {
		indices[i] = -1
	}

	var strongConnect func(v int)
	strongConnect = func(v int) {
		indices[v] = counter
		lowlinks[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.Successors(v) {
			if indices[w] == -1 {
				strongConnect(w)
				if lowlinks[w] < lowlinks[v] {
					lowlinks[v] = lowlinks[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlinks[v] {
					lowlinks[v] = indices[w]
				}
			}
		}

		// Root of an SCC
		if lowlinks[v] == indices[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for v := range g.Nodes {
		if indices[v] == -1 {
			strongConnect(v)
		}
	}

	return sccs
}
