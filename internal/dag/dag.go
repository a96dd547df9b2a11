// SPDX-License-Identifier: MPL-2.0

// Package dag orders the nodes of a directed graph so every node follows
// the nodes it depends on. Module graphs may legally contain cycles, so
// ordering does not fail on them; the cyclic components are reported next to
// the order instead.
package dag

import (
	"fmt"
	"slices"
	"strings"
)

type (
	// CycleError is returned by Sort when the graph is not acyclic.
	CycleError[N comparable] struct {
		// Cycles lists every strongly connected component with more than
		// one node, or a single node with an edge to itself.
		Cycles [][]N
	}

	// Graph is a directed graph. An edge from A to B means A must come
	// before B. Node and edge order is remembered so results are
	// deterministic.
	Graph[N comparable] struct {
		nodes []N
		index map[N]int
		out   [][]int
	}
)

func (e *CycleError[N]) Error() string {
	parts := make([]string, len(e.Cycles))
	for i, c := range e.Cycles {
		names := make([]string, len(c))
		for j, n := range c {
			names[j] = fmt.Sprint(n)
		}
		parts[i] = strings.Join(names, " -> ")
	}
	return "dependency cycle detected: " + strings.Join(parts, "; ")
}

// New creates an empty Graph.
func New[N comparable]() *Graph[N] {
	return &Graph[N]{index: make(map[N]int)}
}

// Len returns the number of nodes.
func (g *Graph[N]) Len() int { return len(g.nodes) }

// AddNode adds n if it is not present yet.
func (g *Graph[N]) AddNode(n N) {
	g.id(n)
}

// AddEdge adds an edge meaning "from comes before to", adding both nodes.
// Duplicate edges are ignored.
func (g *Graph[N]) AddEdge(from, to N) {
	f, t := g.id(from), g.id(to)
	for _, existing := range g.out[f] {
		if existing == t {
			return
		}
	}
	g.out[f] = append(g.out[f], t)
}

func (g *Graph[N]) id(n N) int {
	if i, ok := g.index[n]; ok {
		return i
	}
	i := len(g.nodes)
	g.index[n] = i
	g.nodes = append(g.nodes, n)
	g.out = append(g.out, nil)
	return i
}

// Sort returns a topological order using Kahn's algorithm, or a *CycleError.
// Nodes that become ready together keep insertion order.
func (g *Graph[N]) Sort() ([]N, error) {
	order, rest := g.kahn()
	if len(rest) > 0 {
		return nil, &CycleError[N]{Cycles: g.Cycles()}
	}
	return order, nil
}

// Order returns every node: the acyclic part in topological order, then
// the nodes on or behind a cycle in insertion order. It never fails;
// callers that care use Cycles.
func (g *Graph[N]) Order() []N {
	order, rest := g.kahn()
	return append(order, rest...)
}

func (g *Graph[N]) kahn() (order, rest []N) {
	in := make([]int, len(g.nodes))
	for _, outs := range g.out {
		for _, t := range outs {
			in[t]++
		}
	}

	queue := make([]int, 0, len(g.nodes))
	for i := range g.nodes {
		if in[i] == 0 {
			queue = append(queue, i)
		}
	}

	order = make([]N, 0, len(g.nodes))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, g.nodes[i])
		for _, t := range g.out[i] {
			in[t]--
			if in[t] == 0 {
				queue = append(queue, t)
			}
		}
	}

	for i, n := range g.nodes {
		if in[i] > 0 {
			rest = append(rest, n)
		}
	}
	return order, rest
}

// Cycles returns the cyclic strongly connected components (Tarjan's
// algorithm), each in insertion order, ordered by their first node.
func (g *Graph[N]) Cycles() [][]N {
	var (
		next    int
		index   = make([]int, len(g.nodes))
		low     = make([]int, len(g.nodes))
		onStack = make([]bool, len(g.nodes))
		stack   []int
		comps   [][]int
	)
	for i := range index {
		index[i] = -1
	}

	var visit func(v int)
	visit = func(v int) {
		index[v], low[v] = next, next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.out[v] {
			switch {
			case index[w] < 0:
				visit(w)
				low[v] = min(low[v], low[w])
			case onStack[w]:
				low[v] = min(low[v], index[w])
			}
		}

		if low[v] != index[v] {
			return
		}
		var comp []int
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			comp = append(comp, w)
			if w == v {
				break
			}
		}
		if len(comp) > 1 || g.selfLoop(v) {
			comps = append(comps, comp)
		}
	}

	for v := range g.nodes {
		if index[v] < 0 {
			visit(v)
		}
	}

	out := make([][]N, 0, len(comps))
	for _, comp := range sortComponents(comps) {
		nodes := make([]N, len(comp))
		for i, v := range comp {
			nodes[i] = g.nodes[v]
		}
		out = append(out, nodes)
	}
	return out
}

func (g *Graph[N]) selfLoop(v int) bool {
	for _, w := range g.out[v] {
		if w == v {
			return true
		}
	}
	return false
}

// sortComponents orders each component's members and the components by
// insertion index.
func sortComponents(comps [][]int) [][]int {
	for _, c := range comps {
		slices.Sort(c)
	}
	slices.SortFunc(comps, func(a, b []int) int { return a[0] - b[0] })
	return comps
}
