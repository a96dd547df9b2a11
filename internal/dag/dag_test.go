// SPDX-License-Identifier: MPL-2.0

package dag

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

type edge struct{ from, to string }

func build(nodes []string, edges []edge) *Graph[string] {
	g := New[string]()
	for _, n := range nodes {
		g.AddNode(n)
	}
	for _, e := range edges {
		g.AddEdge(e.from, e.to)
	}
	return g
}

func TestSort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		nodes []string
		edges []edge
		want  []string
	}{
		{name: "empty", want: []string{}},
		{name: "single", nodes: []string{"/a.js"}, want: []string{"/a.js"}},
		{
			name:  "chain",
			edges: []edge{{"/lib.js", "/main.js"}, {"/util.js", "/lib.js"}},
			want:  []string{"/util.js", "/lib.js", "/main.js"},
		},
		{
			name:  "diamond",
			nodes: []string{"/bottom.js", "/left.js", "/right.js", "/top.js"},
			edges: []edge{
				{"/bottom.js", "/left.js"},
				{"/bottom.js", "/right.js"},
				{"/left.js", "/top.js"},
				{"/right.js", "/top.js"},
			},
			want: []string{"/bottom.js", "/left.js", "/right.js", "/top.js"},
		},
		{
			name:  "independent nodes keep insertion order",
			nodes: []string{"c", "a", "b"},
			want:  []string{"c", "a", "b"},
		},
		{
			name:  "duplicate edges",
			edges: []edge{{"a", "b"}, {"a", "b"}},
			want:  []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := build(tt.nodes, tt.edges).Sort()
			if err != nil {
				t.Fatalf("Sort() = %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Sort() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSortCycle(t *testing.T) {
	t.Parallel()

	g := build([]string{"main"}, []edge{{"a", "b"}, {"b", "a"}, {"b", "main"}})
	_, err := g.Sort()

	var cycleErr *CycleError[string]
	if !errors.As(err, &cycleErr) {
		t.Fatalf("Sort() = %v, want *CycleError", err)
	}
	if len(cycleErr.Cycles) != 1 || !slices.Equal(cycleErr.Cycles[0], []string{"a", "b"}) {
		t.Errorf("Cycles = %v, want [[a b]]", cycleErr.Cycles)
	}
	if !strings.Contains(err.Error(), "a -> b") {
		t.Errorf("Error() = %q", err)
	}
}

func TestOrder(t *testing.T) {
	t.Parallel()

	// util is acyclic; a and b require each other and main requires a.
	g := build(nil, []edge{
		{"util", "a"},
		{"a", "b"},
		{"b", "a"},
		{"a", "main"},
	})

	got := g.Order()
	want := []string{"util", "a", "b", "main"}
	if !slices.Equal(got, want) {
		t.Errorf("Order() = %v, want %v", got, want)
	}
	if g.Len() != 4 {
		t.Errorf("Len() = %d", g.Len())
	}
}

func TestCycles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		edges []edge
		want  [][]string
	}{
		{"acyclic", []edge{{"a", "b"}}, [][]string{}},
		{"self loop", []edge{{"a", "a"}}, [][]string{{"a"}}},
		{
			"two components",
			[]edge{{"x", "y"}, {"y", "x"}, {"a", "b"}, {"b", "c"}, {"c", "a"}},
			[][]string{{"x", "y"}, {"a", "b", "c"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := build(nil, tt.edges).Cycles()
			if !slices.EqualFunc(got, tt.want, slices.Equal) {
				t.Errorf("Cycles() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenericNodes(t *testing.T) {
	t.Parallel()

	type job struct {
		special bool
		value   string
	}
	g := New[job]()
	env := job{special: true, value: "env"}
	main := job{value: "/main.js"}
	g.AddEdge(env, main)

	got, err := g.Sort()
	if err != nil || !slices.Equal(got, []job{env, main}) {
		t.Errorf("Sort() = %v, %v", got, err)
	}
}
