// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package topology

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/ava-labs/blockprop/utils/set"
)

var (
	errSelfEdge     = errors.New("a node cannot be linked to itself")
	errNodeOutRange = errors.New("node index out of range")
)

// Edge is an undirected link between two node indices. A is always the
// smaller index.
type Edge struct {
	A int `yaml:"a"`
	B int `yaml:"b"`
}

func NewEdge(a, b int) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{A: a, B: b}
}

func (e Edge) String() string {
	return fmt.Sprintf("%d-%d", e.A, e.B)
}

func compareEdges(a, b Edge) int {
	if c := cmp.Compare(a.A, b.A); c != 0 {
		return c
	}
	return cmp.Compare(a.B, b.B)
}

// CrossEdges returns every edge between a node of [p1] and a node of [p2].
func CrossEdges(p1, p2 []int) []Edge {
	edges := set.NewSet[Edge](len(p1) * len(p2))
	for _, a := range p1 {
		for _, b := range p2 {
			if a != b {
				edges.Add(NewEdge(a, b))
			}
		}
	}
	list := edges.List()
	slices.SortFunc(list, compareEdges)
	return list
}

// Graph is the undirected connectivity graph of a network of [Size] nodes.
type Graph struct {
	size  int
	edges set.Set[Edge]
}

func NewGraph(size int, edges ...Edge) (*Graph, error) {
	g := &Graph{
		size:  size,
		edges: set.NewSet[Edge](len(edges)),
	}
	for _, e := range edges {
		e = NewEdge(e.A, e.B)
		if err := g.check(e); err != nil {
			return nil, err
		}
		g.edges.Add(e)
	}
	return g, nil
}

// FullMesh returns a graph with every pair of nodes linked.
func FullMesh(size int) *Graph {
	g := &Graph{
		size:  size,
		edges: set.NewSet[Edge](size * (size - 1) / 2),
	}
	for a := 0; a < size; a++ {
		for b := a + 1; b < size; b++ {
			g.edges.Add(Edge{A: a, B: b})
		}
	}
	return g
}

func (g *Graph) check(e Edge) error {
	if e.A == e.B {
		return fmt.Errorf("%w: %d", errSelfEdge, e.A)
	}
	if e.A < 0 || e.B >= g.size {
		return fmt.Errorf("%w: edge %s in a graph of %d nodes", errNodeOutRange, e, g.size)
	}
	return nil
}

func (g *Graph) Size() int {
	return g.size
}

func (g *Graph) Connected(a, b int) bool {
	return g.edges.Contains(NewEdge(a, b))
}

// Edges returns the edges of the graph in ascending order.
func (g *Graph) Edges() []Edge {
	edges := g.edges.List()
	slices.SortFunc(edges, compareEdges)
	return edges
}

// Neighbors returns the nodes directly linked to [node] in ascending order.
func (g *Graph) Neighbors(node int) []int {
	var neighbors []int
	for e := range g.edges {
		switch node {
		case e.A:
			neighbors = append(neighbors, e.B)
		case e.B:
			neighbors = append(neighbors, e.A)
		}
	}
	slices.Sort(neighbors)
	return neighbors
}

// Components returns the connected components of the graph. Each component
// is sorted and components are ordered by their smallest node.
func (g *Graph) Components() [][]int {
	visited := make([]bool, g.size)
	var components [][]int
	for start := 0; start < g.size; start++ {
		if visited[start] {
			continue
		}
		visited[start] = true
		component := []int{start}
		for i := 0; i < len(component); i++ {
			for _, neighbor := range g.Neighbors(component[i]) {
				if !visited[neighbor] {
					visited[neighbor] = true
					component = append(component, neighbor)
				}
			}
		}
		slices.Sort(component)
		components = append(components, component)
	}
	return components
}

// Reachable reports whether a path exists between [a] and [b].
func (g *Graph) Reachable(a, b int) bool {
	for _, component := range g.Components() {
		if slices.Contains(component, a) {
			return slices.Contains(component, b)
		}
	}
	return false
}

func (g *Graph) Clone() *Graph {
	edges := set.NewSet[Edge](g.edges.Len())
	edges.Union(g.edges)
	return &Graph{
		size:  g.size,
		edges: edges,
	}
}

func (g *Graph) set(e Edge, connected bool) {
	if connected {
		g.edges.Add(e)
	} else {
		g.edges.Remove(e)
	}
}
