// SPDX-License-Identifier: MPL-2.0

// Package dag provides directed acyclic graph operations for topological sorting
// and cycle detection. It is used by the dependency resolver to order modules so
// that every module loads after the modules it requires.
package dag

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultWeight is the weight assigned to nodes added without an explicit weight.
const DefaultWeight = 100

type (
	// CycleError indicates that the graph contains a cycle, preventing topological ordering.
	CycleError struct {
		// Cycle contains every node that could not be ordered: the members of the
		// cycle plus anything that transitively depends on them.
		Cycle []string
	}

	// Graph is a directed graph for topological sorting.
	// Nodes are identified by string keys. Edges represent "must run before" relationships:
	// an edge from A to B means A must complete before B starts.
	Graph struct {
		// adjacency maps each node to its outgoing neighbors (nodes that depend on it).
		adjacency map[string][]string
		// nodes tracks all nodes in insertion order for deterministic output.
		nodes []string
		// index maps a node to its insertion position (the stable tie-break).
		index map[string]int
		// weight orders nodes that become ready at the same time; lower sorts first.
		weight map[string]int
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		index:     make(map[string]int),
		weight:    make(map[string]int),
	}
}

// AddNode adds a node with DefaultWeight. If the node already exists, this is a no-op.
func (g *Graph) AddNode(name string) {
	if g.HasNode(name) {
		return
	}
	g.AddWeightedNode(name, DefaultWeight)
}

// AddWeightedNode adds a node with the given weight. If the node already exists,
// only its weight is updated; its insertion position is kept.
func (g *Graph) AddWeightedNode(name string, weight int) {
	if _, ok := g.index[name]; ok {
		g.weight[name] = weight
		return
	}
	g.index[name] = len(g.nodes)
	g.weight[name] = weight
	g.nodes = append(g.nodes, name)
}

// HasNode reports whether name has been added to the graph.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

// AddEdge adds a directed edge from -> to, meaning "from" must run before "to".
// Missing nodes are added with DefaultWeight; existing nodes keep their weight.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	g.adjacency[from] = append(g.adjacency[from], to)
}

// TopologicalSort returns a valid execution order using Kahn's algorithm.
// Returns CycleError if the graph contains a cycle.
//
// The ready queue is kept ordered by (weight, insertion index), and nodes that
// become ready mid-sort are inserted at their ordered position rather than
// appended, so the weight ordering holds inside every dependency wave.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	// Compute in-degrees.
	inDegree := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = 0
	}
	for _, neighbors := range g.adjacency {
		for _, neighbor := range neighbors {
			inDegree[neighbor]++
		}
	}

	queue := make([]string, 0, len(g.nodes))
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			queue = g.enqueue(queue, node)
		}
	}

	result := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range g.adjacency[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = g.enqueue(queue, neighbor)
			}
		}
	}

	if len(result) != len(g.nodes) {
		// Remaining nodes with non-zero in-degree form (or sit behind) the cycle.
		var cycleNodes []string
		for _, node := range g.nodes {
			if inDegree[node] > 0 {
				cycleNodes = append(cycleNodes, node)
			}
		}
		return nil, &CycleError{Cycle: cycleNodes}
	}

	return result, nil
}

// enqueue inserts node into queue keeping it sorted by (weight, insertion index).
func (g *Graph) enqueue(queue []string, node string) []string {
	pos := sort.Search(len(queue), func(i int) bool {
		return g.less(node, queue[i])
	})
	queue = append(queue, "")
	copy(queue[pos+1:], queue[pos:])
	queue[pos] = node
	return queue
}

func (g *Graph) less(a, b string) bool {
	if g.weight[a] != g.weight[b] {
		return g.weight[a] < g.weight[b]
	}
	return g.index[a] < g.index[b]
}
