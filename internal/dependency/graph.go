package dependency

import (
	"fmt"
	"strings"

	"devctl/internal/descriptor"
)

// NodeID identifies a node. Services are keyed by the name declared in their
// own descriptor, leaf dependencies by their dependency name.
type NodeID string

// Node is one entry of a dependency graph.
type Node struct {
	ID           NodeID
	FriendlyName string
	Kind         descriptor.DependencyType
	// Remote is set for services fetched from another repository.
	Remote    *descriptor.RemoteConfig
	DependsOn []NodeID
}

// Graph is a directed graph of service -> required service. It is built fresh
// for every invocation and is not safe for concurrent mutation.
type Graph struct {
	nodes map[NodeID]*Node
	order []NodeID
	// dependents is the reverse adjacency of DependsOn.
	dependents map[NodeID][]NodeID
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:      make(map[NodeID]*Node),
		dependents: make(map[NodeID][]NodeID),
	}
}

// AddNode inserts n unless a node with the same ID exists. Edges listed in
// n.DependsOn are added either way.
func (g *Graph) AddNode(n Node) {
	deps := n.DependsOn
	if _, ok := g.nodes[n.ID]; !ok {
		n.DependsOn = nil
		g.nodes[n.ID] = &n
		g.order = append(g.order, n.ID)
	}
	for _, d := range deps {
		g.AddEdge(n.ID, d)
	}
}

// AddEdge records that from requires to. Self-edges are ignored and missing
// endpoints are created as bare nodes.
func (g *Graph) AddEdge(from, to NodeID) {
	if from == to {
		return
	}
	if _, ok := g.nodes[from]; !ok {
		g.AddNode(Node{ID: from})
	}
	if _, ok := g.nodes[to]; !ok {
		g.AddNode(Node{ID: to})
	}
	n := g.nodes[from]
	for _, d := range n.DependsOn {
		if d == to {
			return
		}
	}
	n.DependsOn = append(n.DependsOn, to)
	g.dependents[to] = append(g.dependents[to], from)
}

// Get returns the node with the given ID.
func (g *Graph) Get(id NodeID) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	cp := *n
	cp.DependsOn = append([]NodeID(nil), n.DependsOn...)
	return cp, true
}

// Contains reports whether the graph has a node with the given ID.
func (g *Graph) Contains(id NodeID) bool {
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		n, _ := g.Get(id)
		out = append(out, n)
	}
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

// Dependents returns the nodes that directly require id.
func (g *Graph) Dependents(id NodeID) []NodeID {
	return append([]NodeID(nil), g.dependents[id]...)
}

// StartOrder returns every node such that each one comes after everything it
// requires. The order is a DFS post-order over insertion order, so it is
// deterministic for a given descriptor.
func (g *Graph) StartOrder() ([]NodeID, error) {
	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[NodeID]int, len(g.nodes))
	out := make([]NodeID, 0, len(g.nodes))
	var stack []NodeID

	var visit func(id NodeID) error
	visit = func(id NodeID) error {
		switch state[id] {
		case done:
			return nil
		case inProgress:
			return fmt.Errorf("%w: %s", ErrCyclicDependency, cyclePath(stack, id))
		}
		state[id] = inProgress
		stack = append(stack, id)
		for _, d := range g.nodes[id].DependsOn {
			if err := visit(d); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		out = append(out, id)
		return nil
	}

	for _, id := range g.order {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func cyclePath(stack []NodeID, repeated NodeID) string {
	start := 0
	for i, id := range stack {
		if id == repeated {
			start = i
			break
		}
	}
	parts := make([]string, 0, len(stack)-start+1)
	for _, id := range stack[start:] {
		parts = append(parts, string(id))
	}
	parts = append(parts, string(repeated))
	return strings.Join(parts, " -> ")
}
