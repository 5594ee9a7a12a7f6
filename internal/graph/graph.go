// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

// Package graph implements the pipeline graph: a parsed, validated DAG of
// nodes with capability-resolved connections. Manifest parsing itself
// (YAML/JSON) is an external collaborator; this package only consumes the
// already-normalized Manifest value.
package graph

import (
	"fmt"
	"sort"

	"github.com/remotemedia/core/internal/coreerrors"
)

// ExecutorKind is where a node instance runs.
type ExecutorKind string

const (
	InProcess    ExecutorKind = "in_process"
	OutOfProcess ExecutorKind = "out_of_process"
	Remote       ExecutorKind = "remote"
)

// CapabilityDecl is how a node declares its input and output ports.
type CapabilityDecl struct {
	Input  PortDecl
	Output PortDecl
}

// NodeSpec is the normalized, manifest-provided description of one node.
type NodeSpec struct {
	ID             string
	TypeName       string
	Params         map[string]interface{}
	ExecutorKind   ExecutorKind
	CapabilityDecl CapabilityDecl
}

// PortRef names a node and an optional port within it. An empty Port means
// "the node's sole port" — most native nodes have exactly one input and one
// output port.
type PortRef struct {
	NodeID string
	Port   string
}

func (p PortRef) String() string {
	if p.Port == "" {
		return p.NodeID
	}
	return fmt.Sprintf("%s:%s", p.NodeID, p.Port)
}

// EdgeSpec connects one node's output port to another node's input port.
type EdgeSpec struct {
	From PortRef
	To   PortRef
}

// Manifest is the normalized structure the core accepts: nodes, edges, and
// executor options. The core never parses raw YAML/JSON itself.
type Manifest struct {
	Version  string
	Nodes    []NodeSpec
	Edges    []EdgeSpec
	Executor map[string]interface{}
}

// resolvedNode is a NodeSpec plus its resolved input/output capabilities,
// filled in by the capability resolver during build.
type resolvedNode struct {
	NodeSpec
	ResolvedInput  Capability
	ResolvedOutput Capability
}

// Graph is a validated, acyclic pipeline: every referenced node id exists,
// every edge's resolved output capability is compatible with the consumer's
// resolved input capability, sources are nodes with no incoming edge, and
// sinks are nodes with no outgoing edge.
type Graph struct {
	nodes   map[string]*resolvedNode
	order   []string // insertion order of node ids, for deterministic iteration
	edges   []EdgeSpec
	outAdj  map[string][]EdgeSpec // nodeID -> edges leaving it
	inAdj   map[string][]EdgeSpec // nodeID -> edges entering it
	topo    []string              // cached topological_order result
	sources []string
	sinks   []string
}

// Build validates a manifest and produces a Graph, or a *coreerrors.Error of
// kind ConfigError. Validation order: duplicate ids, dangling edge
// endpoints, cycles (DFS), then capability resolution.
func Build(m Manifest) (*Graph, error) {
	g := &Graph{
		nodes:  make(map[string]*resolvedNode, len(m.Nodes)),
		outAdj: make(map[string][]EdgeSpec),
		inAdj:  make(map[string][]EdgeSpec),
	}

	for _, n := range m.Nodes {
		if n.ID == "" {
			return nil, coreerrors.New(coreerrors.ConfigError, "node has empty id")
		}
		if _, dup := g.nodes[n.ID]; dup {
			return nil, coreerrors.New(coreerrors.ConfigError, "duplicate node id %q", n.ID).WithNode(n.ID)
		}
		g.nodes[n.ID] = &resolvedNode{NodeSpec: n}
		g.order = append(g.order, n.ID)
	}

	for _, e := range m.Edges {
		if _, ok := g.nodes[e.From.NodeID]; !ok {
			return nil, coreerrors.New(coreerrors.ConfigError, "edge references unknown source node %q", e.From.NodeID).WithNode(e.From.NodeID)
		}
		if _, ok := g.nodes[e.To.NodeID]; !ok {
			return nil, coreerrors.New(coreerrors.ConfigError, "edge references unknown destination node %q", e.To.NodeID).WithNode(e.To.NodeID)
		}
		g.edges = append(g.edges, e)
		g.outAdj[e.From.NodeID] = append(g.outAdj[e.From.NodeID], e)
		g.inAdj[e.To.NodeID] = append(g.inAdj[e.To.NodeID], e)
	}

	if cycleNode, ok := g.findCycle(); ok {
		return nil, coreerrors.New(coreerrors.ConfigError, "cycle detected at node %q", cycleNode).WithNode(cycleNode)
	}

	topo, err := g.computeTopologicalOrder()
	if err != nil {
		return nil, err
	}
	g.topo = topo

	for id, edges := range g.inAdj {
		if len(edges) == 0 {
			delete(g.inAdj, id)
		}
	}
	for _, id := range g.order {
		if len(g.inAdj[id]) == 0 {
			g.sources = append(g.sources, id)
		}
		if len(g.outAdj[id]) == 0 {
			g.sinks = append(g.sinks, id)
		}
	}
	sort.Strings(g.sources)
	sort.Strings(g.sinks)

	if err := ResolveCapabilities(g); err != nil {
		return nil, err
	}

	return g, nil
}

// findCycle runs a three-colour DFS and returns the id where a back-edge
// was found, if any.
func (g *Graph) findCycle() (string, bool) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.order))

	var visit func(id string) (string, bool)
	visit = func(id string) (string, bool) {
		color[id] = gray
		edges := append([]EdgeSpec(nil), g.outAdj[id]...)
		sort.Slice(edges, func(i, j int) bool { return edges[i].To.NodeID < edges[j].To.NodeID })
		for _, e := range edges {
			next := e.To.NodeID
			switch color[next] {
			case white:
				if cycleAt, found := visit(next); found {
					return cycleAt, true
				}
			case gray:
				return next, true
			}
		}
		color[id] = black
		return "", false
	}

	for _, id := range g.order {
		if color[id] == white {
			if cycleAt, found := visit(id); found {
				return cycleAt, true
			}
		}
	}
	return "", false
}

// computeTopologicalOrder runs Kahn's algorithm with ties broken by node id,
// so the result is deterministic for a given manifest.
func (g *Graph) computeTopologicalOrder() ([]string, error) {
	inDegree := make(map[string]int, len(g.order))
	for _, id := range g.order {
		inDegree[id] = 0
	}
	for _, e := range g.edges {
		inDegree[e.To.NodeID]++
	}

	var ready []string
	for _, id := range g.order {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.order))
	for len(ready) > 0 {
		sort.Strings(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		successors := append([]EdgeSpec(nil), g.outAdj[next]...)
		sort.Slice(successors, func(i, j int) bool { return successors[i].To.NodeID < successors[j].To.NodeID })
		for _, e := range successors {
			inDegree[e.To.NodeID]--
			if inDegree[e.To.NodeID] == 0 {
				ready = append(ready, e.To.NodeID)
			}
		}
	}

	if len(order) != len(g.order) {
		return nil, coreerrors.New(coreerrors.ConfigError, "graph has a cycle: topological sort could not order all nodes")
	}
	return order, nil
}

// TopologicalOrder returns the deterministic linearization computed at
// build time.
func (g *Graph) TopologicalOrder() []string {
	out := make([]string, len(g.topo))
	copy(out, g.topo)
	return out
}

// Predecessors returns the node ids with an edge into n, O(degree).
func (g *Graph) Predecessors(n string) []string {
	edges := g.inAdj[n]
	out := make([]string, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.From.NodeID)
	}
	return out
}

// Successors returns the node ids with an edge from n, O(degree).
func (g *Graph) Successors(n string) []string {
	edges := g.outAdj[n]
	out := make([]string, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.To.NodeID)
	}
	return out
}

// OutEdges returns the edges leaving n.
func (g *Graph) OutEdges(n string) []EdgeSpec {
	return append([]EdgeSpec(nil), g.outAdj[n]...)
}

// Sources returns node ids with no incoming edge.
func (g *Graph) Sources() []string { return append([]string(nil), g.sources...) }

// Sinks returns node ids with no outgoing edge.
func (g *Graph) Sinks() []string { return append([]string(nil), g.sinks...) }

// Node returns the node spec for id, or false if it doesn't exist.
func (g *Graph) Node(id string) (NodeSpec, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return NodeSpec{}, false
	}
	return n.NodeSpec, true
}

// NodeIDs returns every node id in manifest order.
func (g *Graph) NodeIDs() []string {
	return append([]string(nil), g.order...)
}

// ResolvedInputCapability returns the capability resolved for a node's
// input port.
func (g *Graph) ResolvedInputCapability(id string) (Capability, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Capability{}, false
	}
	return n.ResolvedInput, true
}

// ResolvedOutputCapability returns the capability resolved for a node's
// output port.
func (g *Graph) ResolvedOutputCapability(id string) (Capability, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Capability{}, false
	}
	return n.ResolvedOutput, true
}
