// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

package graph

import (
	"fmt"

	"github.com/remotemedia/core/internal/coreerrors"
)

// ResolveCapabilities runs the three-pass capability resolver:
//  1. forward pass in topological order — static/configured/passthrough
//     resolve directly; adaptive/runtime-discovered are deferred.
//  2. reverse pass — adaptive nodes take their output requirement from
//     their sole downstream consumer's resolved input.
//  3. validation — every resolved (producer output, consumer input) pair
//     must be compatible, or a ConfigError with a suggested insertion is
//     returned.
func ResolveCapabilities(g *Graph) error {
	forwardPass(g)
	if err := reversePass(g); err != nil {
		return err
	}
	return validate(g)
}

func forwardPass(g *Graph) {
	for _, id := range g.topo {
		n := g.nodes[id]

		switch n.CapabilityDecl.Input.Kind {
		case DeclStatic, DeclConfigured:
			n.ResolvedInput = n.CapabilityDecl.Input.Capability
		case DeclPassthrough:
			// Input passthrough means "same as whatever feeds me"; take the
			// first predecessor's resolved output if one exists yet.
			if preds := g.Predecessors(id); len(preds) > 0 {
				n.ResolvedInput = g.nodes[preds[0]].ResolvedOutput
			}
		case DeclAdaptive, DeclRuntimeDiscovered:
			// Potential phase: use the declared capability as a placeholder;
			// actual resolution for adaptive nodes happens on output in the
			// reverse pass, and runtime-discovered nodes report their actual
			// capability once started (outside build-time resolution).
			n.ResolvedInput = n.CapabilityDecl.Input.Capability
		}

		switch n.CapabilityDecl.Output.Kind {
		case DeclStatic, DeclConfigured:
			n.ResolvedOutput = n.CapabilityDecl.Output.Capability
		case DeclPassthrough:
			n.ResolvedOutput = n.ResolvedInput
		case DeclAdaptive, DeclRuntimeDiscovered:
			n.ResolvedOutput = n.CapabilityDecl.Output.Capability // placeholder, fixed in reverse pass
		}
	}
}

// reversePass resolves adaptive output ports from their sole downstream
// consumer's resolved input.
func reversePass(g *Graph) error {
	for i := len(g.topo) - 1; i >= 0; i-- {
		id := g.topo[i]
		n := g.nodes[id]
		if n.CapabilityDecl.Output.Kind != DeclAdaptive {
			continue
		}

		successors := g.Successors(id)
		if len(successors) == 0 {
			return coreerrors.New(coreerrors.ConfigError,
				"adaptive node %q has no downstream consumer to take its output requirement from", id).WithNode(id)
		}
		if len(successors) > 1 {
			return coreerrors.New(coreerrors.ConfigError,
				"adaptive node %q has multiple downstream consumers; adaptive resolution requires exactly one", id).WithNode(id)
		}
		consumer := g.nodes[successors[0]]
		n.ResolvedOutput = consumer.ResolvedInput
	}
	return nil
}

// validate checks every edge's resolved (producer output, consumer input)
// pair for compatibility.
func validate(g *Graph) error {
	for _, e := range g.edges {
		producer := g.nodes[e.From.NodeID]
		consumer := g.nodes[e.To.NodeID]

		if !producer.ResolvedOutput.resolved() || !consumer.ResolvedInput.resolved() {
			// One side never resolved to a concrete capability (e.g. a
			// runtime-discovered node whose "actual" phase hasn't run yet).
			// Build-time validation can't say more; the node's own
			// Initialize hook is responsible for rejecting bad input later.
			continue
		}

		if err := producer.ResolvedOutput.CompatibleWith(consumer.ResolvedInput); err != nil {
			suggestion := suggestInsertion(producer.ResolvedOutput, consumer.ResolvedInput)
			return coreerrors.New(coreerrors.ConfigError,
				"%s->%s: %s; %s", e.From.NodeID, e.To.NodeID, err, suggestion,
			).WithEdge(e.From.NodeID, e.To.NodeID)
		}
	}
	return nil
}

// suggestInsertion produces an actionable message for a capability
// mismatch, e.g. "suggest inserting a resample node".
func suggestInsertion(producer, consumer Capability) string {
	if producer.Media == MediaAudio && consumer.Media == MediaAudio {
		return fmt.Sprintf("suggest inserting a resample node (%s -> %s)", producer.SampleRate, consumer.SampleRate)
	}
	return "suggest inserting an adapter node between producer and consumer"
}
