// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

package graph

import (
	"testing"

	"github.com/remotemedia/core/internal/coreerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passthroughAudio(rate, channels uint32) PortDecl {
	return PortDecl{Kind: DeclStatic, Capability: Capability{
		Media:      MediaAudio,
		SampleRate: Exactly(rate),
		Channels:   Exactly(channels),
	}}
}

// TestGraphCycleRejected checks that a 2-node cycle (A->B, B->A) is
// rejected with ConfigError rather than silently accepted.
func TestGraphCycleRejected(t *testing.T) {
	m := Manifest{
		Nodes: []NodeSpec{
			{ID: "A", TypeName: "noop"},
			{ID: "B", TypeName: "noop"},
		},
		Edges: []EdgeSpec{
			{From: PortRef{NodeID: "A"}, To: PortRef{NodeID: "B"}},
			{From: PortRef{NodeID: "B"}, To: PortRef{NodeID: "A"}},
		},
	}

	_, err := Build(m)
	require.Error(t, err)
	assert.True(t, coreerrors.Is(err, coreerrors.ConfigError))
}

// TestCapabilityMismatchWithSuggestion checks a mic @ 48000 mono feeding a
// node that requires 16000 mono, with no intermediate resample node,
// produces an actionable suggestion rather than a bare mismatch error.
func TestCapabilityMismatchWithSuggestion(t *testing.T) {
	m := Manifest{
		Nodes: []NodeSpec{
			{ID: "mic", TypeName: "mic", CapabilityDecl: CapabilityDecl{
				Output: passthroughAudio(48000, 1),
			}},
			{ID: "whisper", TypeName: "whisper", CapabilityDecl: CapabilityDecl{
				Input: passthroughAudio(16000, 1),
			}},
		},
		Edges: []EdgeSpec{
			{From: PortRef{NodeID: "mic"}, To: PortRef{NodeID: "whisper"}},
		},
	}

	_, err := Build(m)
	require.Error(t, err)
	assert.True(t, coreerrors.Is(err, coreerrors.ConfigError))
	assert.Contains(t, err.Error(), "suggest inserting a resample node")
}

func TestValidManifestProducesLinearTopologicalOrder(t *testing.T) {
	m := Manifest{
		Nodes: []NodeSpec{
			{ID: "mic", TypeName: "mic", CapabilityDecl: CapabilityDecl{
				Output: passthroughAudio(16000, 1),
			}},
			{ID: "resample", TypeName: "resample", CapabilityDecl: CapabilityDecl{
				Input:  passthroughAudio(16000, 1),
				Output: passthroughAudio(16000, 1),
			}},
			{ID: "vad", TypeName: "vad", CapabilityDecl: CapabilityDecl{
				Input: passthroughAudio(16000, 1),
			}},
		},
		Edges: []EdgeSpec{
			{From: PortRef{NodeID: "mic"}, To: PortRef{NodeID: "resample"}},
			{From: PortRef{NodeID: "resample"}, To: PortRef{NodeID: "vad"}},
		},
	}

	g, err := Build(m)
	require.NoError(t, err)

	order := g.TopologicalOrder()
	assert.Equal(t, []string{"mic", "resample", "vad"}, order)
	assert.Equal(t, []string{"mic"}, g.Sources())
	assert.Equal(t, []string{"vad"}, g.Sinks())
}

func TestDanglingEdgeRejected(t *testing.T) {
	m := Manifest{
		Nodes: []NodeSpec{{ID: "A", TypeName: "noop"}},
		Edges: []EdgeSpec{{From: PortRef{NodeID: "A"}, To: PortRef{NodeID: "ghost"}}},
	}
	_, err := Build(m)
	require.Error(t, err)
	assert.True(t, coreerrors.Is(err, coreerrors.ConfigError))
}

func TestDuplicateNodeIDRejected(t *testing.T) {
	m := Manifest{
		Nodes: []NodeSpec{{ID: "A", TypeName: "noop"}, {ID: "A", TypeName: "noop"}},
	}
	_, err := Build(m)
	require.Error(t, err)
	assert.True(t, coreerrors.Is(err, coreerrors.ConfigError))
}

// TestAdaptiveOutputResolvedFromDownstream covers the reverse pass: a
// resample node with an unspecified target rate takes its output
// requirement from its sole downstream consumer.
func TestAdaptiveOutputResolvedFromDownstream(t *testing.T) {
	m := Manifest{
		Nodes: []NodeSpec{
			{ID: "mic", TypeName: "mic", CapabilityDecl: CapabilityDecl{
				Output: passthroughAudio(48000, 1),
			}},
			{ID: "resample", TypeName: "resample", CapabilityDecl: CapabilityDecl{
				Input:  passthroughAudio(48000, 1),
				Output: PortDecl{Kind: DeclAdaptive},
			}},
			{ID: "whisper", TypeName: "whisper", CapabilityDecl: CapabilityDecl{
				Input: passthroughAudio(16000, 1),
			}},
		},
		Edges: []EdgeSpec{
			{From: PortRef{NodeID: "mic"}, To: PortRef{NodeID: "resample"}},
			{From: PortRef{NodeID: "resample"}, To: PortRef{NodeID: "whisper"}},
		},
	}

	g, err := Build(m)
	require.NoError(t, err)

	out, ok := g.ResolvedOutputCapability("resample")
	require.True(t, ok)
	assert.Equal(t, uint32(16000), out.SampleRate.Exact)
}

func TestPredecessorsAndSuccessors(t *testing.T) {
	m := Manifest{
		Nodes: []NodeSpec{{ID: "A"}, {ID: "B"}, {ID: "C"}},
		Edges: []EdgeSpec{
			{From: PortRef{NodeID: "A"}, To: PortRef{NodeID: "B"}},
			{From: PortRef{NodeID: "A"}, To: PortRef{NodeID: "C"}},
		},
	}
	g, err := Build(m)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"B", "C"}, g.Successors("A"))
	assert.ElementsMatch(t, []string{"A"}, g.Predecessors("B"))
}
