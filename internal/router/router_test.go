// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/remotemedia/core/internal/data"
	"github.com/remotemedia/core/internal/graph"
	"github.com/remotemedia/core/internal/logging"
	"github.com/remotemedia/core/internal/metrics"
	"github.com/remotemedia/core/internal/nodes"
	"github.com/remotemedia/core/internal/session"
)

// echoNode passes input straight through, optionally uppercasing nothing —
// it exists purely to exercise routing, not node logic.
type echoNode struct {
	nodes.BaseNode
}

func (echoNode) Initialize(ctx context.Context) error { return nil }
func (echoNode) Process(ctx context.Context, in data.RuntimeData) ([]data.RuntimeData, error) {
	return []data.RuntimeData{in}, nil
}

func linearGraph(t *testing.T) *graph.Graph {
	t.Helper()
	textCap := graph.PortDecl{Kind: graph.DeclStatic, Capability: graph.Capability{Media: graph.MediaText}}
	m := graph.Manifest{
		Nodes: []graph.NodeSpec{
			{ID: "A", TypeName: "echo", CapabilityDecl: graph.CapabilityDecl{Input: textCap, Output: textCap}},
			{ID: "B", TypeName: "echo", CapabilityDecl: graph.CapabilityDecl{Input: textCap, Output: textCap}},
		},
		Edges: []graph.EdgeSpec{
			{From: graph.PortRef{NodeID: "A"}, To: graph.PortRef{NodeID: "B"}},
		},
	}
	g, err := graph.Build(m)
	require.NoError(t, err)
	return g
}

func TestRouterDeliversSourceToSinkInOrder(t *testing.T) {
	g := linearGraph(t)
	sess := session.New("sess-1", g)

	clientRx := make(chan data.RuntimeData, 4)
	clientTx := make(chan data.RuntimeData, 4)

	native := map[string]nodes.Node{
		"A": echoNode{},
		"B": echoNode{},
	}

	r := New(logging.NewFake(), DefaultConfig(), metrics.NewRegistry(), sess, clientRx, clientTx, native, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- r.Run(ctx) }()

	clientRx <- data.Text{Meta: data.Meta{SessionID: "sess-1", TimestampUs: 1}, Content: "first"}
	clientRx <- data.Text{Meta: data.Meta{SessionID: "sess-1", TimestampUs: 2}, Content: "second"}

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case out := <-clientTx:
			got = append(got, out.(data.Text).Content)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for sink output")
		}
	}
	require.Equal(t, []string{"first", "second"}, got)

	r.Shutdown(context.Background())
	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("router did not shut down in time")
	}
}
