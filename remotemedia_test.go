// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

package remotemedia

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remotemedia/core/internal/config"
	"github.com/remotemedia/core/internal/data"
	"github.com/remotemedia/core/internal/graph"
	"github.com/remotemedia/core/internal/logging"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxConcurrentSessions: 4,
		PerNodeQueueCapacity:  8,
		RouterOutputQueueCap:  8,
		ShmMaxPayloadBytes:    1 << 20,
		HealthProbeIntervalMs: 2000,
		HealthProbeTimeoutMs:  1000,
		ShutdownGraceMs:       200,
	}
}

func audioCapability(rate, channels uint32) graph.PortDecl {
	return graph.PortDecl{Kind: graph.DeclStatic, Capability: graph.Capability{
		Media:      graph.MediaAudio,
		SampleRate: graph.Exactly(rate),
		Channels:   graph.Exactly(channels),
	}}
}

func chunkerManifest(windowSamples int) Manifest {
	return Manifest{
		Nodes: []NodeSpec{
			{
				ID:             "chunk",
				TypeName:       "chunker",
				Params:         map[string]interface{}{"window_samples": windowSamples},
				CapabilityDecl: CapabilityDecl{Input: audioCapability(16000, 1), Output: audioCapability(16000, 1)},
			},
		},
	}
}

func TestExecuteUnaryRunsSingleNodePipeline(t *testing.T) {
	core := New(logging.NewFake(), testConfig())

	samples := make([]float32, 160)
	out, err := core.ExecuteUnary(context.Background(), chunkerManifest(160), data.Audio{
		Meta:         data.Meta{SessionID: "unary-1", TimestampUs: 1},
		Samples:      samples,
		SampleRate:   16000,
		ChannelCount: 1,
	})
	require.NoError(t, err)

	audioOut, ok := out.(data.Audio)
	require.True(t, ok)
	assert.Len(t, audioOut.Samples, 160)
}

func TestOpenStreamStreamsMultipleWindows(t *testing.T) {
	core := New(logging.NewFake(), testConfig())

	handle, err := core.OpenStream(context.Background(), chunkerManifest(80))
	require.NoError(t, err)
	defer handle.Terminate(context.Background())

	ctx := context.Background()
	require.NoError(t, handle.SendInput(ctx, data.Audio{
		Meta:         data.Meta{SessionID: "stream-1", TimestampUs: 1},
		Samples:      make([]float32, 160), // two full 80-sample windows
		SampleRate:   16000,
		ChannelCount: 1,
	}))

	for i := 0; i < 2; i++ {
		rctx, cancel := context.WithTimeout(ctx, time.Second)
		out, end, err := handle.RecvOutput(rctx)
		cancel()
		require.NoError(t, err)
		require.False(t, end)
		assert.Len(t, out.(data.Audio).Samples, 80)
	}
}

func TestOpenStreamRejectsUnknownNodeType(t *testing.T) {
	core := New(logging.NewFake(), testConfig())
	_, err := core.OpenStream(context.Background(), Manifest{
		Nodes: []NodeSpec{{ID: "a", TypeName: "not_a_real_node"}},
	})
	assert.Error(t, err)
}

func TestOpenStreamRejectsAtMaxConcurrentSessions(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentSessions = 1
	core := New(logging.NewFake(), cfg)

	h, err := core.OpenStream(context.Background(), chunkerManifest(80))
	require.NoError(t, err)
	defer h.Terminate(context.Background())

	_, err = core.OpenStream(context.Background(), chunkerManifest(80))
	assert.Error(t, err)
}
