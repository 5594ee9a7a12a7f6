// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

package nodes

import (
	"context"
	"testing"

	"github.com/remotemedia/core/internal/data"
	"github.com/remotemedia/core/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkerEmitsFixedWindows(t *testing.T) {
	c := NewChunker(logging.NewFake(), ChunkerParams{WindowSamples: 4})
	require.NoError(t, c.Initialize(context.Background()))

	out, err := c.Process(context.Background(), data.Audio{
		Meta:         data.Meta{SessionID: "s1", TimestampUs: 1000},
		Samples:      []float32{1, 2, 3},
		SampleRate:   16000,
		ChannelCount: 1,
	})
	require.NoError(t, err)
	assert.Empty(t, out, "not enough samples yet for a full window")

	out, err = c.Process(context.Background(), data.Audio{
		Meta:         data.Meta{SessionID: "s1", TimestampUs: 2000},
		Samples:      []float32{4, 5, 6, 7, 8},
		SampleRate:   16000,
		ChannelCount: 1,
	})
	require.NoError(t, err)
	require.Len(t, out, 2)

	first := out[0].(data.Audio)
	assert.Equal(t, []float32{1, 2, 3, 4}, first.Samples)

	second := out[1].(data.Audio)
	assert.Equal(t, []float32{5, 6, 7, 8}, second.Samples)
}

func TestChunkerRejectsNonAudio(t *testing.T) {
	c := NewChunker(logging.NewFake(), ChunkerParams{WindowSamples: 4})
	require.NoError(t, c.Initialize(context.Background()))

	_, err := c.Process(context.Background(), data.Text{Content: "oops"})
	require.Error(t, err)
}

func TestChunkerRejectsZeroWindow(t *testing.T) {
	c := NewChunker(logging.NewFake(), ChunkerParams{WindowSamples: 0})
	err := c.Initialize(context.Background())
	require.Error(t, err)
}
