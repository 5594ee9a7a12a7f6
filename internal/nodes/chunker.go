// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

package nodes

import (
	"context"

	"github.com/remotemedia/core/internal/coreerrors"
	"github.com/remotemedia/core/internal/data"
	"github.com/remotemedia/core/internal/logging"
)

// ChunkerParams configures the Chunker node.
type ChunkerParams struct {
	WindowSamples uint32 // fixed-size accumulation window, in samples
}

// Chunker buffers Audio to fixed-size windows, emitting a complete window
// as soon as enough samples have accumulated. Unlike Resample it never
// changes the sample rate or channel count — it only reshapes chunk
// boundaries.
type Chunker struct {
	BaseNode

	logger logging.Logger
	params ChunkerParams
	buf    []float32
	meta   data.Meta
	rate   uint32
	chans  uint32
	seeded bool
}

// NewChunker constructs a Chunker node.
func NewChunker(logger logging.Logger, params ChunkerParams) *Chunker {
	return &Chunker{logger: logger, params: params}
}

func (c *Chunker) Initialize(ctx context.Context) error {
	if c.params.WindowSamples == 0 {
		return coreerrors.New(coreerrors.ConfigError, "chunker window_samples must be > 0")
	}
	c.buf = make([]float32, 0, c.params.WindowSamples)
	return nil
}

func (c *Chunker) Process(ctx context.Context, in data.RuntimeData) ([]data.RuntimeData, error) {
	audio, ok := in.(data.Audio)
	if !ok {
		return nil, coreerrors.New(coreerrors.InvalidData, "chunker node received non-audio packet %T", in)
	}
	if !c.seeded {
		c.rate = audio.SampleRate
		c.chans = audio.ChannelCount
		c.seeded = true
	} else if audio.SampleRate != c.rate || audio.ChannelCount != c.chans {
		return nil, coreerrors.New(coreerrors.InvalidData, "chunker received inconsistent audio format mid-stream").WithNode("chunker")
	}

	c.meta = audio.Meta
	c.buf = append(c.buf, audio.Samples...)

	var out []data.RuntimeData
	for uint32(len(c.buf)) >= c.params.WindowSamples {
		window := append([]float32(nil), c.buf[:c.params.WindowSamples]...)
		c.buf = c.buf[c.params.WindowSamples:]
		out = append(out, data.Audio{
			Meta:         c.meta,
			Samples:      window,
			SampleRate:   c.rate,
			ChannelCount: c.chans,
		})
	}
	return out, nil
}
