// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

package nodes

import (
	"context"
	"fmt"

	resampler "github.com/tphakala/go-audio-resampler"

	"github.com/remotemedia/core/internal/coreerrors"
	"github.com/remotemedia/core/internal/data"
	"github.com/remotemedia/core/internal/logging"
)

// ResampleParams configures a Resample node.
type ResampleParams struct {
	SourceRate uint32
	TargetRate uint32
	Quality    string // passed through to the underlying resampler, e.g. "best", "fast"
	Channels   uint32
}

// Resample accepts Audio at SourceRate and emits Audio at TargetRate. It
// streams variable-sized chunks rather than buffering a fixed window, so
// downstream nodes see audio as soon as it's resampled, trading uniform
// chunk size for lower latency.
type Resample struct {
	BaseNode

	logger logging.Logger
	params ResampleParams
	rs     *resampler.Resampler
}

// NewResample constructs a Resample node. The underlying resampler is
// created lazily in Initialize so construction never fails on a bad
// manifest before the session actually starts.
func NewResample(logger logging.Logger, params ResampleParams) *Resample {
	return &Resample{logger: logger, params: params}
}

func (r *Resample) Initialize(ctx context.Context) error {
	quality := resampler.QualityFast
	switch r.params.Quality {
	case "best":
		quality = resampler.QualityBest
	case "medium":
		quality = resampler.QualityMedium
	}

	rs, err := resampler.New(int(r.params.SourceRate), int(r.params.TargetRate), int(r.params.Channels), quality)
	if err != nil {
		return coreerrors.Wrap(coreerrors.ConfigError, err, "construct resampler %d->%d", r.params.SourceRate, r.params.TargetRate)
	}
	r.rs = rs
	return nil
}

func (r *Resample) Process(ctx context.Context, in data.RuntimeData) ([]data.RuntimeData, error) {
	audio, ok := in.(data.Audio)
	if !ok {
		return nil, coreerrors.New(coreerrors.InvalidData, "resample node received non-audio packet %T", in)
	}
	if audio.SampleRate != r.params.SourceRate {
		return nil, coreerrors.New(coreerrors.InvalidData,
			"resample node configured for source rate %d, got %d", r.params.SourceRate, audio.SampleRate).WithNode("resample")
	}

	out := r.rs.Resample(audio.Samples)
	if len(out) == 0 {
		return nil, nil
	}

	return []data.RuntimeData{data.Audio{
		Meta:         audio.Meta,
		Samples:      out,
		SampleRate:   r.params.TargetRate,
		ChannelCount: audio.ChannelCount,
	}}, nil
}

func (r *Resample) Shutdown(ctx context.Context) error {
	if r.rs != nil {
		r.rs.Close()
	}
	return nil
}

func (r *Resample) String() string {
	return fmt.Sprintf("resample(%d->%d)", r.params.SourceRate, r.params.TargetRate)
}
