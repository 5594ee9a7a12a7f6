// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

package nodes

import (
	"context"

	silero "github.com/streamer45/silero-vad-go/speech"

	"github.com/remotemedia/core/internal/coreerrors"
	"github.com/remotemedia/core/internal/data"
	"github.com/remotemedia/core/internal/logging"
)

// VADParams configures the Silero VAD node.
type VADParams struct {
	Threshold    float32
	SamplingRate uint32 // must be 16000
	ModelPath    string
}

// DefaultVADParams returns the spec-default threshold/sampling rate.
func DefaultVADParams(modelPath string) VADParams {
	return VADParams{Threshold: 0.5, SamplingRate: 16000, ModelPath: modelPath}
}

// VAD wraps Silero VAD inference. It accepts Audio @ 16 kHz mono and emits
// either a pass-through Audio frame (speech detected) or no output
// (silence). It is the confirmation path the speculative gate (internal
// package speculative) forks audio into; on its own it makes no forwarding
// decision about audio that hasn't already been forwarded by the gate.
type VAD struct {
	BaseNode

	logger   logging.Logger
	params   VADParams
	detector *silero.Detector
}

// NewVAD constructs a VAD node. Model loading happens in Initialize.
func NewVAD(logger logging.Logger, params VADParams) *VAD {
	return &VAD{logger: logger, params: params}
}

func (v *VAD) Initialize(ctx context.Context) error {
	if v.params.SamplingRate != 16000 {
		return coreerrors.New(coreerrors.ConfigError, "silero VAD requires 16kHz input, configured for %d", v.params.SamplingRate)
	}

	d, err := silero.NewDetector(silero.DetectorConfig{
		ModelPath:  v.params.ModelPath,
		SampleRate: int(v.params.SamplingRate),
		Threshold:  v.params.Threshold,
	})
	if err != nil {
		return coreerrors.Wrap(coreerrors.ProcessError, err, "load silero VAD model %q", v.params.ModelPath)
	}
	v.detector = d
	return nil
}

func (v *VAD) Process(ctx context.Context, in data.RuntimeData) ([]data.RuntimeData, error) {
	audio, ok := in.(data.Audio)
	if !ok {
		return nil, coreerrors.New(coreerrors.InvalidData, "VAD node received non-audio packet %T", in)
	}
	if audio.SampleRate != v.params.SamplingRate || audio.ChannelCount != 1 {
		return nil, coreerrors.New(coreerrors.InvalidData,
			"VAD node requires %dHz mono, got %dHz/%d channels", v.params.SamplingRate, audio.SampleRate, audio.ChannelCount).WithNode("vad")
	}

	segments, err := v.detector.Detect(audio.Samples)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.Execution, err, "silero inference")
	}
	if len(segments) == 0 {
		return nil, nil
	}

	return []data.RuntimeData{audio}, nil
}

func (v *VAD) Shutdown(ctx context.Context) error {
	if v.detector != nil {
		v.detector.Reset()
		return v.detector.Destroy()
	}
	return nil
}
