// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

package nodes

import (
	"github.com/remotemedia/core/internal/coreerrors"
	"github.com/remotemedia/core/internal/logging"
	"github.com/remotemedia/core/internal/metrics"
	"github.com/remotemedia/core/internal/speculative"
)

// TypeName identifies a native node implementation, resolved from a
// manifest's node.type_name field.
type TypeName string

const (
	TypeResample TypeName = "resample"
	TypeVAD      TypeName = "vad"
	TypeChunker  TypeName = "chunker"
	TypeGate     TypeName = "speculative_gate"
)

// Factory builds a Node from manifest params. Registered per TypeName: a
// typed name resolves to a constructor without the core needing to know
// about manifest parsing. nodeID and m let a node instrument its own
// per-(session,node) counters; most node types ignore both.
type Factory func(logger logging.Logger, nodeID string, params map[string]interface{}, m *metrics.Registry) (Node, error)

var registry = map[TypeName]Factory{
	TypeResample: func(logger logging.Logger, nodeID string, params map[string]interface{}, m *metrics.Registry) (Node, error) {
		p := ResampleParams{
			SourceRate: uintParam(params, "source_rate", 0),
			TargetRate: uintParam(params, "target_rate", 0),
			Channels:   uintParam(params, "channels", 1),
			Quality:    stringParam(params, "quality", "fast"),
		}
		if p.SourceRate == 0 || p.TargetRate == 0 {
			return nil, coreerrors.New(coreerrors.ConfigError, "resample node requires source_rate and target_rate params")
		}
		return NewResample(logger, p), nil
	},
	TypeVAD: func(logger logging.Logger, nodeID string, params map[string]interface{}, m *metrics.Registry) (Node, error) {
		p := VADParams{
			Threshold:    float32Param(params, "threshold", 0.5),
			SamplingRate: uintParam(params, "sampling_rate", 16000),
			ModelPath:    stringParam(params, "model_path", ""),
		}
		if p.ModelPath == "" {
			return nil, coreerrors.New(coreerrors.ConfigError, "vad node requires model_path param")
		}
		return NewVAD(logger, p), nil
	},
	TypeChunker: func(logger logging.Logger, nodeID string, params map[string]interface{}, m *metrics.Registry) (Node, error) {
		p := ChunkerParams{WindowSamples: uintParam(params, "window_samples", 0)}
		return NewChunker(logger, p), nil
	},
	TypeGate: func(logger logging.Logger, nodeID string, params map[string]interface{}, m *metrics.Registry) (Node, error) {
		sessionID := stringParam(params, "session_id", "")
		if sessionID == "" {
			return nil, coreerrors.New(coreerrors.ConfigError, "speculative_gate node requires session_id param")
		}
		modelPath := stringParam(params, "model_path", "")
		if modelPath == "" {
			return nil, coreerrors.New(coreerrors.ConfigError, "speculative_gate node requires model_path param")
		}
		p := SpeculativeGateParams{
			SessionID: sessionID,
			VAD:       VADParams{Threshold: float32Param(params, "vad_threshold", 0.5), SamplingRate: uintParam(params, "sampling_rate", 16000), ModelPath: modelPath},
			Gate: speculative.Params{
				LookbackMs:   uintParam(params, "lookback_ms", 150),
				LookaheadMs:  uintParam(params, "lookahead_ms", 50),
				MinSpeechMs:  uintParam(params, "min_speech_ms", 200),
				MinSilenceMs: uintParam(params, "min_silence_ms", 300),
				PadMs:        uintParam(params, "pad_ms", 150),
			},
		}
		if m != nil {
			p.Metrics = m.Node(sessionID, nodeID)
		}
		return NewSpeculativeGate(logger, p), nil
	},
}

// Get resolves a native node by its manifest type_name.
func Get(logger logging.Logger, nodeID, typeName string, params map[string]interface{}, m *metrics.Registry) (Node, error) {
	factory, ok := registry[TypeName(typeName)]
	if !ok {
		return nil, coreerrors.New(coreerrors.ConfigError, "unknown native node type %q", typeName)
	}
	return factory(logger, nodeID, params, m)
}

func uintParam(params map[string]interface{}, key string, fallback uint32) uint32 {
	v, ok := params[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case int:
		return uint32(n)
	case int64:
		return uint32(n)
	case float64:
		return uint32(n)
	case uint32:
		return n
	default:
		return fallback
	}
}

func float32Param(params map[string]interface{}, key string, fallback float32) float32 {
	v, ok := params[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float32:
		return n
	case float64:
		return float32(n)
	default:
		return fallback
	}
}

func stringParam(params map[string]interface{}, key, fallback string) string {
	v, ok := params[key]
	if !ok {
		return fallback
	}
	s, ok := v.(string)
	if !ok {
		return fallback
	}
	return s
}
