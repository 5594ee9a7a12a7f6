// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

package nodes

import (
	"context"
	"time"

	silero "github.com/streamer45/silero-vad-go/speech"

	"github.com/remotemedia/core/internal/coreerrors"
	"github.com/remotemedia/core/internal/data"
	"github.com/remotemedia/core/internal/logging"
	"github.com/remotemedia/core/internal/metrics"
	"github.com/remotemedia/core/internal/speculative"
)

// SpeculativeGateParams configures the forward-then-confirm VAD gate node.
type SpeculativeGateParams struct {
	Gate      speculative.Params
	VAD       VADParams
	SessionID string

	// Metrics is this node's per-(session,node) counter set. Nil is
	// tolerated (counters are simply not recorded), so the node stays
	// usable in tests that construct it without a metrics.Registry.
	Metrics *metrics.NodeMetrics
}

// SpeculativeGate is the native node form of the speculative VAD gate: it
// forwards every audio chunk immediately and runs the confirmation VAD
// within the same Process call under a lookahead_ms deadline, so a
// CancelSpeculation for a segment is always appended to the output slice no
// earlier than the forwarded chunk that closes that segment.
type SpeculativeGate struct {
	BaseNode

	logger   logging.Logger
	params   SpeculativeGateParams
	gate     *speculative.Gate
	detector *silero.Detector

	stallSince  time.Time // zero when the confirmation path is keeping up
	stallLogged bool      // true once the current stall's warning has been logged
}

// NewSpeculativeGate constructs a SpeculativeGate node. The VAD model is
// loaded in Initialize.
func NewSpeculativeGate(logger logging.Logger, params SpeculativeGateParams) *SpeculativeGate {
	return &SpeculativeGate{logger: logger, params: params}
}

func (g *SpeculativeGate) Initialize(ctx context.Context) error {
	if g.params.VAD.SamplingRate != 16000 {
		return coreerrors.New(coreerrors.ConfigError, "speculative gate requires 16kHz input, configured for %d", g.params.VAD.SamplingRate)
	}
	d, err := silero.NewDetector(silero.DetectorConfig{
		ModelPath:  g.params.VAD.ModelPath,
		SampleRate: int(g.params.VAD.SamplingRate),
		Threshold:  g.params.VAD.Threshold,
	})
	if err != nil {
		return coreerrors.Wrap(coreerrors.ProcessError, err, "load silero VAD model %q for speculative gate", g.params.VAD.ModelPath)
	}
	g.detector = d
	g.gate = speculative.New(g.logger, g.params.SessionID, g.params.Gate)
	return nil
}

func (g *SpeculativeGate) Process(ctx context.Context, in data.RuntimeData) ([]data.RuntimeData, error) {
	audio, ok := in.(data.Audio)
	if !ok {
		return nil, coreerrors.New(coreerrors.InvalidData, "speculative gate received non-audio packet %T", in)
	}

	fwd := g.gate.Ingest(audio)
	out := []data.RuntimeData{fwd.Forward}

	speech, verdictReceived := g.detectWithDeadline(fwd.Confirm.Samples, fwd.SegmentID)
	if !verdictReceived {
		// Confirmation stalled past lookahead_ms. Per the gate's contract
		// this is never fatal: the forwarded chunk has already gone out, so
		// we simply skip folding a verdict this round and try again on the
		// next chunk rather than blocking or retracting speculatively.
		return out, nil
	}

	outcome := g.gate.OnVerdict(speculative.Verdict{SegmentID: fwd.SegmentID, Speech: speech, DurationMs: fwd.DurationMs})
	if g.params.Metrics != nil {
		if outcome.Confirmed {
			g.params.Metrics.SpeculationAccepted.Inc()
		}
		if outcome.Cancel != nil {
			g.params.Metrics.SpeculationCancelled.Inc()
		}
	}
	if outcome.Cancel != nil {
		out = append(out, *outcome.Cancel)
	}
	return out, nil
}

// detectWithDeadline runs the confirmation VAD with a lookahead_ms bound.
// ok is false when the detector didn't answer in time; the caller must
// treat that as "no verdict this round", not as silence or an error. A
// stall sustained past 10x lookahead_ms is logged (once, until it clears)
// but remains non-fatal — the gate keeps forwarding unconfirmed audio
// indefinitely rather than erroring the stream out.
func (g *SpeculativeGate) detectWithDeadline(samples []float32, segmentID string) (speech, ok bool) {
	lookahead := time.Duration(g.params.Gate.LookaheadMs) * time.Millisecond
	if lookahead <= 0 {
		lookahead = time.Duration(speculative.DefaultParams().LookaheadMs) * time.Millisecond
	}

	type result struct {
		speech bool
		err    error
	}
	done := make(chan result, 1)
	go func() {
		segments, err := g.detector.Detect(samples)
		done <- result{speech: len(segments) > 0, err: err}
	}()

	select {
	case r := <-done:
		g.stallSince = time.Time{}
		g.stallLogged = false
		if r.err != nil {
			g.logger.Warnw("confirmation VAD inference failed, treating as silence", "segment_id", segmentID, "error", r.err)
			return false, true
		}
		return r.speech, true
	case <-time.After(lookahead):
		if g.stallSince.IsZero() {
			g.stallSince = time.Now()
		} else if !g.stallLogged && time.Since(g.stallSince) > 10*lookahead {
			g.logger.Warnw("speculative gate confirmation path stalled past 10x lookahead_ms, still forwarding unconfirmed", "segment_id", segmentID, "stalled_for", time.Since(g.stallSince))
			g.stallLogged = true
		}
		return false, false
	}
}

func (g *SpeculativeGate) Shutdown(ctx context.Context) error {
	if g.detector != nil {
		g.detector.Reset()
		return g.detector.Destroy()
	}
	return nil
}
