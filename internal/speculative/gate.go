// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

// Package speculative implements the forward-then-confirm VAD gate: audio
// is forwarded downstream the instant it arrives, while a copy is forked to
// a VAD node for confirmation. If the VAD later disagrees, a
// CancelSpeculation control message retracts the segment instead of
// blocking the live path on inference latency.
package speculative

import (
	"sync"

	"github.com/google/uuid"

	"github.com/remotemedia/core/internal/data"
	"github.com/remotemedia/core/internal/logging"
)

// Params configures the gate's segment bookkeeping.
type Params struct {
	LookbackMs   uint32 // audio retained for padding a confirmed segment's start
	LookaheadMs  uint32 // how long to wait for a VAD verdict before treating its absence as "keep forwarding"
	MinSpeechMs  uint32 // consecutive speech duration required to confirm a segment (a silent verdict resets it)
	MinSilenceMs uint32 // consecutive silence duration required to close a segment (a speech verdict resets it)
	PadMs        uint32 // backdate a confirmed segment's start by this much, bounded by the ring buffer
}

// DefaultParams returns conservative defaults for 20ms audio frames.
func DefaultParams() Params {
	return Params{LookbackMs: 150, LookaheadMs: 50, MinSpeechMs: 200, MinSilenceMs: 300, PadMs: 150}
}

type segmentState struct {
	id           string
	startTsUs    uint64
	endTsUs      uint64
	confirmed    bool
	speechRunMs  uint32
	silenceRunMs uint32
}

// Gate tracks at most one open segment at a time for a single session's
// audio track. It is not safe for concurrent use from multiple goroutines
// without external synchronization beyond what Ingest/OnVerdict provide
// internally.
type Gate struct {
	mu     sync.Mutex
	params Params
	ring   *RingBuffer
	logger logging.Logger

	sessionID string
	open      *segmentState
}

// New constructs a Gate for one session's speculative audio track.
func New(logger logging.Logger, sessionID string, params Params) *Gate {
	return &Gate{
		params:    params,
		ring:      NewRingBuffer(params.LookbackMs),
		logger:    logger,
		sessionID: sessionID,
	}
}

// Forwarded is what Ingest hands back to the caller: the chunk to forward
// immediately downstream, a copy to route to the confirmation VAD node, and
// the segment ID the VAD verdict for this chunk must be reported against.
type Forwarded struct {
	Forward    data.Audio
	Confirm    data.Audio
	SegmentID  string
	DurationMs uint32
}

// Ingest retains the chunk in the lookback ring, opens a new segment if
// none is open, and returns the forward/confirm fork. The caller forwards
// Forward immediately and routes Confirm to the VAD node, later reporting
// the verdict via OnVerdict.
func (g *Gate) Ingest(chunk data.Audio) Forwarded {
	g.mu.Lock()
	defer g.mu.Unlock()

	durationMs := audioDurationMs(chunk)
	startTs := chunk.Meta.TimestampUs
	endTs := startTs + uint64(durationMs)*1000

	g.ring.Append(startTs, endTs, chunk.Samples)

	if g.open == nil {
		g.open = &segmentState{id: uuid.NewString(), startTsUs: startTs, endTsUs: endTs}
		g.logger.Debugw("speculative segment opened", "session_id", g.sessionID, "segment_id", g.open.id, "start_ts_us", startTs)
	} else {
		g.open.endTsUs = endTs
	}

	confirmCopy := chunk
	confirmCopy.Samples = append([]float32(nil), chunk.Samples...)

	return Forwarded{
		Forward:    chunk,
		Confirm:    confirmCopy,
		SegmentID:  g.open.id,
		DurationMs: durationMs,
	}
}

// Verdict carries the confirmation VAD's judgement about one chunk.
type Verdict struct {
	SegmentID  string
	Speech     bool
	DurationMs uint32
}

// Outcome reports what a Verdict changed about the open segment: Confirmed
// is true exactly on the call that crosses the speech threshold, and
// Cancel is non-nil exactly on the call that closes an unconfirmed segment.
// The two are mutually exclusive and both default to their zero value when
// a verdict changes nothing (e.g. a stale verdict, or a verdict that
// extends a run without crossing a threshold).
type Outcome struct {
	Confirmed bool
	Cancel    *data.Control
}

// OnVerdict folds a VAD verdict into the segment's running speech/silence
// tallies. Closing a confirmed segment, or a verdict for a segment that has
// already closed, produces a zero Outcome.
func (g *Gate) OnVerdict(v Verdict) Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.open == nil || g.open.id != v.SegmentID {
		return Outcome{} // stale verdict for an already-closed segment
	}
	seg := g.open

	if v.Speech {
		seg.speechRunMs += v.DurationMs
		seg.silenceRunMs = 0
		if !seg.confirmed && seg.speechRunMs >= g.params.MinSpeechMs {
			seg.confirmed = true
			seg.startTsUs = g.padStart(seg.startTsUs)
			g.logger.Debugw("speculative segment confirmed", "session_id", g.sessionID, "segment_id", seg.id)
			return Outcome{Confirmed: true}
		}
		return Outcome{}
	}

	seg.speechRunMs = 0
	seg.silenceRunMs += v.DurationMs
	if seg.silenceRunMs < g.params.MinSilenceMs {
		return Outcome{}
	}

	// Sustained silence closes the segment.
	g.open = nil
	if seg.confirmed {
		return Outcome{}
	}

	g.logger.Debugw("speculative segment cancelled", "session_id", g.sessionID, "segment_id", seg.id, "start_ts_us", seg.startTsUs, "end_ts_us", seg.endTsUs)
	cancel := data.NewCancelSpeculation(g.sessionID, seg.id, seg.startTsUs, seg.endTsUs, seg.endTsUs)
	return Outcome{Cancel: &cancel}
}

// padStart backdates a confirmed segment's start by PadMs, bounded by what
// the lookback ring still retains.
func (g *Gate) padStart(startTsUs uint64) uint64 {
	padUs := uint64(g.params.PadMs) * 1000
	if padUs == 0 {
		return startTsUs
	}
	floor, ok := g.ring.OldestTimestamp()
	if !ok {
		return startTsUs
	}
	if startTsUs < padUs {
		return floor
	}
	padded := startTsUs - padUs
	if padded < floor {
		return floor
	}
	return padded
}

func audioDurationMs(a data.Audio) uint32 {
	if a.SampleRate == 0 || a.ChannelCount == 0 {
		return 0
	}
	frames := uint32(len(a.Samples)) / a.ChannelCount
	return frames * 1000 / a.SampleRate
}
