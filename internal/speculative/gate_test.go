// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

package speculative

import (
	"testing"

	"github.com/remotemedia/core/internal/data"
	"github.com/remotemedia/core/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunk20ms(sessionID string, startUs uint64) data.Audio {
	return data.Audio{
		Meta:         data.Meta{SessionID: sessionID, TimestampUs: startUs},
		Samples:      make([]float32, 320), // 20ms @ 16kHz mono
		SampleRate:   16000,
		ChannelCount: 1,
	}
}

func TestIngestForwardsImmediatelyAndOpensSegment(t *testing.T) {
	g := New(logging.NewFake(), "sess-1", DefaultParams())

	fwd := g.Ingest(chunk20ms("sess-1", 0))
	assert.NotEmpty(t, fwd.SegmentID)
	assert.Equal(t, uint32(20), fwd.DurationMs)
	assert.Equal(t, fwd.Forward.Samples, fwd.Confirm.Samples)

	fwd2 := g.Ingest(chunk20ms("sess-1", 20000))
	assert.Equal(t, fwd.SegmentID, fwd2.SegmentID, "second chunk should belong to the same open segment")
}

func TestFalsePositiveCancelsAfterSustainedSilence(t *testing.T) {
	p := DefaultParams()
	p.MinSilenceMs = 40
	g := New(logging.NewFake(), "sess-1", p)

	fwd := g.Ingest(chunk20ms("sess-1", 0))
	require.NotNil(t, fwd.SegmentID)

	out := g.OnVerdict(Verdict{SegmentID: fwd.SegmentID, Speech: false, DurationMs: 20})
	assert.Nil(t, out.Cancel, "one silent chunk shouldn't close the segment yet")
	assert.False(t, out.Confirmed)

	out = g.OnVerdict(Verdict{SegmentID: fwd.SegmentID, Speech: false, DurationMs: 20})
	require.NotNil(t, out.Cancel, "sustained silence should cancel the unconfirmed segment")
	assert.Equal(t, data.KindCancelSpeculation, out.Cancel.Kind)
	assert.Equal(t, fwd.SegmentID, out.Cancel.SegmentID)
	assert.False(t, out.Confirmed)
}

func TestTruePositiveConfirmsAndNeverCancels(t *testing.T) {
	p := DefaultParams()
	p.MinSpeechMs = 40
	p.MinSilenceMs = 40
	g := New(logging.NewFake(), "sess-1", p)

	fwd := g.Ingest(chunk20ms("sess-1", 0))

	out := g.OnVerdict(Verdict{SegmentID: fwd.SegmentID, Speech: true, DurationMs: 20})
	assert.Nil(t, out.Cancel)
	assert.False(t, out.Confirmed, "speech threshold not reached yet")

	out = g.OnVerdict(Verdict{SegmentID: fwd.SegmentID, Speech: true, DurationMs: 20})
	assert.Nil(t, out.Cancel, "confirmation threshold reached, still no cancel")
	assert.True(t, out.Confirmed, "crossing min_speech_ms confirms exactly once")

	// Segment is now confirmed; subsequent silence closes it without a cancel
	// or another confirmation.
	out = g.OnVerdict(Verdict{SegmentID: fwd.SegmentID, Speech: false, DurationMs: 20})
	assert.Nil(t, out.Cancel)
	assert.False(t, out.Confirmed)
	out = g.OnVerdict(Verdict{SegmentID: fwd.SegmentID, Speech: false, DurationMs: 20})
	assert.Nil(t, out.Cancel, "confirmed segments close silently, no retraction")
	assert.False(t, out.Confirmed)
}

func TestStaleVerdictForClosedSegmentIsNoop(t *testing.T) {
	p := DefaultParams()
	p.MinSilenceMs = 20
	g := New(logging.NewFake(), "sess-1", p)

	fwd := g.Ingest(chunk20ms("sess-1", 0))
	out := g.OnVerdict(Verdict{SegmentID: fwd.SegmentID, Speech: false, DurationMs: 20})
	require.NotNil(t, out.Cancel)

	// A late verdict for the now-closed segment must not panic or reopen it.
	out = g.OnVerdict(Verdict{SegmentID: fwd.SegmentID, Speech: false, DurationMs: 20})
	assert.Nil(t, out.Cancel)
	assert.False(t, out.Confirmed)
}

func TestNewSegmentOpensAfterPriorOneCloses(t *testing.T) {
	p := DefaultParams()
	p.MinSilenceMs = 20
	g := New(logging.NewFake(), "sess-1", p)

	first := g.Ingest(chunk20ms("sess-1", 0))
	g.OnVerdict(Verdict{SegmentID: first.SegmentID, Speech: false, DurationMs: 20})

	second := g.Ingest(chunk20ms("sess-1", 20000))
	assert.NotEqual(t, first.SegmentID, second.SegmentID)
}

func TestPadStartBoundedByRingBuffer(t *testing.T) {
	p := DefaultParams()
	p.LookbackMs = 40
	p.PadMs = 1000 // far larger than what's retained
	p.MinSpeechMs = 20
	g := New(logging.NewFake(), "sess-1", p)

	fwd := g.Ingest(chunk20ms("sess-1", 100000))
	out := g.OnVerdict(Verdict{SegmentID: fwd.SegmentID, Speech: true, DurationMs: 20})
	assert.Nil(t, out.Cancel)
	assert.True(t, out.Confirmed)
	// No assertion on internal start_ts directly; this just exercises the
	// bounded-padding path without panicking on an empty/short ring.
}
