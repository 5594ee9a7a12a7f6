// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

// Package data implements the RuntimeData tagged-variant packet model: the
// universal packet type that flows through the pipeline graph, plus its
// compact binary encoding for the IPC boundary.
package data

// Variant identifies which payload a RuntimeData packet carries.
type Variant uint8

const (
	VariantAudio Variant = iota + 1
	VariantVideo
	VariantText
	VariantTensor
	VariantControl
)

func (v Variant) String() string {
	switch v {
	case VariantAudio:
		return "audio"
	case VariantVideo:
		return "video"
	case VariantText:
		return "text"
	case VariantTensor:
		return "tensor"
	case VariantControl:
		return "control"
	default:
		return "unknown"
	}
}

// Meta holds the fields every RuntimeData variant carries.
type Meta struct {
	SessionID   string
	TimestampUs uint64
}

// Audio carries raw PCM samples at a declared rate/channel count.
type Audio struct {
	Meta
	Samples      []float32
	SampleRate   uint32
	ChannelCount uint32
}

// Video carries raw pixel data.
type Video struct {
	Meta
	Pixels      []byte
	Width       uint32
	Height      uint32
	PixelFormat string
}

// Text carries decoded text content.
type Text struct {
	Meta
	Content string
}

// Tensor carries an arbitrary n-dimensional buffer for model I/O (e.g. LLM
// hidden states, embeddings) that isn't naturally audio/video/text.
type Tensor struct {
	Meta
	Buffer []byte
	Shape  []uint32
	Dtype  string
}

// ControlMessageKind distinguishes the advisory/corrective control variants.
type ControlMessageKind string

const (
	KindCancelSpeculation ControlMessageKind = "cancel_speculation"
	KindBatchHint         ControlMessageKind = "batch_hint"
	KindDeadlineWarning   ControlMessageKind = "deadline_warning"
)

// Control carries an advisory or corrective signal alongside a SegmentID
// that lets recipients correlate it with prior data-plane packets.
type Control struct {
	Meta
	Kind      ControlMessageKind
	SegmentID string

	// CancelSpeculation fields.
	FromTsUs uint64
	ToTsUs   uint64

	// BatchHint fields.
	SuggestedBatch uint32

	// DeadlineWarning fields.
	DeadlineUs uint64
}

// RuntimeData is implemented by Audio, Video, Text, Tensor, and Control. It
// exposes only the fields every variant must carry so routing code never
// needs a type switch to enforce the session/timestamp invariants every
// packet carries.
type RuntimeData interface {
	Variant() Variant
	Session() string
	TimestampUs() uint64
}

func (a Audio) Variant() Variant    { return VariantAudio }
func (a Audio) Session() string     { return a.SessionID }
func (a Audio) TimestampUs() uint64 { return a.Meta.TimestampUs }

func (v Video) Variant() Variant    { return VariantVideo }
func (v Video) Session() string     { return v.SessionID }
func (v Video) TimestampUs() uint64 { return v.Meta.TimestampUs }

func (t Text) Variant() Variant    { return VariantText }
func (t Text) Session() string     { return t.SessionID }
func (t Text) TimestampUs() uint64 { return t.Meta.TimestampUs }

func (t Tensor) Variant() Variant    { return VariantTensor }
func (t Tensor) Session() string     { return t.SessionID }
func (t Tensor) TimestampUs() uint64 { return t.Meta.TimestampUs }

func (c Control) Variant() Variant    { return VariantControl }
func (c Control) Session() string     { return c.SessionID }
func (c Control) TimestampUs() uint64 { return c.Meta.TimestampUs }

// NewCancelSpeculation builds a Control packet cancelling a speculative
// segment over [fromTsUs, toTsUs).
func NewCancelSpeculation(sessionID, segmentID string, fromTsUs, toTsUs, nowUs uint64) Control {
	return Control{
		Meta:      Meta{SessionID: sessionID, TimestampUs: nowUs},
		Kind:      KindCancelSpeculation,
		SegmentID: segmentID,
		FromTsUs:  fromTsUs,
		ToTsUs:    toTsUs,
	}
}

// NewDeadlineWarning builds an advisory Control packet.
func NewDeadlineWarning(sessionID string, deadlineUs, nowUs uint64) Control {
	return Control{
		Meta:       Meta{SessionID: sessionID, TimestampUs: nowUs},
		Kind:       KindDeadlineWarning,
		DeadlineUs: deadlineUs,
	}
}
