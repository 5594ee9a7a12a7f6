// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

package data

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/remotemedia/core/internal/coreerrors"
)

// DefaultMaxPayloadBytes is the default ceiling on a decoded payload
// (shm_max_payload_bytes): decoders are free to reject frames larger than
// a configured maximum rather than allocate unbounded buffers.
const DefaultMaxPayloadBytes = 16 * 1024 * 1024

// tag values for the wire format. Only the four payload-carrying variants
// plus Control are encodable; Control's payload is its own small fixed
// layout (see encodeControlPayload).
const (
	tagAudio   byte = 1
	tagVideo   byte = 2
	tagText    byte = 3
	tagTensor  byte = 4
	tagControl byte = 5
)

// Encode serialises a RuntimeData packet using a fixed little-endian
// layout:
//
//	byte  0:     variant tag
//	bytes 1..3:  session_id length N (u16 LE)
//	bytes 3..3+N:session_id (UTF-8)
//	next 8:      timestamp_us (u64 LE)
//	next 4:      payload length P (u32 LE)
//	next P:      payload (variant-specific)
func Encode(v RuntimeData) ([]byte, error) {
	sessionID := v.Session()
	if !utf8.ValidString(sessionID) {
		return nil, coreerrors.New(coreerrors.InvalidData, "session_id is not valid UTF-8")
	}
	if len(sessionID) > 0xFFFF {
		return nil, coreerrors.New(coreerrors.InvalidData, "session_id exceeds %d bytes", 0xFFFF)
	}

	var tag byte
	var payload []byte
	var err error

	switch p := v.(type) {
	case Audio:
		tag = tagAudio
		payload = encodeAudioPayload(p)
	case Video:
		tag = tagVideo
		payload = encodeVideoPayload(p)
	case Text:
		tag = tagText
		if !utf8.ValidString(p.Content) {
			return nil, coreerrors.New(coreerrors.InvalidData, "text content is not valid UTF-8")
		}
		payload = []byte(p.Content)
	case Tensor:
		tag = tagTensor
		payload = encodeTensorPayload(p)
	case Control:
		tag = tagControl
		payload, err = encodeControlPayload(p)
		if err != nil {
			return nil, err
		}
	default:
		return nil, coreerrors.New(coreerrors.InvalidData, "unknown runtime data variant %T", v)
	}

	buf := make([]byte, 0, 1+2+len(sessionID)+8+4+len(payload))
	buf = append(buf, tag)

	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(sessionID)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, sessionID...)

	var tsBuf [8]byte
	binary.LittleEndian.PutUint64(tsBuf[:], v.TimestampUs())
	buf = append(buf, tsBuf[:]...)

	var pLenBuf [4]byte
	binary.LittleEndian.PutUint32(pLenBuf[:], uint32(len(payload)))
	buf = append(buf, pLenBuf[:]...)
	buf = append(buf, payload...)

	return buf, nil
}

// Decode parses a frame produced by Encode. maxPayloadBytes <= 0 disables
// the payload-size ceiling (not recommended outside tests).
func Decode(frame []byte, maxPayloadBytes int) (RuntimeData, error) {
	if len(frame) < 1+2 {
		return nil, coreerrors.New(coreerrors.InvalidData, "truncated header: need at least 3 bytes, got %d", len(frame))
	}
	tag := frame[0]
	off := 1

	sessionLen := int(binary.LittleEndian.Uint16(frame[off : off+2]))
	off += 2
	if len(frame) < off+sessionLen+8+4 {
		return nil, coreerrors.New(coreerrors.InvalidData, "truncated header: session/timestamp/length fields incomplete")
	}
	sessionID := string(frame[off : off+sessionLen])
	if !utf8.ValidString(sessionID) {
		return nil, coreerrors.New(coreerrors.InvalidData, "non-UTF-8 session_id")
	}
	off += sessionLen

	tsUs := binary.LittleEndian.Uint64(frame[off : off+8])
	off += 8

	payloadLen := int(binary.LittleEndian.Uint32(frame[off : off+4]))
	off += 4
	if payloadLen < 0 {
		return nil, coreerrors.New(coreerrors.InvalidData, "negative payload length")
	}
	if maxPayloadBytes > 0 && payloadLen > maxPayloadBytes {
		return nil, coreerrors.New(coreerrors.InvalidData, "payload length %d exceeds maximum %d", payloadLen, maxPayloadBytes)
	}
	if len(frame) != off+payloadLen {
		return nil, coreerrors.New(coreerrors.InvalidData, "payload length mismatch: header says %d, frame has %d remaining bytes", payloadLen, len(frame)-off)
	}
	payload := frame[off : off+payloadLen]
	meta := Meta{SessionID: sessionID, TimestampUs: tsUs}

	switch tag {
	case tagAudio:
		return decodeAudioPayload(meta, payload)
	case tagVideo:
		return decodeVideoPayload(meta, payload)
	case tagText:
		if !utf8.Valid(payload) {
			return nil, coreerrors.New(coreerrors.InvalidData, "non-UTF-8 text payload")
		}
		return Text{Meta: meta, Content: string(payload)}, nil
	case tagTensor:
		return decodeTensorPayload(meta, payload)
	case tagControl:
		return decodeControlPayload(meta, payload)
	default:
		return nil, coreerrors.New(coreerrors.InvalidData, "unknown variant tag %d", tag)
	}
}

// --- Audio: sample_rate(u32) channel_count(u32) then f32 LE samples ---

func encodeAudioPayload(a Audio) []byte {
	buf := make([]byte, 8+4*len(a.Samples))
	binary.LittleEndian.PutUint32(buf[0:4], a.SampleRate)
	binary.LittleEndian.PutUint32(buf[4:8], a.ChannelCount)
	for i, s := range a.Samples {
		binary.LittleEndian.PutUint32(buf[8+4*i:12+4*i], float32bits(s))
	}
	return buf
}

func decodeAudioPayload(meta Meta, payload []byte) (RuntimeData, error) {
	if len(payload) < 8 {
		return nil, coreerrors.New(coreerrors.InvalidData, "audio payload too short for header")
	}
	sr := binary.LittleEndian.Uint32(payload[0:4])
	ch := binary.LittleEndian.Uint32(payload[4:8])
	rest := payload[8:]
	if len(rest)%4 != 0 {
		return nil, coreerrors.New(coreerrors.InvalidData, "audio sample payload not a multiple of 4 bytes")
	}
	n := len(rest) / 4
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		samples[i] = float32frombits(binary.LittleEndian.Uint32(rest[4*i : 4*i+4]))
	}
	return Audio{Meta: meta, Samples: samples, SampleRate: sr, ChannelCount: ch}, nil
}

// --- Video: width(u32) height(u32) format_len(u16) format pixels... ---

func encodeVideoPayload(v Video) []byte {
	buf := make([]byte, 0, 4+4+2+len(v.PixelFormat)+len(v.Pixels))
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], v.Width)
	buf = append(buf, u32[:]...)
	binary.LittleEndian.PutUint32(u32[:], v.Height)
	buf = append(buf, u32[:]...)
	var u16 [2]byte
	binary.LittleEndian.PutUint16(u16[:], uint16(len(v.PixelFormat)))
	buf = append(buf, u16[:]...)
	buf = append(buf, v.PixelFormat...)
	buf = append(buf, v.Pixels...)
	return buf
}

func decodeVideoPayload(meta Meta, payload []byte) (RuntimeData, error) {
	if len(payload) < 10 {
		return nil, coreerrors.New(coreerrors.InvalidData, "video payload too short for header")
	}
	w := binary.LittleEndian.Uint32(payload[0:4])
	h := binary.LittleEndian.Uint32(payload[4:8])
	fmtLen := int(binary.LittleEndian.Uint16(payload[8:10]))
	if len(payload) < 10+fmtLen {
		return nil, coreerrors.New(coreerrors.InvalidData, "video payload truncated before pixel_format")
	}
	format := string(payload[10 : 10+fmtLen])
	pixels := payload[10+fmtLen:]
	return Video{Meta: meta, Pixels: append([]byte(nil), pixels...), Width: w, Height: h, PixelFormat: format}, nil
}

// --- Tensor: dtype_len(u16) dtype rank(u16) shape[rank](u32) buffer... ---

func encodeTensorPayload(t Tensor) []byte {
	buf := make([]byte, 0, 2+len(t.Dtype)+2+4*len(t.Shape)+len(t.Buffer))
	var u16 [2]byte
	binary.LittleEndian.PutUint16(u16[:], uint16(len(t.Dtype)))
	buf = append(buf, u16[:]...)
	buf = append(buf, t.Dtype...)
	binary.LittleEndian.PutUint16(u16[:], uint16(len(t.Shape)))
	buf = append(buf, u16[:]...)
	var u32 [4]byte
	for _, dim := range t.Shape {
		binary.LittleEndian.PutUint32(u32[:], dim)
		buf = append(buf, u32[:]...)
	}
	buf = append(buf, t.Buffer...)
	return buf
}

func decodeTensorPayload(meta Meta, payload []byte) (RuntimeData, error) {
	if len(payload) < 2 {
		return nil, coreerrors.New(coreerrors.InvalidData, "tensor payload too short for dtype length")
	}
	dtypeLen := int(binary.LittleEndian.Uint16(payload[0:2]))
	off := 2
	if len(payload) < off+dtypeLen+2 {
		return nil, coreerrors.New(coreerrors.InvalidData, "tensor payload truncated before shape")
	}
	dtype := string(payload[off : off+dtypeLen])
	off += dtypeLen
	rank := int(binary.LittleEndian.Uint16(payload[off : off+2]))
	off += 2
	if len(payload) < off+4*rank {
		return nil, coreerrors.New(coreerrors.InvalidData, "tensor payload truncated in shape dims")
	}
	shape := make([]uint32, rank)
	for i := 0; i < rank; i++ {
		shape[i] = binary.LittleEndian.Uint32(payload[off+4*i : off+4*i+4])
	}
	off += 4 * rank
	buffer := append([]byte(nil), payload[off:]...)
	return Tensor{Meta: meta, Buffer: buffer, Shape: shape, Dtype: dtype}, nil
}

// --- Control: kind(u8) segment_id_len(u16) segment_id from(u64) to(u64) extra(u32) ---

const (
	ctrlKindCancel   byte = 1
	ctrlKindBatch    byte = 2
	ctrlKindDeadline byte = 3
)

func encodeControlPayload(c Control) ([]byte, error) {
	var kind byte
	switch c.Kind {
	case KindCancelSpeculation:
		kind = ctrlKindCancel
	case KindBatchHint:
		kind = ctrlKindBatch
	case KindDeadlineWarning:
		kind = ctrlKindDeadline
	default:
		return nil, coreerrors.New(coreerrors.InvalidData, "unknown control message kind %q", c.Kind)
	}
	if len(c.SegmentID) > 0xFFFF {
		return nil, coreerrors.New(coreerrors.InvalidData, "segment_id exceeds %d bytes", 0xFFFF)
	}

	buf := make([]byte, 0, 1+2+len(c.SegmentID)+8+8+4)
	buf = append(buf, kind)
	var u16 [2]byte
	binary.LittleEndian.PutUint16(u16[:], uint16(len(c.SegmentID)))
	buf = append(buf, u16[:]...)
	buf = append(buf, c.SegmentID...)

	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], c.FromTsUs)
	buf = append(buf, u64[:]...)
	to := c.ToTsUs
	if c.Kind == KindDeadlineWarning {
		to = c.DeadlineUs
	}
	binary.LittleEndian.PutUint64(u64[:], to)
	buf = append(buf, u64[:]...)

	var u32 [4]byte
	switch c.Kind {
	case KindBatchHint:
		binary.LittleEndian.PutUint32(u32[:], c.SuggestedBatch)
	case KindDeadlineWarning:
		// DeadlineUs doesn't fit in the 32-bit extra field, so DeadlineWarning
		// carries it in the to-timestamp slot above instead.
		binary.LittleEndian.PutUint32(u32[:], 0)
	}
	buf = append(buf, u32[:]...)
	return buf, nil
}

func decodeControlPayload(meta Meta, payload []byte) (RuntimeData, error) {
	if len(payload) < 1+2 {
		return nil, coreerrors.New(coreerrors.InvalidData, "control payload too short")
	}
	kind := payload[0]
	off := 1
	segLen := int(binary.LittleEndian.Uint16(payload[off : off+2]))
	off += 2
	if len(payload) < off+segLen+8+8+4 {
		return nil, coreerrors.New(coreerrors.InvalidData, "control payload truncated")
	}
	segmentID := string(payload[off : off+segLen])
	off += segLen
	from := binary.LittleEndian.Uint64(payload[off : off+8])
	off += 8
	to := binary.LittleEndian.Uint64(payload[off : off+8])
	off += 8
	extra := binary.LittleEndian.Uint32(payload[off : off+4])

	c := Control{Meta: meta, SegmentID: segmentID, FromTsUs: from, ToTsUs: to}
	switch kind {
	case ctrlKindCancel:
		c.Kind = KindCancelSpeculation
	case ctrlKindBatch:
		c.Kind = KindBatchHint
		c.SuggestedBatch = extra
	case ctrlKindDeadline:
		c.Kind = KindDeadlineWarning
		c.DeadlineUs = to
	default:
		return nil, coreerrors.New(coreerrors.InvalidData, "unknown control kind tag %d", kind)
	}
	return c, nil
}

func float32bits(f float32) uint32     { return math.Float32bits(f) }
func float32frombits(b uint32) float32 { return math.Float32frombits(b) }
