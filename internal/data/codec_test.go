// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRoundTripAllVariants checks decode(encode(x)) == x for every
// RuntimeData variant.
func TestRoundTripAllVariants(t *testing.T) {
	cases := []RuntimeData{
		Audio{
			Meta:         Meta{SessionID: "sess-1", TimestampUs: 1000},
			Samples:      []float32{0.1, -0.2, 0.3},
			SampleRate:   16000,
			ChannelCount: 1,
		},
		Video{
			Meta:        Meta{SessionID: "sess-1", TimestampUs: 2000},
			Pixels:      []byte{1, 2, 3, 4},
			Width:       2,
			Height:      2,
			PixelFormat: "rgba",
		},
		Text{
			Meta:    Meta{SessionID: "sess-1", TimestampUs: 3000},
			Content: "hello world",
		},
		Tensor{
			Meta:   Meta{SessionID: "sess-1", TimestampUs: 4000},
			Buffer: []byte{9, 9, 9},
			Shape:  []uint32{1, 3},
			Dtype:  "f32",
		},
		NewCancelSpeculation("sess-1", "seg-1", 100, 200, 5000),
	}

	for _, original := range cases {
		encoded, err := Encode(original)
		require.NoError(t, err)

		decoded, err := Decode(encoded, DefaultMaxPayloadBytes)
		require.NoError(t, err)

		assert.Equal(t, original, decoded)
	}
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	frame := []byte{99, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	_, err := Decode(frame, DefaultMaxPayloadBytes)
	require.Error(t, err)
}

func TestDecodeRejectsTruncatedHeader(t *testing.T) {
	_, err := Decode([]byte{1, 0}, DefaultMaxPayloadBytes)
	require.Error(t, err)
}

func TestDecodeRejectsPayloadLengthMismatch(t *testing.T) {
	audio := Audio{
		Meta:         Meta{SessionID: "s", TimestampUs: 1},
		Samples:      []float32{1, 2},
		SampleRate:   16000,
		ChannelCount: 1,
	}
	encoded, err := Encode(audio)
	require.NoError(t, err)

	// Truncate the frame after the header so the declared payload length no
	// longer matches the remaining bytes.
	truncated := encoded[:len(encoded)-4]
	_, err = Decode(truncated, DefaultMaxPayloadBytes)
	require.Error(t, err)
}

func TestDecodeRejectsOversizedPayload(t *testing.T) {
	text := Text{Meta: Meta{SessionID: "s", TimestampUs: 1}, Content: "some text payload"}
	encoded, err := Encode(text)
	require.NoError(t, err)

	_, err = Decode(encoded, 4)
	require.Error(t, err)
}

func TestDecodeRejectsNonUTF8SessionID(t *testing.T) {
	// Hand-build a frame with an invalid UTF-8 session id.
	frame := []byte{byte(tagText), 1, 0, 0xFF, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	_, err := Decode(frame, DefaultMaxPayloadBytes)
	require.Error(t, err)
}
