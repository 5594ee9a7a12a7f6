// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

package ipc

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingRoundTripsFrames(t *testing.T) {
	name := fmt.Sprintf("rmcore_test_%s_input", t.Name())
	ring, err := CreateRing(name, 1024)
	require.NoError(t, err)
	defer ring.Close(true)

	require.NoError(t, ring.Publish([]byte("hello")))
	require.NoError(t, ring.Publish([]byte("world")))

	frame, ok := ring.TryReceive()
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), frame)

	frame, ok = ring.TryReceive()
	require.True(t, ok)
	assert.Equal(t, []byte("world"), frame)

	_, ok = ring.TryReceive()
	assert.False(t, ok, "ring should be empty after both frames are drained")
}

func TestRingDropsOldestWhenFull(t *testing.T) {
	name := fmt.Sprintf("rmcore_test_%s_dropfull", t.Name())
	// Small capacity: each 4-byte frame takes 8 bytes (4-byte length prefix +
	// 4-byte payload); 16 bytes holds 2 frames.
	ring, err := CreateRing(name, 16)
	require.NoError(t, err)
	defer ring.Close(true)

	require.NoError(t, ring.Publish([]byte("aaaa")))
	require.NoError(t, ring.Publish([]byte("bbbb")))
	require.NoError(t, ring.Publish([]byte("cccc"))) // forces "aaaa" out

	frame, ok := ring.TryReceive()
	require.True(t, ok)
	assert.Equal(t, []byte("bbbb"), frame, "oldest unread frame should have been dropped to make room")

	frame, ok = ring.TryReceive()
	require.True(t, ok)
	assert.Equal(t, []byte("cccc"), frame)
}

func TestRingRejectsOversizedFrame(t *testing.T) {
	name := fmt.Sprintf("rmcore_test_%s_oversized", t.Name())
	ring, err := CreateRing(name, 8)
	require.NoError(t, err)
	defer ring.Close(true)

	err = ring.Publish(make([]byte, 64))
	assert.Error(t, err)
}
