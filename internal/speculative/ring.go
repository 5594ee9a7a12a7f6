// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

package speculative

// ringEntry is one retained audio chunk.
type ringEntry struct {
	startTsUs uint64
	endTsUs   uint64
	samples   []float32
}

// RingBuffer retains the most recent lookbackMs of audio plus timestamps.
// Capacity is fixed at construction; timestamps are assumed monotonic.
// ClearBefore drops everything strictly older than a given timestamp.
type RingBuffer struct {
	lookbackUs uint64
	entries    []ringEntry
}

// NewRingBuffer constructs a buffer retaining lookbackMs milliseconds of
// audio.
func NewRingBuffer(lookbackMs uint32) *RingBuffer {
	return &RingBuffer{lookbackUs: uint64(lookbackMs) * 1000}
}

// Append adds a chunk and evicts anything older than lookbackUs relative to
// the chunk's end timestamp.
func (r *RingBuffer) Append(startTsUs, endTsUs uint64, samples []float32) {
	r.entries = append(r.entries, ringEntry{startTsUs: startTsUs, endTsUs: endTsUs, samples: samples})
	if endTsUs > r.lookbackUs {
		r.ClearBefore(endTsUs - r.lookbackUs)
	}
}

// ClearBefore drops every entry whose end timestamp is strictly older than
// t.
func (r *RingBuffer) ClearBefore(t uint64) {
	idx := 0
	for ; idx < len(r.entries); idx++ {
		if r.entries[idx].endTsUs >= t {
			break
		}
	}
	r.entries = r.entries[idx:]
}

// OldestTimestamp returns the start timestamp of the oldest retained entry,
// or ok=false if the buffer is empty. Used to bound pad_ms backdating to
// what's actually still in the buffer.
func (r *RingBuffer) OldestTimestamp() (uint64, bool) {
	if len(r.entries) == 0 {
		return 0, false
	}
	return r.entries[0].startTsUs, true
}

// Len reports the number of retained entries, for tests.
func (r *RingBuffer) Len() int { return len(r.entries) }
