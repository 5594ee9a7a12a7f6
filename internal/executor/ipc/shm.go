// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

// Package ipc implements the shared-memory ring and the dedicated OS
// thread that owns it, bridging the async scheduler to an out-of-process
// node over zero-copy shared memory. Nothing in this package is safe to
// touch from more than one goroutine at a time except through the Channel
// type's command/output channels — the publisher and subscriber mmap
// handles must never cross threads, which is why they're only ever
// touched from the goroutine that calls runtime.LockOSThread in Run.
package ipc

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

const headerSize = 16 // two uint64 counters: writeOffset, readOffset

// ringHeader overlays the first 16 bytes of the mapped segment. Both
// counters are monotonically increasing total byte counts, not indices —
// indices are counters modulo the ring's data capacity. This avoids the
// usual full/empty ambiguity of a pure index-based ring.
type ringHeader struct {
	writeOffset uint64
	readOffset  uint64
}

func header(buf []byte) *ringHeader {
	return (*ringHeader)(unsafe.Pointer(&buf[0]))
}

// Ring is a single-producer single-consumer byte ring over a memory-mapped
// segment. Frames are length-prefixed (uint32 LE). When the producer has
// no room for a new frame, it forcibly advances the read offset, dropping
// the oldest unread frames — an accepted loss mode for real-time media
// rather than a backpressure signal.
type Ring struct {
	file *os.File
	buf  []byte
	data []byte // buf[headerSize:]
	cap  uint64 // len(data)
}

// segmentPath is where a named shared-memory segment lives. Linux exposes
// /dev/shm as a tmpfs; using a plain file there gets the same semantics as
// shm_open/mmap without cgo.
func segmentPath(name string) string {
	return filepath.Join("/dev/shm", name)
}

// CreateRing creates (or truncates) a named segment of the given data
// capacity and maps it. The caller owns unlinking it on teardown via
// Close(unlink: true).
func CreateRing(name string, dataCapacity int) (*Ring, error) {
	path := segmentPath(name)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create shared memory segment %q: %w", name, err)
	}
	size := headerSize + dataCapacity
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncate shared memory segment %q to %d bytes: %w", name, size, err)
	}
	return mapRing(f, size, dataCapacity)
}

// OpenRing maps an already-created named segment, sized to dataCapacity.
func OpenRing(name string, dataCapacity int) (*Ring, error) {
	path := segmentPath(name)
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open shared memory segment %q: %w", name, err)
	}
	size := headerSize + dataCapacity
	return mapRing(f, size, dataCapacity)
}

func mapRing(f *os.File, size, dataCapacity int) (*Ring, error) {
	buf, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap shared memory segment: %w", err)
	}
	return &Ring{file: f, buf: buf, data: buf[headerSize:], cap: uint64(dataCapacity)}, nil
}

// Close unmaps the segment and closes the backing file. When unlink is
// true (the creating side's responsibility), the path is also removed so
// a leaked segment from a crashed prior run never collides with a fresh
// session using the same session_id/node_id pair.
func (r *Ring) Close(unlink bool) error {
	name := filepath.Base(r.file.Name())
	err := unix.Munmap(r.buf)
	closeErr := r.file.Close()
	if err == nil {
		err = closeErr
	}
	if unlink {
		if rmErr := os.Remove(segmentPath(name)); rmErr != nil && err == nil {
			err = rmErr
		}
	}
	return err
}

// Publish writes frame to the ring, dropping the oldest unread frames if
// necessary to make room. Returns an error only if frame itself can never
// fit (larger than the ring's total capacity).
func (r *Ring) Publish(frame []byte) error {
	total := uint64(4 + len(frame))
	if total > r.cap {
		return fmt.Errorf("frame of %d bytes exceeds ring capacity %d", len(frame), r.cap)
	}

	h := header(r.buf)
	write := atomic.LoadUint64(&h.writeOffset)
	read := atomic.LoadUint64(&h.readOffset)

	// Drop whole frames until the new one fits, so the read offset always
	// lands on a frame boundary.
	dropped := false
	for r.cap-(write-read) < total {
		var oldLen [4]byte
		r.readAt(read, oldLen[:])
		read += uint64(4 + binary.LittleEndian.Uint32(oldLen[:]))
		dropped = true
	}
	if dropped {
		atomic.StoreUint64(&h.readOffset, read)
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(frame)))
	r.writeAt(write, lenBuf[:])
	r.writeAt(write+4, frame)

	atomic.StoreUint64(&h.writeOffset, write+total)
	return nil
}

// TryReceive returns the next unread frame without blocking, or ok=false
// if the ring is empty.
func (r *Ring) TryReceive() (frame []byte, ok bool) {
	h := header(r.buf)
	read := atomic.LoadUint64(&h.readOffset)
	write := atomic.LoadUint64(&h.writeOffset)
	if read == write {
		return nil, false
	}

	var lenBuf [4]byte
	r.readAt(read, lenBuf[:])
	n := binary.LittleEndian.Uint32(lenBuf[:])

	out := make([]byte, n)
	r.readAt(read+4, out)

	atomic.StoreUint64(&h.readOffset, read+uint64(4+n))
	return out, true
}

func (r *Ring) writeAt(offset uint64, p []byte) {
	start := offset % r.cap
	n := copy(r.data[start:], p)
	if n < len(p) {
		copy(r.data, p[n:])
	}
}

func (r *Ring) readAt(offset uint64, p []byte) {
	start := offset % r.cap
	n := copy(p, r.data[start:])
	if n < len(p) {
		copy(p[n:], r.data)
	}
}
