// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

// Package nodes implements the native, in-process streaming nodes:
// resample, VAD (Silero), and chunker/accumulator. All of them implement
// the uniform Node capability the session router dispatches through.
package nodes

import (
	"context"

	"github.com/remotemedia/core/internal/data"
)

// Node is the uniform capability every native streaming node implements.
// Process is cooperative: implementations must yield (via channel
// send/receive or explicit runtime.Gosched-equivalent) at least once per
// unit of work rather than block the goroutine that runs them.
type Node interface {
	// Initialize runs once before the first Process call. May block on
	// model loading, connection setup, etc.
	Initialize(ctx context.Context) error

	// Process handles one input packet and returns zero or more output
	// packets. Finite per call — it must not block indefinitely.
	Process(ctx context.Context, in data.RuntimeData) ([]data.RuntimeData, error)

	// ProcessControlMessage handles an advisory or corrective control
	// packet. handled reports whether the node took any action; false is a
	// legitimate response (the message is purely advisory for this node).
	ProcessControlMessage(ctx context.Context, msg data.Control) (handled bool, err error)

	// Shutdown releases any resources acquired in Initialize. May block
	// briefly; the router bounds the wait.
	Shutdown(ctx context.Context) error
}

// BaseNode provides no-op ProcessControlMessage/Shutdown implementations so
// concrete nodes only need to implement what they actually use, the same
// embedded-base pattern the channel streamer types use for shared plumbing.
type BaseNode struct{}

func (BaseNode) ProcessControlMessage(ctx context.Context, msg data.Control) (bool, error) {
	return false, nil
}

func (BaseNode) Shutdown(ctx context.Context) error { return nil }
