// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

package ipc

import (
	"runtime"
	"time"

	"github.com/remotemedia/core/internal/coreerrors"
	"github.com/remotemedia/core/internal/data"
	"github.com/remotemedia/core/internal/logging"
)

// commandPollTimeout bounds how long Run blocks waiting for a command
// before it falls through to poll the subscriber. Kept short so the
// subscriber side never waits longer than this for a turn.
const commandPollTimeout = time.Millisecond

// Command is sent from the async world into the channel thread.
type Command struct {
	kind    commandKind
	payload data.RuntimeData
}

type commandKind int

const (
	cmdSendData commandKind = iota
	cmdShutdown
)

// SendData builds a command that publishes pkt on the input ring.
func SendData(pkt data.RuntimeData) Command { return Command{kind: cmdSendData, payload: pkt} }

// Shutdown builds a command that tears down the channel thread.
func Shutdown() Command { return Command{kind: cmdShutdown} }

// Channel owns one out-of-process node's input (publisher) and output
// (subscriber) shared-memory rings for their entire lifetime. It must run
// on a single dedicated OS thread for that entire lifetime — Run calls
// runtime.LockOSThread itself, so callers only need to invoke Run from a
// freshly spawned goroutine.
type Channel struct {
	logger          logging.Logger
	sessID          string
	nodeID          string
	input           *Ring
	output          *Ring
	commands        <-chan Command
	outputs         chan<- data.RuntimeData
	maxPayloadBytes int
	done            chan error
}

// New constructs a Channel. input/output are the already-created (or
// opened) rings for this node; commands is the sender side the async
// executor holds; outputs is the draining task's receive side.
func New(logger logging.Logger, sessionID, nodeID string, input, output *Ring, commands <-chan Command, outputs chan<- data.RuntimeData, maxPayloadBytes int) *Channel {
	return &Channel{
		logger:          logger,
		sessID:          sessionID,
		nodeID:          nodeID,
		input:           input,
		output:          output,
		commands:        commands,
		outputs:         outputs,
		maxPayloadBytes: maxPayloadBytes,
		done:            make(chan error, 1),
	}
}

// Run is the channel thread's main loop. It blocks the calling goroutine
// until a Shutdown command is processed or the command channel closes.
// Call it as `go channel.Run()` from a fresh goroutine dedicated to this
// node; never share that goroutine with other work.
func (c *Channel) Run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(c.done)

	timer := time.NewTimer(commandPollTimeout)
	defer timer.Stop()

	for {
		didWork := false

		select {
		case cmd, ok := <-c.commands:
			if !ok {
				return
			}
			switch cmd.kind {
			case cmdSendData:
				if err := c.publish(cmd.payload); err != nil {
					c.logger.Errorw("ipc publish failed", "session_id", c.sessID, "node_id", c.nodeID, "error", err)
				}
				didWork = true
			case cmdShutdown:
				return
			}
		case <-timer.C:
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(commandPollTimeout)

		if c.drainOne() {
			didWork = true
		}

		if !didWork {
			runtime.Gosched()
		}
	}
}

func (c *Channel) publish(pkt data.RuntimeData) error {
	encoded, err := data.Encode(pkt)
	if err != nil {
		return coreerrors.Wrap(coreerrors.IpcError, err, "encode packet for node %s", c.nodeID)
	}
	if err := c.input.Publish(encoded); err != nil {
		return coreerrors.Wrap(coreerrors.IpcError, err, "publish to input ring for node %s", c.nodeID)
	}
	return nil
}

// drainOne pulls and decodes at most one frame from the output ring,
// pushing it to the outputs channel. Returns whether a frame was found.
func (c *Channel) drainOne() bool {
	frame, ok := c.output.TryReceive()
	if !ok {
		return false
	}
	pkt, err := data.Decode(frame, c.maxPayloadBytes)
	if err != nil {
		c.logger.Errorw("ipc decode failed", "session_id", c.sessID, "node_id", c.nodeID, "error", err)
		return true
	}
	c.outputs <- pkt
	return true
}
