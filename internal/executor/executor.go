// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

// Package executor manages out-of-process nodes: spawning the child
// process, waiting for readiness, bridging to the IPC channel thread, and
// tearing everything down cleanly. It is the async-world-facing half of
// the out-of-process node story; internal/executor/ipc is the dedicated
// OS thread half.
package executor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/remotemedia/core/internal/coreerrors"
	"github.com/remotemedia/core/internal/data"
	"github.com/remotemedia/core/internal/executor/ipc"
	"github.com/remotemedia/core/internal/logging"
)

// Config tunes an out-of-process node's lifecycle.
type Config struct {
	ReadyTimeout        time.Duration // bound on waiting for the READY line
	HealthProbeInterval time.Duration
	HealthProbeTimeout  time.Duration
	ShutdownGrace       time.Duration
	ShmChannelCapacity  int // bytes, per input/output ring
	MaxPayloadBytes     int
	MaxInFlightEncodes  int64 // semaphore bound on concurrent in-flight Process sends
}

// DefaultConfig matches the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		ReadyTimeout:        10 * time.Second,
		HealthProbeInterval: 2 * time.Second,
		HealthProbeTimeout:  time.Second,
		ShutdownGrace:       2 * time.Second,
		ShmChannelCapacity:  4 << 20,
		MaxPayloadBytes:     data.DefaultMaxPayloadBytes,
		MaxInFlightEncodes:  8,
	}
}

// OutOfProcess is one out-of-process node instance: a child process, its
// shared-memory channel pair, and the IPC channel thread bridging them to
// the async scheduler. It implements the same lifecycle shape the
// websocket-backed executors elsewhere in this codebase follow: a bounded
// readiness wait in Initialize, a background liveness probe, and a
// graceful-then-forced Shutdown.
type OutOfProcess struct {
	logger logging.Logger
	cfg    Config

	sessionID string
	nodeID    string
	cmd       *exec.Cmd

	input  *ipc.Ring
	output *ipc.Ring

	commands chan ipc.Command
	outputs  chan data.RuntimeData

	encodeSem *semaphore.Weighted

	probeCancel context.CancelFunc
	probeDone   chan struct{}

	reaped chan struct{} // closed once the reaper's cmd.Wait() returns

	mu        sync.Mutex
	unhealthy error
	exited    bool // set once by the reaper when cmd.Wait() returns
	exitErr   error
}

// OnUnhealthy is invoked from the health probe goroutine when a liveness
// check fails. The caller (session router) uses it to begin tearing down
// this node's dependent consumers.
type OnUnhealthy func(nodeID string, err error)

// Spawn starts the child process, waits for its READY signal, opens the
// shared-memory channel pair, and starts the IPC channel thread, the
// process reaper and the health probe. Draining Outputs() is left to the
// caller. outputs is closed by Shutdown once the channel thread
// has exited.
func Spawn(ctx context.Context, logger logging.Logger, cfg Config, sessionID, nodeID string, command string, args []string, params map[string]interface{}, onUnhealthy OnUnhealthy) (*OutOfProcess, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.ConfigError, err, "marshal params for node %s", nodeID)
	}

	fullArgs := append(append([]string{}, args...),
		"--session", sessionID, "--node", nodeID, "--params", string(paramsJSON))

	cmd := exec.CommandContext(ctx, command, fullArgs...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.ProcessError, err, "attach stdout pipe for node %s", nodeID)
	}
	cmd.Stderr = nil // diagnostic logs only; never a data channel — let it inherit or be discarded by the caller's process supervisor

	if err := cmd.Start(); err != nil {
		return nil, coreerrors.Wrap(coreerrors.ProcessError, err, "start child process for node %s", nodeID)
	}

	if err := waitForReady(stdout, cfg.ReadyTimeout); err != nil {
		_ = cmd.Process.Kill()
		return nil, coreerrors.Wrap(coreerrors.ProcessError, err, "node %s never signalled READY", nodeID).WithNode(nodeID)
	}

	inputName := fmt.Sprintf("%s_%s_input", sessionID, nodeID)
	outputName := fmt.Sprintf("%s_%s_output", sessionID, nodeID)

	input, err := ipc.CreateRing(inputName, cfg.ShmChannelCapacity)
	if err != nil {
		_ = cmd.Process.Kill()
		return nil, coreerrors.Wrap(coreerrors.IpcError, err, "create input channel for node %s", nodeID).WithNode(nodeID)
	}
	output, err := ipc.CreateRing(outputName, cfg.ShmChannelCapacity)
	if err != nil {
		input.Close(true)
		_ = cmd.Process.Kill()
		return nil, coreerrors.Wrap(coreerrors.IpcError, err, "create output channel for node %s", nodeID).WithNode(nodeID)
	}

	commands := make(chan ipc.Command, 1)
	outputs := make(chan data.RuntimeData, 64)

	channel := ipc.New(logger, sessionID, nodeID, input, output, commands, outputs, cfg.MaxPayloadBytes)
	go channel.Run()

	e := &OutOfProcess{
		logger:    logger,
		cfg:       cfg,
		sessionID: sessionID,
		nodeID:    nodeID,
		cmd:       cmd,
		input:     input,
		output:    output,
		commands:  commands,
		outputs:   outputs,
		encodeSem: semaphore.NewWeighted(cfg.MaxInFlightEncodes),
		probeDone: make(chan struct{}),
		reaped:    make(chan struct{}),
	}

	go e.reap()

	probeCtx, cancel := context.WithCancel(context.Background())
	e.probeCancel = cancel
	go e.runHealthProbe(probeCtx, onUnhealthy)

	return e, nil
}

// reap calls cmd.Wait() exactly once, started at the end of a successful
// Spawn, and records its exit under mu for probeOnce to observe. cmd.Wait() may only be
// called once per process per the os/exec contract, so this is the single
// caller; Shutdown waits on reaped instead of calling Wait itself.
func (e *OutOfProcess) reap() {
	err := e.cmd.Wait()
	e.mu.Lock()
	e.exited = true
	e.exitErr = err
	e.mu.Unlock()
	close(e.reaped)
}

func waitForReady(stdout io.Reader, timeout time.Duration) error {
	type result struct {
		err error
	}
	done := make(chan result, 1)
	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if scanner.Text() == "READY" {
				done <- result{}
				return
			}
		}
		done <- result{err: fmt.Errorf("stdout closed before READY")}
	}()

	select {
	case r := <-done:
		return r.err
	case <-time.After(timeout):
		return fmt.Errorf("timed out after %s waiting for READY", timeout)
	}
}

// Outputs returns the channel the draining task reads decoded packets
// from, to forward into the session router's shared output channel.
func (e *OutOfProcess) Outputs() <-chan data.RuntimeData { return e.outputs }

// Process is a fire-and-forget dispatch: it encodes nothing itself, it
// just hands the packet to the channel thread's command queue and returns
// immediately. Outputs, if any, arrive later on Outputs().
func (e *OutOfProcess) Process(ctx context.Context, pkt data.RuntimeData) error {
	if !e.encodeSem.TryAcquire(1) {
		if err := e.encodeSem.Acquire(ctx, 1); err != nil {
			return coreerrors.Wrap(coreerrors.Overloaded, err, "node %s has too many in-flight sends", e.nodeID).WithNode(e.nodeID)
		}
	}
	defer e.encodeSem.Release(1)

	select {
	case e.commands <- ipc.SendData(pkt):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *OutOfProcess) runHealthProbe(ctx context.Context, onUnhealthy OnUnhealthy) {
	defer close(e.probeDone)
	ticker := time.NewTicker(e.cfg.HealthProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.probeOnce(); err != nil {
				e.mu.Lock()
				e.unhealthy = err
				e.mu.Unlock()
				e.logger.Errorw("health probe failed", "session_id", e.sessionID, "node_id", e.nodeID, "error", err)
				if onUnhealthy != nil {
					onUnhealthy(e.nodeID, err)
				}
				return
			}
		}
	}
}

// probeOnce checks process liveness and that the channel thread is still
// servicing its command queue within the probe timeout — a stuck channel
// thread (e.g. blocked on a full ring) looks the same as a dead child from
// the router's perspective and should be treated as ProcessError either way.
func (e *OutOfProcess) probeOnce() error {
	e.mu.Lock()
	exited, exitErr := e.exited, e.exitErr
	e.mu.Unlock()
	if exited {
		return coreerrors.Wrap(coreerrors.ProcessError, exitErr, "child process for node %s has exited", e.nodeID).WithNode(e.nodeID)
	}
	probe := data.NewDeadlineWarning(e.sessionID, 0, data.NowUs())
	select {
	case e.commands <- ipc.SendData(probe):
	case <-time.After(e.cfg.HealthProbeTimeout):
		return coreerrors.New(coreerrors.ProcessError, "node %s command channel did not accept a probe within %s", e.nodeID, e.cfg.HealthProbeTimeout).WithNode(e.nodeID)
	}
	return nil
}

// Shutdown sends the channel thread a Shutdown command, joins it within
// the grace period, removes the shared-memory segments, and kills the
// child process if it hasn't exited by the end of the grace window.
func (e *OutOfProcess) Shutdown(ctx context.Context) error {
	e.probeCancel()
	<-e.probeDone

	select {
	case e.commands <- ipc.Shutdown():
	case <-time.After(e.cfg.ShutdownGrace):
	}

	select {
	case <-e.reaped:
	case <-time.After(e.cfg.ShutdownGrace):
		_ = e.cmd.Process.Kill()
		<-e.reaped
	}

	inErr := e.input.Close(true)
	outErr := e.output.Close(true)
	close(e.outputs)

	if inErr != nil {
		return coreerrors.Wrap(coreerrors.IpcError, inErr, "close input channel for node %s", e.nodeID).WithNode(e.nodeID)
	}
	return outErr
}
