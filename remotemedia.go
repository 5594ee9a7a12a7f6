// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

// Package remotemedia is the transport-agnostic boundary this module
// exposes: execute_unary for one-shot request/response processing and
// open_stream for a long-lived session. Neither binds to gRPC/HTTP/WebRTC
// directly — that's left to the caller, exactly as the manifest format
// itself is left to an external collaborator.
package remotemedia

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/remotemedia/core/internal/config"
	"github.com/remotemedia/core/internal/coreerrors"
	"github.com/remotemedia/core/internal/data"
	"github.com/remotemedia/core/internal/executor"
	"github.com/remotemedia/core/internal/graph"
	"github.com/remotemedia/core/internal/logging"
	"github.com/remotemedia/core/internal/metrics"
	"github.com/remotemedia/core/internal/nodes"
	"github.com/remotemedia/core/internal/router"
	"github.com/remotemedia/core/internal/session"
)

// Manifest is the normalized pipeline description the core accepts. It is
// a thin re-export of graph.Manifest so callers of this package never
// need to import an internal package directly.
type Manifest = graph.Manifest

// NodeSpec, PortRef, EdgeSpec, CapabilityDecl, PortDecl, Capability and the
// constraint helpers are likewise re-exported for manifest construction.
type (
	NodeSpec       = graph.NodeSpec
	PortRef        = graph.PortRef
	EdgeSpec       = graph.EdgeSpec
	CapabilityDecl = graph.CapabilityDecl
	PortDecl       = graph.PortDecl
	Capability     = graph.Capability
)

// RuntimeData is the universal packet type flowing through a pipeline.
type RuntimeData = data.RuntimeData

// Core is the process-wide entry point: it owns the global session
// registry, the metrics registry, and admission control. Construct one
// per embedding process.
type Core struct {
	logger   logging.Logger
	cfg      *config.Config
	metrics  *metrics.Registry
	sessions *session.Registry

	activeSessions atomic.Int64
}

// New constructs a Core. cfg is typically the result of config.Load().
func New(logger logging.Logger, cfg *config.Config) *Core {
	return &Core{
		logger:   logger,
		cfg:      cfg,
		metrics:  metrics.NewRegistry(),
		sessions: session.NewRegistry(),
	}
}

// Metrics exposes the process-wide metrics registry for the embedding
// process to export however it sees fit.
func (c *Core) Metrics() *metrics.Registry { return c.metrics }

// ExecuteUnary builds a one-shot session from manifest, sends input, and
// returns the first output the sink(s) produce (or the session's error).
// It is a thin convenience over OpenStream for callers that don't need a
// long-lived stream.
func (c *Core) ExecuteUnary(ctx context.Context, manifest Manifest, input RuntimeData) (RuntimeData, error) {
	handle, err := c.OpenStream(ctx, manifest)
	if err != nil {
		return nil, err
	}
	defer handle.Terminate(ctx)

	if err := handle.SendInput(ctx, input); err != nil {
		return nil, err
	}
	out, end, err := handle.RecvOutput(ctx)
	if err != nil {
		return nil, err
	}
	if end {
		return nil, coreerrors.New(coreerrors.Execution, "session ended before producing an output")
	}
	return out, nil
}

// SessionHandle is the caller's view of one open_stream session.
type SessionHandle struct {
	sess    *session.Session
	core    *Core
	r       *router.Router
	toRtr   chan data.RuntimeData
	fromRtr chan data.RuntimeData

	runCtx    context.Context
	runCancel context.CancelFunc
	runDone   chan error
}

// SendInput pushes one packet into the session's source nodes.
func (h *SessionHandle) SendInput(ctx context.Context, pkt RuntimeData) error {
	select {
	case h.toRtr <- pkt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.runCtx.Done():
		return coreerrors.New(coreerrors.Execution, "session %s is no longer running", h.sess.ID)
	}
}

// RecvOutput blocks for the next sink output. end=true means the stream
// has closed with no further output to come.
func (h *SessionHandle) RecvOutput(ctx context.Context) (pkt RuntimeData, end bool, err error) {
	select {
	case p, ok := <-h.fromRtr:
		if !ok {
			return nil, true, nil
		}
		return p, false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Terminate tears the session down: the router stops every node task, IPC
// threads are told to shut down, and the global registry entry is
// removed. Each wait is bounded by the configured shutdown grace period.
func (h *SessionHandle) Terminate(ctx context.Context) error {
	h.r.Shutdown(ctx)
	select {
	case <-h.runDone:
	case <-time.After(time.Duration(h.core.cfg.ShutdownGraceMs) * time.Millisecond):
	}
	h.runCancel()
	for _, id := range h.sess.Graph.NodeIDs() {
		sender, ok := h.core.sessions.Lookup(h.sess.ID, id)
		if !ok {
			continue
		}
		if oop, ok := sender.(*executor.OutOfProcess); ok {
			if err := oop.Shutdown(ctx); err != nil {
				h.core.logger.Errorw("out-of-process node shutdown failed", "session_id", h.sess.ID, "node_id", id, "error", err)
			}
		}
	}
	h.core.sessions.DropSession(h.sess.ID)
	h.core.metrics.DropSession(h.sess.ID)
	h.core.metrics.SessionClosed()
	h.core.activeSessions.Add(-1)
	return nil
}

// OpenStream validates and builds the manifest's graph, instantiates every
// node, wires the session router, and returns a handle for sending input
// and receiving output. Concurrent node Initialize calls use an errgroup
// so the first failure aborts the rest rather than waiting out every
// node's own init timeout serially.
func (c *Core) OpenStream(ctx context.Context, manifest Manifest) (*SessionHandle, error) {
	if c.activeSessions.Load() >= int64(c.cfg.MaxConcurrentSessions) {
		return nil, coreerrors.New(coreerrors.Overloaded, "max_concurrent_sessions (%d) reached", c.cfg.MaxConcurrentSessions)
	}

	g, err := graph.Build(manifest)
	if err != nil {
		return nil, err
	}
	if err := graph.ResolveCapabilities(g); err != nil {
		return nil, err
	}

	sess := session.New("", g)

	native := make(map[string]nodes.Node)

	group, gctx := errgroup.WithContext(ctx)
	type built struct {
		id   string
		node nodes.Node
	}
	results := make(chan built, len(manifest.Nodes))

	for _, spec := range manifest.Nodes {
		spec := spec
		if spec.ExecutorKind == graph.OutOfProcess {
			continue // spawned below, outside the native-node errgroup
		}
		group.Go(func() error {
			params := withSessionID(spec.Params, sess.ID)
			if spec.TypeName == string(nodes.TypeGate) {
				params = withSpeculativeDefaults(params, c.cfg.Speculative)
			}
			n, err := nodes.Get(c.logger, spec.ID, spec.TypeName, params, c.metrics)
			if err != nil {
				return err
			}
			if err := n.Initialize(gctx); err != nil {
				return coreerrors.Wrap(coreerrors.Execution, err, "initialize node %s", spec.ID).WithNode(spec.ID)
			}
			results <- built{id: spec.ID, node: n}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	close(results)
	for b := range results {
		native[b.id] = b.node
	}

	execCfg := executor.DefaultConfig()
	execCfg.ShmChannelCapacity = c.cfg.ShmMaxPayloadBytes
	execCfg.MaxPayloadBytes = c.cfg.ShmMaxPayloadBytes
	execCfg.HealthProbeInterval = time.Duration(c.cfg.HealthProbeIntervalMs) * time.Millisecond
	execCfg.HealthProbeTimeout = time.Duration(c.cfg.HealthProbeTimeoutMs) * time.Millisecond
	execCfg.ShutdownGrace = time.Duration(c.cfg.ShutdownGraceMs) * time.Millisecond

	for _, spec := range manifest.Nodes {
		if spec.ExecutorKind != graph.OutOfProcess {
			continue
		}
		command, _ := spec.Params["command"].(string)
		if command == "" {
			return nil, coreerrors.New(coreerrors.ConfigError, "out-of-process node %s missing params.command", spec.ID).WithNode(spec.ID)
		}
		oop, err := executor.Spawn(ctx, c.logger, execCfg, sess.ID, spec.ID, command, nil, spec.Params, func(nodeID string, err error) {
			c.logger.Errorw("out-of-process node became unhealthy", "session_id", sess.ID, "node_id", nodeID, "error", err)
		})
		if err != nil {
			return nil, err
		}
		c.sessions.Register(sess.ID, spec.ID, oop)
	}

	toRtr := make(chan data.RuntimeData, c.cfg.PerNodeQueueCapacity)
	fromRtr := make(chan data.RuntimeData, c.cfg.RouterOutputQueueCap)

	rcfg := router.Config{
		PerNodeQueueCapacity: c.cfg.PerNodeQueueCapacity,
		RouterOutputQueueCap: c.cfg.RouterOutputQueueCap,
		BackpressureWait:     20 * time.Millisecond,
	}
	r := router.New(c.logger, rcfg, c.metrics, sess, toRtr, fromRtr, native, c.sessions)

	runCtx, runCancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- r.Run(runCtx) }()

	c.activeSessions.Add(1)
	c.metrics.SessionOpened()

	return &SessionHandle{
		sess:      sess,
		core:      c,
		r:         r,
		toRtr:     toRtr,
		fromRtr:   fromRtr,
		runCtx:    runCtx,
		runCancel: runCancel,
		runDone:   runDone,
	}, nil
}

func withSessionID(params map[string]interface{}, sessionID string) map[string]interface{} {
	out := make(map[string]interface{}, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out["session_id"] = sessionID
	return out
}

// withSpeculativeDefaults fills in a speculative_gate node's manifest
// params with the process-wide config.Speculative tunables, for any key the
// manifest didn't already set. Manifest params always win.
func withSpeculativeDefaults(params map[string]interface{}, cfg config.Speculative) map[string]interface{} {
	defaults := map[string]interface{}{
		"lookback_ms":    cfg.LookbackMs,
		"lookahead_ms":   cfg.LookaheadMs,
		"min_speech_ms":  cfg.MinSpeechMs,
		"min_silence_ms": cfg.MinSilenceMs,
		"pad_ms":         cfg.PadMs,
		"vad_threshold":  cfg.VADThreshold,
	}
	out := make(map[string]interface{}, len(params)+len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range params {
		out[k] = v
	}
	return out
}
