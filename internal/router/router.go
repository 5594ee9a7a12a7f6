// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

// Package router implements the session router: the single, long-lived
// coordination task for one session's node graph. One router per session;
// it lives for the entire streaming duration and is the only place that
// sees every packet crossing a node boundary.
package router

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/remotemedia/core/internal/coreerrors"
	"github.com/remotemedia/core/internal/data"
	"github.com/remotemedia/core/internal/graph"
	"github.com/remotemedia/core/internal/logging"
	"github.com/remotemedia/core/internal/metrics"
	"github.com/remotemedia/core/internal/nodes"
	"github.com/remotemedia/core/internal/session"
)

// Config tunes queue depths and backpressure behavior.
type Config struct {
	PerNodeQueueCapacity int
	RouterOutputQueueCap int
	BackpressureWait     time.Duration
}

// DefaultConfig matches the spec's stated defaults.
func DefaultConfig() Config {
	return Config{PerNodeQueueCapacity: 64, RouterOutputQueueCap: 256, BackpressureWait: 20 * time.Millisecond}
}

type routedPacket struct {
	SourceNodeID string
	Packet       data.RuntimeData
}

// Router is the per-session coordination task described above.
type Router struct {
	logger  logging.Logger
	cfg     Config
	metrics *metrics.Registry
	sess    *session.Session
	g       *graph.Graph

	clientRx <-chan data.RuntimeData
	clientTx chan<- data.RuntimeData

	routerTx chan routedPacket

	nodeInputs map[string]chan data.RuntimeData
	native     map[string]nodes.Node
	registry   *session.Registry
	oopIDs     []string // node ids present in the graph but not in native

	descendants map[string][]string // transitive closure of successors, per node

	shutdownCh chan struct{}
}

// New builds a Router for a validated, capability-resolved graph. native
// partitions the graph's node ids by executor kind; every node id in the
// graph not present in native is assumed out-of-process, and its command
// sender is resolved lazily through registry via session.Registry.Lookup —
// the same registry an out-of-process node's executor was Register'd into
// at spawn time, so a router on this session's task reaches an IPC sender
// created on another.
func New(logger logging.Logger, cfg Config, m *metrics.Registry, sess *session.Session, clientRx <-chan data.RuntimeData, clientTx chan<- data.RuntimeData, native map[string]nodes.Node, registry *session.Registry) *Router {
	g := sess.Graph
	r := &Router{
		logger:      logger,
		cfg:         cfg,
		metrics:     m,
		sess:        sess,
		g:           g,
		clientRx:    clientRx,
		clientTx:    clientTx,
		routerTx:    make(chan routedPacket, cfg.RouterOutputQueueCap),
		nodeInputs:  make(map[string]chan data.RuntimeData, len(g.NodeIDs())),
		native:      native,
		registry:    registry,
		descendants: make(map[string][]string, len(g.NodeIDs())),
		shutdownCh:  make(chan struct{}),
	}
	for _, id := range g.NodeIDs() {
		r.nodeInputs[id] = make(chan data.RuntimeData, cfg.PerNodeQueueCapacity)
		r.descendants[id] = transitiveDescendants(g, id)
		if _, ok := native[id]; !ok {
			r.oopIDs = append(r.oopIDs, id)
		}
	}
	return r
}

func transitiveDescendants(g *graph.Graph, id string) []string {
	seen := make(map[string]bool)
	var out []string
	var visit func(string)
	visit = func(n string) {
		for _, s := range g.Successors(n) {
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
			visit(s)
		}
	}
	visit(id)
	return out
}

// Run spawns every node task and the router's own main loop, blocking
// until the context is cancelled or Shutdown is called. It returns the
// first node-task spawn error, if any occurred during startup.
func (r *Router) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, gctx := errgroup.WithContext(ctx)
	for _, id := range r.g.TopologicalOrder() {
		id := id
		group.Go(func() error {
			r.runNodeTask(gctx, id)
			return nil
		})
	}
	for _, nodeID := range r.oopIDs {
		nodeID := nodeID
		sender, ok := r.registry.Lookup(r.sess.ID, nodeID)
		if !ok {
			r.logger.Errorw("out-of-process node has no registered command sender", "session_id", r.sess.ID, "node_id", nodeID)
			continue
		}
		group.Go(func() error {
			r.drainOutOfProcess(gctx, nodeID, sender)
			return nil
		})
	}

	group.Go(func() error {
		r.mainLoop(gctx)
		return nil
	})

	<-r.shutdownCh
	cancel()
	return group.Wait()
}

// Shutdown triggers teardown: node tasks observe the cancelled context,
// each native node's Shutdown is invoked, and the router's main loop
// exits. Safe to call more than once.
func (r *Router) Shutdown(ctx context.Context) {
	select {
	case <-r.shutdownCh:
		return // already shutting down
	default:
		close(r.shutdownCh)
	}
	for id, n := range r.native {
		if err := n.Shutdown(ctx); err != nil {
			r.logger.Errorw("node shutdown failed", "session_id", r.sess.ID, "node_id", id, "error", err)
		}
	}
}

// mainLoop is the router's single cooperative dispatch loop: client
// input, node outputs, and shutdown, with shutdown given priority.
func (r *Router) mainLoop(ctx context.Context) {
	for {
		select {
		case <-r.shutdownCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		select {
		case <-r.shutdownCh:
			return
		case <-ctx.Done():
			return
		case in, ok := <-r.clientRx:
			if !ok {
				r.Shutdown(ctx)
				continue
			}
			r.admitClientInput(ctx, in)
		case rp := <-r.routerTx:
			r.dispatch(ctx, rp)
		}
	}
}

// admitClientInput places a client packet into every source node's input
// queue, applying bounded-wait backpressure per spec: a full queue is
// retried for BackpressureWait before the packet is dropped with
// accounting.
func (r *Router) admitClientInput(ctx context.Context, pkt data.RuntimeData) {
	for _, src := range r.g.Sources() {
		ch := r.nodeInputs[src]
		select {
		case ch <- pkt:
			continue
		default:
		}

		timer := time.NewTimer(r.cfg.BackpressureWait)
		select {
		case ch <- pkt:
			timer.Stop()
		case <-timer.C:
			r.metrics.Node(r.sess.ID, src).BackpressureDropped.Inc()
			r.logger.Warnw("dropped client input due to backpressure", "session_id", r.sess.ID, "node_id", src)
		case <-ctx.Done():
			timer.Stop()
		}
	}
}

// dispatch handles one (source_node_id, packet) pair drained from
// router_tx. Data packets are pushed into each immediate successor's
// input queue; control packets are delivered directly to every transitive
// descendant's ProcessControlMessage instead, which both reaches nodes
// beyond the immediate hop and keeps control delivery from waiting behind
// a potentially full data queue several hops downstream.
func (r *Router) dispatch(ctx context.Context, rp routedPacket) {
	if ctrl, isCtrl := rp.Packet.(data.Control); isCtrl {
		for _, d := range r.descendants[rp.SourceNodeID] {
			r.deliverControl(ctx, d, ctrl)
		}
	} else {
		for _, next := range r.g.Successors(rp.SourceNodeID) {
			r.deliverData(ctx, next, rp.Packet)
		}
	}

	if r.isSink(rp.SourceNodeID) {
		select {
		case r.clientTx <- rp.Packet:
		case <-ctx.Done():
		}
	}
}

func (r *Router) isSink(nodeID string) bool {
	for _, s := range r.g.Sinks() {
		if s == nodeID {
			return true
		}
	}
	return false
}

func (r *Router) deliverData(ctx context.Context, nodeID string, pkt data.RuntimeData) {
	ch, ok := r.nodeInputs[nodeID]
	if !ok {
		return
	}
	select {
	case ch <- pkt:
	case <-ctx.Done():
	}
}

func (r *Router) deliverControl(ctx context.Context, nodeID string, ctrl data.Control) {
	if n, ok := r.native[nodeID]; ok {
		go func() {
			handled, err := n.ProcessControlMessage(ctx, ctrl)
			if err != nil {
				r.logger.Errorw("control message handling failed", "session_id", r.sess.ID, "node_id", nodeID, "error", err)
				return
			}
			if !handled {
				r.logger.Debugw("control message not handled (advisory)", "session_id", r.sess.ID, "node_id", nodeID, "kind", ctrl.Kind)
			}
		}()
		return
	}
	sender, ok := r.registry.Lookup(r.sess.ID, nodeID)
	if !ok {
		r.logger.Errorw("control message dispatch to out-of-process node failed: no registered sender", "session_id", r.sess.ID, "node_id", nodeID)
		return
	}
	if err := sender.Process(ctx, ctrl); err != nil {
		r.logger.Errorw("control message dispatch to out-of-process node failed", "session_id", r.sess.ID, "node_id", nodeID, "error", err)
	}
}

func (r *Router) drainOutOfProcess(ctx context.Context, nodeID string, sender session.CommandSender) {
	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-sender.Outputs():
			if !ok {
				return
			}
			r.metrics.Node(r.sess.ID, nodeID).PacketsOut.Inc()
			select {
			case r.routerTx <- routedPacket{SourceNodeID: nodeID, Packet: pkt}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// runNodeTask pulls inputs for one native node, dispatching Process calls
// as concurrent sub-tasks that complete out of order but whose outputs
// are forwarded to router_tx in submission order via forwardResults — the
// pipelined-but-ordered behavior the spec requires.
func (r *Router) runNodeTask(ctx context.Context, nodeID string) {
	n, ok := r.native[nodeID]
	if !ok {
		return // out-of-process node; drained separately
	}

	results := make(chan chan []data.RuntimeData, r.cfg.PerNodeQueueCapacity)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.forwardResults(ctx, nodeID, results)
	}()
	defer func() {
		close(results)
		<-done
	}()

	input := r.nodeInputs[nodeID]
	m := r.metrics.Node(r.sess.ID, nodeID)

	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-input:
			if !ok {
				return
			}
			m.PacketsIn.Inc()

			if ctrl, isCtrl := pkt.(data.Control); isCtrl {
				go func() {
					if _, err := n.ProcessControlMessage(ctx, ctrl); err != nil {
						r.logger.Errorw("node control handling failed", "session_id", r.sess.ID, "node_id", nodeID, "error", err)
					}
				}()
				continue
			}

			rc := make(chan []data.RuntimeData, 1)
			select {
			case results <- rc:
			case <-ctx.Done():
				return
			}
			go func(p data.RuntimeData) {
				start := time.Now()
				outs, err := n.Process(ctx, p)
				m.LatencyUs.Observe(float64(time.Since(start).Microseconds()))
				if err != nil {
					r.logger.Errorw("node process failed", "session_id", r.sess.ID, "node_id", nodeID, "error", coreerrors.Wrap(coreerrors.Execution, err, "node %s", nodeID))
					rc <- nil
					return
				}
				rc <- outs
			}(pkt)
		}
	}
}

func (r *Router) forwardResults(ctx context.Context, nodeID string, results <-chan chan []data.RuntimeData) {
	m := r.metrics.Node(r.sess.ID, nodeID)
	for rc := range results {
		var outs []data.RuntimeData
		select {
		case outs = <-rc:
		case <-ctx.Done():
			return
		}
		for _, o := range outs {
			m.PacketsOut.Inc()
			select {
			case r.routerTx <- routedPacket{SourceNodeID: nodeID, Packet: o}:
			case <-ctx.Done():
				return
			}
		}
	}
}
