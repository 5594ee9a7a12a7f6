// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

// Package session defines the Session type and the process-wide registry
// that lets a session router reach the command sender an out-of-process
// node executor created on a different goroutine. It's the one piece of
// unavoidable global state the core carries: a router on one task must
// reach IPC senders created on another.
package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/remotemedia/core/internal/data"
	"github.com/remotemedia/core/internal/graph"
)

// Session is one client streaming interaction: it owns a graph instance
// and every resource created for its lifetime (node instances, executors,
// IPC threads). It carries no persistence — state is in-memory only for
// as long as the stream runs.
type Session struct {
	ID    string
	Graph *graph.Graph
}

// New constructs a Session. If id is empty, a fresh one is generated.
func New(id string, g *graph.Graph) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{ID: id, Graph: g}
}

// registryKey identifies one out-of-process node's command sender slot.
type registryKey struct {
	SessionID string
	NodeID    string
}

// CommandSender is the narrow capability the global registry exposes: a
// way to dispatch a packet to an out-of-process node, and to read its
// decoded output stream, without the caller needing to know which
// goroutine owns its IPC channel thread.
type CommandSender interface {
	Process(ctx context.Context, pkt data.RuntimeData) error
	Outputs() <-chan data.RuntimeData
}

// Registry is the process-wide map described in the concurrency model:
// keyed by (session_id, node_id), guarded by a read-mostly lock, written
// on init/teardown and read on every dispatch. Keying on both ids (rather
// than node_id alone) means a leaked entry from a crashed prior session
// can never collide with a fresh session reusing the same node id.
type Registry struct {
	mu      sync.RWMutex
	senders map[registryKey]CommandSender
}

// NewRegistry constructs an empty global registry.
func NewRegistry() *Registry {
	return &Registry{senders: make(map[registryKey]CommandSender)}
}

// Register installs a node's command sender. Called once at node init.
func (r *Registry) Register(sessionID, nodeID string, sender CommandSender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[registryKey{sessionID, nodeID}] = sender
}

// Unregister removes a node's entry. Called during teardown.
func (r *Registry) Unregister(sessionID, nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.senders, registryKey{sessionID, nodeID})
}

// Lookup returns a node's command sender, if still registered.
func (r *Registry) Lookup(sessionID, nodeID string) (CommandSender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.senders[registryKey{sessionID, nodeID}]
	return s, ok
}

// DropSession removes every entry for a session, called once at session
// teardown so a forgotten unregister can't leak across the registry's
// process-wide lifetime.
func (r *Registry) DropSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.senders {
		if k.SessionID == sessionID {
			delete(r.senders, k)
		}
	}
}
