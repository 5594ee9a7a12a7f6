// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

// Package metrics implements the in-process counters, histograms, and
// gauges pushed to an external collector by value. This package never
// exports to Prometheus/Datadog/etc. itself — that's the embedding
// process's job; components here only accumulate numbers.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Counter is a lock-free monotonic counter.
type Counter struct{ v atomic.Int64 }

func (c *Counter) Inc()         { c.v.Add(1) }
func (c *Counter) Add(n int64)  { c.v.Add(n) }
func (c *Counter) Value() int64 { return c.v.Load() }

// Histogram is a fixed-bucket histogram; each sample is counted in exactly
// one bucket (the first whose upper bound is >= the sample). Observe is lock-free;
// only Snapshot walks the bucket slice, and that's for reporting, not the
// hot path.
type Histogram struct {
	bounds  []float64 // ascending upper bounds, in the unit the caller chose
	buckets []atomic.Int64
	sum     atomic.Int64 // fixed-point: same unit as bounds, truncated to int64
	count   atomic.Int64
}

// NewHistogram builds a histogram with the given ascending bucket upper
// bounds. Values beyond the last bound fall into an implicit +Inf bucket.
func NewHistogram(bounds []float64) *Histogram {
	b := append([]float64(nil), bounds...)
	sort.Float64s(b)
	return &Histogram{bounds: b, buckets: make([]atomic.Int64, len(b)+1)}
}

// DefaultLatencyBounds covers sub-millisecond to multi-second latencies in
// microseconds, suited to latency_us and ipc_hop_us.
func DefaultLatencyBounds() []float64 {
	return []float64{50, 100, 250, 500, 1000, 5000, 20000, 100000, 500000}
}

// Observe records one sample.
func (h *Histogram) Observe(v float64) {
	idx := sort.SearchFloat64s(h.bounds, v)
	h.buckets[idx].Add(1)
	h.sum.Add(int64(v))
	h.count.Add(1)
}

// Snapshot is a point-in-time copy suitable for export.
type Snapshot struct {
	Bounds  []float64
	Buckets []int64
	Sum     int64
	Count   int64
}

func (h *Histogram) Snapshot() Snapshot {
	buckets := make([]int64, len(h.buckets))
	for i := range h.buckets {
		buckets[i] = h.buckets[i].Load()
	}
	return Snapshot{Bounds: h.bounds, Buckets: buckets, Sum: h.sum.Load(), Count: h.count.Load()}
}

// NodeMetrics is the counter/histogram set kept per (session, node).
type NodeMetrics struct {
	PacketsIn            Counter
	PacketsOut           Counter
	SpeculationAccepted  Counter
	SpeculationCancelled Counter
	BackpressureDropped  Counter
	LatencyUs            *Histogram
}

func newNodeMetrics() *NodeMetrics {
	return &NodeMetrics{LatencyUs: NewHistogram(DefaultLatencyBounds())}
}

// Registry holds every session's and node's metrics plus the process-wide
// gauges. Node lookup takes a read lock, and the write lock only on the
// (rare) first access for a given (session, node) pair; every increment
// on the returned *NodeMetrics is lock-free.
type Registry struct {
	mu         sync.RWMutex
	nodes      map[string]*NodeMetrics
	ipcHopUs   *Histogram
	queueDepth *Histogram

	sessionsActive   atomic.Int64
	ipcThreadsActive atomic.Int64
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		nodes:      make(map[string]*NodeMetrics),
		ipcHopUs:   NewHistogram(DefaultLatencyBounds()),
		queueDepth: NewHistogram([]float64{1, 4, 16, 64, 256, 1024}),
	}
}

func key(sessionID, nodeID string) string { return sessionID + "|" + nodeID }

// Node returns the NodeMetrics for (sessionID, nodeID), creating it on
// first access.
func (r *Registry) Node(sessionID, nodeID string) *NodeMetrics {
	k := key(sessionID, nodeID)

	r.mu.RLock()
	m, ok := r.nodes[k]
	r.mu.RUnlock()
	if ok {
		return m
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.nodes[k]; ok {
		return m
	}
	m = newNodeMetrics()
	r.nodes[k] = m
	return m
}

// DropSession removes a session's per-node metrics, called on teardown so
// the map doesn't grow unbounded across the process's lifetime.
func (r *Registry) DropSession(sessionID string) {
	prefix := sessionID + "|"
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.nodes {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(r.nodes, k)
		}
	}
}

func (r *Registry) IPCHopUs() *Histogram   { return r.ipcHopUs }
func (r *Registry) QueueDepth() *Histogram { return r.queueDepth }

func (r *Registry) SessionOpened()        { r.sessionsActive.Add(1) }
func (r *Registry) SessionClosed()        { r.sessionsActive.Add(-1) }
func (r *Registry) SessionsActive() int64 { return r.sessionsActive.Load() }

func (r *Registry) IPCThreadStarted()       { r.ipcThreadsActive.Add(1) }
func (r *Registry) IPCThreadStopped()       { r.ipcThreadsActive.Add(-1) }
func (r *Registry) IPCThreadsActive() int64 { return r.ipcThreadsActive.Load() }
