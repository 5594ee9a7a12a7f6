// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistogramBucketsValuesByUpperBound(t *testing.T) {
	h := NewHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)

	snap := h.Snapshot()
	assert.Equal(t, []int64{1, 1, 1}, snap.Buckets)
	assert.Equal(t, int64(3), snap.Count)
	assert.Equal(t, int64(555), snap.Sum)
}

func TestRegistryNodeIsStablePerSessionAndNode(t *testing.T) {
	r := NewRegistry()
	a := r.Node("sess-1", "node-a")
	a.PacketsIn.Inc()

	again := r.Node("sess-1", "node-a")
	assert.Same(t, a, again)
	assert.Equal(t, int64(1), again.PacketsIn.Value())

	other := r.Node("sess-1", "node-b")
	assert.NotSame(t, a, other)
}

func TestDropSessionRemovesOnlyThatSessionsNodes(t *testing.T) {
	r := NewRegistry()
	r.Node("sess-1", "node-a").PacketsIn.Inc()
	r.Node("sess-2", "node-a").PacketsIn.Inc()

	r.DropSession("sess-1")

	assert.Equal(t, int64(0), r.Node("sess-1", "node-a").PacketsIn.Value(), "dropped session's node is recreated fresh")
	assert.Equal(t, int64(1), r.Node("sess-2", "node-a").PacketsIn.Value(), "other session's metrics survive")
}

func TestSessionsActiveGauge(t *testing.T) {
	r := NewRegistry()
	r.SessionOpened()
	r.SessionOpened()
	r.SessionClosed()
	assert.Equal(t, int64(1), r.SessionsActive())
}
