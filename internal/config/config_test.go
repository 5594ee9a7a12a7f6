// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSeedsDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 256, cfg.MaxConcurrentSessions)
	assert.Equal(t, 64, cfg.PerNodeQueueCapacity)
	assert.Equal(t, uint32(150), cfg.Speculative.LookbackMs)
	assert.Equal(t, float32(0.5), cfg.Speculative.VADThreshold)
}

func TestLoadHonorsEnvOverrideWithNestingDelimiter(t *testing.T) {
	t.Setenv("RMCORE_SPECULATIVE__PAD_MS", "200")
	t.Setenv("RMCORE_MAX_CONCURRENT_SESSIONS", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, uint32(200), cfg.Speculative.PadMs)
	assert.Equal(t, 10, cfg.MaxConcurrentSessions)
}

func TestLoadRejectsInvalidThreshold(t *testing.T) {
	t.Setenv("RMCORE_SPECULATIVE__VAD_THRESHOLD", "2.5")
	_, err := Load()
	assert.Error(t, err)
}
