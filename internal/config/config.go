// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

// Package config loads the core's structural tunables — queue
// capacities, gate timings, health-probe intervals, shutdown grace — from
// the environment via viper, validated with struct tags before use. It
// never reads a manifest file or parses CLI flags: those are external
// collaborators this package doesn't know about.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Speculative holds the speculative VAD gate's tunables.
type Speculative struct {
	LookbackMs   uint32  `mapstructure:"lookback_ms" validate:"gte=0"`
	LookaheadMs  uint32  `mapstructure:"lookahead_ms" validate:"gte=0"`
	MinSpeechMs  uint32  `mapstructure:"min_speech_ms" validate:"gte=0"`
	MinSilenceMs uint32  `mapstructure:"min_silence_ms" validate:"gte=0"`
	PadMs        uint32  `mapstructure:"pad_ms" validate:"gte=0"`
	VADThreshold float32 `mapstructure:"vad_threshold" validate:"gte=0,lte=1"`
}

// Config is the full set of core-level options recognized at the
// transport boundary.
type Config struct {
	MaxConcurrentSessions int `mapstructure:"max_concurrent_sessions" validate:"gt=0"`
	PerNodeQueueCapacity  int `mapstructure:"per_node_queue_capacity" validate:"gt=0"`
	RouterOutputQueueCap  int `mapstructure:"router_output_queue_capacity" validate:"gt=0"`
	ShmMaxPayloadBytes    int `mapstructure:"shm_max_payload_bytes" validate:"gt=0"`

	IPCThreadIdleYield time.Duration `mapstructure:"ipc_thread_idle_yield"`

	Speculative Speculative `mapstructure:"speculative"`

	HealthProbeIntervalMs int `mapstructure:"health_probe_interval_ms" validate:"gt=0"`
	HealthProbeTimeoutMs  int `mapstructure:"health_probe_timeout_ms" validate:"gt=0"`

	ShutdownGraceMs int `mapstructure:"shutdown_grace_ms" validate:"gt=0"`
}

// defaults mirrors the table this module's boundary recognizes; callers
// override via RMCORE_-prefixed environment variables, e.g.
// RMCORE_SPECULATIVE__PAD_MS=200.
func defaults() map[string]interface{} {
	return map[string]interface{}{
		"max_concurrent_sessions":      256,
		"per_node_queue_capacity":      64,
		"router_output_queue_capacity": 256,
		"shm_max_payload_bytes":        16 << 20,
		"ipc_thread_idle_yield":        "0s",
		"speculative.lookback_ms":      150,
		"speculative.lookahead_ms":     50,
		"speculative.min_speech_ms":    200,
		"speculative.min_silence_ms":   300,
		"speculative.pad_ms":           150,
		"speculative.vad_threshold":    0.5,
		"health_probe_interval_ms":     2000,
		"health_probe_timeout_ms":      1000,
		"shutdown_grace_ms":            2000,
	}
}

// Load reads Config from the environment (prefix RMCORE_, __ as the
// nesting delimiter matching the mapstructure field names above),
// seeds defaults, and validates the result.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("rmcore")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	for key, val := range defaults() {
		v.SetDefault(key, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal core config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate core config: %w", err)
	}
	return &cfg, nil
}
