// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

// Package logging defines the structured-logging contract used across the
// streaming execution core. It mirrors a sugared zap logger's call shapes so
// that callers embedding the core into an existing service can pass their own
// zap-backed logger straight through.
package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger every component in this module depends on.
// Never constructed by the core itself in production — callers supply one,
// typically backed by zap. Components never log to stdout/stderr directly.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, kv ...interface{})

	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, kv ...interface{})

	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, kv ...interface{})

	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, kv ...interface{})

	Fatal(args ...interface{})
	Fatalf(template string, args ...interface{})

	// Benchmark records the wall-clock duration of a named operation. Hot
	// paths (node process, IPC hop, capability resolution) call this so
	// latency regressions show up in logs without a separate metrics sink.
	Benchmark(op string, d time.Duration)

	// Sync flushes any buffered log entries. Safe to call on shutdown even
	// when the underlying writer doesn't buffer.
	Sync() error
}

// zapLogger adapts a zap.SugaredLogger to Logger.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZap wraps an existing zap.Logger. Pass zap.NewProduction() or
// zap.NewDevelopment() depending on environment.
func NewZap(base *zap.Logger) Logger {
	return &zapLogger{sugar: base.Sugar()}
}

// NewNop returns a Logger that discards everything, for tests that don't
// care about log output but need to satisfy the interface.
func NewNop() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar()}
}

func (l *zapLogger) Debug(args ...interface{})                   { l.sugar.Debug(args...) }
func (l *zapLogger) Debugf(template string, args ...interface{}) { l.sugar.Debugf(template, args...) }
func (l *zapLogger) Debugw(msg string, kv ...interface{})        { l.sugar.Debugw(msg, kv...) }

func (l *zapLogger) Info(args ...interface{})                   { l.sugar.Info(args...) }
func (l *zapLogger) Infof(template string, args ...interface{}) { l.sugar.Infof(template, args...) }
func (l *zapLogger) Infow(msg string, kv ...interface{})        { l.sugar.Infow(msg, kv...) }

func (l *zapLogger) Warn(args ...interface{})                   { l.sugar.Warn(args...) }
func (l *zapLogger) Warnf(template string, args ...interface{}) { l.sugar.Warnf(template, args...) }
func (l *zapLogger) Warnw(msg string, kv ...interface{})        { l.sugar.Warnw(msg, kv...) }

func (l *zapLogger) Error(args ...interface{})                   { l.sugar.Error(args...) }
func (l *zapLogger) Errorf(template string, args ...interface{}) { l.sugar.Errorf(template, args...) }
func (l *zapLogger) Errorw(msg string, kv ...interface{})        { l.sugar.Errorw(msg, kv...) }

func (l *zapLogger) Fatal(args ...interface{})                   { l.sugar.Fatal(args...) }
func (l *zapLogger) Fatalf(template string, args ...interface{}) { l.sugar.Fatalf(template, args...) }

func (l *zapLogger) Benchmark(op string, d time.Duration) {
	l.sugar.Debugw("benchmark", "op", op, "duration_us", d.Microseconds())
}

func (l *zapLogger) Sync() error { return l.sugar.Sync() }

// Level reports the minimum enabled level, exposed for components that skip
// expensive formatting when debug logging is off.
func Level(base *zap.Logger) zapcore.Level {
	return base.Level()
}
