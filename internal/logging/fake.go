// Copyright (c) 2026 RemoteMedia Authors
//
// Licensed under GPL-2.0.
// See LICENSE for details.

package logging

import (
	"fmt"
	"sync"
	"time"
)

// Entry is one recorded call against a Fake logger.
type Entry struct {
	Level   string
	Message string
}

// Fake is an in-memory Logger used by tests to assert on log output without
// depending on zap's writer. Safe for concurrent use.
type Fake struct {
	mu      sync.Mutex
	entries []Entry
}

// NewFake returns a ready-to-use Fake logger.
func NewFake() *Fake { return &Fake{} }

// Entries returns a snapshot of everything logged so far.
func (f *Fake) Entries() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out
}

func (f *Fake) record(level, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, Entry{Level: level, Message: msg})
}

func (f *Fake) Debug(args ...interface{})            { f.record("debug", fmt.Sprint(args...)) }
func (f *Fake) Debugf(t string, args ...interface{}) { f.record("debug", fmt.Sprintf(t, args...)) }
func (f *Fake) Debugw(msg string, kv ...interface{}) { f.record("debug", msg) }
func (f *Fake) Info(args ...interface{})             { f.record("info", fmt.Sprint(args...)) }
func (f *Fake) Infof(t string, args ...interface{})  { f.record("info", fmt.Sprintf(t, args...)) }
func (f *Fake) Infow(msg string, kv ...interface{})  { f.record("info", msg) }
func (f *Fake) Warn(args ...interface{})             { f.record("warn", fmt.Sprint(args...)) }
func (f *Fake) Warnf(t string, args ...interface{})  { f.record("warn", fmt.Sprintf(t, args...)) }
func (f *Fake) Warnw(msg string, kv ...interface{})  { f.record("warn", msg) }
func (f *Fake) Error(args ...interface{})            { f.record("error", fmt.Sprint(args...)) }
func (f *Fake) Errorf(t string, args ...interface{}) { f.record("error", fmt.Sprintf(t, args...)) }
func (f *Fake) Errorw(msg string, kv ...interface{}) { f.record("error", msg) }
func (f *Fake) Fatal(args ...interface{})            { f.record("fatal", fmt.Sprint(args...)) }
func (f *Fake) Fatalf(t string, args ...interface{}) { f.record("fatal", fmt.Sprintf(t, args...)) }
func (f *Fake) Benchmark(op string, d time.Duration) { f.record("benchmark", op) }
func (f *Fake) Sync() error                          { return nil }
