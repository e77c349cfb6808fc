// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"github.com/joeycumines/logiface"
)

// FastPathMode controls whether the Loop may use the channel-based fast
// path when no user I/O FDs are registered.
type FastPathMode uint32

const (
	// FastPathAuto enables the fast path whenever no user I/O FDs are
	// registered (default).
	FastPathAuto FastPathMode = iota
	// FastPathForced keeps the fast path on even when it would normally
	// be rolled back. Intended for benchmarks and tests.
	FastPathForced
	// FastPathDisabled always uses the poll-based path.
	FastPathDisabled
)

// String returns a human-readable representation of the mode.
func (m FastPathMode) String() string {
	switch m {
	case FastPathAuto:
		return "Auto"
	case FastPathForced:
		return "Forced"
	case FastPathDisabled:
		return "Disabled"
	default:
		return "Unknown"
	}
}

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	logger                  *logiface.Logger[logiface.Event]
	strictMicrotaskOrdering bool
	fastPathMode            FastPathMode
	metricsEnabled          bool
	debugMode               bool
	ingressChunkSize        int
}

// --- Loop Options ---

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithStrictMicrotaskOrdering sets whether microtasks should be drained
// after each task execution for strict ordering.
// When enabled, microtasks are guaranteed to run after every task.
// When disabled (default), microtasks are drained in batches for better performance.
func WithStrictMicrotaskOrdering(enabled bool) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.strictMicrotaskOrdering = enabled
		return nil
	}}
}

// WithFastPathMode sets the fast path mode for Loop.
// See FastPathMode documentation for available modes.
func WithFastPathMode(mode FastPathMode) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.fastPathMode = mode
		return nil
	}}
}

// WithMetrics enables runtime metrics collection on the Loop.
// When enabled, metrics can be accessed via Loop.Metrics().
// This adds minimal overhead (e.g., record latency after each task, update queue depths).
// For zero-allocation hot paths, disable metrics in production.
func WithMetrics(enabled bool) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// WithLogger sets a structured logger for the Loop, using the logiface
// facade. A nil logger is accepted and disables structured output (critical
// conditions fall back to the standard library logger).
func WithLogger(logger *logiface.Logger[logiface.Event]) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithDebugMode enables verbose internal diagnostics.
func WithDebugMode(enabled bool) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.debugMode = enabled
		return nil
	}}
}

// WithIngressChunkSize overrides the ingress queue chunk size. The value is
// clamped to the supported range and rounded down to a power of two.
func WithIngressChunkSize(size int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.ingressChunkSize = normalizeIngressChunkSize(size)
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{
		fastPathMode:     FastPathAuto, // default
		ingressChunkSize: defaultIngressChunkSize,
	}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
