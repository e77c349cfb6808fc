// futureobs.go - Observability hooks for the typed futures core
//
// Package-level configuration, following the same design as logging.go's
// global structured logger: the futures core has no per-instance home for a
// logger or metrics handle (futures are plain values, not loop-owned
// objects), so both are cross-cutting package state configured once at
// startup.

package eventloop

import (
	"sync"
	"time"

	"github.com/joeycumines/logiface"
)

var futureObs struct {
	sync.RWMutex
	logger  *logiface.Logger[logiface.Event]
	metrics *Metrics
}

// SetFutureLogger sets the structured logger used by the futures core:
// OperationState reports broken-promise and already-satisfied conditions at
// debug level, and the unwrap dispatcher reports shape-selection failures.
// A nil logger (the default) disables the output.
func SetFutureLogger(logger *logiface.Logger[logiface.Event]) {
	futureObs.Lock()
	defer futureObs.Unlock()
	futureObs.logger = logger
}

// SetFutureMetrics attaches a [Metrics] instance to the futures core:
// task launches record execution latency and the disjunction proxies record
// the winner-index distribution. Pass a loop's Metrics to share one
// instrument, or a standalone instance. A nil value (the default) disables
// recording.
func SetFutureMetrics(m *Metrics) {
	futureObs.Lock()
	defer futureObs.Unlock()
	futureObs.metrics = m
}

// futureDebug emits a debug-level event through the configured logger.
// A panicking logger must never take the core down with it.
func futureDebug(message string, fields func(*logiface.Builder[logiface.Event]) *logiface.Builder[logiface.Event]) {
	futureObs.RLock()
	logger := futureObs.logger
	futureObs.RUnlock()
	if logger == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	b := logger.Debug()
	if fields != nil {
		b = fields(b)
	}
	b.Log(message)
}

// recordFutureLatency records one task execution into the attached metrics.
func recordFutureLatency(start time.Time) {
	futureObs.RLock()
	m := futureObs.metrics
	futureObs.RUnlock()
	if m != nil {
		m.Latency.Record(time.Since(start))
	}
}

// recordWhenAnyWinner records a disjunction's first-ready child index.
func recordWhenAnyWinner(index int) {
	futureObs.RLock()
	m := futureObs.metrics
	futureObs.RUnlock()
	if m != nil {
		m.RecordWhenAnyWinner(index)
	}
}
