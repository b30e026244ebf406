// Package metrics collects and exposes station runtime observability data.
//
// # Design rationale
//
// Two metric stores coexist in this package, the same split the teacher
// used for its function-invocation metrics:
//
//  1. The in-process Metrics struct for MetricsMessage's rolling
//     pass/fail-per-hour/day counters, pushed out over viewbus.
//  2. A Prometheus registry (prometheus.go) for scraping by external
//     monitoring systems.
//
// # Concurrency — hot path
//
// RecordIterationResult is called once per completed TestIteration and
// must be cheap. The rolling windows are mutex-guarded rather than
// lock-free, since an iteration completes on the order of seconds to
// minutes, not thousands of times a second — unlike the teacher's
// per-invocation hot path.
//
// RecordStepLatency is called far more often (once per step) and keeps its
// per-step counters in atomics, mirroring the teacher's FunctionMetrics
// pattern. RecordHeapDepth only sets a Prometheus gauge.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// rollingWindow counts pass/fail events within a trailing period, resetting
// whenever a check finds the window stale — the same lazy-rotate-on-access
// idiom the teacher's time-series buckets use, just with one bucket instead
// of a ring of 1440.
type rollingWindow struct {
	mu          sync.Mutex
	period      time.Duration
	windowStart time.Time
	pass        int64
	fail        int64
}

func newRollingWindow(period time.Duration) *rollingWindow {
	return &rollingWindow{period: period, windowStart: time.Now()}
}

func (w *rollingWindow) rotateLocked() {
	if time.Since(w.windowStart) >= w.period {
		w.pass, w.fail = 0, 0
		w.windowStart = time.Now()
	}
}

func (w *rollingWindow) record(pass bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rotateLocked()
	if pass {
		w.pass++
	} else {
		w.fail++
	}
}

func (w *rollingWindow) snapshot() (pass, fail int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rotateLocked()
	return w.pass, w.fail
}

// StepMetrics tracks latency for a single test step name.
type StepMetrics struct {
	Invocations atomic.Int64
	Failures    atomic.Int64
	TotalMs     atomic.Int64
	MinMs       atomic.Int64
	MaxMs       atomic.Int64
}

// Metrics collects and exposes station runtime metrics.
type Metrics struct {
	hour *rollingWindow
	day  *rollingWindow

	stepMetrics sync.Map // step name -> *StepMetrics

	startTime time.Time
}

// Global metrics instance.
var global = &Metrics{
	hour:      newRollingWindow(time.Hour),
	day:       newRollingWindow(24 * time.Hour),
	startTime: time.Now(),
}

// Global returns the global metrics instance.
func Global() *Metrics { return global }

// StartTime returns the time when the metrics system was initialized.
func StartTime() time.Time { return global.startTime }

// RecordIterationResult records a completed TestIteration's pass/fail
// outcome into the hour/day rolling windows and the Prometheus counter.
func (m *Metrics) RecordIterationResult(pass bool) {
	m.hour.record(pass)
	m.day.record(pass)
	RecordPrometheusIteration(pass)
}

// RecordStepLatency records a single step's run duration, attributing it
// by step name (connection-check, firmware, eeprom-config, ...).
func (m *Metrics) RecordStepLatency(stepName string, durationMs int64, failed bool) {
	sm := m.getStepMetrics(stepName)
	sm.Invocations.Add(1)
	if failed {
		sm.Failures.Add(1)
	}
	sm.TotalMs.Add(durationMs)
	updateMin(&sm.MinMs, durationMs)
	updateMax(&sm.MaxMs, durationMs)

	RecordPrometheusStepLatency(stepName, durationMs, failed)
}

// RecordHeapDepth records the actor worker's scheduling heap depth — the
// number of pending proxy calls queued behind the one currently executing.
func (m *Metrics) RecordHeapDepth(workerLabel string, depth int) {
	SetPrometheusHeapDepth(workerLabel, depth)
}

func (m *Metrics) getStepMetrics(stepName string) *StepMetrics {
	if v, ok := m.stepMetrics.Load(stepName); ok {
		return v.(*StepMetrics)
	}
	sm := &StepMetrics{}
	sm.MinMs.Store(int64(^uint64(0) >> 1))
	actual, _ := m.stepMetrics.LoadOrStore(stepName, sm)
	return actual.(*StepMetrics)
}

// GetStepMetrics returns the metrics for a specific step (or nil if none
// recorded yet).
func (m *Metrics) GetStepMetrics(stepName string) *StepMetrics {
	if v, ok := m.stepMetrics.Load(stepName); ok {
		return v.(*StepMetrics)
	}
	return nil
}

// MetricsSnapshot is the JSON shape MetricsMessage's viewbus frame carries.
type MetricsSnapshot struct {
	PassHour int64 `json:"pass_hour"`
	FailHour int64 `json:"fail_hour"`
	PassDay  int64 `json:"pass_day"`
	FailDay  int64 `json:"fail_day"`
}

// Snapshot returns a point-in-time MetricsMessage snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	passHour, failHour := m.hour.snapshot()
	passDay, failDay := m.day.snapshot()
	return MetricsSnapshot{
		PassHour: passHour,
		FailHour: failHour,
		PassDay:  passDay,
		FailDay:  failDay,
	}
}

// StepStats returns per-step metrics keyed by step name.
func (m *Metrics) StepStats() map[string]interface{} {
	result := make(map[string]interface{})

	m.stepMetrics.Range(func(key, value interface{}) bool {
		stepName := key.(string)
		sm := value.(*StepMetrics)

		total := sm.Invocations.Load()
		avgMs := float64(0)
		if total > 0 {
			avgMs = float64(sm.TotalMs.Load()) / float64(total)
		}

		minMs := sm.MinMs.Load()
		if minMs == int64(^uint64(0)>>1) {
			minMs = 0
		}

		result[stepName] = map[string]interface{}{
			"invocations": total,
			"failures":    sm.Failures.Load(),
			"avg_ms":      avgMs,
			"min_ms":      minMs,
			"max_ms":      sm.MaxMs.Load(),
		}
		return true
	})

	return result
}

// JSONHandler returns an HTTP handler that exposes metrics in JSON format.
func (m *Metrics) JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		snap := m.Snapshot()
		result := map[string]interface{}{
			"uptime_seconds": int64(time.Since(m.startTime).Seconds()),
			"pass_hour":      snap.PassHour,
			"fail_hour":      snap.FailHour,
			"pass_day":       snap.PassDay,
			"fail_day":       snap.FailDay,
			"steps":          m.StepStats(),
		}
		json.NewEncoder(w).Encode(result)
	})
}

func updateMin(target *atomic.Int64, value int64) {
	for {
		old := target.Load()
		if value >= old {
			return
		}
		if target.CompareAndSwap(old, value) {
			return
		}
	}
}

func updateMax(target *atomic.Int64, value int64) {
	for {
		old := target.Load()
		if value <= old {
			return
		}
		if target.CompareAndSwap(old, value) {
			return
		}
	}
}
