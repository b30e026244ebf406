package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps prometheus collectors for station runtime metrics.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	iterationsTotal *prometheus.CounterVec

	stepDuration *prometheus.HistogramVec
	proxyLatency *prometheus.HistogramVec

	uptime    prometheus.GaugeFunc
	heapDepth *prometheus.GaugeVec

	circuitBreakerState      *prometheus.GaugeVec
	circuitBreakerTripsTotal *prometheus.CounterVec
}

// Default histogram buckets for step duration (in milliseconds).
var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

var promMetrics *PrometheusMetrics

// InitPrometheus initializes the Prometheus metrics subsystem.
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		iterationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "iterations_total",
				Help:      "Total number of completed test iterations",
			},
			[]string{"result"},
		),

		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_milliseconds",
				Help:      "Duration of a test step run in milliseconds",
				Buckets:   buckets,
			},
			[]string{"step", "result"},
		),

		proxyLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "proxy_call_latency_milliseconds",
				Help:      "Latency of an instrument proxy call, from Issue to resolved Promise",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500},
			},
			[]string{"instrument", "method"},
		),

		heapDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "worker_heap_depth",
				Help:      "Number of pending proxy calls queued in an actor worker's scheduling heap",
			},
			[]string{"worker"},
		),

		circuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Current circuit breaker state (0=closed, 1=open, 2=half_open)",
			},
			[]string{"instrument"},
		),

		circuitBreakerTripsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_trips_total",
				Help:      "Total circuit breaker state transitions",
			},
			[]string{"instrument", "to_state"},
		),
	}

	pm.uptime = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Time since the station runtime started",
		},
		func() float64 {
			return time.Since(StartTime()).Seconds()
		},
	)

	registry.MustRegister(
		pm.iterationsTotal,
		pm.stepDuration,
		pm.proxyLatency,
		pm.uptime,
		pm.heapDepth,
		pm.circuitBreakerState,
		pm.circuitBreakerTripsTotal,
	)

	promMetrics = pm
}

// RecordPrometheusIteration records a completed iteration's pass/fail result.
func RecordPrometheusIteration(pass bool) {
	if promMetrics == nil {
		return
	}
	result := "pass"
	if !pass {
		result = "fail"
	}
	promMetrics.iterationsTotal.WithLabelValues(result).Inc()
}

// RecordPrometheusStepLatency records a step's duration in Prometheus.
func RecordPrometheusStepLatency(stepName string, durationMs int64, failed bool) {
	if promMetrics == nil {
		return
	}
	result := "pass"
	if failed {
		result = "fail"
	}
	promMetrics.stepDuration.WithLabelValues(stepName, result).Observe(float64(durationMs))
}

// RecordProxyLatency records an instrument proxy call's round-trip latency.
func RecordProxyLatency(instrument, method string, durationMs float64) {
	if promMetrics == nil {
		return
	}
	promMetrics.proxyLatency.WithLabelValues(instrument, method).Observe(durationMs)
}

// SetPrometheusHeapDepth sets the scheduling heap depth gauge for a worker.
func SetPrometheusHeapDepth(workerLabel string, depth int) {
	if promMetrics == nil {
		return
	}
	promMetrics.heapDepth.WithLabelValues(workerLabel).Set(float64(depth))
}

// SetCircuitBreakerState sets the circuit breaker state gauge for an
// instrument. state: 0=closed, 1=open, 2=half_open.
func SetCircuitBreakerState(instrument string, state int) {
	if promMetrics == nil {
		return
	}
	promMetrics.circuitBreakerState.WithLabelValues(instrument).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker state transition.
func RecordCircuitBreakerTrip(instrument, toState string) {
	if promMetrics == nil {
		return
	}
	promMetrics.circuitBreakerTripsTotal.WithLabelValues(instrument, toState).Inc()
}

// PrometheusHandler returns an HTTP handler for Prometheus metrics scraping.
func PrometheusHandler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("prometheus metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// PrometheusRegistry returns the prometheus registry (for custom collectors).
func PrometheusRegistry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}
