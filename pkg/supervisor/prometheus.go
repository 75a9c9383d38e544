package supervisor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsCollector implements MetricsCollector using Prometheus metrics
type PrometheusMetricsCollector struct {
	// Lifecycle metrics
	stateTransitions *prometheus.CounterVec
	state            *prometheus.GaugeVec
	restarts         prometheus.Counter

	// Performance metrics
	startDuration *prometheus.HistogramVec
	stopDuration  *prometheus.HistogramVec

	// Health metrics
	healthChecks  *prometheus.CounterVec
	probeDuration prometheus.Histogram

	// Error metrics
	errors *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewPrometheusMetricsCollector creates a new Prometheus metrics collector
func NewPrometheusMetricsCollector(namespace string) *PrometheusMetricsCollector {
	if namespace == "" {
		namespace = "swaggermcp"
	}
	const subsystem = "supervisor"

	pmc := &PrometheusMetricsCollector{
		registry: prometheus.NewRegistry(),
	}

	pmc.stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "state_transitions_total",
			Help:      "Total number of service state transitions",
		},
		[]string{"from_state", "to_state"},
	)

	pmc.state = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "state",
			Help:      "Current service state (1 for the active state)",
		},
		[]string{"state"},
	)

	pmc.restarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "restarts_total",
			Help:      "Total number of restart requests",
		},
	)

	pmc.startDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "start_duration_seconds",
			Help:      "Duration from spawn to Running or Failed",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"status"},
	)

	pmc.stopDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stop_duration_seconds",
			Help:      "Duration of service termination",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	pmc.healthChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "health_checks_total",
			Help:      "Total number of on-demand health checks",
		},
		[]string{"status"},
	)

	pmc.probeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "health_check_duration_seconds",
			Help:      "Duration of on-demand health checks",
			Buckets:   prometheus.DefBuckets,
		},
	)

	pmc.errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total number of supervisor errors",
		},
		[]string{"error_type"},
	)

	pmc.registry.MustRegister(
		pmc.stateTransitions,
		pmc.state,
		pmc.restarts,
		pmc.startDuration,
		pmc.stopDuration,
		pmc.healthChecks,
		pmc.probeDuration,
		pmc.errors,
	)

	return pmc
}

// StateTransition records a state transition
func (pmc *PrometheusMetricsCollector) StateTransition(from, to State) {
	pmc.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
	pmc.state.WithLabelValues(from.String()).Set(0)
	pmc.state.WithLabelValues(to.String()).Set(1)
}

// StartDuration records the duration of a start attempt
func (pmc *PrometheusMetricsCollector) StartDuration(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	pmc.startDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// StopDuration records the duration of a stop
func (pmc *PrometheusMetricsCollector) StopDuration(duration time.Duration, forced bool) {
	mode := "graceful"
	if forced {
		mode = "forced"
	}
	pmc.stopDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// ProcessError records a supervisor error
func (pmc *PrometheusMetricsCollector) ProcessError(errorType string) {
	pmc.errors.WithLabelValues(errorType).Inc()
}

// Restart records a restart request
func (pmc *PrometheusMetricsCollector) Restart() {
	pmc.restarts.Inc()
}

// HealthCheck records a health check outcome
func (pmc *PrometheusMetricsCollector) HealthCheck(status HealthStatus, duration time.Duration) {
	pmc.healthChecks.WithLabelValues(string(status)).Inc()
	pmc.probeDuration.Observe(duration.Seconds())
}

// Registry returns the Prometheus registry for HTTP exposition
func (pmc *PrometheusMetricsCollector) Registry() *prometheus.Registry {
	return pmc.registry
}
