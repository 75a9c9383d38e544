package supervisor

import (
	"time"
)

// MetricsCollector defines the interface for collecting supervisor metrics
type MetricsCollector interface {
	// StateTransition records a lifecycle state change
	StateTransition(from, to State)

	// StartDuration records how long a start took to reach Running or Failed
	StartDuration(duration time.Duration, err error)

	// StopDuration records how long a stop took and whether it was forced
	StopDuration(duration time.Duration, forced bool)

	// ProcessError records a failure by error code
	ProcessError(errorType string)

	// Restart records a restart request
	Restart()

	// HealthCheck records an on-demand health check
	HealthCheck(status HealthStatus, duration time.Duration)
}

// noopMetricsCollector is a no-op implementation of MetricsCollector
type noopMetricsCollector struct{}

func (n *noopMetricsCollector) StateTransition(from, to State)                          {}
func (n *noopMetricsCollector) StartDuration(duration time.Duration, err error)         {}
func (n *noopMetricsCollector) StopDuration(duration time.Duration, forced bool)        {}
func (n *noopMetricsCollector) ProcessError(errorType string)                           {}
func (n *noopMetricsCollector) Restart()                                                {}
func (n *noopMetricsCollector) HealthCheck(status HealthStatus, duration time.Duration) {}

// NewNoopMetricsCollector creates a no-op metrics collector
func NewNoopMetricsCollector() MetricsCollector {
	return &noopMetricsCollector{}
}
