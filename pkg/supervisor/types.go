package supervisor

import (
	"time"
)

// State represents the lifecycle state of the supervised service
type State int

const (
	// StateStopped - no process is running
	StateStopped State = iota
	// StateStarting - process spawned, waiting for readiness
	StateStarting
	// StateRunning - process passed the readiness probe
	StateRunning
	// StateStopping - termination requested, waiting for exit
	StateStopping
	// StateFailed - last start failed or the process crashed
	StateFailed
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a consistent view of the supervised process.
type Snapshot struct {
	State          State         `json:"state"`
	PID            int           `json:"pid,omitempty"`
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	StartedAt      time.Time     `json:"started_at,omitzero"`
	Uptime         time.Duration `json:"uptime_ns,omitempty"`
	Document       string        `json:"document"`
	DocumentExists bool          `json:"document_exists"`
	LastError      string        `json:"last_error,omitempty"`
	Restarts       int           `json:"restarts"`
}

// Running reports whether the service passed its readiness probe.
func (s Snapshot) Running() bool {
	return s.State == StateRunning
}

// HealthStatus classifies an on-demand health check.
type HealthStatus string

const (
	HealthHealthy     HealthStatus = "healthy"
	HealthUnhealthy   HealthStatus = "unhealthy"
	HealthUnreachable HealthStatus = "unreachable"
	HealthStopped     HealthStatus = "stopped"
	HealthError       HealthStatus = "error"
)

// HealthReport is the result of HealthCheck. Failures are recorded in Error.
type HealthReport struct {
	Status       HealthStatus  `json:"status"`
	ResponseTime time.Duration `json:"response_time_ns"`
	Endpoints    []string      `json:"endpoints,omitempty"`
	Error        string        `json:"error,omitempty"`
}
