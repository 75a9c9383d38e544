package supervisor

import (
	"log/slog"
	"net/http"
	"time"
)

// Option configures the Supervisor
type Option func(*Supervisor)

// WithHost sets the address the service binds
func WithHost(host string) Option {
	return func(s *Supervisor) {
		s.host = host
	}
}

// WithPort sets the port the service binds
func WithPort(port int) Option {
	return func(s *Supervisor) {
		s.port = port
	}
}

// WithCommand sets the runner invoked with the document's base name,
// followed by --host and --port. Defaults to "go run".
func WithCommand(name string, args ...string) Option {
	return func(s *Supervisor) {
		s.command = append([]string{name}, args...)
	}
}

// WithEnv appends KEY=VALUE pairs to the service environment
func WithEnv(env ...string) Option {
	return func(s *Supervisor) {
		s.env = append(s.env, env...)
	}
}

// WithCleanEnv starts the service with only the toolchain variables it
// needs instead of inheriting the supervisor's environment
func WithCleanEnv(clean bool) Option {
	return func(s *Supervisor) {
		s.cleanEnv = clean
	}
}

// WithCredential runs the service as the given user and group (unix only)
func WithCredential(uid, gid uint32) Option {
	return func(s *Supervisor) {
		s.credential = &Credential{UID: uid, GID: gid}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// WithMetricsCollector sets the metrics collector
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(s *Supervisor) {
		s.metrics = mc
	}
}

// WithProbeInterval sets the readiness poll interval
func WithProbeInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		s.probeInterval = d
	}
}

// WithProbeTimeout bounds a single /docs request
func WithProbeTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		s.probeTimeout = d
	}
}

// WithKillGrace sets how long to wait for exit after a forceful kill
func WithKillGrace(d time.Duration) Option {
	return func(s *Supervisor) {
		s.killGrace = d
	}
}

// WithPortReleaseTimeout bounds the wait for the port between stop and start
func WithPortReleaseTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		s.portReleaseTimeout = d
	}
}

// WithHTTPClient sets the client used for probes
func WithHTTPClient(c *http.Client) Option {
	return func(s *Supervisor) {
		s.client = c
	}
}

// WithReload enables Watch and sets its start timeout and debounce delay
func WithReload(startTimeout, debounce time.Duration) Option {
	return func(s *Supervisor) {
		s.reload = true
		s.reloadTimeout = startTimeout
		s.reloadDebounce = debounce
	}
}

// WithLogTail sets how many service output lines are retained
func WithLogTail(lines int) Option {
	return func(s *Supervisor) {
		s.logs = newLogTail(lines)
	}
}
