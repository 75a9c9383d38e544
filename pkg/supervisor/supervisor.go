// Package supervisor owns the lifecycle of the single generated service
// process: start with a readiness probe, graceful stop with escalation,
// restart with a bounded wait for the port, status and on-demand health.
//
// # State machine
//
//	Stopped --Start--> Starting --ready--> Running
//	                            \--timeout/exit--> Failed
//	Running/Starting --Stop--> Stopping --> Stopped
//	Failed --Stop--> Stopped
//	Running --unexpected exit--> Failed
//
// Start, Stop and Restart are serialized. Status and HealthCheck may run
// concurrently with them and always observe a consistent snapshot.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ibrahimsaleem/Swaggermcp/pkg/apperr"
)

const (
	defaultHost               = "127.0.0.1"
	defaultPort               = 8001
	defaultProbeInterval      = 500 * time.Millisecond
	defaultProbeTimeout       = 2 * time.Second
	defaultKillGrace          = 2 * time.Second
	defaultPortReleaseTimeout = 5 * time.Second
	defaultLogTail            = 200
)

// Supervisor manages one external service process.
type Supervisor struct {
	// opMu serializes Start, Stop and Restart
	opMu sync.Mutex

	// mu guards the fields below it
	mu            sync.RWMutex
	state         State
	proc          *processHandle
	startedAt     time.Time
	lastErr       error
	restarts      int
	attemptedHash string

	document           string
	host               string
	port               int
	command            []string
	env                []string
	cleanEnv           bool
	credential         *Credential
	probeInterval      time.Duration
	probeTimeout       time.Duration
	killGrace          time.Duration
	portReleaseTimeout time.Duration
	reload             bool
	reloadTimeout      time.Duration
	reloadDebounce     time.Duration
	client             *http.Client
	logger             *slog.Logger
	metrics            MetricsCollector
	logs               *logTail
}

// New creates a Supervisor for the service document at path. It starts in
// StateStopped.
func New(document string, opts ...Option) *Supervisor {
	s := &Supervisor{
		state:              StateStopped,
		document:           document,
		host:               defaultHost,
		port:               defaultPort,
		command:            []string{"go", "run"},
		probeInterval:      defaultProbeInterval,
		probeTimeout:       defaultProbeTimeout,
		killGrace:          defaultKillGrace,
		portReleaseTimeout: defaultPortReleaseTimeout,
		reloadTimeout:      30 * time.Second,
		reloadDebounce:     time.Second,
		logger:             slog.Default(),
		metrics:            NewNoopMetricsCollector(),
		logs:               newLogTail(defaultLogTail),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: s.probeTimeout}
	}
	s.logger = s.logger.With("component", "supervisor", "document", document)
	return s
}

// BaseURL returns the URL clients use to reach the service.
func (s *Supervisor) BaseURL() string {
	return "http://" + hostPort(clientHost(s.host), s.port)
}

// Start launches the service and waits up to timeout for readiness. It is a
// no-op when Running and returns the recorded failure when Failed.
func (s *Supervisor) Start(ctx context.Context, timeout time.Duration) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.start(ctx, timeout)
}

// Stop terminates the service, escalating to a kill after timeout. It always
// leaves the supervisor Stopped.
func (s *Supervisor) Stop(ctx context.Context, timeout time.Duration) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.stop(ctx, timeout)
}

// Restart stops the service, waits for the port to be released and starts it
// again. It returns with the supervisor Running or Failed.
func (s *Supervisor) Restart(ctx context.Context, timeout time.Duration) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.restart(ctx, timeout)
}

func (s *Supervisor) restart(ctx context.Context, timeout time.Duration) error {
	s.metrics.Restart()
	s.mu.Lock()
	s.restarts++
	s.mu.Unlock()

	s.logger.Info("restarting service")
	if err := s.stop(ctx, timeout); err != nil {
		s.logger.Warn("stop during restart reported an error", "error", err)
	}
	if err := s.awaitPortRelease(ctx); err != nil {
		return s.fail(err)
	}
	return s.start(ctx, timeout)
}

func (s *Supervisor) start(ctx context.Context, timeout time.Duration) error {
	s.mu.RLock()
	state, lastErr := s.state, s.lastErr
	s.mu.RUnlock()

	switch state {
	case StateRunning:
		return nil
	case StateFailed:
		return lastErr
	}

	if _, err := os.Stat(s.document); err != nil {
		return s.fail(apperr.New(apperr.CodeProcessStartFailed, "service document not found").
			WithContext("document", s.document).
			WithCause(err).
			WithSuggestion("Upload a source file or write a placeholder document first"))
	}
	if !PortAvailable(s.host, s.port) {
		return s.fail(apperr.ErrPortUnavailable(s.host, s.port))
	}

	began := time.Now()
	h, err := s.spawn()
	if err != nil {
		err = s.fail(apperr.New(apperr.CodeProcessStartFailed, "spawn service process").
			WithContext("command", strings.Join(s.command, " ")).
			WithCause(err))
		s.metrics.StartDuration(time.Since(began), err)
		return err
	}

	s.mu.Lock()
	from := s.state
	s.proc = h
	s.attemptedHash = h.docHash
	s.state = StateStarting
	s.mu.Unlock()
	s.metrics.StateTransition(from, StateStarting)

	if err := s.waitReady(ctx, h, timeout); err != nil {
		s.kill(h)
		err = s.fail(err)
		s.metrics.StartDuration(time.Since(began), err)
		return err
	}

	if err := s.markRunning(h); err != nil {
		s.metrics.StartDuration(time.Since(began), err)
		return err
	}
	s.metrics.StartDuration(time.Since(began), nil)
	s.logger.Info("service ready", "pid", h.pid, "url", s.BaseURL(), "startup", time.Since(began).Round(time.Millisecond))
	return nil
}

// markRunning moves Starting to Running unless the process died after the
// probe succeeded.
func (s *Supervisor) markRunning(h *processHandle) error {
	s.mu.Lock()
	if h.hasExited() {
		s.mu.Unlock()
		return s.fail(s.exitError(h, "service exited right after becoming ready"))
	}
	from := s.state
	s.state = StateRunning
	s.startedAt = h.startedAt
	s.lastErr = nil
	s.mu.Unlock()

	s.metrics.StateTransition(from, StateRunning)
	return nil
}

func (s *Supervisor) waitReady(ctx context.Context, h *processHandle, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(s.probeInterval)
	defer ticker.Stop()

	var lastProbe error
	for {
		if h.hasExited() {
			return s.exitError(h, "service exited before becoming ready")
		}
		if lastProbe = s.probe(ctx); lastProbe == nil {
			return nil
		}
		select {
		case <-h.exited:
		case <-ticker.C:
		case <-ctx.Done():
			return apperr.ErrStartTimeout(s.document, timeout, lastProbe).
				WithContext("log_tail", strings.Join(s.logs.last(5), " | "))
		}
	}
}

func (s *Supervisor) exitError(h *processHandle, msg string) *apperr.Error {
	return apperr.New(apperr.CodeProcessStartFailed, msg).
		WithContext("pid", h.pid).
		WithContext("log_tail", strings.Join(s.logs.last(5), " | ")).
		WithCause(h.waitErr).
		WithSuggestion("Check the uploaded source compiles: the log tail holds the toolchain output")
}

func (s *Supervisor) stop(ctx context.Context, timeout time.Duration) error {
	s.mu.RLock()
	state, h := s.state, s.proc
	s.mu.RUnlock()

	switch state {
	case StateStopped:
		return nil
	case StateFailed:
		s.transition(StateStopped)
		return nil
	}
	if h == nil {
		s.transition(StateStopped)
		return nil
	}

	began := time.Now()
	h.stopping.Store(true)
	s.transition(StateStopping)
	s.logger.Info("stopping service", "pid", h.pid)

	forced := false
	// ErrProcessDone means the process exited between the snapshot and the signal
	if err := terminate(h); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Warn("graceful termination signal failed", "pid", h.pid, "error", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-h.exited:
	case <-timer.C:
		forced = true
	case <-ctx.Done():
		forced = true
	}

	if forced {
		err := apperr.New(apperr.CodeProcessStopTimeout, "service ignored termination, killing").
			WithContext("pid", h.pid).
			WithContext("timeout", timeout)
		s.logger.Warn(err.Message, "pid", h.pid, "timeout", timeout)
		s.metrics.ProcessError(string(err.Code))
		s.kill(h)
	}

	s.mu.Lock()
	s.proc = nil
	s.startedAt = time.Time{}
	s.state = StateStopped
	s.mu.Unlock()
	s.metrics.StateTransition(StateStopping, StateStopped)

	s.metrics.StopDuration(time.Since(began), forced)
	s.logger.Info("service stopped", "pid", h.pid, "forced", forced, "duration", time.Since(began).Round(time.Millisecond))
	return nil
}

// kill sends SIGKILL to the process group and waits the kill grace for exit.
// Failure to reap is logged.
func (s *Supervisor) kill(h *processHandle) {
	h.stopping.Store(true)
	if err := forceKill(h); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Warn("kill failed", "pid", h.pid, "error", err)
	}
	select {
	case <-h.exited:
	case <-time.After(s.killGrace):
		s.logger.Error("process not reaped after kill", "pid", h.pid, "grace", s.killGrace)
	}
}

// onExit runs when the process exits. An exit nobody asked for while Running
// marks the supervisor Failed.
func (s *Supervisor) onExit(h *processHandle, err error) {
	if h.stopping.Load() {
		return
	}

	s.mu.Lock()
	if s.proc != h || s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	crash := apperr.New(apperr.CodeProcessStartFailed, "service exited unexpectedly").
		WithContext("pid", h.pid).
		WithCause(err)
	s.proc = nil
	s.state = StateFailed
	s.lastErr = crash
	s.mu.Unlock()

	s.metrics.StateTransition(StateRunning, StateFailed)
	s.metrics.ProcessError("PROCESS_CRASHED")
	s.logger.Error("service crashed", "pid", h.pid, "error", err, "log_tail", s.logs.last(5))
}

func (s *Supervisor) awaitPortRelease(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = s.portReleaseTimeout

	op := func() error {
		if PortAvailable(s.host, s.port) {
			return nil
		}
		return fmt.Errorf("port %d still bound", s.port)
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return apperr.ErrPortUnavailable(s.host, s.port).
			WithCause(err).
			WithContext("waited", s.portReleaseTimeout)
	}
	return nil
}

func (s *Supervisor) transition(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()

	if from != to {
		s.metrics.StateTransition(from, to)
		s.logger.Debug("state transition", "from", from, "to", to)
	}
}

// fail records err and moves to Failed. Callers kill the process first.
func (s *Supervisor) fail(err error) error {
	s.mu.Lock()
	from := s.state
	s.state = StateFailed
	s.lastErr = err
	s.proc = nil
	s.startedAt = time.Time{}
	s.mu.Unlock()

	if from != StateFailed {
		s.metrics.StateTransition(from, StateFailed)
	}
	code := string(apperr.CodeOf(err))
	if code == "" {
		code = string(apperr.CodeInternal)
	}
	s.metrics.ProcessError(code)
	s.logger.Error("service failed", "error", err)
	return err
}

// Status returns a consistent snapshot without side effects.
func (s *Supervisor) Status() Snapshot {
	_, statErr := os.Stat(s.document)

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		State:          s.state,
		Host:           s.host,
		Port:           s.port,
		Document:       s.document,
		DocumentExists: statErr == nil,
		Restarts:       s.restarts,
	}
	if s.proc != nil && (s.state == StateStarting || s.state == StateRunning) {
		snap.PID = s.proc.pid
	}
	if s.state == StateRunning {
		snap.StartedAt = s.startedAt
		snap.Uptime = time.Since(s.startedAt)
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	return snap
}

// Logs returns up to n of the most recent service output lines.
func (s *Supervisor) Logs(n int) []string {
	return s.logs.last(n)
}
