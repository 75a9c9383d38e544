package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"time"
)

// statusError is a probe that reached the service but got a non-200 answer.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.code)
}

// probe checks that the port accepts connections and /docs answers 200.
func (s *Supervisor) probe(ctx context.Context) error {
	addr := hostPort(clientHost(s.host), s.port)

	dialer := net.Dialer{Timeout: time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	_ = conn.Close()

	resp, err := s.get(ctx, "/docs")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

func (s *Supervisor) get(ctx context.Context, path string) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL()+path, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	resp.Body = cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}

// HealthCheck probes the service on demand and, when healthy, lists the paths
// from its OpenAPI description. It never panics; failures go into Error.
// Outside Starting and Running nothing is supervised, so the probe is skipped
// and the report is HealthStopped.
func (s *Supervisor) HealthCheck(ctx context.Context) (report HealthReport) {
	began := time.Now()
	defer func() {
		if r := recover(); r != nil {
			report = HealthReport{Status: HealthError, Error: fmt.Sprint(r)}
		}
		report.ResponseTime = time.Since(began)
		s.metrics.HealthCheck(report.Status, report.ResponseTime)
	}()

	snap := s.Status()
	if snap.State != StateRunning && snap.State != StateStarting {
		return HealthReport{Status: HealthStopped, Error: "service is " + snap.State.String()}
	}

	err := s.probe(ctx)
	var se *statusError
	switch {
	case errors.As(err, &se):
		return HealthReport{Status: HealthUnhealthy, Error: se.Error()}
	case err != nil:
		return HealthReport{Status: HealthUnreachable, Error: err.Error()}
	}

	report.Status = HealthHealthy
	endpoints, err := s.endpoints(ctx)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.Endpoints = endpoints
	return report
}

// endpoints reads the sorted path list from /openapi.json.
func (s *Supervisor) endpoints(ctx context.Context) ([]string, error) {
	resp, err := s.get(ctx, "/openapi.json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openapi: HTTP %d", resp.StatusCode)
	}

	var doc struct {
		Paths map[string]json.RawMessage `json:"paths"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode openapi: %w", err)
	}

	paths := make([]string, 0, len(doc.Paths))
	for p := range doc.Paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// PortAvailable reports whether host:port can be bound right now.
func PortAvailable(host string, port int) bool {
	ln, err := net.Listen("tcp", hostPort(host, port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

// FindAvailablePort returns the first bindable port in [start, start+attempts).
func FindAvailablePort(host string, start, attempts int) (int, error) {
	for port := start; port < start+attempts; port++ {
		if PortAvailable(host, port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port in %d-%d", start, start+attempts-1)
}

func hostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// clientHost maps wildcard bind addresses to loopback for probing.
func clientHost(host string) string {
	switch host {
	case "", "0.0.0.0":
		return "127.0.0.1"
	case "::", "[::]":
		return "::1"
	}
	return host
}
