// Package observability sets up OpenTelemetry tracing for the upload pipeline.
package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// TracingConfig holds tracing configuration
type TracingConfig struct {
	// Enabled registers a global tracer provider; otherwise spans are no-ops
	Enabled bool `mapstructure:"enabled"`

	// Exporter names the span exporter. Only "stdout" is supported.
	Exporter string `mapstructure:"exporter"`

	// Output is where the stdout exporter writes ("" or "-" for stdout, else a file path)
	Output string `mapstructure:"output"`
}

// Tracing owns the tracer provider registered by Setup.
type Tracing struct {
	provider     *sdktrace.TracerProvider
	closer       io.Closer
	shutdownOnce sync.Once
}

// Setup registers a global tracer provider for serviceName. With tracing
// disabled it returns a Tracing whose Shutdown is a no-op.
func Setup(ctx context.Context, cfg TracingConfig, serviceName, serviceVersion string) (*Tracing, error) {
	t := &Tracing{}
	if !cfg.Enabled {
		return t, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var w io.Writer = os.Stdout
	if cfg.Output != "" && cfg.Output != "-" {
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open trace output: %w", err)
		}
		w, t.closer = f, f
	}

	switch cfg.Exporter {
	case "", "stdout":
	default:
		slog.Warn("unknown trace exporter, falling back to stdout", "exporter", cfg.Exporter)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	t.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(t.provider)

	slog.Info("OpenTelemetry tracing initialized", "service_name", serviceName, "exporter", "stdout")
	return t, nil
}

// Shutdown flushes pending spans and releases the exporter.
func (t *Tracing) Shutdown(ctx context.Context) error {
	var shutdownErr error

	t.shutdownOnce.Do(func() {
		if t.provider != nil {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := t.provider.Shutdown(shutdownCtx); err != nil {
				shutdownErr = fmt.Errorf("tracer provider shutdown: %w", err)
			}
		}
		if t.closer != nil {
			if err := t.closer.Close(); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
		}
	})

	return shutdownErr
}
