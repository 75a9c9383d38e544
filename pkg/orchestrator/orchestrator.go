// Package orchestrator runs the upload pipeline: save the source, extract
// signatures, synthesize the service, write it, record a revision and
// restart the supervised process.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ibrahimsaleem/Swaggermcp/pkg/apperr"
	"github.com/ibrahimsaleem/Swaggermcp/pkg/revstore"
	"github.com/ibrahimsaleem/Swaggermcp/pkg/signature"
	"github.com/ibrahimsaleem/Swaggermcp/pkg/supervisor"
	"github.com/ibrahimsaleem/Swaggermcp/pkg/synth"
	"github.com/ibrahimsaleem/Swaggermcp/pkg/workspace"
)

var tracer = otel.Tracer("github.com/ibrahimsaleem/Swaggermcp/pkg/orchestrator")

// Supervisor is the lifecycle surface the pipeline drives.
type Supervisor interface {
	Start(ctx context.Context, timeout time.Duration) error
	Restart(ctx context.Context, timeout time.Duration) error
	Status() supervisor.Snapshot
	HealthCheck(ctx context.Context) supervisor.HealthReport
	Logs(n int) []string
	BaseURL() string
}

// RevisionStore records regenerations. It is optional.
type RevisionStore interface {
	Record(ctx context.Context, rev revstore.Revision) (revstore.Revision, error)
	SetOutcome(ctx context.Context, id string, outcome revstore.Outcome, errMsg string) error
	List(ctx context.Context, limit int) ([]revstore.Revision, error)
}

// Config tunes the pipeline.
type Config struct {
	Title          string        `mapstructure:"title"`
	StartTimeout   time.Duration `mapstructure:"start_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	UploadRate     float64       `mapstructure:"upload_rate"`
	UploadBurst    int           `mapstructure:"upload_burst"`
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		Title:          "Swagger MCP Generated API",
		StartTimeout:   30 * time.Second,
		MaxUploadBytes: 1 << 20,
		UploadRate:     1,
		UploadBurst:    5,
	}
}

// Result describes a completed upload.
type Result struct {
	Message       string   `json:"message"`
	Endpoints     []string `json:"endpoints"`
	SwaggerURL    string   `json:"swagger_url,omitempty"`
	OpenAPIURL    string   `json:"openapi_url,omitempty"`
	SourceSavedAs string   `json:"source_saved_as"`
	Revision      string   `json:"revision,omitempty"`
	Warning       string   `json:"warning,omitempty"`
}

// Status is the pipeline's view of the generated service.
type Status struct {
	RunnerAlive      bool                `json:"runner_alive"`
	GeneratedAppPath string              `json:"generated_app_path"`
	SwaggerURL       string              `json:"swagger_url"`
	Supervisor       supervisor.Snapshot `json:"supervisor"`
}

// Orchestrator serializes uploads against one workspace and supervisor.
type Orchestrator struct {
	mu      sync.Mutex
	cfg     Config
	ws      *workspace.Workspace
	sup     Supervisor
	revs    RevisionStore
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates an Orchestrator. revs may be nil.
func New(cfg Config, ws *workspace.Workspace, sup Supervisor, revs RevisionStore, logger *slog.Logger) *Orchestrator {
	def := DefaultConfig()
	if cfg.Title == "" {
		cfg.Title = def.Title
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = def.StartTimeout
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.UploadRate > 0 {
		limit = rate.Limit(cfg.UploadRate)
	}
	burst := cfg.UploadBurst
	if burst <= 0 {
		burst = 1
	}

	return &Orchestrator{
		cfg:     cfg,
		ws:      ws,
		sup:     sup,
		revs:    revs,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.With("component", "orchestrator"),
	}
}

// MaxUploadBytes returns the largest accepted upload.
func (o *Orchestrator) MaxUploadBytes() int64 {
	return o.cfg.MaxUploadBytes
}

// Upload regenerates the service from a Go source file. A source without
// functions is saved and reported with a warning; nothing is regenerated.
// When the restart fails the returned Result is still populated.
func (o *Orchestrator) Upload(ctx context.Context, filename string, source []byte) (_ *Result, err error) {
	ctx, span := tracer.Start(ctx, "orchestrator.Upload", trace.WithAttributes(
		attribute.String("upload.filename", filename),
		attribute.Int("upload.size", len(source)),
	))
	defer func() {
		endSpan(span, err)
	}()

	if !o.limiter.Allow() {
		return nil, apperr.New(apperr.CodeRateLimited, "too many uploads").
			WithSuggestion("Wait a moment before uploading again")
	}
	if !strings.EqualFold(filepath.Ext(filename), ".go") {
		return nil, apperr.New(apperr.CodeInvalidUpload, "Only .go files are supported").
			WithContext("filename", filename)
	}
	if int64(len(source)) > o.cfg.MaxUploadBytes {
		return nil, apperr.Newf(apperr.CodeInvalidUpload, "upload exceeds %d bytes", o.cfg.MaxUploadBytes).
			WithContext("size", len(source))
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	saved, err := o.ws.SaveUpload(filename, source)
	if err != nil {
		return nil, err
	}

	_, extractSpan := tracer.Start(ctx, "signature.Extract")
	fns, err := signature.Extract(string(source))
	endSpan(extractSpan, err)
	if err != nil {
		o.logger.Warn("upload rejected", "filename", filename, "error", err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("upload.functions", len(fns)))
	if len(fns) == 0 {
		warning := apperr.New(apperr.CodeEmptyInput, "No top-level functions found in uploaded file")
		o.logger.Warn(warning.Message, "filename", filename)
		return &Result{
			Message:       warning.Message,
			Endpoints:     []string{},
			SourceSavedAs: saved,
			Warning:       warning.Error(),
		}, nil
	}

	_, synthSpan := tracer.Start(ctx, "synth.Synthesize")
	mod, err := synth.Synthesize(string(source), fns, o.cfg.Title)
	endSpan(synthSpan, err)
	if err != nil {
		return nil, err
	}
	docHash, err := o.ws.WriteDocument(mod.Document)
	if err != nil {
		return nil, apperr.New(apperr.CodeInternal, "write generated service").WithCause(err)
	}

	result := &Result{
		Message:       fmt.Sprintf("Generated %d endpoints from %s", len(mod.Paths), filepath.Base(saved)),
		Endpoints:     mod.Paths,
		SwaggerURL:    o.sup.BaseURL() + "/docs",
		OpenAPIURL:    o.sup.BaseURL() + "/openapi.json",
		SourceSavedAs: saved,
	}

	rev := o.record(ctx, revstore.Revision{
		Filename:       filepath.Base(saved),
		SourcePath:     saved,
		SourceSHA256:   workspace.Digest(source),
		DocumentSHA256: docHash,
		Endpoints:      mod.Paths,
	})
	result.Revision = rev

	restartCtx, restartSpan := tracer.Start(ctx, "supervisor.Restart")
	restartErr := o.sup.Restart(restartCtx, o.cfg.StartTimeout)
	endSpan(restartSpan, restartErr)
	o.setOutcome(ctx, rev, restartErr)
	if restartErr != nil {
		o.logger.Error("generated service did not start", "revision", rev, "error", restartErr)
		return result, restartErr
	}

	o.logger.Info("service regenerated", "revision", rev, "endpoints", len(mod.Paths))
	return result, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (o *Orchestrator) record(ctx context.Context, rev revstore.Revision) string {
	if o.revs == nil {
		return ""
	}
	saved, err := o.revs.Record(ctx, rev)
	if err != nil {
		o.logger.Warn("failed to record revision", "error", err)
		return ""
	}
	return saved.ID
}

func (o *Orchestrator) setOutcome(ctx context.Context, id string, restartErr error) {
	if o.revs == nil || id == "" {
		return
	}
	outcome, msg := revstore.OutcomeRunning, ""
	if restartErr != nil {
		outcome, msg = revstore.OutcomeFailed, restartErr.Error()
	}
	if err := o.revs.SetOutcome(ctx, id, outcome, msg); err != nil {
		o.logger.Warn("failed to record revision outcome", "revision", id, "error", err)
	}
}

// Boot writes a placeholder service when none exists and starts the supervisor.
func (o *Orchestrator) Boot(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.ws.HasDocument() {
		mod, err := synth.Placeholder(o.cfg.Title)
		if err != nil {
			return err
		}
		if _, err := o.ws.WriteDocument(mod.Document); err != nil {
			return fmt.Errorf("write placeholder: %w", err)
		}
		o.logger.Info("placeholder service written", "path", o.ws.DocumentPath())
	} else if err := o.ws.EnsureModule(); err != nil {
		return err
	}

	return o.sup.Start(ctx, o.cfg.StartTimeout)
}

// Restart restarts the generated service without regenerating it.
func (o *Orchestrator) Restart(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sup.Restart(ctx, o.cfg.StartTimeout)
}

// Status reports the generated service state.
func (o *Orchestrator) Status() Status {
	snap := o.sup.Status()
	return Status{
		RunnerAlive:      snap.Running(),
		GeneratedAppPath: o.ws.DocumentPath(),
		SwaggerURL:       o.sup.BaseURL() + "/docs",
		Supervisor:       snap,
	}
}

// Health runs an on-demand health check of the generated service.
func (o *Orchestrator) Health(ctx context.Context) supervisor.HealthReport {
	return o.sup.HealthCheck(ctx)
}

// Logs returns up to n recent output lines of the generated service.
func (o *Orchestrator) Logs(n int) []string {
	return o.sup.Logs(n)
}

// Revisions lists recent regenerations, newest first.
func (o *Orchestrator) Revisions(ctx context.Context, limit int) ([]revstore.Revision, error) {
	if o.revs == nil {
		return []revstore.Revision{}, nil
	}
	return o.revs.List(ctx, limit)
}
