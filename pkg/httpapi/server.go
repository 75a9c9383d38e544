// Package httpapi exposes the upload pipeline over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ibrahimsaleem/Swaggermcp/pkg/apperr"
	"github.com/ibrahimsaleem/Swaggermcp/pkg/orchestrator"
	"github.com/ibrahimsaleem/Swaggermcp/pkg/revstore"
	"github.com/ibrahimsaleem/Swaggermcp/pkg/supervisor"
)

// multipartOverhead is allowed on top of the file limit for form framing.
const multipartOverhead = 64 << 10

// Pipeline is the orchestrator surface served over HTTP.
type Pipeline interface {
	Upload(ctx context.Context, filename string, source []byte) (*orchestrator.Result, error)
	Restart(ctx context.Context) error
	Status() orchestrator.Status
	Health(ctx context.Context) supervisor.HealthReport
	Revisions(ctx context.Context, limit int) ([]revstore.Revision, error)
	Logs(n int) []string
	MaxUploadBytes() int64
}

// HTTPServer wraps the gin router serving the admin API.
type HTTPServer struct {
	pipeline Pipeline
	gatherer prometheus.Gatherer
	router   *gin.Engine
	server   *http.Server
	logger   *slog.Logger
}

// NewHTTPServer creates the API server. gatherer may be nil, in which case
// /metrics is not registered.
func NewHTTPServer(pipeline Pipeline, gatherer prometheus.Gatherer, addr string, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "httpapi")

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	router.MaxMultipartMemory = pipeline.MaxUploadBytes() + multipartOverhead

	hs := &HTTPServer{
		pipeline: pipeline,
		gatherer: gatherer,
		router:   router,
		logger:   logger,
		server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	hs.registerRoutes()

	return hs
}

// registerRoutes sets up all HTTP routes
func (hs *HTTPServer) registerRoutes() {
	hs.router.POST("/upload", hs.handleUpload)
	hs.router.POST("/restart", hs.handleRestart)
	hs.router.GET("/status", hs.handleStatus)
	hs.router.GET("/health", hs.handleHealth)
	hs.router.GET("/revisions", hs.handleRevisions)
	hs.router.GET("/logs", hs.handleLogs)

	if hs.gatherer != nil {
		hs.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(hs.gatherer, promhttp.HandlerOpts{})))
	}
}

// Handler returns the router, mainly for tests.
func (hs *HTTPServer) Handler() http.Handler {
	return hs.router
}

// Addr returns the configured listen address.
func (hs *HTTPServer) Addr() string {
	return hs.server.Addr
}

// Start serves until Shutdown is called. A clean shutdown returns nil.
func (hs *HTTPServer) Start() error {
	hs.logger.Info("HTTP server starting", "addr", hs.server.Addr)
	if err := hs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (hs *HTTPServer) Shutdown(ctx context.Context) error {
	hs.logger.Info("HTTP server shutting down")
	return hs.server.Shutdown(ctx)
}

// handleUpload regenerates the service from a multipart "file" field
func (hs *HTTPServer) handleUpload(c *gin.Context) {
	limit := hs.pipeline.MaxUploadBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	header, err := c.FormFile("file")
	if err != nil {
		hs.writeError(c, nil, apperr.New(apperr.CodeInvalidUpload, "multipart field \"file\" is required").WithCause(err))
		return
	}

	f, err := header.Open()
	if err != nil {
		hs.writeError(c, nil, apperr.New(apperr.CodeInvalidUpload, "unreadable upload").WithCause(err))
		return
	}
	defer f.Close()

	// One byte past the limit lets the pipeline report the overflow.
	source, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		hs.writeError(c, nil, apperr.New(apperr.CodeInvalidUpload, "unreadable upload").WithCause(err))
		return
	}

	result, err := hs.pipeline.Upload(c.Request.Context(), header.Filename, source)
	if err != nil {
		hs.writeError(c, result, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleRestart restarts the generated service without regenerating it
func (hs *HTTPServer) handleRestart(c *gin.Context) {
	if err := hs.pipeline.Restart(c.Request.Context()); err != nil {
		hs.writeError(c, nil, err)
		return
	}
	c.JSON(http.StatusOK, hs.pipeline.Status())
}

// handleStatus reports the supervisor snapshot
func (hs *HTTPServer) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, hs.pipeline.Status())
}

// handleHealth probes the generated service. The report is always returned;
// the status code reflects whether the service is healthy.
func (hs *HTTPServer) handleHealth(c *gin.Context) {
	report := hs.pipeline.Health(c.Request.Context())
	code := http.StatusOK
	if report.Status != supervisor.HealthHealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, report)
}

// handleRevisions lists recent regenerations
func (hs *HTTPServer) handleRevisions(c *gin.Context) {
	limit, ok := hs.positiveQuery(c, "limit", 20)
	if !ok {
		return
	}

	revs, err := hs.pipeline.Revisions(c.Request.Context(), limit)
	if err != nil {
		hs.writeError(c, nil, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revisions": revs})
}

// handleLogs returns the tail of the generated service output
func (hs *HTTPServer) handleLogs(c *gin.Context) {
	lines, ok := hs.positiveQuery(c, "lines", 100)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"lines": hs.pipeline.Logs(lines)})
}

// positiveQuery reads a positive integer query parameter, writing a 400 on
// malformed input.
func (hs *HTTPServer) positiveQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		hs.writeError(c, nil, apperr.Newf(apperr.CodeInvalidUpload, "invalid %s %q", name, raw))
		return 0, false
	}
	return n, true
}

// writeError maps a pipeline error onto an HTTP status and JSON body
func (hs *HTTPServer) writeError(c *gin.Context, result *orchestrator.Result, err error) {
	status := StatusFor(err)
	body := gin.H{"error": err.Error()}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		body["code"] = ae.Code
		body["error"] = ae.Message
		if ae.Suggestion != "" {
			body["suggestion"] = ae.Suggestion
		}
		if ae.Cause != nil {
			body["detail"] = ae.Cause.Error()
		}
	}
	if result != nil {
		body["result"] = result
	}

	if status >= http.StatusInternalServerError {
		hs.logger.Error("request failed", "path", c.FullPath(), "status", status, "error", err)
	} else {
		hs.logger.Warn("request rejected", "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, body)
}

// StatusFor returns the HTTP status for an error from the pipeline.
func StatusFor(err error) int {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge
	}

	switch apperr.CodeOf(err) {
	case apperr.CodeParseError, apperr.CodeInvalidUpload, apperr.CodeEmptyInput:
		return http.StatusBadRequest
	case apperr.CodeRateLimited:
		return http.StatusTooManyRequests
	case apperr.CodeProcessStartTimeout, apperr.CodeProcessStartFailed,
		apperr.CodeProcessStopTimeout, apperr.CodePortUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).Round(time.Microsecond),
			"client", c.ClientIP())
	}
}
