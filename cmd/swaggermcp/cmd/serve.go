package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ibrahimsaleem/Swaggermcp/internal/config"
	"github.com/ibrahimsaleem/Swaggermcp/internal/observability"
	"github.com/ibrahimsaleem/Swaggermcp/pkg/httpapi"
	"github.com/ibrahimsaleem/Swaggermcp/pkg/orchestrator"
	"github.com/ibrahimsaleem/Swaggermcp/pkg/revstore"
	"github.com/ibrahimsaleem/Swaggermcp/pkg/supervisor"
	"github.com/ibrahimsaleem/Swaggermcp/pkg/workspace"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the upload API and supervise the generated service",
	Long: `Start the admin HTTP API and the generated service.

On start a placeholder service is written when none exists, then launched
with "go run" on the supervisor port. Each POST /upload regenerates the
service and restarts it.

Example:
  swaggermcp serve
  swaggermcp serve --listen 127.0.0.1:8000 --port 8001 --reload
`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("listen", "127.0.0.1:8000", "Admin API listen address")
	serveCmd.Flags().IntP("port", "p", 8001, "Generated service port")
	serveCmd.Flags().String("host", "127.0.0.1", "Generated service host")
	serveCmd.Flags().String("title", "", "Title of the generated API")
	serveCmd.Flags().Bool("reload", false, "Restart the service when the generated document changes on disk")
	serveCmd.Flags().String("db", "", "Revision history database path")
	serveCmd.Flags().Bool("trace", false, "Export OpenTelemetry spans")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, map[string]string{
		"server.listen":     "listen",
		"supervisor.port":   "port",
		"supervisor.host":   "host",
		"pipeline.title":    "title",
		"supervisor.reload": "reload",
		"revisions.path":    "db",
		"tracing.enabled":   "trace",
	})
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.Log, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracing, err := observability.Setup(ctx, cfg.Tracing, "swaggermcp", version)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	ws := workspace.New(cfg.Workspace, logger)
	metrics := supervisor.NewPrometheusMetricsCollector(cfg.Metrics.Namespace)
	sup := supervisor.New(ws.DocumentPath(), supervisorOptions(cfg, logger, metrics)...)

	var revs orchestrator.RevisionStore
	if cfg.Revisions.Path != "" {
		store, err := revstore.Open(ctx, cfg.Revisions.Path)
		if err != nil {
			return fmt.Errorf("failed to open revision store: %w", err)
		}
		defer store.Close()

		if cfg.Revisions.Keep > 0 {
			if n, err := store.Prune(ctx, cfg.Revisions.Keep); err != nil {
				logger.Warn("failed to prune revisions", "error", err)
			} else if n > 0 {
				logger.Info("pruned revisions", "removed", n)
			}
		}
		revs = store
	}

	orch := orchestrator.New(cfg.Pipeline, ws, sup, revs, logger)

	// A broken document must not keep the API down; a new upload fixes it.
	if err := orch.Boot(ctx); err != nil {
		logger.Error("generated service did not start", "error", err)
	} else {
		logger.Info("generated service running", "url", sup.BaseURL()+"/docs")
	}

	hs := httpapi.NewHTTPServer(orch, metrics.Registry(), cfg.Server.Listen, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(hs.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return sup.Watch(gctx)
	})

	serveErr := g.Wait()

	logger.Info("stopping generated service")
	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Supervisor.StopTimeout+cfg.Supervisor.KillGrace)
	defer cancel()
	if err := sup.Stop(stopCtx, cfg.Supervisor.StopTimeout); err != nil {
		logger.Warn("generated service did not stop cleanly", "error", err)
	}

	return serveErr
}

func supervisorOptions(cfg *config.Config, logger *slog.Logger, metrics supervisor.MetricsCollector) []supervisor.Option {
	sc := cfg.Supervisor
	opts := []supervisor.Option{
		supervisor.WithHost(sc.Host),
		supervisor.WithPort(sc.Port),
		supervisor.WithCommand(sc.Command[0], sc.Command[1:]...),
		supervisor.WithCleanEnv(sc.CleanEnv),
		supervisor.WithLogger(logger),
		supervisor.WithMetricsCollector(metrics),
	}
	if len(sc.Env) > 0 {
		opts = append(opts, supervisor.WithEnv(sc.Env...))
	}
	if sc.ProbeInterval > 0 {
		opts = append(opts, supervisor.WithProbeInterval(sc.ProbeInterval))
	}
	if sc.ProbeTimeout > 0 {
		opts = append(opts, supervisor.WithProbeTimeout(sc.ProbeTimeout))
	}
	if sc.KillGrace > 0 {
		opts = append(opts, supervisor.WithKillGrace(sc.KillGrace))
	}
	if sc.PortReleaseTimeout > 0 {
		opts = append(opts, supervisor.WithPortReleaseTimeout(sc.PortReleaseTimeout))
	}
	if sc.LogTail > 0 {
		opts = append(opts, supervisor.WithLogTail(sc.LogTail))
	}
	if sc.Reload {
		opts = append(opts, supervisor.WithReload(cfg.Pipeline.StartTimeout, sc.ReloadDebounce))
	}
	return opts
}
