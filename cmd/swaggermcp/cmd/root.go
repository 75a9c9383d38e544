package cmd

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ibrahimsaleem/Swaggermcp/internal/config"
)

const version = "0.1.0"

var (
	// Global flags
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "swaggermcp",
	Short: "Turn a Go source file into a supervised HTTP service",
	Long: `swaggermcp reads the top-level functions of an uploaded Go file and
generates a single-file HTTP service with one GET endpoint per function,
an OpenAPI document and a Swagger UI. The generated service runs as a
supervised child process and is regenerated on every upload.

Commands:
  serve     run the upload API and supervise the generated service
  generate  print the service generated from a file
  inspect   print the function descriptors found in a file`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default ./swaggermcp.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

// loadConfig loads configuration with the named flags of cmd bound to keys.
func loadConfig(cmd *cobra.Command, bindings map[string]string) (*config.Config, error) {
	flags := map[string]*pflag.Flag{
		"log.level": cmd.Flags().Lookup("log-level"),
	}
	for key, name := range bindings {
		flags[key] = cmd.Flags().Lookup(name)
	}
	return config.Load(cfgFile, flags)
}

// newLogger builds the process logger from the log section.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
