package main

import (
	"log/slog"
	"os"

	"github.com/ibrahimsaleem/Swaggermcp/cmd/swaggermcp/cmd"
)

func main() {
	// Setup structured logging; serve replaces it once config is loaded
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := cmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
