package utils

import (
	"log/slog"
	"os"
)

// SetupLogging installs the process-wide slog handler. Diagnostics go
// to stderr so stdout stays clean for report output; verbose enables
// debug-level records.
func SetupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}
