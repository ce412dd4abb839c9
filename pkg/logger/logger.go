// Package logger configures slog for the pipeline and carries the run id
// through contexts so every stage log line names its run.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

type runIDKey struct{}

// Setup installs the default logger on stderr; stdout is reserved for run
// ids and reports. format is "json" or "text". An unknown level means info.
func Setup(level, format string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if format == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// FromContext returns the default logger tagged with the context's run id.
func FromContext(ctx context.Context) *slog.Logger {
	if id := RunID(ctx); id != "" {
		return slog.Default().With("run_id", id)
	}
	return slog.Default()
}
