// Package commands implements the stencil subcommands.
package commands

import (
	"context"
	"log/slog"

	"github.com/stencilbuild/stencil/internal/config"
)

type configKey struct{}
type loggerKey struct{}

// WithConfig stores cfg in ctx for retrieval by commands.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// ConfigFrom retrieves the loaded config from the command context. Returns
// nil when the root command's setup has not run (help, completion).
func ConfigFrom(ctx context.Context) *config.Config {
	cfg, _ := ctx.Value(configKey{}).(*config.Config)
	return cfg
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom retrieves the logger from the command context, falling back
// to a discard logger.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}
