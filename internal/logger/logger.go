package logger

import (
	"io"
	"log/slog"
	"os"

	"tutormula/internal/config"
	"tutormula/internal/logger/slogpretty"
)

// Setup builds the process logger for the given environment
func Setup(env string) *slog.Logger {
	return New(env, os.Stdout)
}

// New builds a logger writing to out
func New(env string, out io.Writer) *slog.Logger {
	var log *slog.Logger

	switch env {
	case config.EnvLocal:
		opts := slogpretty.PrettyHandlerOptions{
			SlogOpts: &slog.HandlerOptions{Level: slog.LevelDebug},
		}
		log = slog.New(opts.NewPrettyHandler(out))
	case config.EnvDev:
		log = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		log = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return log
}

// Discard returns a logger that drops everything, for tests
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
