package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/TheElectricFursuits/tef-synth-animation/internal/infrastructure/config"
)

const service = "synthanim"

// Logger is a slog.Logger carrying the service and version attributes.
// It satisfies the narrow logger interfaces of the player, the process
// launcher and the outputs.
type Logger struct {
	*slog.Logger
}

// New logs to the stream named by cfg.Output, stdout unless it says
// "stderr".
func New(cfg config.LoggingConfig, version string) *Logger {
	var w io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		w = os.Stderr
	}
	return NewWithWriter(cfg, version, w)
}

// NewWithWriter logs to w and ignores cfg.Output.
func NewWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	}

	return &Logger{slog.New(h).With("service", service, "version", version)}
}

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// parseLevel is case-insensitive and falls back to info.
func parseLevel(name string) slog.Level {
	if l, ok := levels[strings.ToLower(name)]; ok {
		return l
	}
	return slog.LevelInfo
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{l.Logger.With(args...)}
}

// Component tags every entry of the child with component=name.
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Default is the JSON, info-level, stdout logger used until the config
// file has been read.
func Default() *Logger {
	return New(config.LoggingConfig{}, "dev")
}
