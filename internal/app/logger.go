package app

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger builds the process logger for component ("api", "worker").
// LOG_FORMAT=json selects structured output; anything else prints text.
// Every record carries the component and APP_ENV.
func NewLogger(cfg *Config, component string) *slog.Logger {
	return newLogger(os.Stdout, cfg, component)
}

func newLogger(w io.Writer, cfg *Config, component string) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	env := ""
	var handler slog.Handler
	if cfg != nil {
		opts.Level = cfg.LogLevel
		env = cfg.AppEnv
	}
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler).With(slog.String("component", component))
	if env != "" {
		logger = logger.With(slog.String("env", env))
	}
	return logger
}
