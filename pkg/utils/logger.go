package utils

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a zap logger. When debug is true, uses development config
// (human-readable, debug level); otherwise uses production config (JSON, info level).
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// NewLoggerWithLevel returns a logger at the named level ("debug", "info",
// "warn", "error"). An empty level behaves like NewLogger.
func NewLoggerWithLevel(level string, debug bool) (*zap.Logger, error) {
	if level == "" {
		return NewLogger(debug)
	}
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
