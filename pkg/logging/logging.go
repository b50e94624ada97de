// Package logging builds the process logger: zap underneath, logr on top.
package logging

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity levels used with logr's V()
const (
	LevelDebug = 1
	LevelTrace = 2
)

// New returns a logger writing to stderr at level ("error", "warn", "info",
// "debug" or "trace") in format ("json" or "console"), and a flush func to
// call before exit.
func New(level, format string) (logr.Logger, func(), error) {
	return build(level, format, "stderr")
}

func build(level, format, path string) (logr.Logger, func(), error) {
	zapLevel, err := parseLevel(level)
	if err != nil {
		return logr.Logger{}, nil, err
	}
	if format != "json" && format != "console" {
		return logr.Logger{}, nil, fmt.Errorf("unknown log format %q", format)
	}

	config := zap.Config{
		Level:             zap.NewAtomicLevelAt(zapLevel),
		Development:       false,
		DisableStacktrace: true,
		Encoding:          format,
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:     "message",
			LevelKey:       "level",
			TimeKey:        "timestamp",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{path},
		ErrorOutputPaths: []string{path},
	}
	if format == "console" {
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncoderConfig.ConsoleSeparator = "  "
	}

	log, err := config.Build()
	if err != nil {
		return logr.Logger{}, nil, fmt.Errorf("failed to build zap logger: %w", err)
	}
	return zapr.NewLogger(log), func() { _ = log.Sync() }, nil
}

// logr V(n) maps onto zap level -n
func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "error":
		return zapcore.ErrorLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.Level(-LevelDebug), nil
	case "trace":
		return zapcore.Level(-LevelTrace), nil
	default:
		return 0, fmt.Errorf("unknown log level %q", level)
	}
}
