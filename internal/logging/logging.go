// Package logging builds the zap loggers used by the server and CLI.
package logging

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// ParseLevel converts a string log level to a zap level.
// Defaults to info for unrecognized strings.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ValidFormat reports whether format is a supported encoding
func ValidFormat(format string) bool {
	switch format {
	case "", FormatConsole, FormatJSON:
		return true
	}
	return false
}

// NewLogger creates a logger writing to stderr
func NewLogger(level, format string) (*zap.Logger, error) {
	if !ValidFormat(format) {
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	config.Encoding = encoding(format)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if config.Encoding == FormatConsole {
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	config.Sampling = nil

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// NewWriterLogger creates a logger writing to w
func NewWriterLogger(w io.Writer, level, format string) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if encoding(format) == FormatJSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), ParseLevel(level)))
}

func encoding(format string) string {
	if format == FormatJSON {
		return FormatJSON
	}
	return FormatConsole
}
