// Package logger builds the process logger from configuration.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/viewra-playback/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New creates a named root logger. The returned closer releases the log file
// when output is "file".
func New(name string, cfg config.LoggingConfig) (hclog.Logger, io.Closer, error) {
	var out io.Writer
	var closer io.Closer = nopCloser{}

	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	case "file":
		if cfg.FilePath == "" {
			return nil, nil, fmt.Errorf("file output requires a file path")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out, closer = f, f
	default:
		return nil, nil, fmt.Errorf("unknown log output: %s", cfg.Output)
	}

	level := hclog.LevelFromString(cfg.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}

	color := hclog.ColorOff
	if cfg.EnableColors && cfg.Format != "json" {
		color = hclog.AutoColor
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      level,
		Output:     out,
		JSONFormat: cfg.Format == "json",
		Color:      color,
	}), closer, nil
}

// Init builds the logger and installs it as the hclog default so the
// package-level helpers below use it.
func Init(name string, cfg config.LoggingConfig) (hclog.Logger, io.Closer, error) {
	l, closer, err := New(name, cfg)
	if err != nil {
		return nil, nil, err
	}
	hclog.SetDefault(l)
	return l, closer, nil
}

// Info logs through the default logger.
func Info(msg string, args ...interface{}) { hclog.Default().Info(msg, args...) }

// Warn logs through the default logger.
func Warn(msg string, args ...interface{}) { hclog.Default().Warn(msg, args...) }

// Error logs through the default logger.
func Error(msg string, args ...interface{}) { hclog.Default().Error(msg, args...) }

// Debug logs through the default logger.
func Debug(msg string, args ...interface{}) { hclog.Default().Debug(msg, args...) }
