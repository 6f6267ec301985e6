// Package logger provides the process-wide logger used by every package.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/lmittmann/tint"
)

// Output formats
const (
	FormatTint = "tint"
	FormatJSON = "json"
	FormatText = "text"
)

// Options configures Init.
type Options struct {
	Level   string    // debug, info, warn, error (default info)
	Format  string    // tint, json, text (default tint); ignored when File is set
	File    string    // Write JSON records to this file instead of the console
	Console io.Writer // Console destination (default os.Stderr)
}

var (
	globalLogger *slog.Logger
	logFile      *os.File
	mu           sync.Mutex
)

// Init initializes the global logger.
func Init(opts Options) error {
	var level slog.Level
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return fmt.Errorf("could not parse log level: %w", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()

	// Close previous log file if exists
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}

	handlerOpts := &slog.HandlerOptions{Level: level}

	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		logFile = f
		globalLogger = slog.New(slog.NewJSONHandler(f, handlerOpts))
		return nil
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	var handler slog.Handler
	switch opts.Format {
	case "", FormatTint:
		handler = tint.NewHandler(console, &tint.Options{Level: level})
	case FormatJSON:
		handler = slog.NewJSONHandler(console, handlerOpts)
	case FormatText:
		handler = slog.NewTextHandler(console, handlerOpts)
	default:
		return fmt.Errorf("unknown log format: %s", opts.Format)
	}
	globalLogger = slog.New(handler)

	return nil
}

// Close closes the log file and stops logging.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	globalLogger = nil
}

func logf(level slog.Level, format string, v ...interface{}) {
	mu.Lock()
	l := globalLogger
	mu.Unlock()

	if l == nil {
		return
	}
	l.Log(context.Background(), level, fmt.Sprintf(format, v...))
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	logf(slog.LevelInfo, format, v...)
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	logf(slog.LevelDebug, format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	logf(slog.LevelError, format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	logf(slog.LevelWarn, format, v...)
}

// GetWriter returns the underlying log file, for components that want raw output.
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		return logFile
	}
	return io.Discard
}
