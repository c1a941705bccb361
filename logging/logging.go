package logging

import (
	"fmt"
	"log/slog"
)

// Logger defines the interface for logging across the eviction protocol.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...any)

	// Info logs an info message.
	Info(msg string, args ...any)

	// Warn logs a warning message.
	Warn(msg string, args ...any)

	// Error logs an error message.
	Error(msg string, args ...any)
}

// NoOpLogger is a logger that does nothing.
type NoOpLogger struct{}

// Debug logs a debug message (no-op).
func (n *NoOpLogger) Debug(msg string, args ...any) {}

// Info logs an info message (no-op).
func (n *NoOpLogger) Info(msg string, args ...any) {}

// Warn logs a warning message (no-op).
func (n *NoOpLogger) Warn(msg string, args ...any) {}

// Error logs an error message (no-op).
func (n *NoOpLogger) Error(msg string, args ...any) {}

// NewNoOpLogger creates a new no-op logger.
func NewNoOpLogger() Logger {
	return &NoOpLogger{}
}

// ConsoleLogger writes log lines to stdout with a prefix.
type ConsoleLogger struct {
	prefix string
}

// Debug logs a debug message to console.
func (cl *ConsoleLogger) Debug(msg string, args ...any) {
	cl.write("DEBUG", msg, args)
}

// Info logs an info message to console.
func (cl *ConsoleLogger) Info(msg string, args ...any) {
	cl.write("INFO", msg, args)
}

// Warn logs a warning message to console.
func (cl *ConsoleLogger) Warn(msg string, args ...any) {
	cl.write("WARN", msg, args)
}

// Error logs an error message to console.
func (cl *ConsoleLogger) Error(msg string, args ...any) {
	cl.write("ERROR", msg, args)
}

func (cl *ConsoleLogger) write(level, msg string, args []any) {
	fmt.Printf("[%s] %s: %s", level, cl.prefix, msg)
	if len(args) > 0 {
		fmt.Printf(" %v", args)
	}
	fmt.Println()
}

// NewConsoleLogger creates a new console logger.
func NewConsoleLogger(prefix string) Logger {
	return &ConsoleLogger{prefix: prefix}
}

// SlogLogger adapts a *slog.Logger to the Logger interface.
type SlogLogger struct {
	logger *slog.Logger
}

// Debug logs a debug message.
func (sl *SlogLogger) Debug(msg string, args ...any) { sl.logger.Debug(msg, args...) }

// Info logs an info message.
func (sl *SlogLogger) Info(msg string, args ...any) { sl.logger.Info(msg, args...) }

// Warn logs a warning message.
func (sl *SlogLogger) Warn(msg string, args ...any) { sl.logger.Warn(msg, args...) }

// Error logs an error message.
func (sl *SlogLogger) Error(msg string, args ...any) { sl.logger.Error(msg, args...) }

// NewSlogLogger wraps a slog logger. A nil logger falls back to slog.Default.
func NewSlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}
