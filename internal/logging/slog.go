package logging

import (
	"log/slog"
	"os"
	"sync/atomic"
)

var (
	opLogger atomic.Pointer[slog.Logger]
	logLevel = new(slog.LevelVar)
)

func init() {
	logLevel.Set(slog.LevelInfo)
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	logger := slog.New(handler)
	opLogger.Store(logger)
}

// Op returns the operational logger for daemon/infrastructure logs.
// This is separate from the iteration Logger (Default) which logs IterationLog entries.
func Op() *slog.Logger {
	return opLogger.Load()
}

// SetLevel changes the log level for the operational logger.
// Valid levels: slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError
func SetLevel(level slog.Level) {
	logLevel.Set(level)
}

// LevelCritical sits above slog's built-in levels; the CLI's --log-level
// vocabulary names a CRITICAL tier slog has no constant for.
const LevelCritical = slog.Level(12)

// SetLevelFromString sets the log level from a string, accepting both
// slog's own names and the CLI surface's Python-logging-derived
// vocabulary: NOTSET, DEBUG, INFO, WARNING, ERROR, CRITICAL.
func SetLevelFromString(level string) {
	switch level {
	case "notset", "NOTSET":
		logLevel.Set(slog.Level(-8)) // below Debug: nothing is filtered
	case "debug", "DEBUG":
		logLevel.Set(slog.LevelDebug)
	case "info", "INFO":
		logLevel.Set(slog.LevelInfo)
	case "warn", "WARN", "warning", "WARNING":
		logLevel.Set(slog.LevelWarn)
	case "error", "ERROR":
		logLevel.Set(slog.LevelError)
	case "critical", "CRITICAL":
		logLevel.Set(LevelCritical)
	}
}
