package log

import (
	"io"
	"sync"
)

var (
	defaultLogger *Logger
	loggerMu      sync.RWMutex
)

// SetDefaultLogger sets the process-wide logger returned by DefaultLogger.
func SetDefaultLogger(logger *Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	defaultLogger = logger
}

// DefaultLogger returns the process-wide logger, creating a default one on
// first use.
func DefaultLogger() *Logger {
	loggerMu.RLock()
	l := defaultLogger
	loggerMu.RUnlock()
	if l != nil {
		return l
	}

	loggerMu.Lock()
	defer loggerMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = New(DefaultConfig())
	}
	return defaultLogger
}

// Discard returns a logger that drops everything. Components constructed
// without a logger use it.
func Discard() *Logger {
	return New(Config{Level: LevelError, Format: FormatText, Output: NewOutput(io.Discard)})
}
