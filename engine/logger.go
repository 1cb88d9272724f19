package engine

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger   *zap.Logger
	loggerMu sync.RWMutex
)

// Logger returns the engine's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l == nil {
		loggerMu.Lock()
		if logger == nil {
			logger = zap.NewNop()
		}
		l = logger
		loggerMu.Unlock()
	}
	return l
}

// SetLogger replaces the package logger. Pass nil to restore the no-op
// logger.
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
	loggerMu.Unlock()
}
