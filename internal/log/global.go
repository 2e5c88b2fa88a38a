package log

import "sync"

var (
	processLogger *Logger
	processMu     sync.RWMutex
)

// SetDefaultLogger installs the logger that components fall back to when
// they are built without one. The CLI sets it once its configuration is
// loaded. Passing nil restores the silent default.
func SetDefaultLogger(logger *Logger) {
	processMu.Lock()
	processLogger = logger
	processMu.Unlock()
}

// DefaultLogger returns the installed process logger, or a logger that
// discards everything until one is installed.
func DefaultLogger() *Logger {
	processMu.RLock()
	defer processMu.RUnlock()
	if processLogger == nil {
		return Nop()
	}
	return processLogger
}
