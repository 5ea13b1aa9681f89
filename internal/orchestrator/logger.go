package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	pkgLogger   *DebugLogger
	pkgLoggerMu sync.RWMutex
)

func setPackageLogger(l *DebugLogger) {
	pkgLoggerMu.Lock()
	defer pkgLoggerMu.Unlock()
	pkgLogger = l
}

// debugLog writes through the package-level logger so components without
// a logger of their own (registry, state machine) land in the same file.
func debugLog(format string, args ...interface{}) {
	pkgLoggerMu.RLock()
	l := pkgLogger
	pkgLoggerMu.RUnlock()

	l.Log(format, args...)
}

// DebugLogger appends timestamped lines to an orchestrator debug log.
// The zero value is a no-op logger.
type DebugLogger struct {
	mu   sync.Mutex
	file *os.File
}

// DebugLogPath returns the debug log location for a project.
func DebugLogPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".fulfiller", "logs", "orchestrator-debug.log")
}

// NewDebugLogger creates a logger writing to path, creating parent
// directories as needed. An empty path returns a no-op logger.
func NewDebugLogger(path string) (*DebugLogger, error) {
	if path == "" {
		return &DebugLogger{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	logger := &DebugLogger{file: f}
	logger.Log("=== Orchestrator Debug Log Started at %s ===", time.Now().Format(time.RFC3339))
	return logger, nil
}

// NewDebugLoggerForProject opens the project's debug log, falling back to
// a no-op logger if it cannot be created.
func NewDebugLoggerForProject(projectRoot string) *DebugLogger {
	logger, err := NewDebugLogger(DebugLogPath(projectRoot))
	if err != nil {
		return &DebugLogger{}
	}
	return logger
}

// NopLogger returns a no-op logger.
func NopLogger() *DebugLogger {
	return &DebugLogger{}
}

// Log writes a timestamped message. Nil and no-op loggers discard it.
func (l *DebugLogger) Log(format string, args ...interface{}) {
	if l == nil || l.file == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(l.file, "[%s] %s\n", timestamp, fmt.Sprintf(format, args...))
	l.file.Sync()
}

// Close closes the log file.
func (l *DebugLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}
