package logger

import (
	"strings"
	"sync"
)

// Log levels accepted in the log_level setting.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

var (
	globalLogger *Logger
	once         sync.Once
)

// Get returns the process-wide logger. The first call picks the level;
// later calls return the same instance.
func Get(level string) *Logger {
	once.Do(func() {
		globalLogger = newZapLogger(strings.ToLower(strings.TrimSpace(level)))
	})
	return globalLogger
}

// ForBox returns a child logger tagging every entry with the box index and name.
func (l *Logger) ForBox(id int, name string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{SugaredLogger: l.With("box", id, "box_name", name)}
}

// Nop returns a logger that discards everything. Used by tests and the CLI one-shots.
func Nop() *Logger {
	return newNopLogger()
}
