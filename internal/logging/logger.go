// Package logging provides span's rotated, project-local log file.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps a standard library *log.Logger writing to a rotated file
// under .span/, optionally emitting JSON lines instead of plain text.
type Logger struct {
	logger   *log.Logger
	jsonMode bool
	rotator  *lumberjack.Logger
}

var (
	global     *Logger
	globalOnce sync.Once
)

// Get returns the process-wide singleton logger, creating it on first call.
// SPAN_VERBOSE=1 (set when the CLI's --verbose flag is passed) switches the
// log to JSON lines; what gets logged is the same either way.
func Get() *Logger {
	globalOnce.Do(func() {
		global = newLogger(filepath.Join(".span", "span.log"))
	})
	return global
}

func newLogger(path string) *Logger {
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    15, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	return &Logger{
		logger:   log.New(rotator, "", log.LstdFlags),
		jsonMode: os.Getenv("SPAN_VERBOSE") == "1",
		rotator:  rotator,
	}
}

// Close releases the underlying rotated file handle.
func (l *Logger) Close() error {
	return l.rotator.Close()
}

// Info logs a formatted informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.write("info", fmt.Sprintf(format, args...))
}

// Error logs an error, unwrapped to its message.
func (l *Logger) Error(err error) {
	l.write("error", err.Error())
}

func (l *Logger) write(level, message string) {
	if l.jsonMode {
		_ = json.NewEncoder(l.logger.Writer()).Encode(map[string]any{"level": level, "msg": message})
		return
	}
	l.logger.Printf("[%s] %s", level, message)
}
