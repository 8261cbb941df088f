// Package applog provides general-purpose application logging.
//
// Logs are written to <dir>/app.log (normally ~/.querybot/logs) with
// timestamps. Nothing is written until Open is called, so packages can
// log freely from tests. Covers: app start/stop, session lifecycle,
// request dispatch and resolution, and transient notices.
package applog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level gates which messages are written.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

var (
	mu    sync.Mutex
	out   io.Writer
	file  *os.File
	level = LevelInfo
)

// ParseLevel maps a config string to a Level; unknown values mean info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Open starts appending to <dir>/app.log.
func Open(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, "app.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.Close()
	}
	file = f
	out = f
	return nil
}

// SetOutput redirects logging to w (nil disables it).
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetLevel sets the global log level.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

func write(l Level, tag string, format string, args []interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if out == nil || l > level {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(out, "[%s] %-12s %s\n", ts, tag, msg) //nolint:errcheck
}

// Info logs a general info message.
func Info(format string, args ...interface{}) {
	write(LevelInfo, "INFO", format, args)
}

// Warn logs a recoverable problem.
func Warn(format string, args ...interface{}) {
	write(LevelWarn, "WARN", format, args)
}

// Error logs an error message.
func Error(format string, args ...interface{}) {
	write(LevelError, "ERROR", format, args)
}

// Debug logs detail only useful when chasing a problem.
func Debug(format string, args ...interface{}) {
	write(LevelDebug, "DEBUG", format, args)
}

// Event logs a structured event with a category.
func Event(category string, format string, args ...interface{}) {
	write(LevelInfo, category, format, args)
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.Close()
		file = nil
	}
	out = nil
}
