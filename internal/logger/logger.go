// Package logger is the engine's process-wide diagnostic log.
//
// Lines go to stderr. Error lines are always written; everything else
// needs --verbose. Stdout is left to command output and, for MCP over
// stdio, to the protocol.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Level orders log lines by severity.
type Level int

// Levels, lowest first.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var prefixes = [...]string{
	LevelDebug: "[DEBUG] ",
	LevelInfo:  "[INFO] ",
	LevelWarn:  "[WARN] ",
	LevelError: "[ERROR] ",
}

var (
	mu        sync.RWMutex
	threshold           = LevelError
	output    io.Writer = os.Stderr
)

// SetVerbose lowers the threshold to Debug, or restores Error-only output.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	if v {
		threshold = LevelDebug
	} else {
		threshold = LevelError
	}
}

// IsVerbose reports whether debug lines are written.
func IsVerbose() bool {
	return Enabled(LevelDebug)
}

// Enabled reports whether lines at level are written.
func Enabled(level Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return level >= threshold
}

// SetOutput redirects log lines; tests capture with a buffer.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Debug traces a pipeline stage.
func Debug(format string, args ...any) { write(LevelDebug, format, args...) }

// Info reports progress such as a dataset load.
func Info(format string, args ...any) { write(LevelInfo, format, args...) }

// Warn reports a failure that was absorbed, e.g. a dropped telemetry record.
func Warn(format string, args ...any) { write(LevelWarn, format, args...) }

// Error reports a failure the user must see.
func Error(format string, args ...any) { write(LevelError, format, args...) }

// Section starts a block of related debug lines.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if LevelDebug >= threshold {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

func write(level Level, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if level < threshold {
		return
	}
	fmt.Fprintf(output, prefixes[level]+format+"\n", args...)
}
