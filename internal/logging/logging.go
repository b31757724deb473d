// Package logging holds the process wide zerolog logger.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

var (
	// L is the logger every package writes to.
	L = newConsoleLogger(os.Stdout)

	logFile *os.File
)

func newConsoleLogger(w io.Writer) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(out).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}

// SetLogLevel changes the level of L.
func SetLogLevel(level zerolog.Level) {
	L = L.Level(level)
}

// ParseLevel maps a config string onto a zerolog level. Unknown values fall
// back to info.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetLogOutput duplicates all log lines into dir/fileName in addition to the
// console.
func SetLogOutput(dir, fileName string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}
	f, err := os.OpenFile(
		filepath.Join(dir, fileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640,
	)
	if err != nil {
		return err
	}
	logFile = f

	level := L.GetLevel()
	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	L = zerolog.New(zerolog.MultiLevelWriter(console, f)).
		With().Timestamp().Logger().Level(level)
	return nil
}

// SetOutput replaces the console destination. Tests use it to silence or
// capture progress lines.
func SetOutput(w io.Writer) {
	level := L.GetLevel()
	L = newConsoleLogger(w).Level(level)
}

// Close flushes and closes the log file if one was configured.
func Close() {
	if logFile == nil {
		return
	}
	_ = logFile.Sync()
	_ = logFile.Close()
	logFile = nil
}
