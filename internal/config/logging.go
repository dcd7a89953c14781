package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

const appName = "datacompass"

// LogFileOff disables the JSON log file.
const LogFileOff = "off"

// DefaultLogFile returns the JSON log location in the user's state
// directory ($XDG_STATE_HOME/datacompass or ~/.local/state/datacompass).
func DefaultLogFile() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName, appName+".log")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", appName, appName+".log")
	}
	return filepath.Join(os.TempDir(), appName+".log")
}

// SetupLogger returns a logger writing text lines to stderr and JSON lines
// to logFile, creating its directory when missing. With logFile set to
// LogFileOff, or when the file cannot be opened, only stderr is used. The
// returned function closes the file.
func SetupLogger(logFile string, level slog.Level) (*slog.Logger, func() error) {
	noop := func() error { return nil }
	if logFile == "" || strings.EqualFold(logFile, LogFileOff) {
		return slog.New(consoleHandler(os.Stderr, level)), noop
	}

	file, err := openLogFile(logFile)
	if err != nil {
		logger := slog.New(consoleHandler(os.Stderr, level))
		logger.Warn("log file unavailable, logging to stderr only", "file", logFile, "error", err)
		return logger, noop
	}
	return SetupLoggerWithWriters(os.Stderr, file, level), file.Close
}

// SetupLoggerWithWriters fans out to a console writer and a JSON writer.
// JSON records carry the app name and process id so several sessions can
// share one file.
func SetupLoggerWithWriters(console, jsonOut io.Writer, level slog.Level) *slog.Logger {
	jsonHandler := slog.NewJSONHandler(jsonOut, &slog.HandlerOptions{Level: level}).
		WithAttrs([]slog.Attr{slog.String("app", appName), slog.Int("pid", os.Getpid())})
	return slog.New(slogmulti.Fanout(consoleHandler(console, level), jsonHandler))
}

// consoleHandler writes text records without timestamps.
func consoleHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	})
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
