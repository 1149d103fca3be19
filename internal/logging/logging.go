// Package logging provides structured logging for the simplecut agent.
// It uses the standard library log/slog package for structured logging.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
)

const (
	// AppLogRetention is how long rotated app logs are kept.
	AppLogRetention = 7 * 24 * time.Hour
	appLogName      = "app.log"
)

// ParseLevel maps a level name to a slog.Level, defaulting to info.
// Supported levels: debug, info, warn, error
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a new structured JSON logger on stdout.
func NewLogger(level string) *slog.Logger {
	return NewLoggerTo(os.Stdout, level)
}

// NewLoggerTo creates a JSON logger writing to w.
func NewLoggerTo(w io.Writer, level string) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		// Add source location for debug level
		AddSource: lvl == slog.LevelDebug,
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// AppLog is the daily rotating application log file.
type AppLog struct {
	rl *rotatelogs.RotateLogs
}

// OpenAppLog opens logs/app.YYYYMMDD.log under dir, rotating at midnight and
// keeping a week of history. logs/app.log links to the current file.
func OpenAppLog(dir string) (*AppLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	rl, err := rotatelogs.New(
		filepath.Join(dir, "app.%Y%m%d.log"),
		rotatelogs.WithLinkName(filepath.Join(dir, appLogName)),
		rotatelogs.WithRotationTime(24*time.Hour),
		rotatelogs.WithMaxAge(AppLogRetention),
	)
	if err != nil {
		return nil, fmt.Errorf("open app log: %w", err)
	}
	return &AppLog{rl: rl}, nil
}

func (a *AppLog) Write(p []byte) (int, error) {
	return a.rl.Write(p)
}

// CurrentFile returns the path of the file currently written to.
func (a *AppLog) CurrentFile() string {
	return a.rl.CurrentFileName()
}

func (a *AppLog) Close() error {
	return a.rl.Close()
}

// NewAppLogger logs JSON to stdout and to the rotating app log.
func NewAppLogger(level string, appLog *AppLog) *slog.Logger {
	if appLog == nil {
		return NewLogger(level)
	}
	return NewLoggerTo(io.MultiWriter(os.Stdout, appLog), level)
}

// WithRequestID returns a logger with request_id attribute
func WithRequestID(logger *slog.Logger, requestID string) *slog.Logger {
	return logger.With("request_id", requestID)
}

// WithComponent returns a logger with component attribute
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

// WithSessionID returns a logger with session_id attribute
func WithSessionID(logger *slog.Logger, sessionID string) *slog.Logger {
	return logger.With("session_id", sessionID)
}

// SanitizeToken masks a token for safe logging.
// Shows first 4 and last 4 characters only.
// Returns "****" for tokens shorter than 8 characters.
func SanitizeToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizePath masks sensitive parts of a file path.
// Replaces home directory with ~ for privacy.
func SanitizePath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
