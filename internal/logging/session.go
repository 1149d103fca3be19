package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

const maxSessionNameRunes = 30

// SessionLog is the plain-text transcript of one encoding session.
type SessionLog struct {
	*slog.Logger

	path string
	file *os.File
}

// OpenSessionLog creates logs/encoding_YYYY-MM-DD_HHMMSS_<name>.log in dir,
// where name is a sanitised fragment of source.
func OpenSessionLog(dir, source string, now time.Time) (*SessionLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	path := filepath.Join(dir, SessionLogName(source, now))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open session log: %w", err)
	}

	handler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
	return &SessionLog{Logger: slog.New(handler), path: path, file: f}, nil
}

// SessionLogName builds the file name for a session started at now.
func SessionLogName(source string, now time.Time) string {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	name := fmt.Sprintf("encoding_%s", now.Format("2006-01-02_150405"))
	if safe := sanitizeSessionName(stem); safe != "" {
		name += "_" + safe
	}
	return name + ".log"
}

// sanitizeSessionName keeps letters, digits and "._- ", capped at 30 runes.
func sanitizeSessionName(s string) string {
	var b strings.Builder
	n := 0
	for _, r := range s {
		if n == maxSessionNameRunes {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("._- ", r) {
			b.WriteRune(r)
			n++
		}
	}
	return strings.TrimSpace(b.String())
}

func (s *SessionLog) Path() string {
	return s.path
}

func (s *SessionLog) Close() error {
	return s.file.Close()
}
