package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLoggerTo_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := WithSessionID(WithComponent(NewLoggerTo(&buf, "info"), "encode"), "abc")
	logger.Debug("hidden")
	logger.Info("hello", "n", 1)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if rec["msg"] != "hello" || rec["component"] != "encode" || rec["session_id"] != "abc" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestOpenAppLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	appLog, err := OpenAppLog(dir)
	if err != nil {
		t.Fatalf("OpenAppLog: %v", err)
	}
	defer appLog.Close()

	if _, err := appLog.Write([]byte("line\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	current := appLog.CurrentFile()
	if filepath.Dir(current) != dir || !strings.HasPrefix(filepath.Base(current), "app.") {
		t.Fatalf("CurrentFile() = %q", current)
	}
	data, err := os.ReadFile(current)
	if err != nil {
		t.Fatalf("read app log: %v", err)
	}
	if string(data) != "line\n" {
		t.Fatalf("app log content = %q", data)
	}
}

func TestSessionLogName(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	tests := []struct {
		source string
		want   string
	}{
		{"/videos/holiday.mp4", "encoding_2024-03-09_140507_holiday.log"},
		{"/videos/my clip (final)!.mkv", "encoding_2024-03-09_140507_my clip final.log"},
		{"/videos/été-2023.mov", "encoding_2024-03-09_140507_été-2023.log"},
		{"/videos/" + strings.Repeat("a", 40) + ".mp4", "encoding_2024-03-09_140507_" + strings.Repeat("a", 30) + ".log"},
		{"/videos/@@@.mp4", "encoding_2024-03-09_140507.log"},
	}

	for _, tt := range tests {
		if got := SessionLogName(tt.source, now); got != tt.want {
			t.Errorf("SessionLogName(%q) = %q, want %q", tt.source, got, tt.want)
		}
	}
}

func TestOpenSessionLog(t *testing.T) {
	dir := t.TempDir()
	sl, err := OpenSessionLog(dir, "/videos/clip.mp4", time.Now())
	if err != nil {
		t.Fatalf("OpenSessionLog: %v", err)
	}
	sl.Info("command", "args", "-i clip.mp4")
	if err := sl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if !strings.HasPrefix(filepath.Base(sl.Path()), "encoding_") {
		t.Fatalf("unexpected path %q", sl.Path())
	}
	data, err := os.ReadFile(sl.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "msg=command") {
		t.Fatalf("transcript missing entry: %q", data)
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("short"); got != "****" {
		t.Errorf("SanitizeToken(short) = %q", got)
	}
	if got := SanitizeToken("abcdefghijkl"); got != "abcd...ijkl" {
		t.Errorf("SanitizeToken = %q", got)
	}
}
