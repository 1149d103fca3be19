package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{EnvPort, EnvLogLevel, EnvFFmpeg, EnvFFprobe, EnvHeadless, EnvDisableHWAccel, EnvConfigFile} {
		t.Setenv(name, "")
	}
	t.Setenv(EnvDataDir, t.TempDir())
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFilename)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestNew_Defaults(t *testing.T) {
	clearEnv(t)
	dataDir := os.Getenv(EnvDataDir)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port() = %d, want %d", cfg.Port(), DefaultPort)
	}
	if cfg.LogLevel() != DefaultLogLevel {
		t.Errorf("LogLevel() = %q", cfg.LogLevel())
	}
	if cfg.FFmpegPath() != "ffmpeg" || cfg.FFprobePath() != "ffprobe" {
		t.Errorf("binaries = %q, %q", cfg.FFmpegPath(), cfg.FFprobePath())
	}
	if cfg.Headless() || cfg.HWAccelDisabled() {
		t.Error("boolean flags should default to false")
	}
	if cfg.DBPath() != filepath.Join(dataDir, DBFilename) {
		t.Errorf("DBPath() = %q", cfg.DBPath())
	}
	if cfg.LogDir() != filepath.Join(dataDir, "logs") {
		t.Errorf("LogDir() = %q", cfg.LogDir())
	}
	if cfg.File() != "" {
		t.Errorf("File() = %q, want empty when no config file exists", cfg.File())
	}
}

func TestNew_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPort, "9001")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvFFmpeg, "/opt/ffmpeg")
	t.Setenv(EnvHeadless, "true")
	t.Setenv(EnvDisableHWAccel, "1")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 9001 || cfg.LogLevel() != "debug" || cfg.FFmpegPath() != "/opt/ffmpeg" {
		t.Errorf("overrides not applied: port=%d level=%s ffmpeg=%s", cfg.Port(), cfg.LogLevel(), cfg.FFmpegPath())
	}
	if !cfg.Headless() || !cfg.HWAccelDisabled() {
		t.Error("boolean overrides not applied")
	}
}

func TestNew_InvalidEnv(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port not a number", EnvPort, "abc"},
		{"port out of range", EnvPort, "70000"},
		{"bad bool", EnvHeadless, "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := New(); err == nil {
				t.Errorf("New() with %s=%q should fail", tt.key, tt.value)
			}
		})
	}
}

func TestNew_FileFromDataDir(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, os.Getenv(EnvDataDir), `
port = 9100
log_level = "warn"
ffprobe = "/usr/local/bin/ffprobe"
disable_hwaccel = true
`)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.File() != path {
		t.Errorf("File() = %q, want %q", cfg.File(), path)
	}
	if cfg.Port() != 9100 || cfg.LogLevel() != "warn" || cfg.FFprobePath() != "/usr/local/bin/ffprobe" {
		t.Errorf("file values not applied: port=%d level=%s ffprobe=%s", cfg.Port(), cfg.LogLevel(), cfg.FFprobePath())
	}
	if !cfg.HWAccelDisabled() {
		t.Error("disable_hwaccel not applied")
	}
}

func TestNew_EnvBeatsFile(t *testing.T) {
	clearEnv(t)
	writeConfig(t, os.Getenv(EnvDataDir), "port = 9100\nheadless = true\n")
	t.Setenv(EnvPort, "9200")
	t.Setenv(EnvHeadless, "false")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 9200 {
		t.Errorf("Port() = %d, want env value 9200", cfg.Port())
	}
	if cfg.Headless() {
		t.Error("Headless() = true, want env value false")
	}
}

func TestNew_ExplicitConfigFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, `data_dir = "/srv/simplecut"`)
	t.Setenv(EnvConfigFile, path)
	t.Setenv(EnvDataDir, "")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DataDir() != "/srv/simplecut" {
		t.Errorf("DataDir() = %q", cfg.DataDir())
	}
}

func TestNew_ExplicitConfigFileMissing(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "nope.toml"))

	if _, err := New(); err == nil {
		t.Error("New() should fail when SIMPLECUT_CONFIG points at a missing file")
	}
}

func TestNew_MalformedFile(t *testing.T) {
	clearEnv(t)
	writeConfig(t, os.Getenv(EnvDataDir), "port = [")

	if _, err := New(); err == nil {
		t.Error("New() should fail on malformed TOML")
	}
}
