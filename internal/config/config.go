// Package config provides configuration management for the SimpleCut agent.
// Defaults are overridden by an optional TOML file, then by environment
// variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	// Default values
	DefaultPort     = 8787
	DefaultLogLevel = "info"
	DefaultDataDir  = ".simplecut"
	DefaultFFmpeg   = "ffmpeg"
	DefaultFFprobe  = "ffprobe"

	// Environment variable names
	EnvPort           = "SIMPLECUT_PORT"
	EnvLogLevel       = "SIMPLECUT_LOG_LEVEL"
	EnvDataDir        = "SIMPLECUT_DATA_DIR"
	EnvFFmpeg         = "SIMPLECUT_FFMPEG"
	EnvFFprobe        = "SIMPLECUT_FFPROBE"
	EnvHeadless       = "SIMPLECUT_HEADLESS"
	EnvDisableHWAccel = "SIMPLECUT_DISABLE_HWACCEL"
	EnvConfigFile     = "SIMPLECUT_CONFIG"

	// Database filename
	DBFilename = "simplecut.db"

	// ConfigFilename is looked up in the data directory when EnvConfigFile is unset.
	ConfigFilename = "config.toml"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	LogDir() string
	FFmpegPath() string
	FFprobePath() string
	Headless() bool
	HWAccelDisabled() bool
}

// fileConfig mirrors the TOML file. Pointers distinguish "absent" from zero.
type fileConfig struct {
	Port           *int    `toml:"port"`
	LogLevel       *string `toml:"log_level"`
	DataDir        *string `toml:"data_dir"`
	FFmpeg         *string `toml:"ffmpeg"`
	FFprobe        *string `toml:"ffprobe"`
	Headless       *bool   `toml:"headless"`
	DisableHWAccel *bool   `toml:"disable_hwaccel"`
}

// EnvConfig holds the resolved configuration.
type EnvConfig struct {
	port           int
	logLevel       string
	dataDir        string
	ffmpeg         string
	ffprobe        string
	headless       bool
	disableHWAccel bool

	file string
}

// New creates a new EnvConfig with defaults, file and environment overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:     DefaultPort,
		logLevel: DefaultLogLevel,
		dataDir:  defaultDataDir(),
		ffmpeg:   DefaultFFmpeg,
		ffprobe:  DefaultFFprobe,
	}

	// The data dir from the environment also decides where config.toml lives.
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	path := os.Getenv(EnvConfigFile)
	explicit := path != ""
	if !explicit {
		path = filepath.Join(cfg.dataDir, ConfigFilename)
	}
	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *EnvConfig) loadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("invalid config file %s: %w", path, err)
	}

	if fc.Port != nil {
		if err := validatePort(*fc.Port); err != nil {
			return fmt.Errorf("invalid port in %s: %w", path, err)
		}
		c.port = *fc.Port
	}
	if fc.LogLevel != nil {
		c.logLevel = *fc.LogLevel
	}
	// An env data dir wins over the file's, as every other env var does.
	if fc.DataDir != nil && os.Getenv(EnvDataDir) == "" {
		c.dataDir = *fc.DataDir
	}
	if fc.FFmpeg != nil {
		c.ffmpeg = *fc.FFmpeg
	}
	if fc.FFprobe != nil {
		c.ffprobe = *fc.FFprobe
	}
	if fc.Headless != nil {
		c.headless = *fc.Headless
	}
	if fc.DisableHWAccel != nil {
		c.disableHWAccel = *fc.DisableHWAccel
	}
	c.file = path
	return nil
}

func (c *EnvConfig) applyEnv() error {
	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if err := validatePort(port); err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		c.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		c.logLevel = ll
	}
	if v := os.Getenv(EnvFFmpeg); v != "" {
		c.ffmpeg = v
	}
	if v := os.Getenv(EnvFFprobe); v != "" {
		c.ffprobe = v
	}

	var err error
	if c.headless, err = envBool(EnvHeadless, c.headless); err != nil {
		return err
	}
	if c.disableHWAccel, err = envBool(EnvDisableHWAccel, c.disableHWAccel); err != nil {
		return err
	}
	return nil
}

func envBool(name string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", name, err)
	}
	return b, nil
}

func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	return nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// LogDir holds the rotating app log and the encoding session transcripts.
func (c *EnvConfig) LogDir() string {
	return filepath.Join(c.dataDir, "logs")
}

func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpeg
}

func (c *EnvConfig) FFprobePath() string {
	return c.ffprobe
}

// Headless disables the system tray.
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// HWAccelDisabled forces the software encoder.
func (c *EnvConfig) HWAccelDisabled() bool {
	return c.disableHWAccel
}

// File is the config file that was applied, or "" if none was found.
func (c *EnvConfig) File() string {
	return c.file
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
