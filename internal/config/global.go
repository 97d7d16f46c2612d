// Package config loads the bt2-go command-line settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Global holds the settings read from ~/.bt2-go/config.yaml.
type Global struct {
	// LogLevel is the libbabeltrace2 logging level: none, trace, debug,
	// info, warn, error or fatal.
	LogLevel string `yaml:"log_level"`

	Log     LogConfig     `yaml:"log"`
	Live    LiveConfig    `yaml:"live"`
	Decoder DecoderConfig `yaml:"decoder"`
}

// LogConfig selects the wrapper's own logger.
type LogConfig struct {
	// Backend is slog or zap.
	Backend string `yaml:"backend"`
	// Format is text or json.
	Format  string `yaml:"format"`
	Verbose bool   `yaml:"verbose"`
}

// LiveConfig holds the defaults of the live command.
type LiveConfig struct {
	PollInterval          time.Duration `yaml:"poll_interval"`
	SessionNotFoundAction string        `yaml:"session_not_found_action"`
}

// DecoderConfig holds the defaults of the packet command.
type DecoderConfig struct {
	MaxRequestSize uint64 `yaml:"max_request_size"`
}

// DefaultGlobal returns the settings used when no file overrides them.
func DefaultGlobal() *Global {
	return &Global{
		LogLevel: "warn",
		Log: LogConfig{
			Backend: "slog",
			Format:  "text",
		},
		Live: LiveConfig{
			PollInterval:          100 * time.Millisecond,
			SessionNotFoundAction: "continue",
		},
		Decoder: DecoderConfig{
			MaxRequestSize: 4096,
		},
	}
}

// Dir returns the path to ~/.bt2-go.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".bt2-go")
	}
	return filepath.Join(home, ".bt2-go")
}

// DefaultPath returns the path to ~/.bt2-go/config.yaml.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// LoadGlobal reads the file at path, DefaultPath when empty, and applies
// environment overrides. A missing file is not an error.
func LoadGlobal(path string) (*Global, error) {
	cfg := DefaultGlobal()
	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path) // #nosec G304 -- user-selected config file
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Global) error {
	if v := os.Getenv("BT2GO_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BT2GO_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("BT2GO_LIVE_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("BT2GO_LIVE_POLL_INTERVAL: %w", err)
		}
		cfg.Live.PollInterval = d
	}
	if v := os.Getenv("BT2GO_MAX_REQUEST_SIZE"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("BT2GO_MAX_REQUEST_SIZE: %w", err)
		}
		cfg.Decoder.MaxRequestSize = n
	}
	return nil
}
