package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/me/onelane/internal/logging"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds configuration for the onelane server.
type ServerConfig struct {
	Addr      string `yaml:"addr" env:"ONELANE_ADDR"`             // Listen address (default ":8080")
	LogLevel  string `yaml:"log_level" env:"ONELANE_LOG_LEVEL"`   // Log level: debug, info, warn, error
	LogFormat string `yaml:"log_format" env:"ONELANE_LOG_FORMAT"` // Log format: text, json
	DBPath    string `yaml:"db_path" env:"ONELANE_DB"`            // Journal path (default ~/.onelane/journal.db, ":memory:" for testing)

	JournalEnabled     bool    `yaml:"journal_enabled" env:"ONELANE_JOURNAL"`
	BridgeLengthMeters float64 `yaml:"bridge_length_meters" env:"ONELANE_BRIDGE_LENGTH"`
	DefaultPriority    int     `yaml:"default_priority" env:"ONELANE_DEFAULT_PRIORITY"`

	PeerBuffer      int `yaml:"peer_buffer" env:"ONELANE_PEER_BUFFER"`             // Frames queued per observer before it is dropped
	MaxFrameBytes   int `yaml:"max_frame_bytes" env:"ONELANE_MAX_FRAME_BYTES"`     // Largest inbound websocket frame
	MaxDecodeErrors int `yaml:"max_decode_errors" env:"ONELANE_MAX_DECODE_ERRORS"` // Consecutive bad frames before disconnect; 0 disables
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:               ":8080",
		LogLevel:           "info",
		LogFormat:          "text",
		JournalEnabled:     true,
		BridgeLengthMeters: 500,
		DefaultPriority:    3,
		PeerBuffer:         64,
		MaxFrameBytes:      64 << 10,
		MaxDecodeErrors:    0,
	}
}

// LoadFile overlays values from a YAML file onto cfg. Keys absent from the
// file keep their current values.
func LoadFile(cfg *ServerConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays ONELANE_* environment variables onto cfg.
func ApplyEnv(cfg *ServerConfig) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ResolveDBPath returns the journal database path, defaulting to
// ~/.onelane/journal.db. The parent directory is created when needed.
func (c ServerConfig) ResolveDBPath() (string, error) {
	if c.DBPath == ":memory:" {
		return c.DBPath, nil
	}
	path := c.DBPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		path = filepath.Join(home, ".onelane", "journal.db")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create %s: %w", dir, err)
	}
	return path, nil
}

// Validate rejects configurations the server cannot run with.
func (c ServerConfig) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if _, err := logging.LookupLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseFormat(c.LogFormat); err != nil {
		errs = append(errs, err)
	}
	if c.BridgeLengthMeters <= 0 {
		errs = append(errs, fmt.Errorf("bridge_length_meters must be positive, got %v", c.BridgeLengthMeters))
	}
	if c.PeerBuffer < 1 {
		errs = append(errs, fmt.Errorf("peer_buffer must be at least 1, got %d", c.PeerBuffer))
	}
	if c.MaxFrameBytes < 1 {
		errs = append(errs, fmt.Errorf("max_frame_bytes must be at least 1, got %d", c.MaxFrameBytes))
	}
	if c.MaxDecodeErrors < 0 {
		errs = append(errs, fmt.Errorf("max_decode_errors must not be negative, got %d", c.MaxDecodeErrors))
	}
	return errors.Join(errs...)
}
