// Package config provides configuration loading and structs for the kiku server and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool           `yaml:"debug"`
	LogFile     string         `yaml:"log_file"`
	WatchConfig bool           `yaml:"watch_config"`
	Server      ServerConfig   `yaml:"server"`
	Upstream    UpstreamConfig `yaml:"upstream"`
	Storage     StorageConfig  `yaml:"storage"`
	Sessions    SessionsConfig `yaml:"sessions"`
	Auth        AuthConfig     `yaml:"auth"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port" validate:"min=1,max=65535"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	SessionCookie  string        `yaml:"session_cookie"`
}

// UpstreamConfig points at the prediction endpoint that answers queries.
// A zero Timeout means requests wait until the caller's context ends.
type UpstreamConfig struct {
	Endpoint string        `yaml:"endpoint" validate:"required,url"`
	Timeout  time.Duration `yaml:"timeout"`
}

// StorageConfig holds paths for the history database and its full-text index,
// plus history search tuning.
type StorageConfig struct {
	DatabasePath      string  `yaml:"database_path"`
	HistoryIndexPath  string  `yaml:"history_index_path"`
	HistoryQueryBoost float64 `yaml:"history_query_boost" validate:"gte=0"`
	HistoryFuzziness  int     `yaml:"history_fuzziness" validate:"gte=0,lte=2"`
}

// SessionsConfig controls how long idle chat sessions are kept in memory.
type SessionsConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// AuthConfig names the header a fronting auth proxy uses to pass the signed-in user.
type AuthConfig struct {
	UserHeader string `yaml:"user_header"`
}

// Load reads and parses the config file at path, applies environment overrides,
// expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.HistoryIndexPath = expandPath(cfg.Storage.HistoryIndexPath, configDir)
	if cfg.LogFile != "" {
		cfg.LogFile = expandPath(cfg.LogFile, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
