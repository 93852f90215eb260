package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables that override values from the config file.
const (
	EnvUpstreamEndpoint = "KIKU_UPSTREAM_ENDPOINT"
	EnvUpstreamTimeout  = "KIKU_UPSTREAM_TIMEOUT"
	EnvServerHost       = "KIKU_SERVER_HOST"
	EnvServerPort       = "KIKU_SERVER_PORT"
	EnvDebug            = "KIKU_DEBUG"
	EnvLogFile          = "KIKU_LOG_FILE"
)

// LoadDotEnv loads a .env file from the working directory when one exists.
// Variables already set in the environment win.
func LoadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	if err := godotenv.Load(); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg fields from KIKU_* environment variables.
func ApplyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv(EnvUpstreamEndpoint); ok {
		cfg.Upstream.Endpoint = v
	}
	if v, ok := os.LookupEnv(EnvUpstreamTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvUpstreamTimeout, err)
		}
		cfg.Upstream.Timeout = d
	}
	if v, ok := os.LookupEnv(EnvServerHost); ok {
		cfg.Server.Host = v
	}
	if v, ok := os.LookupEnv(EnvServerPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvServerPort, err)
		}
		cfg.Server.Port = port
	}
	if v, ok := os.LookupEnv(EnvDebug); ok {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvDebug, err)
		}
		cfg.Debug = debug
	}
	if v, ok := os.LookupEnv(EnvLogFile); ok {
		cfg.LogFile = v
	}
	return nil
}
