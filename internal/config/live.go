package config

import "sync"

// Live holds the current configuration and lets a reload replace it while
// readers keep going.
type Live struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewLive wraps cfg.
func NewLive(cfg *Config) *Live {
	return &Live{cfg: cfg}
}

// Get returns the current config. Callers must not modify it.
func (l *Live) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// Set replaces the current config.
func (l *Live) Set(cfg *Config) {
	l.mu.Lock()
	l.cfg = cfg
	l.mu.Unlock()
}

// Endpoint returns the upstream endpoint of the current config.
func (l *Live) Endpoint() string {
	return l.Get().Upstream.Endpoint
}
