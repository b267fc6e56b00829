// Package config loads application settings for MCP Play processes.
//
// Settings are resolved in three layers: built-in defaults, then the optional
// settings.yaml file in the per-user config directory, then MCPPLAY_*
// environment variables. Later layers win. The published primary record is
// not part of these settings — it lives in the discovery package and is a
// wire contract, not user configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"github.com/whitneyland/mcpplay-core/paths"
)

// Defaults for every setting. The poll cadence and discovery ceiling are a
// configuration contract shared with the election protocol: a proxy-candidate
// polls the primary record every PollIntervalMS until DiscoveryTimeoutSec
// elapses.
const (
	DefaultHost                = "127.0.0.1"
	DefaultPort                = 4000
	DefaultPollIntervalMS      = 200
	DefaultDiscoveryTimeoutSec = 15
	DefaultCacheCapacity       = 24
	DefaultLogLevel            = "info"
)

// Settings holds the tunable configuration for both primary and proxy modes.
type Settings struct {
	Host                string `yaml:"host" env:"MCPPLAY_HOST"`
	Port                int    `yaml:"port" env:"MCPPLAY_PORT"`
	PollIntervalMS      int    `yaml:"poll_interval_ms" env:"MCPPLAY_POLL_INTERVAL_MS"`
	DiscoveryTimeoutSec int    `yaml:"discovery_timeout_sec" env:"MCPPLAY_DISCOVERY_TIMEOUT_SEC"`
	CacheCapacity       int    `yaml:"cache_capacity" env:"MCPPLAY_CACHE_CAPACITY"`
	LogLevel            string `yaml:"log_level" env:"MCPPLAY_LOG_LEVEL"`
}

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		Host:                DefaultHost,
		Port:                DefaultPort,
		PollIntervalMS:      DefaultPollIntervalMS,
		DiscoveryTimeoutSec: DefaultDiscoveryTimeoutSec,
		CacheCapacity:       DefaultCacheCapacity,
		LogLevel:            DefaultLogLevel,
	}
}

// Load resolves settings from defaults, settings.yaml, and the environment.
// A missing settings file is not an error.
func Load() (*Settings, error) {
	path, err := paths.SettingsPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom is Load with an explicit settings file path, for tests.
func LoadFrom(path string) (*Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
		}
	}

	// Environment overrides. envdecode reports "no fields set" when none of
	// the MCPPLAY_* variables are present, which is the common case.
	if err := envdecode.Decode(s); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that the settings are usable.
func (s *Settings) Validate() error {
	if s.Host == "" {
		return fmt.Errorf("host must not be empty")
	}
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("port %d out of range", s.Port)
	}
	if s.PollIntervalMS <= 0 {
		return fmt.Errorf("poll_interval_ms must be positive, got %d", s.PollIntervalMS)
	}
	if s.DiscoveryTimeoutSec <= 0 {
		return fmt.Errorf("discovery_timeout_sec must be positive, got %d", s.DiscoveryTimeoutSec)
	}
	if s.CacheCapacity <= 0 {
		return fmt.Errorf("cache_capacity must be positive, got %d", s.CacheCapacity)
	}
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", s.LogLevel)
	}
	return nil
}

// PollInterval returns the discovery poll cadence as a duration.
func (s *Settings) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMS) * time.Millisecond
}

// DiscoveryTimeout returns the discovery ceiling as a duration.
func (s *Settings) DiscoveryTimeout() time.Duration {
	return time.Duration(s.DiscoveryTimeoutSec) * time.Second
}
