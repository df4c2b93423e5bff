// Package config defines the service configuration: which versions are
// served, how they are detected, and where records are persisted.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/versiond/semver"
)

// RedisConfig holds connection settings for the Redis store backend.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Backend is one of "memory", "file", "sqlite", "redis".
	Backend string `yaml:"backend"`
	// Path is the data directory (file backend) or database file
	// (sqlite backend).
	Path  string      `yaml:"path"`
	Redis RedisConfig `yaml:"redis"`
}

// Config is the full service configuration.
type Config struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string `yaml:"listen_addr"`
	// DefaultVersion serves requests carrying no version information.
	DefaultVersion string `yaml:"default_version"`
	// SupportedVersions is the set of versions this deployment serves.
	SupportedVersions []string `yaml:"supported_versions"`
	// VersionHeader is the request header checked by version detection.
	VersionHeader string `yaml:"version_header"`
	// VersionParam is the query parameter checked by version detection.
	VersionParam string `yaml:"version_param"`
	// StrictMode rejects requests for unsupported versions instead of
	// serving the closest supported one.
	StrictMode bool `yaml:"strict_mode"`
	// ExcludedPaths bypass version detection entirely.
	ExcludedPaths []string `yaml:"excluded_paths"`
	// MetricsNamespace prefixes all Prometheus metric names.
	MetricsNamespace string `yaml:"metrics_namespace"`

	Store StoreConfig `yaml:"store"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		ListenAddr:        ":8080",
		DefaultVersion:    "1.0.0",
		SupportedVersions: []string{"1.0.0"},
		VersionHeader:     "Accept-Version",
		VersionParam:      "version",
		StrictMode:        false,
		ExcludedPaths:     []string{"/healthz", "/metrics", "/docs", "/static", "/info"},
		MetricsNamespace:  "versiond",
		Store:             StoreConfig{Backend: "memory"},
	}
}

// Load reads a YAML config file layered over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks version strings and the backend selection.
func (c *Config) Validate() error {
	if _, err := semver.Parse(c.DefaultVersion); err != nil {
		return fmt.Errorf("default_version: %w", err)
	}
	for _, v := range c.SupportedVersions {
		if _, err := semver.Parse(v); err != nil {
			return fmt.Errorf("supported_versions: %w", err)
		}
	}

	switch c.Store.Backend {
	case "memory":
	case "file", "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store backend %q requires store.path", c.Store.Backend)
		}
	case "redis":
		if c.Store.Redis.Address == "" {
			return fmt.Errorf("store backend redis requires store.redis.address")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	return nil
}

// SupportedParsed returns the supported set as parsed versions.
// Validate must have succeeded.
func (c *Config) SupportedParsed() []semver.Version {
	out := make([]semver.Version, 0, len(c.SupportedVersions))
	for _, s := range c.SupportedVersions {
		if v, err := semver.Parse(s); err == nil {
			out = append(out, v)
		}
	}
	return out
}
