// Package config loads server settings from an optional YAML file with
// environment variable overrides. Environment always wins, so deployments
// can ship a base file and tune per-instance through the process env.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable the server reads at startup.
type Config struct {
	Port             string
	DatabaseURL      string
	RedisURL         string
	CacheTTL         time.Duration
	SnapshotInterval time.Duration
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Port:             "8080",
		CacheTTL:         30 * time.Second,
		SnapshotInterval: time.Hour,
	}
}

// Load reads the YAML file at path (skipped when path is empty or the file
// does not exist), then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := cfg.unmarshalYAML(data); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = Default().CacheTTL
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = Default().SnapshotInterval
	}
	return cfg, nil
}

// fileConfig mirrors Config with durations as strings, since YAML has no
// native duration scalar.
type fileConfig struct {
	Port             string `yaml:"port"`
	DatabaseURL      string `yaml:"database_url"`
	RedisURL         string `yaml:"redis_url"`
	CacheTTL         string `yaml:"cache_ttl"`
	SnapshotInterval string `yaml:"snapshot_interval"`
}

func (c *Config) unmarshalYAML(data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}

	if fc.Port != "" {
		c.Port = fc.Port
	}
	if fc.DatabaseURL != "" {
		c.DatabaseURL = fc.DatabaseURL
	}
	if fc.RedisURL != "" {
		c.RedisURL = fc.RedisURL
	}
	if fc.CacheTTL != "" {
		d, err := time.ParseDuration(fc.CacheTTL)
		if err != nil {
			return fmt.Errorf("cache_ttl: %w", err)
		}
		c.CacheTTL = d
	}
	if fc.SnapshotInterval != "" {
		d, err := time.ParseDuration(fc.SnapshotInterval)
		if err != nil {
			return fmt.Errorf("snapshot_interval: %w", err)
		}
		c.SnapshotInterval = d
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.CacheTTL = d
		}
	}
	if v := os.Getenv("SNAPSHOT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.SnapshotInterval = d
		}
	}
}
