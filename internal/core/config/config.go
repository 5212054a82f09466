package config

import (
	"fmt"
	"time"

	"github.com/vietddude/netcache/internal/core/domain"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Cache   CacheConfig   `yaml:"cache"`
	Retry   RetryConfig   `yaml:"retry"`
}

// ServerConfig holds health/stats HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// CacheConfig holds cache storage settings. Durations are expressed in whole
// units so the YAML stays plain numbers.
type CacheConfig struct {
	Dir               string `yaml:"dir"`
	QuotaMB           int64  `yaml:"quota_mb"`            // 0 disables quota eviction
	MaxAgeHours       int    `yaml:"max_age_hours"`       // expiry age for unread entries
	ListingTTLSeconds int    `yaml:"listing_ttl_seconds"` // directory listing freshness
}

// QuotaBytes returns the storage quota in bytes.
func (c CacheConfig) QuotaBytes() int64 {
	return c.QuotaMB * 1024 * 1024
}

// MaxAge returns the entry expiry age.
func (c CacheConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeHours) * time.Hour
}

// ListingTTL returns the directory listing freshness window.
func (c CacheConfig) ListingTTL() time.Duration {
	return time.Duration(c.ListingTTLSeconds) * time.Second
}

// RetryConfig selects the retry preset and per-attempt deadline.
type RetryConfig struct {
	Preset              string `yaml:"preset"` // default, aggressive, conservative
	FetchTimeoutSeconds int    `yaml:"fetch_timeout_seconds"`
}

// Policy resolves the configured preset.
func (c RetryConfig) Policy() (domain.RetryPolicy, error) {
	return domain.PolicyPreset(c.Preset)
}

// FetchTimeout returns the per-attempt deadline, 0 meaning none.
func (c RetryConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// Validate checks the loaded configuration.
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Cache.Dir == "" {
		return fmt.Errorf("cache dir required")
	}
	if c.Cache.QuotaMB < 0 {
		return fmt.Errorf("cache quota must be >= 0, got %d", c.Cache.QuotaMB)
	}
	if _, err := c.Retry.Policy(); err != nil {
		return err
	}
	return nil
}
