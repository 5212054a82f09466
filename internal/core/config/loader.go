package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = "cache"
	}
	if cfg.Cache.QuotaMB == 0 {
		cfg.Cache.QuotaMB = 500
	}
	if cfg.Cache.MaxAgeHours == 0 {
		cfg.Cache.MaxAgeHours = 7 * 24
	}
	if cfg.Cache.ListingTTLSeconds == 0 {
		cfg.Cache.ListingTTLSeconds = 300
	}
	if cfg.Retry.Preset == "" {
		cfg.Retry.Preset = "default"
	}
	if cfg.Retry.FetchTimeoutSeconds == 0 {
		cfg.Retry.FetchTimeoutSeconds = 30
	}
}
