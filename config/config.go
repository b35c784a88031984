// Package config provides configuration loading for the samarth service.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Config is the full service configuration.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	AI           AIConfig           `koanf:"ai"`
	Dataset      DatasetConfig      `koanf:"dataset"`
	Sandbox      SandboxConfig      `koanf:"sandbox"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr           string        `koanf:"addr"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	CacheTTL       time.Duration `koanf:"cache_ttl"`
}

// AIConfig configures the completion provider.
type AIConfig struct {
	APIKey     string        `koanf:"api_key"`
	Model      string        `koanf:"model"`
	Endpoint   string        `koanf:"endpoint"`
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries int           `koanf:"max_retries"`
}

// DatasetConfig names the three source CSV exports.
type DatasetConfig struct {
	CropPath     string `koanf:"crop_path"`
	RainfallPath string `koanf:"rainfall_path"`
	SoilPath     string `koanf:"soil_path"`
}

// SandboxConfig bounds program execution.
type SandboxConfig struct {
	Timeout   time.Duration `koanf:"timeout"`
	MaxGroups int           `koanf:"max_groups"`
	MaxRows   int           `koanf:"max_rows"`
	Workers   int           `koanf:"workers"`
}

// OrchestratorConfig bounds the generate/execute retry loop.
type OrchestratorConfig struct {
	MaxRetries int `koanf:"max_retries"`
}

// envPrefix namespaces the service's environment variables, e.g.
// SAMARTH_AI_API_KEY -> ai.api_key.
const envPrefix = "SAMARTH_"

// Load reads configuration from an optional YAML file, then overrides
// with SAMARTH_* environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (SAMARTH_AI_API_KEY, SAMARTH_SERVER_ADDR, ...)
//  2. YAML config file
//  3. Defaults
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
		}
	}

	// SAMARTH_AI_API_KEY -> ai.api_key: strip the prefix, split on the
	// first underscore into section and field.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Server.CacheTTL <= 0 {
		cfg.Server.CacheTTL = 10 * time.Minute
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gemini-2.0-flash"
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 30 * time.Second
	}
	if cfg.AI.MaxRetries <= 0 {
		cfg.AI.MaxRetries = 3
	}
	if cfg.Sandbox.Timeout <= 0 {
		cfg.Sandbox.Timeout = 5 * time.Second
	}
	if cfg.Sandbox.MaxGroups <= 0 {
		cfg.Sandbox.MaxGroups = 1000
	}
	if cfg.Sandbox.MaxRows <= 0 {
		cfg.Sandbox.MaxRows = 50
	}
	if cfg.Sandbox.Workers <= 0 {
		cfg.Sandbox.Workers = 4
	}
	if cfg.Orchestrator.MaxRetries <= 0 {
		cfg.Orchestrator.MaxRetries = 2
	}
}

// Validate checks fields the service cannot start without.
func (c *Config) Validate() error {
	if c.AI.APIKey == "" {
		return fmt.Errorf("ai.api_key is required (set SAMARTH_AI_API_KEY)")
	}
	if c.Dataset.CropPath == "" || c.Dataset.RainfallPath == "" || c.Dataset.SoilPath == "" {
		return fmt.Errorf("dataset.crop_path, dataset.rainfall_path and dataset.soil_path are all required")
	}
	return nil
}
