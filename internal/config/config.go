// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

// Package config loads layered configuration with koanf v2:
// built-in defaults, then an optional YAML file, then environment
// variables with the EVENTSCOPE_ prefix. Precedence: env > file >
// defaults.
//
// Environment variables map onto nested keys through their first
// segment: EVENTSCOPE_SERVER_PORT -> server.port,
// EVENTSCOPE_HEALTH_TRIP_THRESHOLD -> health.trip_threshold. Source
// definitions are a list and come from the YAML file only.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/eventscope/internal/validation"
)

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "EVENTSCOPE_CONFIG"

// DefaultConfigPaths are searched in order when no explicit path is set.
var DefaultConfigPaths = []string{
	"eventscope.yaml",
	"config/eventscope.yaml",
	"/etc/eventscope/config.yaml",
}

// Config is the full application configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Sources     []SourceConfig    `koanf:"sources" validate:"dive"`
	Aggregation AggregationConfig `koanf:"aggregation"`
	Cache       CacheConfig       `koanf:"cache"`
	Health      HealthConfig      `koanf:"health"`
	Stream      StreamConfig      `koanf:"stream"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	SearchRateLimit int           `koanf:"search_rate_limit" validate:"min=1"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
}

// LoggingConfig controls the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// SourceConfig defines one upstream event provider. Kind selects a
// built-in normalization profile ("ticketmaster", "eventbrite", "meetup");
// unknown or empty kinds use the generic alias decoder.
type SourceConfig struct {
	Name      string  `koanf:"name" validate:"required"`
	Kind      string  `koanf:"kind"`
	BaseURL   string  `koanf:"base_url" validate:"required,url"`
	APIKey    string  `koanf:"api_key"`
	APIKeyHdr string  `koanf:"api_key_header"`
	RateLimit float64 `koanf:"rate_limit" validate:"gte=0"`
	Burst     int     `koanf:"burst" validate:"gte=0"`
	Enabled   bool    `koanf:"enabled"`
}

// AggregationConfig controls session behavior.
type AggregationConfig struct {
	GlobalDeadline time.Duration `koanf:"global_deadline"`
	MaxEvents      int           `koanf:"max_events" validate:"min=0"`
	TitleThreshold float64       `koanf:"title_threshold" validate:"gt=0,lte=1"`
	VenueThreshold float64       `koanf:"venue_threshold" validate:"gt=0,lte=1"`
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

// HealthConfig controls the source health monitor.
type HealthConfig struct {
	Alpha          float64       `koanf:"alpha" validate:"gt=0,lte=1"`
	WindowSize     int           `koanf:"window_size" validate:"min=1"`
	TripThreshold  int           `koanf:"trip_threshold" validate:"min=1"`
	Cooldown       time.Duration `koanf:"cooldown"`
	TimeoutMargin  float64       `koanf:"timeout_margin" validate:"gt=0"`
	DefaultTimeout time.Duration `koanf:"default_timeout"`
	MinTimeout     time.Duration `koanf:"min_timeout"`
	MaxTimeout     time.Duration `koanf:"max_timeout"`
}

// StreamConfig controls client delivery.
type StreamConfig struct {
	BufferSize int `koanf:"buffer_size" validate:"min=1"`
}

// defaultConfig returns the built-in defaults, tuned for a deployment
// with a handful of sources.
func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			SearchRateLimit: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Aggregation: AggregationConfig{
			GlobalDeadline: 10 * time.Second,
			MaxEvents:      500,
			TitleThreshold: 0.85,
			VenueThreshold: 0.90,
		},
		Cache: CacheConfig{
			TTL: 30 * time.Minute,
		},
		Health: HealthConfig{
			Alpha:          0.3,
			WindowSize:     20,
			TripThreshold:  5,
			Cooldown:       2 * time.Minute,
			TimeoutMargin:  2.0,
			DefaultTimeout: 5 * time.Second,
			MinTimeout:     time.Second,
			MaxTimeout:     8 * time.Second,
		},
		Stream: StreamConfig{
			BufferSize: 64,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file
// and the environment.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("EVENTSCOPE_", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field invariants.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if c.Aggregation.GlobalDeadline < time.Second || c.Aggregation.GlobalDeadline > time.Minute {
		return fmt.Errorf("aggregation.global_deadline must be between 1s and 1m, got %s", c.Aggregation.GlobalDeadline)
	}
	if c.Health.MinTimeout > c.Health.MaxTimeout {
		return fmt.Errorf("health.min_timeout %s exceeds health.max_timeout %s", c.Health.MinTimeout, c.Health.MaxTimeout)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}

	seen := make(map[string]struct{}, len(c.Sources))
	for _, s := range c.Sources {
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("duplicate source name %q", s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

// EnabledSources filters the configured sources to those enabled.
func (c *Config) EnabledSources() []SourceConfig {
	out := make([]SourceConfig, 0, len(c.Sources))
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps EVENTSCOPE_SECTION_FIELD_NAME to
// section.field_name. Only the first underscore splits; field names
// keep their own underscores.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "EVENTSCOPE_"))
	parts := strings.SplitN(key, "_", 2)
	if len(parts) != 2 {
		return key
	}
	return parts[0] + "." + parts[1]
}
