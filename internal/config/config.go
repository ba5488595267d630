// Regsync - Event Registration Synchronization
// Copyright 2026 EventOps
// SPDX-License-Identifier: Apache-2.0
// https://github.com/eventops/regsync

// Package config loads and validates the daemon configuration from
// layered sources: built-in defaults, an optional YAML file and
// environment variables, in increasing priority.
package config

import (
	"fmt"
	"regexp"
	"time"
)

// Source type identifiers.
const (
	SourceEventbrite  = "eventbrite"
	SourceFormBuilder = "formbuilder"
	SourcePretino     = "pretino"
)

// Config is the complete daemon configuration.
type Config struct {
	Source      SourceConfig      `koanf:"source"`
	Destination DestinationConfig `koanf:"destination"`
	Cache       CacheConfig       `koanf:"cache"`
	Sync        SyncConfig        `koanf:"sync"`
	Ops         OpsConfig         `koanf:"ops"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// SourceConfig selects and configures the registration source.
type SourceConfig struct {
	// Type selects the provider: eventbrite, formbuilder or pretino.
	Type string `koanf:"type" validate:"required,oneof=eventbrite formbuilder pretino"`

	Eventbrite  EventbriteConfig  `koanf:"eventbrite"`
	FormBuilder FormBuilderConfig `koanf:"formbuilder"`
	Pretino     PretinoConfig     `koanf:"pretino"`
}

// EventbriteConfig configures the Eventbrite attendees API source.
type EventbriteConfig struct {
	// BaseURL overrides the production API endpoint, mainly for tests.
	BaseURL string `koanf:"base_url" validate:"omitempty,url"`
	Event   string `koanf:"event"`
	Token   string `koanf:"token"`
}

// FormBuilderConfig configures the form builder CSV export source.
type FormBuilderConfig struct {
	URL string `koanf:"url" validate:"omitempty,url"`
}

// PretinoConfig configures the Pretino API source.
type PretinoConfig struct {
	URL    string `koanf:"url" validate:"omitempty,url"`
	APIKey string `koanf:"api_key"`
}

// DestinationConfig configures the meeting tool destination.
type DestinationConfig struct {
	// Hostname of the meeting tool instance, without scheme.
	Hostname string `koanf:"hostname" validate:"required"`
	Token    string `koanf:"token" validate:"required"`
}

// CacheConfig configures the durable synchronization cache.
type CacheConfig struct {
	// Path is the cache directory. Empty selects a directory under the
	// system temporary directory.
	Path string `koanf:"path"`

	// Reset discards the existing cache on startup, forcing a full
	// resynchronization.
	Reset bool `koanf:"reset"`
}

// SyncConfig tunes the synchronization schedule and pass behaviour.
type SyncConfig struct {
	// Interval between pass starts.
	Interval time.Duration `koanf:"interval"`

	// EmailRegex, when set, restricts synchronization to matching
	// emails. Matched case-insensitively.
	EmailRegex string `koanf:"email_regex"`

	// BatchSize is the maximum users per destination submission.
	BatchSize int `koanf:"batch_size" validate:"min=1,max=100"`

	// BatchPace is the minimum spacing between batch submissions.
	BatchPace time.Duration `koanf:"batch_pace"`

	// RetryAttempts and RetryDelay govern the source fetch retry loop.
	RetryAttempts int           `koanf:"retry_attempts" validate:"min=1,max=10"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
}

// OpsConfig configures the operational HTTP endpoint.
type OpsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port" validate:"min=1,max=65535"`
}

// Addr returns the listen address for the operational endpoint.
func (o OpsConfig) Addr() string {
	return fmt.Sprintf("%s:%d", o.Host, o.Port)
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// EmailFilter compiles the configured email regex case-insensitively.
// Returns nil when no filter is configured.
func (c *Config) EmailFilter() (*regexp.Regexp, error) {
	if c.Sync.EmailRegex == "" {
		return nil, nil
	}
	re, err := regexp.Compile("(?i)" + c.Sync.EmailRegex)
	if err != nil {
		return nil, fmt.Errorf("invalid email regex %q: %w", c.Sync.EmailRegex, err)
	}
	return re, nil
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			Type: "",
		},
		Cache: CacheConfig{
			Path:  "",
			Reset: false,
		},
		Sync: SyncConfig{
			Interval:      5 * time.Minute,
			EmailRegex:    "",
			BatchSize:     15,
			BatchPace:     100 * time.Millisecond,
			RetryAttempts: 3,
			RetryDelay:    5 * time.Second,
		},
		Ops: OpsConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    9090,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
