// Regsync - Event Registration Synchronization
// Copyright 2026 EventOps
// SPDX-License-Identifier: Apache-2.0
// https://github.com/eventops/regsync

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/regsync/config.yaml",
	"/etc/regsync/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load reads configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
//
// The returned config is validated; an error here means the daemon must
// not start.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// DEBUG=true is a legacy alias carried from earlier deployments.
	if isTruthy(os.Getenv("DEBUG")) {
		if err := k.Set("logging.level", "debug"); err != nil {
			return nil, fmt.Errorf("failed to apply DEBUG override: %w", err)
		}
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

// findConfigFile searches for a config file, env override first.
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

// envMappings maps environment variable names to koanf config paths.
// Unmapped variables are ignored so unrelated environment noise cannot
// leak into the configuration.
var envMappings = map[string]string{
	"source_type": "source.type",

	"eventbrite_url":   "source.eventbrite.base_url",
	"eventbrite_event": "source.eventbrite.event",
	"eventbrite_token": "source.eventbrite.token",

	"formbuilder_url": "source.formbuilder.url",

	"pretino_url":     "source.pretino.url",
	"pretino_api_key": "source.pretino.api_key",

	"meetingtool_hostname": "destination.hostname",
	"meetingtool_token":    "destination.token",

	"cache_path":  "cache.path",
	"cache_reset": "cache.reset",

	"sync_interval":       "sync.interval",
	"sync_email_regex":    "sync.email_regex",
	"sync_batch_size":     "sync.batch_size",
	"sync_batch_pace":     "sync.batch_pace",
	"sync_retry_attempts": "sync.retry_attempts",
	"sync_retry_delay":    "sync.retry_delay",

	"ops_enabled": "ops.enabled",
	"ops_host":    "ops.host",
	"ops_port":    "ops.port",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Returning an empty string drops the variable.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
