// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the physiosimd daemon's YAML configuration.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP façade.
type ServerConfig struct {
	Port int `yaml:"port" validate:"required,min=1,max=65535"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level   string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	LogDir  string `yaml:"log_dir"`
	JSON    bool   `yaml:"json"`
	Service string `yaml:"service"`
}

// ReloadConfig configures the knowledge-pack hot-reload watcher.
type ReloadConfig struct {
	Enabled  bool   `yaml:"enabled"`
	AuditDir string `yaml:"audit_dir"`
}

// TracingConfig configures OpenTelemetry span export.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// Config is the physiosimd daemon's top-level configuration.
type Config struct {
	PacksDir string        `yaml:"packs_dir" validate:"required"`
	Server   ServerConfig  `yaml:"server"`
	Logging  LoggingConfig `yaml:"logging"`
	Reload   ReloadConfig  `yaml:"reload"`
	Tracing  TracingConfig `yaml:"tracing"`
}

// Default returns the built-in configuration, used when no config file
// is present.
func Default() Config {
	return Config{
		PacksDir: "./knowledge/packs",
		Server:   ServerConfig{Port: 8080},
		Logging:  LoggingConfig{Level: "info", Service: "physiosimd"},
		Reload:   ReloadConfig{Enabled: true, AuditDir: "./knowledge/.reload-audit"},
		Tracing:  TracingConfig{Enabled: false, ServiceName: "physiosimd"},
	}
}

var validate = validator.New()

// Load reads and validates the configuration at path. A missing file is
// not an error: the built-in Default is returned instead, so a fresh
// checkout runs without any setup step.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return cfg, nil
}
