// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

// Package config loads the gateway's typed configuration: the Route Target
// Pool, the per-target Pipeline Config, and the Classification Config,
// layered as defaults -> YAML file -> environment variables.
package config

import (
	"time"

	"github.com/BaSui01/routecodex/classifier"
	"github.com/BaSui01/routecodex/router"
)

// ServerConfig configures the entry HTTP surface and the metrics surface.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"`
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// ProviderAuth describes how a pipeline target authenticates upstream.
type ProviderAuth struct {
	Type      string `yaml:"type"` // apikey | oauth | token-file
	APIKey    string `yaml:"apiKey"`
	TokenFile string `yaml:"tokenFile"`
}

// ProviderTarget is the provider-side half of a Pipeline Config entry.
type ProviderTarget struct {
	Type       string            `yaml:"type"`
	BaseURL    string            `yaml:"baseUrl"`
	Auth       ProviderAuth      `yaml:"auth"`
	Timeout    time.Duration     `yaml:"timeout"`
	MaxRetries int               `yaml:"maxRetries"`
	Extensions map[string]any    `yaml:"extensions"`
	Headers    map[string]string `yaml:"headers"`
}

// ModelTarget describes model-level limits for a pipeline entry.
type ModelTarget struct {
	MaxTokens int `yaml:"maxTokens"`
}

// ProtocolPair names the entry and provider wire protocols a pipeline
// translates between.
type ProtocolPair struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
}

// CompatibilityConfig names the shape-adjustment profile for one target.
type CompatibilityConfig struct {
	Profile        string `yaml:"profile"`
	ShapeFilterFile string `yaml:"shapeFilterFile"`
}

// PipelineTargetConfig is one entry of the Pipeline Config keyed by
// "<providerId>.<modelId>.<keyId>".
type PipelineTargetConfig struct {
	Provider      ProviderTarget      `yaml:"provider"`
	Model         ModelTarget         `yaml:"model"`
	Protocols     ProtocolPair        `yaml:"protocols"`
	Compatibility CompatibilityConfig `yaml:"compatibility"`
}

// Config is the gateway's full typed configuration.
type Config struct {
	Server         ServerConfig                    `yaml:"server" env:"SERVER"`
	Log            LogConfig                       `yaml:"log" env:"LOG"`
	Pool           router.Pool                     `yaml:"pool"`
	Pipelines      map[string]PipelineTargetConfig  `yaml:"pipelines"`
	Classification classifier.Config               `yaml:"classification"`
	Extensions     map[string]any                  `yaml:"extensions"`
}

// DefaultConfig mirrors the defaults a fresh install ships with: an empty
// pool (callers must configure targets), the classifier's own defaults,
// and conservative server timeouts.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			MetricsPort:     9090,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Pool:           router.Pool{},
		Pipelines:      map[string]PipelineTargetConfig{},
		Classification: classifier.DefaultConfig(),
		Extensions:     map[string]any{},
	}
}

// PipelineKey builds the canonical "<providerId>.<modelId>.<keyId>" key a
// Pipeline Config entry and a pool Target are joined by.
func PipelineKey(providerID, modelID, keyID string) string {
	return providerID + "." + modelID + "." + keyID
}

// Validate checks the cross-references the data model's invariants
// require: every target in the pool must have a matching pipeline entry.
func (c *Config) Validate() error {
	var missing []string
	for _, targets := range c.Pool {
		for _, t := range targets {
			key := PipelineKey(t.ProviderID, t.ModelID, t.KeyID)
			if _, ok := c.Pipelines[key]; !ok {
				missing = append(missing, key)
			}
		}
	}
	if len(missing) > 0 {
		return &ValidationError{MissingPipelines: missing}
	}
	return nil
}
