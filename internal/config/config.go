// Copyright 2025 Crucible Ledger Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/crucible-ledger/crucible/topology"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "crucible.config"

const (
	DefaultShutdownTimeout    = "30s"
	DefaultCommitTimeout      = "30s"
	DefaultBatchTimeout       = "100ms"
	DefaultPhaseSweepSchedule = "@every 1m"
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	Topology           string `yaml:"topology"`
	DataDir            string `yaml:"dataDir"            split_words:"true"`
	BindAddr           string `yaml:"bindAddr"           split_words:"true"`
	MetricsPort        uint   `yaml:"metricsPort"        split_words:"true"`
	PhaseSweepSchedule string `yaml:"phaseSweepSchedule" split_words:"true"`
	CommitTimeout      string `yaml:"commitTimeout"      split_words:"true"`
	BatchTimeout       string `yaml:"batchTimeout"       split_words:"true"`
	MaxBlockSize       int    `yaml:"maxBlockSize"       split_words:"true"`
	ShutdownTimeout    string `yaml:"shutdownTimeout"    split_words:"true"`
}

var globalConfig = &Config{
	Topology:           "",
	DataDir:            ".crucible",
	BindAddr:           "0.0.0.0",
	MetricsPort:        12798,
	PhaseSweepSchedule: DefaultPhaseSweepSchedule,
	CommitTimeout:      DefaultCommitTimeout,
	BatchTimeout:       DefaultBatchTimeout,
	MaxBlockSize:       10,
	ShutdownTimeout:    DefaultShutdownTimeout,
}

func LoadConfig(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.crucible/crucible.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".crucible", "crucible.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/crucible/crucible.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/crucible/crucible.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Overlay config values onto existing defaults
		err = yaml.Unmarshal(buf, globalConfig)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	// Process environment variables
	err := envconfig.Process("crucible", globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}

	// Durations are carried as strings so they can come from YAML or
	// environment. Validate them up front rather than at node startup.
	for _, d := range []struct {
		name  string
		value string
	}{
		{"commitTimeout", globalConfig.CommitTimeout},
		{"batchTimeout", globalConfig.BatchTimeout},
		{"shutdownTimeout", globalConfig.ShutdownTimeout},
	} {
		if d.value == "" {
			continue
		}
		if _, err := time.ParseDuration(d.value); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.name, err)
		}
	}

	_, err = LoadTopologyConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading topology: %+w", err)
	}
	return globalConfig, nil
}

func GetConfig() *Config {
	return globalConfig
}

// ParseDuration returns the parsed duration value, falling back to def
// when the value is empty. Values were validated by LoadConfig.
func ParseDuration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}

var globalTopologyConfig = topology.Default()

func LoadTopologyConfig() (*topology.Topology, error) {
	if globalConfig.Topology == "" {
		// No topology file means the built-in four-organization layout
		globalTopologyConfig = topology.Default()
		return globalTopologyConfig, nil
	}
	tc, err := topology.NewTopologyFromFile(globalConfig.Topology)
	if err != nil {
		return nil, fmt.Errorf("failed to load topology file: %+w", err)
	}
	// update globalTopologyConfig
	globalTopologyConfig = tc
	return globalTopologyConfig, nil
}

func GetTopologyConfig() *topology.Topology {
	return globalTopologyConfig
}
