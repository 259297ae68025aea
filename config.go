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

package crucible

import (
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/crucible-ledger/crucible/topology"
)

const (
	defaultPhaseSweepSchedule = "@every 1m"
	defaultCommitTimeout      = 30 * time.Second
)

type Config struct {
	promRegistry       prometheus.Registerer
	topologyConfig     *topology.Topology
	logger             *slog.Logger
	dataDir            string
	phaseSweepSchedule string
	commitTimeout      time.Duration
	batchTimeout       time.Duration
	maxBlockSize       int
	shutdownTimeout    time.Duration
}

// ConfigOptionFunc is a type that represents functions that modify the node config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new node config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:             slog.New(slog.NewJSONHandler(io.Discard, nil)),
		phaseSweepSchedule: defaultPhaseSweepSchedule,
		commitTimeout:      defaultCommitTimeout,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithDataDir specifies the persistent data directory to use. The default is to store everything in memory
func WithDataDir(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithTopology specifies the network topology to use. The default is the
// standard four-organization layout
func WithTopology(topologyConfig *topology.Topology) ConfigOptionFunc {
	return func(c *Config) {
		c.topologyConfig = topologyConfig
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithPhaseSweepSchedule specifies the cron schedule for the challenge phase
// sweeper. The default is every minute
func WithPhaseSweepSchedule(schedule string) ConfigOptionFunc {
	return func(c *Config) {
		c.phaseSweepSchedule = schedule
	}
}

// WithCommitTimeout specifies how long each commit-event wait may take. The default is 30 seconds
func WithCommitTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.commitTimeout = timeout
	}
}

// WithBatchTimeout specifies how long the orderer holds a non-empty batch
// before cutting a block
func WithBatchTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.batchTimeout = timeout
	}
}

// WithMaxBlockSize specifies the transaction count that cuts a block early
func WithMaxBlockSize(size int) ConfigOptionFunc {
	return func(c *Config) {
		c.maxBlockSize = size
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
