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

package coordinator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/crucible-ledger/crucible/fault"
)

type coordinatorMetrics struct {
	invokesTotal   *prometheus.CounterVec
	invokeDuration *prometheus.HistogramVec
	queriesTotal   *prometheus.CounterVec
}

func (c *Coordinator) initMetrics() {
	promautoFactory := promauto.With(c.config.PromRegistry)
	c.metrics = &coordinatorMetrics{}
	c.metrics.invokesTotal = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crucible_coordinator_invokes_total",
			Help: "transaction submissions by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)
	c.metrics.invokeDuration = promautoFactory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crucible_coordinator_invoke_duration_seconds",
			Help:    "end-to-end transaction latency by channel",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)
	c.metrics.queriesTotal = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crucible_coordinator_queries_total",
			Help: "chaincode queries by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)
}

func (c *Coordinator) observeInvoke(
	channelID string,
	err error,
	elapsed time.Duration,
) {
	if c.metrics == nil {
		return
	}
	outcome := "committed"
	if err != nil {
		outcome = string(fault.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	c.metrics.invokesTotal.WithLabelValues(channelID, outcome).Inc()
	c.metrics.invokeDuration.WithLabelValues(channelID).
		Observe(elapsed.Seconds())
}

func (c *Coordinator) countQuery(channelID, outcome string) {
	if c.metrics == nil {
		return
	}
	c.metrics.queriesTotal.WithLabelValues(channelID, outcome).Inc()
}
