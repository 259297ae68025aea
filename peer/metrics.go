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

package peer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type peerMetrics struct {
	endorsementsTotal *prometheus.CounterVec
	txCommittedTotal  *prometheus.CounterVec
	blockHeight       *prometheus.GaugeVec
}

func (p *Peer) initMetrics() {
	promautoFactory := promauto.With(p.config.PromRegistry)
	p.metrics = &peerMetrics{}
	p.metrics.endorsementsTotal = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crucible_peer_endorsements_total",
			Help: "proposal simulations by channel and outcome",
		},
		[]string{"peer", "channel", "outcome"},
	)
	p.metrics.txCommittedTotal = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crucible_peer_tx_committed_total",
			Help: "committed transactions by channel and validation code",
		},
		[]string{"peer", "channel", "code"},
	)
	p.metrics.blockHeight = promautoFactory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crucible_peer_block_height",
			Help: "latest committed block number by channel",
		},
		[]string{"peer", "channel"},
	)
}
