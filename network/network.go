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

// Package network assembles a running fabric from a topology: one peer
// process per declared peer, channels joined by the member organizations'
// peers, chaincodes installed, and the ordering service wired to deliver to
// every channel peer.
package network

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/crucible-ledger/crucible/chaincode"
	"github.com/crucible-ledger/crucible/event"
	"github.com/crucible-ledger/crucible/fault"
	"github.com/crucible-ledger/crucible/orderer"
	"github.com/crucible-ledger/crucible/peer"
	"github.com/crucible-ledger/crucible/topology"
)

type Config struct {
	Logger       *slog.Logger
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	Topology     *topology.Topology
	// Chaincodes maps the names referenced by the topology's channel
	// bindings to their implementations.
	Chaincodes map[string]chaincode.Chaincode
	// DataDir is where peers persist state. Empty means in-memory.
	DataDir      string
	BatchTimeout time.Duration
	MaxBlockSize int
}

type Network struct {
	config   Config
	logger   *slog.Logger
	eventBus *event.EventBus
	orderer  *orderer.SoloOrderer
	peers    map[string]*peer.Peer
	orgPeers map[string][]*peer.Peer
	channels map[string][]*peer.Peer
}

func New(cfg Config) (*Network, error) {
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Topology == nil {
		return nil, fault.Configuration("network requires a topology")
	}
	if err := cfg.Topology.Validate(); err != nil {
		return nil, fault.Configuration("invalid topology: %v", err)
	}
	if cfg.EventBus == nil {
		cfg.EventBus = event.NewEventBus(cfg.PromRegistry)
	}
	n := &Network{
		config:   cfg,
		logger:   cfg.Logger.With("component", "network"),
		eventBus: cfg.EventBus,
		peers:    make(map[string]*peer.Peer),
		orgPeers: make(map[string][]*peer.Peer),
		channels: make(map[string][]*peer.Peer),
	}
	if err := n.buildPeers(); err != nil {
		return nil, err
	}
	if err := n.buildChannels(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Network) buildPeers() error {
	for _, org := range n.config.Topology.Organizations {
		for _, decl := range org.Peers {
			p, err := peer.New(peer.Config{
				Logger:       n.config.Logger,
				EventBus:     n.eventBus,
				PromRegistry: n.config.PromRegistry,
				ID:           decl.Name,
				Org:          org.Name,
				DataDir:      n.config.DataDir,
				Roles: peer.Roles{
					Endorser:       decl.IsEndorser(),
					ChaincodeQuery: decl.IsChaincodeQuery(),
					EventHub:       decl.IsEventHub(),
				},
			})
			if err != nil {
				return err
			}
			n.peers[decl.Name] = p
			n.orgPeers[org.Name] = append(n.orgPeers[org.Name], p)
		}
	}
	return nil
}

func (n *Network) buildChannels() error {
	n.orderer = orderer.New(orderer.Config{
		Logger:       n.config.Logger,
		PromRegistry: n.config.PromRegistry,
		BatchTimeout: n.config.BatchTimeout,
		MaxBlockSize: n.config.MaxBlockSize,
	})
	for _, channel := range n.config.Topology.Channels {
		var channelPeers []*peer.Peer
		for _, org := range channel.Organizations {
			channelPeers = append(channelPeers, n.orgPeers[org]...)
		}
		committers := make([]orderer.Committer, 0, len(channelPeers))
		for _, p := range channelPeers {
			if err := p.JoinChannel(channel.Name); err != nil {
				return err
			}
			for _, ccName := range channel.Chaincodes {
				cc, ok := n.config.Chaincodes[ccName]
				if !ok {
					return fault.Configuration(
						"channel %s references unregistered chaincode: %s",
						channel.Name,
						ccName,
					)
				}
				if err := p.InstallChaincode(
					channel.Name,
					ccName,
					cc,
				); err != nil {
					return err
				}
			}
			committers = append(committers, p)
		}
		if err := n.orderer.CreateChannel(channel.Name, committers...); err != nil {
			return err
		}
		n.channels[channel.Name] = channelPeers
	}
	return nil
}

// Start launches the ordering service.
func (n *Network) Start() {
	n.orderer.Start()
	n.logger.Info(
		"network started",
		"peers", len(n.peers),
		"channels", len(n.channels),
	)
}

func (n *Network) Stop() error {
	n.orderer.Stop()
	var errs []error
	for id, p := range n.peers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close peer %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (n *Network) EventBus() *event.EventBus {
	return n.eventBus
}

func (n *Network) Orderer() *orderer.SoloOrderer {
	return n.orderer
}

func (n *Network) Topology() *topology.Topology {
	return n.config.Topology
}

// Peer returns the peer with the given id, or nil.
func (n *Network) Peer(id string) *peer.Peer {
	return n.peers[id]
}

// ChannelPeers returns all peers joined to a channel.
func (n *Network) ChannelPeers(channelID string) []*peer.Peer {
	return n.channels[channelID]
}

// OrgEndorsers returns the endorsing peers of one organization on a channel.
func (n *Network) OrgEndorsers(channelID, org string) []*peer.Peer {
	var endorsers []*peer.Peer
	for _, p := range n.channels[channelID] {
		if p.Org() == org && p.Roles().Endorser {
			endorsers = append(endorsers, p)
		}
	}
	return endorsers
}

// OrgQueryPeers returns the query-serving peers of one organization on a
// channel.
func (n *Network) OrgQueryPeers(channelID, org string) []*peer.Peer {
	var queryPeers []*peer.Peer
	for _, p := range n.channels[channelID] {
		if p.Org() == org && p.Roles().ChaincodeQuery {
			queryPeers = append(queryPeers, p)
		}
	}
	return queryPeers
}

// OrgEventHubs returns the event-hub peers of one organization on a channel.
func (n *Network) OrgEventHubs(channelID, org string) []*peer.Peer {
	var hubs []*peer.Peer
	for _, p := range n.channels[channelID] {
		if p.Org() == org && p.Roles().EventHub {
			hubs = append(hubs, p)
		}
	}
	return hubs
}
