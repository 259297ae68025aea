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

// Package topology describes the network layout: the organizations, their
// peers and peer roles, and the channels with their chaincode bindings.
package topology

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/crucible-ledger/crucible/identity"
)

// Topology represents a network topology config.
type Topology struct {
	Organizations []Organization `yaml:"organizations"`
	Channels      []Channel      `yaml:"channels"`
}

type Organization struct {
	Name  string `yaml:"name"`
	Peers []Peer `yaml:"peers"`
}

// Peer declares one peer and its duties. Unset duties default to enabled, so
// a bare peer entry is a full-service peer.
type Peer struct {
	Name           string `yaml:"name"`
	Endorser       *bool  `yaml:"endorser"`
	ChaincodeQuery *bool  `yaml:"chaincodeQuery"`
	EventHub       *bool  `yaml:"eventHub"`
}

func (p Peer) IsEndorser() bool {
	return p.Endorser == nil || *p.Endorser
}

func (p Peer) IsChaincodeQuery() bool {
	return p.ChaincodeQuery == nil || *p.ChaincodeQuery
}

func (p Peer) IsEventHub() bool {
	return p.EventHub == nil || *p.EventHub
}

type Channel struct {
	Name string `yaml:"name"`
	// Organizations whose peers join the channel.
	Organizations []string `yaml:"organizations"`
	// Chaincodes installed on the channel, by registered name.
	Chaincodes []string `yaml:"chaincodes"`
}

func NewTopologyFromFile(path string) (*Topology, error) {
	dataFile, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer dataFile.Close()
	return NewTopologyFromReader(dataFile)
}

// maxTopologySize is the maximum allowed size for a topology config file
// (10 MB). This prevents unbounded memory allocation from untrusted readers.
const maxTopologySize = 10 * 1024 * 1024

func NewTopologyFromReader(r io.Reader) (*Topology, error) {
	t := &Topology{}
	data, err := io.ReadAll(io.LimitReader(r, maxTopologySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxTopologySize {
		return nil, fmt.Errorf(
			"topology file exceeds maximum size of %d bytes",
			maxTopologySize,
		)
	}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Topology) Validate() error {
	if len(t.Organizations) == 0 {
		return fmt.Errorf("topology declares no organizations")
	}
	orgs := make(map[string]bool, len(t.Organizations))
	peers := make(map[string]bool)
	for _, org := range t.Organizations {
		if orgs[org.Name] {
			return fmt.Errorf("duplicate organization: %s", org.Name)
		}
		orgs[org.Name] = true
		if len(org.Peers) == 0 {
			return fmt.Errorf("organization %s declares no peers", org.Name)
		}
		for _, peer := range org.Peers {
			if peers[peer.Name] {
				return fmt.Errorf("duplicate peer: %s", peer.Name)
			}
			peers[peer.Name] = true
		}
	}
	if len(t.Channels) == 0 {
		return fmt.Errorf("topology declares no channels")
	}
	channels := make(map[string]bool, len(t.Channels))
	for _, channel := range t.Channels {
		if channels[channel.Name] {
			return fmt.Errorf("duplicate channel: %s", channel.Name)
		}
		channels[channel.Name] = true
		if len(channel.Organizations) == 0 {
			return fmt.Errorf(
				"channel %s declares no organizations",
				channel.Name,
			)
		}
		for _, org := range channel.Organizations {
			if !orgs[org] {
				return fmt.Errorf(
					"channel %s references unknown organization: %s",
					channel.Name,
					org,
				)
			}
		}
		if len(channel.Chaincodes) == 0 {
			return fmt.Errorf(
				"channel %s declares no chaincodes",
				channel.Name,
			)
		}
	}
	return nil
}

// Organization returns the declared organization by name, or nil.
func (t *Topology) Organization(name string) *Organization {
	for i := range t.Organizations {
		if t.Organizations[i].Name == name {
			return &t.Organizations[i]
		}
	}
	return nil
}

// Channel returns the declared channel by name, or nil.
func (t *Topology) Channel(name string) *Channel {
	for i := range t.Channels {
		if t.Channels[i].Name == name {
			return &t.Channels[i]
		}
	}
	return nil
}

// Default returns the standard four-organization, three-channel layout with
// two peers per organization.
func Default() *Topology {
	orgs := []string{
		identity.OrgTopcoder,
		identity.OrgClients,
		identity.OrgMembers,
		identity.OrgModerators,
	}
	t := &Topology{}
	for _, org := range orgs {
		t.Organizations = append(t.Organizations, Organization{
			Name: org,
			Peers: []Peer{
				{Name: fmt.Sprintf("peer0.%s", org)},
				{Name: fmt.Sprintf("peer1.%s", org)},
			},
		})
	}
	t.Channels = []Channel{
		{
			Name: "review",
			Organizations: []string{
				identity.OrgTopcoder,
				identity.OrgMembers,
				identity.OrgModerators,
			},
			Chaincodes: []string{"review"},
		},
		{
			Name: "client",
			Organizations: []string{
				identity.OrgTopcoder,
				identity.OrgClients,
			},
			Chaincodes: []string{"client"},
		},
		{
			Name:          "users",
			Organizations: orgs,
			Chaincodes:    []string{"users"},
		},
	}
	return t
}
