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
	"time"

	"github.com/crucible-ledger/crucible/identity"
	"github.com/crucible-ledger/crucible/ledger"
	"github.com/crucible-ledger/crucible/worldstate"
)

// simulationStub adapts a world-state simulation to the chaincode stub
// interface for one proposal.
type simulationStub struct {
	sim      *worldstate.Simulation
	proposal ledger.Proposal
}

func newSimulationStub(
	sim *worldstate.Simulation,
	proposal ledger.Proposal,
) *simulationStub {
	return &simulationStub{
		sim:      sim,
		proposal: proposal,
	}
}

func (s *simulationStub) GetState(key string) ([]byte, error) {
	return s.sim.Get(key)
}

func (s *simulationStub) PutState(key string, value []byte) error {
	s.sim.Put(key, value)
	return nil
}

func (s *simulationStub) DelState(key string) error {
	s.sim.Delete(key)
	return nil
}

func (s *simulationStub) GetStateByRange(
	startKey, endKey string,
) ([]worldstate.KV, error) {
	return s.sim.RangeScan(startKey, endKey)
}

func (s *simulationStub) Creator() identity.Identity {
	return s.proposal.Creator
}

func (s *simulationStub) TxID() string {
	return s.proposal.TxID
}

func (s *simulationStub) TxTimestamp() time.Time {
	return s.proposal.Timestamp
}
