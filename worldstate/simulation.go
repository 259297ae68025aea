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

package worldstate

import (
	"sort"
)

// Simulation stages the reads and writes of one chaincode invocation against
// a snapshot of the store. Writes are buffered and become visible only when
// the resulting write set is applied at commit; reads record the version
// seen so Apply can detect concurrent modification.
type Simulation struct {
	store  *Store
	reads  map[string]Version
	writes map[string]KeyValue
}

func (s *Store) NewSimulation() *Simulation {
	return &Simulation{
		store:  s,
		reads:  make(map[string]Version),
		writes: make(map[string]KeyValue),
	}
}

// Get returns the staged value when the key was written during this
// simulation, otherwise reads the committed state and records the version.
func (sim *Simulation) Get(key string) ([]byte, error) {
	if staged, ok := sim.writes[key]; ok {
		if staged.Delete {
			return nil, nil
		}
		return staged.Value, nil
	}
	value, version, err := sim.store.Get(key)
	if err != nil {
		return nil, err
	}
	sim.reads[key] = version
	return value, nil
}

func (sim *Simulation) Put(key string, value []byte) {
	sim.writes[key] = KeyValue{Key: key, Value: value}
}

func (sim *Simulation) Delete(key string) {
	sim.writes[key] = KeyValue{Key: key, Delete: true}
}

// RangeScan scans committed state only. Writes staged in this simulation are
// not merged into scan results, matching the commit-time visibility rule.
// Every returned entry is added to the read set.
func (sim *Simulation) RangeScan(startKey, endKey string) ([]KV, error) {
	results, err := sim.store.RangeScan(startKey, endKey)
	if err != nil {
		return nil, err
	}
	for _, kv := range results {
		sim.reads[kv.Key] = kv.Version
	}
	return results, nil
}

// Results returns the read and write sets in deterministic key order so
// endorsements of the same simulation compare equal across peers.
func (sim *Simulation) Results() ([]KeyVersion, []KeyValue) {
	readSet := make([]KeyVersion, 0, len(sim.reads))
	for key, version := range sim.reads {
		readSet = append(readSet, KeyVersion{Key: key, Version: version})
	}
	sort.Slice(readSet, func(i, j int) bool {
		return readSet[i].Key < readSet[j].Key
	})
	writeSet := make([]KeyValue, 0, len(sim.writes))
	for _, kv := range sim.writes {
		writeSet = append(writeSet, kv)
	}
	sort.Slice(writeSet, func(i, j int) bool {
		return writeSet[i].Key < writeSet[j].Key
	})
	return readSet, writeSet
}
