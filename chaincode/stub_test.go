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

package chaincode

import (
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/crucible-ledger/crucible/identity"
	"github.com/crucible-ledger/crucible/worldstate"
	"github.com/stretchr/testify/require"
)

// testStub backs chaincode invocations with a plain map. Writes are visible
// immediately, which is fine for single-invocation tests.
type testStub struct {
	state   map[string][]byte
	creator identity.Identity
	txID    string
	now     time.Time
}

func newTestStub(creator identity.Identity) *testStub {
	return &testStub{
		state:   make(map[string][]byte),
		creator: creator,
		txID:    "tx-test",
		now:     time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *testStub) GetState(key string) ([]byte, error) {
	return s.state[key], nil
}

func (s *testStub) PutState(key string, value []byte) error {
	s.state[key] = value
	return nil
}

func (s *testStub) DelState(key string) error {
	delete(s.state, key)
	return nil
}

func (s *testStub) GetStateByRange(
	startKey, endKey string,
) ([]worldstate.KV, error) {
	keys := make([]string, 0, len(s.state))
	for key := range s.state {
		if key >= startKey && key < endKey {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	entries := make([]worldstate.KV, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, worldstate.KV{
			Key:   key,
			Value: s.state[key],
		})
	}
	return entries, nil
}

func (s *testStub) Creator() identity.Identity { return s.creator }
func (s *testStub) TxID() string               { return s.txID }
func (s *testStub) TxTimestamp() time.Time     { return s.now }

// as returns a copy of the stub with a different caller, sharing state.
func (s *testStub) as(creator identity.Identity) *testStub {
	return &testStub{
		state:   s.state,
		creator: creator,
		txID:    s.txID,
		now:     s.now,
	}
}

func roleIdentity(userID string, roles ...string) identity.Identity {
	attrs := map[string]string{"userId": userID}
	msp := identity.MSPID(identity.OrgTopcoder)
	if len(roles) > 0 {
		raw := roles[0]
		for _, role := range roles[1:] {
			raw += "," + role
		}
		attrs["roles"] = raw
		if org := identity.RoleOrganization(roles[0]); org != "" {
			msp = identity.MSPID(org)
		}
	}
	return identity.Identity{MSP: msp, Attributes: attrs}
}

func managerIdentity(userID string) identity.Identity {
	return roleIdentity(userID, identity.RoleManager)
}

func copilotIdentity(userID string) identity.Identity {
	return roleIdentity(userID, identity.RoleCopilot)
}

func memberIdentity(userID string) identity.Identity {
	return roleIdentity(userID, identity.RoleMember)
}

func reviewerIdentity(userID string) identity.Identity {
	return roleIdentity(userID, identity.RoleReviewer)
}

func clientIdentity(userID string) identity.Identity {
	return roleIdentity(userID, identity.RoleClient)
}

// testPhases builds a contiguous six-phase schedule starting at start, each
// phase lasting one hour.
func testPhases(start time.Time) []Phase {
	phases := make([]Phase, 0, len(phaseOrder))
	for _, name := range phaseOrder {
		phases = append(phases, Phase{
			Name:      name,
			StartDate: start,
			EndDate:   start.Add(time.Hour),
		})
		start = start.Add(time.Hour)
	}
	return phases
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}

func decodeInto(t *testing.T, payload []byte, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(payload, v))
}
