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

package ledger

import (
	"time"

	"github.com/crucible-ledger/crucible/fault"
	"github.com/crucible-ledger/crucible/identity"
)

// Proposal is a chaincode invocation request sent to endorsing peers. The
// timestamp is fixed by the submitting client so every endorser simulates
// against the same clock.
type Proposal struct {
	TxID      string
	ChannelID string
	Chaincode string
	Fcn       string
	Args      []string
	Creator   identity.Identity
	Timestamp time.Time
}

func (p Proposal) Validate() error {
	if p.TxID == "" {
		return fault.Validation("proposal requires a transaction id")
	}
	if p.ChannelID == "" {
		return fault.Validation("proposal requires a channel id")
	}
	if p.Chaincode == "" {
		return fault.Validation("proposal requires a chaincode name")
	}
	if p.Fcn == "" {
		return fault.Validation("proposal requires a function name")
	}
	if p.Timestamp.IsZero() {
		return fault.Validation("proposal requires a timestamp")
	}
	return nil
}
