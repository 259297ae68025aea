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

// Package ledger defines the transaction and block structures exchanged
// between endorsing peers, the ordering service, and committing peers.
package ledger

import (
	"time"

	"github.com/crucible-ledger/crucible/identity"
	"github.com/crucible-ledger/crucible/worldstate"
)

// Endorsement is one peer's signed simulation result for a proposal.
type Endorsement struct {
	Endorser  string
	ChannelID string
	TxID      string
	Payload   []byte
	ReadSet   []worldstate.KeyVersion
	WriteSet  []worldstate.KeyValue
}

// Transaction is an endorsed proposal submitted to the ordering service. The
// read and write sets were produced at simulation time; committing peers
// re-validate the read set against their current state before applying the
// writes.
type Transaction struct {
	ID        string
	ChannelID string
	Chaincode string
	Fcn       string
	Args      []string
	Creator   identity.Identity
	Timestamp time.Time
	ReadSet   []worldstate.KeyVersion
	WriteSet  []worldstate.KeyValue
	Endorsers []string
	Payload   []byte
}

// Block is an ordered batch of transactions for one channel.
type Block struct {
	Number       uint64
	ChannelID    string
	Timestamp    time.Time
	Transactions []Transaction
}
