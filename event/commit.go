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

package event

// Transaction validation codes published with commit events. A transaction
// appears in a block even when invalid; only VALID transactions mutate state.
const (
	TxValid            = "VALID"
	TxMVCCReadConflict = "MVCC_READ_CONFLICT"
	TxInvalid          = "INVALID"
)

// TxCommitEventType returns the event type a peer publishes commit results
// under. Scoped per peer so a waiter observes exactly the peers it asked.
func TxCommitEventType(peerID string) EventType {
	return EventType("commit.tx." + peerID)
}

// BlockCommitEventType returns the event type for whole-block commit
// notifications on a channel.
func BlockCommitEventType(channelID string) EventType {
	return EventType("commit.block." + channelID)
}

// TxCommitEvent is published by a peer once per transaction in a committed
// block, carrying the validation outcome.
type TxCommitEvent struct {
	TxID        string
	ChannelID   string
	PeerID      string
	BlockNumber uint64
	Code        string
}

// BlockCommitEvent is published by a peer after a whole block is applied.
type BlockCommitEvent struct {
	ChannelID   string
	PeerID      string
	BlockNumber uint64
	TxCount     int
}
