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

// Package chaincode implements the ledger-side lifecycle engine: the named
// operations that validate role, phase, and state invariants and mutate the
// challenge, project, and user documents held in world state.
package chaincode

import (
	"encoding/json"
	"time"

	"github.com/crucible-ledger/crucible/fault"
	"github.com/crucible-ledger/crucible/identity"
	"github.com/crucible-ledger/crucible/worldstate"
)

// Stub is the interface a chaincode invocation uses to reach its channel's
// world state and the caller's verified identity. Writes are staged by the
// underlying simulation and only become visible atomically at commit.
type Stub interface {
	GetState(key string) ([]byte, error)
	PutState(key string, value []byte) error
	DelState(key string) error
	// GetStateByRange scans committed state for startKey <= key < endKey.
	GetStateByRange(startKey, endKey string) ([]worldstate.KV, error)
	// Creator is the identity that signed the transaction proposal.
	Creator() identity.Identity
	// TxID is the transaction id of the current invocation.
	TxID() string
	// TxTimestamp is the proposal timestamp. All endorsers see the same
	// value, so time-gated transitions stay deterministic across peers.
	TxTimestamp() time.Time
}

// Chaincode is the ledger invocation interface: Init on instantiation and
// Invoke dispatching a named operation with string arguments.
type Chaincode interface {
	Init(stub Stub) error
	Invoke(stub Stub, fcn string, args []string) ([]byte, error)
}

// Handler implements one named operation. The returned value is JSON-encoded
// into the invocation response payload.
type Handler func(stub Stub, args []string) (any, error)

// DispatchTable maps operation names to handlers. Unknown names are a
// BadRequest, not a raw lookup failure.
type DispatchTable map[string]Handler

func (t DispatchTable) Invoke(
	stub Stub,
	fcn string,
	args []string,
) ([]byte, error) {
	handler, ok := t[fcn]
	if !ok {
		return nil, fault.BadRequest(
			"received unknown function %s invocation",
			fcn,
		)
	}
	result, err := handler(stub, args)
	if err != nil {
		return nil, err
	}
	return marshalPayload(result)
}

func marshalPayload(result any) ([]byte, error) {
	switch v := result.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		payload, err := json.Marshal(v)
		if err != nil {
			return nil, fault.New(
				fault.KindBadRequest,
				"cannot encode response payload: %v",
				err,
			)
		}
		return payload, nil
	}
}

// requireArgs enforces an exact argument count for an operation.
func requireArgs(args []string, n int, what string) error {
	if len(args) != n {
		return fault.BadRequest(
			"incorrect number of arguments, expecting %d (for %s)",
			n,
			what,
		)
	}
	return nil
}

func unmarshalArg(arg string, v any) error {
	if err := json.Unmarshal([]byte(arg), v); err != nil {
		return fault.Validation("malformed payload: %v", err)
	}
	return nil
}

// callerUserID returns the authenticated member id of the caller, failing
// when the identity carries no userId attribute.
func callerUserID(stub Stub) (string, error) {
	userID := stub.Creator().UserID()
	if userID == "" {
		return "", fault.Forbidden(
			"you should login to perform this operation",
		)
	}
	return userID, nil
}

// checkCopilotOfProject enforces that a caller whose sole role is copilot is
// the copilot assigned to the project. Callers holding additional permitted
// roles pass unchecked.
func checkCopilotOfProject(
	stub Stub,
	roles []string,
	project *Project,
) error {
	if !identity.SoleRole(roles, identity.RoleCopilot) {
		return nil
	}
	if project.CopilotID != stub.Creator().UserID() {
		return fault.Forbidden("you are not the copilot of the project")
	}
	return nil
}
