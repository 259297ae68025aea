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
	"testing"

	"github.com/crucible-ledger/crucible/fault"
	"github.com/crucible-ledger/crucible/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// adminStub returns state driven by an infrastructure identity: no roles
// attribute means admin.
func adminStub() *testStub {
	return newTestStub(identity.Identity{
		MSP:        identity.MSPID(identity.OrgTopcoder),
		Attributes: map[string]string{"userId": "system"},
	})
}

func TestCreateAndFetchUser(t *testing.T) {
	cc := NewUsersChaincode(nil)
	state := adminStub()
	user := User{
		MemberID:    "m1",
		MemberEmail: "m1@example.com",
		Name:        "Mia",
		Roles:       []string{identity.RoleMember},
	}
	_, err := cc.Invoke(state, "createUser", []string{mustJSON(t, user)})
	require.NoError(t, err)

	payload, err := cc.Invoke(state, "getUserById", []string{"m1"})
	require.NoError(t, err)
	got := &User{}
	decodeInto(t, payload, got)
	assert.Equal(t, user, *got)

	payload, err = cc.Invoke(state, "getUserByEmail",
		[]string{"m1@example.com"})
	require.NoError(t, err)
	got = &User{}
	decodeInto(t, payload, got)
	assert.Equal(t, user, *got)
}

func TestCreateUserConflicts(t *testing.T) {
	cc := NewUsersChaincode(nil)
	state := adminStub()
	_, err := cc.Invoke(state, "createUser", []string{mustJSON(t, User{
		MemberID:    "m1",
		MemberEmail: "m1@example.com",
		Roles:       []string{identity.RoleMember},
	})})
	require.NoError(t, err)

	// Same id, different email.
	_, err = cc.Invoke(state, "createUser", []string{mustJSON(t, User{
		MemberID:    "m1",
		MemberEmail: "other@example.com",
		Roles:       []string{identity.RoleMember},
	})})
	require.Error(t, err)
	assert.Equal(t, fault.KindConflict, fault.KindOf(err))

	// Different id, same email.
	_, err = cc.Invoke(state, "createUser", []string{mustJSON(t, User{
		MemberID:    "m2",
		MemberEmail: "m1@example.com",
		Roles:       []string{identity.RoleMember},
	})})
	require.Error(t, err)
	assert.Equal(t, fault.KindConflict, fault.KindOf(err))
}

func TestCreateUserUnknownRole(t *testing.T) {
	cc := NewUsersChaincode(nil)
	_, err := cc.Invoke(adminStub(), "createUser", []string{mustJSON(t, User{
		MemberID:    "m1",
		MemberEmail: "m1@example.com",
		Roles:       []string{"wizard"},
	})})
	require.Error(t, err)
	assert.Equal(t, fault.KindValidation, fault.KindOf(err))
}

func TestUsersOpsAdminOnly(t *testing.T) {
	cc := NewUsersChaincode(nil)
	state := adminStub()
	_, err := cc.Invoke(state, "createUser", []string{mustJSON(t, User{
		MemberID:    "m1",
		MemberEmail: "m1@example.com",
		Roles:       []string{identity.RoleMember},
	})})
	require.NoError(t, err)

	for _, tc := range []struct {
		fcn  string
		args []string
	}{
		{"createUser", []string{mustJSON(t, User{
			MemberID:    "m9",
			MemberEmail: "m9@example.com",
		})}},
		{"getUserById", []string{"m1"}},
		{"getUserByEmail", []string{"m1@example.com"}},
		{"listUsers", nil},
	} {
		_, err := cc.Invoke(state.as(managerIdentity("mgr")), tc.fcn, tc.args)
		require.Error(t, err, tc.fcn)
		assert.Equal(t, fault.KindForbidden, fault.KindOf(err), tc.fcn)
	}
}

func TestListUsers(t *testing.T) {
	cc := NewUsersChaincode(nil)
	state := adminStub()
	for _, user := range []User{
		{MemberID: "a", MemberEmail: "a@example.com", Roles: []string{identity.RoleClient}},
		{MemberID: "b", MemberEmail: "b@example.com", Roles: []string{identity.RoleCopilot}},
	} {
		_, err := cc.Invoke(state, "createUser", []string{mustJSON(t, user)})
		require.NoError(t, err)
	}
	payload, err := cc.Invoke(state, "listUsers", nil)
	require.NoError(t, err)
	var users []User
	decodeInto(t, payload, &users)
	assert.Len(t, users, 2)
}
