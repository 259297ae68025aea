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

package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ident(msp string, attrs map[string]string) Identity {
	return Identity{MSP: msp, Attributes: attrs}
}

func TestRolesDefaultsToAdmin(t *testing.T) {
	id := ident(MSPID(OrgTopcoder), map[string]string{"userId": "system"})
	assert.Equal(t, []string{RoleAdmin}, id.Roles())
}

func TestRolesCommaSeparated(t *testing.T) {
	id := ident(MSPID(OrgModerators), map[string]string{
		"roles": "copilot,reviewer",
	})
	assert.Equal(t, []string{"copilot", "reviewer"}, id.Roles())
}

func TestAuthorizePermittedRole(t *testing.T) {
	id := ident(MSPID(OrgMembers), map[string]string{
		"userId": "m1",
		"roles":  RoleMember,
	})
	roles, err := Authorize(id, []string{RoleMember})
	require.NoError(t, err)
	assert.Equal(t, []string{RoleMember}, roles)
}

func TestAuthorizeAdminBypassesEverything(t *testing.T) {
	// Admin passes role and organization checks regardless of MSP.
	id := ident(MSPID(OrgClients), map[string]string{"roles": RoleAdmin})
	_, err := Authorize(id, []string{RoleManager})
	assert.NoError(t, err)

	// Absent roles attribute means admin too.
	id = ident(MSPID(OrgClients), map[string]string{})
	_, err = Authorize(id, nil)
	assert.NoError(t, err)
}

func TestAuthorizeWrongRole(t *testing.T) {
	id := ident(MSPID(OrgMembers), map[string]string{"roles": RoleMember})
	_, err := Authorize(id, []string{RoleManager, RoleCopilot})
	assert.Error(t, err)
}

func TestAuthorizeWrongOrganization(t *testing.T) {
	// A manager role asserted from a Members-org credential is refused.
	id := ident(MSPID(OrgMembers), map[string]string{"roles": RoleManager})
	_, err := Authorize(id, []string{RoleManager})
	assert.Error(t, err)
}

func TestAuthorizeUnknownRole(t *testing.T) {
	id := ident(MSPID(OrgMembers), map[string]string{"roles": "wizard"})
	_, err := Authorize(id, []string{"wizard"})
	assert.Error(t, err)
}

func TestAuthorizeReturnsFullRoleSet(t *testing.T) {
	id := ident(MSPID(OrgModerators), map[string]string{
		"roles": "copilot,reviewer",
	})
	roles, err := Authorize(id, []string{RoleCopilot})
	require.NoError(t, err)
	// Both roles come back, not just the permitted subset.
	assert.Equal(t, []string{"copilot", "reviewer"}, roles)
}

func TestRoleOrganizationTable(t *testing.T) {
	assert.Equal(t, OrgClients, RoleOrganization(RoleClient))
	assert.Equal(t, OrgTopcoder, RoleOrganization(RoleManager))
	assert.Equal(t, OrgMembers, RoleOrganization(RoleMember))
	assert.Equal(t, OrgModerators, RoleOrganization(RoleCopilot))
	assert.Equal(t, OrgModerators, RoleOrganization(RoleReviewer))
	assert.Equal(t, "", RoleOrganization("wizard"))
}

func TestSoleRole(t *testing.T) {
	assert.True(t, SoleRole([]string{RoleClient}, RoleClient))
	assert.False(t, SoleRole([]string{RoleClient, RoleMember}, RoleClient))
	assert.False(t, SoleRole(nil, RoleClient))
}

func TestHasRole(t *testing.T) {
	roles := []string{RoleCopilot, RoleReviewer}
	assert.True(t, HasRole(roles, RoleReviewer))
	assert.False(t, HasRole(roles, RoleManager))
}
