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

// Package identity resolves a caller's attribute-based role claims against
// the fixed role-to-organization table and the caller's MSP identity.
package identity

import (
	"strings"

	"github.com/crucible-ledger/crucible/fault"
)

const (
	RoleAdmin    = "admin"
	RoleClient   = "client"
	RoleManager  = "manager"
	RoleMember   = "member"
	RoleCopilot  = "copilot"
	RoleReviewer = "reviewer"
)

const (
	OrgClients    = "Clients"
	OrgTopcoder   = "Topcoder"
	OrgMembers    = "Members"
	OrgModerators = "Moderators"
)

// roleOrganizations is the fixed table mapping a role to the organization
// whose peers may submit requests carrying that role.
var roleOrganizations = map[string]string{
	RoleClient:   OrgClients,
	RoleManager:  OrgTopcoder,
	RoleMember:   OrgMembers,
	RoleCopilot:  OrgModerators,
	RoleReviewer: OrgModerators,
}

// RoleOrganization returns the owning organization for a role, or an empty
// string for an unknown role.
func RoleOrganization(role string) string {
	return roleOrganizations[role]
}

// MSPID returns the MSP identifier for an organization.
func MSPID(org string) string {
	return org + "MSP"
}

// Identity is the verified identity of a caller as asserted by its
// credential: the organization MSP it belongs to and its certificate
// attributes. The "roles" attribute carries a comma-separated role list and
// "userId" the member id of the caller.
type Identity struct {
	MSP        string
	Attributes map[string]string
}

// AttributeValue returns the named certificate attribute, or an empty string
// when absent.
func (id Identity) AttributeValue(name string) string {
	return id.Attributes[name]
}

// UserID returns the caller's member id attribute.
func (id Identity) UserID() string {
	return id.AttributeValue("userId")
}

// Roles returns the caller's asserted role list. An identity without a roles
// attribute is an infrastructure identity and is treated as admin, matching
// the network bootstrap identities.
func (id Identity) Roles() []string {
	raw := id.AttributeValue("roles")
	if raw == "" {
		raw = RoleAdmin
	}
	return strings.Split(raw, ",")
}

// Authorize checks that the caller asserts at least one of the permitted
// roles and that the request arrived from a peer of an organization owning
// one of those roles. The admin role bypasses both checks. It returns the
// caller's full asserted role set, not just the permitted subset, so callers
// can apply finer-grained checks downstream.
func Authorize(id Identity, permittedRoles []string) ([]string, error) {
	roles := id.Roles()

	var validRoles []string
	for _, role := range roles {
		for _, permitted := range permittedRoles {
			if role == permitted {
				validRoles = append(validRoles, role)
				break
			}
		}
	}

	for _, role := range roles {
		if role == RoleAdmin {
			return roles, nil
		}
	}

	if len(validRoles) == 0 {
		return nil, fault.Forbidden(
			"access denied: only these roles can perform this operation: %s",
			strings.Join(permittedRoles, ","),
		)
	}

	ok := false
	for _, role := range validRoles {
		org := RoleOrganization(role)
		if org == "" {
			return nil, fault.Forbidden(
				"access denied: cannot recognize role: %s",
				role,
			)
		}
		if id.MSP == MSPID(org) {
			ok = true
		}
	}
	if !ok {
		return nil, fault.Forbidden(
			"access denied: the request is not submitted from a correct organization peer",
		)
	}

	return roles, nil
}

// HasRole reports whether the role set contains the given role.
func HasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// SoleRole reports whether the role set consists of exactly the given role.
func SoleRole(roles []string, role string) bool {
	return len(roles) == 1 && roles[0] == role
}
