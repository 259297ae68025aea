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

package workflow

import (
	"context"
	"strings"

	"github.com/crucible-ledger/crucible/chaincode"
	"github.com/crucible-ledger/crucible/fault"
	"github.com/crucible-ledger/crucible/identity"
)

// ProvisionUser records a new user on the users channel and enrolls it with
// every organization its roles belong to. It returns one credential identity
// per organization, in role order, each carrying the full roles and userId
// attributes. A caller exercises the credential of the organization owning
// the role a given operation needs.
func (s *Service) ProvisionUser(
	ctx context.Context,
	user *chaincode.User,
) ([]identity.Identity, error) {
	if len(user.Roles) == 0 {
		return nil, fault.Validation("user requires at least one role")
	}
	orgs := make([]string, 0, len(user.Roles))
	seen := make(map[string]bool, len(user.Roles))
	for _, role := range user.Roles {
		org := identity.RoleOrganization(role)
		if org == "" {
			return nil, fault.Validation("unknown role: %s", role)
		}
		if !seen[org] {
			seen[org] = true
			orgs = append(orgs, org)
		}
	}
	created := &chaincode.User{}
	if err := s.invoke(
		ctx,
		SystemIdentity(),
		ChannelUsers,
		"createUser",
		user,
		created,
	); err != nil {
		return nil, err
	}
	s.logger.Info(
		"user provisioned",
		"member_id", created.MemberID,
		"orgs", orgs,
	)
	creds := make([]identity.Identity, 0, len(orgs))
	for _, org := range orgs {
		creds = append(creds, identity.Identity{
			MSP: identity.MSPID(org),
			Attributes: map[string]string{
				"userId": created.MemberID,
				"roles":  strings.Join(created.Roles, ","),
			},
		})
	}
	return creds, nil
}

// LookupUser resolves a user record by member id.
func (s *Service) LookupUser(
	ctx context.Context,
	memberID string,
) (*chaincode.User, error) {
	user := &chaincode.User{}
	if err := s.query(
		ctx,
		SystemIdentity(),
		ChannelUsers,
		"getUserById",
		memberID,
		user,
	); err != nil {
		return nil, err
	}
	return user, nil
}
