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
	"io"
	"log/slog"

	"github.com/crucible-ledger/crucible/fault"
	"github.com/crucible-ledger/crucible/identity"
)

// UsersChaincode runs on the users channel and keeps the user directory.
// User records are immutable and written under both the id and email keys.
type UsersChaincode struct {
	logger *slog.Logger
	table  DispatchTable
}

func NewUsersChaincode(logger *slog.Logger) *UsersChaincode {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	c := &UsersChaincode{
		logger: logger.With("component", "chaincode.users"),
	}
	c.table = DispatchTable{
		"createUser":     c.createUser,
		"getUserById":    c.getUserByID,
		"getUserByEmail": c.getUserByEmail,
		"listUsers":      c.listUsers,
	}
	return c
}

func (c *UsersChaincode) Init(stub Stub) error {
	c.logger.Info("users chaincode instantiated")
	return nil
}

func (c *UsersChaincode) Invoke(
	stub Stub,
	fcn string,
	args []string,
) ([]byte, error) {
	c.logger.Debug("invoke", "fcn", fcn, "tx_id", stub.TxID())
	return c.table.Invoke(stub, fcn, args)
}

func (c *UsersChaincode) createUser(stub Stub, args []string) (any, error) {
	if _, err := identity.Authorize(
		stub.Creator(),
		[]string{identity.RoleAdmin},
	); err != nil {
		return nil, err
	}
	if err := requireArgs(args, 1, "payload"); err != nil {
		return nil, err
	}
	user := &User{}
	if err := unmarshalArg(args[0], user); err != nil {
		return nil, err
	}
	if user.MemberID == "" {
		return nil, fault.Validation("memberId is required")
	}
	if user.MemberEmail == "" {
		return nil, fault.Validation("memberEmail is required")
	}
	for _, role := range user.Roles {
		if identity.RoleOrganization(role) == "" {
			return nil, fault.Validation("unknown role: %s", role)
		}
	}
	repo := NewRepository(stub)
	byID, err := repo.GetUserByID(user.MemberID)
	if err != nil {
		return nil, err
	}
	if byID != nil {
		return nil, fault.Conflict(
			"user with id %s already exists",
			user.MemberID,
		)
	}
	byEmail, err := repo.GetUserByEmail(user.MemberEmail)
	if err != nil {
		return nil, err
	}
	if byEmail != nil {
		return nil, fault.Conflict(
			"user with email %s already exists",
			user.MemberEmail,
		)
	}
	if err := repo.SaveUser(user); err != nil {
		return nil, err
	}
	c.logger.Info(
		"user created",
		"member_id", user.MemberID,
		"roles", user.Roles,
	)
	return user, nil
}

func (c *UsersChaincode) getUserByID(stub Stub, args []string) (any, error) {
	if _, err := identity.Authorize(
		stub.Creator(),
		[]string{identity.RoleAdmin},
	); err != nil {
		return nil, err
	}
	if err := requireArgs(args, 1, "memberId"); err != nil {
		return nil, err
	}
	user, err := NewRepository(stub).GetUserByID(args[0])
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fault.NotFound("cannot find user with id: %s", args[0])
	}
	return user, nil
}

func (c *UsersChaincode) getUserByEmail(stub Stub, args []string) (any, error) {
	if _, err := identity.Authorize(
		stub.Creator(),
		[]string{identity.RoleAdmin},
	); err != nil {
		return nil, err
	}
	if err := requireArgs(args, 1, "memberEmail"); err != nil {
		return nil, err
	}
	user, err := NewRepository(stub).GetUserByEmail(args[0])
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fault.NotFound("cannot find user with email: %s", args[0])
	}
	return user, nil
}

func (c *UsersChaincode) listUsers(stub Stub, args []string) (any, error) {
	if _, err := identity.Authorize(
		stub.Creator(),
		[]string{identity.RoleAdmin},
	); err != nil {
		return nil, err
	}
	return NewRepository(stub).ListUsers()
}
