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

// ClientChaincode runs on the client channel. It keeps the client-facing
// project record, including the confidential budget and client id, and
// receives completed-challenge projections from the review channel.
type ClientChaincode struct {
	logger *slog.Logger
	table  DispatchTable
}

func NewClientChaincode(logger *slog.Logger) *ClientChaincode {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	c := &ClientChaincode{
		logger: logger.With("component", "chaincode.client"),
	}
	c.table = DispatchTable{
		"createProject":        c.createProject,
		"updateProject":        c.updateProject,
		"getProject":           c.getProject,
		"listProjects":         c.listProjects,
		"getSubmission":        c.getSubmission,
		"onChallengeCompleted": c.onChallengeCompleted,
	}
	return c
}

func (c *ClientChaincode) Init(stub Stub) error {
	c.logger.Info("client chaincode instantiated")
	return nil
}

func (c *ClientChaincode) Invoke(
	stub Stub,
	fcn string,
	args []string,
) ([]byte, error) {
	c.logger.Debug("invoke", "fcn", fcn, "tx_id", stub.TxID())
	return c.table.Invoke(stub, fcn, args)
}

func (c *ClientChaincode) createProject(
	stub Stub,
	args []string,
) (any, error) {
	if _, err := identity.Authorize(
		stub.Creator(),
		[]string{identity.RoleManager},
	); err != nil {
		return nil, err
	}
	if err := requireArgs(args, 1, "payload"); err != nil {
		return nil, err
	}
	project := &ClientProject{}
	if err := unmarshalArg(args[0], project); err != nil {
		return nil, err
	}
	if project.ProjectID == "" {
		return nil, fault.Validation("projectId is required")
	}
	repo := NewRepository(stub)
	existing, err := repo.GetClientProject(project.ProjectID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fault.Conflict(
			"project %s already exists",
			project.ProjectID,
		)
	}
	if project.Challenges == nil {
		project.Challenges = []CompletedChallenge{}
	}
	if err := repo.SaveClientProject(project); err != nil {
		return nil, err
	}
	return project, nil
}

func (c *ClientChaincode) updateProject(
	stub Stub,
	args []string,
) (any, error) {
	if _, err := identity.Authorize(
		stub.Creator(),
		[]string{identity.RoleManager},
	); err != nil {
		return nil, err
	}
	if err := requireArgs(args, 1, "payload"); err != nil {
		return nil, err
	}
	payload := &ClientProject{}
	if err := unmarshalArg(args[0], payload); err != nil {
		return nil, err
	}
	if payload.ProjectID == "" {
		return nil, fault.Validation("projectId is required")
	}
	repo := NewRepository(stub)
	project, err := repo.GetClientProject(payload.ProjectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fault.NotFound(
			"cannot find project with id: %s",
			payload.ProjectID,
		)
	}
	userID, err := callerUserID(stub)
	if err != nil {
		return nil, err
	}
	if project.CreatedBy != userID {
		return nil, fault.Forbidden(
			"you cannot update this project because you did not create it",
		)
	}
	if payload.Status != "" {
		project.Status = payload.Status
	}
	if payload.CopilotID != "" {
		project.CopilotID = payload.CopilotID
	}
	if payload.Description != "" {
		project.Description = payload.Description
	}
	if payload.Budget != 0 {
		project.Budget = payload.Budget
	}
	if payload.Name != "" {
		project.Name = payload.Name
	}
	project.UpdatedBy = userID
	if err := repo.SaveClientProject(project); err != nil {
		return nil, err
	}
	return project, nil
}

func (c *ClientChaincode) getProject(stub Stub, args []string) (any, error) {
	roles, err := identity.Authorize(
		stub.Creator(),
		[]string{identity.RoleManager, identity.RoleClient},
	)
	if err != nil {
		return nil, err
	}
	if err := requireArgs(args, 1, "projectId"); err != nil {
		return nil, err
	}
	project, err := NewRepository(stub).GetClientProject(args[0])
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fault.NotFound("cannot find project with id: %s", args[0])
	}
	if err := c.checkClientAccess(stub, roles, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (c *ClientChaincode) listProjects(stub Stub, args []string) (any, error) {
	roles, err := identity.Authorize(
		stub.Creator(),
		[]string{identity.RoleClient, identity.RoleManager},
	)
	if err != nil {
		return nil, err
	}
	repo := NewRepository(stub)
	// A caller that is only a client sees only their own projects.
	if identity.SoleRole(roles, identity.RoleClient) {
		userID, err := callerUserID(stub)
		if err != nil {
			return nil, err
		}
		return repo.ListClientProjects(func(p *ClientProject) bool {
			return p.ClientID == userID
		})
	}
	return repo.ListClientProjects(nil)
}

// checkClientAccess restricts a pure-client caller to projects commissioned
// by them.
func (c *ClientChaincode) checkClientAccess(
	stub Stub,
	roles []string,
	project *ClientProject,
) error {
	if !identity.SoleRole(roles, identity.RoleClient) {
		return nil
	}
	userID, err := callerUserID(stub)
	if err != nil {
		return err
	}
	if project.ClientID != userID {
		return fault.Forbidden(
			"you cannot view this project because you are not the client of it",
		)
	}
	return nil
}

// getSubmission returns the winning deliverable's location for a completed
// challenge. Clients only see it on their own projects.
func (c *ClientChaincode) getSubmission(stub Stub, args []string) (any, error) {
	roles, err := identity.Authorize(
		stub.Creator(),
		[]string{identity.RoleManager, identity.RoleClient},
	)
	if err != nil {
		return nil, err
	}
	if err := requireArgs(args, 2, "projectId, challengeId"); err != nil {
		return nil, err
	}
	project, err := NewRepository(stub).GetClientProject(args[0])
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fault.NotFound("cannot find project with id: %s", args[0])
	}
	if err := c.checkClientAccess(stub, roles, project); err != nil {
		return nil, err
	}
	for i := range project.Challenges {
		if project.Challenges[i].ChallengeID != args[1] {
			continue
		}
		if project.Challenges[i].IPFSHash == "" {
			return nil, fault.NotFound(
				"challenge %s completed without a winning submission",
				args[1],
			)
		}
		return map[string]string{
			"ipfsHash": project.Challenges[i].IPFSHash,
			"fileName": project.Challenges[i].FileName,
		}, nil
	}
	return nil, fault.NotFound(
		"project %s has no completed challenge with id: %s",
		args[0],
		args[1],
	)
}

// completedPayload is the cross-channel projection of a finished challenge.
type completedPayload struct {
	ProjectID string `json:"projectId"`
	CompletedChallenge
}

func (c *ClientChaincode) onChallengeCompleted(
	stub Stub,
	args []string,
) (any, error) {
	if _, err := identity.Authorize(
		stub.Creator(),
		[]string{identity.RoleManager, identity.RoleCopilot},
	); err != nil {
		return nil, err
	}
	if err := requireArgs(args, 1, "payload"); err != nil {
		return nil, err
	}
	payload := &completedPayload{}
	if err := unmarshalArg(args[0], payload); err != nil {
		return nil, err
	}
	if payload.ProjectID == "" {
		return nil, fault.Validation("projectId is required")
	}
	if payload.ChallengeID == "" {
		return nil, fault.Validation("challengeId is required")
	}
	repo := NewRepository(stub)
	project, err := repo.GetClientProject(payload.ProjectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fault.NotFound(
			"cannot find project with id: %s",
			payload.ProjectID,
		)
	}
	// Idempotent on replay: a completed challenge is recorded once.
	replaced := false
	for i := range project.Challenges {
		if project.Challenges[i].ChallengeID == payload.ChallengeID {
			project.Challenges[i] = payload.CompletedChallenge
			replaced = true
			break
		}
	}
	if !replaced {
		project.Challenges = append(
			project.Challenges,
			payload.CompletedChallenge,
		)
	}
	if err := repo.SaveClientProject(project); err != nil {
		return nil, err
	}
	c.logger.Info(
		"completed challenge recorded",
		"project_id", project.ProjectID,
		"challenge_id", payload.ChallengeID,
		"expense", payload.Expense,
	)
	return project, nil
}
