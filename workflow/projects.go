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

	"github.com/crucible-ledger/crucible/chaincode"
	"github.com/crucible-ledger/crucible/fault"
	"github.com/crucible-ledger/crucible/identity"
)

// CreateProject records a new project in draft state. Drafts live only on
// the client channel, where the budget and client id are visible; nothing
// reaches the review channel until activation.
func (s *Service) CreateProject(
	ctx context.Context,
	creator identity.Identity,
	project *chaincode.ClientProject,
) (*chaincode.ClientProject, error) {
	if project.ProjectID == "" {
		return nil, fault.Validation("projectId is required")
	}
	project.Status = chaincode.ProjectStatusDraft
	project.CreatedBy = creator.UserID()
	created := &chaincode.ClientProject{}
	if err := s.invoke(
		ctx,
		creator,
		ChannelClient,
		"createProject",
		project,
		created,
	); err != nil {
		return nil, err
	}
	s.logger.Info("project drafted", "project_id", created.ProjectID)
	return created, nil
}

// ActivateProject flips a draft project to active and publishes it to the
// review channel with the budget and client id stripped.
func (s *Service) ActivateProject(
	ctx context.Context,
	creator identity.Identity,
	projectID string,
) (*chaincode.ClientProject, error) {
	stored := &chaincode.ClientProject{}
	if err := s.query(
		ctx,
		creator,
		ChannelClient,
		"getProject",
		projectID,
		stored,
	); err != nil {
		return nil, err
	}
	if stored.Status != chaincode.ProjectStatusDraft {
		return nil, fault.Validation(
			"project %s is not in draft state",
			projectID,
		)
	}
	reviewCopy := &chaincode.Project{
		ProjectID:   stored.ProjectID,
		CopilotID:   stored.CopilotID,
		Name:        stored.Name,
		Description: stored.Description,
		Status:      chaincode.ProjectStatusActive,
		CreatedBy:   stored.CreatedBy,
	}
	if err := s.invoke(
		ctx,
		creator,
		ChannelReview,
		"createProject",
		reviewCopy,
		nil,
	); err != nil {
		return nil, err
	}
	updated := &chaincode.ClientProject{}
	if err := s.invoke(
		ctx,
		creator,
		ChannelClient,
		"updateProject",
		&chaincode.ClientProject{
			ProjectID: projectID,
			Status:    chaincode.ProjectStatusActive,
		},
		updated,
	); err != nil {
		return nil, err
	}
	s.logger.Info("project activated", "project_id", projectID)
	return updated, nil
}

// UpdateProject applies a partial update. Rolling an active project back to
// draft is rejected; updates to active projects are mirrored to the review
// channel without the confidential fields.
func (s *Service) UpdateProject(
	ctx context.Context,
	creator identity.Identity,
	payload *chaincode.ClientProject,
) (*chaincode.ClientProject, error) {
	if payload.ProjectID == "" {
		return nil, fault.Validation("projectId is required")
	}
	stored := &chaincode.ClientProject{}
	if err := s.query(
		ctx,
		creator,
		ChannelClient,
		"getProject",
		payload.ProjectID,
		stored,
	); err != nil {
		return nil, err
	}
	if stored.Status == chaincode.ProjectStatusActive &&
		payload.Status == chaincode.ProjectStatusDraft {
		return nil, fault.Validation(
			"an active project cannot return to draft",
		)
	}
	updated := &chaincode.ClientProject{}
	if err := s.invoke(
		ctx,
		creator,
		ChannelClient,
		"updateProject",
		payload,
		updated,
	); err != nil {
		return nil, err
	}
	if updated.Status == chaincode.ProjectStatusActive &&
		stored.Status == chaincode.ProjectStatusActive {
		mirror := &chaincode.Project{
			ProjectID:   payload.ProjectID,
			CopilotID:   payload.CopilotID,
			Name:        payload.Name,
			Description: payload.Description,
		}
		if err := s.invoke(
			ctx,
			creator,
			ChannelReview,
			"updateProject",
			mirror,
			nil,
		); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

// GetProject returns the client-channel record, which carries the budget for
// callers the chaincode permits to see it.
func (s *Service) GetProject(
	ctx context.Context,
	creator identity.Identity,
	projectID string,
) (*chaincode.ClientProject, error) {
	project := &chaincode.ClientProject{}
	if err := s.query(
		ctx,
		creator,
		ChannelClient,
		"getProject",
		projectID,
		project,
	); err != nil {
		return nil, err
	}
	return project, nil
}
