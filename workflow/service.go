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

// Package workflow implements the cross-channel orchestration that no single
// chaincode can do alone: the project draft-to-active flow with budget
// confidentiality, user provisioning, and the scheduled phase advancer that
// projects completed challenges back to the client channel.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/crucible-ledger/crucible/coordinator"
	"github.com/crucible-ledger/crucible/fault"
	"github.com/crucible-ledger/crucible/identity"
)

// Channel and chaincode names of the standard deployment.
const (
	ChannelReview = "review"
	ChannelClient = "client"
	ChannelUsers  = "users"
)

type Config struct {
	Logger      *slog.Logger
	Coordinator *coordinator.Coordinator
}

type Service struct {
	logger      *slog.Logger
	coordinator *coordinator.Coordinator
}

func New(cfg Config) (*Service, error) {
	if cfg.Coordinator == nil {
		return nil, fault.Configuration("workflow requires a coordinator")
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Service{
		logger:      cfg.Logger.With("component", "workflow"),
		coordinator: cfg.Coordinator,
	}, nil
}

// SystemIdentity is the infrastructure identity used for scheduled jobs and
// provisioning. Its empty-roles form resolves to admin.
func SystemIdentity() identity.Identity {
	return identity.Identity{
		MSP: identity.MSPID(identity.OrgTopcoder),
		Attributes: map[string]string{
			"userId": "system",
		},
	}
}

func (s *Service) invoke(
	ctx context.Context,
	creator identity.Identity,
	channel string,
	fcn string,
	payload any,
	result any,
) error {
	args, err := encodeArgs(payload)
	if err != nil {
		return err
	}
	raw, err := s.coordinator.Invoke(ctx, coordinator.Request{
		ChannelID: channel,
		Chaincode: channel,
		Fcn:       fcn,
		Args:      args,
		Creator:   creator,
	})
	if err != nil {
		return err
	}
	return decodePayload(raw, result)
}

func (s *Service) query(
	ctx context.Context,
	creator identity.Identity,
	channel string,
	fcn string,
	payload any,
	result any,
) error {
	args, err := encodeArgs(payload)
	if err != nil {
		return err
	}
	raw, err := s.coordinator.Query(ctx, coordinator.Request{
		ChannelID: channel,
		Chaincode: channel,
		Fcn:       fcn,
		Args:      args,
		Creator:   creator,
	})
	if err != nil {
		return err
	}
	return decodePayload(raw, result)
}

func encodeArgs(payload any) ([]string, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case string:
		return []string{v}, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode request payload: %w", err)
		}
		return []string{string(data)}, nil
	}
}

func decodePayload(raw []byte, result any) error {
	if result == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("decode response payload: %w", err)
	}
	return nil
}
