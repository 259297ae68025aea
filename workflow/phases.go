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
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/crucible-ledger/crucible/chaincode"
	"github.com/crucible-ledger/crucible/fault"
)

// advanceRequest mirrors the review chaincode's advancePhase payload.
type advanceRequest struct {
	ChallengeID string `json:"challengeId"`
	Phase       string `json:"phase"`
}

// completedProjection mirrors the client chaincode's onChallengeCompleted
// payload.
type completedProjection struct {
	ProjectID string `json:"projectId"`
	chaincode.CompletedChallenge
}

// AdvanceDuePhases sweeps all ongoing challenges and advances every one
// whose current phase schedule has elapsed. Challenges whose advancement
// gates are not yet satisfied (reviews missing, appeals unresolved) are left
// alone. Challenges that reach Completed are projected to the client
// channel.
func (s *Service) AdvanceDuePhases(
	ctx context.Context,
	now time.Time,
) (int, error) {
	var challenges []chaincode.Challenge
	if err := s.query(
		ctx,
		SystemIdentity(),
		ChannelReview,
		"getOnGoingChallenges",
		nil,
		&challenges,
	); err != nil {
		return 0, err
	}
	advanced := 0
	var merr *multierror.Error
	for i := range challenges {
		challenge := &challenges[i]
		if !phaseDue(challenge, now) {
			continue
		}
		target := chaincode.NextPhase(challenge.CurrentPhase)
		if target == "" {
			continue
		}
		updated := &chaincode.Challenge{}
		err := s.invoke(
			ctx,
			SystemIdentity(),
			ChannelReview,
			"advancePhase",
			&advanceRequest{
				ChallengeID: challenge.ChallengeID,
				Phase:       target,
			},
			updated,
		)
		if err != nil {
			// A refused gate means the challenge is waiting on reviewers or
			// appeal responses; it will be retried on the next sweep.
			if fault.Is(err, fault.KindForbidden) {
				s.logger.Debug(
					"phase advance deferred",
					"challenge_id", challenge.ChallengeID,
					"target", target,
					"reason", err,
				)
				continue
			}
			merr = multierror.Append(merr, err)
			continue
		}
		advanced++
		s.logger.Info(
			"phase advanced",
			"challenge_id", updated.ChallengeID,
			"phase", updated.CurrentPhase,
		)
		if updated.CurrentPhase == chaincode.PhaseCompleted {
			if err := s.projectCompleted(ctx, updated); err != nil {
				merr = multierror.Append(merr, err)
			}
		}
	}
	return advanced, merr.ErrorOrNil()
}

// phaseDue reports whether the sweep should attempt an advance at the given
// instant. The Review phase ends when every submission is fully reviewed,
// not on the clock, so it is always attempted and the chaincode's
// review-count gate decides; every other phase waits for its scheduled end.
func phaseDue(challenge *chaincode.Challenge, now time.Time) bool {
	if len(challenge.Phases) == 0 {
		return false
	}
	switch challenge.CurrentPhase {
	case chaincode.PhasePending:
		return !now.Before(challenge.Phases[0].StartDate)
	case chaincode.PhaseReview:
		return true
	}
	for _, phase := range challenge.Phases {
		if phase.Name == challenge.CurrentPhase {
			return !now.Before(phase.EndDate)
		}
	}
	return false
}

// projectCompleted pushes the client-visible projection of a completed
// challenge to the client channel: name, total expense, final schedule, and
// the winning deliverable's location.
func (s *Service) projectCompleted(
	ctx context.Context,
	challenge *chaincode.Challenge,
) error {
	projection := &completedProjection{
		ProjectID: challenge.ProjectID,
		CompletedChallenge: chaincode.CompletedChallenge{
			ChallengeID: challenge.ChallengeID,
			Name:        challenge.Name,
			Expense: chaincode.ChallengeExpense(
				challenge.Prizes,
				len(challenge.Reviewers),
				challenge.Winners,
			),
			StartDate: challenge.Phases[0].StartDate,
			EndDate:   challenge.Phases[len(challenge.Phases)-1].EndDate,
		},
	}
	if len(challenge.Winners) > 0 && challenge.Winners[0].Submission != nil {
		projection.IPFSHash = challenge.Winners[0].Submission.IPFSHash
		projection.FileName = challenge.Winners[0].Submission.FileName
	}
	if err := s.invoke(
		ctx,
		SystemIdentity(),
		ChannelClient,
		"onChallengeCompleted",
		projection,
		nil,
	); err != nil {
		return err
	}
	s.logger.Info(
		"challenge completion projected",
		"project_id", challenge.ProjectID,
		"challenge_id", challenge.ChallengeID,
	)
	return nil
}
