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
	"time"

	"github.com/crucible-ledger/crucible/fault"
)

// Challenge phases in transition order. PhasePending is implicit: it is a
// challenge's initial currentPhase and never appears in the phases array.
const (
	PhasePending        = "Pending"
	PhaseRegister       = "Register"
	PhaseSubmission     = "Submission"
	PhaseReview         = "Review"
	PhaseAppeal         = "Appeal"
	PhaseAppealResponse = "AppealResponse"
	PhaseCompleted      = "Completed"
)

// phaseOrder is the required order of the scheduled phases array.
var phaseOrder = []string{
	PhaseRegister,
	PhaseSubmission,
	PhaseReview,
	PhaseAppeal,
	PhaseAppealResponse,
	PhaseCompleted,
}

// NextPhase returns the phase following current, or an empty string for
// Completed and unknown phases.
func NextPhase(current string) string {
	if current == PhasePending {
		return PhaseRegister
	}
	for i, name := range phaseOrder {
		if name == current && i+1 < len(phaseOrder) {
			return phaseOrder[i+1]
		}
	}
	return ""
}

// ValidatePhases checks the ordering and contiguity invariant: exactly the
// six scheduled phases in order, each phase's start equal to the previous
// phase's end, and start never after end within a phase.
func ValidatePhases(phases []Phase) error {
	if len(phases) != len(phaseOrder) {
		return fault.Validation(
			"challenge must have exactly %d phases, got %d",
			len(phaseOrder),
			len(phases),
		)
	}
	for i, phase := range phases {
		if phase.Name != phaseOrder[i] {
			return fault.Validation(
				"phase %d must be %s, got %s",
				i,
				phaseOrder[i],
				phase.Name,
			)
		}
		if phase.StartDate.IsZero() || phase.EndDate.IsZero() {
			return fault.Validation(
				"phase %s must have startDate and endDate",
				phase.Name,
			)
		}
		if phase.EndDate.Before(phase.StartDate) {
			return fault.Validation(
				"phase %s ends before it starts",
				phase.Name,
			)
		}
		if i > 0 && !phase.StartDate.Equal(phases[i-1].EndDate) {
			return fault.Validation(
				"phase %s must start when %s ends",
				phase.Name,
				phases[i-1].Name,
			)
		}
	}
	return nil
}

// phaseSchedule returns the scheduled phase entry by name, or nil.
func phaseSchedule(challenge *Challenge, name string) *Phase {
	for i := range challenge.Phases {
		if challenge.Phases[i].Name == name {
			return &challenge.Phases[i]
		}
	}
	return nil
}

// shiftPhases slides the schedule when the challenge advances into target at
// `now`: the outgoing phase's end becomes now, and every phase from target
// onward keeps its duration but starts where the prior phase now ends. The
// absolute dates move; the deltas are conserved.
func shiftPhases(challenge *Challenge, target string, now time.Time) {
	targetIdx := -1
	for i, phase := range challenge.Phases {
		if phase.Name == target {
			targetIdx = i
			break
		}
	}
	if targetIdx < 0 {
		return
	}
	if targetIdx > 0 {
		challenge.Phases[targetIdx-1].EndDate = now
	}
	prevEnd := now
	for i := targetIdx; i < len(challenge.Phases); i++ {
		duration := challenge.Phases[i].EndDate.Sub(
			challenge.Phases[i].StartDate,
		)
		challenge.Phases[i].StartDate = prevEnd
		challenge.Phases[i].EndDate = prevEnd.Add(duration)
		prevEnd = challenge.Phases[i].EndDate
	}
}

// checkAdvance validates the precondition for advancing the challenge into
// target at time now. Time-gated transitions compare against the scheduled
// start of the target phase; Review->Appeal and AppealResponse->Completed
// gate on review and appeal completeness instead.
func checkAdvance(challenge *Challenge, target string, now time.Time) error {
	expected := NextPhase(challenge.CurrentPhase)
	if expected == "" {
		return fault.Forbidden(
			"challenge in phase %s cannot advance",
			challenge.CurrentPhase,
		)
	}
	if target != expected {
		return fault.Forbidden(
			"challenge in phase %s can only advance to %s, not %s",
			challenge.CurrentPhase,
			expected,
			target,
		)
	}
	switch target {
	case PhaseRegister, PhaseSubmission, PhaseReview, PhaseAppealResponse:
		schedule := phaseSchedule(challenge, target)
		if schedule == nil {
			return fault.Validation(
				"challenge has no scheduled %s phase",
				target,
			)
		}
		if now.Before(schedule.StartDate) {
			return fault.Forbidden(
				"the %s phase does not start until %s",
				target,
				schedule.StartDate.Format(time.RFC3339),
			)
		}
	case PhaseAppeal:
		if err := checkReviewsComplete(challenge); err != nil {
			return err
		}
	case PhaseCompleted:
		if err := checkAppealsResolved(challenge); err != nil {
			return err
		}
	}
	return nil
}

// checkReviewsComplete requires every submission to hold at least as many
// reviews as there are assigned reviewers.
func checkReviewsComplete(challenge *Challenge) error {
	reviewerCount := len(challenge.Reviewers)
	for _, submission := range challenge.Submissions {
		if len(submission.Reviews) < reviewerCount {
			return fault.Forbidden(
				"submission %s has %d of %d required reviews",
				submission.SubmissionID,
				len(submission.Reviews),
				reviewerCount,
			)
		}
	}
	return nil
}

// checkAppealsResolved requires every appealed question across every
// submission to carry both a response text and a final score.
func checkAppealsResolved(challenge *Challenge) error {
	for _, submission := range challenge.Submissions {
		for _, review := range submission.Reviews {
			for _, answer := range review.Review {
				if answer.Appeal == nil {
					continue
				}
				if answer.Appeal.AppealResponse == "" ||
					answer.Appeal.FinalScore == nil {
					return fault.Forbidden(
						"submission %s question %d has an unresolved appeal",
						submission.SubmissionID,
						answer.Question,
					)
				}
			}
		}
	}
	return nil
}

// advanceChallenge moves the challenge one phase forward after its
// precondition holds, shifting the remaining schedule. Entering Completed
// computes the winners.
func advanceChallenge(
	challenge *Challenge,
	target string,
	now time.Time,
) error {
	if err := checkAdvance(challenge, target, now); err != nil {
		return err
	}
	shiftPhases(challenge, target, now)
	challenge.CurrentPhase = target
	if target == PhaseCompleted {
		challenge.Winners = ComputeWinners(challenge)
	}
	return nil
}
