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
	"sort"
)

// ReviewScore is the weighted sum over a review's answers. The weight comes
// from the scorecard question matching the answer's order; an appeal's final
// score, once present, supersedes the raw score.
func ReviewScore(scorecard *Scorecard, review *Review) float64 {
	if scorecard == nil {
		return 0
	}
	weights := make(map[int]float64, len(scorecard.Questions))
	for _, q := range scorecard.Questions {
		weights[q.Order] = q.Weight
	}
	var score float64
	for _, answer := range review.Review {
		effective := answer.Score
		if answer.Appeal != nil && answer.Appeal.FinalScore != nil {
			effective = *answer.Appeal.FinalScore
		}
		score += weights[answer.Question] * effective
	}
	return score
}

// SubmissionScore sums the scores of all reviews of a submission. Multiple
// reviewers' scores are additive, not averaged. A submission with no reviews
// scores zero.
func SubmissionScore(scorecard *Scorecard, submission *Submission) float64 {
	var score float64
	for i := range submission.Reviews {
		score += ReviewScore(scorecard, &submission.Reviews[i])
	}
	return score
}

// ComputeWinners ranks submissions by score descending, breaking ties by
// earlier submission timestamp, and awards the top-N prizes from
// prizes.winners. A challenge with no submissions yields an empty list.
func ComputeWinners(challenge *Challenge) []Winner {
	type candidate struct {
		submission *Submission
		score      float64
	}
	candidates := make([]candidate, 0, len(challenge.Submissions))
	for i := range challenge.Submissions {
		submission := &challenge.Submissions[i]
		candidates = append(candidates, candidate{
			submission: submission,
			score:      SubmissionScore(challenge.Scorecard, submission),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].submission.Timestamp.Before(
			candidates[j].submission.Timestamp,
		)
	})
	winners := make([]Winner, 0, len(challenge.Prizes.Winners))
	for rank, prize := range challenge.Prizes.Winners {
		if rank >= len(candidates) {
			break
		}
		winners = append(winners, Winner{
			MemberID:   candidates[rank].submission.MemberID,
			Score:      candidates[rank].score,
			Prize:      prize,
			Submission: candidates[rank].submission,
		})
	}
	return winners
}

// ChallengeExpense totals what a completed challenge pays out: the copilot
// prize, one reviewer prize per assigned reviewer, and every winner prize.
func ChallengeExpense(
	prizes Prizes,
	reviewerCount int,
	winners []Winner,
) float64 {
	expense := prizes.Copilot
	expense += prizes.Reviewer * float64(reviewerCount)
	for _, winner := range winners {
		expense += winner.Prize
	}
	return expense
}
