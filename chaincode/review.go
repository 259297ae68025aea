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

// ReviewChaincode runs on the review channel and owns the full challenge
// lifecycle: projects with embedded challenges, registration, submissions,
// reviews, appeals, and phase advancement with winner selection.
type ReviewChaincode struct {
	logger *slog.Logger
	table  DispatchTable
}

func NewReviewChaincode(logger *slog.Logger) *ReviewChaincode {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	c := &ReviewChaincode{
		logger: logger.With("component", "chaincode.review"),
	}
	c.table = DispatchTable{
		"createProject":            c.createProject,
		"updateProject":            c.updateProject,
		"getProject":               c.getProject,
		"listProjects":             c.listProjects,
		"createChallenge":          c.createChallenge,
		"updateChallenge":          c.updateChallenge,
		"getChallenge":             c.getChallenge,
		"listChallenges":           c.listChallenges,
		"getOnGoingChallenges":     c.getOnGoingChallenges,
		"registerChallenge":        c.registerChallenge,
		"unregisterChallenge":      c.unregisterChallenge,
		"registerReviewer":         c.registerReviewer,
		"unregisterReviewer":       c.unregisterReviewer,
		"createChallengeScorecard": c.createChallengeScorecard,
		"createChallengeReview":    c.createChallengeReview,
		"createAppeal":             c.createAppeal,
		"createAppealResponse":     c.createAppealResponse,
		"uploadSubmission":         c.uploadSubmission,
		"getSubmission":            c.getSubmission,
		"advancePhase":             c.advancePhase,
	}
	return c
}

func (c *ReviewChaincode) Init(stub Stub) error {
	c.logger.Info("review chaincode instantiated")
	return nil
}

func (c *ReviewChaincode) Invoke(
	stub Stub,
	fcn string,
	args []string,
) ([]byte, error) {
	c.logger.Debug("invoke", "fcn", fcn, "tx_id", stub.TxID())
	return c.table.Invoke(stub, fcn, args)
}

func (c *ReviewChaincode) createProject(
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
	project := &Project{}
	if err := unmarshalArg(args[0], project); err != nil {
		return nil, err
	}
	if project.ProjectID == "" {
		return nil, fault.Validation("projectId is required")
	}
	repo := NewRepository(stub)
	existing, err := repo.GetProject(project.ProjectID)
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
		project.Challenges = []Challenge{}
	}
	if err := repo.SaveProject(project); err != nil {
		return nil, err
	}
	return project, nil
}

func (c *ReviewChaincode) updateProject(
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
	payload := &Project{}
	if err := unmarshalArg(args[0], payload); err != nil {
		return nil, err
	}
	if payload.ProjectID == "" {
		return nil, fault.Validation("projectId is required")
	}
	repo := NewRepository(stub)
	project, err := repo.GetProject(payload.ProjectID)
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
	mergeProject(project, payload)
	project.UpdatedBy = userID
	if err := repo.SaveProject(project); err != nil {
		return nil, err
	}
	return project, nil
}

// mergeProject applies the partial-update semantics of updateProject: only
// fields present in the payload replace the stored values.
func mergeProject(project, payload *Project) {
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
}

func (c *ReviewChaincode) getProject(stub Stub, args []string) (any, error) {
	if _, err := identity.Authorize(
		stub.Creator(),
		[]string{identity.RoleManager, identity.RoleClient},
	); err != nil {
		return nil, err
	}
	if err := requireArgs(args, 1, "projectId"); err != nil {
		return nil, err
	}
	project, err := NewRepository(stub).GetProject(args[0])
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fault.NotFound("cannot find project with id: %s", args[0])
	}
	return project, nil
}

func (c *ReviewChaincode) listProjects(stub Stub, args []string) (any, error) {
	if _, err := identity.Authorize(
		stub.Creator(),
		[]string{identity.RoleClient, identity.RoleManager},
	); err != nil {
		return nil, err
	}
	return NewRepository(stub).ListProjects(nil)
}

func (c *ReviewChaincode) createChallenge(
	stub Stub,
	args []string,
) (any, error) {
	roles, err := identity.Authorize(
		stub.Creator(),
		[]string{identity.RoleCopilot, identity.RoleManager},
	)
	if err != nil {
		return nil, err
	}
	if err := requireArgs(args, 1, "challenge payload"); err != nil {
		return nil, err
	}
	challenge := &Challenge{}
	if err := unmarshalArg(args[0], challenge); err != nil {
		return nil, err
	}
	if challenge.ProjectID == "" {
		return nil, fault.Validation("projectId is required")
	}
	if challenge.ChallengeID == "" {
		return nil, fault.Validation("challengeId is required")
	}
	if err := ValidatePhases(challenge.Phases); err != nil {
		return nil, err
	}
	repo := NewRepository(stub)
	existing, err := repo.GetChallengeIndex(challenge.ChallengeID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fault.Conflict(
			"challenge with id %s already exists",
			challenge.ChallengeID,
		)
	}
	project, err := repo.GetProject(challenge.ProjectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fault.NotFound(
			"cannot find project with id: %s",
			challenge.ProjectID,
		)
	}
	if err := checkCopilotOfProject(stub, roles, project); err != nil {
		return nil, err
	}
	if project.Challenge(challenge.ChallengeID) != nil {
		return nil, fault.Conflict(
			"the challenge with id: %s already created in this project",
			challenge.ChallengeID,
		)
	}
	challenge.CurrentPhase = PhasePending
	challenge.Members = []Member{}
	if err := repo.SaveChallengeIndex(challenge); err != nil {
		return nil, err
	}
	project.Challenges = append(project.Challenges, *challenge)
	if err := repo.SaveProject(project); err != nil {
		return nil, err
	}
	return challenge, nil
}

func (c *ReviewChaincode) updateChallenge(
	stub Stub,
	args []string,
) (any, error) {
	roles, err := identity.Authorize(
		stub.Creator(),
		[]string{identity.RoleCopilot, identity.RoleManager},
	)
	if err != nil {
		return nil, err
	}
	if err := requireArgs(args, 1, "payload"); err != nil {
		return nil, err
	}
	payload := &Challenge{}
	if err := unmarshalArg(args[0], payload); err != nil {
		return nil, err
	}
	if payload.ChallengeID == "" {
		return nil, fault.Validation("challengeId is required")
	}
	repo := NewRepository(stub)
	project, challenge, err := repo.GetProjectChallenge(payload.ChallengeID)
	if err != nil {
		return nil, err
	}
	if err := checkCopilotOfProject(stub, roles, project); err != nil {
		return nil, err
	}
	// Phase, schedule, and winner mutations go through advancePhase only.
	if payload.Name != "" {
		challenge.Name = payload.Name
	}
	if payload.Description != "" {
		challenge.Description = payload.Description
	}
	if len(payload.Prizes.Winners) > 0 || payload.Prizes.Reviewer != 0 ||
		payload.Prizes.Copilot != 0 {
		challenge.Prizes = payload.Prizes
	}
	challenge.UpdatedBy = payload.UpdatedBy
	if err := repo.SaveChallengeIndex(challenge); err != nil {
		return nil, err
	}
	if err := repo.SaveProject(project); err != nil {
		return nil, err
	}
	return challenge, nil
}

func (c *ReviewChaincode) getChallenge(stub Stub, args []string) (any, error) {
	if err := requireArgs(args, 1, "challengeId"); err != nil {
		return nil, err
	}
	_, challenge, err := NewRepository(stub).GetProjectChallenge(args[0])
	if err != nil {
		return nil, err
	}
	return challenge, nil
}

func (c *ReviewChaincode) listChallenges(
	stub Stub,
	args []string,
) (any, error) {
	return NewRepository(stub).ListChallenges()
}

func (c *ReviewChaincode) getOnGoingChallenges(
	stub Stub,
	args []string,
) (any, error) {
	if _, err := identity.Authorize(
		stub.Creator(),
		[]string{identity.RoleClient, identity.RoleManager},
	); err != nil {
		return nil, err
	}
	projects, err := NewRepository(stub).ListProjects(nil)
	if err != nil {
		return nil, err
	}
	challenges := []Challenge{}
	for _, project := range projects {
		for _, challenge := range project.Challenges {
			if challenge.CurrentPhase != PhaseCompleted {
				challenges = append(challenges, challenge)
			}
		}
	}
	return challenges, nil
}

// memberPayload is the registration payload. The member id always comes from
// the caller's identity, never from the payload.
type memberPayload struct {
	MemberID    string `json:"memberId"`
	ChallengeID string `json:"challengeId"`
	ProjectID   string `json:"projectId,omitempty"`
}

func (c *ReviewChaincode) registerChallenge(
	stub Stub,
	args []string,
) (any, error) {
	return c.updateMembership(stub, args, MemberRegistered)
}

func (c *ReviewChaincode) unregisterChallenge(
	stub Stub,
	args []string,
) (any, error) {
	return c.updateMembership(stub, args, MemberUnregistered)
}

func (c *ReviewChaincode) updateMembership(
	stub Stub,
	args []string,
	status int,
) (any, error) {
	if _, err := identity.Authorize(
		stub.Creator(),
		[]string{identity.RoleMember},
	); err != nil {
		return nil, err
	}
	if err := requireArgs(args, 1, "payload"); err != nil {
		return nil, err
	}
	payload := &memberPayload{}
	if err := unmarshalArg(args[0], payload); err != nil {
		return nil, err
	}
	userID, err := callerUserID(stub)
	if err != nil {
		return nil, err
	}
	payload.MemberID = userID
	if payload.ChallengeID == "" {
		return nil, fault.Validation("challengeId is required")
	}
	repo := NewRepository(stub)
	project, challenge, err := repo.GetProjectChallenge(payload.ChallengeID)
	if err != nil {
		return nil, err
	}
	if challenge.CurrentPhase != PhaseRegister {
		verb := "register"
		if status == MemberUnregistered {
			verb = "unregister"
		}
		return nil, fault.Forbidden(
			"you can not %s a challenge because current phase of the challenge is not %s",
			verb,
			PhaseRegister,
		)
	}
	if status == MemberUnregistered &&
		challenge.Submission(payload.MemberID) != nil {
		return nil, fault.Forbidden(
			"you cannot unregister this challenge, because you have provided a submission",
		)
	}
	if member := challenge.Member(payload.MemberID); member != nil {
		member.Status = status
	} else {
		challenge.Members = append(challenge.Members, Member{
			MemberID: payload.MemberID,
			Status:   status,
		})
	}
	if err := repo.SaveProject(project); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *ReviewChaincode) registerReviewer(
	stub Stub,
	args []string,
) (any, error) {
	roles, err := identity.Authorize(
		stub.Creator(),
		[]string{identity.RoleCopilot, identity.RoleManager},
	)
	if err != nil {
		return nil, err
	}
	if err := requireArgs(args, 1, "payload"); err != nil {
		return nil, err
	}
	payload := &memberPayload{}
	if err := unmarshalArg(args[0], payload); err != nil {
		return nil, err
	}
	repo := NewRepository(stub)
	project, challenge, err := repo.GetProjectChallenge(payload.ChallengeID)
	if err != nil {
		return nil, err
	}
	if err := checkCopilotOfProject(stub, roles, project); err != nil {
		return nil, err
	}
	if challenge.Reviewer(payload.MemberID) {
		return nil, fault.Conflict(
			"the reviewer already registered for this challenge",
		)
	}
	challenge.Reviewers = append(challenge.Reviewers, Reviewer{
		MemberID: payload.MemberID,
	})
	if err := repo.SaveChallengeIndex(challenge); err != nil {
		return nil, err
	}
	if err := repo.SaveProject(project); err != nil {
		return nil, err
	}
	return challenge, nil
}

func (c *ReviewChaincode) unregisterReviewer(
	stub Stub,
	args []string,
) (any, error) {
	roles, err := identity.Authorize(
		stub.Creator(),
		[]string{identity.RoleCopilot, identity.RoleManager},
	)
	if err != nil {
		return nil, err
	}
	if err := requireArgs(args, 1, "payload"); err != nil {
		return nil, err
	}
	payload := &memberPayload{}
	if err := unmarshalArg(args[0], payload); err != nil {
		return nil, err
	}
	repo := NewRepository(stub)
	project, challenge, err := repo.GetProjectChallenge(payload.ChallengeID)
	if err != nil {
		return nil, err
	}
	if err := checkCopilotOfProject(stub, roles, project); err != nil {
		return nil, err
	}
	reviewers := challenge.Reviewers[:0]
	for _, reviewer := range challenge.Reviewers {
		if reviewer.MemberID != payload.MemberID {
			reviewers = append(reviewers, reviewer)
		}
	}
	challenge.Reviewers = reviewers
	if err := repo.SaveChallengeIndex(challenge); err != nil {
		return nil, err
	}
	if err := repo.SaveProject(project); err != nil {
		return nil, err
	}
	return challenge, nil
}

func (c *ReviewChaincode) createChallengeScorecard(
	stub Stub,
	args []string,
) (any, error) {
	roles, err := identity.Authorize(
		stub.Creator(),
		[]string{identity.RoleCopilot, identity.RoleManager},
	)
	if err != nil {
		return nil, err
	}
	if err := requireArgs(args, 2, "challengeId, scorecard"); err != nil {
		return nil, err
	}
	scorecard := &Scorecard{}
	if err := unmarshalArg(args[1], scorecard); err != nil {
		return nil, err
	}
	if err := validateScorecard(scorecard); err != nil {
		return nil, err
	}
	repo := NewRepository(stub)
	project, challenge, err := repo.GetProjectChallenge(args[0])
	if err != nil {
		return nil, err
	}
	if err := checkCopilotOfProject(stub, roles, project); err != nil {
		return nil, err
	}
	// The scorecard is read-only once any review references it.
	for _, submission := range challenge.Submissions {
		if len(submission.Reviews) > 0 {
			return nil, fault.Forbidden(
				"the scorecard cannot change after reviews were submitted",
			)
		}
	}
	challenge.Scorecard = scorecard
	if err := repo.SaveProject(project); err != nil {
		return nil, err
	}
	return challenge, nil
}

func validateScorecard(scorecard *Scorecard) error {
	if len(scorecard.Questions) == 0 {
		return fault.Validation("scorecard must have at least one question")
	}
	seen := make(map[int]bool, len(scorecard.Questions))
	for _, question := range scorecard.Questions {
		if question.Weight < 0 || question.Weight > 1 {
			return fault.Validation(
				"question %d weight must be within [0,1]",
				question.Order,
			)
		}
		if seen[question.Order] {
			return fault.Validation(
				"duplicate question order: %d",
				question.Order,
			)
		}
		seen[question.Order] = true
	}
	return nil
}

// reviewPayload is a review submission: the member whose submission is
// reviewed plus the answers.
type reviewPayload struct {
	ReviewerID string   `json:"reviewerId"`
	MemberID   string   `json:"memberId"`
	Review     []Answer `json:"review"`
}

func (c *ReviewChaincode) createChallengeReview(
	stub Stub,
	args []string,
) (any, error) {
	if _, err := identity.Authorize(
		stub.Creator(),
		[]string{identity.RoleReviewer},
	); err != nil {
		return nil, err
	}
	if err := requireArgs(args, 2, "challengeId, review"); err != nil {
		return nil, err
	}
	payload := &reviewPayload{}
	if err := unmarshalArg(args[1], payload); err != nil {
		return nil, err
	}
	repo := NewRepository(stub)
	project, challenge, err := repo.GetProjectChallenge(args[0])
	if err != nil {
		return nil, err
	}
	if challenge.Scorecard == nil {
		return nil, fault.Validation(
			"there is no scorecard in the current challenge yet",
		)
	}
	if err := validateAnswers(challenge.Scorecard, payload.Review); err != nil {
		return nil, err
	}
	if !challenge.Reviewer(payload.ReviewerID) {
		return nil, fault.Forbidden("reviewer is not in the challenge")
	}
	submission := challenge.Submission(payload.MemberID)
	if submission == nil {
		return nil, fault.NotFound(
			"the member of memberId: %s does not have any submission in this challenge",
			payload.MemberID,
		)
	}
	// Replace any prior review by the same reviewer.
	reviews := submission.Reviews[:0]
	for _, review := range submission.Reviews {
		if review.ReviewerID != payload.ReviewerID {
			reviews = append(reviews, review)
		}
	}
	submission.Reviews = append(reviews, Review{
		ReviewerID: payload.ReviewerID,
		Review:     payload.Review,
	})
	if err := repo.SaveProject(project); err != nil {
		return nil, err
	}
	return submission, nil
}

// validateAnswers checks both directions: every scorecard question answered
// exactly once, and no answer referencing an unknown question order.
func validateAnswers(scorecard *Scorecard, answers []Answer) error {
	answered := make(map[int]bool, len(scorecard.Questions))
	for _, question := range scorecard.Questions {
		answered[question.Order] = false
	}
	for _, answer := range answers {
		done, known := answered[answer.Question]
		if !known {
			return fault.Validation(
				"cannot find question: %d in scorecard",
				answer.Question,
			)
		}
		if done {
			return fault.Validation(
				"question %d answered more than once",
				answer.Question,
			)
		}
		answered[answer.Question] = true
	}
	for order, done := range answered {
		if !done {
			return fault.Validation(
				"the question with order: %d does not exist in the review",
				order,
			)
		}
	}
	return nil
}

// appealPayload attaches a dispute to one reviewed question.
type appealPayload struct {
	ReviewerID string `json:"reviewerId"`
	MemberID   string `json:"memberId"`
	Appeal     struct {
		Question int    `json:"question"`
		Text     string `json:"text"`
	} `json:"appeal"`
}

func (c *ReviewChaincode) createAppeal(stub Stub, args []string) (any, error) {
	if _, err := identity.Authorize(
		stub.Creator(),
		[]string{identity.RoleMember},
	); err != nil {
		return nil, err
	}
	if err := requireArgs(args, 2, "challengeId, appeal"); err != nil {
		return nil, err
	}
	payload := &appealPayload{}
	if err := unmarshalArg(args[1], payload); err != nil {
		return nil, err
	}
	repo := NewRepository(stub)
	project, challenge, err := repo.GetProjectChallenge(args[0])
	if err != nil {
		return nil, err
	}
	if challenge.CurrentPhase != PhaseAppeal {
		return nil, fault.Forbidden(
			"you cannot post an appeal because this is not in Appeal phase",
		)
	}
	answer, err := findAnswer(
		challenge,
		payload.ReviewerID,
		payload.MemberID,
		payload.Appeal.Question,
	)
	if err != nil {
		return nil, err
	}
	if answer.Appeal == nil {
		answer.Appeal = &Appeal{}
	}
	answer.Appeal.Appeal = payload.Appeal.Text
	if err := repo.SaveProject(project); err != nil {
		return nil, err
	}
	return answer, nil
}

// appealResponsePayload resolves an appeal with a response text and the
// final score that supersedes the original one.
type appealResponsePayload struct {
	ReviewerID     string `json:"reviewerId"`
	MemberID       string `json:"memberId"`
	AppealResponse struct {
		Question   int      `json:"question"`
		Text       string   `json:"text"`
		FinalScore *float64 `json:"finalScore"`
	} `json:"appealResponse"`
}

func (c *ReviewChaincode) createAppealResponse(
	stub Stub,
	args []string,
) (any, error) {
	roles, err := identity.Authorize(
		stub.Creator(),
		[]string{identity.RoleReviewer},
	)
	if err != nil {
		return nil, err
	}
	if err := requireArgs(args, 2, "challengeId, appealResponse"); err != nil {
		return nil, err
	}
	payload := &appealResponsePayload{}
	if err := unmarshalArg(args[1], payload); err != nil {
		return nil, err
	}
	repo := NewRepository(stub)
	project, challenge, err := repo.GetProjectChallenge(args[0])
	if err != nil {
		return nil, err
	}
	if challenge.CurrentPhase != PhaseAppealResponse {
		return nil, fault.Forbidden(
			"you cannot give an appeal response because this is not the Appeal Response phase",
		)
	}
	// Only the reviewer who authored the review may respond.
	if identity.SoleRole(roles, identity.RoleReviewer) &&
		stub.Creator().UserID() != payload.ReviewerID {
		return nil, fault.Forbidden(
			"only the original reviewer can respond to this appeal",
		)
	}
	answer, err := findAnswer(
		challenge,
		payload.ReviewerID,
		payload.MemberID,
		payload.AppealResponse.Question,
	)
	if err != nil {
		return nil, err
	}
	if answer.Appeal == nil || answer.Appeal.Appeal == "" {
		return nil, fault.NotFound(
			"there is no such appeal in question: %d",
			payload.AppealResponse.Question,
		)
	}
	if payload.AppealResponse.FinalScore == nil {
		return nil, fault.Validation("finalScore is required")
	}
	answer.Appeal.AppealResponse = payload.AppealResponse.Text
	answer.Appeal.FinalScore = payload.AppealResponse.FinalScore
	if err := repo.SaveProject(project); err != nil {
		return nil, err
	}
	return answer, nil
}

// findAnswer locates the reviewed question identified by the
// {reviewerId, memberId, questionOrder} triple.
func findAnswer(
	challenge *Challenge,
	reviewerID string,
	memberID string,
	questionOrder int,
) (*Answer, error) {
	submission := challenge.Submission(memberID)
	if submission == nil {
		return nil, fault.NotFound(
			"the member of memberId: %s does not have any submission in this challenge",
			memberID,
		)
	}
	review := submission.Review(reviewerID)
	if review == nil {
		return nil, fault.NotFound(
			"there is no such review for reviewer: %s",
			reviewerID,
		)
	}
	for i := range review.Review {
		if review.Review[i].Question == questionOrder {
			return &review.Review[i], nil
		}
	}
	return nil, fault.NotFound("cannot find the question in the review")
}

// submissionPayload wraps a submission upload with its target challenge.
type submissionPayload struct {
	ChallengeID string `json:"challengeId"`
	Submission
}

func (c *ReviewChaincode) uploadSubmission(
	stub Stub,
	args []string,
) (any, error) {
	if _, err := identity.Authorize(
		stub.Creator(),
		[]string{identity.RoleMember, identity.RoleManager},
	); err != nil {
		return nil, err
	}
	if err := requireArgs(args, 1, "payload"); err != nil {
		return nil, err
	}
	payload := &submissionPayload{}
	if err := unmarshalArg(args[0], payload); err != nil {
		return nil, err
	}
	submission := payload.Submission
	if submission.SubmissionID == "" {
		return nil, fault.Validation("submissionId is required")
	}
	if submission.Timestamp.IsZero() {
		submission.Timestamp = stub.TxTimestamp()
	}
	if submission.Reviews == nil {
		submission.Reviews = []Review{}
	}
	repo := NewRepository(stub)
	project, challenge, err := repo.GetProjectChallenge(payload.ChallengeID)
	if err != nil {
		return nil, err
	}
	if challenge.CurrentPhase != PhaseSubmission {
		return nil, fault.Forbidden(
			"you cannot upload a submission because the submission/register phases have ended",
		)
	}
	member := challenge.Member(submission.MemberID)
	if member == nil || member.Status != MemberRegistered {
		return nil, fault.Forbidden(
			"access denied: member: %s is not registered in this challenge",
			submission.MemberID,
		)
	}
	// One live submission per member: uploading again replaces the prior one.
	if existing := challenge.Submission(submission.MemberID); existing != nil {
		*existing = submission
	} else {
		challenge.Submissions = append(challenge.Submissions, submission)
	}
	if err := repo.SaveProject(project); err != nil {
		return nil, err
	}
	return submission, nil
}

// submissionRequest identifies a submission for download.
type submissionRequest struct {
	ChallengeID  string `json:"challengeId"`
	SubmissionID string `json:"submissionId"`
	MemberID     string `json:"memberId"`
}

func (c *ReviewChaincode) getSubmission(stub Stub, args []string) (any, error) {
	roles, err := identity.Authorize(
		stub.Creator(),
		[]string{
			identity.RoleMember,
			identity.RoleManager,
			identity.RoleCopilot,
		},
	)
	if err != nil {
		return nil, err
	}
	if err := requireArgs(args, 1, "request"); err != nil {
		return nil, err
	}
	request := &submissionRequest{}
	if err := unmarshalArg(args[0], request); err != nil {
		return nil, err
	}
	userID, err := callerUserID(stub)
	if err != nil {
		return nil, err
	}
	repo := NewRepository(stub)
	project, challenge, err := repo.GetProjectChallenge(request.ChallengeID)
	if err != nil {
		return nil, err
	}
	var submission *Submission
	for i := range challenge.Submissions {
		if challenge.Submissions[i].SubmissionID == request.SubmissionID {
			submission = &challenge.Submissions[i]
			break
		}
	}
	if submission == nil {
		return nil, fault.NotFound(
			"cannot find submission: %s in challenge: %s",
			request.SubmissionID,
			request.ChallengeID,
		)
	}
	permitted := false
	if identity.HasRole(roles, identity.RoleManager) &&
		project.CreatedBy == userID {
		permitted = true
	}
	if identity.HasRole(roles, identity.RoleCopilot) &&
		project.CopilotID == userID {
		permitted = true
	}
	if identity.HasRole(roles, identity.RoleMember) {
		member := challenge.Member(userID)
		if member != nil && member.Status == MemberRegistered &&
			challenge.Submission(userID) != nil {
			permitted = true
		}
	}
	if !permitted {
		return nil, fault.Forbidden(
			"you cannot download the submission: you must be a manager, the copilot associated with the project, or a registered member that submitted on this challenge",
		)
	}
	return submission, nil
}

// advancePayload names the challenge and the phase it should advance into.
type advancePayload struct {
	ChallengeID string `json:"challengeId"`
	Phase       string `json:"phase"`
}

func (c *ReviewChaincode) advancePhase(stub Stub, args []string) (any, error) {
	roles, err := identity.Authorize(
		stub.Creator(),
		[]string{identity.RoleCopilot, identity.RoleManager},
	)
	if err != nil {
		return nil, err
	}
	if err := requireArgs(args, 1, "payload"); err != nil {
		return nil, err
	}
	payload := &advancePayload{}
	if err := unmarshalArg(args[0], payload); err != nil {
		return nil, err
	}
	if payload.ChallengeID == "" {
		return nil, fault.Validation("challengeId is required")
	}
	if payload.Phase == "" {
		return nil, fault.Validation("phase is required")
	}
	repo := NewRepository(stub)
	project, challenge, err := repo.GetProjectChallenge(payload.ChallengeID)
	if err != nil {
		return nil, err
	}
	if err := checkCopilotOfProject(stub, roles, project); err != nil {
		return nil, err
	}
	if err := advanceChallenge(
		challenge,
		payload.Phase,
		stub.TxTimestamp(),
	); err != nil {
		return nil, err
	}
	if err := repo.SaveChallengeIndex(challenge); err != nil {
		return nil, err
	}
	if err := repo.SaveProject(project); err != nil {
		return nil, err
	}
	c.logger.Info(
		"challenge advanced",
		"challenge_id", challenge.ChallengeID,
		"phase", challenge.CurrentPhase,
	)
	return challenge, nil
}
