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
	"testing"
	"time"

	"github.com/crucible-ledger/crucible/fault"
	"github.com/crucible-ledger/crucible/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reviewHarness shares one world state across callers and lets tests move
// the proposal timestamp forward between invocations.
type reviewHarness struct {
	t     *testing.T
	cc    *ReviewChaincode
	state *testStub
}

func newReviewHarness(t *testing.T) *reviewHarness {
	return &reviewHarness{
		t:     t,
		cc:    NewReviewChaincode(nil),
		state: newTestStub(managerIdentity("mgr")),
	}
}

func (h *reviewHarness) invoke(
	caller identity.Identity,
	at time.Time,
	fcn string,
	args ...string,
) ([]byte, error) {
	stub := h.state.as(caller)
	if !at.IsZero() {
		stub.now = at
	}
	return h.cc.Invoke(stub, fcn, args)
}

func (h *reviewHarness) mustInvoke(
	caller identity.Identity,
	at time.Time,
	fcn string,
	args ...string,
) []byte {
	h.t.Helper()
	payload, err := h.invoke(caller, at, fcn, args...)
	require.NoError(h.t, err, "invoke %s", fcn)
	return payload
}

func (h *reviewHarness) getChallenge(challengeID string) *Challenge {
	h.t.Helper()
	payload := h.mustInvoke(
		managerIdentity("mgr"),
		time.Time{},
		"getChallenge",
		challengeID,
	)
	challenge := &Challenge{}
	decodeInto(h.t, payload, challenge)
	return challenge
}

func at(hour int) time.Time {
	return time.Date(2020, 6, 1, hour, 0, 0, 0, time.UTC)
}

// setupChallenge creates a project owned by mgr with copilot cop, holding
// one challenge whose phases start at 10:00.
func setupChallenge(h *reviewHarness) {
	h.t.Helper()
	mgr := managerIdentity("mgr")
	cop := copilotIdentity("cop")
	h.mustInvoke(mgr, at(11), "createProject", mustJSON(h.t, Project{
		ProjectID: "p1",
		Name:      "Website Redesign",
		CopilotID: "cop",
		CreatedBy: "mgr",
	}))
	h.mustInvoke(cop, at(11), "createChallenge", mustJSON(h.t, Challenge{
		ChallengeID: "c1",
		ProjectID:   "p1",
		Name:        "Landing Page",
		Phases:      testPhases(at(10)),
		Prizes: Prizes{
			Winners:  []float64{500, 250},
			Reviewer: 100,
			Copilot:  300,
		},
	}))
}

func TestReviewChaincodeFullLifecycle(t *testing.T) {
	h := newReviewHarness(t)
	mgr := managerIdentity("mgr")
	cop := copilotIdentity("cop")
	setupChallenge(h)

	created := h.getChallenge("c1")
	assert.Equal(t, PhasePending, created.CurrentPhase)
	assert.NotNil(t, created.Members)

	// Registration opens.
	h.mustInvoke(cop, at(12), "advancePhase", mustJSON(t, advancePayload{
		ChallengeID: "c1",
		Phase:       PhaseRegister,
	}))
	for _, member := range []string{"m1", "m2"} {
		h.mustInvoke(
			memberIdentity(member),
			at(12),
			"registerChallenge",
			mustJSON(t, memberPayload{ChallengeID: "c1"}),
		)
	}

	// Scorecard and reviewer assignment before submissions arrive.
	h.mustInvoke(cop, at(12), "createChallengeScorecard", "c1", mustJSON(t, Scorecard{
		Name: "default",
		Questions: []ScorecardQuestion{
			{Text: "correctness", Weight: 0.6, Order: 1},
			{Text: "style", Weight: 0.4, Order: 2},
		},
	}))
	h.mustInvoke(cop, at(12), "registerReviewer", mustJSON(t, memberPayload{
		MemberID:    "r1",
		ChallengeID: "c1",
	}))

	// Submission phase.
	h.mustInvoke(cop, at(13), "advancePhase", mustJSON(t, advancePayload{
		ChallengeID: "c1",
		Phase:       PhaseSubmission,
	}))
	h.mustInvoke(memberIdentity("m1"), at(13), "uploadSubmission",
		mustJSON(t, submissionPayload{
			ChallengeID: "c1",
			Submission: Submission{
				SubmissionID: "s1",
				MemberID:     "m1",
				FileName:     "s1.zip",
				IPFSHash:     "QmS1",
			},
		}))
	h.mustInvoke(memberIdentity("m2"), at(13), "uploadSubmission",
		mustJSON(t, submissionPayload{
			ChallengeID: "c1",
			Submission: Submission{
				SubmissionID: "s2",
				MemberID:     "m2",
				FileName:     "s2.zip",
				IPFSHash:     "QmS2",
			},
		}))
	// Missing timestamps come from the proposal time.
	challenge := h.getChallenge("c1")
	require.Len(t, challenge.Submissions, 2)
	assert.Equal(t, at(13), challenge.Submissions[0].Timestamp)

	// Review phase.
	h.mustInvoke(cop, at(14), "advancePhase", mustJSON(t, advancePayload{
		ChallengeID: "c1",
		Phase:       PhaseReview,
	}))
	h.mustInvoke(reviewerIdentity("r1"), at(14), "createChallengeReview",
		"c1", mustJSON(t, reviewPayload{
			ReviewerID: "r1",
			MemberID:   "m1",
			Review: []Answer{
				{Question: 1, Score: 90},
				{Question: 2, Score: 90},
			},
		}))
	h.mustInvoke(reviewerIdentity("r1"), at(14), "createChallengeReview",
		"c1", mustJSON(t, reviewPayload{
			ReviewerID: "r1",
			MemberID:   "m2",
			Review: []Answer{
				{Question: 1, Score: 50},
				{Question: 2, Score: 60},
			},
		}))

	// Appeal phase: m2 disputes question 1.
	h.mustInvoke(cop, at(15), "advancePhase", mustJSON(t, advancePayload{
		ChallengeID: "c1",
		Phase:       PhaseAppeal,
	}))
	appeal := appealPayload{ReviewerID: "r1", MemberID: "m2"}
	appeal.Appeal.Question = 1
	appeal.Appeal.Text = "the scoring missed the bonus requirement"
	h.mustInvoke(memberIdentity("m2"), at(15), "createAppeal",
		"c1", mustJSON(t, appeal))

	// Appeal response with a final score.
	h.mustInvoke(cop, at(16), "advancePhase", mustJSON(t, advancePayload{
		ChallengeID: "c1",
		Phase:       PhaseAppealResponse,
	}))
	final := 80.0
	response := appealResponsePayload{ReviewerID: "r1", MemberID: "m2"}
	response.AppealResponse.Question = 1
	response.AppealResponse.Text = "bonus requirement confirmed"
	response.AppealResponse.FinalScore = &final
	h.mustInvoke(reviewerIdentity("r1"), at(16), "createAppealResponse",
		"c1", mustJSON(t, response))

	// Completion computes winners: m1 scores 90, m2 scores 0.6*80+0.4*60=72.
	h.mustInvoke(cop, at(17), "advancePhase", mustJSON(t, advancePayload{
		ChallengeID: "c1",
		Phase:       PhaseCompleted,
	}))
	completed := h.getChallenge("c1")
	assert.Equal(t, PhaseCompleted, completed.CurrentPhase)
	require.Len(t, completed.Winners, 2)
	assert.Equal(t, "m1", completed.Winners[0].MemberID)
	assert.Equal(t, 500.0, completed.Winners[0].Prize)
	assert.InDelta(t, 90.0, completed.Winners[0].Score, 1e-9)
	assert.Equal(t, "m2", completed.Winners[1].MemberID)
	assert.Equal(t, 250.0, completed.Winners[1].Prize)
	assert.InDelta(t, 72.0, completed.Winners[1].Score, 1e-9)

	// Completed challenges no longer show as ongoing.
	payload := h.mustInvoke(mgr, at(17), "getOnGoingChallenges")
	var ongoing []Challenge
	decodeInto(t, payload, &ongoing)
	assert.Empty(t, ongoing)
}

func TestCreateChallengeRejectsBrokenSchedule(t *testing.T) {
	h := newReviewHarness(t)
	h.mustInvoke(managerIdentity("mgr"), at(11), "createProject",
		mustJSON(t, Project{ProjectID: "p1", Name: "P", CreatedBy: "mgr"}))
	phases := testPhases(at(10))
	phases[1].StartDate = phases[1].StartDate.Add(time.Minute)
	_, err := h.invoke(managerIdentity("mgr"), at(11), "createChallenge",
		mustJSON(t, Challenge{
			ChallengeID: "c1",
			ProjectID:   "p1",
			Phases:      phases,
		}))
	require.Error(t, err)
	assert.Equal(t, fault.KindValidation, fault.KindOf(err))
}

func TestCreateChallengeDuplicateConflict(t *testing.T) {
	h := newReviewHarness(t)
	setupChallenge(h)
	_, err := h.invoke(copilotIdentity("cop"), at(11), "createChallenge",
		mustJSON(t, Challenge{
			ChallengeID: "c1",
			ProjectID:   "p1",
			Phases:      testPhases(at(10)),
		}))
	require.Error(t, err)
	assert.Equal(t, fault.KindConflict, fault.KindOf(err))
}

func TestCopilotOfAnotherProjectCannotTouchChallenge(t *testing.T) {
	h := newReviewHarness(t)
	setupChallenge(h)
	_, err := h.invoke(copilotIdentity("other-cop"), at(12), "advancePhase",
		mustJSON(t, advancePayload{ChallengeID: "c1", Phase: PhaseRegister}))
	require.Error(t, err)
	assert.Equal(t, fault.KindForbidden, fault.KindOf(err))
}

func TestRegisterOutsideRegisterPhase(t *testing.T) {
	h := newReviewHarness(t)
	setupChallenge(h)
	_, err := h.invoke(memberIdentity("m1"), at(12), "registerChallenge",
		mustJSON(t, memberPayload{ChallengeID: "c1"}))
	require.Error(t, err)
	assert.Equal(t, fault.KindForbidden, fault.KindOf(err))
}

func TestUnregisterBlockedAfterSubmission(t *testing.T) {
	h := newReviewHarness(t)
	cop := copilotIdentity("cop")
	setupChallenge(h)
	h.mustInvoke(cop, at(12), "advancePhase", mustJSON(t, advancePayload{
		ChallengeID: "c1",
		Phase:       PhaseRegister,
	}))
	h.mustInvoke(memberIdentity("m1"), at(12), "registerChallenge",
		mustJSON(t, memberPayload{ChallengeID: "c1"}))
	h.mustInvoke(cop, at(13), "advancePhase", mustJSON(t, advancePayload{
		ChallengeID: "c1",
		Phase:       PhaseSubmission,
	}))
	h.mustInvoke(memberIdentity("m1"), at(13), "uploadSubmission",
		mustJSON(t, submissionPayload{
			ChallengeID: "c1",
			Submission:  Submission{SubmissionID: "s1", MemberID: "m1"},
		}))

	// Unregistering is gated on the Register phase anyway, but even a
	// re-opened registration refuses once a submission exists.
	_, err := h.invoke(memberIdentity("m1"), at(13), "unregisterChallenge",
		mustJSON(t, memberPayload{ChallengeID: "c1"}))
	require.Error(t, err)
	assert.Equal(t, fault.KindForbidden, fault.KindOf(err))
}

func TestUploadRequiresRegistration(t *testing.T) {
	h := newReviewHarness(t)
	cop := copilotIdentity("cop")
	setupChallenge(h)
	h.mustInvoke(cop, at(12), "advancePhase", mustJSON(t, advancePayload{
		ChallengeID: "c1",
		Phase:       PhaseRegister,
	}))
	h.mustInvoke(cop, at(13), "advancePhase", mustJSON(t, advancePayload{
		ChallengeID: "c1",
		Phase:       PhaseSubmission,
	}))
	_, err := h.invoke(memberIdentity("ghost"), at(13), "uploadSubmission",
		mustJSON(t, submissionPayload{
			ChallengeID: "c1",
			Submission:  Submission{SubmissionID: "s9", MemberID: "ghost"},
		}))
	require.Error(t, err)
	assert.Equal(t, fault.KindForbidden, fault.KindOf(err))
}

func TestScorecardFrozenAfterReviews(t *testing.T) {
	h := newReviewHarness(t)
	cop := copilotIdentity("cop")
	setupChallenge(h)
	h.mustInvoke(cop, at(12), "advancePhase", mustJSON(t, advancePayload{
		ChallengeID: "c1",
		Phase:       PhaseRegister,
	}))
	h.mustInvoke(memberIdentity("m1"), at(12), "registerChallenge",
		mustJSON(t, memberPayload{ChallengeID: "c1"}))
	scorecard := mustJSON(t, Scorecard{
		Name:      "default",
		Questions: []ScorecardQuestion{{Text: "q", Weight: 1, Order: 1}},
	})
	h.mustInvoke(cop, at(12), "createChallengeScorecard", "c1", scorecard)
	h.mustInvoke(cop, at(12), "registerReviewer", mustJSON(t, memberPayload{
		MemberID:    "r1",
		ChallengeID: "c1",
	}))
	h.mustInvoke(cop, at(13), "advancePhase", mustJSON(t, advancePayload{
		ChallengeID: "c1",
		Phase:       PhaseSubmission,
	}))
	h.mustInvoke(memberIdentity("m1"), at(13), "uploadSubmission",
		mustJSON(t, submissionPayload{
			ChallengeID: "c1",
			Submission:  Submission{SubmissionID: "s1", MemberID: "m1"},
		}))
	h.mustInvoke(cop, at(14), "advancePhase", mustJSON(t, advancePayload{
		ChallengeID: "c1",
		Phase:       PhaseReview,
	}))
	h.mustInvoke(reviewerIdentity("r1"), at(14), "createChallengeReview",
		"c1", mustJSON(t, reviewPayload{
			ReviewerID: "r1",
			MemberID:   "m1",
			Review:     []Answer{{Question: 1, Score: 75}},
		}))

	_, err := h.invoke(cop, at(14), "createChallengeScorecard", "c1", scorecard)
	require.Error(t, err)
	assert.Equal(t, fault.KindForbidden, fault.KindOf(err))
}

func TestScorecardValidation(t *testing.T) {
	h := newReviewHarness(t)
	setupChallenge(h)
	cop := copilotIdentity("cop")

	_, err := h.invoke(cop, at(12), "createChallengeScorecard", "c1",
		mustJSON(t, Scorecard{Name: "empty"}))
	require.Error(t, err)
	assert.Equal(t, fault.KindValidation, fault.KindOf(err))

	_, err = h.invoke(cop, at(12), "createChallengeScorecard", "c1",
		mustJSON(t, Scorecard{
			Name:      "heavy",
			Questions: []ScorecardQuestion{{Text: "q", Weight: 1.5, Order: 1}},
		}))
	require.Error(t, err)
	assert.Equal(t, fault.KindValidation, fault.KindOf(err))

	_, err = h.invoke(cop, at(12), "createChallengeScorecard", "c1",
		mustJSON(t, Scorecard{
			Name: "dup",
			Questions: []ScorecardQuestion{
				{Text: "a", Weight: 0.5, Order: 1},
				{Text: "b", Weight: 0.5, Order: 1},
			},
		}))
	require.Error(t, err)
	assert.Equal(t, fault.KindValidation, fault.KindOf(err))
}

func TestReviewAnswersMustMatchScorecard(t *testing.T) {
	h := newReviewHarness(t)
	cop := copilotIdentity("cop")
	setupChallenge(h)
	h.mustInvoke(cop, at(12), "advancePhase", mustJSON(t, advancePayload{
		ChallengeID: "c1",
		Phase:       PhaseRegister,
	}))
	h.mustInvoke(memberIdentity("m1"), at(12), "registerChallenge",
		mustJSON(t, memberPayload{ChallengeID: "c1"}))
	h.mustInvoke(cop, at(12), "createChallengeScorecard", "c1",
		mustJSON(t, Scorecard{
			Name: "default",
			Questions: []ScorecardQuestion{
				{Text: "a", Weight: 0.5, Order: 1},
				{Text: "b", Weight: 0.5, Order: 2},
			},
		}))
	h.mustInvoke(cop, at(12), "registerReviewer", mustJSON(t, memberPayload{
		MemberID:    "r1",
		ChallengeID: "c1",
	}))
	h.mustInvoke(cop, at(13), "advancePhase", mustJSON(t, advancePayload{
		ChallengeID: "c1",
		Phase:       PhaseSubmission,
	}))
	h.mustInvoke(memberIdentity("m1"), at(13), "uploadSubmission",
		mustJSON(t, submissionPayload{
			ChallengeID: "c1",
			Submission:  Submission{SubmissionID: "s1", MemberID: "m1"},
		}))
	h.mustInvoke(cop, at(14), "advancePhase", mustJSON(t, advancePayload{
		ChallengeID: "c1",
		Phase:       PhaseReview,
	}))

	// Missing an answer.
	_, err := h.invoke(reviewerIdentity("r1"), at(14), "createChallengeReview",
		"c1", mustJSON(t, reviewPayload{
			ReviewerID: "r1",
			MemberID:   "m1",
			Review:     []Answer{{Question: 1, Score: 75}},
		}))
	require.Error(t, err)
	assert.Equal(t, fault.KindValidation, fault.KindOf(err))

	// Unknown question.
	_, err = h.invoke(reviewerIdentity("r1"), at(14), "createChallengeReview",
		"c1", mustJSON(t, reviewPayload{
			ReviewerID: "r1",
			MemberID:   "m1",
			Review: []Answer{
				{Question: 1, Score: 75},
				{Question: 9, Score: 75},
			},
		}))
	require.Error(t, err)
	assert.Equal(t, fault.KindValidation, fault.KindOf(err))
}

func TestUpdateChallengeCannotMutatePhases(t *testing.T) {
	h := newReviewHarness(t)
	setupChallenge(h)
	before := h.getChallenge("c1")

	payload := Challenge{
		ChallengeID:  "c1",
		Name:         "Renamed",
		CurrentPhase: PhaseCompleted,
		Phases:       testPhases(at(0)),
		Winners:      []Winner{{MemberID: "cheat", Prize: 500}},
	}
	h.mustInvoke(copilotIdentity("cop"), at(12), "updateChallenge",
		mustJSON(t, payload))

	after := h.getChallenge("c1")
	assert.Equal(t, "Renamed", after.Name)
	assert.Equal(t, PhasePending, after.CurrentPhase)
	assert.Equal(t, before.Phases, after.Phases)
	assert.Empty(t, after.Winners)
}

func TestGetSubmissionPermissions(t *testing.T) {
	h := newReviewHarness(t)
	cop := copilotIdentity("cop")
	setupChallenge(h)
	h.mustInvoke(cop, at(12), "advancePhase", mustJSON(t, advancePayload{
		ChallengeID: "c1",
		Phase:       PhaseRegister,
	}))
	for _, member := range []string{"m1", "m2"} {
		h.mustInvoke(memberIdentity(member), at(12), "registerChallenge",
			mustJSON(t, memberPayload{ChallengeID: "c1"}))
	}
	h.mustInvoke(cop, at(13), "advancePhase", mustJSON(t, advancePayload{
		ChallengeID: "c1",
		Phase:       PhaseSubmission,
	}))
	h.mustInvoke(memberIdentity("m1"), at(13), "uploadSubmission",
		mustJSON(t, submissionPayload{
			ChallengeID: "c1",
			Submission:  Submission{SubmissionID: "s1", MemberID: "m1"},
		}))

	request := mustJSON(t, submissionRequest{
		ChallengeID:  "c1",
		SubmissionID: "s1",
		MemberID:     "m1",
	})

	// The creating manager, the project copilot, and a registered member who
	// submitted may download.
	h.mustInvoke(managerIdentity("mgr"), at(13), "getSubmission", request)
	h.mustInvoke(cop, at(13), "getSubmission", request)
	h.mustInvoke(memberIdentity("m1"), at(13), "getSubmission", request)

	// A registered member without a submission may not.
	_, err := h.invoke(memberIdentity("m2"), at(13), "getSubmission", request)
	require.Error(t, err)
	assert.Equal(t, fault.KindForbidden, fault.KindOf(err))

	// Neither may a different manager who did not create the project.
	_, err = h.invoke(managerIdentity("mgr2"), at(13), "getSubmission", request)
	require.Error(t, err)
	assert.Equal(t, fault.KindForbidden, fault.KindOf(err))
}

func TestRoleAndOrganizationGates(t *testing.T) {
	h := newReviewHarness(t)

	// A member cannot create projects.
	_, err := h.invoke(memberIdentity("m1"), at(11), "createProject",
		mustJSON(t, Project{ProjectID: "p1", Name: "P"}))
	require.Error(t, err)
	assert.Equal(t, fault.KindForbidden, fault.KindOf(err))

	// A manager role asserted from the wrong organization peer is rejected.
	wrongOrg := identity.Identity{
		MSP: identity.MSPID(identity.OrgMembers),
		Attributes: map[string]string{
			"userId": "mgr",
			"roles":  identity.RoleManager,
		},
	}
	_, err = h.invoke(wrongOrg, at(11), "createProject",
		mustJSON(t, Project{ProjectID: "p1", Name: "P"}))
	require.Error(t, err)
	assert.Equal(t, fault.KindForbidden, fault.KindOf(err))
}

func TestUnknownFunction(t *testing.T) {
	h := newReviewHarness(t)
	_, err := h.invoke(managerIdentity("mgr"), at(11), "frobnicate")
	require.Error(t, err)
	assert.Equal(t, fault.KindBadRequest, fault.KindOf(err))
}

func TestCreateProjectDuplicateConflict(t *testing.T) {
	h := newReviewHarness(t)
	payload := mustJSON(t, Project{ProjectID: "p1", Name: "P", CreatedBy: "mgr"})
	h.mustInvoke(managerIdentity("mgr"), at(11), "createProject", payload)
	_, err := h.invoke(managerIdentity("mgr"), at(11), "createProject", payload)
	require.Error(t, err)
	assert.Equal(t, fault.KindConflict, fault.KindOf(err))
}

func TestUpdateProjectOnlyByCreator(t *testing.T) {
	h := newReviewHarness(t)
	h.mustInvoke(managerIdentity("mgr"), at(11), "createProject",
		mustJSON(t, Project{ProjectID: "p1", Name: "P", CreatedBy: "mgr"}))
	_, err := h.invoke(managerIdentity("mgr2"), at(11), "updateProject",
		mustJSON(t, Project{ProjectID: "p1", Name: "Stolen"}))
	require.Error(t, err)
	assert.Equal(t, fault.KindForbidden, fault.KindOf(err))
}

func TestReuploadReplacesSubmission(t *testing.T) {
	h := newReviewHarness(t)
	cop := copilotIdentity("cop")
	setupChallenge(h)
	h.mustInvoke(cop, at(12), "advancePhase", mustJSON(t, advancePayload{
		ChallengeID: "c1",
		Phase:       PhaseRegister,
	}))
	h.mustInvoke(memberIdentity("m1"), at(12), "registerChallenge",
		mustJSON(t, memberPayload{ChallengeID: "c1"}))
	h.mustInvoke(cop, at(13), "advancePhase", mustJSON(t, advancePayload{
		ChallengeID: "c1",
		Phase:       PhaseSubmission,
	}))
	for _, id := range []string{"s1", "s2"} {
		h.mustInvoke(memberIdentity("m1"), at(13), "uploadSubmission",
			mustJSON(t, submissionPayload{
				ChallengeID: "c1",
				Submission:  Submission{SubmissionID: id, MemberID: "m1"},
			}))
	}
	challenge := h.getChallenge("c1")
	require.Len(t, challenge.Submissions, 1)
	assert.Equal(t, "s2", challenge.Submissions[0].SubmissionID)
}

func TestListChallengesServesCanonicalCopies(t *testing.T) {
	h := newReviewHarness(t)
	cop := copilotIdentity("cop")
	setupChallenge(h)
	h.mustInvoke(cop, at(12), "advancePhase", mustJSON(t, advancePayload{
		ChallengeID: "c1",
		Phase:       PhaseRegister,
	}))
	// Registration mutates the embedded challenge without rewriting the
	// chl_ index; the listing must still reflect it.
	h.mustInvoke(memberIdentity("m1"), at(12), "registerChallenge",
		mustJSON(t, memberPayload{ChallengeID: "c1"}))

	payload := h.mustInvoke(
		managerIdentity("mgr"),
		time.Time{},
		"listChallenges",
	)
	var challenges []Challenge
	decodeInto(t, payload, &challenges)
	require.Len(t, challenges, 1)
	assert.Equal(t, PhaseRegister, challenges[0].CurrentPhase)
	require.Len(t, challenges[0].Members, 1)
	assert.Equal(t, "m1", challenges[0].Members[0].MemberID)
}
