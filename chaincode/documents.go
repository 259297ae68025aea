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
)

// Project statuses.
const (
	ProjectStatusDraft  = "draft"
	ProjectStatusActive = "active"
)

// Member registration statuses.
const (
	MemberUnregistered = 0
	MemberRegistered   = 1
)

// Project is the aggregate root on the review channel. Challenges live
// embedded in their owning project; the standalone challenge key is a
// secondary index only.
type Project struct {
	ProjectID   string      `json:"projectId"`
	ClientID    string      `json:"clientId,omitempty"`
	CopilotID   string      `json:"copilotId,omitempty"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Budget      float64     `json:"budget,omitempty"`
	Status      string      `json:"status,omitempty"`
	CreatedBy   string      `json:"createdBy,omitempty"`
	UpdatedBy   string      `json:"updatedBy,omitempty"`
	Challenges  []Challenge `json:"challenges"`
}

// Challenge returns the embedded challenge with the given id, or nil.
func (p *Project) Challenge(challengeID string) *Challenge {
	for i := range p.Challenges {
		if p.Challenges[i].ChallengeID == challengeID {
			return &p.Challenges[i]
		}
	}
	return nil
}

type Challenge struct {
	ChallengeID  string       `json:"challengeId"`
	ProjectID    string       `json:"projectId"`
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	CurrentPhase string       `json:"currentPhase"`
	Phases       []Phase      `json:"phases"`
	Prizes       Prizes       `json:"prizes"`
	Members      []Member     `json:"members"`
	Reviewers    []Reviewer   `json:"reviewers,omitempty"`
	Submissions  []Submission `json:"submissions,omitempty"`
	Scorecard    *Scorecard   `json:"scorecard,omitempty"`
	Winners      []Winner     `json:"winners,omitempty"`
	UpdatedBy    string       `json:"updatedBy,omitempty"`
}

// Submission returns the member's submission, or nil. A member holds at most
// one live submission per challenge.
func (c *Challenge) Submission(memberID string) *Submission {
	for i := range c.Submissions {
		if c.Submissions[i].MemberID == memberID {
			return &c.Submissions[i]
		}
	}
	return nil
}

// Member returns the membership entry for the member id, or nil.
func (c *Challenge) Member(memberID string) *Member {
	for i := range c.Members {
		if c.Members[i].MemberID == memberID {
			return &c.Members[i]
		}
	}
	return nil
}

// Reviewer reports whether the member is an assigned reviewer.
func (c *Challenge) Reviewer(memberID string) bool {
	for _, r := range c.Reviewers {
		if r.MemberID == memberID {
			return true
		}
	}
	return false
}

type Phase struct {
	Name      string    `json:"name"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

type Prizes struct {
	Winners  []float64 `json:"winners"`
	Reviewer float64   `json:"reviewer"`
	Copilot  float64   `json:"copilot"`
}

type Member struct {
	MemberID string `json:"memberId"`
	Status   int    `json:"status"`
}

type Reviewer struct {
	MemberID string `json:"memberId"`
}

type Submission struct {
	SubmissionID     string    `json:"submissionId"`
	MemberID         string    `json:"memberId"`
	OriginalFileName string    `json:"originalFileName,omitempty"`
	FileName         string    `json:"fileName,omitempty"`
	IPFSHash         string    `json:"ipfsHash,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	Reviews          []Review  `json:"reviews"`
}

// Review returns the review authored by the reviewer, or nil.
func (s *Submission) Review(reviewerID string) *Review {
	for i := range s.Reviews {
		if s.Reviews[i].ReviewerID == reviewerID {
			return &s.Reviews[i]
		}
	}
	return nil
}

type Review struct {
	ReviewerID string   `json:"reviewerId"`
	Review     []Answer `json:"review"`
}

// Answer scores one scorecard question. Question carries the order of the
// scorecard question it answers.
type Answer struct {
	Question int     `json:"question"`
	Score    float64 `json:"score"`
	Comments string  `json:"comments,omitempty"`
	Appeal   *Appeal `json:"appeal,omitempty"`
}

// Appeal attaches a member's dispute to one answered question. FinalScore,
// once present, supersedes the original score in scoring.
type Appeal struct {
	Appeal         string   `json:"appeal"`
	AppealResponse string   `json:"appealResponse,omitempty"`
	FinalScore     *float64 `json:"finalScore,omitempty"`
}

type Scorecard struct {
	Name      string              `json:"name"`
	Questions []ScorecardQuestion `json:"questions"`
}

type ScorecardQuestion struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
	Order  int     `json:"order"`
}

type Winner struct {
	MemberID   string      `json:"memberId"`
	Score      float64     `json:"score"`
	Prize      float64     `json:"prize"`
	Submission *Submission `json:"submission,omitempty"`
}

// User is immutable once created and indexed by both id and email.
type User struct {
	MemberID    string   `json:"memberId"`
	MemberEmail string   `json:"memberEmail"`
	Name        string   `json:"name,omitempty"`
	Roles       []string `json:"roles"`
}

// ClientProject is the aggregate root on the client channel. It retains the
// client-confidential budget and client id; its challenge entries are the
// completed-challenge projections emitted by the review channel.
type ClientProject struct {
	ProjectID   string               `json:"projectId"`
	ClientID    string               `json:"clientId,omitempty"`
	CopilotID   string               `json:"copilotId,omitempty"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Budget      float64              `json:"budget,omitempty"`
	Status      string               `json:"status,omitempty"`
	CreatedBy   string               `json:"createdBy,omitempty"`
	UpdatedBy   string               `json:"updatedBy,omitempty"`
	Challenges  []CompletedChallenge `json:"challenges"`
}

// CompletedChallenge is the client-visible projection of a finished
// challenge: what it cost and where the winning deliverable lives.
type CompletedChallenge struct {
	ChallengeID string    `json:"challengeId"`
	Name        string    `json:"name"`
	Expense     float64   `json:"expense"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	IPFSHash    string    `json:"ipfsHash,omitempty"`
	FileName    string    `json:"fileName,omitempty"`
}
