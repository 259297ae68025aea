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
	"encoding/json"
	"fmt"

	"github.com/crucible-ledger/crucible/fault"
)

// Key namespaces in world state. The "z" upper bound on scans relies on all
// document ids being plain alphanumerics.
const (
	projectKeyPrefix   = "prj_"
	challengeKeyPrefix = "chl_"
	userIDKeyPrefix    = "usr_id_"
	userEmailKeyPrefix = "usr_email_"
)

func projectKey(projectID string) string {
	return projectKeyPrefix + projectID
}

func challengeKey(challengeID string) string {
	return challengeKeyPrefix + challengeID
}

func userIDKey(memberID string) string {
	return userIDKeyPrefix + memberID
}

func userEmailKey(email string) string {
	return userEmailKeyPrefix + email
}

// Repository provides typed accessors over a stub's world state for the two
// aggregate roots, Project and User. All writes are whole-document replaces;
// partial-update semantics live in the operation handlers.
type Repository struct {
	stub Stub
}

func NewRepository(stub Stub) *Repository {
	return &Repository{stub: stub}
}

func (r *Repository) getDocument(key string, v any) (bool, error) {
	raw, err := r.stub.GetState(key)
	if err != nil {
		return false, err
	}
	if len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode document %q: %w", key, err)
	}
	return true, nil
}

func (r *Repository) putDocument(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode document %q: %w", key, err)
	}
	return r.stub.PutState(key, raw)
}

// GetProject returns the project, or nil when absent.
func (r *Repository) GetProject(projectID string) (*Project, error) {
	project := &Project{}
	found, err := r.getDocument(projectKey(projectID), project)
	if err != nil || !found {
		return nil, err
	}
	return project, nil
}

func (r *Repository) SaveProject(project *Project) error {
	return r.putDocument(projectKey(project.ProjectID), project)
}

// GetChallengeIndex returns the standalone challenge index document, or nil.
// The embedded copy inside the project is canonical; this index exists to
// resolve a challenge id to its project without scanning.
func (r *Repository) GetChallengeIndex(
	challengeID string,
) (*Challenge, error) {
	challenge := &Challenge{}
	found, err := r.getDocument(challengeKey(challengeID), challenge)
	if err != nil || !found {
		return nil, err
	}
	return challenge, nil
}

func (r *Repository) SaveChallengeIndex(challenge *Challenge) error {
	return r.putDocument(challengeKey(challenge.ChallengeID), challenge)
}

// GetProjectChallenge resolves a challenge id to its owning project and the
// embedded challenge. The returned challenge pointer aliases the project's
// challenge array, so mutations through it are persisted by saving the
// project.
func (r *Repository) GetProjectChallenge(
	challengeID string,
) (*Project, *Challenge, error) {
	index, err := r.GetChallengeIndex(challengeID)
	if err != nil {
		return nil, nil, err
	}
	if index == nil {
		return nil, nil, fault.NotFound(
			"cannot find the challenge with id: %s",
			challengeID,
		)
	}
	project, err := r.GetProject(index.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	if project == nil {
		return nil, nil, fault.NotFound(
			"cannot find the project with id: %s",
			index.ProjectID,
		)
	}
	challenge := project.Challenge(challengeID)
	if challenge == nil {
		return nil, nil, fault.NotFound(
			"cannot find challenge of id: %s in project: %s",
			challengeID,
			index.ProjectID,
		)
	}
	return project, challenge, nil
}

// ListProjects scans the project namespace. A nil predicate returns all
// projects.
func (r *Repository) ListProjects(
	predicate func(*Project) bool,
) ([]*Project, error) {
	entries, err := r.stub.GetStateByRange(
		projectKeyPrefix,
		projectKeyPrefix+"z",
	)
	if err != nil {
		return nil, err
	}
	projects := make([]*Project, 0, len(entries))
	for _, entry := range entries {
		project := &Project{}
		if err := json.Unmarshal(entry.Value, project); err != nil {
			return nil, fmt.Errorf("decode document %q: %w", entry.Key, err)
		}
		if predicate == nil || predicate(project) {
			projects = append(projects, project)
		}
	}
	return projects, nil
}

// ListChallenges returns every challenge in challenge-id order. The chl_
// index supplies the ids only; each entry is resolved through its owning
// project document, which holds the canonical copy. The index is refreshed
// on a subset of mutations, so reading it directly would serve stale
// members, submissions, and reviews.
func (r *Repository) ListChallenges() ([]*Challenge, error) {
	entries, err := r.stub.GetStateByRange(
		challengeKeyPrefix,
		challengeKeyPrefix+"z",
	)
	if err != nil {
		return nil, err
	}
	challenges := make([]*Challenge, 0, len(entries))
	for _, entry := range entries {
		index := &Challenge{}
		if err := json.Unmarshal(entry.Value, index); err != nil {
			return nil, fmt.Errorf("decode document %q: %w", entry.Key, err)
		}
		_, challenge, err := r.GetProjectChallenge(index.ChallengeID)
		if err != nil {
			return nil, err
		}
		challenges = append(challenges, challenge)
	}
	return challenges, nil
}

// GetUserByID returns the user, or nil when absent.
func (r *Repository) GetUserByID(memberID string) (*User, error) {
	user := &User{}
	found, err := r.getDocument(userIDKey(memberID), user)
	if err != nil || !found {
		return nil, err
	}
	return user, nil
}

// GetUserByEmail returns the user, or nil when absent.
func (r *Repository) GetUserByEmail(email string) (*User, error) {
	user := &User{}
	found, err := r.getDocument(userEmailKey(email), user)
	if err != nil || !found {
		return nil, err
	}
	return user, nil
}

// SaveUser writes the user under both its id and email keys.
func (r *Repository) SaveUser(user *User) error {
	if err := r.putDocument(userIDKey(user.MemberID), user); err != nil {
		return err
	}
	return r.putDocument(userEmailKey(user.MemberEmail), user)
}

// ListUsers scans the user id namespace.
func (r *Repository) ListUsers() ([]*User, error) {
	entries, err := r.stub.GetStateByRange(
		userIDKeyPrefix,
		userIDKeyPrefix+"z",
	)
	if err != nil {
		return nil, err
	}
	users := make([]*User, 0, len(entries))
	for _, entry := range entries {
		user := &User{}
		if err := json.Unmarshal(entry.Value, user); err != nil {
			return nil, fmt.Errorf("decode document %q: %w", entry.Key, err)
		}
		users = append(users, user)
	}
	return users, nil
}

// GetClientProject returns the client-channel project, or nil when absent.
func (r *Repository) GetClientProject(
	projectID string,
) (*ClientProject, error) {
	project := &ClientProject{}
	found, err := r.getDocument(projectKey(projectID), project)
	if err != nil || !found {
		return nil, err
	}
	return project, nil
}

func (r *Repository) SaveClientProject(project *ClientProject) error {
	return r.putDocument(projectKey(project.ProjectID), project)
}

// ListClientProjects scans the client-channel project namespace.
func (r *Repository) ListClientProjects(
	predicate func(*ClientProject) bool,
) ([]*ClientProject, error) {
	entries, err := r.stub.GetStateByRange(
		projectKeyPrefix,
		projectKeyPrefix+"z",
	)
	if err != nil {
		return nil, err
	}
	projects := make([]*ClientProject, 0, len(entries))
	for _, entry := range entries {
		project := &ClientProject{}
		if err := json.Unmarshal(entry.Value, project); err != nil {
			return nil, fmt.Errorf("decode document %q: %w", entry.Key, err)
		}
		if predicate == nil || predicate(project) {
			projects = append(projects, project)
		}
	}
	return projects, nil
}
