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
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crucible-ledger/crucible/chaincode"
	"github.com/crucible-ledger/crucible/coordinator"
	"github.com/crucible-ledger/crucible/fault"
	"github.com/crucible-ledger/crucible/identity"
	"github.com/crucible-ledger/crucible/network"
	"github.com/crucible-ledger/crucible/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var netSeq atomic.Uint64

// testTopology is the standard four-organization layout with one peer per
// org. Peer names are unique per network so per-peer commit logs do not
// collide between tests.
func testTopology() *topology.Topology {
	seq := netSeq.Add(1)
	peerName := func(org string) string {
		return fmt.Sprintf("wf%d-peer0.%s", seq, org)
	}
	return &topology.Topology{
		Organizations: []topology.Organization{
			{
				Name:  identity.OrgTopcoder,
				Peers: []topology.Peer{{Name: peerName("Topcoder")}},
			},
			{
				Name:  identity.OrgClients,
				Peers: []topology.Peer{{Name: peerName("Clients")}},
			},
			{
				Name:  identity.OrgMembers,
				Peers: []topology.Peer{{Name: peerName("Members")}},
			},
			{
				Name:  identity.OrgModerators,
				Peers: []topology.Peer{{Name: peerName("Moderators")}},
			},
		},
		Channels: []topology.Channel{
			{
				Name: ChannelReview,
				Organizations: []string{
					identity.OrgTopcoder,
					identity.OrgMembers,
					identity.OrgModerators,
				},
				Chaincodes: []string{"review"},
			},
			{
				Name: ChannelClient,
				Organizations: []string{
					identity.OrgTopcoder,
					identity.OrgClients,
				},
				Chaincodes: []string{"client"},
			},
			{
				Name:          ChannelUsers,
				Organizations: []string{identity.OrgTopcoder},
				Chaincodes:    []string{"users"},
			},
		},
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	n, err := network.New(network.Config{
		Topology: testTopology(),
		Chaincodes: map[string]chaincode.Chaincode{
			"review": chaincode.NewReviewChaincode(nil),
			"client": chaincode.NewClientChaincode(nil),
			"users":  chaincode.NewUsersChaincode(nil),
		},
		BatchTimeout: 10 * time.Millisecond,
		MaxBlockSize: 10,
	})
	require.NoError(t, err)
	n.Start()
	t.Cleanup(func() {
		require.NoError(t, n.Stop())
	})
	coord, err := coordinator.New(coordinator.Config{
		Network:       n,
		CommitTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	svc, err := New(Config{Coordinator: coord})
	require.NoError(t, err)
	return svc
}

func managerIdentity(userID string) identity.Identity {
	return identity.Identity{
		MSP: identity.MSPID(identity.OrgTopcoder),
		Attributes: map[string]string{
			"userId": userID,
			"roles":  "manager",
		},
	}
}

func clientIdentity(userID string) identity.Identity {
	return identity.Identity{
		MSP: identity.MSPID(identity.OrgClients),
		Attributes: map[string]string{
			"userId": userID,
			"roles":  "client",
		},
	}
}

func TestProvisionUser(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	creds, err := svc.ProvisionUser(ctx, &chaincode.User{
		MemberID:    "m1",
		MemberEmail: "m1@example.com",
		Roles:       []string{"member"},
	})
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, identity.MSPID(identity.OrgMembers), creds[0].MSP)
	assert.Equal(t, "m1", creds[0].AttributeValue("userId"))
	assert.Equal(t, "member", creds[0].AttributeValue("roles"))

	user, err := svc.LookupUser(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1@example.com", user.MemberEmail)
}

func TestProvisionUserEnrollsEveryRoleOrg(t *testing.T) {
	svc := newTestService(t)

	creds, err := svc.ProvisionUser(context.Background(), &chaincode.User{
		MemberID:    "m2",
		MemberEmail: "m2@example.com",
		Roles:       []string{"member", "copilot", "reviewer"},
	})
	require.NoError(t, err)
	// copilot and reviewer share an organization, so two credentials
	require.Len(t, creds, 2)
	assert.Equal(t, identity.MSPID(identity.OrgMembers), creds[0].MSP)
	assert.Equal(t, identity.MSPID(identity.OrgModerators), creds[1].MSP)
	for _, cred := range creds {
		assert.Equal(t, "m2", cred.AttributeValue("userId"))
		assert.Equal(t, "member,copilot,reviewer", cred.AttributeValue("roles"))
	}
}

func TestProvisionUserRejectsUnknownRole(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.ProvisionUser(context.Background(), &chaincode.User{
		MemberID:    "m1",
		MemberEmail: "m1@example.com",
		Roles:       []string{"wizard"},
	})
	require.Error(t, err)
	assert.Equal(t, fault.KindValidation, fault.KindOf(err))

	_, err = svc.ProvisionUser(context.Background(), &chaincode.User{
		MemberID:    "m2",
		MemberEmail: "m2@example.com",
	})
	require.Error(t, err)
	assert.Equal(t, fault.KindValidation, fault.KindOf(err))
}

func TestProjectDraftToActive(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	mgr := managerIdentity("mgr")

	created, err := svc.CreateProject(ctx, mgr, &chaincode.ClientProject{
		ProjectID: "p1",
		ClientID:  "alice",
		CopilotID: "cop",
		Name:      "storefront",
		Budget:    10000,
	})
	require.NoError(t, err)
	assert.Equal(t, chaincode.ProjectStatusDraft, created.Status)
	assert.Equal(t, "mgr", created.CreatedBy)

	// Drafts are not on the review channel yet.
	reviewCopy := &chaincode.Project{}
	err = svc.query(ctx, mgr, ChannelReview, "getProject", "p1", reviewCopy)
	require.Error(t, err)
	assert.Equal(t, fault.KindNotFound, fault.KindOf(err))

	activated, err := svc.ActivateProject(ctx, mgr, "p1")
	require.NoError(t, err)
	assert.Equal(t, chaincode.ProjectStatusActive, activated.Status)

	// The review copy exists now, without the confidential fields.
	require.NoError(
		t,
		svc.query(ctx, mgr, ChannelReview, "getProject", "p1", reviewCopy),
	)
	assert.Equal(t, "storefront", reviewCopy.Name)
	assert.Equal(t, "cop", reviewCopy.CopilotID)
	assert.Zero(t, reviewCopy.Budget)
	assert.Empty(t, reviewCopy.ClientID)

	// The client record keeps them.
	stored, err := svc.GetProject(ctx, clientIdentity("alice"), "p1")
	require.NoError(t, err)
	assert.Equal(t, float64(10000), stored.Budget)
	assert.Equal(t, "alice", stored.ClientID)
}

func TestActivateRequiresDraft(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	mgr := managerIdentity("mgr")

	_, err := svc.CreateProject(ctx, mgr, &chaincode.ClientProject{
		ProjectID: "p1",
		Name:      "storefront",
	})
	require.NoError(t, err)
	_, err = svc.ActivateProject(ctx, mgr, "p1")
	require.NoError(t, err)

	_, err = svc.ActivateProject(ctx, mgr, "p1")
	require.Error(t, err)
	assert.Equal(t, fault.KindValidation, fault.KindOf(err))
}

func TestUpdateProjectCannotRollBackToDraft(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	mgr := managerIdentity("mgr")

	_, err := svc.CreateProject(ctx, mgr, &chaincode.ClientProject{
		ProjectID: "p1",
		Name:      "storefront",
	})
	require.NoError(t, err)
	_, err = svc.ActivateProject(ctx, mgr, "p1")
	require.NoError(t, err)

	_, err = svc.UpdateProject(ctx, mgr, &chaincode.ClientProject{
		ProjectID: "p1",
		Status:    chaincode.ProjectStatusDraft,
	})
	require.Error(t, err)
	assert.Equal(t, fault.KindValidation, fault.KindOf(err))
}

func TestUpdateProjectMirrorsToReviewChannel(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	mgr := managerIdentity("mgr")

	_, err := svc.CreateProject(ctx, mgr, &chaincode.ClientProject{
		ProjectID: "p1",
		Name:      "storefront",
		Budget:    10000,
	})
	require.NoError(t, err)
	_, err = svc.ActivateProject(ctx, mgr, "p1")
	require.NoError(t, err)

	updated, err := svc.UpdateProject(ctx, mgr, &chaincode.ClientProject{
		ProjectID: "p1",
		Name:      "storefront v2",
		Status:    chaincode.ProjectStatusActive,
	})
	require.NoError(t, err)
	assert.Equal(t, "storefront v2", updated.Name)

	reviewCopy := &chaincode.Project{}
	require.NoError(
		t,
		svc.query(ctx, mgr, ChannelReview, "getProject", "p1", reviewCopy),
	)
	assert.Equal(t, "storefront v2", reviewCopy.Name)
}

// shortPhases builds a contiguous six-phase schedule of equal short phases
// starting in the past, so a sweep loop can walk a challenge to completion
// in real time.
func TestPhaseDueReviewIgnoresSchedule(t *testing.T) {
	phases := shortPhases(time.Now(), time.Hour)
	challenge := &chaincode.Challenge{
		CurrentPhase: chaincode.PhaseReview,
		Phases:       phases,
	}

	// A fully reviewed challenge must not sit idle until Review.EndDate:
	// the sweep attempts the advance mid-phase and the chaincode's
	// review-count gate decides.
	assert.True(t, phaseDue(challenge, phases[2].StartDate.Add(time.Minute)))

	// Every other phase stays schedule-gated.
	challenge.CurrentPhase = chaincode.PhaseAppeal
	assert.False(t, phaseDue(challenge, phases[3].StartDate.Add(time.Minute)))
	assert.True(t, phaseDue(challenge, phases[3].EndDate))
}

func shortPhases(start time.Time, step time.Duration) []chaincode.Phase {
	names := []string{
		chaincode.PhaseRegister,
		chaincode.PhaseSubmission,
		chaincode.PhaseReview,
		chaincode.PhaseAppeal,
		chaincode.PhaseAppealResponse,
		chaincode.PhaseCompleted,
	}
	phases := make([]chaincode.Phase, len(names))
	for i, name := range names {
		phases[i] = chaincode.Phase{
			Name:      name,
			StartDate: start.Add(time.Duration(i) * step),
			EndDate:   start.Add(time.Duration(i+1) * step),
		}
	}
	return phases
}

func TestAdvanceDuePhasesCompletesChallenge(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	mgr := managerIdentity("mgr")

	_, err := svc.CreateProject(ctx, mgr, &chaincode.ClientProject{
		ProjectID: "p1",
		ClientID:  "alice",
		CopilotID: "cop",
		Name:      "storefront",
		Budget:    10000,
	})
	require.NoError(t, err)
	_, err = svc.ActivateProject(ctx, mgr, "p1")
	require.NoError(t, err)

	challenge := &chaincode.Challenge{
		ChallengeID: "c1",
		ProjectID:   "p1",
		Name:        "logo design",
		Phases:      shortPhases(time.Now().Add(-time.Second), 30*time.Millisecond),
		Prizes: chaincode.Prizes{
			Winners:  []float64{500},
			Reviewer: 100,
			Copilot:  300,
		},
	}
	require.NoError(
		t,
		svc.invoke(ctx, mgr, ChannelReview, "createChallenge", challenge, nil),
	)

	// With no submissions the review and appeal gates are trivially
	// satisfied; each sweep moves the challenge one phase once the shifted
	// schedule falls due.
	advanced := 0
	deadline := time.Now().Add(10 * time.Second)
	for advanced < 6 && time.Now().Before(deadline) {
		n, err := svc.AdvanceDuePhases(ctx, time.Now())
		require.NoError(t, err)
		advanced += n
		if advanced < 6 {
			time.Sleep(40 * time.Millisecond)
		}
	}
	require.Equal(t, 6, advanced)

	stored := &chaincode.Challenge{}
	require.NoError(
		t,
		svc.query(ctx, mgr, ChannelReview, "getChallenge", "c1", stored),
	)
	assert.Equal(t, chaincode.PhaseCompleted, stored.CurrentPhase)

	// The completion was projected to the client channel with its expense:
	// the copilot fee only, as nobody reviewed and nobody won.
	clientView, err := svc.GetProject(ctx, clientIdentity("alice"), "p1")
	require.NoError(t, err)
	require.Len(t, clientView.Challenges, 1)
	assert.Equal(t, "c1", clientView.Challenges[0].ChallengeID)
	assert.Equal(t, float64(300), clientView.Challenges[0].Expense)

	// Nothing ongoing remains, so another sweep is a no-op.
	n, err := svc.AdvanceDuePhases(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}
