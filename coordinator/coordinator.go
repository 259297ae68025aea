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

// Package coordinator drives the two-phase transaction flow on behalf of a
// client: collect endorsements from every endorsing peer of the caller's
// organization, submit the endorsed transaction for ordering, and wait for
// commit confirmation from every watched peer.
package coordinator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/crucible-ledger/crucible/event"
	"github.com/crucible-ledger/crucible/fault"
	"github.com/crucible-ledger/crucible/identity"
	"github.com/crucible-ledger/crucible/ledger"
	"github.com/crucible-ledger/crucible/network"
	"github.com/crucible-ledger/crucible/peer"
)

const DefaultCommitTimeout = 30 * time.Second

type Config struct {
	Logger       *slog.Logger
	Network      *network.Network
	PromRegistry prometheus.Registerer
	// CommitTimeout bounds each watched peer's commit wait independently.
	CommitTimeout time.Duration
}

// Coordinator submits transactions and queries through the peers of the
// caller's organization.
type Coordinator struct {
	config  Config
	logger  *slog.Logger
	metrics *coordinatorMetrics
}

func New(cfg Config) (*Coordinator, error) {
	if cfg.Network == nil {
		return nil, fault.Configuration("coordinator requires a network")
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = DefaultCommitTimeout
	}
	c := &Coordinator{
		config: cfg,
		logger: cfg.Logger.With("component", "coordinator"),
	}
	if cfg.PromRegistry != nil {
		c.initMetrics()
	}
	return c, nil
}

// Request is one chaincode invocation or query on behalf of an identity.
type Request struct {
	ChannelID string
	Chaincode string
	Fcn       string
	Args      []string
	Creator   identity.Identity
}

// creatorOrg derives the organization from the creator's MSP id.
func creatorOrg(creator identity.Identity) (string, error) {
	const suffix = "MSP"
	msp := creator.MSP
	if len(msp) <= len(suffix) || msp[len(msp)-len(suffix):] != suffix {
		return "", fault.Forbidden(
			"cannot derive an organization from MSP id: %s",
			msp,
		)
	}
	return msp[:len(msp)-len(suffix)], nil
}

// Invoke runs the full transaction flow. The returned payload is the
// endorsed chaincode response. An error of kind CommitTimeout means the
// transaction may still commit later; every other error kind means it
// definitely did not commit.
func (c *Coordinator) Invoke(ctx context.Context, req Request) ([]byte, error) {
	start := time.Now()
	payload, err := c.invoke(ctx, req)
	c.observeInvoke(req.ChannelID, err, time.Since(start))
	return payload, err
}

func (c *Coordinator) invoke(
	ctx context.Context,
	req Request,
) ([]byte, error) {
	org, err := creatorOrg(req.Creator)
	if err != nil {
		return nil, err
	}
	endorsers := c.config.Network.OrgEndorsers(req.ChannelID, org)
	if len(endorsers) == 0 {
		return nil, fault.Configuration(
			"there are no endorsing peers of organization %s on channel %s",
			org,
			req.ChannelID,
		)
	}
	txID := uuid.NewString()
	proposal := ledger.Proposal{
		TxID:      txID,
		ChannelID: req.ChannelID,
		Chaincode: req.Chaincode,
		Fcn:       req.Fcn,
		Args:      req.Args,
		Creator:   req.Creator,
		Timestamp: time.Now(),
	}

	endorsements, err := c.endorse(ctx, endorsers, proposal)
	if err != nil {
		return nil, err
	}

	// All endorsements simulate the same deterministic chaincode over
	// identical committed state, so the first one's sets and payload stand
	// for all of them.
	first := endorsements[0]
	endorserIDs := make([]string, len(endorsements))
	for i, e := range endorsements {
		endorserIDs[i] = e.Endorser
	}
	tx := ledger.Transaction{
		ID:        txID,
		ChannelID: req.ChannelID,
		Chaincode: req.Chaincode,
		Fcn:       req.Fcn,
		Args:      req.Args,
		Creator:   req.Creator,
		Timestamp: proposal.Timestamp,
		ReadSet:   first.ReadSet,
		WriteSet:  first.WriteSet,
		Endorsers: endorserIDs,
		Payload:   first.Payload,
	}

	hubs := c.config.Network.OrgEventHubs(req.ChannelID, org)
	if len(hubs) == 0 {
		return nil, fault.Configuration(
			"there are no event hub peers of organization %s on channel %s",
			org,
			req.ChannelID,
		)
	}

	if err := c.orderAndAwait(ctx, tx, hubs); err != nil {
		return nil, err
	}
	c.logger.Debug(
		"transaction committed",
		"channel", req.ChannelID,
		"chaincode", req.Chaincode,
		"fcn", req.Fcn,
		"tx_id", txID,
	)
	return first.Payload, nil
}

// endorse sends the proposal to every peer concurrently. All peers must
// endorse; a single refusal fails the whole transaction before anything is
// submitted for ordering.
func (c *Coordinator) endorse(
	ctx context.Context,
	endorsers []*peer.Peer,
	proposal ledger.Proposal,
) ([]*ledger.Endorsement, error) {
	endorsements := make([]*ledger.Endorsement, len(endorsers))
	errs := make([]error, len(endorsers))
	var wg sync.WaitGroup
	for i, p := range endorsers {
		wg.Add(1)
		go func(i int, p *peer.Peer) {
			defer wg.Done()
			endorsement, err := p.Endorse(ctx, proposal)
			if err != nil {
				errs[i] = fmt.Errorf("peer %s: %w", p.ID(), err)
				return
			}
			endorsements[i] = endorsement
		}(i, p)
	}
	wg.Wait()

	var merr *multierror.Error
	for _, err := range errs {
		if err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if merr != nil {
		// Wrap preserves an inner chaincode kind, so a unanimous Forbidden
		// or Conflict refusal stays recognizable to the caller.
		return nil, fault.Wrap(
			merr.ErrorOrNil(),
			fault.KindEndorsement,
			"endorse",
			proposal.ChannelID,
		)
	}
	return endorsements, nil
}

// commitResult is one watched peer's commit outcome.
type commitResult struct {
	peerID string
	code   string
	err    error
}

// orderAndAwait registers a commit watch on every hub peer, then submits the
// transaction for ordering concurrently with the waits. Each wait has an
// independent timeout.
func (c *Coordinator) orderAndAwait(
	ctx context.Context,
	tx ledger.Transaction,
	hubs []*peer.Peer,
) error {
	bus := c.config.Network.EventBus()
	results := make(chan commitResult, len(hubs))
	var wg sync.WaitGroup
	for _, hub := range hubs {
		// Subscribe before submitting so the commit event cannot be missed.
		evtType := event.TxCommitEventType(hub.ID())
		subID, evtCh := bus.Subscribe(evtType)
		wg.Add(1)
		go func(hubID string) {
			defer wg.Done()
			defer bus.Unsubscribe(evtType, subID)
			results <- c.awaitCommit(ctx, hubID, tx.ID, evtCh)
		}(hub.ID())
	}

	if err := c.config.Network.Orderer().Submit(ctx, tx); err != nil {
		// Not ordered: the commit waits will never fire, cancel them by
		// waiting out their timeouts is pointless, so report right away.
		go func() {
			wg.Wait()
			close(results)
		}()
		return fault.Wrap(err, fault.KindOrdering, "submit", tx.ChannelID)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var merr *multierror.Error
	timedOut := false
	for result := range results {
		if result.err != nil {
			if fault.Is(result.err, fault.KindCommitTimeout) {
				timedOut = true
			}
			merr = multierror.Append(
				merr,
				fmt.Errorf("peer %s: %w", result.peerID, result.err),
			)
			continue
		}
		if result.code != event.TxValid {
			merr = multierror.Append(merr, fault.New(
				fault.KindCommit,
				"peer %s invalidated transaction %s with code %s",
				result.peerID,
				tx.ID,
				result.code,
			))
		}
	}
	if merr != nil {
		// Any timed-out wait makes the overall outcome unknown, which must
		// win over a definite invalidation from another peer.
		kind := fault.KindCommit
		if timedOut {
			kind = fault.KindCommitTimeout
		}
		return &fault.Error{
			Kind:   kind,
			Op:     "commit",
			Target: tx.ChannelID,
			Err:    merr.ErrorOrNil(),
		}
	}
	return nil
}

func (c *Coordinator) awaitCommit(
	ctx context.Context,
	peerID string,
	txID string,
	evtCh <-chan event.Event,
) commitResult {
	timer := time.NewTimer(c.config.CommitTimeout)
	defer timer.Stop()
	for {
		select {
		case evt, ok := <-evtCh:
			if !ok {
				return commitResult{
					peerID: peerID,
					err: fault.New(
						fault.KindCommitTimeout,
						"commit watch closed before transaction %s was observed",
						txID,
					),
				}
			}
			commit, ok := evt.Data.(event.TxCommitEvent)
			if !ok || commit.TxID != txID {
				continue
			}
			return commitResult{peerID: peerID, code: commit.Code}
		case <-timer.C:
			return commitResult{
				peerID: peerID,
				err: fault.New(
					fault.KindCommitTimeout,
					"timed out after %s waiting for transaction %s to commit",
					c.config.CommitTimeout,
					txID,
				),
			}
		case <-ctx.Done():
			return commitResult{
				peerID: peerID,
				err: fault.New(
					fault.KindCommitTimeout,
					"canceled while waiting for transaction %s to commit: %v",
					txID,
					ctx.Err(),
				),
			}
		}
	}
}

// Query runs a read-only invocation against the caller organization's query
// peers, failing over between them.
func (c *Coordinator) Query(ctx context.Context, req Request) ([]byte, error) {
	org, err := creatorOrg(req.Creator)
	if err != nil {
		return nil, err
	}
	queryPeers := c.config.Network.OrgQueryPeers(req.ChannelID, org)
	if len(queryPeers) == 0 {
		return nil, fault.Configuration(
			"there are no query peers of organization %s on channel %s",
			org,
			req.ChannelID,
		)
	}
	proposal := ledger.Proposal{
		TxID:      uuid.NewString(),
		ChannelID: req.ChannelID,
		Chaincode: req.Chaincode,
		Fcn:       req.Fcn,
		Args:      req.Args,
		Creator:   req.Creator,
		Timestamp: time.Now(),
	}
	var merr *multierror.Error
	for _, p := range queryPeers {
		payload, err := p.Query(ctx, proposal)
		if err == nil {
			c.countQuery(req.ChannelID, "ok")
			return payload, nil
		}
		// A chaincode-level rejection is the answer, not a peer failure.
		if kind := fault.KindOf(err); kind != "" &&
			kind != fault.KindConfiguration {
			c.countQuery(req.ChannelID, "rejected")
			return nil, err
		}
		merr = multierror.Append(
			merr,
			fmt.Errorf("peer %s: %w", p.ID(), err),
		)
	}
	c.countQuery(req.ChannelID, "error")
	return nil, fault.Wrap(
		merr.ErrorOrNil(),
		fault.KindQuery,
		"query",
		req.ChannelID,
	)
}
