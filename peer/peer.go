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

// Package peer implements an organization peer: it simulates proposals
// against its world state to produce endorsements, serves queries, and
// commits ordered blocks with read-set validation.
package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/crucible-ledger/crucible/chaincode"
	"github.com/crucible-ledger/crucible/event"
	"github.com/crucible-ledger/crucible/fault"
	"github.com/crucible-ledger/crucible/identity"
	"github.com/crucible-ledger/crucible/ledger"
	"github.com/crucible-ledger/crucible/peer/commitlog"
	"github.com/crucible-ledger/crucible/worldstate"
)

// Roles controls which duties a peer performs in its organization.
type Roles struct {
	// Endorser peers simulate proposals and sign endorsements.
	Endorser bool
	// ChaincodeQuery peers serve read-only queries.
	ChaincodeQuery bool
	// EventHub peers are the ones clients watch for commit events.
	EventHub bool
}

type Config struct {
	Logger       *slog.Logger
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	ID           string
	Org          string
	// DataDir is the on-disk location for world state and the commit log.
	// Empty means everything stays in memory.
	DataDir string
	Roles   Roles
}

type channelState struct {
	store      *worldstate.Store
	chaincodes map[string]chaincode.Chaincode
	height     uint64
	commitMu   sync.Mutex
}

// Peer hosts one ledger per joined channel.
type Peer struct {
	config    Config
	logger    *slog.Logger
	metrics   *peerMetrics
	commitlog *commitlog.Store
	channels  map[string]*channelState
	mu        sync.RWMutex
}

func New(cfg Config) (*Peer, error) {
	if cfg.ID == "" {
		return nil, fault.Configuration("peer requires an id")
	}
	if cfg.Org == "" {
		return nil, fault.Configuration("peer %s requires an organization", cfg.ID)
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	p := &Peer{
		config:   cfg,
		logger:   cfg.Logger.With("component", "peer", "peer", cfg.ID),
		channels: make(map[string]*channelState),
	}
	clog, err := commitlog.New(p.dataDir("commitlog"), cfg.ID, p.logger)
	if err != nil {
		return nil, fmt.Errorf("peer %s: open commit log: %w", cfg.ID, err)
	}
	p.commitlog = clog
	if cfg.PromRegistry != nil {
		p.initMetrics()
	}
	return p, nil
}

func (p *Peer) ID() string {
	return p.config.ID
}

func (p *Peer) Org() string {
	return p.config.Org
}

// MSP returns the MSP id of the peer's organization.
func (p *Peer) MSP() string {
	return identity.MSPID(p.config.Org)
}

func (p *Peer) Roles() Roles {
	return p.config.Roles
}

// CommitLog exposes the peer's commit history store.
func (p *Peer) CommitLog() *commitlog.Store {
	return p.commitlog
}

func (p *Peer) dataDir(parts ...string) string {
	if p.config.DataDir == "" {
		return ""
	}
	return filepath.Join(
		append([]string{p.config.DataDir, p.config.ID}, parts...)...,
	)
}

// JoinChannel creates the peer's ledger for a channel.
func (p *Peer) JoinChannel(channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.channels[channelID]; ok {
		return fault.Configuration(
			"peer %s already joined channel %s",
			p.config.ID,
			channelID,
		)
	}
	store, err := worldstate.NewStore(worldstate.StoreConfig{
		Logger:  p.logger,
		DataDir: p.dataDir("channels", channelID),
		Name:    p.config.ID + "/" + channelID,
	})
	if err != nil {
		return fmt.Errorf(
			"peer %s: open world state for channel %s: %w",
			p.config.ID,
			channelID,
			err,
		)
	}
	p.channels[channelID] = &channelState{
		store:      store,
		chaincodes: make(map[string]chaincode.Chaincode),
	}
	p.logger.Info("joined channel", "channel", channelID)
	return nil
}

// InstallChaincode installs a chaincode on a joined channel and runs its
// instantiation hook. Writes made during instantiation are applied directly.
func (p *Peer) InstallChaincode(
	channelID string,
	name string,
	cc chaincode.Chaincode,
) error {
	ch, err := p.channel(channelID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	if _, ok := ch.chaincodes[name]; ok {
		p.mu.Unlock()
		return fault.Configuration(
			"chaincode %s already installed on channel %s",
			name,
			channelID,
		)
	}
	ch.chaincodes[name] = cc
	p.mu.Unlock()

	sim := ch.store.NewSimulation()
	stub := newSimulationStub(sim, ledger.Proposal{
		TxID:      "instantiate-" + name,
		ChannelID: channelID,
		Chaincode: name,
		Timestamp: time.Now(),
	})
	if err := cc.Init(stub); err != nil {
		return fmt.Errorf(
			"instantiate chaincode %s on channel %s: %w",
			name,
			channelID,
			err,
		)
	}
	readSet, writeSet := sim.Results()
	if len(writeSet) > 0 {
		if err := ch.store.Apply(readSet, writeSet); err != nil {
			return fmt.Errorf(
				"apply instantiation writes for chaincode %s: %w",
				name,
				err,
			)
		}
	}
	p.logger.Info(
		"chaincode installed",
		"channel", channelID,
		"chaincode", name,
	)
	return nil
}

func (p *Peer) channel(channelID string) (*channelState, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ch, ok := p.channels[channelID]
	if !ok {
		return nil, fault.Configuration(
			"peer %s has not joined channel %s",
			p.config.ID,
			channelID,
		)
	}
	return ch, nil
}

func (p *Peer) chaincodeOn(
	channelID string,
	name string,
) (*channelState, chaincode.Chaincode, error) {
	ch, err := p.channel(channelID)
	if err != nil {
		return nil, nil, err
	}
	p.mu.RLock()
	cc, ok := ch.chaincodes[name]
	p.mu.RUnlock()
	if !ok {
		return nil, nil, fault.Configuration(
			"chaincode %s is not installed on channel %s",
			name,
			channelID,
		)
	}
	return ch, cc, nil
}

// Endorse simulates a proposal and returns the endorsement carrying the
// resulting read and write sets. Chaincode failures are returned as errors,
// never as endorsements.
func (p *Peer) Endorse(
	ctx context.Context,
	proposal ledger.Proposal,
) (*ledger.Endorsement, error) {
	if !p.config.Roles.Endorser {
		return nil, fault.Configuration(
			"peer %s is not an endorsing peer",
			p.config.ID,
		)
	}
	if err := proposal.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch, cc, err := p.chaincodeOn(proposal.ChannelID, proposal.Chaincode)
	if err != nil {
		p.countEndorsement(proposal.ChannelID, "error")
		return nil, err
	}
	sim := ch.store.NewSimulation()
	stub := newSimulationStub(sim, proposal)
	payload, err := cc.Invoke(stub, proposal.Fcn, proposal.Args)
	if err != nil {
		p.countEndorsement(proposal.ChannelID, "rejected")
		p.logger.Debug(
			"proposal rejected",
			"channel", proposal.ChannelID,
			"chaincode", proposal.Chaincode,
			"fcn", proposal.Fcn,
			"tx_id", proposal.TxID,
			"error", err,
		)
		return nil, err
	}
	readSet, writeSet := sim.Results()
	p.countEndorsement(proposal.ChannelID, "endorsed")
	return &ledger.Endorsement{
		Endorser:  p.config.ID,
		ChannelID: proposal.ChannelID,
		TxID:      proposal.TxID,
		Payload:   payload,
		ReadSet:   readSet,
		WriteSet:  writeSet,
	}, nil
}

// Query simulates a proposal and returns its payload without producing an
// endorsement. Any staged writes are discarded.
func (p *Peer) Query(
	ctx context.Context,
	proposal ledger.Proposal,
) ([]byte, error) {
	if !p.config.Roles.ChaincodeQuery {
		return nil, fault.Configuration(
			"peer %s does not serve chaincode queries",
			p.config.ID,
		)
	}
	if err := proposal.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch, cc, err := p.chaincodeOn(proposal.ChannelID, proposal.Chaincode)
	if err != nil {
		return nil, err
	}
	sim := ch.store.NewSimulation()
	stub := newSimulationStub(sim, proposal)
	return cc.Invoke(stub, proposal.Fcn, proposal.Args)
}

// CommitBlock validates and applies an ordered block. Every transaction in
// the block gets a commit event with its validation code; only VALID
// transactions mutate world state.
func (p *Peer) CommitBlock(block *ledger.Block) error {
	ch, err := p.channel(block.ChannelID)
	if err != nil {
		return err
	}
	ch.commitMu.Lock()
	defer ch.commitMu.Unlock()

	txRecords := make([]commitlog.TransactionRecord, 0, len(block.Transactions))
	codes := make([]string, len(block.Transactions))
	for i, tx := range block.Transactions {
		code := event.TxValid
		if err := ch.store.Apply(tx.ReadSet, tx.WriteSet); err != nil {
			if errors.Is(err, worldstate.ErrVersionConflict) {
				code = event.TxMVCCReadConflict
			} else {
				code = event.TxInvalid
				p.logger.Warn(
					"transaction apply failed",
					"channel", block.ChannelID,
					"tx_id", tx.ID,
					"error", err,
				)
			}
		}
		codes[i] = code
		txRecords = append(txRecords, commitlog.TransactionRecord{
			TxID:        tx.ID,
			ChannelID:   block.ChannelID,
			BlockNumber: block.Number,
			Chaincode:   tx.Chaincode,
			Fcn:         tx.Fcn,
			Code:        code,
			CommittedAt: time.Now(),
		})
		if p.metrics != nil {
			p.metrics.txCommittedTotal.
				WithLabelValues(p.config.ID, block.ChannelID, code).
				Inc()
		}
	}
	if err := p.commitlog.RecordBlock(
		&commitlog.BlockRecord{
			ChannelID:   block.ChannelID,
			BlockNumber: block.Number,
			TxCount:     len(block.Transactions),
			CommittedAt: time.Now(),
		},
		txRecords,
	); err != nil {
		return fmt.Errorf(
			"record block %d on channel %s: %w",
			block.Number,
			block.ChannelID,
			err,
		)
	}
	ch.height = block.Number
	if p.metrics != nil {
		p.metrics.blockHeight.
			WithLabelValues(p.config.ID, block.ChannelID).
			Set(float64(block.Number))
	}
	p.logger.Debug(
		"block committed",
		"channel", block.ChannelID,
		"block", block.Number,
		"tx_count", len(block.Transactions),
	)
	p.publishCommitEvents(block, codes)
	return nil
}

func (p *Peer) publishCommitEvents(block *ledger.Block, codes []string) {
	if p.config.EventBus == nil {
		return
	}
	for i, tx := range block.Transactions {
		evtType := event.TxCommitEventType(p.config.ID)
		p.config.EventBus.Publish(evtType, event.NewEvent(
			evtType,
			event.TxCommitEvent{
				TxID:        tx.ID,
				ChannelID:   block.ChannelID,
				PeerID:      p.config.ID,
				BlockNumber: block.Number,
				Code:        codes[i],
			},
		))
	}
	evtType := event.BlockCommitEventType(block.ChannelID)
	p.config.EventBus.Publish(evtType, event.NewEvent(
		evtType,
		event.BlockCommitEvent{
			ChannelID:   block.ChannelID,
			PeerID:      p.config.ID,
			BlockNumber: block.Number,
			TxCount:     len(block.Transactions),
		},
	))
}

func (p *Peer) countEndorsement(channelID, outcome string) {
	if p.metrics == nil {
		return
	}
	p.metrics.endorsementsTotal.
		WithLabelValues(p.config.ID, channelID, outcome).
		Inc()
}

// BlockHeight returns the latest committed block number on a channel.
func (p *Peer) BlockHeight(channelID string) (uint64, error) {
	ch, err := p.channel(channelID)
	if err != nil {
		return 0, err
	}
	ch.commitMu.Lock()
	defer ch.commitMu.Unlock()
	return ch.height, nil
}

func (p *Peer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for channelID, ch := range p.channels {
		if err := ch.store.Close(); err != nil {
			errs = append(
				errs,
				fmt.Errorf("close channel %s state: %w", channelID, err),
			)
		}
	}
	if err := p.commitlog.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close commit log: %w", err))
	}
	return errors.Join(errs...)
}
