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

// Package orderer implements the solo ordering service: it sequences
// endorsed transactions per channel into numbered blocks and delivers them
// to every committing peer on the channel.
package orderer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/crucible-ledger/crucible/fault"
	"github.com/crucible-ledger/crucible/ledger"
)

const (
	DefaultBatchTimeout = 100 * time.Millisecond
	DefaultMaxBlockSize = 10
	submitQueueSize     = 256
)

// Committer receives ordered blocks. Peers satisfy this.
type Committer interface {
	ID() string
	CommitBlock(block *ledger.Block) error
}

type Config struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// BatchTimeout bounds how long a non-empty batch waits before the block
	// is cut.
	BatchTimeout time.Duration
	// MaxBlockSize cuts a block as soon as this many transactions queue up.
	MaxBlockSize int
}

type channelChain struct {
	incoming   chan ledger.Transaction
	committers []Committer
	nextNumber uint64
}

// SoloOrderer is a single-node ordering service. Each channel gets its own
// sequencing goroutine, so ordering is total per channel and independent
// across channels.
type SoloOrderer struct {
	config   Config
	logger   *slog.Logger
	metrics  *ordererMetrics
	channels map[string]*channelChain
	mu       sync.RWMutex
	wg       sync.WaitGroup
	stopCh   chan struct{}
	started  bool
}

type ordererMetrics struct {
	blocksCut    *prometheus.CounterVec
	txOrdered    *prometheus.CounterVec
	deliveryErrs *prometheus.CounterVec
}

func New(cfg Config) *SoloOrderer {
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = DefaultBatchTimeout
	}
	if cfg.MaxBlockSize <= 0 {
		cfg.MaxBlockSize = DefaultMaxBlockSize
	}
	o := &SoloOrderer{
		config:   cfg,
		logger:   cfg.Logger.With("component", "orderer"),
		channels: make(map[string]*channelChain),
		stopCh:   make(chan struct{}),
	}
	if cfg.PromRegistry != nil {
		o.initMetrics()
	}
	return o
}

func (o *SoloOrderer) initMetrics() {
	promautoFactory := promauto.With(o.config.PromRegistry)
	o.metrics = &ordererMetrics{}
	o.metrics.blocksCut = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crucible_orderer_blocks_cut_total",
			Help: "blocks cut by channel",
		},
		[]string{"channel"},
	)
	o.metrics.txOrdered = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crucible_orderer_tx_ordered_total",
			Help: "transactions ordered by channel",
		},
		[]string{"channel"},
	)
	o.metrics.deliveryErrs = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crucible_orderer_delivery_errors_total",
			Help: "block delivery failures by channel and peer",
		},
		[]string{"channel", "peer"},
	)
}

// CreateChannel registers a channel and the peers its blocks are delivered
// to. Must be called before Start.
func (o *SoloOrderer) CreateChannel(
	channelID string,
	committers ...Committer,
) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return fault.Configuration(
			"cannot create channel %s after the orderer started",
			channelID,
		)
	}
	if _, ok := o.channels[channelID]; ok {
		return fault.Configuration("channel %s already exists", channelID)
	}
	if len(committers) == 0 {
		return fault.Configuration(
			"channel %s requires at least one committing peer",
			channelID,
		)
	}
	o.channels[channelID] = &channelChain{
		incoming:   make(chan ledger.Transaction, submitQueueSize),
		committers: committers,
		nextNumber: 1,
	}
	return nil
}

// Start launches one sequencing goroutine per channel.
func (o *SoloOrderer) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return
	}
	o.started = true
	for channelID, chain := range o.channels {
		o.wg.Add(1)
		go o.sequence(channelID, chain)
	}
	o.logger.Info("orderer started", "channels", len(o.channels))
}

// Stop drains no further transactions and waits for the sequencing
// goroutines to exit. Queued transactions are dropped; their submitters time
// out waiting for commit events, which is indistinguishable from any other
// lost transaction.
func (o *SoloOrderer) Stop() {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()
	close(o.stopCh)
	o.wg.Wait()
}

// Submit queues an endorsed transaction for ordering. A nil error means the
// transaction was accepted for ordering, not that it committed.
func (o *SoloOrderer) Submit(
	ctx context.Context,
	tx ledger.Transaction,
) error {
	o.mu.RLock()
	chain, ok := o.channels[tx.ChannelID]
	started := o.started
	o.mu.RUnlock()
	if !ok {
		return fault.Configuration(
			"unknown channel %s",
			tx.ChannelID,
		)
	}
	if !started {
		return fault.Configuration("orderer is not started")
	}
	select {
	case chain.incoming <- tx:
		if o.metrics != nil {
			o.metrics.txOrdered.WithLabelValues(tx.ChannelID).Inc()
		}
		return nil
	case <-o.stopCh:
		return fault.New(fault.KindOrdering, "orderer is shutting down")
	case <-ctx.Done():
		return fmt.Errorf("submit to channel %s: %w", tx.ChannelID, ctx.Err())
	}
}

// sequence is the per-channel main loop: accumulate transactions, cut a
// block on size or timeout, deliver it to every committer in order.
func (o *SoloOrderer) sequence(channelID string, chain *channelChain) {
	defer o.wg.Done()
	var batch []ledger.Transaction
	timer := time.NewTimer(o.config.BatchTimeout)
	defer timer.Stop()
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-o.stopCh:
			return
		case tx := <-chain.incoming:
			if len(batch) == 0 {
				timer.Reset(o.config.BatchTimeout)
			}
			batch = append(batch, tx)
			if len(batch) >= o.config.MaxBlockSize {
				if !timer.Stop() {
					<-timer.C
				}
				o.cutBlock(channelID, chain, batch)
				batch = nil
			}
		case <-timer.C:
			if len(batch) > 0 {
				o.cutBlock(channelID, chain, batch)
				batch = nil
			}
		}
	}
}

func (o *SoloOrderer) cutBlock(
	channelID string,
	chain *channelChain,
	batch []ledger.Transaction,
) {
	block := &ledger.Block{
		Number:       chain.nextNumber,
		ChannelID:    channelID,
		Timestamp:    time.Now(),
		Transactions: batch,
	}
	chain.nextNumber++
	if o.metrics != nil {
		o.metrics.blocksCut.WithLabelValues(channelID).Inc()
	}
	o.logger.Debug(
		"block cut",
		"channel", channelID,
		"block", block.Number,
		"tx_count", len(batch),
	)
	for _, committer := range chain.committers {
		if err := committer.CommitBlock(block); err != nil {
			// A peer that cannot commit has diverged; the block still goes
			// to the remaining peers.
			o.logger.Error(
				"block delivery failed",
				"channel", channelID,
				"block", block.Number,
				"peer", committer.ID(),
				"error", err,
			)
			if o.metrics != nil {
				o.metrics.deliveryErrs.
					WithLabelValues(channelID, committer.ID()).
					Inc()
			}
		}
	}
}
