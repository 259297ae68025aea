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

// Package crucible wires a full in-process network node: the simulated
// fabric (peers, orderer, channels, chaincodes), the transaction
// coordinator, the off-chain workflow service, and the scheduled phase
// sweeper.
package crucible

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/crucible-ledger/crucible/chaincode"
	"github.com/crucible-ledger/crucible/coordinator"
	"github.com/crucible-ledger/crucible/event"
	"github.com/crucible-ledger/crucible/network"
	"github.com/crucible-ledger/crucible/topology"
	"github.com/crucible-ledger/crucible/workflow"
)

type Node struct {
	eventBus     *event.EventBus
	network      *network.Network
	coordinator  *coordinator.Coordinator
	workflow     *workflow.Service
	cron         *cron.Cron
	config       Config
	ready        chan struct{}
	done         chan struct{}
	shutdownOnce sync.Once
}

func New(cfg Config) (*Node, error) {
	if cfg.topologyConfig == nil {
		cfg.topologyConfig = topology.Default()
	}
	if err := cfg.topologyConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := cron.ParseStandard(cfg.phaseSweepSchedule); err != nil {
		return nil, fmt.Errorf(
			"invalid phase sweep schedule %q: %w",
			cfg.phaseSweepSchedule,
			err,
		)
	}
	n := &Node{
		config:   cfg,
		eventBus: event.NewEventBus(cfg.promRegistry),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	return n, nil
}

// Run assembles the network and blocks until Stop is called.
func (n *Node) Run() error {
	net, err := network.New(network.Config{
		Logger:       n.config.logger,
		EventBus:     n.eventBus,
		PromRegistry: n.config.promRegistry,
		Topology:     n.config.topologyConfig,
		Chaincodes: map[string]chaincode.Chaincode{
			"review": chaincode.NewReviewChaincode(n.config.logger),
			"client": chaincode.NewClientChaincode(n.config.logger),
			"users":  chaincode.NewUsersChaincode(n.config.logger),
		},
		DataDir:      n.config.dataDir,
		BatchTimeout: n.config.batchTimeout,
		MaxBlockSize: n.config.maxBlockSize,
	})
	if err != nil {
		return fmt.Errorf("failed to build network: %w", err)
	}
	n.network = net
	coord, err := coordinator.New(coordinator.Config{
		Logger:        n.config.logger,
		Network:       net,
		PromRegistry:  n.config.promRegistry,
		CommitTimeout: n.config.commitTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to build coordinator: %w", err)
	}
	n.coordinator = coord
	svc, err := workflow.New(workflow.Config{
		Logger:      n.config.logger,
		Coordinator: coord,
	})
	if err != nil {
		return fmt.Errorf("failed to build workflow service: %w", err)
	}
	n.workflow = svc
	n.network.Start()
	if err := n.startPhaseSweeper(); err != nil {
		return err
	}
	close(n.ready)

	// Wait for shutdown signal
	<-n.done
	return nil
}

// Ready returns a channel that closes once the network is assembled and the
// node is accepting work.
func (n *Node) Ready() <-chan struct{} {
	return n.ready
}

// sweepTimeout bounds one phase sweep: twice the commit window covers the
// advance invoke plus the completion projection, with a floor when no commit
// timeout was configured.
func (n *Node) sweepTimeout() time.Duration {
	if n.config.commitTimeout <= 0 {
		return time.Minute
	}
	return 2 * n.config.commitTimeout
}

func (n *Node) startPhaseSweeper() error {
	n.cron = cron.New()
	_, err := n.cron.AddFunc(n.config.phaseSweepSchedule, func() {
		ctx, cancel := context.WithTimeout(
			context.Background(),
			n.sweepTimeout(),
		)
		defer cancel()
		advanced, err := n.workflow.AdvanceDuePhases(ctx, time.Now())
		if err != nil {
			n.config.logger.Error("phase sweep failed", "error", err)
			return
		}
		if advanced > 0 {
			n.config.logger.Info("phase sweep", "advanced", advanced)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule phase sweeper: %w", err)
	}
	n.cron.Start()
	n.config.logger.Info(
		"phase sweeper started",
		"schedule", n.config.phaseSweepSchedule,
	)
	return nil
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	shutdownTimeout := 30 * time.Second
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	n.config.logger.Debug("starting graceful shutdown")

	var err error

	// Phase 1: stop accepting new work
	if n.cron != nil {
		stopCtx := n.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(shutdownTimeout):
			n.config.logger.Warn("phase sweeper did not stop in time")
		}
	}

	// Phase 2: stop the ordering service and close the peers
	if n.network != nil {
		if stopErr := n.network.Stop(); stopErr != nil {
			err = fmt.Errorf("network shutdown: %w", stopErr)
		}
	}

	// Phase 3: cleanup
	if n.eventBus != nil {
		n.eventBus.Stop()
	}

	n.config.logger.Debug("graceful shutdown complete")
	close(n.done)
	return err
}

// Workflow exposes the off-chain orchestration service.
func (n *Node) Workflow() *workflow.Service {
	return n.workflow
}

// Coordinator exposes the transaction coordinator.
func (n *Node) Coordinator() *coordinator.Coordinator {
	return n.coordinator
}

// Network exposes the simulated fabric.
func (n *Node) Network() *network.Network {
	return n.network
}
