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

// Package commitlog persists the per-peer history of committed blocks and
// transaction validation outcomes in a SQLite database.
package commitlog

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// TransactionRecord is one transaction's commit outcome on this peer.
type TransactionRecord struct {
	ID          uint   `gorm:"primarykey"`
	TxID        string `gorm:"uniqueIndex:idx_tx_channel"`
	ChannelID   string `gorm:"uniqueIndex:idx_tx_channel"`
	BlockNumber uint64 `gorm:"index"`
	Chaincode   string
	Fcn         string
	Code        string
	CommittedAt time.Time
}

// BlockRecord is one committed block on this peer.
type BlockRecord struct {
	ID          uint   `gorm:"primarykey"`
	ChannelID   string `gorm:"uniqueIndex:idx_block_channel"`
	BlockNumber uint64 `gorm:"uniqueIndex:idx_block_channel"`
	TxCount     int
	CommittedAt time.Time
}

// Store records commit history. Uses an in-memory database if dataDir is
// empty.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

func New(dataDir, name string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	var commitDb *gorm.DB
	var err error
	if dataDir == "" {
		// A named shared-cache DSN keeps each peer's in-memory database
		// separate while letting its own connections share it.
		commitDb, err = gorm.Open(
			sqlite.Open(
				fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
			),
			&gorm.Config{
				Logger:                 gormlogger.Discard,
				SkipDefaultTransaction: true,
			},
		)
		if err != nil {
			return nil, err
		}
	} else {
		if _, err := os.Stat(dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(dataDir, fs.ModePerm); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		commitDbPath := filepath.Join(dataDir, "commitlog.sqlite")
		commitConnOpts := "_pragma=journal_mode(WAL)&_pragma=sync(OFF)"
		commitDb, err = gorm.Open(
			sqlite.Open(
				fmt.Sprintf("file:%s?%s", commitDbPath, commitConnOpts),
			),
			&gorm.Config{
				Logger:                 gormlogger.Discard,
				SkipDefaultTransaction: true,
			},
		)
		if err != nil {
			return nil, err
		}
	}
	s := &Store{
		db:     commitDb,
		logger: logger,
	}
	for _, model := range []any{
		&TransactionRecord{},
		&BlockRecord{},
	} {
		if err := s.db.AutoMigrate(model); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// RecordBlock stores a block and its transaction outcomes atomically.
func (s *Store) RecordBlock(
	block *BlockRecord,
	transactions []TransactionRecord,
) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if result := tx.Create(block); result.Error != nil {
			return result.Error
		}
		if len(transactions) > 0 {
			if result := tx.Create(&transactions); result.Error != nil {
				return result.Error
			}
		}
		return nil
	})
}

// Transaction returns the commit record for a transaction id on a channel,
// or nil when the transaction has not committed on this peer.
func (s *Store) Transaction(
	channelID string,
	txID string,
) (*TransactionRecord, error) {
	record := &TransactionRecord{}
	result := s.db.
		Where("channel_id = ? AND tx_id = ?", channelID, txID).
		First(record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return record, nil
}

// BlockHeight returns the number of the latest committed block on a channel,
// or zero when no block has committed.
func (s *Store) BlockHeight(channelID string) (uint64, error) {
	var height uint64
	result := s.db.Model(&BlockRecord{}).
		Where("channel_id = ?", channelID).
		Select("COALESCE(MAX(block_number), 0)").
		Scan(&height)
	if result.Error != nil {
		return 0, result.Error
	}
	return height, nil
}

// Blocks returns the commit records for a channel in block order.
func (s *Store) Blocks(channelID string) ([]BlockRecord, error) {
	var blocks []BlockRecord
	result := s.db.
		Where("channel_id = ?", channelID).
		Order("block_number").
		Find(&blocks)
	if result.Error != nil {
		return nil, result.Error
	}
	return blocks, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
