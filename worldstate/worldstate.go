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

// Package worldstate implements the versioned key/value state that backs a
// peer's view of one channel. Entries carry a monotonically increasing
// version used for multi-version concurrency validation when a transaction's
// write set is applied at commit.
package worldstate

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"
)

// ErrVersionConflict is returned by Apply when a key read during simulation
// was modified by a concurrent transaction before commit.
var ErrVersionConflict = errors.New("read version conflict")

// Version is the commit version of a world-state entry. Version zero means
// the key is absent.
type Version uint64

// KV is a single world-state entry as returned by range scans.
type KV struct {
	Key     string
	Value   []byte
	Version Version
}

// KeyVersion records one entry of a transaction's read set.
type KeyVersion struct {
	Key     string
	Version Version
}

// KeyValue records one entry of a transaction's write set.
type KeyValue struct {
	Key    string
	Value  []byte
	Delete bool
}

type StoreConfig struct {
	Logger *slog.Logger
	// DataDir is the on-disk location of the store. Empty means in-memory.
	DataDir string
	// Name identifies the store in logs, conventionally "<peer>/<channel>".
	Name string
}

// Store is a badger-backed versioned KV store.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	name   string
}

func NewStore(cfg StoreConfig) (*Store, error) {
	s := &Store{
		logger: cfg.Logger,
		name:   cfg.Name,
	}
	if s.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	var opts badger.Options
	if cfg.DataDir == "" {
		opts = badger.DefaultOptions("").
			WithLogger(newBadgerLogger(s.logger)).
			WithLoggingLevel(badger.WARNING).
			WithInMemory(true)
	} else {
		if _, err := os.Stat(cfg.DataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		opts = badger.DefaultOptions(filepath.Join(cfg.DataDir, "state")).
			WithLogger(newBadgerLogger(s.logger)).
			WithLoggingLevel(badger.WARNING)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	s.db = db
	return s, nil
}

func (s *Store) Name() string {
	return s.name
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value and version for a key. A missing key is not an
// error: it returns a nil value and version zero.
func (s *Store) Get(key string) ([]byte, Version, error) {
	var value []byte
	var version Version
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		version, value, err = decodeEntry(raw)
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("world state get %q: %w", key, err)
	}
	return value, version, nil
}

// RangeScan returns all entries with startKey <= key < endKey in key order.
func (s *Store) RangeScan(startKey, endKey string) ([]KV, error) {
	var results []KV
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		it := txn.NewIterator(iterOpts)
		defer it.Close()
		for it.Seek([]byte(startKey)); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if endKey != "" && key >= endKey {
				break
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			version, value, err := decodeEntry(raw)
			if err != nil {
				return err
			}
			results = append(results, KV{
				Key:     key,
				Value:   value,
				Version: version,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf(
			"world state scan [%q,%q): %w",
			startKey,
			endKey,
			err,
		)
	}
	return results, nil
}

// Apply validates the read set against current versions and applies the
// write set in a single atomic badger transaction, bumping the version of
// every written key. A stale read returns ErrVersionConflict and nothing is
// written.
func (s *Store) Apply(readSet []KeyVersion, writeSet []KeyValue) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, rs := range readSet {
			current, err := entryVersion(txn, rs.Key)
			if err != nil {
				return err
			}
			if current != rs.Version {
				return fmt.Errorf(
					"%w: key %q read at version %d, now %d",
					ErrVersionConflict,
					rs.Key,
					rs.Version,
					current,
				)
			}
		}
		for _, ws := range writeSet {
			if ws.Delete {
				if err := txn.Delete([]byte(ws.Key)); err != nil {
					return err
				}
				continue
			}
			current, err := entryVersion(txn, ws.Key)
			if err != nil {
				return err
			}
			entry := encodeEntry(current+1, ws.Value)
			if err := txn.Set([]byte(ws.Key), entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// Put writes a key outside of transaction simulation. It exists for
// bootstrap seeding and tests; regular mutations flow through Apply.
func (s *Store) Put(key string, value []byte) error {
	return s.Apply(nil, []KeyValue{{Key: key, Value: value}})
}

func entryVersion(txn *badger.Txn, key string) (Version, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}
	version, _, err := decodeEntry(raw)
	return version, err
}

// Entries are stored as an 8-byte big-endian version followed by the raw
// document bytes.
func encodeEntry(version Version, value []byte) []byte {
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(version))
	copy(buf[8:], value)
	return buf
}

func decodeEntry(raw []byte) (Version, []byte, error) {
	if len(raw) < 8 {
		return 0, nil, fmt.Errorf("malformed state entry: %d bytes", len(raw))
	}
	version := Version(binary.BigEndian.Uint64(raw[:8]))
	return version, raw[8:], nil
}
