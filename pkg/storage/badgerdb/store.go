// Copyright © 2018 One Concern

// Package badgerdb implements the runtime store on an embedded badger LSM
// database. This is the production backend: record merges are grouped into
// transactions so a crash never leaves a half written record, and committed
// batches stay durable whatever happens to the rest of the stream.
package badgerdb

import (
	"context"
	"sync"

	"github.com/dgraph-io/badger/v3"

	"github.com/oneconcern/trawler/pkg/convert"
	"github.com/oneconcern/trawler/pkg/errors"
	"github.com/oneconcern/trawler/pkg/model"
	"github.com/oneconcern/trawler/pkg/storage"
	"github.com/oneconcern/trawler/pkg/storage/status"
)

// records per transaction on the SetRecords path
const batchSize = 1024

// Option alters store construction.
type Option func(*Store)

// WithInMemory keeps the whole database in memory. Used by tests.
func WithInMemory() Option {
	return func(s *Store) {
		s.inMemory = true
	}
}

// Store is a badger backed storage.Store.
type Store struct {
	path     string
	inMemory bool
	db       *badger.DB
	closeOne sync.Once
}

// New opens (creating if needed) a badger runtime store at path.
func New(path string, opts ...Option) (*Store, error) {
	s := &Store{path: path}
	for _, apply := range opts {
		apply(s)
	}
	pth := path
	if s.inMemory {
		pth = ""
	}
	bopts := badger.LSMOnlyOptions(pth).WithLoggingLevel(badger.WARNING)
	if s.inMemory {
		bopts = bopts.WithInMemory(true)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, status.ErrStorageAPI.WrapMessage("opening badger at %q: %v", path, err)
	}
	s.db = db
	return s, nil
}

func (s *Store) String() string {
	if s.inMemory {
		return "badger@memory"
	}
	return "badger@" + s.path
}

func badgerRewriteError(key string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return status.ErrNotFound.WrapMessage("key %q", key)
	default:
		return status.ErrStorageAPI.Wrap(err)
	}
}

func getValue(txn *badger.Txn, key string, value interface{}) error {
	item, err := txn.Get(convert.UnsafeStringToBytes(key))
	if err != nil {
		return badgerRewriteError(key, err)
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return badgerRewriteError(key, err)
	}
	return storage.DecodeValue(data, value)
}

func setValue(txn *badger.Txn, key string, value interface{}) error {
	data, err := storage.EncodeValue(value)
	if err != nil {
		return err
	}
	if err := txn.Set(convert.UnsafeStringToBytes(key), data); err != nil {
		return badgerRewriteError(key, err)
	}
	return nil
}

func (s *Store) GetByKey(ctx context.Context, key string, value interface{}) error {
	if s.db == nil {
		return status.ErrClosed
	}
	return s.db.View(func(txn *badger.Txn) error {
		return getValue(txn, key, value)
	})
}

func (s *Store) SetByKey(ctx context.Context, key string, value interface{}) error {
	if s.db == nil {
		return status.ErrClosed
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return setValue(txn, key, value)
	})
}

func (s *Store) SetRecords(ctx context.Context, records model.RecordIterator, merge storage.MergePolicy) (storage.MergeStats, error) {
	var stats storage.MergeStats
	defer func() { _ = records.Close() }()
	if s.db == nil {
		return stats, status.ErrClosed
	}

	batch := make([]model.Record, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		saved := stats
		err := s.db.Update(func(txn *badger.Txn) error {
			for _, incoming := range batch {
				if err := mergeOne(txn, incoming, merge, &stats); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			// the transaction did not commit, its tallies do not count
			stats = saved
		}
		batch = batch[:0]
		return err
	}

	for records.Next() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		incoming := records.Record()
		if incoming.PrimaryKey() == "" {
			stats.Skipped++
			continue
		}
		batch = append(batch, incoming)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := flush(); err != nil {
		return stats, err
	}
	return stats, records.Err()
}

// mergeOne resolves one record inside a write transaction. Reads observe the
// transaction's own pending writes, so duplicate keys within a batch merge in
// stream order.
func mergeOne(txn *badger.Txn, incoming model.Record, merge storage.MergePolicy, stats *storage.MergeStats) error {
	key := model.RecordKey(incoming.PrimaryKey())

	var existing model.Record
	found := true
	if err := getValue(txn, key, &existing); err != nil {
		if !errors.Is(err, status.ErrNotFound) {
			return err
		}
		found = false
	}

	toWrite, outcome := storage.ResolveMerge(existing, found, incoming, merge)
	switch outcome {
	case storage.OutcomeNew:
		stats.New++
	case storage.OutcomeUpdated:
		stats.Updated++
	case storage.OutcomeUnchanged:
		stats.Unchanged++
		return nil
	}
	return setValue(txn, key, toWrite)
}

func (s *Store) ApplyCorrections(ctx context.Context, corrections []model.Correction) (int, error) {
	if s.db == nil {
		return 0, status.ErrClosed
	}
	applied := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, correction := range corrections {
			if err := ctx.Err(); err != nil {
				return err
			}
			pk := correction.PrimaryKey()
			if pk == "" {
				continue
			}
			key := model.RecordKey(pk)

			var record model.Record
			if err := getValue(txn, key, &record); err != nil {
				if errors.Is(err, status.ErrNotFound) {
					continue
				}
				return err
			}
			if !storage.AmendRecord(record, correction) {
				continue
			}
			if err := setValue(txn, key, record); err != nil {
				return err
			}
			applied++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return applied, nil
}

func (s *Store) ActivePids(ctx context.Context, pids []int32) error {
	return s.SetByKey(ctx, model.KeyActivePids, pids)
}

func (s *Store) Close() error {
	var err error
	s.closeOne.Do(func() {
		if s.db != nil {
			err = s.db.Close()
			if err == nil {
				s.db = nil
			}
		}
	})
	return err
}
