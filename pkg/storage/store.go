// Copyright © 2018 One Concern

package storage

import (
	"context"

	"github.com/oneconcern/trawler/pkg/model"
)

// MergePolicy reconciles an incoming record with the record already stored
// under the same primary key. The policy mutates existing in place and
// reports whether the mutated record must be persisted. existing arrives in
// its JSON decoded form, so field values follow decoded conventions (numbers
// as float64, branch sets as arrays).
type MergePolicy func(existing, incoming model.Record) bool

// Store is the runtime storage every pipeline stage reads and writes.
//
// It is a flat K/V model: scalar values and cursors live under explicit
// keys, harvested records under their primary key. Implementations must
// make each write durable before returning, since cursor advancement relies
// on previously acknowledged record writes surviving a crash.
type Store interface {
	String() string

	// GetByKey decodes the value stored under key into value. Returns
	// status.ErrNotFound when the key was never written.
	GetByKey(ctx context.Context, key string, value interface{}) error

	// SetByKey stores a value under key, replacing any previous value.
	SetByKey(ctx context.Context, key string, value interface{}) error

	// SetRecords drains the iterator, reconciling every record with storage
	// through the merge policy. A nil policy overwrites unconditionally.
	// Records merged before an iterator failure stay durable; the failure is
	// returned so the caller leaves its cursor untouched. The iterator is
	// closed on return.
	SetRecords(ctx context.Context, records model.RecordIterator, merge MergePolicy) (MergeStats, error)

	// ApplyCorrections amends stored records in place. Corrections aiming at
	// absent records are skipped. Returns how many records changed.
	ApplyCorrections(ctx context.Context, corrections []model.Correction) (int, error)

	// ActivePids replaces the set of live consumer pids.
	ActivePids(ctx context.Context, pids []int32) error

	Close() error
}

// MergeStats tallies the outcome of one SetRecords drain.
type MergeStats struct {
	New       int // records stored for the first time
	Updated   int // existing records rewritten
	Unchanged int // merges resolved to a no-op
	Skipped   int // records without a primary key
}

// Written counts records that reached storage.
func (m MergeStats) Written() int {
	return m.New + m.Updated
}

// Total counts records drained from the iterator.
func (m MergeStats) Total() int {
	return m.New + m.Updated + m.Unchanged + m.Skipped
}

// Add folds other into m.
func (m *MergeStats) Add(other MergeStats) {
	m.New += other.New
	m.Updated += other.Updated
	m.Unchanged += other.Unchanged
	m.Skipped += other.Skipped
}

// MergeOutcome tells what a merge resolution decided.
type MergeOutcome int

const (
	// OutcomeNew stores the incoming record as is.
	OutcomeNew MergeOutcome = iota
	// OutcomeUpdated persists the reconciled record.
	OutcomeUpdated
	// OutcomeUnchanged leaves storage untouched.
	OutcomeUnchanged
)

// ResolveMerge applies the merge contract for one record: first sighting
// stores incoming, a nil policy overwrites, otherwise the policy decides
// whether the mutated existing record is persisted. Shared by every Store
// implementation so merge semantics cannot drift between backends.
func ResolveMerge(existing model.Record, found bool, incoming model.Record, merge MergePolicy) (model.Record, MergeOutcome) {
	if !found {
		return incoming, OutcomeNew
	}
	if merge == nil {
		return incoming, OutcomeUpdated
	}
	if merge(existing, incoming) {
		return existing, OutcomeUpdated
	}
	return nil, OutcomeUnchanged
}

// AmendRecord lays correction fields over a stored record, reporting whether
// anything changed. Shared by Store implementations so corrections stay
// idempotent on every backend.
func AmendRecord(record model.Record, correction model.Correction) bool {
	changed := false
	for field, value := range correction {
		current, present := record[field]
		if field == model.FieldBranches {
			cur, _ := model.StringSetFromAny(current)
			next, ok := model.StringSetFromAny(value)
			if ok && present && cur.Equal(next) {
				continue
			}
		} else if present && model.ValueEqual(current, value) {
			continue
		}
		record[field] = value
		changed = true
	}
	return changed
}
