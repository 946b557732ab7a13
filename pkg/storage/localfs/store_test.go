// Copyright © 2018 One Concern

package localfs

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneconcern/trawler/pkg/errors"
	"github.com/oneconcern/trawler/pkg/model"
	"github.com/oneconcern/trawler/pkg/storage"
	"github.com/oneconcern/trawler/pkg/storage/status"
)

func setupStore(t testing.TB) (storage.Store, func()) {
	store, err := New(afero.NewMemMapFs())
	require.NoError(t, err)
	return store, func() { _ = store.Close() }
}

func TestGetSetByKey(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupStore(t)
	defer cleanup()

	var got string
	err := store.GetByKey(ctx, "vcs:git%3A%2F%2Fx:master", &got)
	assert.True(t, errors.Is(err, status.ErrNotFound))

	require.NoError(t, store.SetByKey(ctx, "vcs:git%3A%2F%2Fx:master", "abc123"))
	require.NoError(t, store.GetByKey(ctx, "vcs:git%3A%2F%2Fx:master", &got))
	assert.Equal(t, "abc123", got)

	// overwrite
	require.NoError(t, store.SetByKey(ctx, "vcs:git%3A%2F%2Fx:master", "def456"))
	require.NoError(t, store.GetByKey(ctx, "vcs:git%3A%2F%2Fx:master", &got))
	assert.Equal(t, "def456", got)
}

func TestKeysWithPathCharacters(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupStore(t)
	defer cleanup()

	key := model.VcsCursorKey("git://github.com/openstack/nova.git", "stable/havana")
	require.NoError(t, store.SetByKey(ctx, key, "head"))

	var got string
	require.NoError(t, store.GetByKey(ctx, key, &got))
	assert.Equal(t, "head", got)
}

func TestSetRecordsInsertAndOverwrite(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupStore(t)
	defer cleanup()

	stats, err := store.SetRecords(ctx, model.NewSliceIterator([]model.Record{
		{model.FieldPrimaryKey: "one", "value": "a"},
		{model.FieldPrimaryKey: "two", "value": "b"},
		{"value": "no primary key"},
	}), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.New)
	assert.Equal(t, 1, stats.Skipped)

	// no-merge mode overwrites unconditionally
	stats, err = store.SetRecords(ctx, model.NewSliceIterator([]model.Record{
		{model.FieldPrimaryKey: "one", "value": "changed"},
	}), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)

	var rec model.Record
	require.NoError(t, store.GetByKey(ctx, model.RecordKey("one"), &rec))
	assert.Equal(t, "changed", rec.GetString("value"))
}

func TestSetRecordsMergePolicy(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupStore(t)
	defer cleanup()

	merge := func(existing, incoming model.Record) bool {
		if incoming.GetString("value") == existing.GetString("value") {
			return false
		}
		existing["value"] = incoming["value"]
		return true
	}

	_, err := store.SetRecords(ctx, model.NewSliceIterator([]model.Record{
		{model.FieldPrimaryKey: "one", "value": "a"},
	}), merge)
	require.NoError(t, err)

	stats, err := store.SetRecords(ctx, model.NewSliceIterator([]model.Record{
		{model.FieldPrimaryKey: "one", "value": "a"},
		{model.FieldPrimaryKey: "one", "value": "b"},
	}), merge)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Unchanged)
	assert.Equal(t, 1, stats.Updated)

	var rec model.Record
	require.NoError(t, store.GetByKey(ctx, model.RecordKey("one"), &rec))
	assert.Equal(t, "b", rec.GetString("value"))
}

func TestSetRecordsKeepsPartialOnStreamFailure(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupStore(t)
	defer cleanup()

	boom := errors.New("stream broke")
	stats, err := store.SetRecords(ctx, model.NewFailingIterator([]model.Record{
		{model.FieldPrimaryKey: "one", "value": "a"},
	}, boom), nil)
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, 1, stats.New, "records before the failure stay durable")

	var rec model.Record
	require.NoError(t, store.GetByKey(ctx, model.RecordKey("one"), &rec))
}

func TestApplyCorrections(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupStore(t)
	defer cleanup()

	_, err := store.SetRecords(ctx, model.NewSliceIterator([]model.Record{
		{model.FieldPrimaryKey: "one", "company": "wrong"},
	}), nil)
	require.NoError(t, err)

	corrections := []model.Correction{
		{model.FieldPrimaryKey: "one", "company": "right"},
		{model.FieldPrimaryKey: "absent", "company": "whatever"},
	}
	applied, err := store.ApplyCorrections(ctx, corrections)
	require.NoError(t, err)
	assert.Equal(t, 1, applied, "corrections for absent records are skipped")

	var rec model.Record
	require.NoError(t, store.GetByKey(ctx, model.RecordKey("one"), &rec))
	assert.Equal(t, "right", rec.GetString("company"))

	// idempotent: reapplying amends nothing
	applied, err = store.ApplyCorrections(ctx, corrections)
	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestActivePids(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupStore(t)
	defer cleanup()

	require.NoError(t, store.ActivePids(ctx, []int32{12, 42}))
	require.NoError(t, store.ActivePids(ctx, []int32{99}))

	var pids []int32
	require.NoError(t, store.GetByKey(ctx, model.KeyActivePids, &pids))
	assert.Equal(t, []int32{99}, pids, "the pid set is replaced, not merged")
}
