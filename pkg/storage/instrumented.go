// Copyright © 2018 One Concern

package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/oneconcern/trawler/pkg/model"
)

// Instrument decorates a store with debug logging of every operation and its
// duration. Enabled by the CLI when running at debug level.
func Instrument(logger *zap.Logger, store Store) Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumentedStore{
		store: store,
		l:     logger.With(zap.String("store", store.String())),
	}
}

type instrumentedStore struct {
	store Store
	l     *zap.Logger
}

func (i *instrumentedStore) String() string {
	return i.store.String()
}

func (i *instrumentedStore) GetByKey(ctx context.Context, key string, value interface{}) error {
	defer i.elapsed("get", time.Now(), zap.String("key", key))()
	return i.store.GetByKey(ctx, key, value)
}

func (i *instrumentedStore) SetByKey(ctx context.Context, key string, value interface{}) error {
	defer i.elapsed("set", time.Now(), zap.String("key", key))()
	return i.store.SetByKey(ctx, key, value)
}

func (i *instrumentedStore) SetRecords(ctx context.Context, records model.RecordIterator, merge MergePolicy) (MergeStats, error) {
	start := time.Now()
	stats, err := i.store.SetRecords(ctx, records, merge)
	i.l.Debug("storage set records",
		zap.Int("new", stats.New),
		zap.Int("updated", stats.Updated),
		zap.Int("unchanged", stats.Unchanged),
		zap.Int("skipped", stats.Skipped),
		zap.Duration("took", time.Since(start)),
		zap.Error(err),
	)
	return stats, err
}

func (i *instrumentedStore) ApplyCorrections(ctx context.Context, corrections []model.Correction) (int, error) {
	start := time.Now()
	applied, err := i.store.ApplyCorrections(ctx, corrections)
	i.l.Debug("storage apply corrections",
		zap.Int("corrections", len(corrections)),
		zap.Int("applied", applied),
		zap.Duration("took", time.Since(start)),
		zap.Error(err),
	)
	return applied, err
}

func (i *instrumentedStore) ActivePids(ctx context.Context, pids []int32) error {
	defer i.elapsed("active pids", time.Now(), zap.Int("pids", len(pids)))()
	return i.store.ActivePids(ctx, pids)
}

func (i *instrumentedStore) Close() error {
	return i.store.Close()
}

func (i *instrumentedStore) elapsed(op string, start time.Time, fields ...zap.Field) func() {
	return func() {
		i.l.Debug("storage "+op, append(fields, zap.Duration("took", time.Since(start)))...)
	}
}
