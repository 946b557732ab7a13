// Copyright © 2018 One Concern

package localfs

import (
	"context"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/oneconcern/trawler/pkg/errors"
	"github.com/oneconcern/trawler/pkg/model"
	"github.com/oneconcern/trawler/pkg/storage"
	"github.com/oneconcern/trawler/pkg/storage/status"
)

/* file system backed runtime store: one file per key.
 * Writes go through a staging area, then are Rename()d into place, so a
 * concurrent reader never observes a partially written value on those
 * filesystems where Rename() is atomic.
 */

const nestedPutStageName = ".put-stage"

// New creates a local file system backed runtime store. fs is the store
// root; a nil fs defaults to .trawler/runtime under the working directory.
func New(fs afero.Fs) (storage.Store, error) {
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), filepath.Join(".trawler", "runtime"))
	}
	/* the staging area exists within the afero.Fs itself */
	if err := fs.MkdirAll(nestedPutStageName, 0700); err != nil {
		return nil, status.ErrStorageAPI.WrapMessage("ensuring put staging directory %q: %v", nestedPutStageName, err)
	}
	return &localFS{fs: fs}, nil
}

type localFS struct {
	fs afero.Fs
}

/* keys are query-escaped into flat file names, so cursor keys holding ':'
 * and branch names holding '/' never nest directories. */
func fileForKey(key string) (string, error) {
	name := url.QueryEscape(key)
	if name == nestedPutStageName {
		return "", status.ErrStorageAPI.WrapMessage("key %q conflicts with put staging area name", key)
	}
	return name, nil
}

func (l *localFS) String() string {
	const localfs = "localfs"
	switch fs := l.fs.(type) {
	case *afero.BasePathFs:
		pp, err := fs.RealPath("")
		if err != nil {
			return localfs
		}
		return localfs + "@" + pp
	default:
		return localfs
	}
}

func (l *localFS) GetByKey(ctx context.Context, key string, value interface{}) error {
	name, err := fileForKey(key)
	if err != nil {
		return err
	}
	data, err := afero.ReadFile(l.fs, name)
	if err != nil {
		if os.IsNotExist(err) {
			return status.ErrNotFound.WrapMessage("key %q", key)
		}
		return status.ErrStorageAPI.Wrap(err)
	}
	return storage.DecodeValue(data, value)
}

func (l *localFS) SetByKey(ctx context.Context, key string, value interface{}) error {
	data, err := storage.EncodeValue(value)
	if err != nil {
		return err
	}
	name, err := fileForKey(key)
	if err != nil {
		return err
	}
	return l.atomicWrite(name, data)
}

/* the staged file carries the target name, so concurrent writes to distinct
 * keys never collide in the staging area */
func (l *localFS) atomicWrite(name string, data []byte) error {
	stagePath := filepath.Join(nestedPutStageName, name)
	target, err := l.fs.OpenFile(stagePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC|os.O_SYNC, 0600)
	if err != nil {
		return status.ErrStorageAPI.WrapMessage("create staged value %q: %v", name, err)
	}
	if _, err = target.Write(data); err != nil {
		_ = target.Close()
		return status.ErrStorageAPI.WrapMessage("write staged value %q: %v", name, err)
	}
	if err = target.Close(); err != nil {
		return status.ErrStorageAPI.Wrap(err)
	}
	if err = l.fs.Rename(stagePath, name); err != nil {
		return status.ErrStorageAPI.WrapMessage("rename %q into place: %v", name, err)
	}
	return nil
}

func (l *localFS) SetRecords(ctx context.Context, records model.RecordIterator, merge storage.MergePolicy) (storage.MergeStats, error) {
	var stats storage.MergeStats
	defer func() { _ = records.Close() }()

	for records.Next() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		incoming := records.Record()
		pk := incoming.PrimaryKey()
		if pk == "" {
			stats.Skipped++
			continue
		}
		key := model.RecordKey(pk)

		var existing model.Record
		found := true
		if err := l.GetByKey(ctx, key, &existing); err != nil {
			if !errors.Is(err, status.ErrNotFound) {
				return stats, err
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
			continue
		}
		if err := l.SetByKey(ctx, key, toWrite); err != nil {
			return stats, err
		}
	}
	return stats, records.Err()
}

func (l *localFS) ApplyCorrections(ctx context.Context, corrections []model.Correction) (int, error) {
	applied := 0
	for _, correction := range corrections {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		pk := correction.PrimaryKey()
		if pk == "" {
			continue
		}
		key := model.RecordKey(pk)

		var record model.Record
		if err := l.GetByKey(ctx, key, &record); err != nil {
			if errors.Is(err, status.ErrNotFound) {
				continue
			}
			return applied, err
		}
		if !storage.AmendRecord(record, correction) {
			continue
		}
		if err := l.SetByKey(ctx, key, record); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

func (l *localFS) ActivePids(ctx context.Context, pids []int32) error {
	return l.SetByKey(ctx, model.KeyActivePids, pids)
}

func (l *localFS) Close() error {
	return nil
}
