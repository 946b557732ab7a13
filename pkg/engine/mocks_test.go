package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/oneconcern/trawler/pkg/dataset"
	"github.com/oneconcern/trawler/pkg/fetch"
	"github.com/oneconcern/trawler/pkg/model"
	"github.com/oneconcern/trawler/pkg/process"
	"github.com/oneconcern/trawler/pkg/source"
	"github.com/oneconcern/trawler/pkg/storage"
	"github.com/oneconcern/trawler/pkg/storage/localfs"
)

// fakeVCS serves canned commits per branch, newest first, honoring the
// sinceID contract of the real adapters.
type fakeVCS struct {
	mu       sync.Mutex
	commits  map[string][]model.Record
	fetches  int
	fetchErr error
	logErr   error
	asked    [][2]string
}

func (f *fakeVCS) Fetch(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return f.fetchErr
}

func (f *fakeVCS) Log(_ context.Context, branch, sinceID string) model.RecordIterator {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, [2]string{branch, sinceID})

	var out []model.Record
	for _, commit := range f.commits[branch] {
		if commit.GetString("commit_id") == sinceID {
			break
		}
		out = append(out, commit.Clone())
	}
	if f.logErr != nil {
		return model.NewFailingIterator(out, f.logErr)
	}
	return model.NewSliceIterator(out)
}

func (f *fakeVCS) LastID(_ context.Context, branch string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	commits := f.commits[branch]
	if len(commits) == 0 {
		return "", nil
	}
	return commits[0].GetString("commit_id"), nil
}

// fakeRCS serves canned reviews per branch, same paging contract.
type fakeRCS struct {
	mu      sync.Mutex
	reviews map[string][]model.Record
	setups  int
	closes  int
	asked   [][2]string
}

func (f *fakeRCS) Setup(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setups++
	return nil
}

func (f *fakeRCS) Log(_ context.Context, branch, sinceID string) model.RecordIterator {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, [2]string{branch, sinceID})

	var out []model.Record
	for _, review := range f.reviews[branch] {
		if review.GetString("id") == sinceID {
			break
		}
		out = append(out, review.Clone())
	}
	return model.NewSliceIterator(out)
}

func (f *fakeRCS) LastID(_ context.Context, branch string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reviews := f.reviews[branch]
	if len(reviews) == 0 {
		return "", nil
	}
	return reviews[0].GetString("id"), nil
}

func (f *fakeRCS) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

// fakeList replays the same records every run, standing in for both mail
// and member adapters.
type fakeList struct {
	mu       sync.Mutex
	records  []model.Record
	runs     int
	sawStore bool
}

func (f *fakeList) Log(_ context.Context, store storage.Store) model.RecordIterator {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	f.sawStore = store != nil

	out := make([]model.Record, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r.Clone())
	}
	return model.NewSliceIterator(out)
}

// countingProcessor delegates to the real processor and counts Update
// calls.
type countingProcessor struct {
	inner   process.Processor
	updates int
}

func (p *countingProcessor) Process(records model.RecordIterator) model.RecordIterator {
	return p.inner.Process(records)
}

func (p *countingProcessor) Update(ctx context.Context) error {
	p.updates++
	return p.inner.Update(ctx)
}

func commitRecord(id, branch string, date int64) model.Record {
	return model.Record{
		"commit_id":    id,
		"author_name":  "Jane Dev",
		"author_email": "jane@example.com",
		"date":         date,
		"branches":     model.NewStringSet(branch),
	}
}

func reviewRecord(id, branch string, date int64) model.Record {
	return model.Record{
		"id":     id,
		"branch": branch,
		"date":   date,
		"module": "nova",
	}
}

func setupStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := localfs.New(afero.NewMemMapFs())
	require.NoError(t, err)
	return store
}

func writeDoc(t *testing.T, fs afero.Fs, name string, content []byte) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, name, content, 0600))
}

func writeDefaultData(t *testing.T, fs afero.Fs, doc dataset.Document) {
	t.Helper()
	raw, err := jsoniter.Marshal(doc)
	require.NoError(t, err)
	writeDoc(t, fs, "default_data.json", raw)
}

// newTestEngine wires an engine over fixture documents on a memory
// filesystem, with a deterministic clock and run tokens.
func newTestEngine(t *testing.T, store storage.Store, resolver *source.Resolver, fs afero.Fs, opts ...Option) *Engine {
	t.Helper()
	base := []Option{
		WithDefaultDataURI("default_data.json"),
		WithFetchOptions(fetch.WithFS(fs)),
		WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
	}
	eng := New(store, resolver, append(base, opts...)...)

	runs := 0
	eng.newRun = func() string {
		runs++
		return fmt.Sprintf("run-%d", runs)
	}
	return eng
}

func getRecord(t *testing.T, store storage.Store, primaryKey string) model.Record {
	t.Helper()
	var record model.Record
	require.NoError(t, store.GetByKey(context.Background(), model.RecordKey(primaryKey), &record))
	return record
}

func getString(t *testing.T, store storage.Store, key string) string {
	t.Helper()
	var value string
	require.NoError(t, store.GetByKey(context.Background(), key, &value))
	return value
}
