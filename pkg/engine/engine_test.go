package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneconcern/trawler/pkg/dataset"
	"github.com/oneconcern/trawler/pkg/engine/status"
	"github.com/oneconcern/trawler/pkg/errors"
	"github.com/oneconcern/trawler/pkg/model"
	"github.com/oneconcern/trawler/pkg/process"
	"github.com/oneconcern/trawler/pkg/source"
	storagestatus "github.com/oneconcern/trawler/pkg/storage/status"
)

const (
	novaURI    = "git://example.com/openstack/nova"
	mailURI    = "http://lists.example.com/dev"
	rosterURI  = "http://example.com/members/"
	programURI = "programs.yaml"
)

func novaDefaultData() dataset.Document {
	return dataset.Document{
		Repos: []model.Repo{{
			URI:          novaURI,
			Module:       "nova",
			Organization: "openstack",
			Releases:     []model.RepoRelease{{ReleaseName: "kilo", Branch: "stable/kilo"}},
		}},
		Releases: []model.Release{
			{ReleaseName: "prehistory"},
			{ReleaseName: "Juno"},
			{ReleaseName: "Kilo"},
		},
		MailLists:   []string{mailURI},
		MemberLists: []string{rosterURI},
	}
}

const novaPrograms = `Compute:
  codename: Nova
  projects:
    - repo: openstack/nova
      core-since: Kilo
Documentation:
  projects:
    - repo: openstack/docs
`

func TestUpdateCycle(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	store := setupStore(t)

	writeDefaultData(t, fs, novaDefaultData())
	writeDoc(t, fs, programURI, []byte(novaPrograms))
	writeDoc(t, fs, "corrections.json", []byte(
		`{"corrections":[{"primary_key":"c1","author_name":"Jane Fixed"},{"author_name":"keyless"}]}`))

	vcs := &fakeVCS{commits: map[string][]model.Record{
		"master": {
			commitRecord("c2", "master", 1400000500),
			commitRecord("c1", "master", 1400000000),
		},
		"stable/kilo": {
			commitRecord("c1", "stable/kilo", 1400000000),
		},
	}}
	rcs := &fakeRCS{reviews: map[string][]model.Record{
		"master": {reviewRecord("I999", "master", 1400001000)},
	}}
	mail := &fakeList{records: []model.Record{
		{"message_id": "m1", "subject": "[dev] scheduler", "date": int64(1400002000)},
	}}
	roster := &fakeList{records: []model.Record{
		{"member_id": "42", "member_name": "Jane Dev", "date_joined": int64(1300000000)},
	}}

	resolver := source.NewResolver().
		RegisterVCS("git", func(model.Repo) (source.VCS, error) { return vcs, nil }).
		RegisterRCS(func(model.Repo) (source.RCS, error) { return rcs, nil }).
		RegisterMail(func(string) (source.MailList, error) { return mail, nil }).
		RegisterMember(func(string) (source.MemberList, error) { return roster, nil })

	processor := &countingProcessor{inner: process.New()}
	eng := newTestEngine(t, store, resolver, fs,
		WithProgramListURI(programURI),
		WithCorrectionsURI("corrections.json"),
		WithProcessor(processor),
	)

	stats, err := eng.Update(ctx)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, "run-1", stats.Run)

	// both branches of the single repo were harvested in order
	assert.EqualValues(t, 1, stats.ReposProcessed.Load())
	assert.EqualValues(t, 0, stats.ReposFailed.Load())
	assert.Equal(t, [][2]string{{"master", ""}, {"stable/kilo", ""}}, vcs.asked)
	assert.Equal(t, [][2]string{{"master", ""}, {"stable/kilo", ""}}, rcs.asked)
	assert.Equal(t, 1, vcs.fetches)
	assert.Equal(t, 1, rcs.setups)
	assert.Equal(t, 1, rcs.closes)
	assert.Equal(t, 1, processor.updates)
	assert.True(t, mail.sawStore)

	// c1 and c2 are new on master, re-seeing c1 on stable/kilo widens its
	// branch set
	assert.EqualValues(t, 2, stats.Commits.New.Load())
	assert.EqualValues(t, 1, stats.Commits.Updated.Load())
	assert.EqualValues(t, 1, stats.Reviews.New.Load())
	assert.EqualValues(t, 1, stats.Emails.New.Load())
	assert.EqualValues(t, 1, stats.Members.New.Load())
	assert.EqualValues(t, 1, stats.CorrectionsApplied.Load())

	// cursors moved to the adapter heads once the streams were merged
	assert.Equal(t, "c2", getString(t, store, model.VcsCursorKey(novaURI, "master")))
	assert.Equal(t, "c1", getString(t, store, model.VcsCursorKey(novaURI, "stable/kilo")))
	assert.Equal(t, "I999", getString(t, store, model.RcsCursorKey(novaURI, "master")))
	assert.Equal(t, "", getString(t, store, model.RcsCursorKey(novaURI, "stable/kilo")))

	c1 := getRecord(t, store, "c1")
	assert.Equal(t, model.TypeCommit, c1.Type())
	assert.True(t, c1.Branches().Equal(model.NewStringSet("master", "stable/kilo")))
	assert.Equal(t, "Jane Fixed", c1.GetString("author_name"))
	week, ok := c1.GetInt64(model.FieldWeek)
	assert.True(t, ok)
	assert.NotZero(t, week)

	assert.Equal(t, model.TypeReview, getRecord(t, store, "I999").Type())
	assert.Equal(t, model.TypeEmail, getRecord(t, store, "m1").Type())
	assert.Equal(t, model.TypeMember, getRecord(t, store, "member:42").Type())

	var updateTime int64
	require.NoError(t, store.GetByKey(ctx, model.KeyUpdateTime, &updateTime))
	assert.EqualValues(t, 1700000000, updateTime)
	assert.Equal(t, "run-1", getString(t, store, model.KeyLastRun))
}

func TestUpdateResumesFromCursors(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	store := setupStore(t)

	writeDefaultData(t, fs, novaDefaultData())
	writeDoc(t, fs, programURI, []byte(novaPrograms))

	vcs := &fakeVCS{commits: map[string][]model.Record{
		"master":      {commitRecord("c2", "master", 1400000500), commitRecord("c1", "master", 1400000000)},
		"stable/kilo": {commitRecord("c1", "stable/kilo", 1400000000)},
	}}
	rcs := &fakeRCS{reviews: map[string][]model.Record{
		"master": {reviewRecord("I999", "master", 1400001000)},
	}}
	mail := &fakeList{records: []model.Record{
		{"message_id": "m1", "subject": "[dev] scheduler", "date": int64(1400002000)},
	}}

	resolver := source.NewResolver().
		RegisterVCS("git", func(model.Repo) (source.VCS, error) { return vcs, nil }).
		RegisterRCS(func(model.Repo) (source.RCS, error) { return rcs, nil }).
		RegisterMail(func(string) (source.MailList, error) { return mail, nil })

	eng := newTestEngine(t, store, resolver, fs, WithProgramListURI(programURI))

	_, err := eng.Update(ctx)
	require.NoError(t, err)

	var groupsAfterFirst map[string]model.ModuleGroup
	require.NoError(t, store.GetByKey(ctx, model.KeyModuleGroups, &groupsAfterFirst))

	stats, err := eng.Update(ctx)
	require.NoError(t, err)

	// the second cycle resumes from the stored heads and harvests nothing
	assert.Equal(t, [2]string{"master", "c2"}, vcs.asked[2])
	assert.Equal(t, [2]string{"stable/kilo", "c1"}, vcs.asked[3])
	assert.EqualValues(t, 0, stats.Commits.Total())
	assert.EqualValues(t, 0, stats.Reviews.Total())

	// replayed mail records overwrite unconditionally
	assert.EqualValues(t, 1, stats.Emails.Updated.Load())
	assert.EqualValues(t, 0, stats.Emails.New.Load())

	// cursors unchanged, taxonomy rebuilt to the same bytes
	assert.Equal(t, "c2", getString(t, store, model.VcsCursorKey(novaURI, "master")))
	var groupsAfterSecond map[string]model.ModuleGroup
	require.NoError(t, store.GetByKey(ctx, model.KeyModuleGroups, &groupsAfterSecond))
	assert.Equal(t, groupsAfterFirst, groupsAfterSecond)
}

func TestUpdateDefaultDataFatal(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	store := setupStore(t)

	vcs := &fakeVCS{commits: map[string][]model.Record{}}
	resolver := source.NewResolver().
		RegisterVCS("git", func(model.Repo) (source.VCS, error) { return vcs, nil })

	eng := newTestEngine(t, store, resolver, fs)

	_, err := eng.Update(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrDefaultData))

	// nothing ran: no harvesting, no cycle stamp
	assert.Equal(t, 0, vcs.fetches)
	var updateTime int64
	err = store.GetByKey(ctx, model.KeyUpdateTime, &updateTime)
	assert.True(t, errors.Is(err, storagestatus.ErrNotFound))
}

func TestUpdateIsolatesFailingRepo(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	store := setupStore(t)

	brokenURI := "git://example.com/openstack/broken"
	doc := novaDefaultData()
	doc.Repos = append(doc.Repos, model.Repo{URI: brokenURI, Module: "broken", Organization: "openstack"})
	writeDefaultData(t, fs, doc)

	good := &fakeVCS{commits: map[string][]model.Record{
		"master":      {commitRecord("c1", "master", 1400000000)},
		"stable/kilo": {},
	}}
	bad := &fakeVCS{fetchErr: fmt.Errorf("remote down")}
	fakes := map[string]*fakeVCS{novaURI: good, brokenURI: bad}

	resolver := source.NewResolver().
		RegisterVCS("git", func(repo model.Repo) (source.VCS, error) { return fakes[repo.URI], nil })

	eng := newTestEngine(t, store, resolver, fs)

	stats, err := eng.Update(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrRepoSync))
	assert.Contains(t, err.Error(), brokenURI)
	assert.Contains(t, err.Error(), "remote down")

	// the healthy repo still synced and moved its cursor
	assert.EqualValues(t, 1, stats.ReposProcessed.Load())
	assert.EqualValues(t, 1, stats.ReposFailed.Load())
	assert.Equal(t, "c1", getString(t, store, model.VcsCursorKey(novaURI, "master")))

	var cursor string
	getErr := store.GetByKey(ctx, model.VcsCursorKey(brokenURI, "master"), &cursor)
	assert.True(t, errors.Is(getErr, storagestatus.ErrNotFound))

	// a partial cycle is still stamped so consumers pick up what landed
	var updateTime int64
	require.NoError(t, store.GetByKey(ctx, model.KeyUpdateTime, &updateTime))
	assert.EqualValues(t, 1700000000, updateTime)
}

func TestUpdateKeepsCursorOnStreamFailure(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	store := setupStore(t)

	doc := novaDefaultData()
	doc.Repos[0].Releases = nil
	writeDefaultData(t, fs, doc)

	vcs := &fakeVCS{
		commits: map[string][]model.Record{
			"master": {commitRecord("c2", "master", 1400000500), commitRecord("c1", "master", 1400000000)},
		},
		logErr: fmt.Errorf("stream truncated"),
	}
	resolver := source.NewResolver().
		RegisterVCS("git", func(model.Repo) (source.VCS, error) { return vcs, nil })

	eng := newTestEngine(t, store, resolver, fs)

	stats, err := eng.Update(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream truncated")

	// records merged before the failure stay durable, the cursor does not
	// move
	assert.EqualValues(t, 2, stats.Commits.New.Load())
	assert.Equal(t, model.TypeCommit, getRecord(t, store, "c1").Type())
	var cursor string
	getErr := store.GetByKey(ctx, model.VcsCursorKey(novaURI, "master"), &cursor)
	require.True(t, errors.Is(getErr, storagestatus.ErrNotFound))

	// the next cycle re-reads the stream from the start and resolves every
	// record to a no-op
	vcs.logErr = nil
	stats, err = eng.Update(ctx)
	require.NoError(t, err)
	assert.Equal(t, [2]string{"master", ""}, vcs.asked[1])
	assert.EqualValues(t, 0, stats.Commits.New.Load())
	assert.EqualValues(t, 2, stats.Commits.Unchanged.Load())
	assert.Equal(t, "c2", getString(t, store, model.VcsCursorKey(novaURI, "master")))
}

func TestUpdateCorrectionsAreBestEffort(t *testing.T) {
	ctx := context.Background()

	t.Run("unreachable document never fails the cycle", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		store := setupStore(t)
		writeDefaultData(t, fs, dataset.Document{
			Releases: []model.Release{{ReleaseName: "prehistory"}},
		})

		eng := newTestEngine(t, store, source.NewResolver(), fs,
			WithCorrectionsURI("missing.json"))

		stats, err := eng.Update(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 0, stats.CorrectionsApplied.Load())
	})

	t.Run("corrections for absent records are skipped", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		store := setupStore(t)
		writeDefaultData(t, fs, dataset.Document{
			Releases: []model.Release{{ReleaseName: "prehistory"}},
		})
		writeDoc(t, fs, "corrections.json", []byte(
			`{"corrections":[{"primary_key":"ghost","author_name":"Nobody"}]}`))

		eng := newTestEngine(t, store, source.NewResolver(), fs,
			WithCorrectionsURI("corrections.json"))

		stats, err := eng.Update(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 0, stats.CorrectionsApplied.Load())

		var record model.Record
		getErr := store.GetByKey(ctx, model.RecordKey("ghost"), &record)
		assert.True(t, errors.Is(getErr, storagestatus.ErrNotFound))
	})

	t.Run("reapplying the same corrections changes nothing", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		store := setupStore(t)
		writeDefaultData(t, fs, novaDefaultData())
		writeDoc(t, fs, "corrections.json", []byte(
			`{"corrections":[{"primary_key":"c1","author_name":"Jane Fixed"}]}`))

		vcs := &fakeVCS{commits: map[string][]model.Record{
			"master":      {commitRecord("c1", "master", 1400000000)},
			"stable/kilo": {},
		}}
		resolver := source.NewResolver().
			RegisterVCS("git", func(model.Repo) (source.VCS, error) { return vcs, nil })

		eng := newTestEngine(t, store, resolver, fs,
			WithCorrectionsURI("corrections.json"))

		stats, err := eng.Update(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, stats.CorrectionsApplied.Load())

		stats, err = eng.Update(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 0, stats.CorrectionsApplied.Load())
		assert.Equal(t, "Jane Fixed", getRecord(t, store, "c1").GetString("author_name"))
	})
}
