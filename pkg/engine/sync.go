package engine

import (
	"context"
	"sync"

	"github.com/oneconcern/trawler/pkg/engine/status"
	"github.com/oneconcern/trawler/pkg/errors"
	"github.com/oneconcern/trawler/pkg/metrics"
	"github.com/oneconcern/trawler/pkg/model"
	"github.com/oneconcern/trawler/pkg/source"
	"github.com/oneconcern/trawler/pkg/storage"
	storagestatus "github.com/oneconcern/trawler/pkg/storage/status"
	"go.uber.org/zap"
)

// repoOutcome reports the fate of one repo to the collecting goroutine.
type repoOutcome struct {
	uri string
	err error
}

// syncRepos fans the stored repo list out to a small worker pool. Workers
// sync whole repos, so all phases of one (repo, branch) pair stay on a
// single goroutine. Failures are collected per repo and never stop the
// other workers.
func (e *Engine) syncRepos(ctx context.Context, stats *metrics.CycleStats, l *zap.Logger) []error {
	var repos []model.Repo
	if err := e.store.GetByKey(ctx, model.KeyRepos, &repos); err != nil && !errors.Is(err, storagestatus.ErrNotFound) {
		return []error{status.ErrRepoSync.Wrap(err)}
	}
	if len(repos) == 0 {
		l.Debug("no repos to process")
		return nil
	}

	repoChan := make(chan model.Repo)
	outcomeChan := make(chan repoOutcome)

	var workers sync.WaitGroup
	for i := 0; i < min(e.concurrency, len(repos)); i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for repo := range repoChan {
				outcomeChan <- repoOutcome{uri: repo.URI, err: e.syncRepo(ctx, repo, stats, l)}
			}
		}()
	}

	go func() {
		defer close(repoChan)
		for _, repo := range repos {
			select {
			case repoChan <- repo:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		workers.Wait()
		close(outcomeChan)
	}()

	var errs []error
	for outcome := range outcomeChan {
		if outcome.err != nil {
			stats.ReposFailed.Inc()
			l.Error("repo sync failed", zap.String("uri", outcome.uri), zap.Error(outcome.err))
			errs = append(errs, outcome.err)
			continue
		}
		stats.ReposProcessed.Inc()
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// syncRepo harvests commits and reviews for every branch of one repo,
// sequentially: commits of a branch, then its reviews, then the next
// branch. An error abandons the remaining branches of this repo only.
func (e *Engine) syncRepo(ctx context.Context, repo model.Repo, stats *metrics.CycleStats, l *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l = l.With(zap.String("uri", repo.URI))
	l.Debug("processing repo")

	vcs, err := e.sources.VCS(repo)
	if err != nil {
		return status.ErrRepoSync.WrapMessage("repo %s: %v", repo.URI, err)
	}
	if err = vcs.Fetch(ctx); err != nil {
		return status.ErrRepoSync.WrapMessage("fetching %s: %v", repo.URI, err)
	}

	rcs, err := e.sources.RCS(repo)
	if err != nil {
		return status.ErrRepoSync.WrapMessage("repo %s: %v", repo.URI, err)
	}
	if rcs != nil {
		if err = rcs.Setup(ctx); err != nil {
			return status.ErrRepoSync.WrapMessage("review setup for %s: %v", repo.URI, err)
		}
		defer func() {
			if cerr := rcs.Close(); cerr != nil {
				l.Warn("closing review adapter", zap.Error(cerr))
			}
		}()
	}

	for _, branch := range repo.Branches() {
		l.Debug("processing branch", zap.String("branch", branch))

		commits := stream{
			cursorKey:  model.VcsCursorKey(repo.URI, branch),
			recordType: model.TypeCommit,
			merge:      MergeCommits,
			log:        vcs.Log,
			lastID:     vcs.LastID,
		}
		if err = e.harvest(ctx, commits, branch, stats); err != nil {
			return status.ErrRepoSync.WrapMessage("commits of %s branch %s: %v", repo.URI, branch, err)
		}

		if rcs == nil {
			continue
		}
		reviews := stream{
			cursorKey:  model.RcsCursorKey(repo.URI, branch),
			recordType: model.TypeReview,
			merge:      MergeRecords,
			log:        rcs.Log,
			lastID:     rcs.LastID,
		}
		if err = e.harvest(ctx, reviews, branch, stats); err != nil {
			return status.ErrRepoSync.WrapMessage("reviews of %s branch %s: %v", repo.URI, branch, err)
		}
	}
	return nil
}

// stream bundles what one harvesting phase needs: where its cursor lives,
// how its records are typed and merged, and the adapter calls feeding it.
type stream struct {
	cursorKey  string
	recordType string
	merge      storage.MergePolicy
	log        func(ctx context.Context, branch, sinceID string) model.RecordIterator
	lastID     func(ctx context.Context, branch string) (string, error)
}

// harvest runs one phase for one branch: resume from the stored cursor,
// type, process and merge the stream, then move the cursor to the adapter
// head. The cursor only advances after a clean merge, so a failed stream
// is re-read by the next cycle.
func (e *Engine) harvest(ctx context.Context, s stream, branch string, stats *metrics.CycleStats) error {
	var since string
	if err := e.store.GetByKey(ctx, s.cursorKey, &since); err != nil && !errors.Is(err, storagestatus.ErrNotFound) {
		return err
	}

	records := e.processor.Process(TypeRecords(s.log(ctx, branch, since), s.recordType))
	merged, err := e.store.SetRecords(ctx, records, s.merge)
	stats.TallyFor(s.recordType).Add(merged)
	if err != nil {
		return err
	}

	head, err := s.lastID(ctx, branch)
	if err != nil {
		return err
	}
	return e.store.SetByKey(ctx, s.cursorKey, head)
}

// syncMailLists harvests every stored mailing list. Lists self-manage
// their resumption marks, records overwrite unconditionally.
func (e *Engine) syncMailLists(ctx context.Context, stats *metrics.CycleStats, l *zap.Logger) []error {
	var lists []string
	if err := e.store.GetByKey(ctx, model.KeyMailLists, &lists); err != nil && !errors.Is(err, storagestatus.ErrNotFound) {
		return []error{status.ErrMailSync.Wrap(err)}
	}

	var errs []error
	for _, uri := range lists {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		adapter, err := e.sources.MailList(uri)
		if err != nil {
			errs = append(errs, status.ErrMailSync.WrapMessage("list %s: %v", uri, err))
			continue
		}
		if adapter == nil {
			l.Debug("mail lists not configured, skipping", zap.String("uri", uri))
			return errs
		}
		if err := e.drain(ctx, adapter, model.TypeEmail, stats); err != nil {
			wrapped := status.ErrMailSync.WrapMessage("list %s: %v", uri, err)
			l.Error("mail list sync failed", zap.String("uri", uri), zap.Error(err))
			errs = append(errs, wrapped)
		}
	}
	return errs
}

// syncMemberLists harvests every stored member roster, same contract as
// mailing lists.
func (e *Engine) syncMemberLists(ctx context.Context, stats *metrics.CycleStats, l *zap.Logger) []error {
	var lists []string
	if err := e.store.GetByKey(ctx, model.KeyMemberLists, &lists); err != nil && !errors.Is(err, storagestatus.ErrNotFound) {
		return []error{status.ErrMemberSync.Wrap(err)}
	}

	var errs []error
	for _, uri := range lists {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		adapter, err := e.sources.MemberList(uri)
		if err != nil {
			errs = append(errs, status.ErrMemberSync.WrapMessage("roster %s: %v", uri, err))
			continue
		}
		if adapter == nil {
			l.Debug("member rosters not configured, skipping", zap.String("uri", uri))
			return errs
		}
		if err := e.drain(ctx, adapter, model.TypeMember, stats); err != nil {
			wrapped := status.ErrMemberSync.WrapMessage("roster %s: %v", uri, err)
			l.Error("member roster sync failed", zap.String("uri", uri), zap.Error(err))
			errs = append(errs, wrapped)
		}
	}
	return errs
}

// lister is the common shape of mail and member adapters.
type lister interface {
	Log(ctx context.Context, store storage.Store) model.RecordIterator
}

var (
	_ lister = (source.MailList)(nil)
	_ lister = (source.MemberList)(nil)
)

// drain types, processes and stores one self-resuming stream.
func (e *Engine) drain(ctx context.Context, adapter lister, recordType string, stats *metrics.CycleStats) error {
	records := e.processor.Process(TypeRecords(adapter.Log(ctx, e.store), recordType))
	merged, err := e.store.SetRecords(ctx, records, nil)
	stats.TallyFor(recordType).Add(merged)
	return err
}
