// Package git implements the commit source on top of go-git. Remotes are
// mirrored to a local bare clone under the sources root, then branch logs are
// walked without touching the network again.
package git

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/oneconcern/trawler/pkg/errors"
	"github.com/oneconcern/trawler/pkg/model"
	"github.com/oneconcern/trawler/pkg/source"
	"github.com/oneconcern/trawler/pkg/source/status"
)

var _ source.VCS = &Repo{}

// Repo harvests commits from one git remote through a local mirror.
type Repo struct {
	desc model.Repo
	settings
	repo *gogit.Repository
}

// New builds the adapter for one repo descriptor.
func New(desc model.Repo, opts ...Option) *Repo {
	r := &Repo{desc: desc, settings: defaultSettings()}
	for _, apply := range opts {
		apply(&r.settings)
	}
	r.l = r.l.With(zap.String("repo", desc.URI))
	return r
}

// MirrorPath returns where the local mirror of uri lives under root.
func MirrorPath(root, uri string) string {
	return filepath.Join(root, url.QueryEscape(uri))
}

// Fetch clones the remote on first sight, then syncs every branch of the
// mirror.
func (r *Repo) Fetch(ctx context.Context) error {
	path := MirrorPath(r.sourcesRoot, r.desc.URI)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		r.l.Debug("cloning mirror", zap.String("path", path))
		repo, cerr := gogit.PlainCloneContext(ctx, path, true, &gogit.CloneOptions{
			URL:    r.desc.URI,
			Mirror: true,
		})
		if cerr != nil {
			return status.ErrFetch.WrapWithLog(r.l, cerr)
		}
		r.repo = repo
		return nil
	}

	if err := r.open(); err != nil {
		return err
	}
	err := r.repo.FetchContext(ctx, &gogit.FetchOptions{
		RefSpecs: []config.RefSpec{"+refs/heads/*:refs/heads/*"},
		Force:    true,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return status.ErrFetch.WrapWithLog(r.l, err)
	}
	return nil
}

func (r *Repo) open() error {
	if r.repo != nil {
		return nil
	}
	repo, err := gogit.PlainOpen(MirrorPath(r.sourcesRoot, r.desc.URI))
	if err != nil {
		return status.ErrFetch.WrapMessage("opening mirror for %s: %v", r.desc.URI, err)
	}
	r.repo = repo
	return nil
}

func (r *Repo) branchHead(branch string) (plumbing.Hash, error) {
	if err := r.open(); err != nil {
		return plumbing.ZeroHash, err
	}
	ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return plumbing.ZeroHash, status.ErrBranchNotFound.WrapMessage("%s in %s", branch, r.desc.URI)
		}
		return plumbing.ZeroHash, status.ErrLog.Wrap(err)
	}
	return ref.Hash(), nil
}

// LastID returns the branch head hash, the cursor value for a fully merged
// log stream.
func (r *Repo) LastID(ctx context.Context, branch string) (string, error) {
	head, err := r.branchHead(branch)
	if err != nil {
		return "", err
	}
	return head.String(), nil
}

// Log streams commits on branch newer than sinceID, newest first. An empty
// sinceID walks the full history.
func (r *Repo) Log(ctx context.Context, branch, sinceID string) model.RecordIterator {
	head, err := r.branchHead(branch)
	if err != nil {
		return model.NewFailingIterator(nil, err)
	}
	if head.String() == sinceID {
		// cursor already at head, nothing new
		return model.NewSliceIterator(nil)
	}
	commits, err := r.repo.Log(&gogit.LogOptions{From: head})
	if err != nil {
		return model.NewFailingIterator(nil, status.ErrLog.Wrap(err))
	}
	return &logIter{
		ctx:     ctx,
		commits: commits,
		sinceID: sinceID,
		branch:  branch,
		adapter: r,
	}
}

type logIter struct {
	ctx     context.Context
	commits object.CommitIter
	sinceID string
	branch  string
	adapter *Repo

	current model.Record
	err     error
	done    bool
}

func (it *logIter) Next() bool {
	if it.done {
		return false
	}
	if err := it.ctx.Err(); err != nil {
		it.err = err
		it.done = true
		return false
	}
	commit, err := it.commits.Next()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			it.err = status.ErrLog.Wrap(err)
		}
		it.done = true
		return false
	}
	if commit.Hash.String() == it.sinceID {
		// reached the cursor, the rest has been harvested before
		it.done = true
		return false
	}
	it.current = it.adapter.commitRecord(commit, it.branch)
	return true
}

func (it *logIter) Record() model.Record {
	return it.current
}

func (it *logIter) Err() error {
	return it.err
}

func (it *logIter) Close() error {
	it.done = true
	it.commits.Close()
	return nil
}

// commitRecord shapes one commit into its harvested record.
func (r *Repo) commitRecord(commit *object.Commit, branch string) model.Record {
	subject, body := splitMessage(commit.Message)
	record := model.Record{
		"commit_id":    commit.Hash.String(),
		"author_name":  commit.Author.Name,
		"author_email": strings.ToLower(commit.Author.Email),
		"date":         commit.Author.When.Unix(),
		"subject":      subject,
		"message":      body,
		"module":       r.desc.Module,
		"organization": r.desc.Organization,
	}
	record.SetBranches(model.NewStringSet(branch))

	if r.collectStats && commit.NumParents() <= 1 {
		if stats, err := commit.Stats(); err == nil {
			added, deleted := 0, 0
			for _, fs := range stats {
				added += fs.Addition
				deleted += fs.Deletion
			}
			record["files_changed"] = len(stats)
			record["lines_added"] = added
			record["lines_deleted"] = deleted
		}
	}
	return record
}

// splitMessage separates the subject line from the body of a commit message.
func splitMessage(message string) (string, string) {
	subject, body, found := strings.Cut(message, "\n")
	subject = strings.TrimSpace(subject)
	if !found {
		return subject, ""
	}
	return subject, strings.TrimSpace(body)
}
