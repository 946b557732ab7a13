// Package source defines the adapter contracts for everything trawler
// harvests: code repositories, review systems, mailing lists and member
// rosters. Concrete adapters live in subpackages; the engine only sees these
// interfaces, resolved through a Resolver.
package source

import (
	"context"
	"net/url"
	"strings"

	"github.com/oneconcern/trawler/pkg/model"
	"github.com/oneconcern/trawler/pkg/source/status"
	"github.com/oneconcern/trawler/pkg/storage"
)

// VCS harvests commits out of one code repository.
//
// Log streams commits on a branch newer than sinceID, newest first, stopping
// before the commit sinceID names. LastID reports the branch head, the value
// the caller persists as its cursor once the stream has been merged.
type VCS interface {
	// Fetch syncs the local mirror against the remote.
	Fetch(ctx context.Context) error
	Log(ctx context.Context, branch, sinceID string) model.RecordIterator
	LastID(ctx context.Context, branch string) (string, error)
}

// RCS harvests review activity tied to one repository.
type RCS interface {
	// Setup establishes the connection to the review system.
	Setup(ctx context.Context) error
	Log(ctx context.Context, branch, sinceID string) model.RecordIterator
	LastID(ctx context.Context, branch string) (string, error)
	Close() error
}

// MailList harvests messages from one mailing list archive. The adapter
// tracks its own resumption marks through the storage handle and must only
// mark an archive consumed after its records have been drained.
type MailList interface {
	Log(ctx context.Context, store storage.Store) model.RecordIterator
}

// MemberList harvests member profiles from a community roster. Resumption
// state lives in storage, advanced as records are consumed.
type MemberList interface {
	Log(ctx context.Context, store storage.Store) model.RecordIterator
}

// Factories bind adapters to their descriptors.
type (
	VCSFactory    func(repo model.Repo) (VCS, error)
	RCSFactory    func(repo model.Repo) (RCS, error)
	MailFactory   func(uri string) (MailList, error)
	MemberFactory func(uri string) (MemberList, error)
)

// DriverFor maps a repo URI to the VCS driver handling it. Everything a git
// remote understands maps to the git driver.
func DriverFor(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	switch parsed.Scheme {
	case "git", "ssh", "http", "https", "file":
		return "git"
	case "":
		// bare paths are local git clones
		if strings.TrimSpace(uri) == "" {
			return ""
		}
		return "git"
	default:
		return ""
	}
}

// Resolver picks concrete adapters for descriptors. The zero value resolves
// nothing; commands register configured factories, tests register fakes.
type Resolver struct {
	vcs    map[string]VCSFactory
	rcs    RCSFactory
	mail   MailFactory
	member MemberFactory
}

// NewResolver returns an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{vcs: make(map[string]VCSFactory)}
}

// RegisterVCS installs the factory handling a driver name.
func (r *Resolver) RegisterVCS(driver string, factory VCSFactory) *Resolver {
	if r.vcs == nil {
		r.vcs = make(map[string]VCSFactory)
	}
	r.vcs[driver] = factory
	return r
}

// RegisterRCS installs the review system factory.
func (r *Resolver) RegisterRCS(factory RCSFactory) *Resolver {
	r.rcs = factory
	return r
}

// RegisterMail installs the mailing list factory.
func (r *Resolver) RegisterMail(factory MailFactory) *Resolver {
	r.mail = factory
	return r
}

// RegisterMember installs the member roster factory.
func (r *Resolver) RegisterMember(factory MemberFactory) *Resolver {
	r.member = factory
	return r
}

// VCS resolves the commit adapter for a repo.
func (r *Resolver) VCS(repo model.Repo) (VCS, error) {
	driver := DriverFor(repo.URI)
	if driver == "" {
		return nil, status.ErrUnknownDriver.WrapMessage("repo %q", repo.URI)
	}
	factory, ok := r.vcs[driver]
	if !ok {
		return nil, status.ErrUnconfigured.WrapMessage("no %q driver registered", driver)
	}
	return factory(repo)
}

// RCS resolves the review adapter for a repo, or (nil, nil) when reviews are
// not configured.
func (r *Resolver) RCS(repo model.Repo) (RCS, error) {
	if r.rcs == nil {
		return nil, nil
	}
	return r.rcs(repo)
}

// MailList resolves the adapter for one archive URI, or (nil, nil) when
// mailing lists are not configured.
func (r *Resolver) MailList(uri string) (MailList, error) {
	if r.mail == nil {
		return nil, nil
	}
	return r.mail(uri)
}

// MemberList resolves the adapter for one roster URI, or (nil, nil) when
// member rosters are not configured.
func (r *Resolver) MemberList(uri string) (MemberList, error) {
	if r.member == nil {
		return nil, nil
	}
	return r.member(uri)
}
