// Package dataset bootstraps the static seed data the pipeline depends on:
// user and company identities, the repos to harvest, the release train and
// the mailing list and member roster URIs.
//
// The document is normalized, then stored section by section, but only when
// its digest differs from the one persisted by the previous cycle.
package dataset

import (
	"context"
	"encoding/hex"
	"path"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/oneconcern/trawler/pkg/errors"
	"github.com/oneconcern/trawler/pkg/fetch"
	"github.com/oneconcern/trawler/pkg/model"
	"github.com/oneconcern/trawler/pkg/storage"
	storagestatus "github.com/oneconcern/trawler/pkg/storage/status"
)

// ErrInvalidData indicates an unusable default data document.
var ErrInvalidData = errors.New("invalid default data")

// Document is the default data set.
type Document struct {
	Users       []User          `json:"users,omitempty"`
	Companies   []Company       `json:"companies,omitempty"`
	Repos       []model.Repo    `json:"repos,omitempty"`
	Releases    []model.Release `json:"releases,omitempty"`
	MailLists   []string        `json:"mail_lists,omitempty"`
	MemberLists []string        `json:"member_lists,omitempty"`
}

// User maps a contributor's identities together.
type User struct {
	LaunchpadID string        `json:"launchpad_id,omitempty"`
	UserName    string        `json:"user_name,omitempty"`
	Emails      []string      `json:"emails,omitempty"`
	Companies   []UserCompany `json:"companies,omitempty"`
}

// UserCompany is one employment period of a user.
type UserCompany struct {
	CompanyName string `json:"company_name"`
	EndDate     string `json:"end_date,omitempty"`
}

// Company ties a company name to its mail domains.
type Company struct {
	CompanyName string   `json:"company_name"`
	Domains     []string `json:"domains,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
}

// Option alters dataset processing.
type Option func(*settings)

type settings struct {
	l *zap.Logger
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.l = l
		}
	}
}

// Fetch reads the default data document at uri.
func Fetch(ctx context.Context, uri string, opts ...fetch.Option) (*Document, error) {
	var doc Document
	if err := fetch.JSON(ctx, uri, &doc, opts...); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Process normalizes the document and stores each section under its own key.
// Nothing is written when the document digest matches the stored one, unless
// force is set. Reports whether storage was updated.
func Process(ctx context.Context, store storage.Store, data *Document, force bool, opts ...Option) (bool, error) {
	s := settings{l: zap.NewNop()}
	for _, apply := range opts {
		apply(&s)
	}
	if data == nil {
		return false, ErrInvalidData.WrapMessage("no document")
	}

	normalized := normalize(data, s.l)
	digest, err := documentDigest(normalized)
	if err != nil {
		return false, err
	}

	var stored string
	err = store.GetByKey(ctx, model.KeyDefaultDataDigest, &stored)
	if err != nil && !errors.Is(err, storagestatus.ErrNotFound) {
		return false, err
	}
	if stored == digest && !force {
		s.l.Debug("default data unchanged", zap.String("digest", digest))
		return false, nil
	}

	sections := []struct {
		key   string
		value interface{}
	}{
		{model.KeyUsers, normalized.Users},
		{model.KeyCompanies, normalized.Companies},
		{model.KeyRepos, normalized.Repos},
		{model.KeyReleases, normalized.Releases},
		{model.KeyMailLists, normalized.MailLists},
		{model.KeyMemberLists, normalized.MemberLists},
	}
	for _, section := range sections {
		if err := store.SetByKey(ctx, section.key, section.value); err != nil {
			return false, err
		}
	}
	if err := store.SetByKey(ctx, model.KeyDefaultDataDigest, digest); err != nil {
		return false, err
	}
	s.l.Info("default data stored",
		zap.Int("users", len(normalized.Users)),
		zap.Int("repos", len(normalized.Repos)),
		zap.Int("releases", len(normalized.Releases)),
		zap.String("digest", digest))
	return true, nil
}

// normalize lowercases matching fields, fills derivable gaps and drops
// entries the pipeline cannot use.
func normalize(data *Document, l *zap.Logger) *Document {
	out := &Document{
		MailLists:   dropEmpty(data.MailLists),
		MemberLists: dropEmpty(data.MemberLists),
	}

	for _, user := range data.Users {
		emails := make([]string, len(user.Emails))
		for i, email := range user.Emails {
			emails[i] = strings.ToLower(email)
		}
		user.Emails = emails
		out.Users = append(out.Users, user)
	}
	for _, company := range data.Companies {
		domains := make([]string, len(company.Domains))
		for i, domain := range company.Domains {
			domains[i] = strings.ToLower(domain)
		}
		company.Domains = domains
		out.Companies = append(out.Companies, company)
	}
	for _, repo := range data.Repos {
		if repo.Module == "" {
			repo.Module = ModuleFromURI(repo.URI)
		}
		if err := repo.Validate(); err != nil {
			l.Warn("repo descriptor dropped", zap.String("uri", repo.URI), zap.Error(err))
			continue
		}
		out.Repos = append(out.Repos, repo)
	}
	for _, release := range data.Releases {
		if release.ReleaseName == "" {
			l.Warn("release without a name dropped")
			continue
		}
		out.Releases = append(out.Releases, release)
	}
	return out
}

// ModuleFromURI derives a module name from the repo URI basename.
func ModuleFromURI(uri string) string {
	base := path.Base(strings.TrimSuffix(uri, "/"))
	base = strings.TrimSuffix(base, ".git")
	if base == "." || base == "/" {
		return ""
	}
	return strings.ToLower(base)
}

func dropEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// documentDigest fingerprints the normalized document. Struct marshaling is
// deterministic, so equal documents digest equally.
func documentDigest(data *Document) (string, error) {
	raw, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(data)
	if err != nil {
		return "", ErrInvalidData.Wrap(err)
	}
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
