package model

import (
	"sort"

	"github.com/oneconcern/trawler/pkg/errors"
)

// DefaultBranch is always harvested, whether or not a repo names release
// branches.
const DefaultBranch = "master"

// ErrInvalidRepo indicates a repo descriptor trawler cannot harvest.
var ErrInvalidRepo = errors.New("invalid repo descriptor")

// Repo describes one source code repository to harvest.
type Repo struct {
	URI          string        `json:"uri" yaml:"uri"`
	Module       string        `json:"module,omitempty" yaml:"module,omitempty"`
	Organization string        `json:"organization,omitempty" yaml:"organization,omitempty"`
	Releases     []RepoRelease `json:"releases,omitempty" yaml:"releases,omitempty"`
}

// RepoRelease ties a repo to one release of the release train, optionally
// naming the stable branch that release lives on.
type RepoRelease struct {
	ReleaseName string `json:"release_name" yaml:"release_name"`
	Branch      string `json:"branch,omitempty" yaml:"branch,omitempty"`
	TagFrom     string `json:"tag_from,omitempty" yaml:"tag_from,omitempty"`
	TagTo       string `json:"tag_to,omitempty" yaml:"tag_to,omitempty"`
}

// Branches resolves the branch set to harvest: the default branch plus every
// distinct release branch. The default branch comes first, the rest follow in
// lexical order, so cycles visit branches in a stable order.
func (r Repo) Branches() []string {
	extra := NewStringSet()
	for _, release := range r.Releases {
		if release.Branch != "" && release.Branch != DefaultBranch {
			extra.Add(release.Branch)
		}
	}
	out := make([]string, 0, extra.Len()+1)
	out = append(out, DefaultBranch)
	out = append(out, extra.Sorted()...)
	return out
}

// Validate tells whether the descriptor is harvestable.
func (r Repo) Validate() error {
	if r.URI == "" {
		return ErrInvalidRepo.WrapMessage("empty uri")
	}
	for _, release := range r.Releases {
		if release.ReleaseName == "" {
			return ErrInvalidRepo.WrapMessage("repo %s: release without a name", r.URI)
		}
	}
	return nil
}

// SortRepos orders repo descriptors by URI, the stable order used for
// scheduling and listings.
func SortRepos(repos []Repo) {
	sort.Slice(repos, func(i, j int) bool { return repos[i].URI < repos[j].URI })
}
