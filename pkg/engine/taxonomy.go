package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/oneconcern/trawler/pkg/engine/status"
	"github.com/oneconcern/trawler/pkg/errors"
	"github.com/oneconcern/trawler/pkg/fetch"
	"github.com/oneconcern/trawler/pkg/model"
	storagestatus "github.com/oneconcern/trawler/pkg/storage/status"
	"go.uber.org/zap"
)

// Fixed group ids of the taxonomy. The maturity buckets exist even when
// empty; unknown is the sentinel for records not mapped to any module.
const (
	groupBootstrap  = "official-bootstrap"
	groupIncubation = "official-incubation"
	groupMature     = "official-mature"
	groupCore       = "official-core"
	groupOther      = "other"
	groupUnknown    = "unknown"
)

// programEntry is one program of the official feed, a YAML map of program
// name to entry.
type programEntry struct {
	Codename string          `yaml:"codename"`
	Projects []programModule `yaml:"projects"`
}

type programModule struct {
	Repo              string `yaml:"repo"`
	BootstrappedSince string `yaml:"bootstrapped-since"`
	IncubatedSince    string `yaml:"incubated-since"`
	MatureSince       string `yaml:"mature-since"`
	CoreSince         string `yaml:"core-since"`
}

type maturityMark struct {
	group string
	since string
}

// maturityMarks lists the module's maturity transitions. Order settles the
// tie when two marks name the same release: the earliest stage wins.
func (m programModule) maturityMarks() []maturityMark {
	all := []maturityMark{
		{group: groupBootstrap, since: m.BootstrappedSince},
		{group: groupIncubation, since: m.IncubatedSince},
		{group: groupMature, since: m.MatureSince},
		{group: groupCore, since: m.CoreSince},
	}
	marks := all[:0]
	for _, mark := range all {
		if mark.since != "" {
			mark.since = strings.ToLower(mark.since)
			marks = append(marks, mark)
		}
	}
	return marks
}

// updateTaxonomy rebuilds the module group map in three layers: whatever
// is already stored, overlaid with the official program feed, overlaid
// with one group per known module plus the unknown sentinel. Later layers
// win on colliding ids. A feed failure aborts the pass and leaves the
// stored taxonomy untouched.
func (e *Engine) updateTaxonomy(ctx context.Context, l *zap.Logger) error {
	groups := make(map[string]model.ModuleGroup)
	if err := e.store.GetByKey(ctx, model.KeyModuleGroups, &groups); err != nil && !errors.Is(err, storagestatus.ErrNotFound) {
		return status.ErrTaxonomy.Wrap(err)
	}

	if e.programListURI == "" {
		l.Debug("no program list uri configured, keeping stored groups")
	} else {
		var releases []model.Release
		if err := e.store.GetByKey(ctx, model.KeyReleases, &releases); err != nil && !errors.Is(err, storagestatus.ErrNotFound) {
			return status.ErrTaxonomy.Wrap(err)
		}

		feed := make(map[string]programEntry)
		if err := fetch.YAML(ctx, e.programListURI, &feed, e.fetchOpts...); err != nil {
			return status.ErrTaxonomy.Wrap(err)
		}

		for id, group := range officialGroups(feed, model.ReleaseNames(releases), l) {
			groups[id] = group
		}
	}

	var repos []model.Repo
	if err := e.store.GetByKey(ctx, model.KeyRepos, &repos); err != nil && !errors.Is(err, storagestatus.ErrNotFound) {
		return status.ErrTaxonomy.Wrap(err)
	}
	for _, repo := range repos {
		if repo.Module == "" {
			continue
		}
		groups[repo.Module] = model.NewModuleGroup(repo.Module, model.TagModule)
	}

	// records not attributable to any module land here
	groups[groupUnknown] = model.NewModuleGroup(groupUnknown, model.TagModule)

	for id, group := range groups {
		group.Normalize()
		groups[id] = group
	}

	if err := e.store.SetByKey(ctx, model.KeyModuleGroups, groups); err != nil {
		return status.ErrTaxonomy.Wrap(err)
	}
	l.Info("module groups updated", zap.Int("groups", len(groups)))
	return nil
}

// officialGroups builds the feed layer of the taxonomy: one group per
// program, the four maturity buckets, and the other bucket for modules
// without maturity marks.
//
// A maturity bucket records a module under a release only when one of the
// module's marks names that release exactly. Releases compare lowercased
// against the stored release train.
func officialGroups(feed map[string]programEntry, releaseNames []string, l *zap.Logger) map[string]model.ModuleGroup {
	groups := make(map[string]*model.ModuleGroup)

	// get-or-create, so programs colliding on an id accumulate modules
	// instead of dropping them
	group := func(id, name, tag string) *model.ModuleGroup {
		g, ok := groups[id]
		if !ok {
			g = &model.ModuleGroup{ID: id}
			groups[id] = g
		}
		g.Name = name
		g.Tag = tag
		return g
	}

	for _, id := range []string{groupBootstrap, groupIncubation, groupMature, groupCore} {
		group(id, id, model.TagProjectType)
	}

	for programName, program := range feed {
		id := strings.ToLower(programName)
		display := programName
		if program.Codename != "" {
			display = fmt.Sprintf("%s (%s)", program.Codename, programName)
			id = strings.ToLower(program.Codename) + "-group"
		}
		programGroup := group(id, display, model.TagProgram)

		for _, project := range program.Projects {
			module := moduleName(project.Repo)
			if module == "" {
				l.Warn("program entry without a usable repo name",
					zap.String("program", programName), zap.String("repo", project.Repo))
				continue
			}
			programGroup.AddModule(module)

			marks := project.maturityMarks()
			if len(marks) == 0 {
				group(groupOther, groupOther, model.TagProjectType).AddModule(module)
				continue
			}
			for _, release := range releaseNames {
				for _, mark := range marks {
					if mark.since == release {
						group(mark.group, mark.group, model.TagProjectType).AddReleaseModule(release, module)
						break
					}
				}
			}
		}
	}

	out := make(map[string]model.ModuleGroup, len(groups))
	for id, g := range groups {
		out[id] = *g
	}
	return out
}

// moduleName derives the short module name from a feed repo reference,
// the repo part of an org/repo pair.
func moduleName(repo string) string {
	parts := strings.SplitN(repo, "/", 3)
	if len(parts) > 1 {
		return parts[1]
	}
	return parts[0]
}
