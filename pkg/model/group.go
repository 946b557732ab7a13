package model

import "sort"

// Module group tags tell how a group entered the taxonomy.
const (
	// TagProgram marks a group read from the official program feed.
	TagProgram = "program"
	// TagProjectType marks a maturity bucket (official-* and other).
	TagProjectType = "project_type"
	// TagModule marks a single module registered as its own group.
	TagModule = "module"
)

// ModuleGroup is one node of the module taxonomy.
type ModuleGroup struct {
	ID       string              `json:"id" yaml:"id"`
	Name     string              `json:"module_group_name" yaml:"module_group_name"`
	Tag      string              `json:"tag" yaml:"tag"`
	Modules  []string            `json:"modules" yaml:"modules"`
	Releases map[string][]string `json:"releases,omitempty" yaml:"releases,omitempty"`
}

// NewModuleGroup builds the single-module registration form of a group, used
// for plain modules and the unknown sentinel.
func NewModuleGroup(id, tag string) ModuleGroup {
	return ModuleGroup{
		ID:      id,
		Name:    id,
		Tag:     tag,
		Modules: []string{id},
	}
}

// AddModule appends a module to the group.
func (g *ModuleGroup) AddModule(module string) {
	g.Modules = append(g.Modules, module)
}

// AddReleaseModule appends a module under one release bucket.
func (g *ModuleGroup) AddReleaseModule(release, module string) {
	if g.Releases == nil {
		g.Releases = make(map[string][]string)
	}
	g.Releases[release] = append(g.Releases[release], module)
}

// Normalize dedupes and sorts the module list and every release bucket, so
// rebuilding the taxonomy from the same inputs stores identical bytes.
func (g *ModuleGroup) Normalize() {
	g.Modules = dedupeSorted(g.Modules)
	for release, modules := range g.Releases {
		g.Releases[release] = dedupeSorted(modules)
	}
}

func dedupeSorted(in []string) []string {
	if in == nil {
		return nil
	}
	out := NewStringSet(in...).Sorted()
	return out
}

// GroupIDs returns the ids of a group map in lexical order.
func GroupIDs(groups map[string]ModuleGroup) []string {
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
