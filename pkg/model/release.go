package model

import "strings"

// Release is one entry of the project release train, ordered oldest first in
// the stored release list. The first entry covers prehistory and never scopes
// taxonomy buckets.
type Release struct {
	ReleaseName string `json:"release_name" yaml:"release_name"`
	EndDate     string `json:"end_date,omitempty" yaml:"end_date,omitempty"`
}

// ReleaseNames returns the lowercased names of every release past the
// prehistory entry.
func ReleaseNames(releases []Release) []string {
	if len(releases) <= 1 {
		return nil
	}
	out := make([]string, 0, len(releases)-1)
	for _, r := range releases[1:] {
		out = append(out, strings.ToLower(r.ReleaseName))
	}
	return out
}
