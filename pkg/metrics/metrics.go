// Package metrics tallies what one update cycle did and posts the result to
// an influxdb backend as a single batch. Counters are safe for the engine's
// concurrent repo workers.
package metrics

import (
	"time"

	"go.uber.org/atomic"

	"github.com/oneconcern/trawler/pkg/model"
	"github.com/oneconcern/trawler/pkg/storage"
)

// MergeTally accumulates merge outcomes for one record kind.
type MergeTally struct {
	New       atomic.Int64
	Updated   atomic.Int64
	Unchanged atomic.Int64
	Skipped   atomic.Int64
}

// Add folds one drain's outcome into the tally.
func (t *MergeTally) Add(stats storage.MergeStats) {
	t.New.Add(int64(stats.New))
	t.Updated.Add(int64(stats.Updated))
	t.Unchanged.Add(int64(stats.Unchanged))
	t.Skipped.Add(int64(stats.Skipped))
}

// Total counts every record the tally saw.
func (t *MergeTally) Total() int64 {
	return t.New.Load() + t.Updated.Load() + t.Unchanged.Load() + t.Skipped.Load()
}

func (t *MergeTally) fields(prefix string, out map[string]interface{}) {
	out[prefix+"_new"] = t.New.Load()
	out[prefix+"_updated"] = t.Updated.Load()
	out[prefix+"_unchanged"] = t.Unchanged.Load()
	out[prefix+"_skipped"] = t.Skipped.Load()
}

// CycleStats tallies one update cycle.
type CycleStats struct {
	Run       string
	StartedAt time.Time

	ReposProcessed atomic.Int64
	ReposFailed    atomic.Int64

	Commits MergeTally
	Reviews MergeTally
	Emails  MergeTally
	Members MergeTally
	Other   MergeTally

	CorrectionsApplied atomic.Int64
}

// NewCycleStats starts the tally for one run.
func NewCycleStats(run string) *CycleStats {
	return &CycleStats{Run: run, StartedAt: time.Now()}
}

// TallyFor routes a record kind to its tally. Unknown kinds land in Other.
func (c *CycleStats) TallyFor(kind string) *MergeTally {
	switch kind {
	case model.TypeCommit:
		return &c.Commits
	case model.TypeReview:
		return &c.Reviews
	case model.TypeEmail:
		return &c.Emails
	case model.TypeMember:
		return &c.Members
	default:
		return &c.Other
	}
}

// Elapsed is the wall time since the cycle started.
func (c *CycleStats) Elapsed() time.Duration {
	return time.Since(c.StartedAt)
}

// Written counts the records that changed storage, across every kind.
func (c *CycleStats) Written() int64 {
	var total int64
	for _, t := range []*MergeTally{&c.Commits, &c.Reviews, &c.Emails, &c.Members, &c.Other} {
		total += t.New.Load() + t.Updated.Load()
	}
	return total
}

// Fields flattens the tallies for publishing.
func (c *CycleStats) Fields() map[string]interface{} {
	out := map[string]interface{}{
		"repos_processed":     c.ReposProcessed.Load(),
		"repos_failed":        c.ReposFailed.Load(),
		"corrections_applied": c.CorrectionsApplied.Load(),
		"elapsed_ms":          c.Elapsed().Milliseconds(),
	}
	c.Commits.fields("commits", out)
	c.Reviews.fields("reviews", out)
	c.Emails.fields("emails", out)
	c.Members.fields("members", out)
	c.Other.fields("other", out)
	return out
}
