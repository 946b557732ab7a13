package engine

import (
	"github.com/oneconcern/trawler/pkg/model"
	"github.com/oneconcern/trawler/pkg/storage"
)

// MergeCommits reconciles a re-harvested commit with its stored form. Only
// the branch set moves: seeing a commit again on branches already recorded
// is a no-op, a new branch widens the set. Every other field of the stored
// record is left alone, corrections are the vehicle for field fixes.
func MergeCommits(existing, incoming model.Record) bool {
	current := existing.Branches()
	next := incoming.Branches()
	if next.SubsetOf(current) {
		return false
	}
	current.Union(next)
	existing.SetBranches(current)
	return true
}

// MergeRecords lays every incoming field over the stored record, keeping
// fields only the stored record carries. Reports whether anything changed,
// so untouched records are not rewritten.
//
// The overlay is the one corrections use, so the two paths cannot drift.
func MergeRecords(existing, incoming model.Record) bool {
	return storage.AmendRecord(existing, model.Correction(incoming))
}
