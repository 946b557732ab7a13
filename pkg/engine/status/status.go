// Package status declares error constants returned by the update engine.
package status

import "github.com/oneconcern/trawler/pkg/errors"

var (
	// ErrDefaultData indicates the prerequisite dataset could not be loaded.
	// This failure is fatal to the cycle
	ErrDefaultData = errors.New("default data unavailable")

	// ErrRepoSync indicates one repo failed to sync. Other repos of the same
	// cycle are unaffected
	ErrRepoSync = errors.New("repo sync failed")

	// ErrMailSync indicates one mailing list failed to sync
	ErrMailSync = errors.New("mail list sync failed")

	// ErrMemberSync indicates one member roster failed to sync
	ErrMemberSync = errors.New("member roster sync failed")

	// ErrProcessor indicates the record processor post-pass failed
	ErrProcessor = errors.New("record processor update failed")

	// ErrCorrections indicates the corrections pass failed. Corrections are
	// best effort and never fail a cycle
	ErrCorrections = errors.New("corrections pass failed")

	// ErrTaxonomy indicates the module taxonomy could not be rebuilt
	ErrTaxonomy = errors.New("module taxonomy pass failed")
)
