// Package status declares error constants returned by source adapters and
// their resolver.
package status

import "github.com/oneconcern/trawler/pkg/errors"

var (
	// ErrUnknownDriver indicates a repo URI no registered driver understands
	ErrUnknownDriver = errors.New("unknown source driver")

	// ErrUnconfigured indicates a source kind with no registered factory
	ErrUnconfigured = errors.New("source kind not configured")

	// ErrBranchNotFound indicates a branch absent from the repository
	ErrBranchNotFound = errors.New("branch not found")

	// ErrFetch indicates a failure syncing the local mirror
	ErrFetch = errors.New("fetching source failed")

	// ErrSetup indicates a failure establishing the adapter's connection
	ErrSetup = errors.New("source setup failed")

	// ErrLog indicates a failure while streaming records out of a source
	ErrLog = errors.New("source log failed")
)
