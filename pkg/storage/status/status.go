// Copyright © 2018 One Concern

// Package status declares error constants returned by
// implementations of the Store interface.
//
// NOTE: such constants are located in a separate package to avoid
// creating undue cyclical dependencies between pkg/storage and one
// of its implementations.
package status

import "github.com/oneconcern/trawler/pkg/errors"

var (
	// Sentinel errors returned by implementations of the interface defined by storage

	// ErrNotFound indicates that the key was never written to storage
	ErrNotFound = errors.New("not found")

	// ErrInvalidValue indicates that a stored value could not be decoded into
	// the requested shape
	ErrInvalidValue = errors.New("invalid stored value")

	// ErrStorageAPI indicates any other backend failure
	ErrStorageAPI = errors.New("storage API error")

	// ErrClosed indicates an operation on a store that was already closed
	ErrClosed = errors.New("store is closed")
)
