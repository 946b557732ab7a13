// Copyright © 2018 One Concern

// Package storage provides the runtime K/V store interface backing the
// harvesting pipeline.
//
// This package supports the following backends:
//   - badger (embedded LSM store, the production backend)
//   - local file system (one file per key, for development and tests)
//
// Merge semantics are shared across backends through ResolveMerge and
// AmendRecord, so a policy behaves identically whatever the backend.
package storage
