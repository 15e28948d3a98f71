// Package state provides the SQLite-backed storage implementations.
package state

import "github.com/user/threadkeeper/internal/types"

// Compile-time interface compliance checks.
var _ types.EventLog = (*Log)(nil)
var _ types.ArtifactStore = (*ArtifactStore)(nil)
