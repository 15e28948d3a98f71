// internal/types/errors.go
package types

import "errors"

// Sentinel errors shared across packages. Callers match with errors.Is;
// sites that raise them wrap the offending id via fmt.Errorf and %w so the
// message stays actionable.
var (
	ErrThreadNotFound      = errors.New("thread not found")
	ErrDuplicateThread     = errors.New("duplicate thread")
	ErrUnknownStrategy     = errors.New("unknown compaction strategy")
	ErrApprovalCancelled   = errors.New("approval cancelled")
	ErrToolExecutionFailed = errors.New("tool execution failed")
	ErrStrategyFailed      = errors.New("compaction strategy failed")
	ErrArtifactNotFound    = errors.New("artifact not found")
)
