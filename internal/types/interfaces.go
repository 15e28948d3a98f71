// internal/types/interfaces.go
package types

import (
	"context"
	"time"
)

// EventLog is durable append-only storage for threads and their events.
// Events are immutable once appended except for the visibility flag, which
// SetVisibility may flip any number of times.
type EventLog interface {
	CreateThread(ctx context.Context, thread *Thread) error
	GetThread(ctx context.Context, id ThreadID) (*Thread, error)
	ListThreads(ctx context.Context) ([]*Thread, error)
	TouchThread(ctx context.Context, id ThreadID, at time.Time) error
	AppendEvent(ctx context.Context, event *Event) error
	ListEvents(ctx context.Context, threadID ThreadID) ([]*Event, error)
	SetVisibility(ctx context.Context, id EventID, visible bool) error
}

// ArtifactStore holds oversized tool output out of band so event payloads
// stay small.
type ArtifactStore interface {
	Put(ctx context.Context, threadID ThreadID, tool, data string) (ArtifactID, error)
	Get(ctx context.Context, id ArtifactID) (string, error)
	GetMeta(ctx context.Context, id ArtifactID) (*ArtifactMeta, error)
}
