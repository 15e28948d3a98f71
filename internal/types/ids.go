// internal/types/ids.go
package types

import "github.com/google/uuid"

type ThreadID string
type SessionID string
type ProjectID string
type EventID string
type RequestID string
type ArtifactID string

func NewThreadID() ThreadID {
	return ThreadID(uuid.New().String())
}

func NewEventID() EventID {
	return EventID(uuid.New().String())
}

func NewRequestID() RequestID {
	return RequestID(uuid.New().String())
}

func NewArtifactID() ArtifactID {
	return ArtifactID(uuid.New().String())
}
