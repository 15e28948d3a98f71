// internal/types/models.go
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event type tags. Compaction records are persisted like any other event but
// are never sent to the model.
const (
	EventUserMessage      = "user_message"
	EventAssistantMessage = "assistant_message"
	EventToolCall         = "tool_call"
	EventToolResult       = "tool_result"
	EventCompaction       = "compaction"
)

// Event is one immutable step of a conversation. Only VisibleToModel may
// change after the event is persisted: nil or true means the event is part
// of the working conversation, explicit false means audit-only.
type Event struct {
	ID             EventID         `json:"id"`
	ThreadID       ThreadID        `json:"thread_id"`
	Seq            int64           `json:"seq"`
	Type           string          `json:"type"`
	At             time.Time       `json:"at"`
	Payload        json.RawMessage `json:"payload"`
	VisibleToModel *bool           `json:"visible_to_model,omitempty"`
}

// Visible reports whether the event belongs in the working conversation.
func (e *Event) Visible() bool {
	return e.VisibleToModel == nil || *e.VisibleToModel
}

// Thread is a stable-id ordered sequence of events. The ID is never
// reassigned for the thread's lifetime.
type Thread struct {
	ID        ThreadID  `json:"id"`
	SessionID SessionID `json:"session_id"`
	ProjectID ProjectID `json:"project_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessagePayload is the payload of user_message and assistant_message events.
type MessagePayload struct {
	Text string `json:"text"`
}

// ToolCallPayload is the payload of tool_call events.
type ToolCallPayload struct {
	Tool      string          `json:"tool"`
	CallID    string          `json:"call_id"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolResultPayload is the payload of tool_result events. IsError marks
// results that carry error text instead of tool output.
type ToolResultPayload struct {
	Tool       string     `json:"tool"`
	CallID     string     `json:"call_id"`
	Result     string     `json:"result"`
	IsError    bool       `json:"is_error,omitempty"`
	ArtifactID ArtifactID `json:"artifact_id,omitempty"`
}

// CompactionPayload is the payload of compaction events: metadata about a
// compaction run, never model-visible content.
type CompactionPayload struct {
	StrategyID          string            `json:"strategy_id"`
	OriginalEventCount  int               `json:"original_event_count"`
	CompactedEventCount int               `json:"compacted_event_count"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

// NewEvent builds an unpersisted event of the given type. The ID, sequence,
// and timestamp are assigned at append time by the thread manager.
func NewEvent(threadID ThreadID, eventType string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ThreadID: threadID,
		Type:     eventType,
		Payload:  data,
	}, nil
}

// ArtifactMeta describes a stored tool-output artifact.
type ArtifactMeta struct {
	ID        ArtifactID `json:"id"`
	ThreadID  ThreadID   `json:"thread_id"`
	Tool      string     `json:"tool"`
	CreatedAt time.Time  `json:"created_at"`
}
