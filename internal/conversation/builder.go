// internal/conversation/builder.go
package conversation

import (
	"encoding/json"

	"github.com/user/threadkeeper/internal/types"
)

// Working reduces a thread's full history to the model-visible view: events
// whose visibility flag is unset or true, in the order given, with stale
// tool results dropped in favor of the most recent result per call id.
// The function is pure and idempotent; visibility is the single source of
// truth, so no merge or extraction logic is needed.
func Working(events []*types.Event) []*types.Event {
	visible := make([]*types.Event, 0, len(events))
	for _, event := range events {
		if event.Visible() {
			visible = append(visible, event)
		}
	}

	// A tool can be re-run for the same call id (e.g. a summarize pass
	// refreshing file content); only the latest result should reach the
	// model.
	latest := make(map[string]int)
	for i, event := range visible {
		if id := resultCallID(event); id != "" {
			latest[id] = i
		}
	}
	if len(latest) == 0 {
		return visible
	}

	out := make([]*types.Event, 0, len(visible))
	for i, event := range visible {
		if id := resultCallID(event); id != "" && latest[id] != i {
			continue
		}
		out = append(out, event)
	}
	return out
}

func resultCallID(event *types.Event) string {
	if event.Type != types.EventToolResult {
		return ""
	}
	var payload types.ToolResultPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return ""
	}
	return payload.CallID
}
