// internal/compact/trim.go
package compact

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/user/threadkeeper/internal/types"
)

const (
	trimLineThreshold = 3
	truncationMarker  = "[results truncated to save space.]"
)

// TrimToolResults preserves the shape of the conversation (turn by turn,
// tool provenance intact) while cutting verbose tool output: any tool
// result longer than the line threshold is truncated to its first lines
// plus a fixed marker. All other events pass through unchanged.
type TrimToolResults struct{}

// NewTrimToolResults creates the trim strategy.
func NewTrimToolResults() *TrimToolResults { return &TrimToolResults{} }

func (t *TrimToolResults) ID() string { return "trim-tool-results" }

func (t *TrimToolResults) Compact(_ context.Context, events []*types.Event, sctx *Context) (*Result, error) {
	compacted := make([]*types.Event, 0, len(events))
	trimmed := 0
	original := 0

	for _, event := range events {
		if event.Type == types.EventCompaction {
			continue
		}
		original++

		payload := event.Payload
		if event.Type == types.EventToolResult {
			var result types.ToolResultPayload
			if err := json.Unmarshal(event.Payload, &result); err != nil {
				return nil, fmt.Errorf("unmarshal tool result: %w", err)
			}
			if short, ok := trimLines(result.Result); ok {
				result.Result = short
				trimmed++
				data, err := json.Marshal(result)
				if err != nil {
					return nil, fmt.Errorf("marshal trimmed result: %w", err)
				}
				payload = data
			}
		}

		compacted = append(compacted, &types.Event{
			ThreadID: sctx.ThreadID,
			Type:     event.Type,
			Payload:  payload,
		})
	}

	record, err := types.NewEvent(sctx.ThreadID, types.EventCompaction, types.CompactionPayload{
		StrategyID:          t.ID(),
		OriginalEventCount:  original,
		CompactedEventCount: len(compacted),
		Metadata: map[string]string{
			"trimmed_results": strconv.Itoa(trimmed),
		},
	})
	if err != nil {
		return nil, err
	}

	return &Result{CompactionEvent: record, CompactedEvents: compacted}, nil
}

// trimLines truncates text to the first trimLineThreshold lines plus the
// marker, reporting whether truncation happened.
func trimLines(text string) (string, bool) {
	lines := strings.Split(text, "\n")
	if len(lines) <= trimLineThreshold {
		return text, false
	}
	kept := append(lines[:trimLineThreshold:trimLineThreshold], truncationMarker)
	return strings.Join(kept, "\n"), true
}
