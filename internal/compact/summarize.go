// internal/compact/summarize.go
package compact

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/user/threadkeeper/internal/types"
	"github.com/user/threadkeeper/pkg/llm"
)

const summarizeSystemPrompt = "You are summarizing a coding-agent conversation so it can continue in a fresh context. Preserve the user's goal, decisions made, files touched, and pending work. Reply with the summary only."

// Summarize replaces the entire input window with a generated summary
// message, optionally followed by tool-call/result pairs that re-read
// files named in the reload_files param so their current content survives
// the compaction. Sharp token reduction at the cost of fidelity.
type Summarize struct{}

// NewSummarize creates the summarize strategy.
func NewSummarize() *Summarize { return &Summarize{} }

func (s *Summarize) ID() string { return "summarize" }

func (s *Summarize) Compact(ctx context.Context, events []*types.Event, sctx *Context) (*Result, error) {
	transcript, original := buildTranscript(events)

	source := "fallback"
	summary := fallbackSummary(events)
	if sctx.Provider != nil {
		generated, err := generateSummary(ctx, sctx.Provider, transcript)
		if err != nil {
			return nil, fmt.Errorf("generate summary: %w", err)
		}
		summary = generated
		source = "provider"
	}

	summaryEvent, err := types.NewEvent(sctx.ThreadID, types.EventAssistantMessage, types.MessagePayload{
		Text: "Summary of the conversation so far:\n\n" + summary,
	})
	if err != nil {
		return nil, err
	}
	compacted := []*types.Event{summaryEvent}

	reloads, err := s.reloadFiles(ctx, sctx)
	if err != nil {
		return nil, err
	}
	compacted = append(compacted, reloads...)

	record, err := types.NewEvent(sctx.ThreadID, types.EventCompaction, types.CompactionPayload{
		StrategyID:          s.ID(),
		OriginalEventCount:  original,
		CompactedEventCount: len(compacted),
		Metadata: map[string]string{
			"summary_source": source,
		},
	})
	if err != nil {
		return nil, err
	}

	return &Result{CompactionEvent: record, CompactedEvents: compacted}, nil
}

// reloadFiles re-reads the files named in the reload_files param through
// the read_file tool, producing synthetic call/result event pairs. A failed
// read becomes an error-marked result rather than failing the compaction.
func (s *Summarize) reloadFiles(ctx context.Context, sctx *Context) ([]*types.Event, error) {
	paths := strings.TrimSpace(sctx.Params["reload_files"])
	if paths == "" || sctx.Tools == nil {
		return nil, nil
	}
	reader, ok := sctx.Tools.Get("read_file")
	if !ok {
		return nil, nil
	}

	var out []*types.Event
	for _, path := range strings.Split(paths, ",") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}

		callID := uuid.New().String()
		args, err := json.Marshal(map[string]string{"path": path})
		if err != nil {
			return nil, fmt.Errorf("marshal reload args: %w", err)
		}

		callEvent, err := types.NewEvent(sctx.ThreadID, types.EventToolCall, types.ToolCallPayload{
			Tool:      reader.Name(),
			CallID:    callID,
			Arguments: args,
		})
		if err != nil {
			return nil, err
		}

		result := types.ToolResultPayload{Tool: reader.Name(), CallID: callID}
		content, execErr := reader.Execute(ctx, args)
		if execErr != nil {
			result.Result = fmt.Sprintf("error: %v", execErr)
			result.IsError = true
		} else {
			result.Result = content
		}

		resultEvent, err := types.NewEvent(sctx.ThreadID, types.EventToolResult, result)
		if err != nil {
			return nil, err
		}
		out = append(out, callEvent, resultEvent)
	}
	return out, nil
}

func generateSummary(ctx context.Context, provider llm.Provider, transcript string) (string, error) {
	resp, err := provider.Complete(ctx, []llm.Message{
		{Role: "system", Content: summarizeSystemPrompt},
		{Role: "user", Content: transcript},
	}, nil)
	if err != nil {
		return "", err
	}
	if resp.Content == "" {
		return "", fmt.Errorf("empty summary from provider")
	}
	return resp.Content, nil
}

// buildTranscript renders the non-compaction events as plain text for the
// summarization prompt and returns how many events it consumed.
func buildTranscript(events []*types.Event) (string, int) {
	var b strings.Builder
	count := 0
	for _, event := range events {
		if event.Type == types.EventCompaction {
			continue
		}
		count++

		switch event.Type {
		case types.EventUserMessage, types.EventAssistantMessage:
			var msg types.MessagePayload
			if err := json.Unmarshal(event.Payload, &msg); err != nil {
				continue
			}
			role := "user"
			if event.Type == types.EventAssistantMessage {
				role = "assistant"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, msg.Text)
		case types.EventToolCall:
			var call types.ToolCallPayload
			if err := json.Unmarshal(event.Payload, &call); err != nil {
				continue
			}
			fmt.Fprintf(&b, "tool call: %s(%s)\n", call.Tool, string(call.Arguments))
		case types.EventToolResult:
			var result types.ToolResultPayload
			if err := json.Unmarshal(event.Payload, &result); err != nil {
				continue
			}
			fmt.Fprintf(&b, "tool result (%s): %s\n", result.Tool, result.Result)
		}
	}
	return b.String(), count
}

// fallbackSummary is the deterministic summary used when no provider is
// wired: the most recent user request plus rough shape of the history.
func fallbackSummary(events []*types.Event) string {
	var lastUser string
	counts := map[string]int{}
	for _, event := range events {
		if event.Type == types.EventCompaction {
			continue
		}
		counts[event.Type]++
		if event.Type == types.EventUserMessage {
			var msg types.MessagePayload
			if err := json.Unmarshal(event.Payload, &msg); err == nil {
				lastUser = msg.Text
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The conversation covered %d user messages, %d assistant messages, and %d tool calls.",
		counts[types.EventUserMessage], counts[types.EventAssistantMessage], counts[types.EventToolCall])
	if lastUser != "" {
		fmt.Fprintf(&b, " Most recent user request: %s", lastUser)
	}
	return b.String()
}
