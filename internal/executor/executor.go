// internal/executor/executor.go
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/semaphore"

	"github.com/user/threadkeeper/internal/approval"
	"github.com/user/threadkeeper/internal/thread"
	"github.com/user/threadkeeper/internal/tools"
	"github.com/user/threadkeeper/internal/types"
)

const defaultArtifactThreshold = 2000

// Executor runs tool calls that the approval bridge has allowed and records
// both the call and its result as thread events. The semaphore caps how
// many tools run at once across all threads; approval waits do not hold a
// slot, so a suspended request never starves an approved one.
type Executor struct {
	registry  *tools.Registry
	bridge    *approval.Bridge
	manager   *thread.Manager
	artifacts types.ArtifactStore
	sem       *semaphore.Weighted
	threshold int
}

// New creates an Executor. artifacts may be nil to disable offload;
// artifactThreshold <= 0 selects the default.
func New(registry *tools.Registry, bridge *approval.Bridge, manager *thread.Manager, artifacts types.ArtifactStore, maxConcurrent int64, artifactThreshold int) *Executor {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	if artifactThreshold <= 0 {
		artifactThreshold = defaultArtifactThreshold
	}
	return &Executor{
		registry:  registry,
		bridge:    bridge,
		manager:   manager,
		artifacts: artifacts,
		sem:       semaphore.NewWeighted(maxConcurrent),
		threshold: artifactThreshold,
	}
}

// Execute records the tool call, asks the bridge for a decision, runs the
// tool if allowed, and records the result. Denials, cancellations, and
// tool failures all come back as error-marked tool_result events so the
// conversation can continue; a cancelled approval is treated exactly like
// a denial and is never retried. The returned event is the persisted
// tool_result.
func (e *Executor) Execute(ctx context.Context, threadID types.ThreadID, call types.ToolCallPayload) (*types.Event, error) {
	callEvent, err := types.NewEvent(threadID, types.EventToolCall, call)
	if err != nil {
		return nil, err
	}
	if _, err := e.manager.AddEvent(ctx, threadID, callEvent); err != nil {
		return nil, fmt.Errorf("record tool call: %w", err)
	}

	decision, decisionErr := e.bridge.Request(ctx, call.Tool, call.Arguments)
	if decision != approval.DecisionAllowed {
		reason := "permission denied"
		if errors.Is(decisionErr, types.ErrApprovalCancelled) {
			reason = "permission request cancelled"
			// The turn context is already done; the denial still has to
			// land in the log.
			ctx = context.WithoutCancel(ctx)
		}
		return e.recordResult(ctx, threadID, call, fmt.Sprintf("error: %s for tool %q", reason, call.Tool), true)
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return e.recordResult(ctx, threadID, call, fmt.Sprintf("error: %v", err), true)
	}
	defer e.sem.Release(1)

	tool, ok := e.registry.Get(call.Tool)
	if !ok {
		return e.recordResult(ctx, threadID, call, fmt.Sprintf("error: unknown tool %q", call.Tool), true)
	}

	output, execErr := tool.Execute(ctx, call.Arguments)
	if execErr != nil {
		wrapped := fmt.Errorf("%w: %s: %v", types.ErrToolExecutionFailed, call.Tool, execErr)
		slog.Warn("tool failed", "tool", call.Tool, "thread_id", string(threadID), "error", execErr)
		return e.recordResult(ctx, threadID, call, "error: "+wrapped.Error(), true)
	}

	return e.recordResult(ctx, threadID, call, output, false)
}

// recordResult appends the tool_result event, offloading oversized output
// to the artifact store with a truncated preview left in the payload.
func (e *Executor) recordResult(ctx context.Context, threadID types.ThreadID, call types.ToolCallPayload, result string, isError bool) (*types.Event, error) {
	payload := types.ToolResultPayload{
		Tool:    call.Tool,
		CallID:  call.CallID,
		Result:  result,
		IsError: isError,
	}

	if !isError && e.artifacts != nil && len(result) > e.threshold {
		artifactID, err := e.artifacts.Put(ctx, threadID, call.Tool, result)
		if err == nil {
			payload.ArtifactID = artifactID
			payload.Result = result[:e.threshold] + "\n[truncated, see artifact " + string(artifactID) + "]"
		}
	}

	event, err := types.NewEvent(threadID, types.EventToolResult, payload)
	if err != nil {
		return nil, err
	}
	if _, err := e.manager.AddEvent(ctx, threadID, event); err != nil {
		return nil, fmt.Errorf("record tool result: %w", err)
	}
	return event, nil
}
