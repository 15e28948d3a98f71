// internal/compact/strategy.go
package compact

import (
	"context"

	"github.com/user/threadkeeper/internal/tools"
	"github.com/user/threadkeeper/internal/types"
	"github.com/user/threadkeeper/pkg/llm"
)

// Context supplies a strategy with the thread it is compacting and the
// optional handles it may use: a model provider for summarization and a
// tool registry for refreshing stale content. Params carry per-invocation
// options.
type Context struct {
	ThreadID types.ThreadID
	Provider llm.Provider
	Tools    *tools.Registry
	Params   map[string]string
}

// Result is a strategy's output. The compaction event records metadata
// about the run and is persisted hidden; the compacted events are the
// replacement working conversation, persisted as ordinary visible rows.
type Result struct {
	CompactionEvent *types.Event
	CompactedEvents []*types.Event
}

// Strategy turns a working conversation into a smaller replacement. A
// strategy always returns exactly one compaction event, must skip any
// compaction-record events in its input, and must not assume it is seeing
// the thread for the first time: the input may already contain a prior
// pass's replacement events.
type Strategy interface {
	ID() string
	Compact(ctx context.Context, events []*types.Event, sctx *Context) (*Result, error)
}
