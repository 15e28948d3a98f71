// internal/thread/manager.go
package thread

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/user/threadkeeper/internal/compact"
	"github.com/user/threadkeeper/internal/conversation"
	"github.com/user/threadkeeper/internal/notify"
	"github.com/user/threadkeeper/internal/tools"
	"github.com/user/threadkeeper/internal/types"
	"github.com/user/threadkeeper/pkg/llm"
)

// Manager is the single authority for thread lifecycle, event append,
// visibility mutation, and compaction orchestration. A Manager is cheap to
// construct and holds no durable state of its own; any number of instances
// may share one event log and one Cache.
type Manager struct {
	log      types.EventLog
	cache    *Cache
	notifier *notify.Notifier
	provider llm.Provider
	registry *tools.Registry

	mu         sync.Mutex
	strategies map[string]compact.Strategy
}

// CompactResult reports what a compaction did: the persisted compaction
// record and every event id the pass hid, the record's own id included.
type CompactResult struct {
	CompactionEvent *types.Event
	HiddenEventIDs  []types.EventID
}

// NewManager creates a Manager over the given log and shared cache. The
// notifier may be nil; provider and registry are the optional handles
// passed through to compaction strategies.
func NewManager(log types.EventLog, cache *Cache, notifier *notify.Notifier, provider llm.Provider, registry *tools.Registry) *Manager {
	return &Manager{
		log:        log,
		cache:      cache,
		notifier:   notifier,
		provider:   provider,
		registry:   registry,
		strategies: make(map[string]compact.Strategy),
	}
}

// CreateThread allocates a thread, reusing the given id when non-empty.
// Returns ErrDuplicateThread if the id is already taken. The id never
// changes for the thread's lifetime.
func (m *Manager) CreateThread(ctx context.Context, id types.ThreadID, sessionID types.SessionID, projectID types.ProjectID) (*types.Thread, error) {
	if id == "" {
		id = types.NewThreadID()
	}
	now := time.Now()
	thread := &types.Thread{
		ID:        id,
		SessionID: sessionID,
		ProjectID: projectID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.log.CreateThread(ctx, thread); err != nil {
		return nil, err
	}
	return thread, nil
}

// GetThread returns the thread record.
func (m *Manager) GetThread(ctx context.Context, id types.ThreadID) (*types.Thread, error) {
	return m.log.GetThread(ctx, id)
}

// ListThreads returns all threads.
func (m *Manager) ListThreads(ctx context.Context) ([]*types.Thread, error) {
	return m.log.ListThreads(ctx)
}

// AddEvent appends an event to a thread, assigning its id and timestamp.
// Returns the persisted event, or ErrThreadNotFound.
func (m *Manager) AddEvent(ctx context.Context, threadID types.ThreadID, event *types.Event) (*types.Event, error) {
	if _, err := m.log.GetThread(ctx, threadID); err != nil {
		return nil, err
	}

	event.ThreadID = threadID
	event.ID = types.NewEventID()
	event.At = time.Now()
	if err := m.log.AppendEvent(ctx, event); err != nil {
		return nil, err
	}
	if err := m.log.TouchThread(ctx, threadID, event.At); err != nil {
		return nil, err
	}

	m.cache.Invalidate(threadID)
	return event, nil
}

// GetEvents returns the working conversation: the visibility-filtered,
// tool-result-deduplicated view sent to the model. Side-effect free.
func (m *Manager) GetEvents(ctx context.Context, threadID types.ThreadID) ([]*types.Event, error) {
	all, err := m.history(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return conversation.Working(all), nil
}

// GetAllEvents returns the complete unfiltered history (audit view).
func (m *Manager) GetAllEvents(ctx context.Context, threadID types.ThreadID) ([]*types.Event, error) {
	return m.history(ctx, threadID)
}

// RegisterStrategy registers a compaction strategy by id. Registration is
// idempotent; the last registration for a given id wins.
func (m *Manager) RegisterStrategy(strategy compact.Strategy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategies[strategy.ID()] = strategy
}

// Compact runs the named strategy over the thread's working conversation,
// persists a hidden compaction record followed by the strategy's replacement
// events as ordinary visible rows, then hides everything ordered before the
// record.
//
// The per-thread lock serializes compactions; concurrent appends from an
// active turn stay safe because they only ever add visible events after
// the compaction point. The steps are not transactional at the storage
// layer: a crash after the replacements persist but before the old events
// are hidden leaves both generations visible, which the next successful
// compaction heals by re-hiding everything before its own record.
func (m *Manager) Compact(ctx context.Context, threadID types.ThreadID, strategyID string, params map[string]string) (*CompactResult, error) {
	m.mu.Lock()
	strategy, ok := m.strategies[strategyID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownStrategy, strategyID)
	}

	if _, err := m.log.GetThread(ctx, threadID); err != nil {
		return nil, err
	}

	lock := m.cache.CompactLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	all, err := m.log.ListEvents(ctx, threadID)
	if err != nil {
		return nil, err
	}
	working := conversation.Working(all)

	result, err := strategy.Compact(ctx, working, &compact.Context{
		ThreadID: threadID,
		Provider: m.provider,
		Tools:    m.registry,
		Params:   params,
	})
	if err != nil {
		// No visibility changes have happened yet; the thread is
		// exactly as before.
		return nil, fmt.Errorf("%w: %s: %v", types.ErrStrategyFailed, strategyID, err)
	}
	if result == nil || result.CompactionEvent == nil {
		return nil, fmt.Errorf("%w: %s returned no compaction event", types.ErrStrategyFailed, strategyID)
	}

	// The record goes in first so it orders before its replacement events:
	// the hide pass below covers everything up to the record, leaving the
	// replacements as the visible tail of the thread.
	record := result.CompactionEvent
	record.ThreadID = threadID
	record.ID = types.NewEventID()
	record.At = time.Now()
	hidden := false
	record.VisibleToModel = &hidden
	if err := m.log.AppendEvent(ctx, record); err != nil {
		return nil, err
	}

	// Replacement events are first-class visible rows. Visibility is set
	// explicitly so a later relabeling of the unset default cannot touch
	// them.
	visible := true
	for _, event := range result.CompactedEvents {
		event.ThreadID = threadID
		event.ID = types.NewEventID()
		event.At = time.Now()
		event.VisibleToModel = &visible
		if err := m.log.AppendEvent(ctx, event); err != nil {
			return nil, err
		}
	}

	// Invalidate before re-reading so no caller (this one included) can
	// observe the half-updated thread.
	m.cache.Invalidate(threadID)

	all, err = m.log.ListEvents(ctx, threadID)
	if err != nil {
		return nil, err
	}

	recordIndex := -1
	for i, event := range all {
		if event.ID == record.ID {
			recordIndex = i
			break
		}
	}
	if recordIndex < 0 {
		return nil, fmt.Errorf("compaction event %s missing after append", record.ID)
	}

	// Hide everything strictly before the record. This re-hides any
	// earlier compaction's replacement events: only the newest summary
	// stays model-visible, and nothing this pass hides is ever un-hidden.
	hiddenIDs := make([]types.EventID, 0, recordIndex+1)
	for _, event := range all[:recordIndex] {
		if event.Visible() {
			if err := m.log.SetVisibility(ctx, event.ID, false); err != nil {
				return nil, err
			}
			if m.notifier != nil {
				m.notifier.VisibilityChanged(event.ID, false)
			}
		}
		hiddenIDs = append(hiddenIDs, event.ID)
	}
	hiddenIDs = append(hiddenIDs, record.ID)

	if err := m.log.TouchThread(ctx, threadID, record.At); err != nil {
		return nil, err
	}
	m.cache.Invalidate(threadID)

	slog.Info("thread compacted",
		"thread_id", string(threadID),
		"strategy", strategyID,
		"replacements", len(result.CompactedEvents),
		"hidden", len(hiddenIDs))

	return &CompactResult{CompactionEvent: record, HiddenEventIDs: hiddenIDs}, nil
}

// history serves reads through the shared cache. The cache is only ever
// populated after a successful load, so a hit implies the thread exists.
func (m *Manager) history(ctx context.Context, threadID types.ThreadID) ([]*types.Event, error) {
	if events, ok := m.cache.Get(threadID); ok {
		return events, nil
	}
	if _, err := m.log.GetThread(ctx, threadID); err != nil {
		return nil, err
	}
	events, err := m.log.ListEvents(ctx, threadID)
	if err != nil {
		return nil, err
	}
	m.cache.Put(threadID, events)
	return events, nil
}
