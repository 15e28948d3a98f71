// internal/state/eventlog.go
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/user/threadkeeper/internal/types"
)

// Log is the SQLite-backed event log. Events append to a per-thread
// timestamp-ordered sequence; the only column ever updated after insert is
// the visibility flag.
type Log struct {
	db *sql.DB
}

// NewLog creates a Log over an opened database.
func NewLog(db *sql.DB) *Log {
	return &Log{db: db}
}

// CreateThread inserts a new thread row. Returns ErrDuplicateThread if the
// id is already taken.
func (l *Log) CreateThread(ctx context.Context, thread *types.Thread) error {
	res, err := l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO threads (id, session_id, project_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(thread.ID), string(thread.SessionID), string(thread.ProjectID),
		thread.CreatedAt.UnixNano(), thread.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert thread: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert thread: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", types.ErrDuplicateThread, thread.ID)
	}
	return nil
}

// GetThread returns the thread with the given id, or ErrThreadNotFound.
func (l *Log) GetThread(ctx context.Context, id types.ThreadID) (*types.Thread, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, session_id, project_id, created_at, updated_at FROM threads WHERE id = ?`,
		string(id))
	thread, err := scanThread(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", types.ErrThreadNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get thread: %w", err)
	}
	return thread, nil
}

// ListThreads returns all threads ordered by creation time.
func (l *Log) ListThreads(ctx context.Context) ([]*types.Thread, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, session_id, project_id, created_at, updated_at FROM threads ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var threads []*types.Thread
	for rows.Next() {
		thread, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		threads = append(threads, thread)
	}
	return threads, rows.Err()
}

// TouchThread bumps the thread's updated_at.
func (l *Log) TouchThread(ctx context.Context, id types.ThreadID, at time.Time) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE threads SET updated_at = ? WHERE id = ?`, at.UnixNano(), string(id))
	if err != nil {
		return fmt.Errorf("touch thread: %w", err)
	}
	return nil
}

// AppendEvent inserts an event and fills in its storage sequence number.
// The caller has already assigned the event id and timestamp.
func (l *Log) AppendEvent(ctx context.Context, event *types.Event) error {
	var visible any
	if event.VisibleToModel != nil {
		visible = boolToInt(*event.VisibleToModel)
	}
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO events (id, thread_id, type, at, payload, visible)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(event.ID), string(event.ThreadID), event.Type,
		event.At.UnixNano(), string(event.Payload), visible)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	event.Seq = seq
	return nil
}

// ListEvents returns the complete event history of a thread ordered by
// timestamp, with the insert sequence breaking ties.
func (l *Log) ListEvents(ctx context.Context, threadID types.ThreadID) ([]*types.Event, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT seq, id, thread_id, type, at, payload, visible
		 FROM events WHERE thread_id = ? ORDER BY at, seq`,
		string(threadID))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*types.Event
	for rows.Next() {
		var (
			event   types.Event
			at      int64
			payload string
			visible sql.NullInt64
		)
		if err := rows.Scan(&event.Seq, &event.ID, &event.ThreadID, &event.Type, &at, &payload, &visible); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.At = time.Unix(0, at)
		event.Payload = json.RawMessage(payload)
		if visible.Valid {
			v := visible.Int64 != 0
			event.VisibleToModel = &v
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

// SetVisibility updates the single mutable field of a persisted event.
func (l *Log) SetVisibility(ctx context.Context, id types.EventID, visible bool) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE events SET visible = ? WHERE id = ?`, boolToInt(visible), string(id))
	if err != nil {
		return fmt.Errorf("set visibility: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set visibility: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("set visibility: no event with id %s", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanThread(row rowScanner) (*types.Thread, error) {
	var (
		thread    types.Thread
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&thread.ID, &thread.SessionID, &thread.ProjectID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	thread.CreatedAt = time.Unix(0, createdAt)
	thread.UpdatedAt = time.Unix(0, updatedAt)
	return &thread, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
