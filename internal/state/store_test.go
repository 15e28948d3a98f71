package state

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/user/threadkeeper/internal/types"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewLog(db)
}

func newTestThread(t *testing.T, log *Log) *types.Thread {
	t.Helper()
	now := time.Now()
	thread := &types.Thread{
		ID:        types.NewThreadID(),
		SessionID: "session-1",
		ProjectID: "project-1",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := log.CreateThread(context.Background(), thread); err != nil {
		t.Fatal(err)
	}
	return thread
}

func TestCreateThreadDuplicate(t *testing.T) {
	log := openTestLog(t)
	thread := newTestThread(t, log)

	err := log.CreateThread(context.Background(), thread)
	if !errors.Is(err, types.ErrDuplicateThread) {
		t.Errorf("expected ErrDuplicateThread, got %v", err)
	}
}

func TestGetThreadNotFound(t *testing.T) {
	log := openTestLog(t)
	_, err := log.GetThread(context.Background(), "missing")
	if !errors.Is(err, types.ErrThreadNotFound) {
		t.Errorf("expected ErrThreadNotFound, got %v", err)
	}
}

func TestAppendAndListEvents(t *testing.T) {
	log := openTestLog(t)
	thread := newTestThread(t, log)
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 3; i++ {
		event := &types.Event{
			ID:       types.NewEventID(),
			ThreadID: thread.ID,
			Type:     types.EventUserMessage,
			At:       base.Add(time.Duration(i) * time.Millisecond),
			Payload:  json.RawMessage(`{"text":"hello"}`),
		}
		if err := log.AppendEvent(ctx, event); err != nil {
			t.Fatal(err)
		}
		if event.Seq == 0 {
			t.Error("expected sequence number to be assigned")
		}
	}

	events, err := log.ListEvents(ctx, thread.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].At.Before(events[i-1].At) {
			t.Error("events not ordered by timestamp")
		}
	}
	if events[0].VisibleToModel != nil {
		t.Error("expected unset visibility to round-trip as nil")
	}
	if !events[0].Visible() {
		t.Error("unset visibility must mean visible")
	}
}

func TestSetVisibility(t *testing.T) {
	log := openTestLog(t)
	thread := newTestThread(t, log)
	ctx := context.Background()

	event := &types.Event{
		ID:       types.NewEventID(),
		ThreadID: thread.ID,
		Type:     types.EventToolResult,
		At:       time.Now(),
		Payload:  json.RawMessage(`{}`),
	}
	if err := log.AppendEvent(ctx, event); err != nil {
		t.Fatal(err)
	}

	if err := log.SetVisibility(ctx, event.ID, false); err != nil {
		t.Fatal(err)
	}

	events, err := log.ListEvents(ctx, thread.ID)
	if err != nil {
		t.Fatal(err)
	}
	if events[0].Visible() {
		t.Error("expected event to be hidden")
	}

	// Flag is the only mutable field; flipping back works too.
	if err := log.SetVisibility(ctx, event.ID, true); err != nil {
		t.Fatal(err)
	}
	events, _ = log.ListEvents(ctx, thread.ID)
	if !events[0].Visible() {
		t.Error("expected event to be visible again")
	}

	if err := log.SetVisibility(ctx, "missing", false); err == nil {
		t.Error("expected error for unknown event id")
	}
}

func TestArtifactStore(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	log := NewLog(db)
	thread := newTestThread(t, log)
	store := NewArtifactStore(db)
	ctx := context.Background()

	id, err := store.Put(ctx, thread.ID, "bash", "big output")
	if err != nil {
		t.Fatal(err)
	}

	data, err := store.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if data != "big output" {
		t.Errorf("expected stored data back, got %q", data)
	}

	meta, err := store.GetMeta(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Tool != "bash" || meta.ThreadID != thread.ID {
		t.Errorf("unexpected meta: %+v", meta)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, types.ErrArtifactNotFound) {
		t.Errorf("expected ErrArtifactNotFound, got %v", err)
	}
}
