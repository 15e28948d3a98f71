package types

import (
	"encoding/json"
	"testing"
)

func TestVisibleTriState(t *testing.T) {
	e := &Event{}
	if !e.Visible() {
		t.Error("unset visibility should be visible")
	}

	visible := true
	e.VisibleToModel = &visible
	if !e.Visible() {
		t.Error("explicit true should be visible")
	}

	hidden := false
	e.VisibleToModel = &hidden
	if e.Visible() {
		t.Error("explicit false should be hidden")
	}
}

func TestNewEventMarshalsPayload(t *testing.T) {
	e, err := NewEvent("thread-1", EventUserMessage, MessagePayload{Text: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if e.ThreadID != "thread-1" || e.Type != EventUserMessage {
		t.Errorf("unexpected event: %+v", e)
	}
	if e.ID != "" || e.Seq != 0 {
		t.Error("identity fields are assigned at append time, not construction")
	}

	var payload MessagePayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Text != "hello" {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestNewEventRejectsUnmarshalablePayload(t *testing.T) {
	if _, err := NewEvent("thread-1", EventUserMessage, make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestIDGeneratorsUnique(t *testing.T) {
	if NewThreadID() == NewThreadID() {
		t.Error("thread ids should be unique")
	}
	if NewEventID() == NewEventID() {
		t.Error("event ids should be unique")
	}
	if NewRequestID() == NewRequestID() {
		t.Error("request ids should be unique")
	}
}
