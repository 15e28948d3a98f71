package notify

import (
	"encoding/json"
	"testing"

	"github.com/user/threadkeeper/internal/types"
)

func TestSubscribeReceivesNotices(t *testing.T) {
	n := NewNotifier()
	ch, unsubscribe := n.Subscribe(4)
	defer unsubscribe()

	n.VisibilityChanged("event-1", false)
	n.ApprovalRequested("req-1", "bash", json.RawMessage(`{"command":"ls"}`))

	first := <-ch
	if first.Kind != KindVisibilityChange || first.EventID != types.EventID("event-1") || first.Visible {
		t.Errorf("unexpected visibility notice: %+v", first)
	}

	second := <-ch
	if second.Kind != KindApprovalRequest || second.RequestID != types.RequestID("req-1") || second.Tool != "bash" {
		t.Errorf("unexpected approval notice: %+v", second)
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	n := NewNotifier()
	// Must not block or panic.
	n.VisibilityChanged("event-1", true)
}

func TestFullBufferDropsNotice(t *testing.T) {
	n := NewNotifier()
	ch, unsubscribe := n.Subscribe(1)
	defer unsubscribe()

	n.VisibilityChanged("event-1", false)
	n.VisibilityChanged("event-2", false)

	notice := <-ch
	if notice.EventID != types.EventID("event-1") {
		t.Errorf("expected first notice to survive, got %+v", notice)
	}
	select {
	case extra := <-ch:
		t.Errorf("second notice should have been dropped, got %+v", extra)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	n := NewNotifier()
	ch, unsubscribe := n.Subscribe(1)
	unsubscribe()

	if _, open := <-ch; open {
		t.Error("channel should be closed after unsubscribe")
	}

	// Publishing after unsubscribe must not panic on the closed channel.
	n.VisibilityChanged("event-1", false)

	// Second unsubscribe is a no-op.
	unsubscribe()
}

func TestMultipleSubscribersEachReceive(t *testing.T) {
	n := NewNotifier()
	a, cancelA := n.Subscribe(1)
	defer cancelA()
	b, cancelB := n.Subscribe(1)
	defer cancelB()

	n.VisibilityChanged("event-1", false)

	if notice := <-a; notice.EventID != types.EventID("event-1") {
		t.Errorf("subscriber a: %+v", notice)
	}
	if notice := <-b; notice.EventID != types.EventID("event-1") {
		t.Errorf("subscriber b: %+v", notice)
	}
}
