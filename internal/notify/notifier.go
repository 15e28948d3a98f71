// internal/notify/notifier.go
package notify

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/user/threadkeeper/internal/types"
)

// Kind tags the two notice variants emitted at the system boundary.
type Kind string

const (
	KindVisibilityChange Kind = "visibility_change"
	KindApprovalRequest  Kind = "approval_request"
)

// Notice is a boundary message for external consumers (UI, CLI prompt).
// Visibility notices carry EventID and Visible; approval notices carry
// RequestID, Tool, and Input.
type Notice struct {
	Kind      Kind
	EventID   types.EventID
	Visible   bool
	RequestID types.RequestID
	Tool      string
	Input     json.RawMessage
}

// Notifier fans notices out to subscribers. Delivery is best-effort and
// at-most-once: a subscriber whose buffer is full misses the notice, and
// core logic never waits on subscriber presence or ordering.
type Notifier struct {
	mu   sync.RWMutex
	subs map[int]chan Notice
	next int
}

// NewNotifier creates a Notifier with no subscribers.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan Notice)}
}

// Subscribe registers a buffered notice channel and returns it along with
// an unsubscribe function. Unsubscribing closes the channel.
func (n *Notifier) Subscribe(buffer int) (<-chan Notice, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Notice, buffer)

	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = ch
	n.mu.Unlock()

	return ch, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if sub, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(sub)
		}
	}
}

// VisibilityChanged publishes a visibility-change notice.
func (n *Notifier) VisibilityChanged(eventID types.EventID, visible bool) {
	n.publish(Notice{Kind: KindVisibilityChange, EventID: eventID, Visible: visible})
}

// ApprovalRequested publishes an approval-request notice.
func (n *Notifier) ApprovalRequested(requestID types.RequestID, tool string, input json.RawMessage) {
	n.publish(Notice{Kind: KindApprovalRequest, RequestID: requestID, Tool: tool, Input: input})
}

func (n *Notifier) publish(notice Notice) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, sub := range n.subs {
		select {
		case sub <- notice:
		default:
			slog.Debug("notice dropped", "kind", string(notice.Kind))
		}
	}
}
