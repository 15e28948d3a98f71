package approval

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/user/threadkeeper/internal/notify"
	"github.com/user/threadkeeper/internal/types"
)

func askPolicies(tools ...string) *StaticPolicies {
	allowed := make(map[string]bool)
	for _, tool := range tools {
		allowed[tool] = true
	}
	return NewStaticPolicies(allowed, nil, nil, nil, nil, PolicyAsk)
}

// waitForPending blocks until the bridge has a pending request, so tests
// can resolve it without racing the registration.
func waitForPending(t *testing.T, b *Bridge) types.RequestID {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if pending := b.Pending(); len(pending) > 0 {
			return pending[0]
		}
		select {
		case <-deadline:
			t.Fatal("no pending approval appeared")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRequestFastPathSafeTool(t *testing.T) {
	policies := NewStaticPolicies(nil, map[string]bool{"read_file": true}, nil, nil, nil, PolicyAsk)
	b := NewBridge(policies, nil)

	decision, err := b.Request(context.Background(), "read_file", nil)
	if err != nil {
		t.Fatal(err)
	}
	if decision != DecisionAllowed {
		t.Errorf("expected allowed, got %v", decision)
	}
}

func TestRequestDeniedOffAllowList(t *testing.T) {
	// Effective policy says allow, but the tool is not on the allow-list:
	// the allow-list check wins (fail-closed).
	policies := NewStaticPolicies(
		map[string]bool{"read_file": true},
		nil,
		map[string]Policy{"bash": PolicyAllow},
		nil, nil, PolicyAsk)
	b := NewBridge(policies, nil)

	decision, err := b.Request(context.Background(), "bash", nil)
	if err != nil {
		t.Fatal(err)
	}
	if decision != DecisionDenied {
		t.Errorf("expected denied, got %v", decision)
	}
}

func TestRequestUnrecognizedPolicyDenied(t *testing.T) {
	policies := NewStaticPolicies(nil, nil, map[string]Policy{"bash": Policy("maybe")}, nil, nil, PolicyAsk)
	b := NewBridge(policies, nil)

	done := make(chan Decision, 1)
	go func() {
		decision, _ := b.Request(context.Background(), "bash", nil)
		done <- decision
	}()

	select {
	case decision := <-done:
		if decision != DecisionDenied {
			t.Errorf("expected denied, got %v", decision)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("unrecognized policy must deny, not hang")
	}
}

func TestRequestEffectivePolicyDeny(t *testing.T) {
	policies := NewStaticPolicies(nil, nil, map[string]Policy{"bash": PolicyDeny}, nil, nil, PolicyAsk)
	b := NewBridge(policies, nil)

	decision, err := b.Request(context.Background(), "bash", nil)
	if err != nil {
		t.Fatal(err)
	}
	if decision != DecisionDenied {
		t.Errorf("expected denied, got %v", decision)
	}
}

func TestAskResolveAllowOnce(t *testing.T) {
	b := NewBridge(askPolicies("bash"), nil)

	done := make(chan Decision, 1)
	go func() {
		decision, _ := b.Request(context.Background(), "bash", json.RawMessage(`{"command":"ls"}`))
		done <- decision
	}()

	requestID := waitForPending(t, b)
	b.Resolve(requestID, ResolutionAllowOnce)

	if decision := <-done; decision != DecisionAllowed {
		t.Errorf("expected allowed, got %v", decision)
	}
	if pending := b.Pending(); len(pending) != 0 {
		t.Errorf("expected pending table to be empty, got %d entries", len(pending))
	}
}

func TestAskResolveDeny(t *testing.T) {
	b := NewBridge(askPolicies("bash"), nil)

	done := make(chan Decision, 1)
	go func() {
		decision, _ := b.Request(context.Background(), "bash", nil)
		done <- decision
	}()

	requestID := waitForPending(t, b)
	b.Resolve(requestID, ResolutionDeny)

	if decision := <-done; decision != DecisionDenied {
		t.Errorf("expected denied, got %v", decision)
	}
}

func TestAskCancelled(t *testing.T) {
	b := NewBridge(askPolicies("bash"), nil)
	ctx, cancel := context.WithCancel(context.Background())

	type outcome struct {
		decision Decision
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		decision, err := b.Request(ctx, "bash", nil)
		done <- outcome{decision, err}
	}()

	requestID := waitForPending(t, b)
	cancel()

	got := <-done
	if got.decision != DecisionCancelled {
		t.Errorf("expected cancelled, got %v", got.decision)
	}
	if !errors.Is(got.err, types.ErrApprovalCancelled) {
		t.Errorf("expected ErrApprovalCancelled, got %v", got.err)
	}

	// A late resolution for the cancelled id is a silent no-op.
	b.Resolve(requestID, ResolutionAllowOnce)
	if pending := b.Pending(); len(pending) != 0 {
		t.Errorf("expected no pending entries, got %d", len(pending))
	}
}

func TestResolveUnknownRequestNoop(t *testing.T) {
	b := NewBridge(askPolicies("bash"), nil)
	b.Resolve("never-registered", ResolutionAllowOnce)
}

func TestResolveTwiceSecondIsNoop(t *testing.T) {
	b := NewBridge(askPolicies("bash"), nil)

	done := make(chan Decision, 1)
	go func() {
		decision, _ := b.Request(context.Background(), "bash", nil)
		done <- decision
	}()

	requestID := waitForPending(t, b)
	b.Resolve(requestID, ResolutionDeny)
	b.Resolve(requestID, ResolutionAllowOnce) // must have no effect

	if decision := <-done; decision != DecisionDenied {
		t.Errorf("expected the first resolution to win, got %v", decision)
	}
}

func TestParallelPendingRequests(t *testing.T) {
	b := NewBridge(askPolicies("bash", "read_url"), nil)

	done := make(chan Decision, 2)
	for i := 0; i < 2; i++ {
		go func() {
			decision, _ := b.Request(context.Background(), "bash", nil)
			done <- decision
		}()
	}

	deadline := time.After(2 * time.Second)
	for len(b.Pending()) < 2 {
		select {
		case <-deadline:
			t.Fatal("expected 2 pending requests")
		case <-time.After(5 * time.Millisecond):
		}
	}

	for _, id := range b.Pending() {
		b.Resolve(id, ResolutionAllowOnce)
	}
	for i := 0; i < 2; i++ {
		if decision := <-done; decision != DecisionAllowed {
			t.Errorf("expected allowed, got %v", decision)
		}
	}
}

func TestAllowSessionGrantSkipsNextAsk(t *testing.T) {
	b := NewBridge(askPolicies("bash"), nil)

	done := make(chan Decision, 1)
	go func() {
		decision, _ := b.Request(context.Background(), "bash", nil)
		done <- decision
	}()

	requestID := waitForPending(t, b)
	b.Resolve(requestID, ResolutionAllowSession)
	if decision := <-done; decision != DecisionAllowed {
		t.Fatalf("expected allowed, got %v", decision)
	}

	// Second request is now a fast path, no suspension.
	decision, err := b.Request(context.Background(), "bash", nil)
	if err != nil {
		t.Fatal(err)
	}
	if decision != DecisionAllowed {
		t.Errorf("expected session grant to allow immediately, got %v", decision)
	}
}

func TestApprovalNoticePublished(t *testing.T) {
	notifier := notify.NewNotifier()
	notices, unsubscribe := notifier.Subscribe(4)
	defer unsubscribe()

	b := NewBridge(askPolicies("bash"), notifier)
	go func() {
		b.Request(context.Background(), "bash", json.RawMessage(`{"command":"ls"}`))
	}()

	select {
	case notice := <-notices:
		if notice.Kind != notify.KindApprovalRequest {
			t.Errorf("expected approval notice, got %v", notice.Kind)
		}
		if notice.Tool != "bash" {
			t.Errorf("expected tool bash, got %q", notice.Tool)
		}
		b.Resolve(notice.RequestID, ResolutionDeny)
	case <-time.After(2 * time.Second):
		t.Fatal("no approval notice published")
	}
}
