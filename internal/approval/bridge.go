// internal/approval/bridge.go
package approval

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/user/threadkeeper/internal/notify"
	"github.com/user/threadkeeper/internal/types"
)

// Decision is the terminal state of a tool-invocation request. A request
// moves from requested to exactly one of these and never re-enters.
type Decision string

const (
	DecisionAllowed   Decision = "allowed"
	DecisionDenied    Decision = "denied"
	DecisionCancelled Decision = "cancelled"
)

// Resolution is the out-of-band answer delivered for a suspended request.
// Anything that does not mean "proceed" maps to a denial.
type Resolution string

const (
	ResolutionAllowOnce    Resolution = "allow_once"
	ResolutionAllowSession Resolution = "allow_session"
	ResolutionAllowProject Resolution = "allow_project"
	ResolutionAllowAlways  Resolution = "allow_always"
	ResolutionDeny         Resolution = "deny"
)

func (r Resolution) allows() bool {
	switch r {
	case ResolutionAllowOnce, ResolutionAllowSession, ResolutionAllowProject, ResolutionAllowAlways:
		return true
	}
	return false
}

// pendingApproval is a suspended tool-invocation request. It lives only in
// process memory and is removed exactly once, on resolution or cancellation.
type pendingApproval struct {
	requestID types.RequestID
	tool      string
	input     json.RawMessage
	createdAt time.Time
	decision  chan Decision
}

// Bridge gates side-effecting tool calls behind policy. Fast-path policies
// answer immediately; an "ask" policy suspends the calling goroutine until
// Resolve delivers a decision or the request context is cancelled. Multiple
// requests may be pending at once, each with an independent lifecycle.
type Bridge struct {
	policies PolicySource
	notifier *notify.Notifier

	mu      sync.Mutex
	pending map[types.RequestID]*pendingApproval
}

// NewBridge creates a Bridge consulting the given policy source. The
// notifier may be nil when no external consumer listens for approval
// requests.
func NewBridge(policies PolicySource, notifier *notify.Notifier) *Bridge {
	return &Bridge{
		policies: policies,
		notifier: notifier,
		pending:  make(map[types.RequestID]*pendingApproval),
	}
}

// Request decides whether the named tool may run. Fast paths short-circuit
// in precedence order: allow-list (fail-closed), always-safe tools,
// effective allow/deny; an unrecognized policy value is denied rather than
// left hanging. Only an "ask" policy suspends. On cancellation the caller
// observes DecisionCancelled with ErrApprovalCancelled, which executors
// treat as a denial, never a retry.
func (b *Bridge) Request(ctx context.Context, tool string, input json.RawMessage) (Decision, error) {
	if allowed := b.policies.AllowList(); allowed != nil && !allowed[tool] {
		return DecisionDenied, nil
	}
	if b.policies.SafeTools()[tool] {
		return DecisionAllowed, nil
	}

	switch policy := b.policies.EffectivePolicy(tool); policy {
	case PolicyAllow:
		return DecisionAllowed, nil
	case PolicyDeny:
		return DecisionDenied, nil
	case PolicyAsk:
		// fall through to the suspension path
	default:
		slog.Warn("unrecognized tool policy, denying", "tool", tool, "policy", string(policy))
		return DecisionDenied, nil
	}

	p := &pendingApproval{
		requestID: types.NewRequestID(),
		tool:      tool,
		input:     input,
		createdAt: time.Now(),
		decision:  make(chan Decision, 1),
	}

	b.mu.Lock()
	b.pending[p.requestID] = p
	b.mu.Unlock()

	if b.notifier != nil {
		b.notifier.ApprovalRequested(p.requestID, tool, input)
	}
	slog.Info("tool approval requested", "request_id", string(p.requestID), "tool", tool)

	select {
	case decision := <-p.decision:
		return decision, nil
	case <-ctx.Done():
		b.remove(p.requestID)
		slog.Info("tool approval cancelled", "request_id", string(p.requestID), "tool", tool)
		return DecisionCancelled, types.ErrApprovalCancelled
	}
}

// Resolve delivers an out-of-band decision for a pending request. Resolving
// an unknown (already resolved or cancelled) request id is a logged no-op;
// late or duplicate signals must never crash the bridge.
func (b *Bridge) Resolve(requestID types.RequestID, res Resolution) {
	p, ok := b.remove(requestID)
	if !ok {
		slog.Debug("resolution for unknown approval request", "request_id", string(requestID))
		return
	}

	decision := DecisionDenied
	if res.allows() {
		decision = DecisionAllowed
		if granter, ok := b.policies.(*StaticPolicies); ok {
			granter.Grant(p.tool, res)
		}
	}
	p.decision <- decision
	slog.Info("tool approval resolved",
		"request_id", string(requestID), "tool", p.tool, "decision", string(decision))
}

// Pending returns the ids of requests currently awaiting resolution.
func (b *Bridge) Pending() []types.RequestID {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.RequestID, 0, len(b.pending))
	for id := range b.pending {
		out = append(out, id)
	}
	return out
}

// remove deletes a pending entry, returning it if it was still live. The
// single delete site guarantees at most one of Resolve and cancellation
// wins a given request.
func (b *Bridge) remove(requestID types.RequestID) (*pendingApproval, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pending[requestID]
	if ok {
		delete(b.pending, requestID)
	}
	return p, ok
}
