// internal/approval/policy.go
package approval

import "sync"

// Policy is a per-tool rule governing whether a tool call may proceed.
type Policy string

const (
	PolicyAllow Policy = "allow"
	PolicyDeny  Policy = "deny"
	PolicyAsk   Policy = "ask"
)

// PolicySource supplies the bridge's fast-path inputs. Implementations
// resolve scoping (session overrides beat project overrides beat per-tool
// defaults) before answering, and must be safe for concurrent use.
type PolicySource interface {
	// EffectivePolicy returns the policy in force for the tool.
	EffectivePolicy(tool string) Policy

	// AllowList returns the set of tools the session may use at all.
	// A nil map means no allow-list is configured and every tool passes
	// this check; an empty map denies everything.
	AllowList() map[string]bool

	// SafeTools returns tools that are always allowed without asking
	// (read-only or internal tools).
	SafeTools() map[string]bool
}

// StaticPolicies is a PolicySource backed by fixed maps, layered
// session -> project -> per-tool default -> fallback.
type StaticPolicies struct {
	mu               sync.RWMutex
	allowed          map[string]bool
	safe             map[string]bool
	defaults         map[string]Policy
	projectOverrides map[string]Policy
	sessionOverrides map[string]Policy
	fallback         Policy
}

// NewStaticPolicies builds a StaticPolicies from its layers. Any map may be
// nil; an empty fallback defaults to ask.
func NewStaticPolicies(allowed, safe map[string]bool, defaults, project, session map[string]Policy, fallback Policy) *StaticPolicies {
	if fallback == "" {
		fallback = PolicyAsk
	}
	return &StaticPolicies{
		allowed:          allowed,
		safe:             safe,
		defaults:         defaults,
		projectOverrides: project,
		sessionOverrides: session,
		fallback:         fallback,
	}
}

func (s *StaticPolicies) EffectivePolicy(tool string) Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.sessionOverrides[tool]; ok {
		return p
	}
	if p, ok := s.projectOverrides[tool]; ok {
		return p
	}
	if p, ok := s.defaults[tool]; ok {
		return p
	}
	return s.fallback
}

func (s *StaticPolicies) AllowList() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allowed
}

func (s *StaticPolicies) SafeTools() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.safe
}

// Grant applies a scope-widening resolution so later calls for the same
// tool skip the ask path.
func (s *StaticPolicies) Grant(tool string, res Resolution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch res {
	case ResolutionAllowSession:
		if s.sessionOverrides == nil {
			s.sessionOverrides = make(map[string]Policy)
		}
		s.sessionOverrides[tool] = PolicyAllow
	case ResolutionAllowProject:
		if s.projectOverrides == nil {
			s.projectOverrides = make(map[string]Policy)
		}
		s.projectOverrides[tool] = PolicyAllow
	case ResolutionAllowAlways:
		if s.defaults == nil {
			s.defaults = make(map[string]Policy)
		}
		s.defaults[tool] = PolicyAllow
	}
}
