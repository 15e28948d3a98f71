package main

import (
	"database/sql"
	"fmt"

	"github.com/user/threadkeeper/internal/approval"
	"github.com/user/threadkeeper/internal/compact"
	"github.com/user/threadkeeper/internal/config"
	"github.com/user/threadkeeper/internal/notify"
	"github.com/user/threadkeeper/internal/state"
	"github.com/user/threadkeeper/internal/thread"
	"github.com/user/threadkeeper/internal/tools"
	"github.com/user/threadkeeper/pkg/llm"
	"github.com/user/threadkeeper/pkg/llm/openai"
)

// core wires the store, manager, bridge, and tool registry for a command.
type core struct {
	db        *sql.DB
	manager   *thread.Manager
	artifacts *state.ArtifactStore
	registry  *tools.Registry
	bridge    *approval.Bridge
	notifier  *notify.Notifier
	provider  llm.Provider
}

func openCore(cfg *config.Config) (*core, error) {
	db, err := state.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	registry := tools.NewRegistry()
	registry.Register(tools.NewBash())
	registry.Register(tools.NewReadFile())
	registry.Register(tools.NewReadURL())

	var provider llm.Provider
	if cfg.LLM.APIKey != "" {
		provider = openai.New(&llm.Config{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		})
	}

	notifier := notify.NewNotifier()
	manager := thread.NewManager(state.NewLog(db), thread.NewCache(), notifier, provider, registry)
	manager.RegisterStrategy(compact.NewTrimToolResults())
	manager.RegisterStrategy(compact.NewSummarize())

	policies := approval.NewStaticPolicies(
		toSet(cfg.Approval.AllowList),
		toSet(cfg.Approval.SafeTools),
		toPolicies(cfg.Approval.Policies),
		nil, nil,
		approval.Policy(cfg.Approval.DefaultPolicy),
	)

	return &core{
		db:        db,
		manager:   manager,
		artifacts: state.NewArtifactStore(db),
		registry:  registry,
		bridge:    approval.NewBridge(policies, notifier),
		notifier:  notifier,
		provider:  provider,
	}, nil
}

func (c *core) Close() error {
	return c.db.Close()
}

func toSet(names []string) map[string]bool {
	if names == nil {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set
}

func toPolicies(values map[string]string) map[string]approval.Policy {
	out := make(map[string]approval.Policy, len(values))
	for tool, policy := range values {
		out[tool] = approval.Policy(policy)
	}
	return out
}
