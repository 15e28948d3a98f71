// internal/sweeper/sweeper.go
package sweeper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/user/threadkeeper/internal/conversation"
	"github.com/user/threadkeeper/internal/thread"
)

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Sweeper periodically scans every thread and compacts the ones whose
// working conversation has outgrown the token threshold. A failed
// compaction of one thread is logged and the sweep moves on.
type Sweeper struct {
	manager   *thread.Manager
	counter   *conversation.Counter
	strategy  string
	threshold int
	schedule  string
	cron      *cron.Cron
}

// New creates a Sweeper that compacts with the named strategy whenever a
// thread's working conversation exceeds tokenThreshold tokens.
func New(manager *thread.Manager, counter *conversation.Counter, strategy string, tokenThreshold int, schedule string) *Sweeper {
	return &Sweeper{
		manager:   manager,
		counter:   counter,
		strategy:  strategy,
		threshold: tokenThreshold,
		schedule:  schedule,
		cron:      cron.New(cron.WithParser(cronParser)),
	}
}

// Start registers the cron entry and starts the ticker.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.Sweep(ctx); err != nil {
			slog.Error("sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("register sweep schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	slog.Info("sweeper started", "schedule", s.schedule, "strategy", s.strategy, "token_threshold", s.threshold)
	return nil
}

// Stop stops the cron ticker without waiting for a running sweep.
func (s *Sweeper) Stop() {
	s.cron.Stop()
}

// Sweep runs one scan over all threads, compacting those over threshold.
func (s *Sweeper) Sweep(ctx context.Context) error {
	threads, err := s.manager.ListThreads(ctx)
	if err != nil {
		return fmt.Errorf("list threads: %w", err)
	}

	for _, t := range threads {
		working, err := s.manager.GetEvents(ctx, t.ID)
		if err != nil {
			slog.Error("sweep: load thread", "thread_id", string(t.ID), "error", err)
			continue
		}
		tokens := s.counter.CountEvents(working)
		if tokens <= s.threshold {
			continue
		}

		slog.Info("sweep: compacting thread",
			"thread_id", string(t.ID), "tokens", tokens, "threshold", s.threshold)
		if _, err := s.manager.Compact(ctx, t.ID, s.strategy, nil); err != nil {
			slog.Error("sweep: compact thread", "thread_id", string(t.ID), "error", err)
		}
	}
	return nil
}
