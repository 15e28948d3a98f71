package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/user/threadkeeper/internal/conversation"
	"github.com/user/threadkeeper/internal/notify"
	"github.com/user/threadkeeper/internal/sweeper"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the compaction sweeper until interrupted",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "threadkeeper.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	c, err := openCore(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	counter, err := conversation.NewCounter(cfg.LLM.Model)
	if err != nil {
		return fmt.Errorf("create token counter: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sw := sweeper.New(c.manager, counter, cfg.Compaction.Strategy,
		cfg.Compaction.TokenThreshold, cfg.Compaction.Schedule)
	if err := sw.Start(ctx); err != nil {
		return err
	}
	defer sw.Stop()

	// Surface boundary notices in the log so an operator can watch
	// visibility changes and pending approvals.
	notices, unsubscribe := c.notifier.Subscribe(64)
	defer unsubscribe()
	go func() {
		for notice := range notices {
			switch notice.Kind {
			case notify.KindVisibilityChange:
				slog.Info("visibility changed",
					"event_id", string(notice.EventID), "visible", notice.Visible)
			case notify.KindApprovalRequest:
				slog.Info("approval requested",
					"request_id", string(notice.RequestID), "tool", notice.Tool)
			}
		}
	}()

	slog.Info("threadkeeper started",
		"data_dir", cfg.DataDir,
		"db", cfg.DBPath(),
		"compaction_strategy", cfg.Compaction.Strategy,
		"token_threshold", cfg.Compaction.TokenThreshold,
		"schedule", cfg.Compaction.Schedule,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down")
	return nil
}
