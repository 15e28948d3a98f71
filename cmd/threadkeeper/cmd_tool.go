package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/user/threadkeeper/internal/approval"
	"github.com/user/threadkeeper/internal/executor"
	"github.com/user/threadkeeper/internal/notify"
	"github.com/user/threadkeeper/internal/types"
)

func init() {
	rootCmd.AddCommand(toolCmd)
	toolCmd.AddCommand(toolListCmd, toolRunCmd)
	toolRunCmd.Flags().String("args", "{}", "tool arguments as JSON")
}

var toolCmd = &cobra.Command{
	Use:   "tool",
	Short: "List and run tools",
}

var toolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered tools",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		c, err := openCore(cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		for _, name := range c.registry.Names() {
			tool, _ := c.registry.Get(name)
			fmt.Printf("%s\t%s\n", name, tool.Description())
		}
		return nil
	},
}

var toolRunCmd = &cobra.Command{
	Use:   "run <thread-id> <tool>",
	Short: "Run a tool in a thread, prompting for approval when required",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		c, err := openCore(cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		rawArgs, _ := cmd.Flags().GetString("args")
		if !json.Valid([]byte(rawArgs)) {
			return fmt.Errorf("--args is not valid JSON")
		}

		ctx := context.Background()

		// Suspended approval requests surface as notices; answer them from
		// the terminal so the run can proceed in-process.
		notices, unsubscribe := c.notifier.Subscribe(16)
		defer unsubscribe()
		go promptApprovals(c.bridge, notices)

		exec := executor.New(c.registry, c.bridge, c.manager, c.artifacts,
			cfg.Executor.MaxConcurrent, cfg.Executor.ArtifactThreshold)

		event, err := exec.Execute(ctx, types.ThreadID(args[0]), types.ToolCallPayload{
			Tool:      args[1],
			CallID:    uuid.New().String(),
			Arguments: json.RawMessage(rawArgs),
		})
		if err != nil {
			return fmt.Errorf("run tool: %w", err)
		}

		var result types.ToolResultPayload
		if err := json.Unmarshal(event.Payload, &result); err != nil {
			return err
		}
		if result.IsError {
			fmt.Fprintln(os.Stderr, result.Result)
			return nil
		}
		fmt.Println(result.Result)
		if result.ArtifactID != "" {
			fmt.Fprintf(os.Stderr, "full output stored as artifact %s\n", result.ArtifactID)
		}
		return nil
	},
}

// promptApprovals answers approval-request notices from stdin. Anything but
// an explicit yes denies.
func promptApprovals(bridge *approval.Bridge, notices <-chan notify.Notice) {
	reader := bufio.NewReader(os.Stdin)
	for notice := range notices {
		if notice.Kind != notify.KindApprovalRequest {
			continue
		}
		fmt.Fprintf(os.Stderr, "allow tool %q with input %s? [y/N] ", notice.Tool, string(notice.Input))
		line, err := reader.ReadString('\n')
		res := approval.ResolutionDeny
		if err == nil && strings.EqualFold(strings.TrimSpace(line), "y") {
			res = approval.ResolutionAllowOnce
		}
		bridge.Resolve(notice.RequestID, res)
	}
}
