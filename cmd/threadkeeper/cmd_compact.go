package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/threadkeeper/internal/types"
)

func init() {
	rootCmd.AddCommand(compactCmd)
	compactCmd.Flags().String("strategy", "", "strategy id (defaults to the configured one)")
	compactCmd.Flags().StringSlice("param", nil, "strategy parameter as key=value (repeatable)")
}

var compactCmd = &cobra.Command{
	Use:   "compact <thread-id>",
	Short: "Compact a thread with a registered strategy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		c, err := openCore(cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		strategy, _ := cmd.Flags().GetString("strategy")
		if strategy == "" {
			strategy = cfg.Compaction.Strategy
		}

		rawParams, _ := cmd.Flags().GetStringSlice("param")
		params := make(map[string]string, len(rawParams))
		for _, raw := range rawParams {
			key, value, ok := strings.Cut(raw, "=")
			if !ok {
				return fmt.Errorf("invalid param %q, expected key=value", raw)
			}
			params[key] = value
		}

		result, err := c.manager.Compact(context.Background(),
			types.ThreadID(args[0]), strategy, params)
		if err != nil {
			return err
		}

		fmt.Printf("compaction %s hid %d events\n",
			result.CompactionEvent.ID, len(result.HiddenEventIDs))
		return nil
	},
}
