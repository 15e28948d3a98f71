package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/threadkeeper/internal/types"
)

func init() {
	rootCmd.AddCommand(threadCmd)
	threadCmd.AddCommand(threadListCmd, threadCreateCmd, threadShowCmd, threadHistoryCmd, threadSayCmd)
	threadCreateCmd.Flags().String("id", "", "thread id (generated when empty)")
	threadCreateCmd.Flags().String("session", "default", "session id")
	threadCreateCmd.Flags().String("project", "default", "project id")
	threadSayCmd.Flags().String("role", "user", "message role: user or assistant")
}

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Manage threads",
}

var threadListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all threads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		c, err := openCore(cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		ctx := context.Background()
		threads, err := c.manager.ListThreads(ctx)
		if err != nil {
			return fmt.Errorf("list threads: %w", err)
		}
		if len(threads) == 0 {
			fmt.Println("No threads found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSESSION\tWORKING\tTOTAL\tUPDATED")
		for _, t := range threads {
			working, err := c.manager.GetEvents(ctx, t.ID)
			if err != nil {
				return err
			}
			all, err := c.manager.GetAllEvents(ctx, t.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
				t.ID, t.SessionID, len(working), len(all), t.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var threadCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a thread",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		c, err := openCore(cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		id, _ := cmd.Flags().GetString("id")
		session, _ := cmd.Flags().GetString("session")
		project, _ := cmd.Flags().GetString("project")

		t, err := c.manager.CreateThread(context.Background(),
			types.ThreadID(id), types.SessionID(session), types.ProjectID(project))
		if err != nil {
			return fmt.Errorf("create thread: %w", err)
		}
		fmt.Println(t.ID)
		return nil
	},
}

var threadSayCmd = &cobra.Command{
	Use:   "say <thread-id> <text>",
	Short: "Append a message event to a thread",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		c, err := openCore(cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		eventType := types.EventUserMessage
		if role, _ := cmd.Flags().GetString("role"); role == "assistant" {
			eventType = types.EventAssistantMessage
		}

		event, err := types.NewEvent(types.ThreadID(args[0]), eventType, types.MessagePayload{Text: args[1]})
		if err != nil {
			return err
		}
		added, err := c.manager.AddEvent(context.Background(), types.ThreadID(args[0]), event)
		if err != nil {
			return fmt.Errorf("append message: %w", err)
		}
		fmt.Println(added.ID)
		return nil
	},
}

var threadShowCmd = &cobra.Command{
	Use:   "show <thread-id>",
	Short: "Show the working conversation of a thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printEvents(args[0], false)
	},
}

var threadHistoryCmd = &cobra.Command{
	Use:   "history <thread-id>",
	Short: "Show the full audit history of a thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printEvents(args[0], true)
	},
}

func printEvents(threadID string, audit bool) error {
	cfg := loadConfig()
	c, err := openCore(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := context.Background()
	var events []*types.Event
	if audit {
		events, err = c.manager.GetAllEvents(ctx, types.ThreadID(threadID))
	} else {
		events, err = c.manager.GetEvents(ctx, types.ThreadID(threadID))
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if audit {
		fmt.Fprintln(w, "AT\tTYPE\tVISIBLE\tPAYLOAD")
	} else {
		fmt.Fprintln(w, "AT\tTYPE\tPAYLOAD")
	}
	for _, event := range events {
		payload := compactJSON(event.Payload)
		if audit {
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\n",
				event.At.Format("15:04:05.000"), event.Type, event.Visible(), payload)
		} else {
			fmt.Fprintf(w, "%s\t%s\t%s\n",
				event.At.Format("15:04:05.000"), event.Type, payload)
		}
	}
	return w.Flush()
}

// compactJSON flattens a payload to one line, truncated for display.
func compactJSON(raw json.RawMessage) string {
	const max = 120
	s := string(raw)
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
