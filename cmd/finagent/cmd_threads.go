package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/finagent/internal/checkpoint"
	"github.com/user/finagent/internal/engine"
	"github.com/user/finagent/internal/types"
)

func init() {
	rootCmd.AddCommand(threadsCmd)
	threadsCmd.AddCommand(threadsListCmd, threadsShowCmd)
}

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "Inspect stored conversation threads",
}

var threadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all threads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		states, err := checkpoint.NewStore(cfg.DataDir).List(context.Background())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tSTATE\tMESSAGES\tUPDATED")
		for _, state := range states {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				state.Key, engine.Status(state), len(state.Messages),
				state.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var threadsShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Print a thread's messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		state, err := checkpoint.NewStore(cfg.DataDir).Load(context.Background(), types.ThreadKey(args[0]))
		if err != nil {
			return err
		}
		if len(state.Messages) == 0 {
			fmt.Fprintln(os.Stdout, "(empty thread)")
			return nil
		}

		for _, msg := range state.Messages {
			fmt.Fprintf(os.Stdout, "[%s] %s\n", msg.Role, msg.Content)
			for _, tc := range msg.ToolCalls {
				fmt.Fprintf(os.Stdout, "  -> %s %s\n", tc.Name, string(tc.Arguments))
			}
		}
		if state.Pending != nil {
			fmt.Fprintf(os.Stdout, "\nAwaiting approval: %v\n", state.Pending.Gated)
		}
		return nil
	},
}
