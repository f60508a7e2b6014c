package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/finagent/internal/scheduler"
)

var (
	taskPrompt   string
	taskSchedule string
	taskUser     string
	taskThread   string
)

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskListCmd, taskAddCmd, taskEnableCmd, taskDisableCmd, taskRemoveCmd)

	taskAddCmd.Flags().StringVar(&taskPrompt, "prompt", "", "prompt to run when the task fires")
	taskAddCmd.Flags().StringVar(&taskSchedule, "schedule", "", "cron schedule, e.g. '0 0 1 * *'")
	taskAddCmd.Flags().StringVar(&taskUser, "user", "operator", "user the task runs as")
	taskAddCmd.Flags().StringVar(&taskThread, "thread", "", "thread id (defaults to cron-<name>)")
	taskAddCmd.MarkFlagRequired("prompt")
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage scheduled tasks",
}

func openTaskStore() (*scheduler.TaskStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store := scheduler.NewTaskStore(filepath.Join(cfg.DataDir, "tasks.json"))
	if err := store.Seed(); err != nil {
		return nil, err
	}
	return store, nil
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openTaskStore()
		if err != nil {
			return err
		}
		tasks, err := store.List()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSCHEDULE\tUSER\tTHREAD\tENABLED")
		for _, task := range tasks {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n",
				task.Name, task.Schedule, task.UserID, task.ThreadID, task.Enabled)
		}
		return w.Flush()
	},
}

var taskAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a scheduled task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openTaskStore()
		if err != nil {
			return err
		}

		name := args[0]
		thread := taskThread
		if thread == "" {
			thread = "cron-" + name
		}
		return store.Add(&scheduler.Task{
			Name:     name,
			Prompt:   taskPrompt,
			Schedule: taskSchedule,
			UserID:   taskUser,
			ThreadID: thread,
			Enabled:  false,
		})
	},
}

var taskEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a task",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setTaskEnabled(args[0], true) },
}

var taskDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a task",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setTaskEnabled(args[0], false) },
}

var taskRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openTaskStore()
		if err != nil {
			return err
		}
		return store.Remove(args[0])
	},
}

func setTaskEnabled(name string, enabled bool) error {
	store, err := openTaskStore()
	if err != nil {
		return err
	}
	task, err := store.Get(name)
	if err != nil {
		return err
	}
	task.Enabled = enabled
	return store.Update(task)
}
