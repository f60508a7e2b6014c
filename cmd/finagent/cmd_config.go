package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "data_dir = %s\n", cfg.DataDir)
		fmt.Fprintf(os.Stdout, "log_level = %s\n", cfg.LogLevel)
		fmt.Fprintf(os.Stdout, "http.enabled = %t\n", cfg.HTTP.Enabled)
		fmt.Fprintf(os.Stdout, "http.listen = %s\n", cfg.HTTP.Listen)
		fmt.Fprintf(os.Stdout, "llm.base_url = %s\n", cfg.LLM.BaseURL)
		fmt.Fprintf(os.Stdout, "llm.api_key = %s\n", redact(cfg.LLM.APIKey))
		fmt.Fprintf(os.Stdout, "llm.model = %s\n", cfg.LLM.Model)
		fmt.Fprintf(os.Stdout, "llm.max_tokens = %d\n", cfg.LLM.MaxTokens)
		fmt.Fprintf(os.Stdout, "llm.reserve_tokens = %d\n", cfg.LLM.ReserveTokens)
		fmt.Fprintf(os.Stdout, "llm.temperature = %g\n", cfg.LLM.Temperature)
		fmt.Fprintf(os.Stdout, "llm.timeout_seconds = %d\n", cfg.LLM.TimeoutSeconds)
		fmt.Fprintf(os.Stdout, "limits.max_concurrent = %d\n", cfg.Limits.MaxConcurrent)
		fmt.Fprintf(os.Stdout, "limits.max_turn_iterations = %d\n", cfg.Limits.MaxTurnIterations)
		fmt.Fprintf(os.Stdout, "limits.tool_timeout_seconds = %d\n", cfg.Limits.ToolTimeoutSeconds)
		fmt.Fprintf(os.Stdout, "postgres.enabled = %t\n", cfg.Postgres.Enabled)
		fmt.Fprintf(os.Stdout, "postgres.url = %s\n", redact(cfg.Postgres.URL))
		fmt.Fprintf(os.Stdout, "telegram.enabled = %t\n", cfg.Telegram.Enabled)
		fmt.Fprintf(os.Stdout, "telegram.token = %s\n", redact(cfg.Telegram.Token))
		fmt.Fprintf(os.Stdout, "telegram.operator_chat_id = %d\n", cfg.Telegram.OperatorChatID)
		fmt.Fprintf(os.Stdout, "ledger.interrupt_tools = %v\n", cfg.Ledger.InterruptTools)
		fmt.Fprintf(os.Stdout, "ledger.frozen_markers = %v\n", cfg.Ledger.FrozenMarkers)
		return nil
	},
}

func redact(secret string) string {
	if secret == "" {
		return "(unset)"
	}
	if len(secret) <= 8 {
		return "********"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
