package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration. Values come from the YAML config
// file with environment overrides for secrets.
type Config struct {
	DataDir  string         `mapstructure:"data_dir"`
	LogLevel string         `mapstructure:"log_level"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
}

type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

type LLMConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	ReserveTokens  int     `mapstructure:"reserve_tokens"`
	Temperature    float64 `mapstructure:"temperature"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

type LimitsConfig struct {
	MaxConcurrent      int64 `mapstructure:"max_concurrent"`
	MaxTurnIterations  int   `mapstructure:"max_turn_iterations"`
	ToolTimeoutSeconds int   `mapstructure:"tool_timeout_seconds"`
}

type PostgresConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type TelegramConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Token          string `mapstructure:"token"`
	OperatorChatID int64  `mapstructure:"operator_chat_id"`
}

type LedgerConfig struct {
	// InterruptTools are executed only after operator approval.
	InterruptTools []string `mapstructure:"interrupt_tools"`
	// FrozenMarkers are tool-name substrings whose ledger entries are
	// recorded frozen.
	FrozenMarkers []string `mapstructure:"frozen_markers"`
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".finagent", "config.yaml")
	}
	return "config.yaml"
}

// Load reads configuration from the given file. A missing file is not an
// error; defaults plus environment overrides apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("log_level", "info")
	v.SetDefault("http.enabled", true)
	v.SetDefault("http.listen", ":8080")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.max_tokens", 128000)
	v.SetDefault("llm.reserve_tokens", 4096)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.timeout_seconds", 60)
	v.SetDefault("limits.max_concurrent", 2)
	v.SetDefault("limits.max_turn_iterations", 10)
	v.SetDefault("limits.tool_timeout_seconds", 30)
	v.SetDefault("postgres.enabled", false)
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("ledger.interrupt_tools", []string{"send_whatsapp_alert", "gst_draft_generator"})
	v.SetDefault("ledger.frozen_markers", []string{"alert", "gst"})

	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Secrets come from the environment when not in the file.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Postgres.URL = url
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.Telegram.Token = token
	}

	return &cfg, nil
}

// Validate checks settings needed to actually serve traffic.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required (or set OPENAI_API_KEY)")
	}
	if c.Postgres.Enabled && c.Postgres.URL == "" {
		return fmt.Errorf("postgres.url is required when postgres is enabled (or set DATABASE_URL)")
	}
	if c.Telegram.Enabled {
		if c.Telegram.Token == "" {
			return fmt.Errorf("telegram.token is required when telegram is enabled (or set TELEGRAM_BOT_TOKEN)")
		}
		if c.Telegram.OperatorChatID == 0 {
			return fmt.Errorf("telegram.operator_chat_id is required when telegram is enabled")
		}
	}
	return nil
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".finagent")
	}
	return ".finagent"
}
