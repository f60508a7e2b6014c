package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.HTTP.Enabled)
	assert.Equal(t, ":8080", cfg.HTTP.Listen)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 128000, cfg.LLM.MaxTokens)
	assert.Equal(t, 4096, cfg.LLM.ReserveTokens)
	assert.Equal(t, int64(2), cfg.Limits.MaxConcurrent)
	assert.Equal(t, 10, cfg.Limits.MaxTurnIterations)
	assert.Equal(t, []string{"send_whatsapp_alert", "gst_draft_generator"}, cfg.Ledger.InterruptTools)
	assert.Equal(t, []string{"alert", "gst"}, cfg.Ledger.FrozenMarkers)
	assert.False(t, cfg.Postgres.Enabled)
	assert.False(t, cfg.Telegram.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
http:
  listen: ":9090"
llm:
  model: gpt-4o-mini
  api_key: file-key
limits:
  max_turn_iterations: 5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9090", cfg.HTTP.Listen)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "file-key", cfg.LLM.APIKey)
	assert.Equal(t, 5, cfg.Limits.MaxTurnIterations)
	// Unset keys keep their defaults.
	assert.Equal(t, 30, cfg.Limits.ToolTimeoutSeconds)
}

func TestEnvOverridesSecrets(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("DATABASE_URL", "postgres://localhost/fin")
	t.Setenv("TELEGRAM_BOT_TOKEN", "bot-token")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.Equal(t, "postgres://localhost/fin", cfg.Postgres.URL)
	assert.Equal(t, "bot-token", cfg.Telegram.Token)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		cfg.LLM.APIKey = "key"
		return cfg
	}
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	cfg := base()
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.LLM.APIKey = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Postgres.Enabled = true
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Telegram.Enabled = true
	cfg.Telegram.Token = "tok"
	assert.Error(t, cfg.Validate())

	cfg.Telegram.OperatorChatID = 12345
	assert.NoError(t, cfg.Validate())
}
