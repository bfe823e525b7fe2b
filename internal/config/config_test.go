package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "gpt-4o-mini", cfg.Oracle.Model)
	assert.Equal(t, 60*time.Second, cfg.Oracle.Timeout)
	assert.Equal(t, 3, cfg.Oracle.MaxRetries)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 4, cfg.Interview.RecentWindow)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Report.Enabled())
	assert.Equal(t, "https://api.telegram.org", cfg.Report.TelegramBaseURL)
	assert.Equal(t, 10*time.Second, cfg.Report.TelegramTimeout)
	assert.Empty(t, cfg.STT.URL)
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9000"
oracle:
  model: gpt-4o
  timeout: 30s
store:
  driver: postgres
  database_url: postgres://file/intake
report:
  telegram_token: "123:abc"
  doctor_chat_id: 42
  telegram_timeout: 5s
  font_paths:
    - /fonts/a.ttf
    - /fonts/b.ttf
`)
	t.Setenv("INTAKE_STORE_DATABASE_URL", "postgres://env/intake")
	t.Setenv("INTAKE_ORACLE_API_KEY", "sk-env")
	t.Setenv("INTAKE_LOGGING_LEVEL", "debug")
	t.Setenv("INTAKE_INTERVIEW_RECENT_WINDOW", "6")
	t.Setenv("INTAKE_REPORT_TELEGRAM_BASE_URL", "http://bot-api.local")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "gpt-4o", cfg.Oracle.Model)
	assert.Equal(t, 30*time.Second, cfg.Oracle.Timeout)
	assert.Equal(t, "sk-env", cfg.Oracle.APIKey)
	assert.Equal(t, "postgres://env/intake", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 6, cfg.Interview.RecentWindow)
	assert.True(t, cfg.Report.Enabled())
	assert.Equal(t, int64(42), cfg.Report.DoctorChatID)
	assert.Equal(t, []string{"/fonts/a.ttf", "/fonts/b.ttf"}, cfg.Report.FontPaths)
	assert.Equal(t, 5*time.Second, cfg.Report.TelegramTimeout)
	assert.Equal(t, "http://bot-api.local", cfg.Report.TelegramBaseURL)
	// untouched defaults survive
	assert.Equal(t, 0.2, cfg.Oracle.Temperature)
}

func TestLoad_ZeroTemperatureIsKept(t *testing.T) {
	cfg, err := Load(writeConfig(t, "oracle:\n  temperature: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Oracle.Temperature)
}

func TestLoad_OpenAIKeyFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-fallback")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-fallback", cfg.Oracle.APIKey)

	t.Setenv("INTAKE_ORACLE_API_KEY", "sk-explicit")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-explicit", cfg.Oracle.APIKey)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err)

	_, err = Load(t.TempDir())
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "sqlite" }},
		{"postgres without url", func(c *Config) { c.Store.Driver = "postgres" }},
		{"zero window", func(c *Config) { c.Interview.RecentWindow = 0 }},
		{"temperature out of range", func(c *Config) { c.Oracle.Temperature = 3 }},
		{"negative retries", func(c *Config) { c.Oracle.MaxRetries = -1 }},
		{"zero burst", func(c *Config) { c.Oracle.Burst = 0 }},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
		{"token without chat", func(c *Config) { c.Report.TelegramToken = "123:abc" }},
		{"report without timeout", func(c *Config) {
			c.Report.TelegramToken, c.Report.DoctorChatID = "123:abc", 42
			c.Report.TelegramTimeout = 0
		}},
		{"missing port", func(c *Config) { c.Server.Port = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "oracle.api_key", envKey("INTAKE_ORACLE_API_KEY"))
	assert.Equal(t, "store.database_url", envKey("INTAKE_STORE_DATABASE_URL"))
	assert.Equal(t, "server.port", envKey("INTAKE_SERVER_PORT"))
	assert.Equal(t, "debug", envKey("INTAKE_DEBUG"))
}
