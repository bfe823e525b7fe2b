// Package config loads service configuration from defaults, an optional YAML
// file and INTAKE_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	EnvPrefix         = "INTAKE_"
	maxConfigFileSize = 1024 * 1024
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Oracle    OracleConfig    `koanf:"oracle"`
	Store     StoreConfig     `koanf:"store"`
	Interview InterviewConfig `koanf:"interview"`
	Logging   LoggingConfig   `koanf:"logging"`
	Report    ReportConfig    `koanf:"report"`
	STT       STTConfig       `koanf:"stt"`
}

type ServerConfig struct {
	Port string `koanf:"port"`
}

type OracleConfig struct {
	Model       string        `koanf:"model"`
	BaseURL     string        `koanf:"base_url"`
	APIKey      string        `koanf:"api_key"`
	Temperature float64       `koanf:"temperature"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxRetries  int           `koanf:"max_retries"`
	RateLimit   float64       `koanf:"rate_limit"` // requests per second
	Burst       int           `koanf:"burst"`
}

type StoreConfig struct {
	Driver         string `koanf:"driver"` // memory or postgres
	DatabaseURL    string `koanf:"database_url"`
	MigrationsPath string `koanf:"migrations_path"`
	AutoMigrate    bool   `koanf:"auto_migrate"`
}

type InterviewConfig struct {
	RecentWindow int `koanf:"recent_window"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ReportConfig enables the doctor report when both token and chat id are set.
type ReportConfig struct {
	TelegramToken   string        `koanf:"telegram_token"`
	TelegramBaseURL string        `koanf:"telegram_base_url"`
	TelegramTimeout time.Duration `koanf:"telegram_timeout"`
	DoctorChatID    int64         `koanf:"doctor_chat_id"`
	FontPaths       []string      `koanf:"font_paths"`
}

func (r ReportConfig) Enabled() bool {
	return r.TelegramToken != "" && r.DoctorChatID != 0
}

// STTConfig enables audio replies when URL is set.
type STTConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

const defaults = `
server:
  port: "8080"
oracle:
  model: gpt-4o-mini
  temperature: 0.2
  timeout: 60s
  max_retries: 3
  rate_limit: 0.83
  burst: 5
store:
  driver: memory
  migrations_path: file://migrations
  auto_migrate: false
interview:
  recent_window: 4
logging:
  level: info
  format: json
report:
  telegram_base_url: https://api.telegram.org
  telegram_timeout: 10s
stt:
  timeout: 60s
`

// Load reads configuration. path may be empty, in which case only defaults
// and the environment are used.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaults)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// INTAKE_ORACLE_API_KEY -> oracle.api_key: split on the first underscore only.
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Oracle.APIKey == "" {
		cfg.Oracle.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("store.database_url is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver must be memory or postgres, got %q", c.Store.Driver))
	}
	if c.Interview.RecentWindow < 1 {
		errs = append(errs, fmt.Errorf("interview.recent_window must be positive, got %d", c.Interview.RecentWindow))
	}
	if c.Oracle.Temperature < 0 || c.Oracle.Temperature > 2 {
		errs = append(errs, fmt.Errorf("oracle.temperature must be within [0, 2], got %v", c.Oracle.Temperature))
	}
	if c.Oracle.MaxRetries < 0 {
		errs = append(errs, errors.New("oracle.max_retries must not be negative"))
	}
	if c.Oracle.RateLimit <= 0 || c.Oracle.Burst < 1 {
		errs = append(errs, errors.New("oracle.rate_limit and oracle.burst must be positive"))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}
	if (c.Report.TelegramToken == "") != (c.Report.DoctorChatID == 0) {
		errs = append(errs, errors.New("report.telegram_token and report.doctor_chat_id must be set together"))
	}
	if c.Report.Enabled() && c.Report.TelegramTimeout <= 0 {
		errs = append(errs, fmt.Errorf("report.telegram_timeout must be positive, got %v", c.Report.TelegramTimeout))
	}

	return errors.Join(errs...)
}
