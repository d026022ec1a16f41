package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration read from strings such as "5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr          string   `yaml:"addr" toml:"addr"`
		PublicBaseURL string   `yaml:"public_base_url" toml:"public_base_url"`
		ReadTimeout   Duration `yaml:"read_timeout" toml:"read_timeout"`
		WriteTimeout  Duration `yaml:"write_timeout" toml:"write_timeout"`
	} `yaml:"server" toml:"server"`
	Database struct {
		Driver string `yaml:"driver" toml:"driver"`
		DSN    string `yaml:"dsn" toml:"dsn"`
	} `yaml:"database" toml:"database"`
	Charts struct {
		Dir string `yaml:"dir" toml:"dir"`
	} `yaml:"charts" toml:"charts"`
	Auth struct {
		Secret   string   `yaml:"secret" toml:"secret"`
		TokenTTL Duration `yaml:"token_ttl" toml:"token_ttl"`
	} `yaml:"auth" toml:"auth"`
	Compute struct {
		Workers          int      `yaml:"workers" toml:"workers"`
		SolveTimeout     Duration `yaml:"solve_timeout" toml:"solve_timeout"`
		PriceVariable    string   `yaml:"price_variable" toml:"price_variable"`
		QuantityVariable string   `yaml:"quantity_variable" toml:"quantity_variable"`
	} `yaml:"compute" toml:"compute"`
	Telegram struct {
		BotToken string `yaml:"bot_token" toml:"bot_token"`
		ChatID   string `yaml:"chat_id" toml:"chat_id"`
	} `yaml:"telegram" toml:"telegram"`
	Schedule struct {
		SweepCron string `yaml:"sweep_cron" toml:"sweep_cron"`
	} `yaml:"schedule" toml:"schedule"`
	Log struct {
		Level  string `yaml:"level" toml:"level"`
		Format string `yaml:"format" toml:"format"`
	} `yaml:"log" toml:"log"`
}

// Load reads config from a YAML or TOML file (by extension), then applies
// environment variable overrides and defaults. A missing file is not an
// error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := decode(path, data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Unmarshal(data, cfg)
	case ".yaml", ".yml", "":
		return yaml.Unmarshal(data, cfg)
	}
	return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
}

func (c *Config) applyEnv() {
	str := map[string]*string{
		"OPTIMIZER_ADDR":            &c.Server.Addr,
		"OPTIMIZER_PUBLIC_BASE_URL": &c.Server.PublicBaseURL,
		"OPTIMIZER_DB_DRIVER":       &c.Database.Driver,
		"DATABASE_URL":              &c.Database.DSN,
		"OPTIMIZER_CHARTS_DIR":      &c.Charts.Dir,
		"OPTIMIZER_AUTH_SECRET":     &c.Auth.Secret,
		"TELEGRAM_BOT_TOKEN":        &c.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":          &c.Telegram.ChatID,
		"OPTIMIZER_SWEEP_CRON":      &c.Schedule.SweepCron,
		"OPTIMIZER_LOG_LEVEL":       &c.Log.Level,
		"OPTIMIZER_LOG_FORMAT":      &c.Log.Format,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("OPTIMIZER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Compute.Workers = n
		}
	}
	if v := os.Getenv("OPTIMIZER_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Auth.TokenTTL.Duration = d
		}
	}
	if v := os.Getenv("OPTIMIZER_SOLVE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Compute.SolveTimeout.Duration = d
		}
	}
	// A postgres URL implies the postgres driver unless one was chosen.
	if c.Database.Driver == "" && strings.HasPrefix(c.Database.DSN, "postgres") {
		c.Database.Driver = "postgres"
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.PublicBaseURL == "" {
		c.Server.PublicBaseURL = "http://" + c.Server.Addr
		if strings.HasPrefix(c.Server.Addr, ":") {
			c.Server.PublicBaseURL = "http://localhost" + c.Server.Addr
		}
	}
	if c.Server.ReadTimeout.Duration == 0 {
		c.Server.ReadTimeout.Duration = 15 * time.Second
	}
	if c.Server.WriteTimeout.Duration == 0 {
		c.Server.WriteTimeout.Duration = 30 * time.Second
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = "data/optimizer.db"
	}
	if c.Charts.Dir == "" {
		c.Charts.Dir = "data/charts"
	}
	if c.Auth.TokenTTL.Duration == 0 {
		c.Auth.TokenTTL.Duration = 30 * time.Minute
	}
	if c.Compute.SolveTimeout.Duration == 0 {
		c.Compute.SolveTimeout.Duration = 5 * time.Second
	}
	if c.Compute.PriceVariable == "" {
		c.Compute.PriceVariable = "p"
	}
	if c.Compute.QuantityVariable == "" {
		c.Compute.QuantityVariable = "q"
	}
	if c.Schedule.SweepCron == "" {
		c.Schedule.SweepCron = "0 0 3 * * *"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// TelegramEnabled reports whether notifications are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// TelegramChatID returns the chat id as the Bot API expects it.
func (c *Config) TelegramChatID() (int64, error) {
	id, err := strconv.ParseInt(c.Telegram.ChatID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram.chat_id: %w", err)
	}
	return id, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required")
	}
	if c.Auth.TokenTTL.Duration < 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Compute.Workers < 0 {
		return fmt.Errorf("compute.workers must not be negative")
	}
	if c.Compute.SolveTimeout.Duration < 0 {
		return fmt.Errorf("compute.solve_timeout must be positive")
	}
	for name, v := range map[string]string{
		"compute.price_variable":    c.Compute.PriceVariable,
		"compute.quantity_variable": c.Compute.QuantityVariable,
	} {
		if len(v) != 1 || v[0] < 'a' || v[0] > 'z' {
			return fmt.Errorf("%s must be a single lowercase letter, got %q", name, v)
		}
	}
	if c.Telegram.ChatID != "" {
		if _, err := c.TelegramChatID(); err != nil {
			return err
		}
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
