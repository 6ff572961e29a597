// Package config loads client settings from defaults, an optional YAML file,
// a .env file and TRADEPILOT_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "TRADEPILOT"

type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Poll      PollConfig      `mapstructure:"poll"`
	AutoTrade AutoTradeConfig `mapstructure:"autotrade"`
	Log       LogConfig       `mapstructure:"log"`
}

type APIConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RatePerSec float64       `mapstructure:"rate_per_sec"`
	Burst      int           `mapstructure:"burst"`
}

type PollConfig struct {
	QuoteInterval     time.Duration `mapstructure:"quote_interval"`
	StatusInterval    time.Duration `mapstructure:"status_interval"`
	PortfolioInterval time.Duration `mapstructure:"portfolio_interval"`
}

type AutoTradeConfig struct {
	MinAmount     int64 `mapstructure:"min_amount"`
	ConfirmAbove  int64 `mapstructure:"confirm_above"`
	DefaultAmount int64 `mapstructure:"default_amount"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	File   string `mapstructure:"file"`
}

var defaults = map[string]any{
	"api.base_url":             "http://localhost:8000",
	"api.timeout":              15 * time.Second,
	"api.rate_per_sec":         10.0,
	"api.burst":                5,
	"poll.quote_interval":      2 * time.Second,
	"poll.status_interval":     3 * time.Second,
	"poll.portfolio_interval":  5 * time.Second,
	"autotrade.min_amount":     int64(10_000),
	"autotrade.confirm_above":  int64(100_000_000),
	"autotrade.default_amount": int64(1_000_000),
	"log.level":                "info",
	"log.pretty":               false,
	"log.file":                 "",
}

// Keys lists every setting in a stable order.
func Keys() []string {
	return []string{
		"api.base_url", "api.timeout", "api.rate_per_sec", "api.burst",
		"poll.quote_interval", "poll.status_interval", "poll.portfolio_interval",
		"autotrade.min_amount", "autotrade.confirm_above", "autotrade.default_amount",
		"log.level", "log.pretty", "log.file",
	}
}

// Dir is ~/.config/tradepilot.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "tradepilot"), nil
}

// DefaultPath is the config file used when none is given.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Default returns the built-in settings.
func Default() *Config {
	cfg, _ := load(newViper(false), "")
	return cfg
}

// Load reads path (skipped when it does not exist), then .env, then the
// environment. An empty path means DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	// .env is optional
	_ = godotenv.Load()

	return load(newViper(true), path)
}

func newViper(env bool) *viper.Viper {
	v := viper.New()
	for _, key := range Keys() {
		v.SetDefault(key, defaults[key])
	}
	if !env {
		return v
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range Keys() {
		_ = v.BindEnv(key)
	}
	return v
}

func load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the pollers and the auto-trade issuer cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.API.BaseURL) == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}
	if c.API.RatePerSec < 0 {
		errs = append(errs, errors.New("api.rate_per_sec must not be negative"))
	}
	if c.Poll.QuoteInterval <= 0 {
		errs = append(errs, errors.New("poll.quote_interval must be positive"))
	}
	if c.Poll.StatusInterval <= 0 {
		errs = append(errs, errors.New("poll.status_interval must be positive"))
	}
	if c.Poll.PortfolioInterval <= 0 {
		errs = append(errs, errors.New("poll.portfolio_interval must be positive"))
	}
	if c.AutoTrade.MinAmount <= 0 {
		errs = append(errs, errors.New("autotrade.min_amount must be positive"))
	}
	if c.AutoTrade.MinAmount > c.AutoTrade.ConfirmAbove {
		errs = append(errs, errors.New("autotrade.min_amount must not exceed autotrade.confirm_above"))
	}
	if c.AutoTrade.DefaultAmount < c.AutoTrade.MinAmount {
		errs = append(errs, errors.New("autotrade.default_amount must be at least autotrade.min_amount"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Values flattens the config into key/value strings, in Keys order.
func (c *Config) Values() [][2]string {
	m := c.fileMap()
	out := make([][2]string, 0, len(Keys()))
	for _, key := range Keys() {
		section, name, _ := strings.Cut(key, ".")
		out = append(out, [2]string{key, fmt.Sprint(m[section][name])})
	}
	return out
}

// fileMap is the YAML layout. Durations are written as "2s" so viper can read
// them back.
func (c *Config) fileMap() map[string]map[string]any {
	return map[string]map[string]any{
		"api": {
			"base_url":     c.API.BaseURL,
			"timeout":      c.API.Timeout.String(),
			"rate_per_sec": c.API.RatePerSec,
			"burst":        c.API.Burst,
		},
		"poll": {
			"quote_interval":     c.Poll.QuoteInterval.String(),
			"status_interval":    c.Poll.StatusInterval.String(),
			"portfolio_interval": c.Poll.PortfolioInterval.String(),
		},
		"autotrade": {
			"min_amount":     c.AutoTrade.MinAmount,
			"confirm_above":  c.AutoTrade.ConfirmAbove,
			"default_amount": c.AutoTrade.DefaultAmount,
		},
		"log": {
			"level":  c.Log.Level,
			"pretty": c.Log.Pretty,
			"file":   c.Log.File,
		},
	}
}

// Save writes cfg as YAML to path, creating the directory.
func Save(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg.fileMap())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
