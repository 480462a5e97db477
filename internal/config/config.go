// Package config loads testtaker settings from defaults, an optional YAML
// file, TESTTAKER_* environment variables and command-line flags, in that
// order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/harshilgor/testtaker-sub001/internal/quest"
	"github.com/harshilgor/testtaker-sub001/internal/reconcile"
	"github.com/harshilgor/testtaker-sub001/internal/retry"
	"github.com/harshilgor/testtaker-sub001/internal/store"
)

// EnvPrefix prefixes every environment override, e.g. TESTTAKER_SERVER_ADDR.
const EnvPrefix = "TESTTAKER"

// Config is the full application configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Quests  QuestsConfig  `mapstructure:"quests"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`

	// Source is the config file that was read, empty when none was found.
	Source string `mapstructure:"-"`
}

type StorageConfig struct {
	// DBPath is the SQLite file. Empty resolves through store.DefaultDBPath.
	DBPath string `mapstructure:"db_path"`
}

type EngineConfig struct {
	Timezone         string        `mapstructure:"timezone"`
	MinDailyAttempts int           `mapstructure:"min_daily_attempts"`
	RefreshInterval  time.Duration `mapstructure:"refresh_interval"`
	StaleAfter       time.Duration `mapstructure:"stale_after"`
	RefreshDebounce  time.Duration `mapstructure:"refresh_debounce"`
	ClaimTimeout     time.Duration `mapstructure:"claim_timeout"`
	Retry            RetryConfig   `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	InitialWait time.Duration `mapstructure:"initial_wait"`
	MaxWait     time.Duration `mapstructure:"max_wait"`
	Multiplier  float64       `mapstructure:"multiplier"`
}

type QuestsConfig struct {
	MaxActive          int           `mapstructure:"max_active"`
	MaxWeak            int           `mapstructure:"max_weak"`
	DailyCount         int           `mapstructure:"daily_count"`
	CompletedRetention time.Duration `mapstructure:"completed_retention"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	// Mode is "dev" for console output or "prod" for JSON.
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"db":        "storage.db_path",
	"addr":      "server.addr",
	"log-level": "log.level",
	"timezone":  "engine.timezone",
}

// Load reads configuration. configPath names an explicit file; when empty,
// testtaker.yaml is looked up in the working directory and then in
// $XDG_CONFIG_HOME/testtaker. flags may be nil; only flags that were set on
// the command line override other sources.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("testtaker")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir := configDir(); dir != "" {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Source = v.ConfigFileUsed()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	e := reconcile.DefaultConfig()
	q := quest.DefaultConfig()

	v.SetDefault("storage.db_path", "")

	v.SetDefault("engine.timezone", "Local")
	v.SetDefault("engine.min_daily_attempts", e.MinDailyAttempts)
	v.SetDefault("engine.refresh_interval", e.RefreshInterval)
	v.SetDefault("engine.stale_after", e.StaleAfter)
	v.SetDefault("engine.refresh_debounce", e.RefreshDebounce)
	v.SetDefault("engine.claim_timeout", e.ClaimTimeout)
	v.SetDefault("engine.retry.max_attempts", e.Retry.MaxAttempts)
	v.SetDefault("engine.retry.initial_wait", e.Retry.InitialWait)
	v.SetDefault("engine.retry.max_wait", e.Retry.MaxWait)
	v.SetDefault("engine.retry.multiplier", e.Retry.Multiplier)

	v.SetDefault("quests.max_active", q.MaxActive)
	v.SetDefault("quests.max_weak", q.MaxWeak)
	v.SetDefault("quests.daily_count", q.DailyCount)
	v.SetDefault("quests.completed_retention", q.CompletedRetention)

	v.SetDefault("server.addr", "127.0.0.1:8080")

	v.SetDefault("log.mode", "dev")
	v.SetDefault("log.level", "info")
}

func configDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "testtaker")
}

func (c *Config) validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Engine.MinDailyAttempts < 1 {
		return fmt.Errorf("engine.min_daily_attempts must be at least 1, got %d", c.Engine.MinDailyAttempts)
	}
	if c.Quests.DailyCount > c.Quests.MaxActive {
		return fmt.Errorf("quests.daily_count (%d) exceeds quests.max_active (%d)", c.Quests.DailyCount, c.Quests.MaxActive)
	}
	return nil
}

// Location resolves engine.timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Engine.Timezone)
	if err != nil {
		return nil, fmt.Errorf("engine.timezone %q: %w", c.Engine.Timezone, err)
	}
	return loc, nil
}

// DBPath returns storage.db_path, falling back to the default data location.
func (c *Config) DBPath() (string, error) {
	if c.Storage.DBPath != "" {
		return c.Storage.DBPath, nil
	}
	return store.DefaultDBPath()
}

// Reconcile builds the engine configuration.
func (c *Config) Reconcile() (reconcile.Config, error) {
	loc, err := c.Location()
	if err != nil {
		return reconcile.Config{}, err
	}
	qc := quest.DefaultConfig()
	qc.MaxActive = c.Quests.MaxActive
	qc.MaxWeak = c.Quests.MaxWeak
	qc.DailyCount = c.Quests.DailyCount
	qc.CompletedRetention = c.Quests.CompletedRetention

	rc := reconcile.DefaultConfig()
	rc.Location = loc
	rc.MinDailyAttempts = c.Engine.MinDailyAttempts
	rc.RefreshInterval = c.Engine.RefreshInterval
	rc.StaleAfter = c.Engine.StaleAfter
	rc.RefreshDebounce = c.Engine.RefreshDebounce
	rc.ClaimTimeout = c.Engine.ClaimTimeout
	rc.Retry = retry.Config{
		MaxAttempts: c.Engine.Retry.MaxAttempts,
		InitialWait: c.Engine.Retry.InitialWait,
		MaxWait:     c.Engine.Retry.MaxWait,
		Multiplier:  c.Engine.Retry.Multiplier,
	}
	rc.Quests = qc
	return rc, nil
}
