// Package config loads repsync settings from a YAML file, REPSYNC_*
// environment variables, and command-line flags, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // timezone names resolve without system zoneinfo

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// REPSYNC_REMOTE_URL for remote.url.
const EnvPrefix = "REPSYNC"

// Config is the full set of settings.
type Config struct {
	DataDir   string          `mapstructure:"data_dir"`
	UserID    string          `mapstructure:"user_id"`
	Timezone  string          `mapstructure:"timezone"`
	Remote    RemoteConfig    `mapstructure:"remote"`
	Reach     ReachConfig     `mapstructure:"reach"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Daemon    DaemonConfig    `mapstructure:"daemon"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Log       LogConfig       `mapstructure:"log"`
}

// RemoteConfig points at the remote system of record.
type RemoteConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ReachConfig tunes the reachability monitor.
type ReachConfig struct {
	TTL     time.Duration `mapstructure:"ttl"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SyncConfig tunes the sync engine.
type SyncConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	Attempts    int           `mapstructure:"attempts"`
	Grace       time.Duration `mapstructure:"grace"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

// DaemonConfig tunes the background daemon.
type DaemonConfig struct {
	Inbox    string        `mapstructure:"inbox"`
	Interval time.Duration `mapstructure:"interval"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// DashboardConfig sets where the dashboard listens.
type DashboardConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LogConfig controls log output. An empty File logs to stderr.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// DefaultDataDir returns $HOME/.repsync, or .repsync when the home
// directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".repsync"
	}
	return filepath.Join(home, ".repsync")
}

// SetDefaults registers every key with its default value. Keys must be
// registered for environment overrides to apply on Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("user_id", "me")
	v.SetDefault("timezone", "Local")

	v.SetDefault("remote.url", "")
	v.SetDefault("remote.token", "")
	v.SetDefault("remote.timeout", 10*time.Second)

	v.SetDefault("reach.ttl", 5*time.Second)
	v.SetDefault("reach.timeout", 3*time.Second)

	v.SetDefault("sync.concurrency", 4)
	v.SetDefault("sync.attempts", 3)
	v.SetDefault("sync.grace", 2*time.Second)
	v.SetDefault("sync.backoff", 500*time.Millisecond)

	v.SetDefault("daemon.inbox", "")
	v.SetDefault("daemon.interval", time.Duration(0))
	v.SetDefault("daemon.debounce", 250*time.Millisecond)

	v.SetDefault("dashboard.host", "127.0.0.1")
	v.SetDefault("dashboard.port", 8080)

	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}

// New returns a viper instance with defaults and environment overrides
// registered.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file and decodes the merged settings.
//
// An explicit file must exist. Without one, config.yaml is looked up in the
// data directory and then $HOME/.repsync; a missing file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(v.GetString("data_dir"))
		v.AddConfigPath(DefaultDataDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
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

// Validate checks settings that would otherwise fail later and less
// clearly.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.UserID == "" || strings.Contains(c.UserID, "/") {
		return fmt.Errorf("user_id must be non-empty and must not contain '/'")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("sync.concurrency must be at least 1")
	}
	if c.Sync.Attempts < 1 {
		return fmt.Errorf("sync.attempts must be at least 1")
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port %d out of range", c.Dashboard.Port)
	}
	return nil
}

// Location resolves the timezone used for calendar days. "Local" and ""
// mean the device zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DBPath is the SQLite database file.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "repsync.db")
}

// InboxDir is the daemon inbox, defaulting to <data_dir>/inbox.
func (c *Config) InboxDir() string {
	if c.Daemon.Inbox != "" {
		return c.Daemon.Inbox
	}
	return filepath.Join(c.DataDir, "inbox")
}

// RemoteConfigured reports whether a remote URL is set.
func (c *Config) RemoteConfigured() bool {
	return c.Remote.URL != ""
}
