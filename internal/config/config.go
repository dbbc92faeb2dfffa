package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// StoreDriver selects the local persisted store backend
type StoreDriver string

const (
	StoreDriverBolt   StoreDriver = "bolt"
	StoreDriverSQLite StoreDriver = "sqlite"
)

const envPrefix = "STORK"

// Config holds all application configuration
type Config struct {
	DataDir     string            `mapstructure:"data_dir"`
	Store       StoreConfig       `mapstructure:"store"`
	Legacy      LegacyConfig      `mapstructure:"legacy"`
	Cloud       CloudConfig       `mapstructure:"cloud"`
	Convergence ConvergenceConfig `mapstructure:"convergence"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
}

// StoreConfig holds local store configuration
type StoreConfig struct {
	Driver StoreDriver `mapstructure:"driver"` // "bolt" or "sqlite"
	Path   string      `mapstructure:"path"`   // Defaults to a file under data_dir
}

// LegacyConfig holds the legacy backend connection
type LegacyConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CloudConfig holds the replication notifier configuration.
// With no redis_url the in-process hub is used.
type CloudConfig struct {
	RedisURL  string `mapstructure:"redis_url"`
	Channel   string `mapstructure:"channel"`
	Available bool   `mapstructure:"available"`
}

// ConvergenceConfig holds the convergence loop budgets
type ConvergenceConfig struct {
	FreshInstallTimeout  time.Duration   `mapstructure:"fresh_install_timeout"`
	ReturningUserTimeout time.Duration   `mapstructure:"returning_user_timeout"`
	SubTimeout           time.Duration   `mapstructure:"sub_timeout"`
	SyncScreenTimeout    time.Duration   `mapstructure:"sync_screen_timeout"`
	PollSchedule         []time.Duration `mapstructure:"poll_schedule"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// TelemetryConfig holds metrics configuration
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"` // Log a metrics summary on exit
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir: defaultDataPath(),
		Store: StoreConfig{
			Driver: StoreDriverBolt,
		},
		Legacy: LegacyConfig{
			Timeout: 15 * time.Second,
		},
		Cloud: CloudConfig{
			Channel: "stork:changes",
		},
		Convergence: ConvergenceConfig{
			FreshInstallTimeout:  20 * time.Second,
			ReturningUserTimeout: 8 * time.Second,
			SubTimeout:           5 * time.Second,
			SyncScreenTimeout:    30 * time.Second,
			PollSchedule: []time.Duration{
				500 * time.Millisecond,
				time.Second,
				1500 * time.Millisecond,
				2 * time.Second,
			},
		},
		Logging: LoggingConfig{
			File:  filepath.Join(defaultDataPath(), "stork.log"),
			Level: "INFO",
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
		},
	}
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "stork")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "stork")
	}
}

// DefaultConfigPath returns the default config file for the current OS
func DefaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "stork", "config.yaml")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "stork", "config.yaml")
	}
}

// newViper returns a viper instance seeded with defaults so every key
// can be overridden from the environment (STORK_CONVERGENCE_SUB_TIMEOUT, ...).
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setAll(v.SetDefault, DefaultConfig())
	return v
}

// setAll copies cfg into viper with snake_case keys
func setAll(set func(key string, value any), cfg *Config) {
	set("data_dir", cfg.DataDir)

	set("store.driver", string(cfg.Store.Driver))
	set("store.path", cfg.Store.Path)

	set("legacy.url", cfg.Legacy.URL)
	set("legacy.timeout", cfg.Legacy.Timeout.String())

	set("cloud.redis_url", cfg.Cloud.RedisURL)
	set("cloud.channel", cfg.Cloud.Channel)
	set("cloud.available", cfg.Cloud.Available)

	schedule := make([]string, len(cfg.Convergence.PollSchedule))
	for i, d := range cfg.Convergence.PollSchedule {
		schedule[i] = d.String()
	}
	set("convergence.fresh_install_timeout", cfg.Convergence.FreshInstallTimeout.String())
	set("convergence.returning_user_timeout", cfg.Convergence.ReturningUserTimeout.String())
	set("convergence.sub_timeout", cfg.Convergence.SubTimeout.String())
	set("convergence.sync_screen_timeout", cfg.Convergence.SyncScreenTimeout.String())
	set("convergence.poll_schedule", schedule)

	set("logging.file", cfg.Logging.File)
	set("logging.level", cfg.Logging.Level)

	set("telemetry.enabled", cfg.Telemetry.Enabled)
}

// LoadConfig loads configuration from path (or the default location when
// empty) and the environment. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := newViper()

	if path == "" {
		path = DefaultConfigPath()
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes cfg to path, creating the parent directory
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	setAll(v.Set, cfg)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks that budgets and the store driver are usable
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverBolt, StoreDriverSQLite:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	conv := c.Convergence
	if conv.FreshInstallTimeout <= 0 || conv.ReturningUserTimeout <= 0 || conv.SyncScreenTimeout <= 0 {
		return errors.New("convergence timeouts must be positive")
	}
	if conv.SubTimeout <= 0 {
		return errors.New("convergence sub_timeout must be positive")
	}
	if len(conv.PollSchedule) == 0 {
		return errors.New("convergence poll_schedule must not be empty")
	}
	for _, d := range conv.PollSchedule {
		if d <= 0 {
			return fmt.Errorf("poll interval %s must be positive", d)
		}
	}
	return nil
}

// StorePath returns the store file, defaulting to a file under DataDir
func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	if c.Store.Driver == StoreDriverSQLite {
		return filepath.Join(c.DataDir, "stork.sqlite")
	}
	return filepath.Join(c.DataDir, "stork.db")
}

// StatePath returns the file holding the process-wide session flags
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "state.yaml")
}
