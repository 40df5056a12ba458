package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete Icarus configuration
type Config struct {
	Bus     BusConfig     `mapstructure:"bus"`
	Polling PollingConfig `mapstructure:"polling"`
	Cleanup CleanupConfig `mapstructure:"cleanup"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// BusConfig controls where the coordination bus lives on disk
type BusConfig struct {
	// Root is the bus root directory shared by the controller and workers.
	// If empty, defaults to ".icarus/bus" relative to the working directory.
	// Supports ~ for home directory expansion.
	Root string `mapstructure:"root"`
}

// PollingConfig controls how often components re-scan the shared directories
type PollingConfig struct {
	// IntervalMs is the delay between poll passes (in milliseconds)
	IntervalMs int `mapstructure:"interval_ms"`
	// WaitTimeoutSeconds is the default timeout when blocking on a response (in seconds)
	WaitTimeoutSeconds int `mapstructure:"wait_timeout_seconds"`
}

// CleanupConfig controls removal of dead and stale instance records
type CleanupConfig struct {
	// StaleThresholdMinutes is the heartbeat age beyond which an instance
	// is considered stale (0 treats every instance as stale)
	StaleThresholdMinutes int `mapstructure:"stale_threshold_minutes"`
	// ReapDead also removes instances whose process no longer exists
	ReapDead bool `mapstructure:"reap_dead"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// File is the log file path. If empty, logs go to stderr.
	File string `mapstructure:"file"`
}

// ResolveRoot returns the resolved bus root path.
// If Root is empty, it returns the default path relative to baseDir.
// If Root starts with ~, it expands to the user's home directory.
// If Root is a relative path, it's resolved relative to baseDir.
func (b *BusConfig) ResolveRoot(baseDir string) string {
	if b.Root == "" {
		return filepath.Join(baseDir, ".icarus", "bus")
	}

	path := b.Root

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	return path
}

// PollInterval returns the poll interval as a time.Duration
func (p *PollingConfig) PollInterval() time.Duration {
	return time.Duration(p.IntervalMs) * time.Millisecond
}

// WaitTimeout returns the response wait timeout as a time.Duration
func (p *PollingConfig) WaitTimeout() time.Duration {
	return time.Duration(p.WaitTimeoutSeconds) * time.Second
}

// StaleThreshold returns the stale threshold as a time.Duration
func (c *CleanupConfig) StaleThreshold() time.Duration {
	return time.Duration(c.StaleThresholdMinutes) * time.Minute
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Bus: BusConfig{
			Root: "", // Empty means use default: .icarus/bus
		},
		Polling: PollingConfig{
			IntervalMs:         500,
			WaitTimeoutSeconds: 30,
		},
		Cleanup: CleanupConfig{
			StaleThresholdMinutes: 5,
			ReapDead:              true,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			File:    "",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Bus defaults
	viper.SetDefault("bus.root", defaults.Bus.Root)

	// Polling defaults
	viper.SetDefault("polling.interval_ms", defaults.Polling.IntervalMs)
	viper.SetDefault("polling.wait_timeout_seconds", defaults.Polling.WaitTimeoutSeconds)

	// Cleanup defaults
	viper.SetDefault("cleanup.stale_threshold_minutes", defaults.Cleanup.StaleThresholdMinutes)
	viper.SetDefault("cleanup.reap_dead", defaults.Cleanup.ReapDead)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "icarus")
	}
	// Fall back to ~/.config/icarus
	home, err := os.UserHomeDir()
	if err != nil {
		return ".icarus"
	}
	return filepath.Join(home, ".config", "icarus")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
