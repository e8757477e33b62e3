package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete colony configuration
type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	Claim   ClaimConfig   `mapstructure:"claim"`
	Agent   AgentConfig   `mapstructure:"agent"`
	Watch   WatchConfig   `mapstructure:"watch"`
	Output  OutputConfig  `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// StoreConfig selects where and how coordination records are kept
type StoreConfig struct {
	// Root is the coordination root shared by every agent process.
	// Relative paths are resolved against the working directory (default: ".colony")
	Root string `mapstructure:"root"`
	// Backend is the record store implementation
	// Options: "file", "sqlite"
	Backend string `mapstructure:"backend"`
	// SQLiteBusyTimeoutMs is how long SQLite waits on a locked database
	// before reporting SQLITE_BUSY (sqlite backend only)
	SQLiteBusyTimeoutMs int `mapstructure:"sqlite_busy_timeout_ms"`
}

// ClaimConfig controls the optimistic retry loop used for task mutations
type ClaimConfig struct {
	// MaxRetries is the number of compare-and-swap attempts before a
	// mutation gives up with a Conflict error
	MaxRetries int `mapstructure:"max_retries"`
	// BackoffBaseMs is the delay before the first retry; later retries double it
	BackoffBaseMs int `mapstructure:"backoff_base_ms"`
	// BackoffMaxMs caps the retry delay
	BackoffMaxMs int `mapstructure:"backoff_max_ms"`
}

// AgentConfig identifies the calling agent. It is usually set through
// COLONY_AGENT_ID and friends by whatever launched the agent.
type AgentConfig struct {
	// ID is the sending agent id used by message commands
	ID string `mapstructure:"id"`
	// ProjectDir is attached to outgoing messages as context.
	// Empty means the working directory
	ProjectDir string `mapstructure:"project_dir"`
	// GitBranch is attached to outgoing messages as context.
	// Empty means the current branch of ProjectDir, if any
	GitBranch string `mapstructure:"git_branch"`
}

// WatchConfig controls `messages watch`
type WatchConfig struct {
	// Interval is the poll period between mailbox re-reads (default: 5s)
	Interval time.Duration `mapstructure:"interval"`
}

// OutputConfig controls how commands render results
type OutputConfig struct {
	// Format is the default output format for list commands
	// Options: "table", "json", "yaml"
	Format string `mapstructure:"format"`
	// Color enables styled table output when stdout is a terminal
	Color bool `mapstructure:"color"`
}

// LoggingConfig controls the structured log written under the coordination root
type LoggingConfig struct {
	// Enabled turns on logging to <root>/logs/colony.log (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the minimum log level
	// Options: "debug", "info", "warn", "error"
	Level string `mapstructure:"level"`
	// MaxSizeMB is the size at which colony.log is rotated
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is how many rotated files to keep
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated files
	Compress bool `mapstructure:"compress"`
}

// ResolveRoot returns the absolute coordination root.
// A leading ~ expands to the user's home directory and relative paths are
// resolved against baseDir.
func (s *StoreConfig) ResolveRoot(baseDir string) string {
	path := s.Root
	if path == "" {
		path = DefaultRoot
	}

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return path
}

// SQLiteBusyTimeout returns the busy timeout as a time.Duration
func (s *StoreConfig) SQLiteBusyTimeout() time.Duration {
	return time.Duration(s.SQLiteBusyTimeoutMs) * time.Millisecond
}

// BackoffBase returns the base retry delay as a time.Duration
func (c *ClaimConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMs) * time.Millisecond
}

// BackoffMax returns the retry delay cap as a time.Duration
func (c *ClaimConfig) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxMs) * time.Millisecond
}

// DefaultRoot is the coordination root used when none is configured.
const DefaultRoot = ".colony"

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Root:                DefaultRoot,
			Backend:             "file",
			SQLiteBusyTimeoutMs: 5000,
		},
		Claim: ClaimConfig{
			MaxRetries:    8,
			BackoffBaseMs: 5,
			BackoffMaxMs:  200,
		},
		Agent: AgentConfig{},
		Watch: WatchConfig{
			Interval: 5 * time.Second,
		},
		Output: OutputConfig{
			Format: "table",
			Color:  true,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Store defaults
	viper.SetDefault("store.root", defaults.Store.Root)
	viper.SetDefault("store.backend", defaults.Store.Backend)
	viper.SetDefault("store.sqlite_busy_timeout_ms", defaults.Store.SQLiteBusyTimeoutMs)

	// Claim defaults
	viper.SetDefault("claim.max_retries", defaults.Claim.MaxRetries)
	viper.SetDefault("claim.backoff_base_ms", defaults.Claim.BackoffBaseMs)
	viper.SetDefault("claim.backoff_max_ms", defaults.Claim.BackoffMaxMs)

	// Agent defaults are empty but registered so AutomaticEnv can see them
	viper.SetDefault("agent.id", defaults.Agent.ID)
	viper.SetDefault("agent.project_dir", defaults.Agent.ProjectDir)
	viper.SetDefault("agent.git_branch", defaults.Agent.GitBranch)

	// Watch defaults
	viper.SetDefault("watch.interval", defaults.Watch.Interval)

	// Output defaults
	viper.SetDefault("output.format", defaults.Output.Format)
	viper.SetDefault("output.color", defaults.Output.Color)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
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
		return filepath.Join(xdg, "colony")
	}
	// Fall back to ~/.config/colony
	home, err := os.UserHomeDir()
	if err != nil {
		return ".colony"
	}
	return filepath.Join(home, ".config", "colony")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidBackends returns the list of valid store backends
func ValidBackends() []string {
	return []string{"file", "sqlite"}
}

// ValidOutputFormats returns the list of valid list output formats
func ValidOutputFormats() []string {
	return []string{"table", "json", "yaml"}
}
