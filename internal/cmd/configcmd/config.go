// Package configcmd provides CLI commands for viewing and managing colony
// configuration.
package configcmd

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mcfearsome/cc-colony-sub001/internal/cmd/cmdutil"
	"github.com/mcfearsome/cc-colony-sub001/internal/cmd/output"
	"github.com/mcfearsome/cc-colony-sub001/internal/config"
	"github.com/mcfearsome/cc-colony-sub001/internal/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Register adds the config command group to the given parent command.
func Register(parent *cobra.Command) {
	parent.AddCommand(NewCmd())
}

// NewCmd builds the config command group.
func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View or modify colony configuration",
		Long: `View or modify colony configuration.

Without arguments, displays the effective configuration.
Use subcommands to modify settings or create a config file.`,
		RunE: runShow,
	}
	cmd.PersistentFlags().StringP("output", "o", "", "Output format: yaml, json (default yaml)")

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cmdutil.NoArgs,
		RunE:  runShow,
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  colony config set store.backend sqlite
  colony config set claim.max_retries 12
  colony config set watch.interval 2s

Valid keys:
` + keyHelp(),
		Args: cmdutil.ExactArgs(2),
		RunE: runSet,
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default config file",
		Long:  `Create a default config file at ~/.config/colony/config.yaml with all available options.`,
		Args:  cmdutil.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	path := &cobra.Command{
		Use:   "path",
		Short: "Show the config file path",
		Args:  cmdutil.NoArgs,
		RunE:  runPath,
	}

	cmd.AddCommand(show, set, initCmd, path)
	return cmd
}

// settableKeys maps every key `config set` accepts to its value kind.
var settableKeys = map[string]string{
	"store.root":                   "string",
	"store.backend":                "string",
	"store.sqlite_busy_timeout_ms": "int",
	"claim.max_retries":            "int",
	"claim.backoff_base_ms":        "int",
	"claim.backoff_max_ms":         "int",
	"agent.id":                     "string",
	"agent.project_dir":            "string",
	"agent.git_branch":             "string",
	"watch.interval":               "duration",
	"output.format":                "string",
	"output.color":                 "bool",
	"logging.enabled":              "bool",
	"logging.level":                "string",
	"logging.max_size_mb":          "int",
	"logging.max_backups":          "int",
	"logging.compress":             "bool",
}

func keyHelp() string {
	keys := make([]string, 0, len(settableKeys))
	for k := range settableKeys {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "  %-30s %s\n", k, settableKeys[k])
	}
	return strings.TrimRight(sb.String(), "\n")
}

// view flattens cfg into the shape of the config file.
func view(cfg *config.Config) map[string]map[string]any {
	return map[string]map[string]any{
		"store": {
			"root":                   cfg.Store.Root,
			"backend":                cfg.Store.Backend,
			"sqlite_busy_timeout_ms": cfg.Store.SQLiteBusyTimeoutMs,
		},
		"claim": {
			"max_retries":     cfg.Claim.MaxRetries,
			"backoff_base_ms": cfg.Claim.BackoffBaseMs,
			"backoff_max_ms":  cfg.Claim.BackoffMaxMs,
		},
		"agent": {
			"id":          cfg.Agent.ID,
			"project_dir": cfg.Agent.ProjectDir,
			"git_branch":  cfg.Agent.GitBranch,
		},
		"watch": {
			"interval": cfg.Watch.Interval.String(),
		},
		"output": {
			"format": cfg.Output.Format,
			"color":  cfg.Output.Color,
		},
		"logging": {
			"enabled":     cfg.Logging.Enabled,
			"level":       cfg.Logging.Level,
			"max_size_mb": cfg.Logging.MaxSizeMB,
			"max_backups": cfg.Logging.MaxBackups,
			"compress":    cfg.Logging.Compress,
		},
	}
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}

	format := output.FormatYAML
	if f := cmd.Flags().Lookup("output"); f != nil && f.Changed {
		format = f.Value.String()
	}
	out, err := output.New(cmd.OutOrStdout(), format, false)
	if err != nil {
		return err
	}

	if !out.Structured() || out.Format() == output.FormatYAML {
		source := "(none - using defaults)"
		if used := viper.ConfigFileUsed(); used != "" {
			source = used
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "# Config file: %s\n", source)
	}
	return out.Value(view(cfg))
}

func runSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	kind, ok := settableKeys[key]
	if !ok {
		return errors.NewValidationError("unknown configuration key (run 'colony config set --help' to see valid keys)").
			WithField("key").WithValue(key)
	}

	var typed any
	switch kind {
	case "string":
		typed = value
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.NewValidationError("expected true or false").WithField(key).WithValue(value)
		}
		typed = b
	case "int":
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.NewValidationError("expected integer").WithField(key).WithValue(value)
		}
		typed = n
	case "duration":
		d, err := time.ParseDuration(value)
		if err != nil {
			return errors.NewValidationError("expected duration such as 5s or 500ms").WithField(key).WithValue(value)
		}
		typed = d.String()
	}

	// Validate the whole config with the new value before touching disk.
	previous := viper.Get(key)
	viper.Set(key, typed)
	if _, err := cmdutil.LoadConfig(); err != nil {
		viper.Set(key, previous)
		return err
	}

	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = config.ConfigFile()
	}
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}
	if err := viper.WriteConfigAs(configFile); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Set %s = %v\n", key, typed)
	_, _ = fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}

// template is written by `config init`.
const template = `# colony configuration
# Every key can also be set through the environment, e.g. COLONY_STORE_BACKEND.

# Where coordination records live. Every agent process that should see the
# same tasks and messages must use the same root.
store:
  # Relative paths resolve against the working directory
  root: .colony
  # Options: file, sqlite
  backend: file
  # How long SQLite waits on a locked database (sqlite backend only)
  sqlite_busy_timeout_ms: 5000

# Optimistic retry loop used for every task update
claim:
  # Attempts before an update gives up with a Conflict error
  max_retries: 8
  # First retry delay; later retries double it up to backoff_max_ms
  backoff_base_ms: 5
  backoff_max_ms: 200

# Identity of the calling agent. Usually set per agent with COLONY_AGENT_ID.
agent:
  id: ""
  # Defaults to the working directory
  project_dir: ""
  # Defaults to the current git branch of project_dir
  git_branch: ""

# messages watch
watch:
  interval: 5s

output:
  # Options: table, json, yaml
  format: table
  # Colorize tables when writing to a terminal
  color: true

# Structured log at <root>/logs/colony.log
logging:
  enabled: true
  # Options: debug, info, warn, error
  level: info
  max_size_mb: 10
  max_backups: 3
  compress: false
`

func runInit(cmd *cobra.Command, force bool) error {
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil && !force {
		return errors.NewValidationError("config file already exists (use --force to overwrite)").
			WithField("config").WithValue(configFile)
	}

	if err := os.MkdirAll(config.ConfigDir(), 0755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}
	if err := os.WriteFile(configFile, []byte(template), 0644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Created config file at %s\n", configFile)
	_, _ = fmt.Fprintln(out, "Edit this file to customize colony's behavior.")
	return nil
}

func runPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if used := viper.ConfigFileUsed(); used != "" {
		_, _ = fmt.Fprintf(out, "Active config: %s\n", used)
	} else {
		_, _ = fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	_, _ = fmt.Fprintln(out, "\nSearch paths:")
	_, _ = fmt.Fprintf(out, "  1. %s\n", config.ConfigFile())
	_, _ = fmt.Fprintf(out, "  2. $HOME/.config/colony/config.yaml\n")
	_, _ = fmt.Fprintf(out, "  3. ./config.yaml (current directory)\n")
	_, _ = fmt.Fprintln(out, "\nEnvironment variables: COLONY_* (e.g., COLONY_AGENT_ID, COLONY_STORE_BACKEND)")
	return nil
}
