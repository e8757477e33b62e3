package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mcfearsome/cc-colony-sub001/internal/cmd/cmdutil"
	"github.com/mcfearsome/cc-colony-sub001/internal/cmd/configcmd"
	"github.com/mcfearsome/cc-colony-sub001/internal/cmd/messages"
	"github.com/mcfearsome/cc-colony-sub001/internal/cmd/tasks"
	"github.com/mcfearsome/cc-colony-sub001/internal/config"
	"github.com/mcfearsome/cc-colony-sub001/internal/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCmd builds the colony command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "colony",
		Short: "Shared task queue and mailboxes for cooperating agents",
		Long: `Colony lets several agent processes on one machine share a task queue
and exchange messages through a common coordination root.

Agents create tasks with dependencies, claim them (exactly one claimant ever
wins), report progress, and send each other direct or broadcast messages.
Every command is a short-lived process; all state lives under --root.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initConfig,
	}
	root.SetFlagErrorFunc(cmdutil.FlagError)

	// Global flags
	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.config/colony/config.yaml)")
	flags.String("root", "", "coordination root directory (default .colony)")
	flags.String("backend", "", "record store backend: file, sqlite")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.Bool("no-color", false, "disable colored output")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("store.root", flags.Lookup("root"))
	_ = viper.BindPFlag("store.backend", flags.Lookup("backend"))
	_ = viper.BindPFlag("logging.level", flags.Lookup("log-level"))

	tasks.Register(root)
	messages.Register(root)
	configcmd.Register(root)
	root.AddCommand(newLogsCmd())

	return root
}

func initConfig(cmd *cobra.Command, args []string) error {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	cfgFile := viper.GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/colony")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("COLONY")
	// Replace dots with underscores for nested keys in env vars
	// e.g., COLONY_AGENT_ID for agent.id
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		// A missing default config file is fine; an explicit one must load.
		if cfgFile != "" {
			return errors.NewValidationError("cannot read config file").WithField("config").WithValue(cfgFile).WithCause(err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errors.NewValidationError("cannot parse config file").WithField("config").WithCause(err)
		}
	}

	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		viper.Set("output.color", false)
	}
	return nil
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	return Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}

// Run executes args against a fresh command tree. Failures are printed to
// stderr as "error: <Kind>: <message>" and mapped to an exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	// cobra reports unknown commands as plain errors; treat them as usage errors.
	if errors.Kind(err) == errors.KindInternal && strings.HasPrefix(err.Error(), "unknown command") {
		err = errors.NewValidationError(err.Error()).WithField("command")
	}
	_, _ = fmt.Fprintf(stderr, "error: %s: %s\n", errors.Kind(err), err.Error())
	return errors.ExitCode(err)
}
