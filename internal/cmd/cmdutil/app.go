// Package cmdutil holds what every colony command needs: the loaded
// configuration, an open coordination root, and argument helpers that
// report problems as validation errors.
package cmdutil

import (
	"os"
	"path/filepath"

	"github.com/mcfearsome/cc-colony-sub001/internal/cmd/output"
	"github.com/mcfearsome/cc-colony-sub001/internal/config"
	"github.com/mcfearsome/cc-colony-sub001/internal/coordination"
	"github.com/mcfearsome/cc-colony-sub001/internal/errors"
	"github.com/mcfearsome/cc-colony-sub001/internal/event"
	"github.com/mcfearsome/cc-colony-sub001/internal/logging"
	"github.com/mcfearsome/cc-colony-sub001/internal/recordstore"
	"github.com/mcfearsome/cc-colony-sub001/internal/taskqueue"
	"github.com/spf13/cobra"
)

// LogDir is the directory under the coordination root that holds colony.log.
// It is kept apart from the file backend's logs/ tree, which watchers observe.
const LogDir = "diagnostics"

// App is one command invocation's view of the coordination root.
type App struct {
	Config *config.Config
	Root   string
	Store  recordstore.Store
	Bus    *event.Bus
	Logger *logging.Logger
	Facade *coordination.Facade
}

// LoadConfig reads the viper state into a validated Config.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.NewValidationError("invalid configuration").WithField("config").WithCause(err)
	}
	return cfg, nil
}

// ResolveRoot returns the absolute coordination root for cfg.
func ResolveRoot(cfg *config.Config) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, "failed to determine working directory")
	}
	return cfg.Store.ResolveRoot(cwd), nil
}

// Open loads configuration and opens the coordination root. The caller
// must Close the returned App.
func Open(cmd *cobra.Command) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	root, err := ResolveRoot(cfg)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg, root)
	if err != nil {
		return nil, err
	}

	store, err := recordstore.Open(cfg.Store.Backend, root,
		recordstore.WithLogger(logger.WithComponent("recordstore")),
		recordstore.WithBusyTimeout(cfg.Store.SQLiteBusyTimeout()),
	)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	bus := event.NewBus()
	coordination.LogEvents(bus, logger)

	facade, err := coordination.New(
		coordination.Config{Store: store, Bus: bus, Logger: logger},
		coordination.WithQueueOptions(
			taskqueue.WithMaxRetries(cfg.Claim.MaxRetries),
			taskqueue.WithBackoff(taskqueue.ExponentialBackoff(cfg.Claim.BackoffBase(), cfg.Claim.BackoffMax())),
		),
	)
	if err != nil {
		_ = store.Close()
		_ = logger.Close()
		return nil, err
	}

	logger.WithComponent("cli").Debug("command started",
		"command", cmd.CommandPath(),
		"root", root,
		"backend", cfg.Store.Backend,
	)

	return &App{
		Config: cfg,
		Root:   root,
		Store:  store,
		Bus:    bus,
		Logger: logger,
		Facade: facade,
	}, nil
}

// newLogger opens <root>/diagnostics/colony.log when logging is enabled.
func newLogger(cfg *config.Config, root string) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}
	logger, err := logging.NewLoggerWithRotation(
		filepath.Join(root, LogDir),
		logging.ParseLevel(cfg.Logging.Level),
		logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		},
	)
	if err != nil {
		return nil, errors.NewStoreError("failed to open log file", err).WithPath(filepath.Join(root, LogDir))
	}
	return logger, nil
}

// Close releases the store and the log file.
func (a *App) Close() error {
	a.Bus.Clear()
	err := a.Store.Close()
	if cerr := a.Logger.Close(); err == nil {
		err = cerr
	}
	return err
}

// NewPrinter returns a printer for cmd's output. The -o flag, when the
// command has one and it was set, overrides output.format.
func NewPrinter(cmd *cobra.Command, cfg *config.Config) (*output.Printer, error) {
	format := cfg.Output.Format
	if f := cmd.Flags().Lookup("output"); f != nil && f.Changed {
		format = f.Value.String()
	}
	return output.New(cmd.OutOrStdout(), format, cfg.Output.Color)
}

// Printer is NewPrinter bound to the App's configuration.
func (a *App) Printer(cmd *cobra.Command) (*output.Printer, error) {
	return NewPrinter(cmd, a.Config)
}

// RunFunc is a command body that runs against an open App.
type RunFunc func(cmd *cobra.Command, args []string, app *App, out *output.Printer) error

// RunE adapts fn to cobra. The coordination root is opened before fn runs
// and closed after it returns.
func RunE(fn RunFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		app, err := Open(cmd)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := app.Close(); err == nil {
				err = cerr
			}
		}()

		out, err := app.Printer(cmd)
		if err != nil {
			return err
		}
		return fn(cmd, args, app, out)
	}
}
