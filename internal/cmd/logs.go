package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mcfearsome/cc-colony-sub001/internal/cmd/cmdutil"
	"github.com/mcfearsome/cc-colony-sub001/internal/errors"
	"github.com/mcfearsome/cc-colony-sub001/internal/logging"
	"github.com/spf13/cobra"
)

func newLogsCmd() *cobra.Command {
	var (
		tail      int
		level     string
		since     string
		agent     string
		task      string
		component string
		grep      string
		format    string
		export    string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View the coordination log",
		Long: `View and filter the structured log every colony process writes to
<root>/diagnostics/colony.log, including rotated and compressed backups.

Examples:
  # Show the last 50 entries
  colony logs

  # Everything agent-a did, as JSON
  colony logs --agent agent-a -n 0 --format json

  # Warnings and errors from the last hour
  colony logs --level warn --since 1h

  # Export task T1's history to CSV
  colony logs --task T1 -n 0 --format csv --export t1.csv`,
		Args: cmdutil.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdutil.LoadConfig()
			if err != nil {
				return err
			}
			root, err := cmdutil.ResolveRoot(cfg)
			if err != nil {
				return err
			}
			logDir := filepath.Join(root, cmdutil.LogDir)

			filter := logging.LogFilter{
				AgentID:         agent,
				TaskID:          task,
				Component:       component,
				MessageContains: grep,
			}
			if level != "" {
				filter.Level = logging.ParseLevel(level)
			}
			if since != "" {
				d, err := time.ParseDuration(since)
				if err != nil {
					return errors.NewValidationError("invalid duration format").WithField("since").WithValue(since)
				}
				filter.StartTime = time.Now().Add(-d)
			}

			entries, err := logging.AggregateLogs(logDir)
			if errors.Is(err, os.ErrNotExist) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "No logs found.\nLogs are stored at: %s\n", filepath.Join(logDir, logging.LogFileName))
				return nil
			}
			if err != nil {
				return errors.NewStoreError("failed to read logs", err).WithPath(logDir)
			}

			entries = logging.FilterLogs(entries, filter)
			if tail > 0 && len(entries) > tail {
				entries = entries[len(entries)-tail:]
			}

			if export != "" {
				if err := logging.ExportLogEntries(entries, export, format); err != nil {
					return errors.NewValidationError("export failed").WithField("export").WithValue(export).WithCause(err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Exported %d entries to %s\n", len(entries), export)
				return nil
			}

			if len(entries) == 0 && format == "text" {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No matching log entries found.")
				return nil
			}
			if err := logging.WriteLogEntries(cmd.OutOrStdout(), entries, format); err != nil {
				return errors.NewValidationError("cannot write logs").WithField("format").WithValue(format).WithCause(err)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&tail, "tail", "n", 50, "Number of entries to show (0 for all)")
	cmd.Flags().StringVar(&level, "level", "", "Filter by minimum level (debug/info/warn/error)")
	cmd.Flags().StringVar(&since, "since", "", "Show entries since duration ago (e.g., 1h, 30m)")
	cmd.Flags().StringVar(&agent, "agent", "", "Only entries for this agent")
	cmd.Flags().StringVar(&task, "task", "", "Only entries for this task")
	cmd.Flags().StringVar(&component, "component", "", "Only entries from this component (taskqueue, mailbox, recordstore, events, cli)")
	cmd.Flags().StringVar(&grep, "grep", "", "Only entries whose message contains this text")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json, csv")
	cmd.Flags().StringVar(&export, "export", "", "Write entries to this file instead of stdout")
	return cmd
}
