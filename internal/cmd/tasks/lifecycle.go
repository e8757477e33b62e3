package tasks

import (
	"strings"

	"github.com/mcfearsome/cc-colony-sub001/internal/cmd/cmdutil"
	"github.com/mcfearsome/cc-colony-sub001/internal/cmd/output"
	"github.com/mcfearsome/cc-colony-sub001/internal/taskqueue"
	"github.com/spf13/cobra"
)

// report prints the task in structured modes and a one-line confirmation
// otherwise.
func report(out *output.Printer, task *taskqueue.Task, format string, args ...any) error {
	if out.Structured() {
		return out.Task(task)
	}
	out.Successf(format, args...)
	return nil
}

func newClaimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim <id> <agent>",
		Short: "Claim a pending task for an agent",
		Long: `Claim a pending task whose dependencies are all completed.

When several agents claim the same task at once exactly one succeeds; the
others fail with Conflict and the winner's id.`,
		Args: cmdutil.ExactArgs(2),
		RunE: cmdutil.RunE(func(cmd *cobra.Command, args []string, app *cmdutil.App, out *output.Printer) error {
			task, err := app.Facade.ClaimTask(args[0], args[1])
			if err != nil {
				return err
			}
			return report(out, task, "Claimed %s for %s", task.ID, task.ClaimedBy)
		}),
	}
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <id>",
		Short: "Mark a claimed task as in progress",
		Args:  cmdutil.ExactArgs(1),
		RunE: cmdutil.RunE(func(cmd *cobra.Command, args []string, app *cmdutil.App, out *output.Printer) error {
			task, err := app.Facade.StartTask(args[0])
			if err != nil {
				return err
			}
			return report(out, task, "Started %s", task.ID)
		}),
	}
}

func newProgressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress <id> <0-100>",
		Short: "Record progress on a task",
		Long: `Record progress as a percentage between 0 and 100.

The task must be in_progress; run "colony tasks start" after claiming it.`,
		Args: cmdutil.ExactArgs(2),
		RunE: cmdutil.RunE(func(cmd *cobra.Command, args []string, app *cmdutil.App, out *output.Printer) error {
			percent, err := cmdutil.ParsePercent(args[1])
			if err != nil {
				return err
			}
			task, err := app.Facade.UpdateProgress(args[0], percent)
			if err != nil {
				return err
			}
			return report(out, task, "%s is %d%% done", task.ID, task.Progress)
		}),
	}
}

func newBlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "block <id> <reason>",
		Short: "Pause an owned task with a reason",
		Args:  cmdutil.ExactArgs(2),
		RunE: cmdutil.RunE(func(cmd *cobra.Command, args []string, app *cmdutil.App, out *output.Printer) error {
			task, err := app.Facade.BlockTask(args[0], args[1])
			if err != nil {
				return err
			}
			return report(out, task, "Blocked %s: %s", task.ID, task.BlockedReason)
		}),
	}
}

func newUnblockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unblock <id>",
		Short: "Resume a blocked task",
		Long: `Resume a blocked task. It returns to in_progress if work had started
and to claimed otherwise.`,
		Args: cmdutil.ExactArgs(1),
		RunE: cmdutil.RunE(func(cmd *cobra.Command, args []string, app *cmdutil.App, out *output.Printer) error {
			task, err := app.Facade.UnblockTask(args[0])
			if err != nil {
				return err
			}
			return report(out, task, "Unblocked %s (now %s)", task.ID, task.Status)
		}),
	}
}

func newCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark a task as completed",
		Long: `Mark a claimed or in-progress task as completed. Tasks that were waiting
only on this one become claimable and are listed.`,
		Args: cmdutil.ExactArgs(1),
		RunE: cmdutil.RunE(func(cmd *cobra.Command, args []string, app *cmdutil.App, out *output.Printer) error {
			task, unblocked, err := app.Facade.CompleteTask(args[0])
			if err != nil {
				return err
			}
			if out.Structured() {
				return out.Value(struct {
					Task      *taskqueue.Task `json:"task" yaml:"task"`
					Unblocked []string        `json:"unblocked" yaml:"unblocked"`
				}{task, nonNil(unblocked)})
			}
			out.Successf("Completed %s", task.ID)
			if len(unblocked) > 0 {
				out.Linef("Now claimable: %s", strings.Join(unblocked, ", "))
			}
			return nil
		}),
	}
}

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Abandon a task that has not finished",
		Args:  cmdutil.ExactArgs(1),
		RunE: cmdutil.RunE(func(cmd *cobra.Command, args []string, app *cmdutil.App, out *output.Printer) error {
			task, err := app.Facade.CancelTask(args[0])
			if err != nil {
				return err
			}
			return report(out, task, "Cancelled %s", task.ID)
		}),
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a task record",
		Long: `Remove a task record in any state.

Tasks that depend on the deleted task can never be claimed afterwards.`,
		Args: cmdutil.ExactArgs(1),
		RunE: cmdutil.RunE(func(cmd *cobra.Command, args []string, app *cmdutil.App, out *output.Printer) error {
			task, err := app.Facade.DeleteTask(args[0])
			if err != nil {
				return err
			}
			return report(out, task, "Deleted %s", task.ID)
		}),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
