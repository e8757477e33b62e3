package tasks

import (
	"github.com/mcfearsome/cc-colony-sub001/internal/cmd/cmdutil"
	"github.com/mcfearsome/cc-colony-sub001/internal/cmd/output"
	"github.com/mcfearsome/cc-colony-sub001/internal/taskqueue"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var (
		statuses   string
		match      string
		assignedTo string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Long: `List tasks ordered by priority (critical first), then creation time.

--status takes one or more comma separated states. --match filters ids with
a glob pattern such as "auth-*" or "{parser,lexer}".`,
		Example: `  colony tasks list
  colony tasks list --status pending,blocked
  colony tasks list --match 'api-*' -o json`,
		Args: cmdutil.NoArgs,
		RunE: cmdutil.RunE(func(cmd *cobra.Command, args []string, app *cmdutil.App, out *output.Printer) error {
			filter := taskqueue.Filter{Match: match, AssignedTo: assignedTo}
			for _, s := range cmdutil.SplitList(statuses) {
				status, err := taskqueue.ParseStatus(s)
				if err != nil {
					return err
				}
				filter.Statuses = append(filter.Statuses, status)
			}

			tasks, err := app.Facade.ListTasks(filter)
			if err != nil {
				return err
			}
			return out.Tasks(tasks)
		}),
	}

	cmd.Flags().StringVar(&statuses, "status", "", "Only tasks in these states (comma separated)")
	cmd.Flags().StringVar(&match, "match", "", "Only task ids matching this glob")
	cmd.Flags().StringVar(&assignedTo, "assigned-to", "", "Only tasks assigned to this agent")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task in full",
		Args:  cmdutil.ExactArgs(1),
		RunE: cmdutil.RunE(func(cmd *cobra.Command, args []string, app *cmdutil.App, out *output.Printer) error {
			task, err := app.Facade.GetTask(args[0])
			if err != nil {
				return err
			}
			return out.Task(task)
		}),
	}
}

func newAgentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agent <agent>",
		Short: "List tasks claimed by an agent",
		Args:  cmdutil.ExactArgs(1),
		RunE: cmdutil.RunE(func(cmd *cobra.Command, args []string, app *cmdutil.App, out *output.Printer) error {
			tasks, err := app.Facade.TasksForAgent(args[0])
			if err != nil {
				return err
			}
			return out.Tasks(tasks)
		}),
	}
}

func newClaimableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claimable <agent>",
		Short: "List tasks an agent could claim right now",
		Args:  cmdutil.ExactArgs(1),
		RunE: cmdutil.RunE(func(cmd *cobra.Command, args []string, app *cmdutil.App, out *output.Printer) error {
			tasks, err := app.Facade.ClaimableTasks(args[0])
			if err != nil {
				return err
			}
			return out.Tasks(tasks)
		}),
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show task counts by state",
		Args:  cmdutil.NoArgs,
		RunE: cmdutil.RunE(func(cmd *cobra.Command, args []string, app *cmdutil.App, out *output.Printer) error {
			status, err := app.Facade.QueueStatus()
			if err != nil {
				return err
			}
			return out.Status(status)
		}),
	}
}
