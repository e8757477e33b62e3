package tasks

import (
	"github.com/mcfearsome/cc-colony-sub001/internal/cmd/cmdutil"
	"github.com/mcfearsome/cc-colony-sub001/internal/cmd/output"
	"github.com/mcfearsome/cc-colony-sub001/internal/taskqueue"
	"github.com/spf13/cobra"
)

func newCreateCmd() *cobra.Command {
	var (
		assignedTo string
		priority   string
		dependsOn  string
	)

	cmd := &cobra.Command{
		Use:   "create <id> <title> <description>",
		Short: "Create a pending task",
		Long: `Create a new pending task.

Every dependency must already exist and the new task must not close a
dependency cycle. --assigned-to restricts claiming to one agent; "auto" or
no value lets any agent claim it.`,
		Example: `  colony tasks create parser "Write parser" "Tokenize and parse input"
  colony tasks create codegen "Generate code" "Emit Go" --depends-on parser --priority high`,
		Args: cmdutil.ExactArgs(3),
		RunE: cmdutil.RunE(func(cmd *cobra.Command, args []string, app *cmdutil.App, out *output.Printer) error {
			task, err := app.Facade.CreateTask(taskqueue.NewTask{
				ID:           args[0],
				Title:        args[1],
				Description:  args[2],
				Priority:     taskqueue.Priority(priority),
				AssignedTo:   assignedTo,
				Dependencies: cmdutil.SplitList(dependsOn),
			})
			if err != nil {
				return err
			}
			if out.Structured() {
				return out.Task(task)
			}
			out.Successf("Created task %s (%s)", task.ID, task.Priority)
			return nil
		}),
	}

	cmd.Flags().StringVar(&assignedTo, "assigned-to", "", "Only this agent may claim the task (\"auto\" for anyone)")
	cmd.Flags().StringVar(&priority, "priority", "medium", "Priority: low, medium, high, critical")
	cmd.Flags().StringVar(&dependsOn, "depends-on", "", "Comma separated ids of tasks that must complete first")
	return cmd
}
