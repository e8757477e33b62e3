// Package tasks provides the `colony tasks` command group: creating tasks,
// moving them through their lifecycle, and querying the shared queue.
package tasks

import "github.com/spf13/cobra"

// Register adds the tasks command group to the given parent command.
func Register(parent *cobra.Command) {
	parent.AddCommand(NewCmd())
}

// NewCmd builds the tasks command group.
func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Create, claim and track shared tasks",
		Long: `Manage the task queue shared by every agent using this coordination root.

A task moves through pending → claimed → in_progress → completed, may be
blocked and unblocked while owned, and may be cancelled at any time before
it finishes. Only one agent can ever win a claim.`,
	}
	cmd.PersistentFlags().StringP("output", "o", "", "Output format: table, json, yaml (default from output.format)")

	cmd.AddCommand(
		newCreateCmd(),
		newClaimCmd(),
		newStartCmd(),
		newProgressCmd(),
		newBlockCmd(),
		newUnblockCmd(),
		newCompleteCmd(),
		newCancelCmd(),
		newDeleteCmd(),
		newListCmd(),
		newShowCmd(),
		newAgentCmd(),
		newClaimableCmd(),
		newStatusCmd(),
	)
	return cmd
}
