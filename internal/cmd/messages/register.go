// Package messages provides the `colony messages` command group: sending
// direct and broadcast messages and reading agent mailboxes.
package messages

import (
	"github.com/spf13/cobra"
)

// Register adds the messages command group to the given parent command.
func Register(parent *cobra.Command) {
	parent.AddCommand(NewCmd())
}

// NewCmd builds the messages command group.
func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Send and read agent messages",
		Long: `Exchange messages between agents sharing this coordination root.

Each agent has a mailbox; messages sent to "all" land in the broadcast
mailbox every agent reads. Reading never removes anything, so a message can
be read any number of times by any number of agents.

The sender is taken from --from or COLONY_AGENT_ID.`,
	}
	cmd.PersistentFlags().StringP("output", "o", "", "Output format: table, json, yaml (default from output.format)")

	cmd.AddCommand(
		newSendCmd(),
		newBroadcastCmd(),
		newListCmd(),
		newAllCmd(),
		newWatchCmd(),
	)
	return cmd
}
