package messages

import (
	"github.com/mcfearsome/cc-colony-sub001/internal/cmd/cmdutil"
	"github.com/mcfearsome/cc-colony-sub001/internal/cmd/output"
	"github.com/mcfearsome/cc-colony-sub001/internal/mailbox"
	"github.com/spf13/cobra"
)

// senderFlags are shared by every command that writes a message.
type senderFlags struct {
	msgType string
}

func (f *senderFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.msgType, "type", "info", "Message type: info, task, question, answer, completed, error")
	cmd.Flags().String("from", "", "Sending agent id (default from COLONY_AGENT_ID)")
	cmd.Flags().String("project-dir", "", "Project directory attached as context (default: working directory)")
	cmd.Flags().String("git-branch", "", "Git branch attached as context (default: current branch)")
}

// send validates the shared flags and writes one message to recipient.
func (f *senderFlags) send(cmd *cobra.Command, app *cmdutil.App, recipient, content string) (mailbox.Message, error) {
	from, err := cmdutil.SenderID(cmd)
	if err != nil {
		return mailbox.Message{}, err
	}
	t, err := mailbox.ParseMessageType(f.msgType)
	if err != nil {
		return mailbox.Message{}, err
	}
	ctx := cmdutil.MessageContext(cmd)

	if recipient == mailbox.BroadcastRecipient {
		return app.Facade.Broadcast(from, content, t, ctx)
	}
	return app.Facade.SendMessage(from, recipient, content, t, ctx)
}

func newSendCmd() *cobra.Command {
	var flags senderFlags

	cmd := &cobra.Command{
		Use:   "send <to> <content>",
		Short: "Send a message to an agent",
		Long: `Send a message to one agent's mailbox. Use "all" as the recipient to
broadcast.`,
		Example: `  COLONY_AGENT_ID=agent-a colony messages send agent-b "parser is ready" --type completed
  colony messages send agent-a "which lexer?" --type question --from agent-b`,
		Args: cmdutil.ExactArgs(2),
		RunE: cmdutil.RunE(func(cmd *cobra.Command, args []string, app *cmdutil.App, out *output.Printer) error {
			msg, err := flags.send(cmd, app, args[0], args[1])
			if err != nil {
				return err
			}
			if out.Structured() {
				return out.Message(msg)
			}
			out.Successf("Sent %s to %s (%s)", msg.ID, msg.To, msg.Type)
			return nil
		}),
	}
	flags.register(cmd)
	return cmd
}

func newBroadcastCmd() *cobra.Command {
	var flags senderFlags

	cmd := &cobra.Command{
		Use:   "broadcast <content>",
		Short: "Send a message to every agent",
		Args:  cmdutil.ExactArgs(1),
		RunE: cmdutil.RunE(func(cmd *cobra.Command, args []string, app *cmdutil.App, out *output.Printer) error {
			msg, err := flags.send(cmd, app, mailbox.BroadcastRecipient, args[0])
			if err != nil {
				return err
			}
			if out.Structured() {
				return out.Message(msg)
			}
			out.Successf("Broadcast %s (%s)", msg.ID, msg.Type)
			return nil
		}),
	}
	flags.register(cmd)
	return cmd
}
