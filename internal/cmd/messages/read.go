package messages

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcfearsome/cc-colony-sub001/internal/cmd/cmdutil"
	"github.com/mcfearsome/cc-colony-sub001/internal/cmd/output"
	"github.com/mcfearsome/cc-colony-sub001/internal/errors"
	"github.com/mcfearsome/cc-colony-sub001/internal/mailbox"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var (
		since  string
		prompt bool
		types  string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list <agent>",
		Short: "Read an agent's messages",
		Long: `Read the messages visible to an agent: its own mailbox plus every
broadcast, oldest first. Reading does not consume anything.

--since takes the id of the last message already seen and shows only what
came after it. --prompt renders the result as a block suitable for pasting
into an agent's context.`,
		Args: cmdutil.ExactArgs(1),
		RunE: cmdutil.RunE(func(cmd *cobra.Command, args []string, app *cmdutil.App, out *output.Printer) error {
			var (
				msgs []mailbox.Message
				err  error
			)
			if since != "" {
				msgs, err = app.Facade.ReadMessagesSince(args[0], since)
			} else {
				msgs, err = app.Facade.ReadMessages(args[0])
			}
			if err != nil {
				return err
			}

			opts := mailbox.FilterOptions{MaxMessages: limit}
			for _, name := range cmdutil.SplitList(types) {
				t, err := mailbox.ParseMessageType(name)
				if err != nil {
					return err
				}
				opts.Types = append(opts.Types, t)
			}
			msgs = mailbox.Filter(msgs, opts)

			if prompt {
				_, err := fmt.Fprint(cmd.OutOrStdout(), mailbox.FormatForPrompt(msgs))
				return err
			}
			return out.Messages(msgs)
		}),
	}

	cmd.Flags().StringVar(&since, "since", "", "Only messages after this message id")
	cmd.Flags().BoolVar(&prompt, "prompt", false, "Render as a prompt block")
	cmd.Flags().StringVar(&types, "type", "", "Only these message types (comma separated)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many of the most recent messages (0 for all)")
	return cmd
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Read every message in every mailbox",
		Args:  cmdutil.ExactArgs(0),
		RunE: cmdutil.RunE(func(cmd *cobra.Command, args []string, app *cmdutil.App, out *output.Printer) error {
			msgs, err := app.Facade.ReadAllMessages()
			if err != nil {
				return err
			}
			return out.Messages(msgs)
		}),
	}
}

func newWatchCmd() *cobra.Command {
	var (
		interval time.Duration
		existing bool
	)

	cmd := &cobra.Command{
		Use:   "watch <agent>",
		Short: "Stream new messages for an agent",
		Long: `Print messages for an agent as they arrive, until interrupted.

Only messages that arrive after the watch starts are printed unless
--existing is given. The mailbox is re-read every --interval, and sooner on
the file backend when the coordination root changes.`,
		Args: cmdutil.ExactArgs(1),
		RunE: cmdutil.RunE(func(cmd *cobra.Command, args []string, app *cmdutil.App, out *output.Printer) error {
			if !cmd.Flags().Changed("interval") {
				interval = app.Config.Watch.Interval
			}
			if interval <= 0 {
				return errors.NewValidationError("interval must be positive").WithField("interval").WithValue(interval)
			}

			var opts []mailbox.WatchOption
			if existing {
				opts = append(opts, mailbox.IncludeExisting())
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err := app.Facade.WatchMessages(ctx, args[0], interval, func(msg mailbox.Message) {
				_ = out.Message(msg)
			}, opts...)
			if ctx.Err() != nil {
				return nil
			}
			return err
		}),
	}

	cmd.Flags().DurationVar(&interval, "interval", mailbox.DefaultPollInterval, "Poll interval (default from watch.interval)")
	cmd.Flags().BoolVar(&existing, "existing", false, "Print messages already in the mailbox first")
	return cmd
}
