package cmdutil

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mcfearsome/cc-colony-sub001/internal/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ExactArgs is cobra.ExactArgs reported as a validation error so a wrong
// argument count exits with the usage code.
func ExactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return errors.NewValidationError(
				fmt.Sprintf("accepts %d arg(s), received %d (usage: %s)", n, len(args), cmd.UseLine()),
			).WithField("args")
		}
		return nil
	}
}

// NoArgs rejects any positional argument.
func NoArgs(cmd *cobra.Command, args []string) error {
	return ExactArgs(0)(cmd, args)
}

// FlagError converts a pflag parse failure into a validation error.
func FlagError(cmd *cobra.Command, err error) error {
	return errors.NewValidationError(err.Error()).WithField("flags")
}

// ParsePercent parses a progress argument in the range 0..100.
func ParsePercent(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if err != nil {
		return 0, errors.NewValidationError("progress must be an integer").WithField("progress").WithValue(s)
	}
	return n, nil
}

// SplitList splits a comma separated flag value, dropping empty items.
func SplitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// StringFlagOrConfig returns the named flag when it was set on the command
// line, otherwise the viper value for key (config file or COLONY_* env).
func StringFlagOrConfig(cmd *cobra.Command, flag, key string) string {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		return f.Value.String()
	}
	return viper.GetString(key)
}

// SenderID returns the acting agent id from --from or agent.id. It is
// never inferred from the process.
func SenderID(cmd *cobra.Command) (string, error) {
	id := strings.TrimSpace(StringFlagOrConfig(cmd, "from", "agent.id"))
	if id == "" {
		return "", errors.NewValidationError("sender agent id is required (use --from or COLONY_AGENT_ID)").
			WithField("from")
	}
	return id, nil
}
