package mailbox

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// FormatForPrompt formats messages into a plain-text block an agent can
// paste into its own context. Messages are grouped by type in order of
// first appearance; within a group they keep their input order.
//
// Returns an empty string if there are no messages.
func FormatForPrompt(messages []Message) string {
	if len(messages) == 0 {
		return ""
	}

	groups := make(map[MessageType][]Message)
	var typeOrder []MessageType
	for _, msg := range messages {
		if _, exists := groups[msg.Type]; !exists {
			typeOrder = append(typeOrder, msg.Type)
		}
		groups[msg.Type] = append(groups[msg.Type], msg)
	}

	var b strings.Builder
	b.WriteString("<colony-messages>\n")

	for i, mt := range typeOrder {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%s]\n", strings.ToUpper(mt.String()))
		for _, msg := range groups[mt] {
			to := msg.To
			if msg.IsBroadcast() {
				to = "everyone"
			}
			fmt.Fprintf(&b, "  From: %s  To: %s  At: %s\n", msg.From, to, msg.Timestamp.UTC().Format(time.RFC3339))
			if msg.Context.GitBranch != "" || msg.Context.ProjectDir != "" {
				fmt.Fprintf(&b, "  Context: %s\n", formatContext(msg.Context))
			}
			fmt.Fprintf(&b, "  %s\n", msg.Content)
			b.WriteString("\n")
		}
	}

	b.WriteString("</colony-messages>")
	return b.String()
}

func formatContext(c Context) string {
	var parts []string
	if c.ProjectDir != "" {
		parts = append(parts, "dir="+c.ProjectDir)
	}
	if c.GitBranch != "" {
		parts = append(parts, "branch="+c.GitBranch)
	}
	return strings.Join(parts, ", ")
}

// FilterOptions controls which messages Filter keeps.
type FilterOptions struct {
	Types       []MessageType // Only include these types (empty = all)
	Since       time.Time     // Only messages after this time (zero = all)
	From        string        // Only messages from this sender (empty = all)
	MaxMessages int           // Maximum messages to include (0 = unlimited)
}

// FormatFiltered applies filters to messages and formats the result using
// FormatForPrompt.
func FormatFiltered(messages []Message, opts FilterOptions) string {
	return FormatForPrompt(Filter(messages, opts))
}

// Filter returns the subset of messages matching opts. Filters are applied
// in order: type, since, from, then max messages (keeping the most recent).
func Filter(messages []Message, opts FilterOptions) []Message {
	var result []Message
	for _, msg := range messages {
		if len(opts.Types) > 0 && !slices.Contains(opts.Types, msg.Type) {
			continue
		}
		if !opts.Since.IsZero() && !msg.Timestamp.After(opts.Since) {
			continue
		}
		if opts.From != "" && msg.From != opts.From {
			continue
		}
		result = append(result, msg)
	}

	if opts.MaxMessages > 0 && len(result) > opts.MaxMessages {
		result = result[len(result)-opts.MaxMessages:]
	}
	return result
}
