package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mcfearsome/cc-colony-sub001/internal/mailbox"
	"github.com/mcfearsome/cc-colony-sub001/internal/taskqueue"
)

// timeLayout is used for timestamps in human output.
const timeLayout = "2006-01-02 15:04:05"

// Tasks prints a task list. Structured formats always emit a list, even
// when it is empty.
func (p *Printer) Tasks(tasks []*taskqueue.Task) error {
	if p.Structured() {
		if tasks == nil {
			tasks = []*taskqueue.Task{}
		}
		return p.Value(tasks)
	}
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(p.w, p.styles.render(p.styles.muted, "No tasks."))
		return err
	}

	headers := []string{"ID", "STATUS", "PRIORITY", "PROGRESS", "OWNER", "DEPENDS ON", "TITLE"}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		owner := t.ClaimedBy
		if owner == "" && t.AssignedTo != "" {
			owner = "(" + t.AssignedTo + ")"
		}
		rows = append(rows, []string{
			t.ID,
			t.Status.String(),
			string(t.Priority),
			fmt.Sprintf("%d%%", t.Progress),
			dash(owner),
			dash(strings.Join(t.Dependencies, ",")),
			oneLine(t.Title),
		})
	}

	return p.table(headers, rows, func(r, c int, cell string) string {
		switch c {
		case 1:
			return p.styles.render(p.styles.forStatus(tasks[r].Status), cell)
		case 2:
			return p.styles.render(p.styles.forPriority(tasks[r].Priority), cell)
		}
		return cell
	})
}

// Task prints one task in full.
func (p *Printer) Task(t *taskqueue.Task) error {
	if p.Structured() {
		return p.Value(t)
	}

	var sb strings.Builder
	field := func(name, value string) {
		if value == "" {
			return
		}
		sb.WriteString(p.styles.render(p.styles.label, fmt.Sprintf("%-13s", name+":")))
		sb.WriteString(" ")
		sb.WriteString(value)
		sb.WriteString("\n")
	}

	field("ID", t.ID)
	field("Title", t.Title)
	field("Status", p.styles.render(p.styles.forStatus(t.Status), t.Status.String()))
	field("Priority", string(t.Priority))
	field("Progress", fmt.Sprintf("%d%%", t.Progress))
	field("Assigned to", t.AssignedTo)
	field("Claimed by", t.ClaimedBy)
	field("Depends on", strings.Join(t.Dependencies, ", "))
	field("Blocked", t.BlockedReason)
	field("Created", formatTime(&t.CreatedAt))
	field("Claimed", formatTime(t.ClaimedAt))
	field("Started", formatTime(t.StartedAt))
	field("Completed", formatTime(t.CompletedAt))
	field("Updated", formatTime(&t.UpdatedAt))
	if t.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(t.Description)
		sb.WriteString("\n")
	}

	_, err := io.WriteString(p.w, sb.String())
	return err
}

// Status prints queue counts.
func (p *Printer) Status(s taskqueue.QueueStatus) error {
	if p.Structured() {
		return p.Value(s)
	}
	headers := []string{"TOTAL", "PENDING", "CLAIMABLE", "CLAIMED", "IN PROGRESS", "BLOCKED", "COMPLETED", "CANCELLED"}
	row := []string{
		fmt.Sprint(s.Total), fmt.Sprint(s.Pending), fmt.Sprint(s.Claimable), fmt.Sprint(s.Claimed),
		fmt.Sprint(s.InProgress), fmt.Sprint(s.Blocked), fmt.Sprint(s.Completed), fmt.Sprint(s.Cancelled),
	}
	return p.table(headers, [][]string{row}, nil)
}

// Messages prints messages in the order given.
func (p *Printer) Messages(msgs []mailbox.Message) error {
	if p.Structured() {
		if msgs == nil {
			msgs = []mailbox.Message{}
		}
		return p.Value(msgs)
	}
	if len(msgs) == 0 {
		_, err := fmt.Fprintln(p.w, p.styles.render(p.styles.muted, "No messages."))
		return err
	}
	for _, m := range msgs {
		if err := p.Message(m); err != nil {
			return err
		}
	}
	return nil
}

// Message prints a single message. Structured formats emit one JSON
// document per call (or one YAML document), which suits streaming.
func (p *Printer) Message(m mailbox.Message) error {
	if p.Structured() {
		return p.Value(m)
	}

	to := m.To
	if m.IsBroadcast() {
		to = "everyone"
	}
	header := fmt.Sprintf("[%s] %s → %s",
		m.Timestamp.Local().Format(timeLayout), m.From, to)
	kind := p.styles.render(p.styles.forMessage(m.Type), "("+m.Type.String()+")")

	_, err := fmt.Fprintf(p.w, "%s %s %s\n  %s\n",
		p.styles.render(p.styles.label, header), kind,
		p.styles.render(p.styles.muted, m.ID), indent(m.Content))
	return err
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Local().Format(timeLayout)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func indent(s string) string {
	return strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n  ")
}
