package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/mcfearsome/cc-colony-sub001/internal/mailbox"
	"github.com/mcfearsome/cc-colony-sub001/internal/taskqueue"
)

// Palette for status badges and message headers.
var (
	colorMuted   = lipgloss.Color("#6B7280")
	colorBlue    = lipgloss.Color("#60A5FA")
	colorYellow  = lipgloss.Color("#FBBF24")
	colorRed     = lipgloss.Color("#F87171")
	colorGreen   = lipgloss.Color("#34D399")
	colorPurple  = lipgloss.Color("#A78BFA")
	colorPrimary = lipgloss.Color("#7C3AED")
)

type styles struct {
	enabled bool

	header  lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	label   lipgloss.Style

	status   map[taskqueue.TaskStatus]lipgloss.Style
	priority map[taskqueue.Priority]lipgloss.Style
	message  map[mailbox.MessageType]lipgloss.Style
}

// newStyles builds styles bound to w. With enabled false every style is
// the zero style, which renders text unchanged.
func newStyles(w io.Writer, enabled bool) styles {
	s := styles{
		enabled:  enabled,
		status:   map[taskqueue.TaskStatus]lipgloss.Style{},
		priority: map[taskqueue.Priority]lipgloss.Style{},
		message:  map[mailbox.MessageType]lipgloss.Style{},
	}
	if !enabled {
		return s
	}

	r := lipgloss.NewRenderer(w)
	s.header = r.NewStyle().Bold(true).Foreground(colorPrimary)
	s.muted = r.NewStyle().Foreground(colorMuted)
	s.success = r.NewStyle().Foreground(colorGreen)
	s.label = r.NewStyle().Bold(true)

	s.status[taskqueue.TaskPending] = r.NewStyle().Foreground(colorMuted)
	s.status[taskqueue.TaskClaimed] = r.NewStyle().Foreground(colorBlue)
	s.status[taskqueue.TaskInProgress] = r.NewStyle().Foreground(colorYellow)
	s.status[taskqueue.TaskBlocked] = r.NewStyle().Foreground(colorRed).Bold(true)
	s.status[taskqueue.TaskCompleted] = r.NewStyle().Foreground(colorGreen)
	s.status[taskqueue.TaskCancelled] = r.NewStyle().Foreground(colorMuted).Strikethrough(true)

	s.priority[taskqueue.PriorityCritical] = r.NewStyle().Foreground(colorRed).Bold(true)
	s.priority[taskqueue.PriorityHigh] = r.NewStyle().Foreground(colorYellow)
	s.priority[taskqueue.PriorityLow] = r.NewStyle().Foreground(colorMuted)

	s.message[mailbox.MessageInfo] = r.NewStyle().Foreground(colorBlue)
	s.message[mailbox.MessageTask] = r.NewStyle().Foreground(colorPurple)
	s.message[mailbox.MessageQuestion] = r.NewStyle().Foreground(colorYellow)
	s.message[mailbox.MessageAnswer] = r.NewStyle().Foreground(colorGreen)
	s.message[mailbox.MessageCompleted] = r.NewStyle().Foreground(colorGreen).Bold(true)
	s.message[mailbox.MessageError] = r.NewStyle().Foreground(colorRed).Bold(true)
	return s
}

// render applies st to text when styling is enabled.
func (s styles) render(st lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return st.Render(text)
}

func (s styles) forStatus(st taskqueue.TaskStatus) lipgloss.Style {
	return s.status[st]
}

func (s styles) forPriority(p taskqueue.Priority) lipgloss.Style {
	return s.priority[p]
}

func (s styles) forMessage(t mailbox.MessageType) lipgloss.Style {
	return s.message[t]
}
