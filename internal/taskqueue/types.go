package taskqueue

import (
	"slices"
	"strings"
	"time"

	"github.com/mcfearsome/cc-colony-sub001/internal/errors"
	"github.com/mcfearsome/cc-colony-sub001/internal/recordstore"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskPending indicates the task is waiting to be claimed.
	TaskPending TaskStatus = "pending"

	// TaskClaimed indicates an agent owns the task but has not started it.
	TaskClaimed TaskStatus = "claimed"

	// TaskInProgress indicates the owning agent is working on the task.
	TaskInProgress TaskStatus = "in_progress"

	// TaskBlocked indicates the owning agent paused the task; see BlockedReason.
	TaskBlocked TaskStatus = "blocked"

	// TaskCompleted indicates the task finished successfully.
	TaskCompleted TaskStatus = "completed"

	// TaskCancelled indicates the task was abandoned.
	TaskCancelled TaskStatus = "cancelled"
)

// AllStatuses lists every status in lifecycle order.
func AllStatuses() []TaskStatus {
	return []TaskStatus{TaskPending, TaskClaimed, TaskInProgress, TaskBlocked, TaskCompleted, TaskCancelled}
}

// String returns the string representation of the task status.
func (s TaskStatus) String() string {
	return string(s)
}

// IsTerminal returns true if this status represents a final state.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskCancelled
}

// IsOwned returns true while an agent holds the task.
func (s TaskStatus) IsOwned() bool {
	return s == TaskClaimed || s == TaskInProgress || s == TaskBlocked
}

// ParseStatus accepts the stored form plus the spellings people type on a
// command line ("InProgress", "in-progress").
func ParseStatus(s string) (TaskStatus, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", "_")
	if norm == "inprogress" {
		norm = string(TaskInProgress)
	}
	status := TaskStatus(norm)
	if slices.Contains(AllStatuses(), status) {
		return status, nil
	}
	return "", errors.NewValidationError("unknown task status").WithField("status").WithValue(s)
}

// Priority orders claimable work. The zero value is treated as PriorityMedium.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank returns a sort key where larger means more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityLow:
		return 0
	default:
		return 1
	}
}

// ParsePriority maps user input to a Priority. Empty input yields
// PriorityMedium.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PriorityMedium, nil
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return p, nil
	}
	return "", errors.NewValidationError("unknown priority").WithField("priority").WithValue(s)
}

const (
	// AutoAssign as assigned_to lets any agent claim the task.
	AutoAssign = "auto"

	// AllAgents is the broadcast recipient and cannot name an agent.
	AllAgents = "all"
)

// ValidateAgentID rejects ids that are empty, reserved, or unusable as a
// mailbox name.
func ValidateAgentID(agent string) error {
	switch {
	case agent == "":
		return errors.NewValidationError("agent id is required").WithField("agent")
	case agent == AutoAssign || agent == AllAgents:
		return errors.NewValidationError("agent id is reserved").WithField("agent").WithValue(agent)
	case !recordstore.ValidKey(agent):
		return errors.NewValidationError("agent id may only contain letters, digits, '.', '_' and '-'").
			WithField("agent").WithValue(agent)
	}
	return nil
}

// Task is the persisted form of one unit of work.
type Task struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Status      TaskStatus `json:"status" yaml:"status"`
	Priority    Priority   `json:"priority" yaml:"priority"`

	// AssignedTo restricts who may claim: empty or AutoAssign for anyone.
	AssignedTo string `json:"assigned_to,omitempty" yaml:"assigned_to,omitempty"`

	// ClaimedBy is the agent that won the claim. It is kept after the task
	// reaches a terminal state so ForAgent still finds finished work.
	ClaimedBy string `json:"claimed_by,omitempty" yaml:"claimed_by,omitempty"`

	Dependencies  []string `json:"dependencies" yaml:"dependencies"`
	Progress      int      `json:"progress" yaml:"progress"`
	BlockedReason string   `json:"blocked_reason,omitempty" yaml:"blocked_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty" yaml:"claimed_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at" yaml:"updated_at"`

	// Version is the record store version this copy was read at.
	Version int64 `json:"-" yaml:"-"`
}

// Clone returns a deep copy.
func (t *Task) Clone() *Task {
	cp := *t
	cp.Dependencies = slices.Clone(t.Dependencies)
	cp.ClaimedAt = cloneTime(t.ClaimedAt)
	cp.StartedAt = cloneTime(t.StartedAt)
	cp.CompletedAt = cloneTime(t.CompletedAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// NewTask describes a task to create.
type NewTask struct {
	ID           string
	Title        string
	Description  string
	Priority     Priority
	AssignedTo   string
	Dependencies []string
}

// validate normalises the request in place.
func (n *NewTask) validate() error {
	if !recordstore.ValidKey(n.ID) {
		return errors.NewValidationError("task id may only contain letters, digits, '.', '_' and '-'").
			WithField("id").WithValue(n.ID)
	}
	if strings.TrimSpace(n.Title) == "" {
		return errors.NewValidationError("title is required").WithField("title")
	}

	p, err := ParsePriority(string(n.Priority))
	if err != nil {
		return err
	}
	n.Priority = p

	if n.AssignedTo != "" && n.AssignedTo != AutoAssign {
		if err := ValidateAgentID(n.AssignedTo); err != nil {
			return err
		}
	}

	seen := make(map[string]bool, len(n.Dependencies))
	deps := make([]string, 0, len(n.Dependencies))
	for _, d := range n.Dependencies {
		d = strings.TrimSpace(d)
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		deps = append(deps, d)
	}
	n.Dependencies = deps
	return nil
}

// QueueStatus is a snapshot of the queue's current state counts.
type QueueStatus struct {
	Total      int `json:"total" yaml:"total"`
	Pending    int `json:"pending" yaml:"pending"`
	Claimable  int `json:"claimable" yaml:"claimable"`
	Claimed    int `json:"claimed" yaml:"claimed"`
	InProgress int `json:"in_progress" yaml:"in_progress"`
	Blocked    int `json:"blocked" yaml:"blocked"`
	Completed  int `json:"completed" yaml:"completed"`
	Cancelled  int `json:"cancelled" yaml:"cancelled"`
}
