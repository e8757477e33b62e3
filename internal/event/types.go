package event

import "time"

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "task.claimed", "message.sent")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// Event type names. Subscribers may also use the category wildcards
// "task.*", "queue.*" and "message.*".
const (
	TypeTaskCreated       = "task.created"
	TypeTaskClaimed       = "task.claimed"
	TypeTaskClaimRetry    = "task.claim_retry"
	TypeTaskTransition    = "task.transitioned"
	TypeTaskDeleted       = "task.deleted"
	TypeTasksUnblocked    = "task.unblocked"
	TypeQueueDepthChanged = "queue.depth_changed"
	TypeMessageSent       = "message.sent"
)

// -----------------------------------------------------------------------------
// Task Events
// -----------------------------------------------------------------------------

// TaskCreatedEvent is emitted after a task record is persisted.
type TaskCreatedEvent struct {
	baseEvent
	TaskID       string
	Title        string
	Priority     string
	Dependencies []string
}

// NewTaskCreatedEvent creates a TaskCreatedEvent.
func NewTaskCreatedEvent(taskID, title, priority string, deps []string) TaskCreatedEvent {
	return TaskCreatedEvent{
		baseEvent:    newBaseEvent(TypeTaskCreated),
		TaskID:       taskID,
		Title:        title,
		Priority:     priority,
		Dependencies: deps,
	}
}

// TaskClaimedEvent is emitted when an agent wins a claim.
type TaskClaimedEvent struct {
	baseEvent
	TaskID   string
	AgentID  string
	Attempts int // compare-and-swap attempts the winning claim needed
}

// NewTaskClaimedEvent creates a TaskClaimedEvent.
func NewTaskClaimedEvent(taskID, agentID string, attempts int) TaskClaimedEvent {
	return TaskClaimedEvent{
		baseEvent: newBaseEvent(TypeTaskClaimed),
		TaskID:    taskID,
		AgentID:   agentID,
		Attempts:  attempts,
	}
}

// TaskClaimRetryEvent is emitted when a task update lost a version race and
// is about to be retried.
type TaskClaimRetryEvent struct {
	baseEvent
	TaskID  string
	Attempt int
	Delay   time.Duration
}

// NewTaskClaimRetryEvent creates a TaskClaimRetryEvent.
func NewTaskClaimRetryEvent(taskID string, attempt int, delay time.Duration) TaskClaimRetryEvent {
	return TaskClaimRetryEvent{
		baseEvent: newBaseEvent(TypeTaskClaimRetry),
		TaskID:    taskID,
		Attempt:   attempt,
		Delay:     delay,
	}
}

// TaskTransitionEvent is emitted for every committed status change.
type TaskTransitionEvent struct {
	baseEvent
	TaskID  string
	AgentID string // agent that caused the change; empty for operator actions
	From    string
	To      string
}

// NewTaskTransitionEvent creates a TaskTransitionEvent.
func NewTaskTransitionEvent(taskID, agentID, from, to string) TaskTransitionEvent {
	return TaskTransitionEvent{
		baseEvent: newBaseEvent(TypeTaskTransition),
		TaskID:    taskID,
		AgentID:   agentID,
		From:      from,
		To:        to,
	}
}

// TaskDeletedEvent is emitted after a task record is removed.
type TaskDeletedEvent struct {
	baseEvent
	TaskID     string
	LastStatus string
}

// NewTaskDeletedEvent creates a TaskDeletedEvent.
func NewTaskDeletedEvent(taskID, lastStatus string) TaskDeletedEvent {
	return TaskDeletedEvent{
		baseEvent:  newBaseEvent(TypeTaskDeleted),
		TaskID:     taskID,
		LastStatus: lastStatus,
	}
}

// TasksUnblockedEvent is emitted when completing a task makes dependents
// claimable.
type TasksUnblockedEvent struct {
	baseEvent
	CompletedID string
	Unblocked   []string
}

// NewTasksUnblockedEvent creates a TasksUnblockedEvent.
func NewTasksUnblockedEvent(completedID string, unblocked []string) TasksUnblockedEvent {
	return TasksUnblockedEvent{
		baseEvent:   newBaseEvent(TypeTasksUnblocked),
		CompletedID: completedID,
		Unblocked:   unblocked,
	}
}

// -----------------------------------------------------------------------------
// Queue Events
// -----------------------------------------------------------------------------

// QueueDepthChangedEvent carries per-status task counts after a mutation.
type QueueDepthChangedEvent struct {
	baseEvent
	Pending    int
	Claimable  int
	Claimed    int
	InProgress int
	Blocked    int
	Completed  int
	Cancelled  int
	Total      int
}

// NewQueueDepthChangedEvent creates a QueueDepthChangedEvent.
func NewQueueDepthChangedEvent(pending, claimable, claimed, inProgress, blocked, completed, cancelled, total int) QueueDepthChangedEvent {
	return QueueDepthChangedEvent{
		baseEvent:  newBaseEvent(TypeQueueDepthChanged),
		Pending:    pending,
		Claimable:  claimable,
		Claimed:    claimed,
		InProgress: inProgress,
		Blocked:    blocked,
		Completed:  completed,
		Cancelled:  cancelled,
		Total:      total,
	}
}

// -----------------------------------------------------------------------------
// Message Events
// -----------------------------------------------------------------------------

// MessageSentEvent is emitted after a message is appended to a mailbox.
type MessageSentEvent struct {
	baseEvent
	MessageID   string
	From        string
	To          string
	MessageType string
}

// NewMessageSentEvent creates a MessageSentEvent.
func NewMessageSentEvent(messageID, from, to, messageType string) MessageSentEvent {
	return MessageSentEvent{
		baseEvent:   newBaseEvent(TypeMessageSent),
		MessageID:   messageID,
		From:        from,
		To:          to,
		MessageType: messageType,
	}
}
