package taskqueue

import (
	"time"

	"github.com/mcfearsome/cc-colony-sub001/internal/event"
)

// WithBus publishes task events on bus after each committed change. A
// QueueDepthChangedEvent follows every mutation.
func WithBus(bus *event.Bus) Option {
	return func(o *options) { o.bus = bus }
}

func (q *TaskQueue) publishCreated(task *Task) {
	if q.opts.bus == nil {
		return
	}
	q.opts.bus.Publish(event.NewTaskCreatedEvent(task.ID, task.Title, string(task.Priority), task.Dependencies))
	q.publishDepth()
}

func (q *TaskQueue) publishClaimed(task *Task, attempts int) {
	if q.opts.bus == nil {
		return
	}
	q.opts.bus.Publish(event.NewTaskClaimedEvent(task.ID, task.ClaimedBy, attempts))
	q.opts.bus.Publish(event.NewTaskTransitionEvent(task.ID, task.ClaimedBy, string(TaskPending), string(TaskClaimed)))
	q.publishDepth()
}

func (q *TaskQueue) publishTransition(task *Task, from TaskStatus) {
	if q.opts.bus == nil {
		return
	}
	q.opts.bus.Publish(event.NewTaskTransitionEvent(task.ID, task.ClaimedBy, string(from), string(task.Status)))
	q.publishDepth()
}

func (q *TaskQueue) publishDeleted(task *Task) {
	if q.opts.bus == nil {
		return
	}
	q.opts.bus.Publish(event.NewTaskDeletedEvent(task.ID, string(task.Status)))
	q.publishDepth()
}

func (q *TaskQueue) publishUnblocked(completedID string, unblocked []string) {
	if q.opts.bus == nil {
		return
	}
	q.opts.bus.Publish(event.NewTasksUnblockedEvent(completedID, unblocked))
}

// publishDepth re-reads the table; a failed read skips the event.
func (q *TaskQueue) publishDepth() {
	tasks, err := q.all()
	if err != nil {
		q.opts.logger.Debug("queue depth unavailable", "error", err)
		return
	}
	s := Summarize(tasks)
	q.opts.bus.Publish(event.NewQueueDepthChangedEvent(
		s.Pending, s.Claimable, s.Claimed, s.InProgress, s.Blocked, s.Completed, s.Cancelled, s.Total,
	))
}

// retryPublisher adapts the bus to a RetryHook.
func retryPublisher(bus *event.Bus, next RetryHook) RetryHook {
	return func(taskID string, attempt int, delay time.Duration) {
		bus.Publish(event.NewTaskClaimRetryEvent(taskID, attempt, delay))
		if next != nil {
			next(taskID, attempt, delay)
		}
	}
}

// Ensure the published event types satisfy the Event interface at compile time.
var (
	_ event.Event = event.TaskCreatedEvent{}
	_ event.Event = event.TaskClaimedEvent{}
	_ event.Event = event.TaskClaimRetryEvent{}
	_ event.Event = event.TaskTransitionEvent{}
	_ event.Event = event.TaskDeletedEvent{}
	_ event.Event = event.TasksUnblockedEvent{}
	_ event.Event = event.QueueDepthChangedEvent{}
)
