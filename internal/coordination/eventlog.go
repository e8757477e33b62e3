package coordination

import (
	"github.com/mcfearsome/cc-colony-sub001/internal/event"
	"github.com/mcfearsome/cc-colony-sub001/internal/logging"
)

// LogEvents subscribes log to every event on bus and writes each one at
// DEBUG, with retries and queue depth changes included. It returns the
// subscription id for Unsubscribe.
func LogEvents(bus *event.Bus, log *logging.Logger) string {
	log = log.WithComponent("events")
	return bus.SubscribeAll(func(e event.Event) {
		switch ev := e.(type) {
		case event.TaskCreatedEvent:
			log.WithTask(ev.TaskID).Debug("task created",
				"priority", ev.Priority, "dependencies", ev.Dependencies)
		case event.TaskClaimedEvent:
			log.WithTask(ev.TaskID).WithAgent(ev.AgentID).Debug("task claimed",
				"attempts", ev.Attempts)
		case event.TaskClaimRetryEvent:
			log.WithTask(ev.TaskID).Debug("task update retrying",
				"attempt", ev.Attempt, "delay", ev.Delay.String())
		case event.TaskTransitionEvent:
			l := log.WithTask(ev.TaskID)
			if ev.AgentID != "" {
				l = l.WithAgent(ev.AgentID)
			}
			l.Debug("task transitioned", "from", ev.From, "to", ev.To)
		case event.TaskDeletedEvent:
			log.WithTask(ev.TaskID).Debug("task deleted", "last_status", ev.LastStatus)
		case event.TasksUnblockedEvent:
			log.WithTask(ev.CompletedID).Debug("tasks unblocked", "unblocked", ev.Unblocked)
		case event.QueueDepthChangedEvent:
			log.Debug("queue depth changed",
				"total", ev.Total,
				"pending", ev.Pending,
				"claimable", ev.Claimable,
				"claimed", ev.Claimed,
				"in_progress", ev.InProgress,
				"blocked", ev.Blocked,
				"completed", ev.Completed,
				"cancelled", ev.Cancelled)
		case event.MessageSentEvent:
			log.WithAgent(ev.From).Debug("message sent",
				"message_id", ev.MessageID, "to", ev.To, "type", ev.MessageType)
		default:
			log.Debug("event", "type", e.EventType())
		}
	})
}
