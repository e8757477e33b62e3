// Package event provides an in-process pub-sub bus for colony notifications.
//
// The task queue and the mailbox publish events after each committed change
// so that other components (the logger, the CLI's verbose output) can react
// without the stores depending on them. Events never cross process
// boundaries; other processes observe changes through the record store.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Task events ("task.*"):
//   - [TaskCreatedEvent], [TaskClaimedEvent], [TaskClaimRetryEvent]
//   - [TaskTransitionEvent], [TaskDeletedEvent], [TasksUnblockedEvent]
//
// Queue events ("queue.*"):
//   - [QueueDepthChangedEvent]
//
// Message events ("message.*"):
//   - [MessageSentEvent]
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called
// synchronously in registration order and are protected against panics: a
// panicking handler will not prevent other handlers from being called.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	bus.Subscribe(event.TypeTaskClaimed, func(e event.Event) {
//	    claimed := e.(event.TaskClaimedEvent)
//	    fmt.Printf("%s claimed %s\n", claimed.AgentID, claimed.TaskID)
//	})
//
//	bus.Subscribe("task.*", func(e event.Event) {
//	    fmt.Println(e.EventType())
//	})
package event
