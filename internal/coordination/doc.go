// Package coordination provides the Facade agents use to share work and
// talk to each other through one coordination root.
//
// The Facade wires a task queue and a mailbox over the same record store:
//
//	recordstore.Store → taskqueue.TaskQueue (tasks table)
//	                  → mailbox.Mailbox     (inbox/<agent>, broadcast logs)
//
// It keeps no state of its own. Several processes, each with its own
// Facade over the same root, observe the same tasks and messages, and
// claims stay exclusive across all of them.
//
// When a Bus is configured every successful mutation publishes an event
// (task.created, task.claimed, task.transitioned, task.deleted,
// message.sent, ...). LogEvents turns those into DEBUG log lines.
//
// Usage:
//
//	store, err := recordstore.Open(recordstore.BackendFile, ".colony")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	f, err := coordination.New(coordination.Config{Store: store, Bus: bus})
//	if err != nil {
//	    return err
//	}
//
//	f.CreateTask(taskqueue.NewTask{ID: "T1", Title: "Parser"})
//	task, err := f.ClaimTask("T1", "agent-a")
//	f.Broadcast("agent-a", "took T1", mailbox.MessageInfo, mailbox.Context{})
package coordination
