// Package mailbox provides per-agent and broadcast messaging between colony
// agents on top of a [recordstore.Store].
//
// # Architecture
//
// Each message is one entry in an append-only record store log. Messages to
// a single agent go to that agent's inbox; messages to [BroadcastRecipient]
// ("all") go to one shared broadcast log that every agent reads:
//
//	inbox/<agent>   messages addressed to one agent
//	broadcast       messages addressed to everyone
//
// Appends never contend: every message gets a new id of the form
// <from>-<unixnanos>-<writer>-<seq>, where writer is random per [Mailbox]
// and seq is a per-writer counter.
//
// # Reading
//
// [Mailbox.Read] merges an agent's inbox with the broadcast log and orders
// the result by (timestamp, id). Reads are non-destructive; consumers track
// their own position and can resume with [Mailbox.ReadSince].
// [Mailbox.ReadAll] returns every message in every mailbox for auditing.
// [Mailbox.Watch] delivers new arrivals, waking on filesystem events when the
// store supports them and polling otherwise.
//
// # Basic Usage
//
//	mb := mailbox.New(store)
//
//	mb.Send(mailbox.Message{
//	    From:    "agent-a",
//	    To:      "agent-b",
//	    Type:    mailbox.MessageQuestion,
//	    Content: "Which schema version are you on?",
//	    Context: mailbox.Context{ProjectDir: dir, GitBranch: "feature/x"},
//	})
//
//	mb.Broadcast("agent-a", "parser merged", mailbox.MessageCompleted, ctx)
//
//	messages, err := mb.Read("agent-b")
//	fmt.Println(mailbox.FormatForPrompt(messages))
//
// # Thread Safety
//
// [Mailbox] is safe for concurrent use by goroutines and by separate
// processes sharing a store.
package mailbox
