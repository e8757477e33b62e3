package mailbox

import "github.com/mcfearsome/cc-colony-sub001/internal/event"

// NewMessageSentEvent creates an event.MessageSentEvent from a Message.
func NewMessageSentEvent(msg Message) event.MessageSentEvent {
	return event.NewMessageSentEvent(msg.ID, msg.From, msg.To, msg.Type.String())
}
