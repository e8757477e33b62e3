package mailbox

import (
	"time"

	"github.com/mcfearsome/cc-colony-sub001/internal/event"
	"github.com/mcfearsome/cc-colony-sub001/internal/logging"
)

// Option configures a Mailbox.
type Option func(*Mailbox)

// WithBus attaches an event bus to the Mailbox. When set, a
// MessageSentEvent is published after every successful Send.
func WithBus(bus *event.Bus) Option {
	return func(m *Mailbox) {
		m.bus = bus
	}
}

// WithClock sets the source of message timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Mailbox) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger. Defaults to logging.NopLogger().
func WithLogger(l *logging.Logger) Option {
	return func(m *Mailbox) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithWriterID fixes the writer segment of generated message ids. Each
// Mailbox otherwise picks a random one.
func WithWriterID(id string) Option {
	return func(m *Mailbox) {
		m.ids = newIDGenerator(id)
	}
}
