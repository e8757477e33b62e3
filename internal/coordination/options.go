package coordination

import (
	"time"

	"github.com/mcfearsome/cc-colony-sub001/internal/mailbox"
	"github.com/mcfearsome/cc-colony-sub001/internal/taskqueue"
)

// facadeConfig holds optional configuration for a Facade.
type facadeConfig struct {
	now         func() time.Time
	queueOpts   []taskqueue.Option
	mailboxOpts []mailbox.Option
}

// Option configures a Facade.
type Option func(*facadeConfig)

// WithClock sets the time source for task timestamps, message timestamps
// and snapshots.
func WithClock(now func() time.Time) Option {
	return func(c *facadeConfig) { c.now = now }
}

// WithQueueOptions passes extra options to the task queue, e.g. a claim
// retry budget. They are applied after the facade's own.
func WithQueueOptions(opts ...taskqueue.Option) Option {
	return func(c *facadeConfig) { c.queueOpts = append(c.queueOpts, opts...) }
}

// WithMailboxOptions passes extra options to the mailbox.
func WithMailboxOptions(opts ...mailbox.Option) Option {
	return func(c *facadeConfig) { c.mailboxOpts = append(c.mailboxOpts, opts...) }
}
