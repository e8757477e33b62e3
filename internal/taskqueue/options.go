package taskqueue

import (
	"time"

	"github.com/mcfearsome/cc-colony-sub001/internal/event"
	"github.com/mcfearsome/cc-colony-sub001/internal/logging"
	"github.com/mcfearsome/cc-colony-sub001/internal/recordstore"
)

// Defaults for the optimistic retry loop.
const (
	DefaultMaxRetries  = 8
	DefaultBackoffBase = 5 * time.Millisecond
	DefaultBackoffMax  = 200 * time.Millisecond
)

// TasksTable is the record store table holding tasks.
const TasksTable = "tasks"

// RetryHook observes an attempt that lost a version race and is about to
// sleep for delay before re-reading.
type RetryHook func(taskID string, attempt int, delay time.Duration)

type options struct {
	maxRetries int
	backoff    func(attempt int) time.Duration
	sleep      func(time.Duration)
	now        func() time.Time
	logger     *logging.Logger
	onRetry    RetryHook
	bus        *event.Bus
}

// Option configures a TaskQueue or an Arbiter.
type Option func(*options)

// WithMaxRetries bounds how many times a mutation is retried after losing a
// compare-and-swap. Zero means a single attempt.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithBackoff sets the delay before retry attempt (0-based).
func WithBackoff(f func(attempt int) time.Duration) Option {
	return func(o *options) {
		if f != nil {
			o.backoff = f
		}
	}
}

// ExponentialBackoff returns a jittered exponential backoff capped at ceiling.
func ExponentialBackoff(base, ceiling time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return recordstore.BackoffDelay(attempt, base, ceiling)
	}
}

// WithSleep replaces time.Sleep between retries, for tests.
func WithSleep(f func(time.Duration)) Option {
	return func(o *options) {
		if f != nil {
			o.sleep = f
		}
	}
}

// WithClock sets the source of task timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger. Defaults to logging.NopLogger().
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRetryHook registers a callback for every lost compare-and-swap.
func WithRetryHook(h RetryHook) Option {
	return func(o *options) { o.onRetry = h }
}

func buildOptions(opts []Option) options {
	o := options{
		maxRetries: DefaultMaxRetries,
		backoff:    ExponentialBackoff(DefaultBackoffBase, DefaultBackoffMax),
		sleep:      time.Sleep,
		now:        time.Now,
		logger:     logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.bus != nil {
		o.onRetry = retryPublisher(o.bus, o.onRetry)
	}
	return o
}
