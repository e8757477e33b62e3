package recordstore

import (
	"time"

	"github.com/mcfearsome/cc-colony-sub001/internal/errors"
	"github.com/mcfearsome/cc-colony-sub001/internal/logging"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// ValidBackends returns the backend names accepted by Open.
func ValidBackends() []string {
	return []string{BackendFile, BackendSQLite}
}

type options struct {
	now         func() time.Time
	logger      *logging.Logger
	busyTimeout time.Duration
	busyRetries int
}

// Option configures a Store.
type Option func(*options)

// WithClock overrides the clock used for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger attaches a logger for repair and retry diagnostics.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithBusyTimeout sets how long SQLite waits on a locked database before
// returning SQLITE_BUSY. Ignored by FileStore.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) { o.busyTimeout = d }
}

// WithBusyRetries sets how many times a SQLITE_BUSY statement is retried.
// Ignored by FileStore.
func WithBusyRetries(n int) Option {
	return func(o *options) { o.busyRetries = n }
}

func buildOptions(opts []Option) options {
	o := options{
		now:         time.Now,
		logger:      logging.NopLogger(),
		busyTimeout: 5 * time.Second,
		busyRetries: 5,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NopLogger()
	}
	return o
}

// Open returns the backend named by backend rooted at root.
func Open(backend, root string, opts ...Option) (Store, error) {
	switch backend {
	case BackendFile, "":
		s, err := NewFileStore(root, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendSQLite:
		s, err := NewSQLiteStore(SQLitePath(root), opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.NewValidationError("unknown store backend").WithField("store.backend").WithValue(backend)
	}
}

// Watchable is implemented by stores whose writes show up as filesystem
// events. Watchers subscribe to every returned directory.
type Watchable interface {
	WatchPaths() []string
}
