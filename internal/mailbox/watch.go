package mailbox

import (
	"context"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mcfearsome/cc-colony-sub001/internal/logging"
	"github.com/mcfearsome/cc-colony-sub001/internal/recordstore"
)

const (
	// DefaultPollInterval is used when Watch is given a non-positive interval.
	DefaultPollInterval = 5 * time.Second

	// watchDebounce coalesces bursts of filesystem events into one read.
	watchDebounce = 50 * time.Millisecond

	// maxWatchErrors is the number of consecutive read errors before the
	// watcher logs at error level. Individual failures are expected (e.g.,
	// transient I/O); sustained failures indicate a real problem.
	maxWatchErrors = 5
)

// WatchOption configures a single Watch call.
type WatchOption func(*watchConfig)

type watchConfig struct {
	includeExisting bool
}

// IncludeExisting makes Watch deliver the messages already in the mailbox
// before any new ones. The same read that finds them also seeds the set of
// delivered ids, so nothing written in between is lost.
func IncludeExisting() WatchOption {
	return func(c *watchConfig) { c.includeExisting = true }
}

// Watch calls handler for every message that appears in agent's mailbox
// after Watch starts, in (timestamp, id) order, until ctx is done. It
// re-reads on every tick of interval and, when the store exposes watchable
// paths, shortly after any filesystem change under them. A failed read is
// logged and treated as "no update this cycle". Watch returns nil when ctx
// is cancelled.
func (m *Mailbox) Watch(ctx context.Context, agent string, interval time.Duration, handler func(Message), opts ...WatchOption) error {
	if err := validateAgent("agent", agent); err != nil {
		return err
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	var cfg watchConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	log := m.logger.WithAgent(agent).WithComponent("mailbox-watch")

	seen := make(map[string]bool)
	initial, err := m.Read(agent)
	if err != nil {
		// Start empty rather than skip messages; existing ones may be
		// delivered once the store is readable again.
		log.Warn("initial mailbox read failed", "error", err)
	}
	for _, msg := range initial {
		seen[msg.ID] = true
		if cfg.includeExisting {
			handler(msg)
		}
	}

	var (
		fsEvents <-chan fsnotify.Event
		fsErrors <-chan error
	)
	watcher := m.newWatcher(log)
	if watcher != nil {
		defer func() { _ = watcher.Close() }()
		fsEvents = watcher.Events
		fsErrors = watcher.Errors
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	debounce := time.NewTimer(watchDebounce)
	debounce.Stop()
	defer debounce.Stop()

	consecutiveErrors := 0
	refresh := func() {
		msgs, err := m.Read(agent)
		if err != nil {
			consecutiveErrors++
			if consecutiveErrors >= maxWatchErrors {
				log.Error("mailbox unreadable", "error", err, "consecutive_errors", consecutiveErrors)
				consecutiveErrors = 0
			} else {
				log.Warn("mailbox read failed", "error", err)
			}
			return
		}
		consecutiveErrors = 0
		for _, msg := range msgs {
			if seen[msg.ID] {
				continue
			}
			seen[msg.ID] = true
			handler(msg)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			refresh()

		case ev, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			if ev.Has(fsnotify.Create) {
				// New inbox directories appear as agents receive their
				// first message.
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = watcher.Add(ev.Name)
				}
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			debounce.Reset(watchDebounce)

		case <-debounce.C:
			refresh()

		case err, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
				continue
			}
			log.Warn("filesystem watch error", "error", err)
		}
	}
}

// newWatcher returns nil when the store has nothing to watch or fsnotify is
// unavailable; Watch then relies on polling alone.
func (m *Mailbox) newWatcher(log *logging.Logger) *fsnotify.Watcher {
	w, ok := m.store.(recordstore.Watchable)
	if !ok {
		return nil
	}
	paths := w.WatchPaths()
	if len(paths) == 0 {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("fsnotify unavailable, polling only", "error", err)
		return nil
	}
	added := 0
	for _, p := range paths {
		if err := watcher.Add(p); err == nil {
			added++
		}
	}
	if added == 0 {
		_ = watcher.Close()
		return nil
	}
	return watcher
}
