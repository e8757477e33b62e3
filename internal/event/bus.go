package event

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
)

// Handler is a function that handles an event.
type Handler func(Event)

// PanicHandler receives a recovered handler panic together with its stack.
type PanicHandler func(ev Event, recovered any, stack []byte)

type subscription struct {
	id      string
	pattern string // exact type, "category.*", or "*"
	handler Handler
}

func (s subscription) matches(eventType string) bool {
	switch {
	case s.pattern == "*":
		return true
	case strings.HasSuffix(s.pattern, ".*"):
		return strings.HasPrefix(eventType, strings.TrimSuffix(s.pattern, "*"))
	default:
		return s.pattern == eventType
	}
}

// Bus is a synchronous in-process pub-sub bus. Coordination state is shared
// between processes only through the record store; the bus carries
// notifications inside one process, e.g. from the task queue to the logger.
type Bus struct {
	mu      sync.RWMutex
	subs    []subscription
	nextID  atomic.Uint64
	onPanic PanicHandler
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithPanicHandler replaces the default panic reporting, which writes the
// panic and stack to stderr.
func WithPanicHandler(h PanicHandler) BusOption {
	return func(b *Bus) { b.onPanic = h }
}

// NewBus creates a new event bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{onPanic: stderrPanicHandler}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for an exact event type, or for a whole
// category when eventType ends in ".*" (e.g. "task.*").
// Returns a subscription ID that can be used to unsubscribe.
func (b *Bus) Subscribe(eventType string, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := fmt.Sprintf("sub-%d", b.nextID.Add(1))
	b.subs = append(b.subs, subscription{id: id, pattern: eventType, handler: handler})
	return id
}

// SubscribeAll registers a handler for every published event.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe("*", handler)
}

// Unsubscribe removes a subscription by ID.
// Returns true if the subscription was found and removed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Publish dispatches ev to every matching handler in registration order.
// A panicking handler is recovered and reported; delivery continues.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	eventType := ev.EventType()
	matched := make([]Handler, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.matches(eventType) {
			matched = append(matched, sub.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range matched {
		b.safeCall(h, ev)
	}
}

func (b *Bus) safeCall(handler Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.onPanic(ev, r, debug.Stack())
		}
	}()
	handler(ev)
}

// stderr is swapped out by tests.
var stderr io.Writer = os.Stderr

func stderrPanicHandler(ev Event, recovered any, stack []byte) {
	fmt.Fprintf(stderr, "ERROR: event handler panicked for event %s: %v\n%s\n", ev.EventType(), recovered, stack)
}

// Clear removes all subscriptions.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = nil
}

// SubscriptionCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
