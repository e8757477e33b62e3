package mailbox

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mcfearsome/cc-colony-sub001/internal/errors"
	"github.com/mcfearsome/cc-colony-sub001/internal/event"
	"github.com/mcfearsome/cc-colony-sub001/internal/logging"
	"github.com/mcfearsome/cc-colony-sub001/internal/recordstore"
)

const (
	// inboxPrefix namespaces per-agent logs: inbox/<agent>.
	inboxPrefix = "inbox/"

	// broadcastLog holds messages sent to BroadcastRecipient.
	broadcastLog = "broadcast"
)

// Mailbox is the message bus shared by every agent process. Each recipient
// has an append-only inbox log and every agent also reads the broadcast log.
// Sending never contends with other writers: each message is a new entry
// with a unique id.
type Mailbox struct {
	store  recordstore.Store
	bus    *event.Bus
	now    func() time.Time
	logger *logging.Logger
	ids    *idGenerator
}

// New creates a Mailbox over store.
func New(store recordstore.Store, opts ...Option) *Mailbox {
	m := &Mailbox{
		store:  store,
		now:    time.Now,
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.ids == nil {
		m.ids = newIDGenerator("")
	}
	return m
}

func logFor(recipient string) string {
	if recipient == BroadcastRecipient {
		return broadcastLog
	}
	return inboxPrefix + recipient
}

// Send stamps msg with a fresh id and the current time, then appends it to
// the recipient's mailbox, or to the broadcast mailbox when To is
// BroadcastRecipient. Context is stored as given. Returns the stored
// message.
func (m *Mailbox) Send(msg Message) (Message, error) {
	if err := msg.validate(); err != nil {
		return Message{}, err
	}

	msg.Timestamp = m.now().UTC()
	msg.ID = m.ids.next(msg.From, msg.Timestamp)

	data, err := json.Marshal(msg)
	if err != nil {
		return Message{}, fmt.Errorf("mailbox: marshal message: %w", err)
	}

	if err := m.store.Append(logFor(msg.To), msg.ID, data); err != nil {
		if errors.Is(err, recordstore.ErrExists) {
			return Message{}, errors.NewDuplicateIDError("message", msg.ID)
		}
		return Message{}, err
	}

	m.logger.WithAgent(msg.From).Debug("message sent", "to", msg.To, "message_id", msg.ID, "type", msg.Type.String())
	if m.bus != nil {
		m.bus.Publish(NewMessageSentEvent(msg))
	}
	return msg, nil
}

// Broadcast sends content from one agent to every agent.
func (m *Mailbox) Broadcast(from, content string, t MessageType, ctx Context) (Message, error) {
	return m.Send(Message{From: from, To: BroadcastRecipient, Content: content, Type: t, Context: ctx})
}

// Read returns the agent's direct messages merged with every broadcast,
// ordered by (timestamp, id). Reading does not consume anything: calling
// Read again without new sends returns the same sequence.
func (m *Mailbox) Read(agent string) ([]Message, error) {
	if err := validateAgent("agent", agent); err != nil {
		return nil, err
	}

	direct, err := m.readLog(logFor(agent))
	if err != nil {
		return nil, err
	}
	broadcast, err := m.readLog(broadcastLog)
	if err != nil {
		return nil, err
	}

	all := make([]Message, 0, len(direct)+len(broadcast))
	all = append(all, direct...)
	all = append(all, broadcast...)
	sortMessages(all)
	return all, nil
}

// ReadSince returns the messages Read would return that come strictly after
// the message with id cursor. An empty cursor returns everything. A cursor
// that is not in the agent's mailbox is a NotFoundError.
func (m *Mailbox) ReadSince(agent, cursor string) ([]Message, error) {
	msgs, err := m.Read(agent)
	if err != nil || cursor == "" {
		return msgs, err
	}
	for i, msg := range msgs {
		if msg.ID == cursor {
			return msgs[i+1:], nil
		}
	}
	return nil, errors.NewNotFoundError("message", cursor)
}

// ReadAll returns every message in every mailbox, ordered by
// (timestamp, id).
func (m *Mailbox) ReadAll() ([]Message, error) {
	logs, err := m.store.Logs()
	if err != nil {
		return nil, err
	}

	var all []Message
	for _, log := range logs {
		if log != broadcastLog && !strings.HasPrefix(log, inboxPrefix) {
			continue
		}
		msgs, err := m.readLog(log)
		if err != nil {
			return nil, err
		}
		all = append(all, msgs...)
	}
	sortMessages(all)
	return all, nil
}

// readLog decodes one log. Entries that do not decode are skipped with a
// warning rather than failing the whole read.
func (m *Mailbox) readLog(log string) ([]Message, error) {
	entries, err := m.store.ReadLog(log)
	if err != nil {
		return nil, err
	}
	msgs := make([]Message, 0, len(entries))
	for _, e := range entries {
		var msg Message
		if err := json.Unmarshal(e.Data, &msg); err != nil {
			m.logger.Warn("skipping unreadable message", "log", log, "entry", e.ID, "error", err)
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
