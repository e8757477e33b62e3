package mailbox

import (
	"strings"
	"time"

	"github.com/mcfearsome/cc-colony-sub001/internal/errors"
	"github.com/mcfearsome/cc-colony-sub001/internal/recordstore"
)

// MessageType identifies the kind of message. It is a closed set: the zero
// value is invalid, and decoding or parsing any other name fails.
type MessageType uint8

const (
	// MessageInfo shares a finding or status update.
	MessageInfo MessageType = iota + 1

	// MessageTask hands work to another agent.
	MessageTask

	// MessageQuestion asks another agent for help.
	MessageQuestion

	// MessageAnswer responds to a question.
	MessageAnswer

	// MessageCompleted announces finished work.
	MessageCompleted

	// MessageError reports a failure.
	MessageError
)

var messageTypeNames = [...]string{
	MessageInfo:      "info",
	MessageTask:      "task",
	MessageQuestion:  "question",
	MessageAnswer:    "answer",
	MessageCompleted: "completed",
	MessageError:     "error",
}

// MessageTypes lists every valid type.
func MessageTypes() []MessageType {
	return []MessageType{MessageInfo, MessageTask, MessageQuestion, MessageAnswer, MessageCompleted, MessageError}
}

// Valid reports whether t is one of the defined types.
func (t MessageType) Valid() bool {
	return t >= MessageInfo && t <= MessageError
}

// String returns the lowercase name, or "invalid" for undefined values.
func (t MessageType) String() string {
	if !t.Valid() {
		return "invalid"
	}
	return messageTypeNames[t]
}

// ParseMessageType maps a name (case-insensitive) to its MessageType.
func ParseMessageType(s string) (MessageType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, t := range MessageTypes() {
		if messageTypeNames[t] == name {
			return t, nil
		}
	}
	return 0, errors.NewValidationError("unknown message type").WithField("message_type").WithValue(s)
}

// MarshalText implements encoding.TextMarshaler.
func (t MessageType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, errors.NewValidationError("invalid message type").WithField("message_type").WithValue(uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *MessageType) UnmarshalText(b []byte) error {
	parsed, err := ParseMessageType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// BroadcastRecipient is the "to" value for messages meant for every agent.
const BroadcastRecipient = "all"

// MaxContentSize bounds Message.Content so an encoded message always fits
// in a single store entry.
const MaxContentSize = 128 << 10

// Context is the sender's environment at write time. It is stored verbatim.
type Context struct {
	ProjectDir string `json:"project_dir" yaml:"project_dir"`
	GitBranch  string `json:"git_branch" yaml:"git_branch"`
}

// Message is one immutable mailbox entry.
type Message struct {
	ID        string      `json:"id" yaml:"id"`
	From      string      `json:"from" yaml:"from"`
	To        string      `json:"to" yaml:"to"`
	Content   string      `json:"content" yaml:"content"`
	Type      MessageType `json:"message_type" yaml:"message_type"`
	Timestamp time.Time   `json:"timestamp" yaml:"timestamp"`
	Context   Context     `json:"context" yaml:"context"`
}

// IsBroadcast returns true if the message is addressed to all agents.
func (m Message) IsBroadcast() bool {
	return m.To == BroadcastRecipient
}

// validateAgent checks an id used as a sender or as a personal mailbox.
func validateAgent(field, agent string) error {
	switch {
	case agent == "":
		return errors.NewValidationError(field + " is required").WithField(field)
	case agent == BroadcastRecipient:
		return errors.NewValidationError(field + " cannot be the broadcast recipient").WithField(field).WithValue(agent)
	case !recordstore.ValidKey(agent):
		return errors.NewValidationError(field + " may only contain letters, digits, '.', '_' and '-'").
			WithField(field).WithValue(agent)
	}
	return nil
}

func (m Message) validate() error {
	if err := validateAgent("from", m.From); err != nil {
		return err
	}
	if m.To != BroadcastRecipient {
		if err := validateAgent("to", m.To); err != nil {
			return err
		}
	}
	if !m.Type.Valid() {
		return errors.NewValidationError("message type is required").WithField("message_type")
	}
	if strings.TrimSpace(m.Content) == "" {
		return errors.NewValidationError("content is required").WithField("content")
	}
	if len(m.Content) > MaxContentSize {
		return errors.NewValidationError("content exceeds 128 KiB").WithField("content").WithValue(len(m.Content))
	}
	return nil
}
