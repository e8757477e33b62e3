package coordination

import (
	"context"
	"errors"
	"time"

	"github.com/mcfearsome/cc-colony-sub001/internal/event"
	"github.com/mcfearsome/cc-colony-sub001/internal/logging"
	"github.com/mcfearsome/cc-colony-sub001/internal/mailbox"
	"github.com/mcfearsome/cc-colony-sub001/internal/recordstore"
	"github.com/mcfearsome/cc-colony-sub001/internal/taskqueue"
)

// Config holds required dependencies for creating a Facade.
type Config struct {
	// Store is the shared record store. Required.
	Store recordstore.Store

	// Bus receives task and message events. Optional.
	Bus *event.Bus

	// Logger is handed to the task queue and mailbox. Defaults to
	// logging.NopLogger().
	Logger *logging.Logger
}

// Facade is the single entry point agents and tools use to coordinate. It
// holds no state beyond its collaborators: every call goes straight to the
// record store, so facades in different processes over the same root see
// the same tasks and messages.
type Facade struct {
	queue *taskqueue.TaskQueue
	mb    *mailbox.Mailbox
	now   func() time.Time
}

// Snapshot is a point-in-time view of the whole coordination root, for
// presentation layers that poll.
type Snapshot struct {
	TakenAt  time.Time             `json:"taken_at" yaml:"taken_at"`
	Status   taskqueue.QueueStatus `json:"status" yaml:"status"`
	Tasks    []*taskqueue.Task     `json:"tasks" yaml:"tasks"`
	Messages []mailbox.Message     `json:"messages" yaml:"messages"`
}

// New creates a Facade over cfg.Store.
func New(cfg Config, opts ...Option) (*Facade, error) {
	if cfg.Store == nil {
		return nil, errors.New("coordination: Store is required")
	}

	fc := &facadeConfig{}
	for _, opt := range opts {
		opt(fc)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	now := fc.now
	if now == nil {
		now = time.Now
	}

	queueOpts := []taskqueue.Option{
		taskqueue.WithLogger(logger.WithComponent("taskqueue")),
		taskqueue.WithClock(now),
	}
	mailboxOpts := []mailbox.Option{
		mailbox.WithLogger(logger.WithComponent("mailbox")),
		mailbox.WithClock(now),
	}
	if cfg.Bus != nil {
		queueOpts = append(queueOpts, taskqueue.WithBus(cfg.Bus))
		mailboxOpts = append(mailboxOpts, mailbox.WithBus(cfg.Bus))
	}
	queueOpts = append(queueOpts, fc.queueOpts...)
	mailboxOpts = append(mailboxOpts, fc.mailboxOpts...)

	return &Facade{
		queue: taskqueue.New(cfg.Store, queueOpts...),
		mb:    mailbox.New(cfg.Store, mailboxOpts...),
		now:   now,
	}, nil
}

// TaskQueue returns the underlying task queue.
func (f *Facade) TaskQueue() *taskqueue.TaskQueue { return f.queue }

// Mailbox returns the underlying mailbox.
func (f *Facade) Mailbox() *mailbox.Mailbox { return f.mb }

// -----------------------------------------------------------------------------
// Tasks
// -----------------------------------------------------------------------------

// CreateTask adds a pending task.
func (f *Facade) CreateTask(n taskqueue.NewTask) (*taskqueue.Task, error) {
	return f.queue.Create(n)
}

// ClaimTask gives agent exclusive ownership of a pending task. Exactly one
// of any number of concurrent claimants succeeds; the rest get a
// ConflictError naming the owner.
func (f *Facade) ClaimTask(id, agent string) (*taskqueue.Task, error) {
	return f.queue.Claim(id, agent)
}

// StartTask moves a claimed task to in progress.
func (f *Facade) StartTask(id string) (*taskqueue.Task, error) {
	return f.queue.Start(id)
}

// UpdateProgress records percent (0-100) on an in-progress task.
func (f *Facade) UpdateProgress(id string, percent int) (*taskqueue.Task, error) {
	return f.queue.Progress(id, percent)
}

// BlockTask marks an owned task blocked with a reason.
func (f *Facade) BlockTask(id, reason string) (*taskqueue.Task, error) {
	return f.queue.Block(id, reason)
}

// UnblockTask resumes a blocked task.
func (f *Facade) UnblockTask(id string) (*taskqueue.Task, error) {
	return f.queue.Unblock(id)
}

// CompleteTask finishes an owned task and returns the ids of pending tasks
// that became claimable as a result.
func (f *Facade) CompleteTask(id string) (*taskqueue.Task, []string, error) {
	return f.queue.Complete(id)
}

// CancelTask moves any non-terminal task to cancelled.
func (f *Facade) CancelTask(id string) (*taskqueue.Task, error) {
	return f.queue.Cancel(id)
}

// DeleteTask removes a task in any state and returns it as it was.
func (f *Facade) DeleteTask(id string) (*taskqueue.Task, error) {
	return f.queue.Delete(id)
}

// GetTask returns one task.
func (f *Facade) GetTask(id string) (*taskqueue.Task, error) {
	return f.queue.Get(id)
}

// ListTasks returns the tasks matching filter in priority order.
func (f *Facade) ListTasks(filter taskqueue.Filter) ([]*taskqueue.Task, error) {
	return f.queue.List(filter)
}

// TasksForAgent returns the tasks agent owns or is assigned.
func (f *Facade) TasksForAgent(agent string) ([]*taskqueue.Task, error) {
	return f.queue.ForAgent(agent)
}

// ClaimableTasks returns the tasks agent could claim right now.
func (f *Facade) ClaimableTasks(agent string) ([]*taskqueue.Task, error) {
	return f.queue.Claimable(agent)
}

// QueueStatus returns per-status task counts.
func (f *Facade) QueueStatus() (taskqueue.QueueStatus, error) {
	return f.queue.Status()
}

// -----------------------------------------------------------------------------
// Messages
// -----------------------------------------------------------------------------

// SendMessage delivers content from one agent to another, or to every agent
// when to is mailbox.BroadcastRecipient.
func (f *Facade) SendMessage(from, to, content string, t mailbox.MessageType, ctx mailbox.Context) (mailbox.Message, error) {
	return f.mb.Send(mailbox.Message{From: from, To: to, Content: content, Type: t, Context: ctx})
}

// Broadcast delivers content from one agent to every agent.
func (f *Facade) Broadcast(from, content string, t mailbox.MessageType, ctx mailbox.Context) (mailbox.Message, error) {
	return f.mb.Broadcast(from, content, t, ctx)
}

// ReadMessages returns agent's direct messages and all broadcasts in
// (timestamp, id) order. Nothing is consumed.
func (f *Facade) ReadMessages(agent string) ([]mailbox.Message, error) {
	return f.mb.Read(agent)
}

// ReadMessagesSince returns the messages after the one with id cursor.
func (f *Facade) ReadMessagesSince(agent, cursor string) ([]mailbox.Message, error) {
	return f.mb.ReadSince(agent, cursor)
}

// ReadAllMessages returns every message in every mailbox.
func (f *Facade) ReadAllMessages() ([]mailbox.Message, error) {
	return f.mb.ReadAll()
}

// WatchMessages calls handler for each message that reaches agent until ctx
// is done.
func (f *Facade) WatchMessages(ctx context.Context, agent string, interval time.Duration, handler func(mailbox.Message), opts ...mailbox.WatchOption) error {
	return f.mb.Watch(ctx, agent, interval, handler, opts...)
}

// Snapshot reads every task and every message. If either read fails the
// error is returned with no partial data.
func (f *Facade) Snapshot() (Snapshot, error) {
	taken := f.now().UTC()

	tasks, err := f.queue.List(taskqueue.Filter{})
	if err != nil {
		return Snapshot{}, err
	}
	messages, err := f.mb.ReadAll()
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		TakenAt:  taken,
		Status:   taskqueue.Summarize(tasks),
		Tasks:    tasks,
		Messages: messages,
	}, nil
}
