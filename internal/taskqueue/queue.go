package taskqueue

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/mcfearsome/cc-colony-sub001/internal/errors"
	"github.com/mcfearsome/cc-colony-sub001/internal/recordstore"
)

// TaskQueue is the task state machine. It holds no task state of its own:
// every call reads the record store, validates, and persists through the
// Arbiter, so any number of processes can share one queue.
type TaskQueue struct {
	store   recordstore.Store
	arbiter *Arbiter
	opts    options
}

// New creates a TaskQueue over store.
func New(store recordstore.Store, opts ...Option) *TaskQueue {
	o := buildOptions(opts)
	return &TaskQueue{
		store:   store,
		arbiter: &Arbiter{store: store, opts: o},
		opts:    o,
	}
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Statuses   []TaskStatus
	Match      string // glob over task ids, e.g. "auth-*"
	AssignedTo string
}

func (f Filter) compile() (func(*Task) bool, error) {
	var g glob.Glob
	if f.Match != "" {
		var err error
		g, err = glob.Compile(f.Match)
		if err != nil {
			return nil, errors.NewValidationError("invalid id pattern").WithField("match").WithValue(f.Match).WithCause(err)
		}
	}
	return func(t *Task) bool {
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, t.Status) {
			return false
		}
		if g != nil && !g.Match(t.ID) {
			return false
		}
		if f.AssignedTo != "" && t.AssignedTo != f.AssignedTo {
			return false
		}
		return true
	}, nil
}

// Create persists a new pending task. Every dependency must already exist
// and the new edges must not close a cycle; otherwise nothing is written.
func (q *TaskQueue) Create(n NewTask) (*Task, error) {
	if err := n.validate(); err != nil {
		return nil, err
	}

	for _, dep := range n.Dependencies {
		if dep == n.ID {
			return nil, errors.NewDependencyCycleError(n.ID, []string{n.ID, n.ID})
		}
	}

	existing, err := q.all()
	if err != nil {
		return nil, err
	}
	lookup := lookupFrom(existing)

	if _, ok := lookup(n.ID); ok {
		return nil, errors.NewDuplicateIDError("task", n.ID)
	}
	for _, dep := range n.Dependencies {
		if _, ok := lookup(dep); !ok {
			return nil, errors.NewInvalidDependencyError(n.ID, dep, "does not exist")
		}
	}
	if cycle := FindCycle(n.ID, n.Dependencies, lookup); cycle != nil {
		return nil, errors.NewDependencyCycleError(n.ID, cycle)
	}

	now := q.now()
	task := &Task{
		ID:           n.ID,
		Title:        n.Title,
		Description:  n.Description,
		Status:       TaskPending,
		Priority:     n.Priority,
		AssignedTo:   n.AssignedTo,
		Dependencies: n.Dependencies,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	data, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task %s: %w", n.ID, err)
	}
	rec, err := q.store.Create(TasksTable, n.ID, data)
	if err != nil {
		if errors.Is(err, recordstore.ErrExists) {
			return nil, errors.NewDuplicateIDError("task", n.ID)
		}
		return nil, err
	}
	task.Version = rec.Version

	q.opts.logger.WithTask(task.ID).Info("task created",
		"priority", task.Priority, "assigned_to", task.AssignedTo, "dependencies", task.Dependencies)
	q.publishCreated(task)
	return task, nil
}

// Get returns the task with the given id.
func (q *TaskQueue) Get(id string) (*Task, error) {
	return q.arbiter.load(id)
}

// List returns the tasks matching f, most urgent first.
func (q *TaskQueue) List(f Filter) ([]*Task, error) {
	match, err := f.compile()
	if err != nil {
		return nil, err
	}
	tasks, err := q.all()
	if err != nil {
		return nil, err
	}
	out := make([]*Task, 0, len(tasks))
	for _, t := range tasks {
		if match(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// all reads every task in sorted order. Records that fail to decode are
// skipped with a warning so one bad file cannot hide the rest of the queue.
func (q *TaskQueue) all() ([]*Task, error) {
	recs, err := q.store.List(TasksTable)
	if err != nil {
		return nil, err
	}
	tasks := make([]*Task, 0, len(recs))
	for _, rec := range recs {
		t, err := decodeTask(rec)
		if err != nil {
			q.opts.logger.WithTask(rec.ID).Warn("skipping unreadable task record", "error", err)
			continue
		}
		tasks = append(tasks, t)
	}
	sortTasks(tasks)
	return tasks, nil
}

// Claim assigns a pending task to agent. See TryClaim.
func (q *TaskQueue) Claim(id, agent string) (*Task, error) {
	task, _, err := q.TryClaim(id, agent)
	return task, err
}

// TryClaim is Claim that also reports how many compare-and-swap attempts
// were used. Failures are:
//   - NotFound if the task does not exist
//   - Conflict if another agent owns it, including a lost race
//   - InvalidTransition if it is completed or cancelled
//   - InvalidDependency if a dependency is missing or not completed
//   - Unauthorized if it is assigned to a different agent
func (q *TaskQueue) TryClaim(id, agent string) (*Task, int, error) {
	if err := ValidateAgentID(agent); err != nil {
		return nil, 0, err
	}

	task, attempts, err := q.arbiter.Mutate(id, func(t *Task) error {
		lookup, lookupErr := q.storeLookup()
		if err := CheckClaimable(t, agent, lookup); err != nil {
			if *lookupErr != nil {
				return *lookupErr
			}
			return err
		}
		now := q.now()
		t.Status = TaskClaimed
		t.ClaimedBy = agent
		t.ClaimedAt = &now
		t.UpdatedAt = now
		return nil
	})
	if err != nil {
		q.opts.logger.WithTask(id).WithAgent(agent).Debug("claim rejected", "error", err, "attempts", attempts)
		return nil, attempts, err
	}

	q.opts.logger.WithTask(id).WithAgent(agent).Info("task claimed", "attempts", attempts)
	q.publishClaimed(task, attempts)
	return task, attempts, nil
}

// storeLookup resolves dependencies with fresh reads. Errors other than a
// missing record are kept so the caller can surface them instead of
// misreporting a dependency as absent.
func (q *TaskQueue) storeLookup() (Lookup, *error) {
	var firstErr error
	lookup := func(id string) (*Task, bool) {
		t, err := q.arbiter.load(id)
		if err != nil {
			if !errors.Is(err, &errors.NotFoundError{}) && firstErr == nil {
				firstErr = err
			}
			return nil, false
		}
		return t, true
	}
	return lookup, &firstErr
}

// Start moves a claimed task to in progress.
func (q *TaskQueue) Start(id string) (*Task, error) {
	return q.transition(id, fixed(TaskInProgress), []TaskStatus{TaskClaimed}, func(t *Task, now time.Time) {
		if t.StartedAt == nil {
			t.StartedAt = &now
		}
	})
}

// Progress records percent complete on an in-progress task. The range is
// checked before the state so an out-of-range value is always a
// ValidationError.
func (q *TaskQueue) Progress(id string, percent int) (*Task, error) {
	if percent < 0 || percent > 100 {
		return nil, errors.NewValidationError("progress must be between 0 and 100").
			WithField("progress").WithValue(percent)
	}
	return q.transition(id, fixed(TaskInProgress), []TaskStatus{TaskInProgress}, func(t *Task, _ time.Time) {
		t.Progress = percent
	})
}

// Block pauses an owned task with a reason.
func (q *TaskQueue) Block(id, reason string) (*Task, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, errors.NewValidationError("block reason is required").WithField("reason")
	}
	return q.transition(id, fixed(TaskBlocked), []TaskStatus{TaskClaimed, TaskInProgress}, func(t *Task, _ time.Time) {
		t.BlockedReason = reason
	})
}

// Unblock resumes a blocked task: in progress if it had been started,
// claimed otherwise.
func (q *TaskQueue) Unblock(id string) (*Task, error) {
	resume := func(t *Task) TaskStatus {
		if t.StartedAt != nil {
			return TaskInProgress
		}
		return TaskClaimed
	}
	return q.transition(id, resume, []TaskStatus{TaskBlocked}, func(t *Task, _ time.Time) {
		t.BlockedReason = ""
	})
}

// Complete finishes an owned task and returns the ids of pending tasks that
// became claimable as a result.
func (q *TaskQueue) Complete(id string) (*Task, []string, error) {
	task, err := q.transition(id, fixed(TaskCompleted), []TaskStatus{TaskClaimed, TaskInProgress}, func(t *Task, now time.Time) {
		t.Progress = 100
		t.CompletedAt = &now
	})
	if err != nil {
		return nil, nil, err
	}

	tasks, err := q.all()
	if err != nil {
		// The completion itself is committed; only the report is missing.
		q.opts.logger.WithTask(id).Warn("could not compute unblocked tasks", "error", err)
		return task, nil, nil
	}
	unblocked := unblockedBy(id, tasks)
	if len(unblocked) > 0 {
		q.opts.logger.WithTask(id).Info("dependents unblocked", "tasks", unblocked)
		q.publishUnblocked(id, unblocked)
	}
	return task, unblocked, nil
}

// Cancel abandons any non-terminal task.
func (q *TaskQueue) Cancel(id string) (*Task, error) {
	return q.transition(id, fixed(TaskCancelled),
		[]TaskStatus{TaskPending, TaskClaimed, TaskInProgress, TaskBlocked},
		func(t *Task, _ time.Time) {
			t.BlockedReason = ""
		})
}

// Delete removes a task in any state. Tasks that depended on it can no
// longer become claimable; they are reported in the log.
func (q *TaskQueue) Delete(id string) (*Task, error) {
	task, err := q.arbiter.Remove(id, nil)
	if err != nil {
		return nil, err
	}

	log := q.opts.logger.WithTask(id)
	log.Info("task deleted", "status", task.Status)

	if tasks, err := q.all(); err == nil {
		var orphaned []string
		for _, t := range tasks {
			if !t.Status.IsTerminal() && slices.Contains(t.Dependencies, id) {
				orphaned = append(orphaned, t.ID)
			}
		}
		if len(orphaned) > 0 {
			log.Warn("deleted task was a dependency of open tasks", "tasks", orphaned)
		}
	}

	q.publishDeleted(task)
	return task, nil
}

// ForAgent lists tasks claimed by or assigned to agent, in any status.
func (q *TaskQueue) ForAgent(agent string) ([]*Task, error) {
	tasks, err := q.all()
	if err != nil {
		return nil, err
	}
	var out []*Task
	for _, t := range tasks {
		if t.ClaimedBy == agent || t.AssignedTo == agent {
			out = append(out, t)
		}
	}
	return out, nil
}

// Claimable lists the tasks agent could claim right now, most urgent first.
func (q *TaskQueue) Claimable(agent string) ([]*Task, error) {
	if err := ValidateAgentID(agent); err != nil {
		return nil, err
	}
	tasks, err := q.all()
	if err != nil {
		return nil, err
	}
	lookup := lookupFrom(tasks)
	var out []*Task
	for _, t := range tasks {
		if IsClaimable(t, agent, lookup) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Status returns a snapshot of the current queue state counts.
func (q *TaskQueue) Status() (QueueStatus, error) {
	tasks, err := q.all()
	if err != nil {
		return QueueStatus{}, err
	}
	return Summarize(tasks), nil
}

// Summarize counts tasks by status. Claimable counts pending tasks whose
// dependencies are all completed, regardless of assignment.
func Summarize(tasks []*Task) QueueStatus {
	lookup := lookupFrom(tasks)
	var s QueueStatus
	s.Total = len(tasks)
	for _, task := range tasks {
		switch task.Status {
		case TaskPending:
			s.Pending++
			if dependenciesMet(task, lookup) {
				s.Claimable++
			}
		case TaskClaimed:
			s.Claimed++
		case TaskInProgress:
			s.InProgress++
		case TaskBlocked:
			s.Blocked++
		case TaskCompleted:
			s.Completed++
		case TaskCancelled:
			s.Cancelled++
		}
	}
	return s
}

func fixed(s TaskStatus) func(*Task) TaskStatus {
	return func(*Task) TaskStatus { return s }
}

// transition runs one state machine edge through the arbiter. target picks
// the destination from the current task; allowed lists the source states.
func (q *TaskQueue) transition(id string, target func(*Task) TaskStatus, allowed []TaskStatus, apply func(*Task, time.Time)) (*Task, error) {
	var from TaskStatus
	task, _, err := q.arbiter.Mutate(id, func(t *Task) error {
		to := target(t)
		if !slices.Contains(allowed, t.Status) {
			return errors.NewInvalidTransitionError(t.ID, string(t.Status), string(to))
		}
		from = t.Status
		now := q.now()
		apply(t, now)
		t.Status = to
		t.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	q.opts.logger.WithTask(id).WithAgent(task.ClaimedBy).Info("task transitioned", "from", from, "to", task.Status)
	q.publishTransition(task, from)
	return task, nil
}

func (q *TaskQueue) now() time.Time {
	return q.opts.now().UTC()
}
