package taskqueue

import (
	"encoding/json"
	"fmt"

	"github.com/mcfearsome/cc-colony-sub001/internal/errors"
	"github.com/mcfearsome/cc-colony-sub001/internal/recordstore"
)

// Arbiter applies read-validate-write cycles to task records using the
// store's compare-and-swap. When two writers race on the same task, the
// loser re-reads and re-validates against the winner's state, so exactly
// one claim can succeed and every other claimant sees the new owner.
type Arbiter struct {
	store recordstore.Store
	opts  options
}

// NewArbiter creates an Arbiter over the tasks table of store.
func NewArbiter(store recordstore.Store, opts ...Option) *Arbiter {
	return &Arbiter{store: store, opts: buildOptions(opts)}
}

// Mutate reads task id, passes a copy to fn, and writes the result back if
// the record is unchanged since the read. An error from fn aborts without
// writing. Returns the stored task and the number of attempts used.
func (a *Arbiter) Mutate(id string, fn func(*Task) error) (*Task, int, error) {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= a.opts.maxRetries; attempt++ {
		attempts++

		task, err := a.load(id)
		if err != nil {
			return nil, attempts, err
		}
		if err := fn(task); err != nil {
			return nil, attempts, err
		}

		data, err := json.Marshal(task)
		if err != nil {
			return nil, attempts, fmt.Errorf("failed to encode task %s: %w", id, err)
		}

		rec, err := a.store.CompareAndSwap(TasksTable, id, task.Version, data)
		switch {
		case err == nil:
			task.Version = rec.Version
			return task, attempts, nil
		case errors.Is(err, recordstore.ErrNoRecord):
			return nil, attempts, errors.NewNotFoundError("task", id)
		case !errors.Is(err, recordstore.ErrVersionMismatch):
			return nil, attempts, err
		}

		lastErr = err
		if attempt < a.opts.maxRetries {
			a.backoff(id, attempt)
		}
	}

	a.opts.logger.WithTask(id).Warn("retry budget exhausted", "attempts", attempts, "error", lastErr)
	return nil, attempts, errors.NewConflictError(id, "concurrent updates exhausted the retry budget").WithAttempts(attempts)
}

// Remove deletes task id after check approves the current state, retrying
// on version races like Mutate. Returns the task as it was last stored.
func (a *Arbiter) Remove(id string, check func(*Task) error) (*Task, error) {
	attempts := 0
	for attempt := 0; attempt <= a.opts.maxRetries; attempt++ {
		attempts++

		task, err := a.load(id)
		if err != nil {
			return nil, err
		}
		if check != nil {
			if err := check(task); err != nil {
				return nil, err
			}
		}

		err = a.store.Delete(TasksTable, id, task.Version)
		switch {
		case err == nil:
			return task, nil
		case errors.Is(err, recordstore.ErrNoRecord):
			return nil, errors.NewNotFoundError("task", id)
		case !errors.Is(err, recordstore.ErrVersionMismatch):
			return nil, err
		}

		if attempt < a.opts.maxRetries {
			a.backoff(id, attempt)
		}
	}
	return nil, errors.NewConflictError(id, "concurrent updates exhausted the retry budget").WithAttempts(attempts)
}

func (a *Arbiter) backoff(id string, attempt int) {
	delay := a.opts.backoff(attempt)
	if a.opts.onRetry != nil {
		a.opts.onRetry(id, attempt+1, delay)
	}
	a.opts.logger.WithTask(id).Debug("compare-and-swap lost, retrying", "attempt", attempt+1, "delay", delay)
	a.opts.sleep(delay)
}

// load reads and decodes one task.
func (a *Arbiter) load(id string) (*Task, error) {
	rec, err := a.store.Get(TasksTable, id)
	if err != nil {
		if errors.Is(err, recordstore.ErrNoRecord) {
			return nil, errors.NewNotFoundError("task", id)
		}
		if errors.Is(err, recordstore.ErrInvalidKey) {
			return nil, errors.NewNotFoundError("task", id).WithCause(err)
		}
		return nil, err
	}
	return decodeTask(rec)
}

func decodeTask(rec recordstore.Record) (*Task, error) {
	var task Task
	if err := json.Unmarshal(rec.Data, &task); err != nil {
		return nil, errors.NewStoreError("failed to decode task "+rec.ID, errors.Join(errors.ErrStoreCorrupted, err)).
			WithRetryable(false)
	}
	task.Version = rec.Version
	if task.Dependencies == nil {
		task.Dependencies = []string{}
	}
	return &task, nil
}
