package taskqueue

import (
	"cmp"
	"slices"

	"github.com/mcfearsome/cc-colony-sub001/internal/errors"
)

// Lookup resolves a task id against some view of the store.
type Lookup func(id string) (*Task, bool)

// lookupFrom indexes a slice of tasks.
func lookupFrom(tasks []*Task) Lookup {
	byID := make(map[string]*Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	return func(id string) (*Task, bool) {
		t, ok := byID[id]
		return t, ok
	}
}

// assignmentAllows reports whether agent may claim a task assigned to
// assignedTo.
func assignmentAllows(assignedTo, agent string) bool {
	return assignedTo == "" || assignedTo == AutoAssign || assignedTo == agent
}

// CheckClaimable returns nil if agent may claim task right now, otherwise
// the error a claim would fail with. Dependencies are checked before the
// assignment so an incomplete dependency is reported regardless of who the
// task is assigned to.
func CheckClaimable(task *Task, agent string, lookup Lookup) error {
	switch {
	case task.Status.IsOwned():
		return errors.NewConflictError(task.ID, "already claimed").WithOwner(task.ClaimedBy)
	case task.Status != TaskPending:
		return errors.NewInvalidTransitionError(task.ID, string(task.Status), string(TaskClaimed))
	}

	for _, depID := range task.Dependencies {
		dep, ok := lookup(depID)
		if !ok {
			return errors.NewInvalidDependencyError(task.ID, depID, "does not exist")
		}
		if dep.Status != TaskCompleted {
			return errors.NewInvalidDependencyError(task.ID, depID, "is "+string(dep.Status)+", not completed")
		}
	}

	if !assignmentAllows(task.AssignedTo, agent) {
		return errors.NewUnauthorizedError(task.ID, agent, task.AssignedTo)
	}
	return nil
}

// IsClaimable returns true if the task is pending, every dependency exists
// and is completed, and its assignment admits agent.
func IsClaimable(task *Task, agent string, lookup Lookup) bool {
	return CheckClaimable(task, agent, lookup) == nil
}

// dependenciesMet ignores assignment; used for queue depth counts.
func dependenciesMet(task *Task, lookup Lookup) bool {
	if task.Status != TaskPending {
		return false
	}
	for _, depID := range task.Dependencies {
		dep, ok := lookup(depID)
		if !ok || dep.Status != TaskCompleted {
			return false
		}
	}
	return true
}

// FindCycle reports the path by which id would reach itself if it were
// created with deps. The path starts and ends with id; nil means no cycle.
// Edges are followed only through tasks lookup knows about.
func FindCycle(id string, deps []string, lookup Lookup) []string {
	visited := make(map[string]bool)

	var walk func(cur string, path []string) []string
	walk = func(cur string, path []string) []string {
		if cur == id {
			return append(slices.Clip(path), cur)
		}
		if visited[cur] {
			return nil
		}
		visited[cur] = true

		task, ok := lookup(cur)
		if !ok {
			return nil
		}
		for _, next := range task.Dependencies {
			if found := walk(next, append(slices.Clip(path), cur)); found != nil {
				return found
			}
		}
		return nil
	}

	for _, dep := range deps {
		if found := walk(dep, []string{id}); found != nil {
			return found
		}
	}
	return nil
}

// unblockedBy returns the pending tasks that depend on completedID and whose
// dependencies are now all completed.
func unblockedBy(completedID string, tasks []*Task) []string {
	lookup := lookupFrom(tasks)
	var unblocked []string
	for _, task := range tasks {
		if !slices.Contains(task.Dependencies, completedID) {
			continue
		}
		if dependenciesMet(task, lookup) {
			unblocked = append(unblocked, task.ID)
		}
	}
	return unblocked
}

// sortTasks orders by priority (most urgent first), then creation time,
// then id.
func sortTasks(tasks []*Task) {
	slices.SortStableFunc(tasks, func(a, b *Task) int {
		if c := cmp.Compare(b.Priority.Rank(), a.Priority.Rank()); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
