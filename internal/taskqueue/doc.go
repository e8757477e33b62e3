// Package taskqueue provides the dependency-aware task state machine that
// agent processes share through a [recordstore.Store].
//
// A task moves pending -> claimed -> in_progress -> completed, with blocked
// as a detour from claimed or in_progress and cancelled reachable from any
// non-terminal state. Any other request fails with an
// InvalidTransitionError naming the current and requested states.
//
// Nothing is cached between calls. Every mutation is a read, validate,
// compare-and-swap cycle run by the [Arbiter]; when the swap loses to another
// writer the cycle is retried with backoff, so concurrent claims on one task
// produce exactly one winner and every loser gets a ConflictError naming the
// owner. The retry budget, backoff, and sleep function are options so tests
// can make contention deterministic.
//
// Dependencies are fixed at creation. [TaskQueue.Create] rejects missing
// dependencies and any dependency set that would close a cycle (see
// [FindCycle]) without writing anything.
//
// Usage:
//
//	store, _ := recordstore.NewFileStore(".colony")
//	queue := taskqueue.New(store, taskqueue.WithMaxRetries(8))
//
//	queue.Create(taskqueue.NewTask{ID: "T1", Title: "Write parser"})
//	task, err := queue.Claim("T1", "agent-a")
//	if err == nil {
//	    queue.Start(task.ID)
//	    _, unblocked, _ := queue.Complete(task.ID)
//	    fmt.Println("now claimable:", unblocked)
//	}
package taskqueue
