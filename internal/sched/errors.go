package sched

import "errors"

var (
	// ErrInvalidParameters is returned by Create for a zero period or deadline.
	ErrInvalidParameters = errors.New("invalid task parameters")
	// ErrResourceExhausted is returned by Create when no task slot or stack space is left.
	ErrResourceExhausted = errors.New("scheduler resources exhausted")
	// ErrNotFound is returned for unknown or already deleted task ids.
	ErrNotFound = errors.New("task not found")
	// ErrNotRunning is returned when a task-only primitive is called for a task that is not running.
	ErrNotRunning = errors.New("task is not running")
	// ErrInvalidState is returned for a transition the task's current state does not allow.
	ErrInvalidState = errors.New("invalid task state")
)
