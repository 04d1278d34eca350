package kernel

import (
	"context"

	"edfsched/internal/sched"
)

// TaskContext is a task's handle to the kernel. It must only be used from
// the task's own goroutine.
type TaskContext struct {
	id   sched.TaskID
	name string
	k    *Kernel
}

func (tc *TaskContext) ID() sched.TaskID { return tc.id }
func (tc *TaskContext) Name() string     { return tc.name }

// Now returns the current tick.
func (tc *TaskContext) Now() sched.Tick { return tc.k.sched.Now() }

// JobStart returns the tick at which the current job was first dispatched,
// however late the task's goroutine got to run.
func (tc *TaskContext) JobStart() sched.Tick {
	info, err := tc.k.sched.Lookup(tc.id)
	if err != nil {
		return tc.Now()
	}
	return info.JobStart
}

// Context is cancelled when the kernel stops.
func (tc *TaskContext) Context() context.Context { return tc.k.ctx }

// DelayUntilNextPeriod ends the current job and parks the task until its
// next release is dispatched. A non-nil error means the task has been
// deleted or the kernel stopped, and the entry should return.
func (tc *TaskContext) DelayUntilNextPeriod() error {
	if err := tc.k.sched.DelayUntilNextPeriod(tc.id); err != nil {
		return err
	}
	return tc.k.cpu.yield(tc.id)
}

// Checkpoint lets a pending preemption take effect. Long jobs should call
// it regularly; it returns immediately when the task keeps the CPU.
func (tc *TaskContext) Checkpoint() error {
	return tc.k.cpu.yield(tc.id)
}
