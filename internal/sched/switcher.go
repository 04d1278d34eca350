package sched

// ContextSwitcher saves and restores task execution contexts. The scheduler
// calls it from inside its critical section, so implementations must not
// block or call back into the scheduler.
type ContextSwitcher interface {
	// Suspend takes id off the CPU.
	Suspend(id TaskID)
	// Resume gives the CPU to id.
	Resume(id TaskID)
	// Discard releases id's context after the task has been deleted.
	Discard(id TaskID)
}

// nopSwitcher is used when the scheduler is driven without real contexts,
// e.g. by the simulator and tests.
type nopSwitcher struct{}

func (nopSwitcher) Suspend(TaskID) {}
func (nopSwitcher) Resume(TaskID)  {}
func (nopSwitcher) Discard(TaskID) {}
