package sched

// TaskStats counts scheduling events for one task.
type TaskStats struct {
	Releases       uint64
	Dispatches     uint64
	Preemptions    uint64
	Completions    uint64
	DeadlineMisses uint64
	Overruns       uint64
}

// SchedulerStats is a scheduler-wide snapshot.
type SchedulerStats struct {
	Now             Tick
	Tasks           int
	Ready           int
	Running         TaskID // zero when idle
	IdleTicks       uint64
	ContextSwitches uint64
	ArenaUsed       int
	ArenaBytes      int
	DeadlineMisses  uint64
	Overruns        uint64
}
