package job

import (
	"runtime"

	"edfsched/internal/kernel"
	"edfsched/internal/sched"
)

// Spin returns an entry whose every job occupies the CPU for the given number
// of ticks, checkpointing in between so earlier deadlines can preempt it.
// The job's ticks are counted from its first dispatch; ticks spent preempted
// count towards the job, like wall-clock work would.
func Spin(ticks sched.Tick) kernel.Entry {
	return func(tc *kernel.TaskContext) {
		for {
			start := tc.JobStart()
			for tc.Now()-start < ticks {
				if err := tc.Checkpoint(); err != nil {
					return
				}
				select {
				case <-tc.Context().Done():
					return
				default:
					runtime.Gosched()
				}
			}
			if err := tc.DelayUntilNextPeriod(); err != nil {
				return
			}
		}
	}
}
