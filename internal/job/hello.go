package job

import (
	"fmt"
	"io"

	"edfsched/internal/kernel"
)

// Hello returns an entry that prints one line per job.
func Hello(w io.Writer, period uint64) kernel.Entry {
	return func(tc *kernel.TaskContext) {
		for {
			fmt.Fprintf(w, "Hello from %s (period %d ticks)\n", tc.Name(), period)
			if err := tc.DelayUntilNextPeriod(); err != nil {
				return
			}
		}
	}
}
