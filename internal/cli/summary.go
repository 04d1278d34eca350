package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"edfsched/internal/sched"
)

func comma(n uint64) string { return humanize.Comma(int64(n)) }

// printSummary writes per-task counters and scheduler totals.
func printSummary(w io.Writer, tasks []sched.TaskInfo, st sched.SchedulerStats) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPERIOD\tDEADLINE\tRELEASES\tDISPATCHES\tPREEMPTED\tCOMPLETED\tMISSED\tOVERRUNS")
	for _, ti := range tasks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			ti.ID, ti.Name,
			comma(uint64(ti.Period)), comma(uint64(ti.RelativeDeadline)),
			comma(ti.Stats.Releases), comma(ti.Stats.Dispatches), comma(ti.Stats.Preemptions),
			comma(ti.Stats.Completions), comma(ti.Stats.DeadlineMisses), comma(ti.Stats.Overruns))
	}
	tw.Flush()

	idlePct := 0.0
	if st.Now > 0 {
		idlePct = 100 * float64(st.IdleTicks) / float64(st.Now)
	}
	fmt.Fprintf(w, "\nticks: %s  idle: %s (%.1f%%)  context switches: %s  misses: %s  overruns: %s  stacks: %s / %s\n",
		comma(uint64(st.Now)), comma(st.IdleTicks), idlePct, comma(st.ContextSwitches),
		comma(st.DeadlineMisses), comma(st.Overruns),
		humanize.IBytes(uint64(st.ArenaUsed)), humanize.IBytes(uint64(st.ArenaBytes)))
}
