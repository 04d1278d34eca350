package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"edfsched/internal/sched"
)

func newCheckCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run the EDF utilization and density tests on the configured task set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			loads := make([]sched.TaskLoad, 0, len(cfg.Tasks))
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tCOST\tPERIOD\tDEADLINE\tU")
			for _, tc := range cfg.Tasks {
				l := sched.TaskLoad{
					Name:             tc.Name,
					Period:           sched.Tick(tc.Period),
					RelativeDeadline: sched.Tick(tc.Deadline),
					Cost:             sched.Tick(tc.Cost),
				}
				loads = append(loads, l)
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.3f\n", l.Name, l.Cost, l.Period, l.RelativeDeadline,
					float64(l.Cost)/float64(l.Period))
			}
			tw.Flush()

			r := sched.Analyze(loads)
			verdict := "schedulable"
			switch {
			case r.Overloaded:
				verdict = "overloaded: deadlines will be missed"
			case !r.Schedulable:
				verdict = "not guaranteed by the density test"
			}
			fmt.Fprintf(out, "\nutilization: %.3f  density: %.3f  => %s\n", r.Utilization, r.Density, verdict)

			if strict && !r.Schedulable {
				return errors.New("task set is not guaranteed schedulable")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero if the task set is not guaranteed schedulable")
	return cmd
}
