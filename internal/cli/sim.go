package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"edfsched/internal/logging"
	"edfsched/internal/sched"
	"edfsched/internal/sim"
	"edfsched/internal/trace"
)

func newSimCmd() *cobra.Command {
	var (
		ticks   uint64
		quiet   bool
		csvPath string
		dbPath  string
	)
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Simulate the configured task set tick by tick and print the schedule",
		Long: "sim runs the task set on the scheduler with synthetic jobs of the configured cost " +
			"and prints every scheduling event. The result is deterministic.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			runID := logging.NewRunID()
			log := logging.WithRun(logger, runID)

			if !cmd.Flags().Changed("csv") {
				csvPath = cfg.Trace.CSV
			}
			if !cmd.Flags().Changed("db") {
				dbPath = cfg.Trace.SQLite
			}
			sinks, err := openSinks(cmd.Context(), csvPath, dbPath, log)
			if err != nil {
				return err
			}
			if !quiet {
				sinks = append(sinks, trace.NewConsole(out))
			}
			rec := trace.NewRecorder(runID, log, sinks...)

			s := sim.New(cfg.Scheduler, sim.WithObserver(rec.Observe), sim.WithLogger(log))
			for _, tc := range cfg.Tasks {
				if _, err := s.Add(sim.TaskSpec{TaskParams: tc.Params(), Cost: sched.Tick(tc.Cost)}); err != nil {
					rec.Close()
					return err
				}
			}
			s.Run(sched.Tick(ticks))
			if err := rec.Close(); err != nil {
				return fmt.Errorf("close trace: %w", err)
			}

			fmt.Fprintf(out, "\nrun %s\n", runID)
			printSummary(out, s.Scheduler().Tasks(), s.Scheduler().Snapshot())
			return nil
		},
	}
	cmd.Flags().Uint64Var(&ticks, "ticks", 2000, "Number of ticks to simulate")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only print the summary")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Write the event trace to a CSV file")
	cmd.Flags().StringVar(&dbPath, "db", "", "Write the event trace to a SQLite database")
	return cmd
}

// openSinks opens the optional file-backed trace sinks.
func openSinks(ctx context.Context, csvPath, dbPath string, log *slog.Logger) ([]trace.Sink, error) {
	var sinks []trace.Sink
	if csvPath != "" {
		c, err := trace.NewCSV(csvPath)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, c)
	}
	if dbPath != "" {
		db, err := trace.NewSQLiteSink(dbPath, log)
		if err != nil {
			closeSinks(sinks)
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			closeSinks(sinks)
			return nil, err
		}
		sinks = append(sinks, db)
	}
	return sinks, nil
}

func closeSinks(sinks []trace.Sink) {
	for _, s := range sinks {
		s.Close()
	}
}
