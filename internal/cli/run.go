package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"edfsched/internal/job"
	"edfsched/internal/kernel"
	"edfsched/internal/logging"
	"edfsched/internal/sched"
	"edfsched/internal/statusapi"
	"edfsched/internal/trace"
)

func newRunCmd() *cobra.Command {
	var (
		duration time.Duration
		httpAddr string
		events   bool
		csvPath  string
		dbPath   string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured tasks in real time",
		Long: "run starts one goroutine per configured task and schedules them EDF on a real-time " +
			"tick until interrupted or until --duration elapses.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			runID := logging.NewRunID()
			log := logging.WithRun(logger, runID)

			if !cmd.Flags().Changed("http") {
				httpAddr = cfg.HTTPAddr
			}
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
			if events {
				sinks = append(sinks, trace.NewConsole(cmd.ErrOrStderr()))
			}
			rec := trace.NewRecorder(runID, log, sinks...)
			defer rec.Close()

			k := kernel.New(cfg.Scheduler, log, kernel.WithObserver(rec.Observe))
			stopKernel := func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := k.Stop(ctx); err != nil {
					log.Warn("tasks did not stop in time", "error", err)
				}
			}

			for _, tc := range cfg.Tasks {
				entry, err := job.Build(job.Spec{
					Workload: tc.Workload,
					Period:   tc.Params().Period,
					Cost:     sched.Tick(tc.Cost),
					FibN:     tc.FibN,
				}, job.Env{Out: out, Logger: log})
				if err != nil {
					stopKernel()
					return err
				}
				if _, err := k.CreatePeriodicTask(tc.Params(), entry); err != nil {
					// Startup policy: a task set that cannot be created fully is not run at all.
					stopKernel()
					return fmt.Errorf("failed to create EDF task %q: %w", tc.Name, err)
				}
			}

			if httpAddr != "" {
				srv := &http.Server{
					Addr:              httpAddr,
					Handler:           statusapi.New(k.Scheduler(), runID, log),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					log.Info("status API listening", "addr", httpAddr)
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Error("status API stopped", "error", err)
					}
				}()
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(ctx)
				}()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			k.Start(time.Duration(cfg.Scheduler.TickMS) * time.Millisecond)
			<-ctx.Done()
			stopKernel()

			fmt.Fprintf(out, "\nrun %s\n", runID)
			printSummary(out, k.Scheduler().Tasks(), k.Scheduler().Snapshot())
			return nil
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	cmd.Flags().StringVar(&httpAddr, "http", "", "Serve the status API on this address")
	cmd.Flags().BoolVar(&events, "events", false, "Print scheduler events to stderr")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Write the event trace to a CSV file")
	cmd.Flags().StringVar(&dbPath, "db", "", "Write the event trace to a SQLite database")
	return cmd
}
