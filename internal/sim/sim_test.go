package sim

import (
	"bytes"
	"errors"
	"log/slog"
	"slices"
	"testing"

	"edfsched/internal/sched"
)

type dispatch struct {
	tick sched.Tick
	id   sched.TaskID
}

func dispatches(trace []sched.StatusEvent) []dispatch {
	var out []dispatch
	for _, ev := range trace {
		if ev.Kind == sched.StatusDispatch {
			out = append(out, dispatch{ev.Tick, ev.TaskID})
		}
	}
	return out
}

func events(trace []sched.StatusEvent, kind sched.StatusKind) []sched.StatusEvent {
	var out []sched.StatusEvent
	for _, ev := range trace {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func task(name string, period, deadline, cost sched.Tick) TaskSpec {
	return TaskSpec{
		TaskParams: sched.TaskParams{Name: name, Period: period, RelativeDeadline: deadline},
		Cost:       cost,
	}
}

func mustAdd(t *testing.T, s *Simulator, spec TaskSpec) sched.TaskID {
	t.Helper()
	id, err := s.Add(spec)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	return id
}

func TestTwoTaskSchedule(t *testing.T) {
	s := New(sched.DefaultConfig())
	a := mustAdd(t, s, task("A", 500, 500, 100))
	b := mustAdd(t, s, task("B", 1000, 1000, 200))
	s.Run(1001)

	want := []dispatch{{0, a}, {100, b}, {500, a}, {1000, a}}
	if got := dispatches(s.Trace()); !slices.Equal(got, want) {
		t.Fatalf("dispatches = %v, want %v", got, want)
	}

	var completes []dispatch
	for _, ev := range events(s.Trace(), sched.StatusComplete) {
		completes = append(completes, dispatch{ev.Tick, ev.TaskID})
	}
	if want := []dispatch{{100, a}, {300, b}, {600, a}}; !slices.Equal(completes, want) {
		t.Errorf("completions = %v, want %v", completes, want)
	}

	var releases []dispatch
	for _, ev := range events(s.Trace(), sched.StatusRelease) {
		releases = append(releases, dispatch{ev.Tick, ev.TaskID})
	}
	if want := []dispatch{{500, a}, {1000, a}, {1000, b}}; !slices.Equal(releases, want) {
		t.Errorf("releases = %v, want %v", releases, want)
	}

	if got := s.Scheduler().ReadyQueue(); !slices.Equal(got, []sched.TaskID{b}) {
		t.Errorf("ready queue at 1001 = %v, want [%d]", got, b)
	}
	st := s.Scheduler().Snapshot()
	if st.DeadlineMisses != 0 || st.Overruns != 0 {
		t.Errorf("stats = %+v", st)
	}
	if got := s.Executed(a); got != 201 {
		t.Errorf("Executed(A) = %d, want 201", got)
	}
}

func TestEqualDeadlinesFollowCreationOrder(t *testing.T) {
	s := New(sched.DefaultConfig())
	a := mustAdd(t, s, task("A", 1000, 1000, 10))
	b := mustAdd(t, s, task("B", 1000, 1000, 10))
	s.Run(20)

	want := []dispatch{{0, a}, {10, b}}
	if got := dispatches(s.Trace()); !slices.Equal(got, want) {
		t.Errorf("dispatches = %v, want %v", got, want)
	}
}

func TestEarliestDeadlineAlwaysRuns(t *testing.T) {
	s := New(sched.DefaultConfig())
	mustAdd(t, s, task("a", 7, 7, 2))
	mustAdd(t, s, task("b", 11, 9, 3))
	mustAdd(t, s, task("c", 13, 13, 3))
	mustAdd(t, s, TaskSpec{
		TaskParams: sched.TaskParams{Name: "d", Period: 29, RelativeDeadline: 29},
		CostFn:     func(job uint64) sched.Tick { return sched.Tick(1 + job%3) },
	})

	for range 3000 {
		s.Step()
		var cur *sched.TaskInfo
		tasks := s.Scheduler().Tasks()
		for i := range tasks {
			if tasks[i].State == sched.StateRunning {
				cur = &tasks[i]
			}
		}
		for _, ti := range tasks {
			if ti.State != sched.StateReady {
				continue
			}
			if cur == nil {
				t.Fatalf("tick %d: task %d ready while the CPU is idle", s.Scheduler().Now(), ti.ID)
			}
			if ti.AbsoluteDeadline < cur.AbsoluteDeadline {
				t.Fatalf("tick %d: task %d (deadline %d) waits behind task %d (deadline %d)",
					s.Scheduler().Now(), ti.ID, ti.AbsoluteDeadline, cur.ID, cur.AbsoluteDeadline)
			}
		}
	}
	if got := s.Scheduler().Snapshot().DeadlineMisses; got != 0 {
		t.Errorf("feasible set missed %d deadlines", got)
	}
}

func TestReleasesDoNotDrift(t *testing.T) {
	s := New(sched.DefaultConfig())
	mustAdd(t, s, task("a", 10, 10, 2))
	mustAdd(t, s, task("b", 7, 7, 3))

	check := func() {
		t.Helper()
		now := s.Scheduler().Now()
		for _, ti := range s.Scheduler().Tasks() {
			if ti.NextRelease%ti.Period != 0 || ti.NextRelease <= now {
				t.Fatalf("tick %d: task %s next release %d", now, ti.Name, ti.NextRelease)
			}
		}
	}

	for range 5 {
		s.Step()
		check()
	}
	s.Stall(37)
	check()
	for range 500 {
		s.Step()
		check()
	}

	a, _ := s.Scheduler().Lookup(1)
	if a.NextRelease != 550 {
		t.Errorf("NextRelease(a) = %d at tick %d, want 550", a.NextRelease, s.Scheduler().Now())
	}
	// The stall skipped the releases at 20, 30 and 40.
	if a.Stats.Overruns != 3 {
		t.Errorf("Overruns(a) = %d, want 3", a.Stats.Overruns)
	}
}

func TestCompletionAtDeadlineIsOnTime(t *testing.T) {
	s := New(sched.DefaultConfig())
	id := mustAdd(t, s, task("exact", 10, 10, 10))
	s.Run(100)

	st, _ := s.Scheduler().Stats(id)
	if st.DeadlineMisses != 0 || st.Overruns != 0 || st.Completions != 10 {
		t.Errorf("stats = %+v", st)
	}
	if got := s.Executed(id); got != 100 {
		t.Errorf("Executed = %d, want 100", got)
	}
}

func TestCompletionOneTickLateMisses(t *testing.T) {
	s := New(sched.DefaultConfig())
	id := mustAdd(t, s, task("late", 10, 10, 11))
	s.Run(12)

	misses := events(s.Trace(), sched.StatusDeadlineMiss)
	if len(misses) != 1 {
		t.Fatalf("misses = %v, want one", misses)
	}
	if misses[0].Tick != 11 || misses[0].Deadline != 10 || misses[0].TaskID != id {
		t.Errorf("miss = %+v", misses[0])
	}
	if missed, _ := s.Scheduler().IsDeadlineMissed(id); !missed {
		t.Error("IsDeadlineMissed = false after a late completion")
	}
}

func TestOverrunReportedOnce(t *testing.T) {
	s := New(sched.DefaultConfig())
	id := mustAdd(t, s, TaskSpec{
		TaskParams: sched.TaskParams{Name: "long", Period: 10, RelativeDeadline: 10},
		CostFn: func(job uint64) sched.Tick {
			if job == 0 {
				return 15
			}
			return 1
		},
	})

	for range 40 {
		s.Step()
		q := s.Scheduler().ReadyQueue()
		if len(q) > 1 {
			t.Fatalf("tick %d: ready queue %v", s.Scheduler().Now(), q)
		}
		if cur, ok := s.Scheduler().Running(); ok && slices.Contains(q, cur) {
			t.Fatalf("tick %d: running task also queued", s.Scheduler().Now())
		}
	}

	overruns := events(s.Trace(), sched.StatusOverrun)
	if len(overruns) != 1 || overruns[0].Tick != 10 {
		t.Errorf("overruns = %v, want one at tick 10", overruns)
	}
	if got := len(events(s.Trace(), sched.StatusDeadlineMiss)); got != 1 {
		t.Errorf("misses = %d, want 1", got)
	}
	if got := s.Executed(id); got != 17 {
		t.Errorf("Executed = %d, want 17", got)
	}
}

func TestDeleteDuringSimulation(t *testing.T) {
	var forwarded int
	s := New(sched.DefaultConfig(), WithObserver(func(sched.StatusEvent) { forwarded++ }))
	a := mustAdd(t, s, task("a", 10, 10, 5))
	b := mustAdd(t, s, task("b", 20, 20, 5))
	s.Run(2)

	if err := s.Delete(a); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(a); err == nil {
		t.Error("second Delete succeeded")
	}
	s.Run(10)

	if got := dispatches(s.Trace()); !slices.Equal(got, []dispatch{{0, a}, {3, b}}) {
		t.Errorf("dispatches = %v", got)
	}
	if s.Executed(a) != 0 {
		t.Error("deleted task still tracked")
	}
	if forwarded != len(s.Trace()) {
		t.Errorf("forwarded %d of %d events", forwarded, len(s.Trace()))
	}
}

func TestLoads(t *testing.T) {
	s := New(sched.DefaultConfig())
	mustAdd(t, s, task("A", 500, 500, 100))
	mustAdd(t, s, task("B", 1000, 1000, 200))

	r := sched.Analyze(s.Loads())
	if r.Utilization != 0.4 || !r.Schedulable {
		t.Errorf("report = %+v", r)
	}
}

func TestCompletionAdmitsReleaseDueSameTick(t *testing.T) {
	s := New(sched.DefaultConfig())
	a := mustAdd(t, s, task("A", 10, 10, 4))
	mustAdd(t, s, task("B", 20, 20, 6))
	x := mustAdd(t, s, task("X", 100, 100, 5))
	s.Run(20)

	var at10 []string
	for _, ev := range s.Trace() {
		if ev.Tick == 10 {
			at10 = append(at10, ev.Kind.String()+" "+ev.Name)
		}
	}
	if want := []string{"Complete B", "Release A", "Dispatch A"}; !slices.Equal(at10, want) {
		t.Errorf("events at tick 10 = %v, want %v", at10, want)
	}

	st, _ := s.Scheduler().Stats(x)
	if st.Preemptions != 0 || st.Dispatches != 1 || st.Completions != 1 {
		t.Errorf("X stats = %+v", st)
	}
	if got := dispatches(s.Trace()); !slices.Contains(got, dispatch{10, a}) {
		t.Errorf("dispatches = %v", got)
	}
}

func TestDeletedTaskFinishingIsQuiet(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelError}))
	s := New(sched.DefaultConfig(), WithLogger(logger))
	a := mustAdd(t, s, task("a", 10, 10, 3))
	s.Run(2)
	if err := s.Delete(a); err != nil {
		t.Fatal(err)
	}
	s.Step()

	if _, err := s.Scheduler().Lookup(a); !errors.Is(err, sched.ErrNotFound) {
		t.Errorf("Lookup err = %v", err)
	}
	if len(events(s.Trace(), sched.StatusDelete)) != 1 || len(events(s.Trace(), sched.StatusComplete)) != 0 {
		t.Errorf("trace = %v", s.Trace())
	}
	if logs.Len() != 0 {
		t.Errorf("unexpected error log: %s", logs.String())
	}
}
