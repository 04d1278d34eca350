// Package sim drives a scheduler with synthetic periodic jobs of known
// execution cost, one tick at a time, and records the resulting trace.
package sim

import (
	"errors"
	"fmt"
	"log/slog"

	"edfsched/internal/sched"
)

// TaskSpec describes one simulated periodic task.
type TaskSpec struct {
	sched.TaskParams
	Cost sched.Tick // execution ticks per job, at least 1
	// CostFn, when set, overrides Cost per job. Jobs are numbered from 0.
	CostFn func(job uint64) sched.Tick
}

func (ts TaskSpec) cost(job uint64) sched.Tick {
	c := ts.Cost
	if ts.CostFn != nil {
		c = ts.CostFn(job)
	}
	return max(c, 1)
}

type simTask struct {
	spec      TaskSpec
	jobs      uint64     // jobs released so far
	remaining sched.Tick // ticks left in the current job
	executed  sched.Tick // ticks spent on the CPU
}

// Simulator owns a scheduler and plays the role of every task on it.
type Simulator struct {
	sched   *sched.Scheduler
	tasks   map[sched.TaskID]*simTask
	trace   []sched.StatusEvent
	forward sched.Observer
	logger  *slog.Logger
	started bool
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithObserver forwards every scheduler event to obs after it is recorded.
func WithObserver(obs sched.Observer) Option {
	return func(s *Simulator) {
		s.forward = obs
	}
}

// WithLogger sets the logger handed to the scheduler.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) {
		s.logger = logger
	}
}

// New creates a simulator over a fresh scheduler built from cfg.
func New(cfg sched.Config, opts ...Option) *Simulator {
	s := &Simulator{
		tasks:  make(map[sched.TaskID]*simTask),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sched = sched.New(cfg, sched.WithObserver(s.observe), sched.WithLogger(s.logger))
	return s
}

// Scheduler exposes the underlying scheduler for queries.
func (s *Simulator) Scheduler() *sched.Scheduler { return s.sched }

// Add creates a task on the scheduler.
func (s *Simulator) Add(spec TaskSpec) (sched.TaskID, error) {
	st := &simTask{spec: spec}
	id, err := s.sched.Create(spec.TaskParams)
	if err != nil {
		return 0, fmt.Errorf("add task %q: %w", spec.Name, err)
	}
	s.tasks[id] = st
	st.startJob()
	return id, nil
}

// Delete removes a task from the scheduler and the simulation.
func (s *Simulator) Delete(id sched.TaskID) error {
	return s.sched.Delete(id)
}

func (st *simTask) startJob() {
	st.remaining = st.spec.cost(st.jobs)
	st.jobs++
}

func (s *Simulator) observe(ev sched.StatusEvent) {
	s.trace = append(s.trace, ev)
	switch ev.Kind {
	case sched.StatusRelease:
		if st, ok := s.tasks[ev.TaskID]; ok {
			st.startJob()
		}
	case sched.StatusDelete:
		delete(s.tasks, ev.TaskID)
	}
	if s.forward != nil {
		s.forward(ev)
	}
}

// Start performs the initial dispatch. Step calls it on first use.
func (s *Simulator) Start() {
	if s.started {
		return
	}
	s.started = true
	s.sched.Dispatch()
}

// Step simulates one tick: the running task executes for the tick that
// elapses, completes its job if that was its last tick, and then the tick's
// releases and dispatch run.
func (s *Simulator) Step() {
	s.Start()
	s.sched.Advance()
	if id, ok := s.sched.Running(); ok {
		if st, ok := s.tasks[id]; ok {
			st.executed++
			st.remaining--
			if st.remaining == 0 {
				// A task deleted while running is reaped by the delay call.
				err := s.sched.DelayUntilNextPeriod(id)
				if err != nil && !errors.Is(err, sched.ErrNotFound) {
					s.logger.Error("job completion failed", "task_id", id, "error", err)
				}
			}
		}
	}
	s.sched.Schedule()
}

// Run steps the simulation n ticks forward.
func (s *Simulator) Run(n sched.Tick) {
	s.Start()
	for range n {
		s.Step()
	}
}

// Stall advances time by n ticks with the scheduler masked, then lets one
// scheduling pass catch up. Running tasks make no progress meanwhile.
func (s *Simulator) Stall(n sched.Tick) {
	s.Start()
	for range n {
		s.sched.Advance()
	}
	s.sched.Schedule()
}

// Trace returns the events recorded so far.
func (s *Simulator) Trace() []sched.StatusEvent {
	out := make([]sched.StatusEvent, len(s.trace))
	copy(out, s.trace)
	return out
}

// Executed returns how many ticks the task has spent on the CPU.
func (s *Simulator) Executed(id sched.TaskID) sched.Tick {
	if st, ok := s.tasks[id]; ok {
		return st.executed
	}
	return 0
}

// Loads returns the task set in the form sched.Analyze expects, using each
// task's first job cost.
func (s *Simulator) Loads() []sched.TaskLoad {
	var loads []sched.TaskLoad
	for _, ti := range s.sched.Tasks() {
		st, ok := s.tasks[ti.ID]
		if !ok {
			continue
		}
		loads = append(loads, sched.TaskLoad{
			Name:             ti.Name,
			Period:           ti.Period,
			RelativeDeadline: ti.RelativeDeadline,
			Cost:             st.spec.cost(0),
		})
	}
	return loads
}
