// internal/sched/scheduler.go

package sched

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Scheduler is an earliest-deadline-first scheduler for periodic tasks.
// All state lives in the value; independent instances do not interact.
type Scheduler struct {
	mu        sync.Mutex       // the scheduler's critical section
	cfg       Config           // resource limits
	now       Tick             // current tick
	nextID    TaskID           // last assigned task id
	seq       uint64           // deadline queue insertion counter
	tasks     map[TaskID]*Task // all live tasks by ID
	ready     *deadlineQueue   // ready tasks ordered by absolute deadline
	releases  *releaseQueue    // non-suspended tasks ordered by next release
	running   TaskID           // zero when idle
	idle      bool             // an Idle event has been emitted for the current idle period
	arenaUsed int              // stack bytes held by live tasks
	reaping   int              // deleted running tasks awaiting destruction
	idleTicks uint64           // ticks that elapsed with no running task
	switches  uint64           // context switches performed
	misses    uint64           // deadline misses across all tasks
	overruns  uint64           // overruns across all tasks
	pending   []StatusEvent    // events to deliver when the critical section ends
	switcher  ContextSwitcher  // context switch capability
	observer  Observer         // optional event consumer
	logger    *slog.Logger
}

// Option configures optional Scheduler dependencies.
type Option func(*Scheduler)

// WithSwitcher sets the context switch implementation.
func WithSwitcher(cs ContextSwitcher) Option {
	return func(s *Scheduler) {
		if cs != nil {
			s.switcher = cs
		}
	}
}

// WithObserver registers a callback for scheduler events.
func WithObserver(obs Observer) Option {
	return func(s *Scheduler) {
		s.observer = obs
	}
}

// WithLogger sets the logger used for deadline misses, overruns and lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a new Scheduler instance with the given configuration.
func New(cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:      cfg.Normalize(),
		tasks:    make(map[TaskID]*Task),
		ready:    newDeadlineQueue(),
		releases: newReleaseQueue(),
		switcher: nopSwitcher{},
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "sched")
	return s
}

// Config returns the normalized configuration the scheduler runs with.
func (s *Scheduler) Config() Config { return s.cfg }

// Now returns the current tick.
func (s *Scheduler) Now() Tick {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Create admits a new periodic task. Its first job is released immediately
// with deadline now+RelativeDeadline; the task runs from the next dispatch.
// A deleted task still on the CPU no longer takes a task slot, but its stack
// stays reserved in the arena until it is destroyed at the next dispatch.
func (s *Scheduler) Create(p TaskParams) (TaskID, error) {
	var err error
	if p.Period == 0 {
		err = errors.Join(err, fmt.Errorf("%w: period must be greater than 0", ErrInvalidParameters))
	}
	if p.RelativeDeadline == 0 {
		err = errors.Join(err, fmt.Errorf("%w: relative deadline must be greater than 0", ErrInvalidParameters))
	}
	if p.StackBytes < 0 {
		err = errors.Join(err, fmt.Errorf("%w: stack size must not be negative", ErrInvalidParameters))
	}
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	if p.StackBytes == 0 {
		p.StackBytes = s.cfg.DefaultStackBytes
	}
	if len(s.tasks)-s.reaping >= s.cfg.MaxTasks {
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: task limit %d reached", ErrResourceExhausted, s.cfg.MaxTasks)
	}
	if s.arenaUsed+p.StackBytes > s.cfg.ArenaBytes {
		free := s.cfg.ArenaBytes - s.arenaUsed
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: stack of %d bytes does not fit, %d bytes free", ErrResourceExhausted, p.StackBytes, free)
	}

	s.nextID++
	t := newTask(s.nextID, p)
	s.tasks[t.ID] = t
	s.arenaUsed += t.StackBytes

	t.absDeadline = s.now + t.RelativeDeadline
	t.nextRelease = s.now + t.Period
	t.state = StateReady
	t.stats.Releases++
	s.enqueue(t)
	s.releases.Insert(t.ID, t.nextRelease)

	s.logger.Debug("task created", "task_id", t.ID, "name", t.Name,
		"period", t.Period, "deadline", t.absDeadline)
	s.emit(StatusCreate, t)
	s.unlockAndNotify()
	return t.ID, nil
}

// CreatePeriodicTask creates a task with the given period and relative deadline.
func (s *Scheduler) CreatePeriodicTask(name string, period, relativeDeadline Tick) (TaskID, error) {
	return s.Create(TaskParams{Name: name, Period: period, RelativeDeadline: relativeDeadline})
}

// Delete removes a task. A running task keeps the CPU until the next dispatch
// boundary and is destroyed there; to callers it is gone immediately.
func (s *Scheduler) Delete(id TaskID) error {
	s.mu.Lock()
	t, err := s.lookup(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	if t.state == StateRunning {
		t.reap = true
		s.reaping++
		s.releases.Remove(id)
		s.logger.Debug("deletion deferred to next dispatch", "task_id", id)
		s.mu.Unlock()
		return nil
	}
	s.destroy(t)
	s.unlockAndNotify()
	return nil
}

// DeleteTask is an alias of Delete.
func (s *Scheduler) DeleteTask(id TaskID) error { return s.Delete(id) }

// Lookup returns a copy of the task's control block.
func (s *Scheduler) Lookup(id TaskID) (TaskInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.lookup(id)
	if err != nil {
		return TaskInfo{}, err
	}
	return t.info(), nil
}

// Tasks returns every live task ordered by id.
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		if !t.reap {
			out = append(out, t.info())
		}
	}
	slices.SortFunc(out, func(a, b TaskInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Stats returns the task's event counters.
func (s *Scheduler) Stats(id TaskID) (TaskStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.lookup(id)
	if err != nil {
		return TaskStats{}, err
	}
	return t.stats, nil
}

// Snapshot returns scheduler-wide statistics.
func (s *Scheduler) Snapshot() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.reap {
			n++
		}
	}
	return SchedulerStats{
		Now:             s.now,
		Tasks:           n,
		Ready:           s.ready.Len(),
		Running:         s.running,
		IdleTicks:       s.idleTicks,
		ContextSwitches: s.switches,
		ArenaUsed:       s.arenaUsed,
		ArenaBytes:      s.cfg.ArenaBytes,
		DeadlineMisses:  s.misses,
		Overruns:        s.overruns,
	}
}

// Running returns the task currently holding the CPU.
func (s *Scheduler) Running() (TaskID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running, s.running != 0
}

// ReadyQueue lists ready task ids in the order they would be dispatched.
func (s *Scheduler) ReadyQueue() []TaskID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready.IDs()
}

// IsDeadlineMissed reports whether the task's current job has passed its
// deadline, or, between jobs, whether the last completed job did.
func (s *Scheduler) IsDeadlineMissed(id TaskID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.lookup(id)
	if err != nil {
		return false, err
	}
	if t.hasDeadline() {
		return t.missed || s.now > t.absDeadline, nil
	}
	return t.lastMissed, nil
}

// DelayUntilNextPeriod ends the running task's current job. The task stays
// off the CPU until its next release; a release that is already due is
// admitted before the next task is picked.
func (s *Scheduler) DelayUntilNextPeriod(id TaskID) error {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: task %d", ErrNotFound, id)
	}
	if t.state != StateRunning {
		s.mu.Unlock()
		return fmt.Errorf("%w: task %d is %s", ErrNotRunning, id, t.state)
	}
	if t.reap {
		// Deleted while running: this is its dispatch boundary.
		s.release()
		s.dispatch()
		s.unlockAndNotify()
		return fmt.Errorf("%w: task %d was deleted", ErrNotFound, id)
	}

	s.checkDeadline(t)
	t.lastMissed = t.missed
	t.stats.Completions++
	s.emit(StatusComplete, t)

	t.state = StateBlocked
	s.running = 0
	s.switcher.Suspend(id)
	s.release()
	s.dispatch()
	s.unlockAndNotify()
	return nil
}

// Suspend takes a task out of scheduling until Resume. An unfinished job is
// abandoned.
func (s *Scheduler) Suspend(id TaskID) error {
	s.mu.Lock()
	t, err := s.lookup(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if t.state == StateSuspended {
		s.mu.Unlock()
		return fmt.Errorf("%w: task %d is already suspended", ErrInvalidState, id)
	}

	wasRunning := t.state == StateRunning
	s.ready.Remove(id)
	s.releases.Remove(id)
	t.state = StateSuspended
	s.emit(StatusSuspend, t)
	if wasRunning {
		s.running = 0
		s.switcher.Suspend(id)
		s.release()
		s.dispatch()
	}
	s.unlockAndNotify()
	return nil
}

// Resume makes a suspended task eligible again. Its next release is moved
// forward by whole periods to the first boundary at or after now.
func (s *Scheduler) Resume(id TaskID) error {
	s.mu.Lock()
	t, err := s.lookup(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if t.state != StateSuspended {
		s.mu.Unlock()
		return fmt.Errorf("%w: task %d is %s, not suspended", ErrInvalidState, id, t.state)
	}

	if t.nextRelease < s.now {
		behind := s.now - t.nextRelease
		t.nextRelease += (behind + t.Period - 1) / t.Period * t.Period
	}
	t.state = StateBlocked
	s.releases.Insert(id, t.nextRelease)
	s.emit(StatusResume, t)
	s.unlockAndNotify()
	return nil
}

// Advance moves time forward by one tick without scheduling; it is the tick
// interrupt half of Tick.
func (s *Scheduler) Advance() Tick {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advance()
}

// Schedule runs the release engine for the current tick and then dispatches.
func (s *Scheduler) Schedule() {
	s.mu.Lock()
	s.release()
	s.dispatch()
	s.unlockAndNotify()
}

// Tick advances time by one tick, releases due tasks and dispatches.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	s.advance()
	s.release()
	s.dispatch()
	s.unlockAndNotify()
}

// Dispatch runs the dispatcher outside a tick, e.g. once after the initial
// tasks have been created.
func (s *Scheduler) Dispatch() {
	s.mu.Lock()
	s.dispatch()
	s.unlockAndNotify()
}

func (s *Scheduler) advance() Tick {
	s.now++
	if s.running == 0 {
		s.idleTicks++
	}
	return s.now
}

func (s *Scheduler) lookup(id TaskID) (*Task, error) {
	t, ok := s.tasks[id]
	if !ok || t.reap {
		return nil, fmt.Errorf("%w: task %d", ErrNotFound, id)
	}
	return t, nil
}

// enqueue inserts a freshly released job into the deadline queue.
func (s *Scheduler) enqueue(t *Task) {
	s.seq++
	t.seq = s.seq
	t.missed = false
	t.started = false
	s.ready.Insert(t.ID, t.key())
}

// destroy removes every trace of t. t must not be the running task unless
// the caller clears s.running.
func (s *Scheduler) destroy(t *Task) {
	s.ready.Remove(t.ID)
	s.releases.Remove(t.ID)
	delete(s.tasks, t.ID)
	if t.reap {
		s.reaping--
	}
	s.arenaUsed -= t.StackBytes
	t.state = StateDormant
	s.switcher.Discard(t.ID)
	s.logger.Debug("task deleted", "task_id", t.ID, "name", t.Name)
	s.emit(StatusDelete, t)
}

func (s *Scheduler) emit(kind StatusKind, t *Task) {
	ev := StatusEvent{Tick: s.now, Kind: kind}
	if t != nil {
		ev.TaskID = t.ID
		ev.Name = t.Name
		if t.hasDeadline() || kind == StatusComplete || kind == StatusDeadlineMiss {
			ev.Deadline = t.absDeadline
		}
	}
	if s.observer != nil {
		s.pending = append(s.pending, ev)
	}
}

// unlockAndNotify ends the critical section and delivers the events it produced.
// NOTE: the observer runs unlocked so it may call back into the scheduler.
func (s *Scheduler) unlockAndNotify() {
	evs := s.pending
	s.pending = nil
	obs := s.observer
	s.mu.Unlock()

	if obs == nil {
		return
	}
	for _, ev := range evs {
		obs(ev)
	}
}
