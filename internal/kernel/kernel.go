// Package kernel runs periodic task entry points as goroutines under the
// EDF scheduler, driven by a real-time tick clock.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"edfsched/internal/sched"
)

var (
	// ErrStopped is returned to tasks once the kernel has been stopped.
	ErrStopped = errors.New("kernel stopped")
	// ErrTaskDeleted is returned to a task that has been deleted.
	ErrTaskDeleted = errors.New("task deleted")
)

// Entry is a task's entry point. It normally loops forever, calling
// tc.DelayUntilNextPeriod at the end of every job, and returns when that
// call fails. A task whose entry returns is deleted.
type Entry func(tc *TaskContext)

// Kernel owns a scheduler, the task goroutines and the tick clock.
type Kernel struct {
	sched  *sched.Scheduler
	cpu    *cpu
	clock  *sched.TickClock
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// Option configures a Kernel.
type Option func(*options)

type options struct {
	observer sched.Observer
}

// WithObserver forwards scheduler events to obs.
func WithObserver(obs sched.Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// New creates a kernel. Tasks may be created before Start.
func New(cfg sched.Config, logger *slog.Logger, opts ...Option) *Kernel {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(context.Background())
	k := &Kernel{
		cpu:    newCPU(),
		clock:  sched.NewTickClock(256), // buffer size for tick signals
		logger: logger.With("component", "kernel"),
		ctx:    ctx,
		cancel: cancel,
	}
	k.sched = sched.New(cfg,
		sched.WithSwitcher(k.cpu),
		sched.WithObserver(o.observer),
		sched.WithLogger(logger),
	)
	return k
}

// Scheduler exposes the scheduler for queries.
func (k *Kernel) Scheduler() *sched.Scheduler { return k.sched }

// CreatePeriodicTask creates a task and its goroutine. The goroutine waits
// until the scheduler first dispatches the task.
func (k *Kernel) CreatePeriodicTask(p sched.TaskParams, entry Entry) (sched.TaskID, error) {
	if entry == nil {
		return 0, fmt.Errorf("%w: entry point is nil", sched.ErrInvalidParameters)
	}
	if k.ctx.Err() != nil {
		return 0, ErrStopped
	}
	id, err := k.sched.Create(p)
	if err != nil {
		return 0, err
	}
	info, err := k.sched.Lookup(id)
	if err != nil {
		// Deleted by another goroutine already.
		return id, nil
	}

	tc := &TaskContext{id: id, name: info.Name, k: k}
	k.wg.Add(1)
	go k.run(tc, entry)
	k.logger.Debug("task goroutine started", "task_id", id, "name", info.Name)
	return id, nil
}

func (k *Kernel) run(tc *TaskContext, entry Entry) {
	defer k.wg.Done()
	defer k.finish(tc)

	if err := k.cpu.start(tc.id); err != nil {
		return
	}
	entry(tc)
}

// finish deletes a task whose entry returned and gives up the CPU.
func (k *Kernel) finish(tc *TaskContext) {
	if k.ctx.Err() == nil {
		if err := k.sched.Delete(tc.id); err == nil {
			k.logger.Debug("task entry returned", "task_id", tc.id, "name", tc.name)
		}
		k.sched.Dispatch()
	}
	k.cpu.exit(tc.id)
}

// DeleteTask deletes a task. A running task is torn down at its next
// checkpoint.
func (k *Kernel) DeleteTask(id sched.TaskID) error {
	return k.sched.Delete(id)
}

// IsDeadlineMissed reports whether the task's current or last job missed its deadline.
func (k *Kernel) IsDeadlineMissed(id sched.TaskID) (bool, error) {
	return k.sched.IsDeadlineMissed(id)
}

// Suspend suspends a task until Resume.
func (k *Kernel) Suspend(id sched.TaskID) error { return k.sched.Suspend(id) }

// Resume makes a suspended task eligible again.
func (k *Kernel) Resume(id sched.TaskID) error { return k.sched.Resume(id) }

// Dispatch runs the dispatcher once; Start does this before the first tick.
func (k *Kernel) Dispatch() { k.sched.Dispatch() }

// Tick delivers one tick by hand. Use either Tick or Start, not both.
func (k *Kernel) Tick() { k.sched.Tick() }

// Start dispatches the initial tasks and starts the tick clock. The scheduler
// catches up on ticks it could not process in time.
func (k *Kernel) Start(interval time.Duration) {
	k.startOnce.Do(func() {
		k.sched.Dispatch()
		k.clock.Start(interval)
		k.wg.Add(1)
		go k.tickLoop()
		k.logger.Info("kernel started", "tick", interval)
	})
}

func (k *Kernel) tickLoop() {
	defer k.wg.Done()
	for range k.clock.Ch {
		target := k.clock.Count()
		for k.sched.Now() < target {
			k.sched.Tick()
		}
	}
}

// Stop halts the clock and every task goroutine. Tasks that are executing
// stop at their next checkpoint; Stop waits for them or for ctx.
func (k *Kernel) Stop(ctx context.Context) error {
	k.stopOnce.Do(func() {
		k.cancel()
		k.clock.Stop()
		k.cpu.halt()
	})

	done := make(chan struct{})
	go func() {
		k.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		k.logger.Info("kernel stopped", "tick", k.sched.Now(), "dropped_ticks", k.clock.Dropped())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
