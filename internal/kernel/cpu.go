package kernel

import (
	"sync"

	"edfsched/internal/sched"
)

// cpu implements sched.ContextSwitcher for task goroutines. Exactly one
// goroutine owns the CPU token at a time; the scheduler only moves target,
// and the owner hands the token over at its next checkpoint.
type cpu struct {
	mu     sync.Mutex
	gates  map[sched.TaskID]*gate
	owner  sched.TaskID // goroutine executing task code, zero if none
	target sched.TaskID // task the scheduler wants on the CPU, zero if none
	stop   chan struct{}
}

// gate parks one task goroutine.
type gate struct {
	wake      chan struct{}
	done      chan struct{}
	discarded bool
}

// signal hands the token to the parked goroutine. A pending signal is
// never lost or doubled because the token has a single owner.
func (g *gate) signal() {
	select {
	case g.wake <- struct{}{}:
	default:
	}
}

func newCPU() *cpu {
	return &cpu{
		gates: make(map[sched.TaskID]*gate),
		stop:  make(chan struct{}),
	}
}

// gateLocked returns id's gate, creating it on first use. Gates of
// discarded tasks are kept so a late-starting goroutine still sees done.
func (c *cpu) gateLocked(id sched.TaskID) *gate {
	g, ok := c.gates[id]
	if !ok {
		g = &gate{
			wake: make(chan struct{}, 1),
			done: make(chan struct{}),
		}
		c.gates[id] = g
	}
	return g
}

func (c *cpu) Suspend(id sched.TaskID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.target == id {
		c.target = 0
	}
}

func (c *cpu) Resume(id sched.TaskID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = id
	if c.owner == 0 {
		c.owner = id
		c.gateLocked(id).signal()
	}
}

func (c *cpu) Discard(id sched.TaskID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g := c.gateLocked(id)
	if !g.discarded {
		g.discarded = true
		close(g.done)
	}
}

// handoffLocked passes the token from the current owner to target.
func (c *cpu) handoffLocked() {
	c.owner = c.target
	if c.target != 0 {
		c.gateLocked(c.target).signal()
	}
}

// yield is called by the owning goroutine at a checkpoint. It returns at
// once if the scheduler still wants id on the CPU, otherwise it hands the
// token over and parks until id is resumed. A non-nil error means id must
// not run again.
func (c *cpu) yield(id sched.TaskID) error {
	c.mu.Lock()
	if c.target == id && c.owner == id {
		c.mu.Unlock()
		return nil
	}
	if c.owner == id {
		c.handoffLocked()
	}
	g := c.gateLocked(id)
	c.mu.Unlock()
	return c.wait(g)
}

// wait parks on g until the token arrives. A discarded task never resumes,
// even if the token reached it first.
func (c *cpu) wait(g *gate) error {
	select {
	case <-g.wake:
		select {
		case <-g.done:
			// The caller still owns the token; exit passes it on.
			return ErrTaskDeleted
		default:
		}
		return nil
	case <-g.done:
		return ErrTaskDeleted
	case <-c.stop:
		return ErrStopped
	}
}

// start parks a new goroutine until its first dispatch.
func (c *cpu) start(id sched.TaskID) error {
	c.mu.Lock()
	g := c.gateLocked(id)
	c.mu.Unlock()
	return c.wait(g)
}

// exit gives up the token for good.
func (c *cpu) exit(id sched.TaskID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owner == id {
		if c.target == id {
			c.target = 0
		}
		c.handoffLocked()
	}
}

func (c *cpu) halt() {
	close(c.stop)
}

// Owner returns the task goroutine holding the token.
func (c *cpu) Owner() sched.TaskID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owner
}
