// internal/sched/tickclock.go

package sched

import (
	"sync"
	"sync/atomic"
	"time"
)

// TickClock is the tick interrupt source. It counts ticks atomically and
// signals them on Ch. A consumer that falls behind loses signals, not ticks:
// Count is authoritative, so the consumer catches up on its next signal.
type TickClock struct {
	Ch       chan struct{}
	count    atomic.Uint64
	dropped  atomic.Uint64
	stop     chan struct{}
	stopOnce sync.Once
}

// NewTickClock creates a clock but does not start it.
func NewTickClock(buffer int) *TickClock {
	return &TickClock{
		Ch:   make(chan struct{}, buffer),
		stop: make(chan struct{}),
	}
}

// Start begins emitting ticks at the given interval.
func (c *TickClock) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Fire()
			case <-c.stop:
				close(c.Ch)
				return
			}
		}
	}()
}

// Fire counts one tick and signals it without blocking.
func (c *TickClock) Fire() {
	c.count.Add(1)
	select {
	case c.Ch <- struct{}{}:
	default:
		c.dropped.Add(1)
	}
}

// Stop signals the clock to stop emitting ticks. It is safe to call twice.
func (c *TickClock) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Count returns the current tick count atomically.
func (c *TickClock) Count() Tick {
	return Tick(c.count.Load())
}

// Dropped returns how many tick signals found Ch full.
func (c *TickClock) Dropped() uint64 {
	return c.dropped.Load()
}
