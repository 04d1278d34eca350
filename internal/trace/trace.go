// Package trace records scheduler events to one or more sinks.
package trace

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"edfsched/internal/sched"
)

// Record is one scheduler event as stored by a sink.
type Record struct {
	RunID string
	Time  time.Time
	sched.StatusEvent
}

// Sink stores records. Recorder calls Write from a single goroutine.
type Sink interface {
	Write(Record) error
	Close() error
}

// Recorder fans scheduler events out to sinks. Events are queued on a
// buffered channel and written by one goroutine, so Observe may be called
// from any goroutine.
type Recorder struct {
	runID  string
	sinks  []Sink
	ch     chan Record
	done   chan struct{}
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewRecorder starts a recorder writing to sinks.
func NewRecorder(runID string, logger *slog.Logger, sinks ...Sink) *Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Recorder{
		runID:  runID,
		sinks:  sinks,
		ch:     make(chan Record, 256), // buffered channel for status events
		done:   make(chan struct{}),
		logger: logger.With("component", "trace"),
	}
	go r.loop()
	return r
}

// Observe implements sched.Observer. Events arriving after Close are dropped.
func (r *Recorder) Observe(ev sched.StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.ch <- Record{RunID: r.runID, Time: time.Now(), StatusEvent: ev}
}

func (r *Recorder) loop() {
	defer close(r.done)
	for rec := range r.ch {
		for _, s := range r.sinks {
			if err := s.Write(rec); err != nil {
				r.logger.Error("trace write failed", "kind", rec.Kind, "error", err)
			}
		}
	}
}

// Close flushes queued events and closes every sink.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.ch)
	r.mu.Unlock()

	<-r.done
	var err error
	for _, s := range r.sinks {
		err = errors.Join(err, s.Close())
	}
	return err
}

// Memory keeps records in memory.
type Memory struct {
	mu      sync.Mutex
	records []Record
}

func (m *Memory) Write(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *Memory) Close() error { return nil }

// Records returns a copy of what has been written.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}
