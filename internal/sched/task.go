package sched

import "fmt"

// TaskID uniquely identifies a task in the scheduler. Zero is never assigned.
type TaskID uint64

// Tick is a point in scheduler time, counted in tick interrupts since start.
type Tick uint64

// State is the lifecycle state of a task.
type State int

const (
	StateDormant State = iota
	StateReady
	StateRunning
	StateBlocked   // waiting for its next release
	StateSuspended // explicitly suspended, not released until resumed
)

func (st State) String() string {
	switch st {
	case StateDormant:
		return "Dormant"
	case StateReady:
		return "Ready"
	case StateRunning:
		return "Running"
	case StateBlocked:
		return "Blocked"
	case StateSuspended:
		return "Suspended"
	default:
		return "Unknown"
	}
}

// TaskParams are the timing parameters of a periodic task, fixed at creation.
type TaskParams struct {
	Name             string // diagnostic only
	Period           Tick
	RelativeDeadline Tick
	Tiebreak         int // lower wins when absolute deadlines are equal
	StackBytes       int // 0 means Config.DefaultStackBytes
}

// Task is the control block of one periodic task. Only the scheduler mutates it.
type Task struct {
	ID TaskID
	TaskParams

	state       State
	absDeadline Tick   // valid while Ready or Running
	nextRelease Tick   // start of the next period
	seq         uint64 // insertion order of the current job
	missed      bool   // current job has missed its deadline
	lastMissed  bool   // most recently completed job missed its deadline
	reap        bool   // deleted while running; destroyed at the next dispatch
	started     bool   // current job has been dispatched at least once
	jobStart    Tick   // tick of the current job's first dispatch
	stats       TaskStats
}

// newTask creates a dormant task control block.
// NOTE: deadline and release are set when the scheduler admits the task.
func newTask(id TaskID, p TaskParams) *Task {
	if p.Name == "" {
		p.Name = fmt.Sprintf("task-%d", id)
	}
	return &Task{
		ID:         id,
		TaskParams: p,
		state:      StateDormant,
	}
}

func (t *Task) key() queueKey {
	return queueKey{deadline: t.absDeadline, tiebreak: t.Tiebreak, seq: t.seq}
}

func (t *Task) hasDeadline() bool {
	return t.state == StateReady || t.state == StateRunning
}

// TaskInfo is a point-in-time copy of a task's control block.
type TaskInfo struct {
	ID               TaskID
	Name             string
	Period           Tick
	RelativeDeadline Tick
	Tiebreak         int
	StackBytes       int
	State            State
	AbsoluteDeadline Tick // meaningful only when HasDeadline is true
	HasDeadline      bool
	NextRelease      Tick
	JobStart         Tick // first dispatch of the current job; meaningful only while Running
	Stats            TaskStats
}

func (t *Task) info() TaskInfo {
	ti := TaskInfo{
		ID:               t.ID,
		Name:             t.Name,
		Period:           t.Period,
		RelativeDeadline: t.RelativeDeadline,
		Tiebreak:         t.Tiebreak,
		StackBytes:       t.StackBytes,
		State:            t.state,
		HasDeadline:      t.hasDeadline(),
		NextRelease:      t.nextRelease,
		JobStart:         t.jobStart,
		Stats:            t.stats,
	}
	if ti.HasDeadline {
		ti.AbsoluteDeadline = t.absDeadline
	}
	return ti
}
