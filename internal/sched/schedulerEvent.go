// internal/sched/schedulerEvent.go

package sched

// StatusKind represents the type of scheduler event
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusCreate
	StatusRelease
	StatusDispatch
	StatusPreempt
	StatusComplete
	StatusSuspend
	StatusResume
	StatusDelete
	StatusDeadlineMiss
	StatusOverrun
)

// StatusEvent is emitted on every scheduling decision.
type StatusEvent struct {
	Tick     Tick
	Kind     StatusKind
	TaskID   TaskID // zero for Idle
	Name     string
	Deadline Tick // absolute deadline of the job the event refers to, if any
}

// Observer receives scheduler events. It is called outside the scheduler's
// critical section, so it may call back into the scheduler.
type Observer func(StatusEvent)

func (sk StatusKind) String() string {
	switch sk {
	case StatusIdle:
		return "Idle"
	case StatusCreate:
		return "Create"
	case StatusRelease:
		return "Release"
	case StatusDispatch:
		return "Dispatch"
	case StatusPreempt:
		return "Preempt"
	case StatusComplete:
		return "Complete"
	case StatusSuspend:
		return "Suspend"
	case StatusResume:
		return "Resume"
	case StatusDelete:
		return "Delete"
	case StatusDeadlineMiss:
		return "DeadlineMiss"
	case StatusOverrun:
		return "Overrun"
	default:
		return "Unknown"
	}
}

// ParseStatusKind is the inverse of StatusKind.String.
func ParseStatusKind(s string) (StatusKind, bool) {
	for k := StatusIdle; k <= StatusOverrun; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}
