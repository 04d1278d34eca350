package sched

// dispatch gives the CPU to the ready task with the earliest deadline. The
// running task keeps the CPU unless the queue head orders strictly before it.
func (s *Scheduler) dispatch() {
	var cur *Task
	if s.running != 0 {
		cur = s.tasks[s.running]
		if cur.reap {
			s.running = 0
			s.switcher.Suspend(cur.ID)
			s.destroy(cur)
			cur = nil
		}
	}
	if cur != nil {
		s.checkDeadline(cur)
	}

	headID, headKey, ok := s.ready.PeekMin()
	if !ok {
		if cur == nil && !s.idle {
			s.idle = true
			s.emit(StatusIdle, nil)
		}
		return
	}
	if cur != nil {
		if !headKey.less(cur.key()) {
			return
		}
		cur.state = StateReady
		cur.stats.Preemptions++
		s.ready.Insert(cur.ID, cur.key())
		s.emit(StatusPreempt, cur)
		s.switcher.Suspend(cur.ID)
	}

	s.ready.PopMin()
	next := s.tasks[headID]
	s.checkDeadline(next)
	next.state = StateRunning
	if !next.started {
		next.started = true
		next.jobStart = s.now
	}
	next.stats.Dispatches++
	s.running = next.ID
	s.idle = false
	s.switches++
	s.emit(StatusDispatch, next)
	s.switcher.Resume(next.ID)
}

// checkDeadline records a miss the first time a job is seen past its deadline.
// Exactly reaching the deadline is on time.
func (s *Scheduler) checkDeadline(t *Task) {
	if t.missed || s.now <= t.absDeadline {
		return
	}
	t.missed = true
	t.stats.DeadlineMisses++
	s.misses++
	s.logger.Warn("deadline missed", "task_id", t.ID, "name", t.Name,
		"tick", s.now, "deadline", t.absDeadline)
	s.emit(StatusDeadlineMiss, t)
}
