package sched

// release admits every task whose next release is due. Tasks are visited in
// (release tick, id) order; each visit moves nextRelease forward by exactly
// one period from its old value, so the loop ends once every task is in the
// future, however far behind the scheduler was.
func (s *Scheduler) release() {
	for {
		id, at, ok := s.releases.PeekMin()
		if !ok || at > s.now {
			return
		}
		t := s.tasks[id]

		switch t.state {
		case StateBlocked:
			t.absDeadline = t.nextRelease + t.RelativeDeadline
			t.nextRelease += t.Period
			t.state = StateReady
			t.stats.Releases++
			s.enqueue(t)
			s.emit(StatusRelease, t)
		default:
			// The previous job is still ready or running: skip this release.
			t.nextRelease += t.Period
			t.stats.Overruns++
			s.overruns++
			s.logger.Warn("task overrun", "task_id", t.ID, "name", t.Name,
				"tick", s.now, "skipped_release", at)
			s.emit(StatusOverrun, t)
		}
		s.releases.Insert(id, t.nextRelease)
	}
}
