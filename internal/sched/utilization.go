package sched

// TaskLoad describes a periodic task's demand for a schedulability check.
type TaskLoad struct {
	Name             string
	Period           Tick
	RelativeDeadline Tick
	Cost             Tick // worst-case execution time per job
}

// LoadReport is the result of Analyze.
type LoadReport struct {
	Utilization float64 // sum of Cost/Period
	Density     float64 // sum of Cost/min(Period, RelativeDeadline)
	// Schedulable is true when EDF is guaranteed to meet every deadline:
	// density <= 1 is sufficient, and for implicit deadlines (D >= T for
	// every task) utilization <= 1 is also necessary.
	Schedulable bool
	// Overloaded is true when utilization exceeds 1; some deadline will be missed.
	Overloaded bool
}

// Analyze runs the classic EDF utilization and density tests. Tasks with a
// zero period or deadline are ignored.
func Analyze(loads []TaskLoad) LoadReport {
	var r LoadReport
	implicit := true
	for _, l := range loads {
		if l.Period == 0 || l.RelativeDeadline == 0 {
			continue
		}
		window := min(l.Period, l.RelativeDeadline)
		if l.RelativeDeadline < l.Period {
			implicit = false
		}
		r.Utilization += float64(l.Cost) / float64(l.Period)
		r.Density += float64(l.Cost) / float64(window)
	}
	r.Overloaded = r.Utilization > 1
	r.Schedulable = r.Density <= 1 || (implicit && !r.Overloaded)
	return r
}
