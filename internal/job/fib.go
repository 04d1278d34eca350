package job

import (
	"log/slog"

	"github.com/hackebrot/go-fibonacci"

	"edfsched/internal/kernel"
)

// Fibonacci returns an entry that computes the nth Fibonacci number once per
// job with the given strategy and logs the result.
func Fibonacci(n int, strategy fibonacci.Strategy, logger *slog.Logger) kernel.Entry {
	return func(tc *kernel.TaskContext) {
		for {
			r := strategy.Compute(n)
			logger.Debug("computation complete", "task_id", tc.ID(), "n", n, "result", r, "tick", tc.Now())
			if err := tc.DelayUntilNextPeriod(); err != nil {
				return
			}
		}
	}
}
