package job

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/hackebrot/go-fibonacci"

	"edfsched/internal/kernel"
	"edfsched/internal/sched"
)

// Spec selects and parameterizes a named workload.
type Spec struct {
	Workload string     // hello, spin or fib
	Period   sched.Tick // printed by hello
	Cost     sched.Tick // ticks per job for spin
	FibN     int        // n for fib
}

// Env carries the sinks workloads write to.
type Env struct {
	Out    io.Writer
	Logger *slog.Logger
}

type builder func(Spec, Env) kernel.Entry

var workloads = map[string]builder{
	"hello": func(s Spec, env Env) kernel.Entry { return Hello(env.Out, uint64(s.Period)) },
	"spin":  func(s Spec, env Env) kernel.Entry { return Spin(max(s.Cost, 1)) },
	"fib": func(s Spec, env Env) kernel.Entry {
		n := s.FibN
		if n <= 0 {
			n = 20
		}
		return Fibonacci(n, fibonacci.NewRecursive(), env.Logger)
	},
}

// Build returns the entry for spec. An empty workload name means hello.
func Build(spec Spec, env Env) (kernel.Entry, error) {
	name := spec.Workload
	if name == "" {
		name = "hello"
	}
	b, ok := workloads[name]
	if !ok {
		return nil, fmt.Errorf("unknown workload %q (known: %v)", name, Names())
	}
	if env.Out == nil {
		env.Out = io.Discard
	}
	if env.Logger == nil {
		env.Logger = slog.New(slog.DiscardHandler)
	}
	return b(spec, env), nil
}

// Names lists the known workloads.
func Names() []string {
	names := make([]string, 0, len(workloads))
	for name := range workloads {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
