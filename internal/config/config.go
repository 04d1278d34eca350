package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	yaml "github.com/goccy/go-yaml"

	"edfsched/internal/sched"
)

// File mirrors config.yml.
type File struct {
	Scheduler sched.Config `yaml:"scheduler"`
	Log       LogConfig    `yaml:"log"`
	HTTPAddr  string       `yaml:"http_addr"` // status API; disabled when empty
	Trace     TraceConfig  `yaml:"trace"`
	Tasks     []TaskConfig `yaml:"tasks"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// TraceConfig names the optional event sinks.
type TraceConfig struct {
	CSV    string `yaml:"csv"`
	SQLite string `yaml:"sqlite"`
}

// TaskConfig describes one periodic task. Deadline defaults to Period.
type TaskConfig struct {
	Name       string `yaml:"name"`
	Period     uint64 `yaml:"period"`   // ticks
	Deadline   uint64 `yaml:"deadline"` // ticks, relative to each release
	Cost       uint64 `yaml:"cost"`     // ticks per job (simulation and spin workload)
	Tiebreak   int    `yaml:"tiebreak"`
	StackBytes int    `yaml:"stack_bytes"`
	Workload   string `yaml:"workload"` // hello, spin, fib
	FibN       int    `yaml:"fib_n"`
}

// Params converts the entry to scheduler parameters.
func (tc TaskConfig) Params() sched.TaskParams {
	return sched.TaskParams{
		Name:             tc.Name,
		Period:           sched.Tick(tc.Period),
		RelativeDeadline: sched.Tick(tc.Deadline),
		Tiebreak:         tc.Tiebreak,
		StackBytes:       tc.StackBytes,
	}
}

// Default reproduces the two-task demo: 500 and 1000 tick periods at a 1 ms
// tick, deadlines equal to periods, 2048-byte stacks.
func Default() File {
	return File{
		Scheduler: sched.DefaultConfig(),
		Log:       LogConfig{Level: "info", Format: "text"},
		Tasks: []TaskConfig{
			{Name: "Task1", Period: 500, Deadline: 500, Cost: 1, Tiebreak: 1, Workload: "hello"},
			{Name: "Task2", Period: 1000, Deadline: 1000, Cost: 1, Tiebreak: 1, Workload: "hello"},
		},
	}
}

// Load reads YAML and overrides defaults; empty path or a missing file means
// defaults only. A task list in the file replaces the default tasks.
func Load(path string) (File, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a config document over the defaults.
func Parse(data []byte) (File, error) {
	cfg := Default()
	cfg.Tasks = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config: %w", err)
	}
	if cfg.Tasks == nil {
		cfg.Tasks = Default().Tasks
	}
	cfg.normalize()
	return cfg, cfg.Validate()
}

// sanity clamps
func (f *File) normalize() {
	f.Scheduler = f.Scheduler.Normalize()
	if f.Log.Level == "" {
		f.Log.Level = "info"
	}
	if f.Log.Format == "" {
		f.Log.Format = "text"
	}
	for i := range f.Tasks {
		t := &f.Tasks[i]
		if t.Deadline == 0 {
			t.Deadline = t.Period
		}
		if t.Cost == 0 {
			t.Cost = 1
		}
		if t.Name == "" {
			t.Name = fmt.Sprintf("Task%d", i+1)
		}
	}
}

// Validate reports every task entry the scheduler would reject.
func (f File) Validate() error {
	var err error
	for i, t := range f.Tasks {
		if t.Period == 0 {
			err = errors.Join(err, fmt.Errorf("tasks[%d] (%s): period must be greater than 0", i, t.Name))
		}
		if t.StackBytes < 0 {
			err = errors.Join(err, fmt.Errorf("tasks[%d] (%s): stack_bytes must not be negative", i, t.Name))
		}
	}
	return err
}
