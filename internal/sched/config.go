package sched

// Config holds the scheduler's resource limits. It mirrors the scheduler
// section of config.yml.
type Config struct {
	TickMS            int `yaml:"tick_ms"`             // 1 (by default)
	MaxTasks          int `yaml:"max_tasks"`           // 16 (by default)
	ArenaBytes        int `yaml:"arena_bytes"`         // 65536 (by default)
	DefaultStackBytes int `yaml:"default_stack_bytes"` // 2048 (by default)
}

// DefaultConfig is used when no config file is given.
func DefaultConfig() Config {
	return Config{
		TickMS:            1,
		MaxTasks:          16,
		ArenaBytes:        64 * 1024,
		DefaultStackBytes: 2048,
	}
}

// Normalize applies sanity clamps, replacing non-positive values with defaults.
func (c Config) Normalize() Config {
	def := DefaultConfig()
	if c.TickMS <= 0 {
		c.TickMS = def.TickMS
	}
	if c.MaxTasks <= 0 {
		c.MaxTasks = def.MaxTasks
	}
	if c.ArenaBytes <= 0 {
		c.ArenaBytes = def.ArenaBytes
	}
	if c.DefaultStackBytes <= 0 {
		c.DefaultStackBytes = def.DefaultStackBytes
	}
	return c
}
