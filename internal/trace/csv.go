package trace

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CSV writes one row per event to a file.
type CSV struct {
	f *os.File
	w *csv.Writer
}

// NewCSV creates (or truncates) path and writes the header.
func NewCSV(path string) (*CSV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trace csv: %w", err)
	}
	w := csv.NewWriter(f)

	// write header
	if err := w.Write([]string{"timestamp", "run_id", "tick", "event", "task_id", "name", "deadline"}); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()
	return &CSV{f: f, w: w}, nil
}

func (c *CSV) Write(rec Record) error {
	row := []string{
		rec.Time.Format(time.RFC3339Nano),
		rec.RunID,
		strconv.FormatUint(uint64(rec.Tick), 10),
		rec.Kind.String(),
		strconv.FormatUint(uint64(rec.TaskID), 10),
		rec.Name,
		strconv.FormatUint(uint64(rec.Deadline), 10),
	}
	if err := c.w.Write(row); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *CSV) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.f.Close()
		return err
	}
	return c.f.Close()
}
