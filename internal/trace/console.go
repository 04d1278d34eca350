package trace

import (
	"fmt"
	"io"
	"strings"
)

// Console prints one aligned line per event.
type Console struct {
	w io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Write(rec Record) error {
	_, err := fmt.Fprintln(c.w, Format(rec))
	return err
}

func (c *Console) Close() error { return nil }

// Format renders a record the way Console prints it.
func Format(rec Record) string {
	// an auxiliary function to center the event kind in the output
	center := func(str string, width int) string {
		spaces := max((width-len(str))/2, 0)
		return strings.Repeat(" ", spaces) + str + strings.Repeat(" ", max(width-(spaces+len(str)), 0))
	}

	line := fmt.Sprintf("Tick: %07d [%s]", rec.Tick, center(rec.Kind.String(), 14))
	if rec.TaskID == 0 {
		return line
	}
	line += fmt.Sprintf(" => Task: %04d %-8s", rec.TaskID, rec.Name)
	if rec.Deadline != 0 {
		line += fmt.Sprintf(" deadline=%07d", rec.Deadline)
	}
	return line
}
