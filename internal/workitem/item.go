// Package workitem turns tool runs and parsed commands into the work items
// handed to the queue.
package workitem

import (
	"time"

	"github.com/deixis/sift/internal/runner"
)

// Item is a unit of engineering work ready to be queued.
type Item struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    int            `json:"priority"`
	Status      string         `json:"status"`
	Source      string         `json:"source"`
	Context     map[string]any `json:"context"`
}

// ToolOutput is the part of a tool run the assembler needs. Stdout is read
// once when the value is built, so a summary sees one consistent snapshot.
type ToolOutput struct {
	RunID        string // discovery run the output belongs to
	InvocationID string
	Name         string
	Command      string
	Stdout       string
	Stderr       string
	ExitCode     int
	Duration     time.Duration
	Success      bool
}

// FromResult snapshots res for the assembler.
func FromResult(res *runner.Result, runID string) ToolOutput {
	return ToolOutput{
		RunID:        runID,
		InvocationID: res.RunID,
		Name:         res.Name,
		Command:      res.Command,
		Stdout:       res.Stdout(),
		Stderr:       res.Stderr,
		ExitCode:     res.ExitCode,
		Duration:     res.Duration,
		Success:      res.Success,
	}
}
