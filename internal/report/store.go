// Package report persists discovery runs so they can be inspected after
// the fact, per run or per tool.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/deixis/sift/internal/workitem"
)

// Store persists and retrieves discovery runs.
type Store interface {
	Save(run *Run) error
	Load(runID string) (*Run, error)
}

// Path a tool run took through the pipeline.
const (
	PathSkipped     = "skipped"
	PathSummary     = "summary"
	PathInterpreted = "interpreted"
)

// Run is the record of one discovery pass.
type Run struct {
	ID          string          `json:"id"`
	StartedAt   time.Time       `json:"started_at"`
	WorkDir     string          `json:"work_dir"`
	DryRun      bool            `json:"dry_run"`
	Interpreted bool            `json:"interpreted"`
	Tools       []ToolRun       `json:"tools"`
	Items       []workitem.Item `json:"items"`
}

// ToolRun is what happened to one tool during a run.
type ToolRun struct {
	Name       string   `json:"name"`
	Command    string   `json:"command"`
	Status     string   `json:"status"` // completed, timed out, not found, failed
	ExitCode   int      `json:"exit_code"`
	Duration   float64  `json:"duration_seconds"`
	Error      string   `json:"error,omitempty"`
	IsJSON     bool     `json:"is_json_output"`
	Path       string   `json:"path"`
	SkipReason string   `json:"skip_reason,omitempty"`
	Items      int      `json:"items"`
	Dropped    int      `json:"dropped,omitempty"`
	Rejected   []string `json:"rejected,omitempty"` // malformed interpreter commands
	Prompt     string   `json:"prompt,omitempty"`   // dry-run interpretation only
	QueueError string   `json:"queue_error,omitempty"`
	Fallback   string   `json:"fallback,omitempty"` // why interpretation fell back to a summary
}

// Tool returns the record for the named tool, compared case-insensitively.
func (r *Run) Tool(name string) (*ToolRun, error) {
	for i := range r.Tools {
		if strings.EqualFold(r.Tools[i].Name, name) {
			return &r.Tools[i], nil
		}
	}
	return nil, fmt.Errorf("run %s has no tool %q", r.ID, name)
}

// ItemsFor returns the items produced by the named tool.
func (r *Run) ItemsFor(name string) []workitem.Item {
	var out []workitem.Item
	for _, it := range r.Items {
		if n, _ := it.Context["tool_name"].(string); strings.EqualFold(n, name) {
			out = append(out, it)
		}
	}
	return out
}

// Counts tallies the tool runs by path.
func (r *Run) Counts() map[string]int {
	out := make(map[string]int, 3)
	for _, t := range r.Tools {
		out[t.Path]++
	}
	return out
}

// Summary is a one-line description of the run.
func (r *Run) Summary() string {
	c := r.Counts()
	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}
	return fmt.Sprintf("run %s%s: %d tools, %d items, %d summarized, %d interpreted, %d skipped",
		r.ID, mode, len(r.Tools), len(r.Items), c[PathSummary], c[PathInterpreted], c[PathSkipped])
}
